package netmon

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/feeddrop/feeddrop/pkg/logging"
)

// Monitor tracks online/offline state as a process-wide flag, updated by a
// background probe loop and read synchronously at decision points. The flag
// starts optimistic: connectivity is assumed until a probe says otherwise.
// A flip mid-operation is observed at the next decision point, not mid-flight.
type Monitor struct {
	probeURL string
	interval time.Duration
	client   *http.Client
	online   atomic.Bool
	onChange func(online bool)
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a reachability monitor probing the given URL
func New(probeURL string, interval time.Duration, onChange func(online bool)) *Monitor {
	m := &Monitor{
		probeURL: probeURL,
		interval: interval,
		client:   &http.Client{Timeout: 5 * time.Second},
		onChange: onChange,
		logger:   logging.WithComponent("netmon"),
	}
	m.online.Store(true)
	return m
}

// IsOnline returns the current connectivity flag
func (m *Monitor) IsOnline() bool {
	return m.online.Load()
}

// Start begins the probe loop. Calling Start on a running monitor is a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.loop(ctx)
}

// Stop ends the probe loop and waits for it to exit
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Probe runs a single probe synchronously, for one-shot callers that never
// start the loop
func (m *Monitor) Probe(ctx context.Context) bool {
	m.probe(ctx)
	return m.IsOnline()
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)

	// First probe without waiting for a full interval
	m.probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

func (m *Monitor) probe(ctx context.Context) {
	online := m.reachable(ctx)
	previous := m.online.Swap(online)

	if online != previous {
		m.logger.Info("Reachability changed", zap.Bool("online", online))
		if m.onChange != nil {
			m.onChange(online)
		}
	}
}

// reachable HEAD-requests the probe URL. Any HTTP response counts as
// connectivity; only transport failures mean offline.
func (m *Monitor) reachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.probeURL, nil)
	if err != nil {
		return false
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}
