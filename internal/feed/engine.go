package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/feeddrop/feeddrop/pkg/logging"
	"github.com/feeddrop/feeddrop/pkg/telemetry"
)

// ErrUnauthorized marks a genuine credential rejection by the remote API,
// as opposed to a transport failure. Matched with errors.Is.
var ErrUnauthorized = errors.New("unauthorized")

// Options configures a feed sync engine. All collaborators are injected;
// the engine owns no ambient state.
type Options struct {
	Source      DataSource // network-backed
	CacheSource DataSource // store-backed
	Searcher    Searcher
	Store       LocalStore
	Guard       SessionGuard
	Net         Reachability
	Images      ImageCache
	Blobs       BlobCache // optional, may be nil
	Avatars     AvatarFetcher
	Listener    Listener
	PageSize    int
	CacheFirst  bool
	Logger      *zap.Logger
}

// Engine reconciles the remote paginated feed, the local mirror and the
// avatar caches into one deduplicated, chronologically ordered sequence of
// pages. All mutation of feed state happens under one mutex; network and
// store work runs on separate goroutines and marshals its results back
// through the apply methods.
type Engine struct {
	source      DataSource
	cacheSource DataSource
	searcher    Searcher
	store       LocalStore
	guard       SessionGuard
	net         Reachability
	images      ImageCache
	blobs       BlobCache
	avatars     AvatarFetcher
	listener    Listener
	pageSize    int
	cacheFirst  bool
	logger      *zap.Logger

	mu          sync.Mutex
	state       State
	owner       string
	user        *Author
	pages       []Page
	seen        map[string]struct{}
	newest      time.Time
	lastRequest map[Direction]*PageRequest
	busy        bool

	bg sync.WaitGroup
}

// New creates a feed sync engine
func New(opts Options) *Engine {
	if opts.Listener == nil {
		opts.Listener = NopListener{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.WithComponent("feed-engine")
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}

	return &Engine{
		source:      opts.Source,
		cacheSource: opts.CacheSource,
		searcher:    opts.Searcher,
		store:       opts.Store,
		guard:       opts.Guard,
		net:         opts.Net,
		images:      opts.Images,
		blobs:       opts.Blobs,
		avatars:     opts.Avatars,
		listener:    opts.Listener,
		pageSize:    opts.PageSize,
		cacheFirst:  opts.CacheFirst,
		logger:      opts.Logger,
		state:       StateUnauthenticated,
		seen:        make(map[string]struct{}),
		lastRequest: make(map[Direction]*PageRequest),
	}
}

// State returns the engine's current lifecycle state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Owner returns the id of the user whose feed is being synced
func (e *Engine) Owner() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.owner
}

// Busy reports whether a fetch is in progress
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy
}

// Pages returns a snapshot of the current pages, newest-first at index 0
func (e *Engine) Pages() []Page {
	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot := make([]Page, len(e.pages))
	for i, p := range e.pages {
		snapshot[i] = append(Page(nil), p...)
	}
	return snapshot
}

// WaitBackground blocks until outstanding write-through and avatar work has
// drained. Used by the one-shot mirror and by tests.
func (e *Engine) WaitBackground() {
	e.bg.Wait()
}

// Start verifies credentials and performs the initial sync. Verification
// failure while offline degrades to the mirrored feed; failure while online
// is a genuine rejection and surfaces AuthRequired.
func (e *Engine) Start(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "feed.start")
	defer span.End()

	e.setState(StateAuthenticating)

	if !e.net.IsOnline() {
		return e.startOffline(ctx)
	}

	user, err := e.guard.Verify(ctx)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			e.logger.Warn("Credentials rejected", zap.Error(err))
			e.setState(StateUnauthenticated)
			e.listener.AuthRequired()
			return err
		}
		// Transport trouble despite an optimistic reachability flag;
		// treated as inconclusive, same as offline.
		e.logger.Warn("Credential check inconclusive, falling back to mirror", zap.Error(err))
		return e.startOffline(ctx)
	}

	e.mu.Lock()
	e.owner = user.ID
	e.user = user
	e.state = StateSynced
	e.mu.Unlock()

	e.logger.Info("User verified", zap.String("owner", user.ID))

	// Logged-in user's avatar resolves ahead of the first page
	e.spawnAvatarResolution([]Author{*user})

	return e.initialFetch(ctx)
}

// startOffline loads the mirrored feed for the stored session's owner
func (e *Engine) startOffline(ctx context.Context) error {
	owner := e.guard.CurrentUserID()
	if owner == "" {
		e.setState(StateUnauthenticated)
		e.listener.AuthRequired()
		return ErrUnauthorized
	}

	e.mu.Lock()
	e.owner = owner
	e.state = StateOffline
	e.mu.Unlock()

	e.logger.Info("Offline start, serving mirrored feed", zap.String("owner", owner))

	req := NewPageRequest(Cursor{Direction: Older, Count: e.pageSize})
	e.recordRequest(req)
	return e.fetchFromCache(ctx, req)
}

// initialFetch seeds pages after a successful verification. With a warm
// mirror and cache-first enabled, the mirror is served immediately and only
// items newer than its newest id are requested from the network.
func (e *Engine) initialFetch(ctx context.Context) error {
	if e.cacheFirst {
		e.mu.Lock()
		owner := e.owner
		e.mu.Unlock()

		records, err := e.store.ItemsByOwner(ctx, owner)
		if err != nil {
			e.logger.Warn("Mirror read failed", zap.Error(err))
		}
		cached := ItemsFromRecords(records)
		if len(cached) > 0 {
			req := NewPageRequest(Cursor{Direction: Older, Count: e.pageSize})
			e.recordRequest(req)
			e.applyPage(req, cached, false)

			newerReq := NewPageRequest(Cursor{Direction: Newer, RefID: cached[0].ID, Count: e.pageSize})
			return e.fetch(ctx, newerReq)
		}
	}

	req := NewPageRequest(Cursor{Direction: Older, Count: e.pageSize})
	return e.fetch(ctx, req)
}

// Refresh requests items newer than the newest one on hand. With no pages
// yet it behaves like an initial fetch.
func (e *Engine) Refresh(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "feed.refresh")
	defer span.End()

	e.mu.Lock()
	var refID string
	if len(e.pages) > 0 && len(e.pages[0]) > 0 {
		refID = e.pages[0][0].ID
	}
	e.mu.Unlock()

	if refID == "" {
		return e.initialFetch(ctx)
	}
	return e.fetch(ctx, NewPageRequest(Cursor{Direction: Newer, RefID: refID, Count: e.pageSize}))
}

// LoadOlder requests items older than the oldest one on hand, the
// scroll-near-end continuation.
func (e *Engine) LoadOlder(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "feed.load_older")
	defer span.End()

	e.mu.Lock()
	var refID string
	if n := len(e.pages); n > 0 {
		last := e.pages[n-1]
		if len(last) > 0 {
			refID = last[len(last)-1].ID
		}
	}
	e.mu.Unlock()

	if refID == "" {
		return e.initialFetch(ctx)
	}
	return e.fetch(ctx, NewPageRequest(Cursor{Direction: Older, RefID: refID, Count: e.pageSize}))
}

// fetch issues one page request. The request supersedes any earlier
// outstanding request of the same direction; a superseded request's response
// is discarded at apply time.
func (e *Engine) fetch(ctx context.Context, req *PageRequest) error {
	e.recordRequest(req)

	if !e.net.IsOnline() {
		return e.fetchFromCache(ctx, req)
	}

	e.mu.Lock()
	owner := e.owner
	e.mu.Unlock()

	page, err := e.source.FetchPage(ctx, owner, req.Cursor)
	if err != nil {
		// Transport errors are never fatal; remain in the last good state
		e.logger.Warn("Page fetch failed",
			zap.String("request_id", req.ID),
			zap.String("direction", req.Cursor.Direction.String()),
			zap.Error(err))
		e.clearBusy(req)
		return nil
	}

	if len(page) == 0 {
		// Normal terminal condition: no more items in this direction
		e.logger.Debug("Empty page, feed exhausted",
			zap.String("request_id", req.ID),
			zap.String("direction", req.Cursor.Direction.String()))
		e.clearBusy(req)
		return nil
	}

	e.applyPage(req, page, true)
	return nil
}

// fetchFromCache serves a request from the local mirror as a single older
// page. No network state is in flight, so no supersession race exists, but
// the result still funnels through the same apply path.
func (e *Engine) fetchFromCache(ctx context.Context, req *PageRequest) error {
	e.mu.Lock()
	owner := e.owner
	e.mu.Unlock()

	page, err := e.cacheSource.FetchPage(ctx, owner, req.Cursor)
	if err != nil {
		e.logger.Warn("Mirror read failed", zap.Error(err))
		e.clearBusy(req)
		return nil
	}

	e.applyPage(req, page, false)
	return nil
}

// recordRequest marks req as the current request for its direction
func (e *Engine) recordRequest(req *PageRequest) {
	e.mu.Lock()
	e.lastRequest[req.Cursor.Direction] = req
	e.busy = true
	e.mu.Unlock()
}

// superseded reports whether a newer request of the same direction has been
// recorded since req was issued. Compared by identity, not content.
func (e *Engine) superseded(req *PageRequest) bool {
	return e.lastRequest[req.Cursor.Direction] != req
}

// clearBusy stops the progress indicator unless req has been superseded, in
// which case the superseding request owns the indicator.
func (e *Engine) clearBusy(req *PageRequest) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.superseded(req) {
		e.busy = false
	}
}

// applyPage merges a fetched batch into the in-memory pages. This is the
// single insertion point for both pagination directions and both sources.
func (e *Engine) applyPage(req *PageRequest, batch Page, fromNetwork bool) {
	e.mu.Lock()

	if e.superseded(req) {
		e.mu.Unlock()
		e.logger.Debug("Discarding superseded response",
			zap.String("request_id", req.ID),
			zap.String("direction", req.Cursor.Direction.String()))
		return
	}
	e.busy = false

	// A remote feed may legitimately re-deliver items already seen in an
	// overlapping page window
	fresh := make(Page, 0, len(batch))
	for _, item := range batch {
		if _, dup := e.seen[item.ID]; dup {
			continue
		}
		fresh = append(fresh, item)
	}

	if len(fresh) == 0 {
		e.mu.Unlock()
		return
	}

	for _, item := range fresh {
		e.seen[item.ID] = struct{}{}
	}

	incomingNewest := fresh[0].CreatedAt
	for _, item := range fresh[1:] {
		if item.CreatedAt.After(incomingNewest) {
			incomingNewest = item.CreatedAt
		}
	}

	// Ties count as newer so that an identical newest timestamp cannot
	// bounce a batch to the bottom and trigger a re-fetch loop
	edge := EdgeBottom
	if len(e.pages) == 0 || !incomingNewest.Before(e.newest) {
		edge = EdgeTop
		e.pages = append([]Page{fresh}, e.pages...)
		e.newest = incomingNewest
	} else {
		e.pages = append(e.pages, fresh)
	}

	owner := e.owner
	e.mu.Unlock()

	e.logger.Info("Page inserted",
		zap.String("request_id", req.ID),
		zap.String("edge", string(edge)),
		zap.Int("items", len(fresh)),
		zap.Bool("from_network", fromNetwork))

	if fromNetwork {
		e.spawnWriteThrough(owner, fresh)
	}
	e.spawnAvatarResolution(distinctAuthors(fresh))

	e.listener.PagesChanged(edge, fresh)
}

// spawnWriteThrough persists a network batch asynchronously. Persistence
// failures are logged and swallowed; the in-memory feed is the source of
// truth for the session.
func (e *Engine) spawnWriteThrough(owner string, items Page) {
	e.bg.Add(1)
	go func() {
		defer e.bg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := e.store.SaveBatch(ctx, owner, items); err != nil {
			e.logger.Warn("Write-through failed, continuing in memory",
				zap.String("owner", owner),
				zap.Int("items", len(items)),
				zap.Error(err))
		}
	}()
}

// Search returns matching items without touching the feed pages: remote
// search when online, a mirror text scan otherwise.
func (e *Engine) Search(ctx context.Context, query string) (Page, error) {
	ctx, span := telemetry.StartSpan(ctx, "feed.search")
	defer span.End()

	if e.net.IsOnline() && e.searcher != nil {
		page, err := e.searcher.SearchRemote(ctx, query, e.pageSize)
		if err == nil {
			e.spawnAvatarResolution(distinctAuthors(page))
			return page, nil
		}
		e.logger.Warn("Remote search failed, falling back to mirror", zap.Error(err))
	}

	records, err := e.store.ItemsMatchingText(ctx, query)
	if err != nil {
		return nil, err
	}
	return ItemsFromRecords(records), nil
}

// Logout revokes the stored session and resets the feed state
func (e *Engine) Logout(ctx context.Context) error {
	if err := e.guard.Revoke(ctx); err != nil {
		e.logger.Warn("Session revocation failed", zap.Error(err))
	}

	e.mu.Lock()
	e.state = StateUnauthenticated
	e.owner = ""
	e.user = nil
	e.pages = nil
	e.seen = make(map[string]struct{})
	e.newest = time.Time{}
	e.lastRequest = make(map[Direction]*PageRequest)
	e.busy = false
	e.mu.Unlock()

	e.logger.Info("Logged out")
	return nil
}

// HandleReachability is wired to the reachability monitor. Coming back
// online from a degraded state re-runs the start sequence; cached pages are
// kept if verification fails again.
func (e *Engine) HandleReachability(ctx context.Context, online bool) {
	e.listener.ReachabilityChanged(online)

	e.mu.Lock()
	degraded := e.state == StateOffline
	e.mu.Unlock()

	if online && degraded {
		if err := e.Start(ctx); err != nil {
			e.logger.Warn("Re-sync after reconnect failed", zap.Error(err))
		}
	}
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// distinctAuthors collects the unique authors of a batch, first-seen order
func distinctAuthors(items Page) []Author {
	seen := make(map[string]struct{}, len(items))
	authors := make([]Author, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.Author.ID]; ok {
			continue
		}
		seen[item.Author.ID] = struct{}{}
		authors = append(authors, item.Author)
	}
	return authors
}
