package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/feeddrop/feeddrop/internal/cache"
	"github.com/feeddrop/feeddrop/internal/db"
	"github.com/feeddrop/feeddrop/internal/feed"
	"github.com/feeddrop/feeddrop/internal/netmon"
	"github.com/feeddrop/feeddrop/internal/twitter"
	"github.com/feeddrop/feeddrop/pkg/config"
	"github.com/feeddrop/feeddrop/pkg/logging"
)

// mirror pulls the feed down into the local database and exits. Useful for
// cron-driven pre-seeding of the offline mirror.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()

	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer database.Close()

	store := db.NewStore(database)

	var guard *twitter.Guard
	client, err := twitter.New(&cfg.Twitter, func() string { return guard.Token() })
	if err != nil {
		logger.Fatal("Failed to create Twitter client", zap.Error(err))
	}
	guard = twitter.NewGuard(&cfg.Session, client)

	// One probe up front; a one-shot run has no use for the watch loop
	monitor := netmon.New(cfg.Feed.ProbeURL, cfg.Feed.ProbeInterval, nil)
	if !monitor.Probe(context.Background()) {
		logger.Fatal("Offline, cannot mirror", zap.String("probe_url", cfg.Feed.ProbeURL))
	}

	engine := feed.New(feed.Options{
		Source:      client,
		CacheSource: feed.NewStoreSource(store),
		Searcher:    client,
		Store:       store,
		Guard:       guard,
		Net:         monitor,
		Images:      cache.NewImageCache(),
		Avatars:     client,
		PageSize:    cfg.Twitter.PageSize,
		CacheFirst:  false,
	})

	ctx := context.Background()

	if err := engine.Start(ctx); err != nil {
		logger.Fatal("Sync could not start", zap.Error(err))
	}
	if engine.State() != feed.StateSynced {
		logger.Fatal("Not synced, nothing to mirror", zap.String("state", string(engine.State())))
	}

	// Page backwards until the feed is exhausted or the page cap is reached
	for i := 1; i < cfg.Feed.MirrorMaxPages; i++ {
		before := countItems(engine.Pages())
		if err := engine.LoadOlder(ctx); err != nil {
			logger.Warn("Older fetch failed", zap.Error(err))
			break
		}
		if countItems(engine.Pages()) == before {
			break
		}
	}

	// Write-through runs in the background; drain it before the store closes
	engine.WaitBackground()

	logger.Info("Mirror complete",
		zap.String("owner", engine.Owner()),
		zap.Int("pages", len(engine.Pages())),
		zap.Int("items", countItems(engine.Pages())))
}

func countItems(pages []feed.Page) int {
	n := 0
	for _, p := range pages {
		n += len(p)
	}
	return n
}
