package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/feeddrop/feeddrop/internal/api"
	"github.com/feeddrop/feeddrop/internal/cache"
	"github.com/feeddrop/feeddrop/internal/db"
	"github.com/feeddrop/feeddrop/internal/feed"
	"github.com/feeddrop/feeddrop/internal/netmon"
	"github.com/feeddrop/feeddrop/internal/twitter"
	"github.com/feeddrop/feeddrop/pkg/config"
	"github.com/feeddrop/feeddrop/pkg/logging"
	"github.com/feeddrop/feeddrop/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting feeddrop daemon")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	// Open the local mirror
	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer database.Close()

	store := db.NewStore(database)

	// Caches
	images := cache.NewImageCache()
	avatarCache, err := cache.NewAvatarCache(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer avatarCache.Close()

	// Remote API client and session guard
	var guard *twitter.Guard
	client, err := twitter.New(&cfg.Twitter, func() string { return guard.Token() })
	if err != nil {
		logger.Fatal("Failed to create Twitter client", zap.Error(err))
	}
	guard = twitter.NewGuard(&cfg.Session, client)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// The monitor's change callback needs the engine, so the two are wired
	// through a forward declaration, same as the guard and the client
	var engine *feed.Engine
	monitor := netmon.New(cfg.Feed.ProbeURL, cfg.Feed.ProbeInterval, func(online bool) {
		engine.HandleReachability(rootCtx, online)
	})

	engine = feed.New(feed.Options{
		Source:      client,
		CacheSource: feed.NewStoreSource(store),
		Searcher:    client,
		Store:       store,
		Guard:       guard,
		Net:         monitor,
		Images:      images,
		Blobs:       avatarCache,
		Avatars:     client,
		PageSize:    cfg.Twitter.PageSize,
		CacheFirst:  cfg.Feed.CacheFirst,
	})

	monitor.Start()
	defer monitor.Stop()

	// Initial sync; the daemon keeps serving the mirror even when this fails
	if err := engine.Start(rootCtx); err != nil {
		logger.Warn("Initial sync degraded", zap.Error(err))
	}

	// HTTP server for the presentation layer
	if cfg.Logging.Level == "DEBUG" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	apiRouter := api.NewRouter(engine, images, monitor, database)
	apiRouter.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	rootCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	// Let write-through and avatar work drain before the store closes
	engine.WaitBackground()

	logger.Info("Server exited")
}
