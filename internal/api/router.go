package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/feeddrop/feeddrop/internal/cache"
	"github.com/feeddrop/feeddrop/internal/db"
	"github.com/feeddrop/feeddrop/internal/feed"
	"github.com/feeddrop/feeddrop/internal/netmon"
	"github.com/feeddrop/feeddrop/pkg/logging"
)

// Router serves the presentation layer boundary over local HTTP
type Router struct {
	engine  *feed.Engine
	images  *cache.ImageCache
	monitor *netmon.Monitor
	db      *db.DB
	logger  *zap.Logger
}

// NewRouter creates a new API router
func NewRouter(engine *feed.Engine, images *cache.ImageCache, monitor *netmon.Monitor, database *db.DB) *Router {
	return &Router{
		engine:  engine,
		images:  images,
		monitor: monitor,
		db:      database,
		logger:  logging.WithComponent("api-router"),
	}
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	engine.GET("/health", r.healthHandler)

	api := engine.Group("/api")
	{
		api.GET("/feed", r.feedHandler)
		api.POST("/feed/refresh", r.refreshHandler)
		api.POST("/feed/older", r.olderHandler)
		api.GET("/search", r.searchHandler)
		api.GET("/avatars/:id", r.avatarHandler)
		api.GET("/status", r.statusHandler)
		api.POST("/logout", r.logoutHandler)
	}
}

func (r *Router) healthHandler(c *gin.Context) {
	status := http.StatusOK
	dbState := "OK"
	if err := r.db.Health(c.Request.Context()); err != nil {
		status = http.StatusServiceUnavailable
		dbState = err.Error()
	}

	c.JSON(status, gin.H{
		"status":   "OK",
		"service":  "feeddrop",
		"database": dbState,
	})
}
