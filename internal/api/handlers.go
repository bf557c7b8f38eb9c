package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// feedHandler returns the current pages, newest-first at index 0
func (r *Router) feedHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"state": r.engine.State(),
		"owner": r.engine.Owner(),
		"busy":  r.engine.Busy(),
		"pages": r.engine.Pages(),
	})
}

// refreshHandler triggers a newer-at-top fetch, the pull-to-refresh analog
func (r *Router) refreshHandler(c *gin.Context) {
	if err := r.engine.Refresh(c.Request.Context()); err != nil {
		r.logger.Warn("Refresh failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"busy": r.engine.Busy()})
}

// olderHandler triggers an older-at-bottom fetch, the scroll-near-end analog
func (r *Router) olderHandler(c *gin.Context) {
	if err := r.engine.LoadOlder(c.Request.Context()); err != nil {
		r.logger.Warn("Older fetch failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"busy": r.engine.Busy()})
}

// searchHandler searches remotely when online, over the mirror otherwise
func (r *Router) searchHandler(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter q"})
		return
	}

	page, err := r.engine.Search(c.Request.Context(), query)
	if err != nil {
		r.logger.Warn("Search failed", zap.String("query", query), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": page})
}

// avatarHandler serves a cached avatar; the presentation layer falls back to
// its placeholder on 404
func (r *Router) avatarHandler(c *gin.Context) {
	id := c.Param("id")

	img, ok := r.images.Value(id)
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	c.Data(http.StatusOK, "image/png", img)
}

// statusHandler reports engine state and reachability
func (r *Router) statusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"state":  r.engine.State(),
		"owner":  r.engine.Owner(),
		"busy":   r.engine.Busy(),
		"online": r.monitor.IsOnline(),
	})
}

// logoutHandler revokes the session and clears feed state
func (r *Router) logoutHandler(c *gin.Context) {
	if err := r.engine.Logout(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": r.engine.State()})
}
