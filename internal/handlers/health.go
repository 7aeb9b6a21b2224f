package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/projecthub/internal/services"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// HealthHandler reports the state of the database, the access cache and
// the event queue.
type HealthHandler struct {
	db     *gorm.DB
	rdb    redis.UniversalClient
	events services.EventQueue
}

// NewHealthHandler accepts a nil rdb when the access cache is disabled.
func NewHealthHandler(db *gorm.DB, rdb redis.UniversalClient, events services.EventQueue) *HealthHandler {
	return &HealthHandler{db: db, rdb: rdb, events: events}
}

// CheckHealth answers 503 when the database is unreachable. A Redis
// outage only degrades the service.
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	overall := "healthy"

	dbStatus := "ok"
	if sqlDB, err := h.db.DB(); err != nil {
		dbStatus = "error: " + err.Error()
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "error: " + err.Error()
	}
	if dbStatus != "ok" {
		status = http.StatusServiceUnavailable
		overall = "unhealthy"
	}

	cacheStatus := "disabled"
	if h.rdb != nil {
		cacheStatus = "ok"
		if err := h.rdb.Ping(ctx).Err(); err != nil {
			cacheStatus = "error: " + err.Error()
			if overall == "healthy" {
				overall = "degraded"
			}
		}
	}

	queueMode := "sync"
	if h.events != nil && h.events.IsAsync() {
		queueMode = "async (Redis)"
	}

	c.JSON(status, gin.H{
		"status":  overall,
		"service": "projecthub",
		"components": gin.H{
			"database":     dbStatus,
			"access_cache": cacheStatus,
			"queue_mode":   queueMode,
		},
	})
}
