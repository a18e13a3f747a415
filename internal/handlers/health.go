package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/alphazee/agencyhub/backend/internal/services"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const healthPingTimeout = 2 * time.Second

// HealthHandler reports the state of the database, queue and event hub.
type HealthHandler struct {
	db      *gorm.DB
	queue   services.TaskQueue
	hub     *services.SSEHub
	started time.Time
}

func NewHealthHandler(db *gorm.DB, queue services.TaskQueue, hub *services.SSEHub) *HealthHandler {
	return &HealthHandler{db: db, queue: queue, hub: hub, started: time.Now()}
}

func (h *HealthHandler) pingDB(ctx context.Context) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()
	start := time.Now()
	sqlDB, err := h.db.DB()
	if err != nil {
		return 0, err
	}
	err = sqlDB.PingContext(ctx)
	return time.Since(start), err
}

// CheckHealth
// GET /api/health
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	database := gin.H{"status": "ok"}
	status, overall := http.StatusOK, "healthy"
	if latency, err := h.pingDB(c.Request.Context()); err != nil {
		database["status"] = "error"
		database["error"] = err.Error()
		status, overall = http.StatusServiceUnavailable, "unhealthy"
	} else {
		database["latency_ms"] = latency.Milliseconds()
	}

	queueMode := "sync"
	if h.queue != nil && h.queue.IsAsync() {
		queueMode = "async (Redis)"
	}

	c.JSON(status, gin.H{
		"status":         overall,
		"service":        "agencyhub",
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"components": gin.H{
			"database":    database,
			"queue_mode":  queueMode,
			"sse_clients": h.hub.ClientCount(),
		},
	})
}
