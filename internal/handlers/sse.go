package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alphazee/agencyhub/backend/internal/middleware"
	"github.com/alphazee/agencyhub/backend/internal/services"
	"github.com/alphazee/agencyhub/backend/internal/utils"
	"github.com/alphazee/agencyhub/backend/pkg/logger"
	"github.com/alphazee/agencyhub/backend/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	sseKeepAlive   = 25 * time.Second
	sseReconnectMs = 5000
)

// SSEHandler streams notification events to the signed-in user
type SSEHandler struct {
	hub *services.SSEHub
	db  *gorm.DB
}

func NewSSEHandler(hub *services.SSEHub, db *gorm.DB) *SSEHandler {
	return &SSEHandler{hub: hub, db: db}
}

// StreamNotifications accepts the token as a query parameter because
// EventSource cannot set headers.
// GET /api/events/notifications
func (h *SSEHandler) StreamNotifications(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token, _ = middleware.BearerToken(c)
	}
	if token == "" {
		response.Unauthorized(c, "authorization required")
		return
	}

	claims, err := utils.ParseToken(token)
	if err != nil {
		response.Unauthorized(c, "invalid or expired token")
		return
	}
	if _, err := middleware.LoadPrincipal(c.Request.Context(), h.db, claims.UserID); err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	streamID := uuid.NewString()
	events := h.hub.Subscribe(streamID, claims.UserID)
	defer h.hub.Unsubscribe(streamID)

	log := logger.FromContext(c).With().Str("stream_id", streamID).Str("user_id", claims.UserID.String()).Logger()
	log.Debug().Int("streams", h.hub.ClientCount()).Msg("[SSE] stream opened")

	// Tell EventSource how long to back off before reconnecting.
	fmt.Fprintf(c.Writer, "retry: %d\nevent: connected\ndata: {\"stream_id\":%q}\n\n", sseReconnectMs, streamID)
	c.Writer.Flush()

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				log.Debug().Msg("[SSE] stream closed by hub")
				return false
			}
			data, err := json.Marshal(event)
			if err != nil {
				log.Error().Err(err).Msg("[SSE] marshal event")
				return true
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			return true
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			return true
		case <-c.Request.Context().Done():
			log.Debug().Msg("[SSE] client went away")
			return false
		}
	})
}
