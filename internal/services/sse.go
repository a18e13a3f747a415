package services

import (
	"sync"

	"github.com/alphazee/agencyhub/backend/internal/models"
	"github.com/google/uuid"
)

const (
	streamBuffer      = 32
	maxStreamsPerUser = 5
)

// NotificationEvent is pushed to a user's open event streams.
type NotificationEvent struct {
	Type         string               `json:"type"` // notification, unread_count
	Notification *models.Notification `json:"notification,omitempty"`
	UnreadCount  *int64               `json:"unread_count,omitempty"`
}

type stream struct {
	id     string
	userID uuid.UUID
	seq    uint64
	ch     chan NotificationEvent
}

// SSEHub fans notification events out to each user's open streams. A user
// holds at most maxStreamsPerUser streams; opening another closes the oldest.
type SSEHub struct {
	mu      sync.RWMutex
	byID    map[string]*stream
	byUser  map[uuid.UUID]map[string]*stream
	nextSeq uint64
	closed  bool
}

func NewSSEHub() *SSEHub {
	return &SSEHub{
		byID:   make(map[string]*stream),
		byUser: make(map[uuid.UUID]map[string]*stream),
	}
}

// Subscribe registers stream id for userID. The returned channel is closed on
// Unsubscribe, eviction, or Close.
func (h *SSEHub) Subscribe(id string, userID uuid.UUID) <-chan NotificationEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan NotificationEvent, streamBuffer)
	if h.closed {
		close(ch)
		return ch
	}

	streams := h.byUser[userID]
	if streams == nil {
		streams = make(map[string]*stream)
		h.byUser[userID] = streams
	}
	if len(streams) >= maxStreamsPerUser {
		var oldest *stream
		for _, s := range streams {
			if oldest == nil || s.seq < oldest.seq {
				oldest = s
			}
		}
		h.removeLocked(oldest)
	}

	h.nextSeq++
	s := &stream{id: id, userID: userID, seq: h.nextSeq, ch: ch}
	h.byID[id] = s
	streams[id] = s
	return ch
}

func (h *SSEHub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.byID[id]; ok {
		h.removeLocked(s)
	}
}

func (h *SSEHub) removeLocked(s *stream) {
	close(s.ch)
	delete(h.byID, s.id)
	if streams := h.byUser[s.userID]; streams != nil {
		delete(streams, s.id)
		if len(streams) == 0 {
			delete(h.byUser, s.userID)
		}
	}
}

// PublishTo delivers event to every stream userID has open. Slow streams with
// a full buffer miss the event rather than block the publisher.
func (h *SSEHub) PublishTo(userID uuid.UUID, event NotificationEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range h.byUser[userID] {
		select {
		case s.ch <- event:
		default:
		}
	}
}

func (h *SSEHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byID)
}

// Close ends every stream so handlers return before the HTTP server drains.
func (h *SSEHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.byID {
		close(s.ch)
	}
	h.byID = make(map[string]*stream)
	h.byUser = make(map[uuid.UUID]map[string]*stream)
	h.closed = true
}
