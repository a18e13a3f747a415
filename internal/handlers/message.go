package handlers

import (
	"github.com/alphazee/agencyhub/backend/internal/middleware"
	"github.com/alphazee/agencyhub/backend/internal/services"
	"github.com/alphazee/agencyhub/backend/pkg/pagination"
	"github.com/alphazee/agencyhub/backend/pkg/response"
	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	messageService      *services.MessageService
	notificationService *services.NotificationService
}

func NewMessageHandler(messageService *services.MessageService, notificationService *services.NotificationService) *MessageHandler {
	return &MessageHandler{
		messageService:      messageService,
		notificationService: notificationService,
	}
}

// List returns top-level messages visible to the caller
// GET /api/messages
func (h *MessageHandler) List(c *gin.Context) {
	var req services.MessageListRequest
	if !bindQuery(c, &req) {
		return
	}

	messages, meta, err := h.messageService.List(actorFrom(c), &req, pagination.FromQuery(c, pagination.DefaultPerPage))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, messages, meta)
}

// GetByID marks the message read for its recipient and includes replies
// GET /api/messages/:id
func (h *MessageHandler) GetByID(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	msg, err := h.messageService.Get(actorFrom(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"message": msg})
}

// Send
// POST /api/messages
func (h *MessageHandler) Send(c *gin.Context) {
	var req services.SendMessageRequest
	if !bindJSON(c, &req) {
		return
	}

	msg, err := h.messageService.Send(actorFrom(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"message": "Message sent successfully", "data": msg})
}

// Reply
// POST /api/messages/:id/reply
func (h *MessageHandler) Reply(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req services.ReplyMessageRequest
	if !bindJSON(c, &req) {
		return
	}

	msg, err := h.messageService.Reply(actorFrom(c), id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gin.H{"message": "Reply sent successfully", "data": msg})
}

// MarkRead (recipient only)
// PUT /api/messages/:id/read
func (h *MessageHandler) MarkRead(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	if _, err := h.messageService.MarkRead(actorFrom(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "Message marked as read")
}

// UnreadCount
// GET /api/messages/unread-count
func (h *MessageHandler) UnreadCount(c *gin.Context) {
	n, err := h.messageService.UnreadCount(actorFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"unread_count": n})
}

// ListNotifications
// GET /api/messages/notifications
func (h *MessageHandler) ListNotifications(c *gin.Context) {
	var req services.NotificationListRequest
	if !bindQuery(c, &req) {
		return
	}

	items, meta, err := h.notificationService.List(middleware.GetUserID(c), &req, pagination.FromQuery(c, pagination.DefaultPerPage))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, items, meta)
}

// MarkNotificationRead (owner only)
// PUT /api/messages/notifications/:id/read
func (h *MessageHandler) MarkNotificationRead(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	if _, err := h.notificationService.MarkRead(actorFrom(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "Notification marked as read")
}

// NotificationCounts
// GET /api/messages/notifications/unread-count
func (h *MessageHandler) NotificationCounts(c *gin.Context) {
	counts, err := h.notificationService.Counts(middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{
		"unread_count": counts.UnreadCount,
		"total":        counts.Total,
		"read":         counts.Read,
	})
}

// MarkAllNotificationsRead
// PUT /api/messages/notifications/mark-all-read
func (h *MessageHandler) MarkAllNotificationsRead(c *gin.Context) {
	n, err := h.notificationService.MarkAllRead(middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"message": "All notifications marked as read", "updated_count": n})
}
