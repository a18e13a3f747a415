package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alphazee/agencyhub/backend/internal/models"
	"github.com/alphazee/agencyhub/backend/pkg/pagination"
	"github.com/alphazee/agencyhub/backend/pkg/response"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageService struct {
	db     *gorm.DB
	notify *NotificationService
}

func NewMessageService(db *gorm.DB, notify *NotificationService) *MessageService {
	return &MessageService{db: db, notify: notify}
}

type SendMessageRequest struct {
	ProjectID   uuid.UUID `json:"project_id" binding:"required"`
	Content     string    `json:"content" binding:"required"`
	Subject     string    `json:"subject"`
	MessageType string    `json:"message_type"`
}

// recipientFor picks the other side of a project conversation: the client
// for staff, otherwise the assigned staff member or any active admin.
func (s *MessageService) recipientFor(actor Actor, project *models.Project) (uuid.UUID, error) {
	if actor.IsAdmin() {
		return project.ClientID, nil
	}
	if project.AssignedTo != nil {
		return *project.AssignedTo, nil
	}
	var admin models.User
	err := s.db.Where("role = ? AND is_active = ?", models.RoleAdmin, true).Order("created_at").First(&admin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, response.NewBadRequest("No admin available to receive message")
	}
	if err != nil {
		return uuid.Nil, err
	}
	return admin.ID, nil
}

func (s *MessageService) Send(actor Actor, req *SendMessageRequest) (*models.Message, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, response.NewBadRequest("Content is required")
	}
	msgType := req.MessageType
	if msgType == "" {
		msgType = "general"
	}
	if !models.MessageTypes[msgType] {
		return nil, response.NewBadRequest("Invalid message type")
	}
	project, err := loadProjectFor(s.db, actor, req.ProjectID)
	if err != nil {
		return nil, err
	}
	recipientID, err := s.recipientFor(actor, project)
	if err != nil {
		return nil, err
	}

	msg := models.Message{
		ProjectID:   project.ID,
		SenderID:    actor.UserID,
		RecipientID: recipientID,
		Subject:     req.Subject,
		Content:     req.Content,
		MessageType: msgType,
	}
	if err := s.db.Create(&msg).Error; err != nil {
		return nil, err
	}

	subject := msg.Subject
	if subject == "" {
		subject = project.Name
	}
	s.notify.Notify(recipientID, NotificationInput{
		Title:      "New Message",
		Message:    fmt.Sprintf("New message about %s: %s", project.Name, subject),
		Type:       "message",
		EntityType: "message",
		EntityID:   &msg.ID,
		ActionURL:  "/dashboard/messages/" + msg.ID.String(),
	})
	return s.withRelations(msg.ID)
}

func (s *MessageService) withRelations(id uuid.UUID) (*models.Message, error) {
	var msg models.Message
	err := s.db.Preload("Sender").Preload("Recipient").Preload("Project").First(&msg, "id = ?", id).Error
	return &msg, err
}

// visible loads a message the actor took part in. Admins see everything.
func (s *MessageService) visible(actor Actor, id uuid.UUID) (*models.Message, error) {
	var msg models.Message
	if err := s.db.First(&msg, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "Message not found")
	}
	if !actor.IsAdmin() && msg.SenderID != actor.UserID && msg.RecipientID != actor.UserID {
		return nil, response.NewForbidden("Access denied")
	}
	return &msg, nil
}

type ReplyMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// Reply answers parent on the same project and type, addressed to the other party.
func (s *MessageService) Reply(actor Actor, parentID uuid.UUID, req *ReplyMessageRequest) (*models.Message, error) {
	parent, err := s.visible(actor, parentID)
	if err != nil {
		return nil, err
	}
	recipientID := parent.SenderID
	if actor.UserID == parent.SenderID {
		recipientID = parent.RecipientID
	}
	subject := parent.Subject
	if !strings.HasPrefix(subject, "Re: ") {
		subject = "Re: " + subject
	}

	reply := models.Message{
		ProjectID:       parent.ProjectID,
		SenderID:        actor.UserID,
		RecipientID:     recipientID,
		Subject:         subject,
		Content:         req.Content,
		MessageType:     parent.MessageType,
		ParentMessageID: &parent.ID,
	}
	if err := s.db.Create(&reply).Error; err != nil {
		return nil, err
	}
	s.notify.Notify(recipientID, NotificationInput{
		Title:      "New Reply",
		Message:    "You have a new reply: " + subject,
		Type:       "message_reply",
		EntityType: "message",
		EntityID:   &parent.ID,
		ActionURL:  "/dashboard/messages/" + parent.ID.String(),
	})
	return s.withRelations(reply.ID)
}

type MessageListRequest struct {
	ProjectID  string `form:"project_id"`
	Type       string `form:"type"`
	UnreadOnly bool   `form:"unread_only"`
}

// List returns top-level messages newest first.
func (s *MessageService) List(actor Actor, req *MessageListRequest, p pagination.Params) ([]models.Message, pagination.Meta, error) {
	query := s.db.Model(&models.Message{}).Where("parent_message_id IS NULL")
	if !actor.IsAdmin() {
		query = query.Where("sender_id = ? OR recipient_id = ?", actor.UserID, actor.UserID)
	}
	if req.ProjectID != "" {
		projectID, err := uuid.Parse(req.ProjectID)
		if err != nil {
			return nil, pagination.Meta{}, response.NewBadRequest("Invalid project_id")
		}
		if _, err := loadProjectFor(s.db, actor, projectID); err != nil {
			return nil, pagination.Meta{}, err
		}
		query = query.Where("project_id = ?", projectID)
	}
	if req.Type != "" {
		query = query.Where("message_type = ?", req.Type)
	}
	if req.UnreadOnly {
		query = query.Where("is_read = ? AND recipient_id = ?", false, actor.UserID)
	}
	return pagination.Paginate[models.Message](query, p,
		pagination.OrderBy("created_at DESC"),
		pagination.Preload("Sender"), pagination.Preload("Recipient"), pagination.Preload("Project"))
}

// Get returns a message with its replies, marking it read for the recipient.
func (s *MessageService) Get(actor Actor, id uuid.UUID) (*models.Message, error) {
	msg, err := s.visible(actor, id)
	if err != nil {
		return nil, err
	}
	if msg.RecipientID == actor.UserID && !msg.IsRead {
		if err := s.markRead(msg); err != nil {
			return nil, err
		}
	}
	var full models.Message
	err = s.db.Preload("Sender").Preload("Recipient").Preload("Project").
		Preload("Replies", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Replies.Sender").
		First(&full, "id = ?", id).Error
	return &full, err
}

func (s *MessageService) markRead(msg *models.Message) error {
	now := time.Now()
	if err := s.db.Model(msg).Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error; err != nil {
		return err
	}
	msg.IsRead = true
	msg.ReadAt = &now
	return nil
}

func (s *MessageService) MarkRead(actor Actor, id uuid.UUID) (*models.Message, error) {
	var msg models.Message
	if err := s.db.First(&msg, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "Message not found")
	}
	if msg.RecipientID != actor.UserID {
		return nil, response.NewForbidden("Access denied")
	}
	if !msg.IsRead {
		if err := s.markRead(&msg); err != nil {
			return nil, err
		}
	}
	return &msg, nil
}

func (s *MessageService) UnreadCount(actor Actor) (int64, error) {
	var n int64
	err := s.db.Model(&models.Message{}).
		Where("recipient_id = ? AND is_read = ?", actor.UserID, false).
		Count(&n).Error
	return n, err
}
