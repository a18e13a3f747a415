package services

import (
	"encoding/json"
	"errors"

	"github.com/alphazee/agencyhub/backend/internal/models"
	"github.com/alphazee/agencyhub/backend/pkg/response"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Actor identifies the caller of a service operation.
type Actor struct {
	UserID    uuid.UUID
	Role      string
	IP        string
	UserAgent string
}

func (a Actor) IsAdmin() bool { return a.Role == models.RoleAdmin }

// SystemActor is used for scheduled jobs and webhooks.
var SystemActor = Actor{Role: "system"}

func (a Actor) userRef() *uuid.UUID {
	if a.UserID == uuid.Nil {
		return nil
	}
	id := a.UserID
	return &id
}

// notFound turns a missing row into a 404 with msg and passes other errors through.
func notFound(err error, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return response.NewNotFound(msg)
	}
	return err
}

// loadProjectFor returns the project when actor is an admin or its client.
func loadProjectFor(db *gorm.DB, actor Actor, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	if err := db.First(&project, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "Project not found")
	}
	if !actor.IsAdmin() && project.ClientID != actor.UserID {
		return nil, response.NewForbidden("Access denied")
	}
	return &project, nil
}

func uuidRef(id uuid.UUID) *uuid.UUID { return &id }

// retryOnDuplicate runs fn up to attempts times while it fails with a unique
// constraint violation, for inserts keyed by a random number.
func retryOnDuplicate(attempts int, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
	}
	return err
}

func parseUUIDRef(s *string) (*uuid.UUID, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// marshalWith encodes v as an object and adds extra top-level keys.
func marshalWith(v interface{}, extra map[string]interface{}) ([]byte, error) {
	base, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	for k, val := range extra {
		raw, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		fields[k] = raw
	}
	return json.Marshal(fields)
}
