package services

import (
	"testing"
	"time"

	"github.com/alphazee/agencyhub/backend/internal/models"
	"github.com/alphazee/agencyhub/backend/pkg/pagination"
)

func TestNotify_PushesToSubscribers(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "u@example.com", models.RoleClient)
	ch := env.hub.Subscribe("tab-1", user.ID)
	defer env.hub.Unsubscribe("tab-1")

	env.notify.Notify(user.ID, NotificationInput{Title: "Hello", Message: "World", Type: "system"})

	select {
	case ev := <-ch:
		if ev.Type != "notification" || ev.Notification == nil || ev.Notification.Title != "Hello" {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a pushed notification")
	}
}

func TestBroadcast_TargetsRole(t *testing.T) {
	env := newTestEnv(t)
	admin := env.createUser(t, "admin@example.com", models.RoleAdmin)
	env.createUser(t, "c1@example.com", models.RoleClient)
	env.createUser(t, "c2@example.com", models.RoleClient)
	inactive := env.createUser(t, "c3@example.com", models.RoleClient)
	env.db.Model(inactive).Update("is_active", false)

	n, err := env.notify.Broadcast(actorFor(admin), &BroadcastRequest{Title: "Maintenance", Message: "Tonight", UserRole: "client"})
	if err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}
	if n != 2 {
		t.Errorf("recipients = %d, expected 2", n)
	}

	var rows int64
	env.db.Model(&models.Notification{}).Where("type = ?", "broadcast").Count(&rows)
	if rows != 2 {
		t.Errorf("broadcast rows = %d, expected 2", rows)
	}
	if countActivity(t, env.db, "system.broadcast") != 1 {
		t.Error("expected exactly one system.broadcast activity entry")
	}

	n, err = env.notify.Broadcast(actorFor(admin), &BroadcastRequest{Title: "All", Message: "Hands"})
	if err != nil || n != 3 {
		t.Errorf("broadcast to all = %d, %v; expected 3", n, err)
	}
}

func TestNotificationReadState(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "u@example.com", models.RoleClient)
	other := env.createUser(t, "o@example.com", models.RoleClient)
	for i := 0; i < 3; i++ {
		env.notify.Notify(user.ID, NotificationInput{Title: "n", Message: "m", Type: "system"})
	}

	items, meta, err := env.notify.List(user.ID, &NotificationListRequest{UnreadOnly: true}, pagination.Params{Page: 1, PerPage: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(items) != 2 || meta.Total != 3 || !meta.HasNext {
		t.Errorf("page = %d items, meta %+v", len(items), meta)
	}

	_, err = env.notify.MarkRead(actorFor(other), items[0].ID)
	assertStatus(t, err, 403)

	read, err := env.notify.MarkRead(actorFor(user), items[0].ID)
	if err != nil || !read.IsRead || read.ReadAt == nil {
		t.Fatalf("MarkRead() = %+v, %v", read, err)
	}

	counts, _ := env.notify.Counts(user.ID)
	if counts.Total != 3 || counts.UnreadCount != 2 || counts.Read != 1 {
		t.Errorf("counts = %+v", counts)
	}

	n, err := env.notify.MarkAllRead(user.ID)
	if err != nil || n != 2 {
		t.Errorf("MarkAllRead() = %d, %v; expected 2", n, err)
	}
	counts, _ = env.notify.Counts(user.ID)
	if counts.UnreadCount != 0 {
		t.Errorf("unread after mark all = %d", counts.UnreadCount)
	}
}

func TestPurge(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "u@example.com", models.RoleClient)
	old := time.Now().AddDate(0, 0, -40)
	rows := []models.Notification{
		{UserID: user.ID, Title: "old read", Message: "m", Type: "system", IsRead: true, CreatedAt: old},
		{UserID: user.ID, Title: "old unread", Message: "m", Type: "system", IsRead: false, CreatedAt: old},
		{UserID: user.ID, Title: "new read", Message: "m", Type: "system", IsRead: true},
	}
	if err := env.db.Create(&rows).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err := env.notify.Purge(0)
	assertStatus(t, err, 400)

	n, err := env.notify.Purge(30)
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d, expected 1", n)
	}
}
