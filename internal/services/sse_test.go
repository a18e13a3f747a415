package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

func closedWithin(t *testing.T, ch <-chan NotificationEvent) bool {
	t.Helper()
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return true
			}
		case <-time.After(time.Second):
			return false
		}
	}
}

func TestSSEHub_SubscribeAndUnsubscribe(t *testing.T) {
	hub := NewSSEHub()
	user := uuid.New()

	hub.Subscribe("tab1", user)
	tab2 := hub.Subscribe("tab2", user)
	if hub.ClientCount() != 2 {
		t.Fatalf("ClientCount() = %d, expected 2", hub.ClientCount())
	}

	hub.Unsubscribe("tab2")
	hub.Unsubscribe("unknown")
	if hub.ClientCount() != 1 {
		t.Errorf("ClientCount() = %d, expected 1", hub.ClientCount())
	}
	if !closedWithin(t, tab2) {
		t.Error("unsubscribed channel should be closed")
	}
}

func TestSSEHub_PublishToOnlyReachesUser(t *testing.T) {
	hub := NewSSEHub()
	alice, bob := uuid.New(), uuid.New()
	aliceTab1 := hub.Subscribe("a1", alice)
	aliceTab2 := hub.Subscribe("a2", alice)
	bobTab := hub.Subscribe("b1", bob)

	count := int64(3)
	hub.PublishTo(alice, NotificationEvent{Type: "unread_count", UnreadCount: &count})

	for _, ch := range []<-chan NotificationEvent{aliceTab1, aliceTab2} {
		select {
		case ev := <-ch:
			if ev.Type != "unread_count" || *ev.UnreadCount != 3 {
				t.Errorf("event = %+v", ev)
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for event")
		}
	}
	select {
	case ev := <-bobTab:
		t.Errorf("bob should not receive alice's event, got %+v", ev)
	default:
	}
}

func TestSSEHub_FullBufferDropsEvents(t *testing.T) {
	hub := NewSSEHub()
	user := uuid.New()
	ch := hub.Subscribe("slow", user)

	for i := 0; i < streamBuffer+10; i++ {
		hub.PublishTo(user, NotificationEvent{Type: "notification"})
	}
	if len(ch) != streamBuffer {
		t.Errorf("buffered = %d, expected %d", len(ch), streamBuffer)
	}
}

func TestSSEHub_EvictsOldestStream(t *testing.T) {
	hub := NewSSEHub()
	user := uuid.New()

	first := hub.Subscribe("tab0", user)
	for i := 1; i < maxStreamsPerUser; i++ {
		hub.Subscribe(fmt.Sprintf("tab%d", i), user)
	}
	hub.Subscribe("newest", user)

	if hub.ClientCount() != maxStreamsPerUser {
		t.Errorf("ClientCount() = %d, expected %d", hub.ClientCount(), maxStreamsPerUser)
	}
	if !closedWithin(t, first) {
		t.Error("oldest stream should be closed")
	}
	hub.Unsubscribe("tab0")
}

func TestSSEHub_Close(t *testing.T) {
	hub := NewSSEHub()
	a := hub.Subscribe("a", uuid.New())
	b := hub.Subscribe("b", uuid.New())

	hub.Close()
	if !closedWithin(t, a) || !closedWithin(t, b) {
		t.Fatal("Close should end every stream")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d after Close", hub.ClientCount())
	}
	if !closedWithin(t, hub.Subscribe("late", uuid.New())) {
		t.Error("subscribing after Close should yield a closed channel")
	}
	hub.Unsubscribe("a")
}
