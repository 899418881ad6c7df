package notify

import (
	"fmt"
	"testing"

	"medley/internal/server/database"
)

func record(rel string) *database.FileRecord {
	return &database.FileRecord{Username: "alice", RelPath: rel}
}

func TestHub_PublishSubscribe(t *testing.T) {
	t.Run("delivers to every subscriber of the user", func(t *testing.T) {
		h := NewHub()
		a := h.Subscribe("alice")
		b := h.Subscribe("alice")
		defer h.Unsubscribe(a)
		defer h.Unsubscribe(b)

		h.Publish("alice", Event{Type: "fileAdded", File: record("x.jpg")})

		for _, s := range []*Session{a, b} {
			select {
			case e := <-s.C:
				if e.File.RelPath != "x.jpg" {
					t.Errorf("unexpected event payload %q", e.File.RelPath)
				}
			default:
				t.Error("subscriber missed the event")
			}
		}
	})

	t.Run("never crosses namespaces", func(t *testing.T) {
		h := NewHub()
		bob := h.Subscribe("bob")
		defer h.Unsubscribe(bob)

		h.Publish("alice", Event{Type: "fileAdded", File: record("x.jpg")})

		select {
		case <-bob.C:
			t.Error("bob received alice's event")
		default:
		}
	})

	t.Run("preserves publish order within a group", func(t *testing.T) {
		h := NewHub()
		s := h.Subscribe("alice")
		defer h.Unsubscribe(s)

		for i := 0; i < 5; i++ {
			h.Publish("alice", Event{Type: "fileAdded", File: record(fmt.Sprintf("%d.jpg", i))})
		}
		for i := 0; i < 5; i++ {
			e := <-s.C
			if want := fmt.Sprintf("%d.jpg", i); e.File.RelPath != want {
				t.Errorf("event %d: got %q, want %q", i, e.File.RelPath, want)
			}
		}
	})
}

func TestHub_Unsubscribe(t *testing.T) {
	t.Run("closed session receives nothing further", func(t *testing.T) {
		h := NewHub()
		s := h.Subscribe("alice")
		h.Unsubscribe(s)

		h.Publish("alice", Event{Type: "fileAdded", File: record("late.jpg")})

		if _, open := <-s.C; open {
			t.Error("channel should be closed with no pending events")
		}
		if h.Subscribers("alice") != 0 {
			t.Error("group should be empty")
		}
	})

	t.Run("double unsubscribe is safe", func(t *testing.T) {
		h := NewHub()
		s := h.Subscribe("alice")
		h.Unsubscribe(s)
		h.Unsubscribe(s)
	})
}

func TestHub_SlowSubscriber(t *testing.T) {
	h := NewHub()
	s := h.Subscribe("alice")
	defer h.Unsubscribe(s)

	// Publishing past the buffer must drop, never block.
	for i := 0; i < sessionBuffer+10; i++ {
		h.Publish("alice", Event{Type: "fileAdded", File: record("flood.jpg")})
	}

	var received int
	for {
		select {
		case <-s.C:
			received++
			continue
		default:
		}
		break
	}
	if received != sessionBuffer {
		t.Errorf("expected %d buffered events, got %d", sessionBuffer, received)
	}
}
