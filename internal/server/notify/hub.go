// Package notify fans catalog-change events out to live viewers.
//
// Delivery is best-effort and at-most-once per connected session: a session
// whose buffer is full misses the event and is expected to re-fetch the
// catalog on reconnect. Within one user's group, events arrive in publish
// order; nothing is promised across users.
package notify

import (
	"log/slog"
	"sync"

	"medley/internal/server/database"
)

const sessionBuffer = 32

// Event is a message pushed to subscribed viewers.
type Event struct {
	Type  string                `json:"type"` // "fileList" or "fileAdded"
	File  *database.FileRecord  `json:"file,omitempty"`
	Files []database.FileRecord `json:"files,omitempty"`
}

// Session is one subscriber's handle. Events arrive on C until Unsubscribe
// closes it.
type Session struct {
	User string
	C    chan Event
}

// Hub maintains per-user subscription groups.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[*Session]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{groups: make(map[string]map[*Session]struct{})}
}

// Subscribe joins a new session to the broadcast group for user.
func (h *Hub) Subscribe(user string) *Session {
	s := &Session{User: user, C: make(chan Event, sessionBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	group, ok := h.groups[user]
	if !ok {
		group = make(map[*Session]struct{})
		h.groups[user] = group
	}
	group[s] = struct{}{}
	return s
}

// Unsubscribe removes a session from its group and closes its channel.
// Safe to call once per session.
func (h *Hub) Unsubscribe(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group, ok := h.groups[s.User]
	if !ok {
		return
	}
	if _, member := group[s]; !member {
		return
	}
	delete(group, s)
	if len(group) == 0 {
		delete(h.groups, s.User)
	}
	close(s.C)
}

// Publish delivers event to every session currently subscribed to user,
// and to no others. A session with a full buffer is skipped.
func (h *Hub) Publish(user string, event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.groups[user] {
		select {
		case s.C <- event:
		default:
			slog.Warn("dropping event for slow subscriber", "user", user, "event", event.Type)
		}
	}
}

// Subscribers returns the current size of a user's group.
func (h *Hub) Subscribers(user string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[user])
}
