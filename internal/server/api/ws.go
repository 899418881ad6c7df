package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"medley/internal/server/notify"
	"medley/internal/server/service"
)

// The namespace is an unauthenticated client-supplied string, so there is
// nothing origin checks would protect.
var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsRequest is the client's subscription announcement.
type wsRequest struct {
	Username string `json:"username"`
}

// HandleWS handles GET /ws.
//
// The client announces which user namespace it wants to observe; the server
// replies with that namespace's full catalog snapshot, then pushes
// incremental new-record events for as long as the subscription holds.
// Sending another announcement switches the subscription.
func (h *Handler) HandleWS(c echo.Context) error {
	conn, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Single writer goroutine owns the connection's write side. It keeps
	// draining after a write failure so senders never block on a dead peer.
	out := make(chan notify.Event, 8)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		var werr error
		for event := range out {
			if werr == nil {
				werr = conn.WriteJSON(event)
			}
		}
	}()

	var session *notify.Session
	var forwardDone chan struct{}
	unsubscribe := func() {
		if session == nil {
			return
		}
		h.hub.Unsubscribe(session)
		if forwardDone != nil {
			<-forwardDone
			forwardDone = nil
		}
		session = nil
	}

	defer func() {
		unsubscribe()
		close(out)
		<-writerDone
	}()

	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket closed unexpectedly", "error", err)
			}
			return nil
		}
		if err := service.ValidateUsername(req.Username); err != nil {
			slog.Warn("rejected subscription announcement", "user", req.Username, "error", err)
			continue
		}

		unsubscribe()

		// Subscribe before taking the snapshot so no event published in
		// between is lost; anything racing in sits buffered on the session
		// and is forwarded after the snapshot.
		session = h.hub.Subscribe(req.Username)

		// The request context is unreliable once the connection is
		// hijacked, so snapshot queries run on their own context.
		records, err := h.svc.List(context.Background(), req.Username, "", "")
		if err != nil {
			slog.Error("failed to load catalog snapshot", "user", req.Username, "error", err)
			unsubscribe()
			continue
		}
		out <- notify.Event{Type: "fileList", Files: records}

		forwardDone = make(chan struct{})
		go func(s *notify.Session, done chan struct{}) {
			defer close(done)
			for event := range s.C {
				out <- event
			}
		}(session, forwardDone)
	}
}
