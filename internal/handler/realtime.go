package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/templui/thrive/internal/ctxkeys"
	"github.com/templui/thrive/internal/realtime"
)

const (
	sseKeepAlive   = 25 * time.Second
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

type RealtimeHandler struct {
	hub       *realtime.Hub
	origins   []string
	keepAlive time.Duration
	upgrader  websocket.Upgrader
}

// NewRealtimeHandler serves hub subscriptions over SSE and WebSocket.
// origins lists the cross-origin pages allowed to open a WebSocket.
func NewRealtimeHandler(hub *realtime.Hub, origins []string) *RealtimeHandler {
	h := &RealtimeHandler{
		hub:       hub,
		origins:   origins,
		keepAlive: sseKeepAlive,
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

func (h *RealtimeHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	return slices.Contains(h.origins, "*") || slices.Contains(h.origins, origin)
}

// eventTypes reads the ?types=a,b filter.
func eventTypes(r *http.Request) []string {
	raw := r.URL.Query().Get("types")
	if raw == "" {
		return nil
	}
	var types []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}
	return types
}

// Events streams the user's events as Server-Sent Events.
func (h *RealtimeHandler) Events(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal", "streaming unsupported")
		return
	}

	// Streams outlive the server write timeout.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		slog.Debug("failed to clear write deadline", "error", err)
	}

	sub := h.hub.Subscribe(user.ID, eventTypes(r)...)
	defer h.hub.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "retry: 5000\n: connected %s\n\n", sub.ID)
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				slog.Warn("failed to encode event", "error", err, "type", ev.Type)
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Type, payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// WebSocket streams the user's events over a WebSocket. All writes happen on
// this goroutine; a reader goroutine only handles pongs and close frames.
func (h *RealtimeHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err, "user_id", user.ID)
		return
	}
	defer func() { _ = conn.Close() }()

	sub := h.hub.Subscribe(user.ID, eventTypes(r)...)
	defer h.hub.Unsubscribe(sub)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("websocket read failed", "error", err, "user_id", user.ID)
				}
				return
			}
		}
	}()

	write := func(v any) error {
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return err
		}
		return conn.WriteJSON(v)
	}

	err = write(map[string]string{
		"type":            "connected",
		"subscription_id": sub.ID,
	})
	if err != nil {
		slog.Warn("failed to send welcome message", "error", err, "user_id", user.ID)
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case ev, ok := <-sub.Events():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(writeWait))
				return
			}
			if err := write(ev); err != nil {
				slog.Debug("websocket write failed", "error", err, "user_id", user.ID)
				return
			}
		}
	}
}
