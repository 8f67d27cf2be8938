// Package wsfeed exposes a Hub subscription over a WebSocket endpoint.
// Each connection subscribes one user to the hub and streams deliveries
// to the client as JSON text frames until the client disconnects.
package wsfeed

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/xraph/calcq/notify"
)

// Handler upgrades HTTP requests to WebSocket delivery feeds.
type Handler struct {
	hub    *notify.Hub
	logger *slog.Logger

	// userFromRequest extracts the subscribing user from the request.
	// The default reads the "user" query parameter.
	userFromRequest func(*http.Request) string
}

// Option configures a Handler.
type Option func(*Handler)

// WithUserResolver overrides how the subscribing user is derived from
// the upgrade request (e.g. from a session token instead of a query
// parameter).
func WithUserResolver(fn func(*http.Request) string) Option {
	return func(h *Handler) { h.userFromRequest = fn }
}

// NewHandler creates a WebSocket feed handler on the given hub.
func NewHandler(hub *notify.Hub, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		hub:    hub,
		logger: logger,
		userFromRequest: func(r *http.Request) string {
			return r.URL.Query().Get("user")
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := h.userFromRequest(r)
	if userID == "" {
		http.Error(w, "user required", http.StatusBadRequest)
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		h.logger.Warn("websocket upgrade failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}

	sub := h.hub.Subscribe(userID)
	h.logger.Info("feed connected", slog.String("user_id", userID))

	// Reader goroutine: we never expect client frames, but reading is
	// how we notice the peer going away. Unsubscribing closes sub.C()
	// and unblocks the writer loop below.
	go func() {
		defer h.hub.Unsubscribe(sub)
		for {
			if _, err := wsutil.ReadClientText(conn); err != nil {
				return
			}
		}
	}()

	defer func() {
		h.hub.Unsubscribe(sub)
		conn.Close()
		h.logger.Info("feed disconnected", slog.String("user_id", userID))
	}()

	for d := range sub.C() {
		data, err := json.Marshal(d)
		if err != nil {
			h.logger.Error("marshal delivery", slog.String("error", err.Error()))
			continue
		}
		if err := wsutil.WriteServerText(conn, data); err != nil {
			return
		}
	}
}
