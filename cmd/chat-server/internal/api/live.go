package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coregx/livechat"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

// WebSocket timings.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// HandleLiveFeed handles GET /api/v1/messages/live.
// It upgrades to WebSocket and writes every newly posted message as one JSON
// text frame. Frames sent by the client are ignored.
func (h *Handler) HandleLiveFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.respondError(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	// Subscribe before upgrading so a closed hub can still answer with JSON.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	feed, err := h.gateway.OpenLiveFeed(ctx)
	if err != nil {
		h.respondServiceError(w, err, "Failed to open live feed")
		return
	}
	defer feed.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error response.
		h.logger.Warnf("WebSocket upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}
	defer conn.Close()

	h.logger.Infof("Live feed connected: id=%s, remote=%s", feed.ID(), r.RemoteAddr)

	// The read pump only handles control frames and notices disconnects.
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.writePump(ctx, conn, feed)
	h.logger.Infof("Live feed disconnected: id=%s", feed.ID())
}

func (h *Handler) writePump(ctx context.Context, conn *websocket.Conn, feed livechat.Feed) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-feed.Messages():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debugf("Live feed %s write failed: %v", feed.ID(), err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// newOriginChecker builds the upgrader's CheckOrigin function.
func newOriginChecker(allowed []string) func(r *http.Request) bool {
	normalized := lo.FilterMap(allowed, func(origin string, _ int) (string, bool) {
		return normalizeOrigin(strings.TrimSpace(origin))
	})
	allowAll := lo.Contains(allowed, "*")

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowAll {
			// Non-browser clients do not send Origin.
			return true
		}
		o, ok := normalizeOrigin(origin)
		if !ok {
			return false
		}
		if len(normalized) == 0 {
			u, err := url.Parse(o)
			return err == nil && strings.EqualFold(u.Host, r.Host)
		}
		return lo.Contains(normalized, o)
	}
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}
