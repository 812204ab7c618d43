package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/pawcare-labs/pawcare/internal/agent"
	"github.com/pawcare-labs/pawcare/internal/identity"
	"github.com/pawcare-labs/pawcare/internal/store"
	"github.com/pawcare-labs/pawcare/internal/triage"
)

const (
	maxFrameBytes = 16 << 10
	writeTimeout  = 10 * time.Second
)

// Client frame types.
const (
	frameSend       = "send"
	frameQuickReply = "quick_reply"
	frameReset      = "reset"
	framePing       = "ping"
)

// Server frame types.
const (
	frameSnapshot = "snapshot"
	frameTurn     = "turn"
	frameError    = "error"
	framePong     = "pong"
)

// clientFrame is a message sent by the browser.
type clientFrame struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	ID   string `json:"id,omitempty"`
}

// serverFrame is a message sent to the browser. Exactly one payload field is
// set, matching Type.
type serverFrame struct {
	Type     string               `json:"type"`
	Snapshot *triage.Snapshot     `json:"snapshot,omitempty"`
	Turn     *agent.TurnResponse  `json:"turn,omitempty"`
	Reset    *agent.ResetResponse `json:"reset,omitempty"`
	Error    string               `json:"error,omitempty"`
}

// WebSocketHandler serves triage sessions over a WebSocket.
type WebSocketHandler struct {
	svc           *agent.Service
	repo          store.Repository
	sm            *SessionManager
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new WebSocket handler. repo may be nil.
func NewWebSocketHandler(svc *agent.Service, repo store.Repository, sm *SessionManager, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		svc:           svc,
		repo:          repo,
		sm:            sm,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, ok := identity.FromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	userID, sessionID := id.UserID, id.SessionID
	slog.Info("WebSocket connection request", "user_id", userID, "session_id", sessionID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	ws.SetReadLimit(maxFrameBytes)
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	h.sm.Register(userID, sessionID, ws)
	defer h.sm.Unregister(userID, sessionID, ws)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess := h.svc.Session(userID, sessionID)
	snap := sess.Snapshot()
	if err := h.write(ctx, ws, serverFrame{Type: frameSnapshot, Snapshot: &snap}); err != nil {
		slog.Debug("Failed to send snapshot", "error", err, "user_id", userID)
		return
	}

	var wg sync.WaitGroup
	h.readLoop(ctx, ws, &wg, userID, sessionID)
	wg.Wait()
	slog.Info("Chat session ended", "user_id", userID, "session_id", sessionID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

// readLoop dispatches client frames until the connection closes. Sends run
// in their own goroutine so a second send while one is generating gets an
// immediate busy error instead of queueing behind it.
func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, wg *sync.WaitGroup, userID, sessionID string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "user_id", userID)
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.writeError(ctx, ws, "invalid frame")
			continue
		}

		sess := h.svc.Session(userID, sessionID)
		switch frame.Type {
		case frameSend, frameQuickReply:
			wg.Add(1)
			go func() {
				defer wg.Done()
				h.handleTurn(ctx, ws, sess, frame)
			}()
		case frameReset:
			msg := sess.Reset(ctx)
			reset := agent.ResetResponse{Message: msg, State: sess.State()}
			if err := h.write(ctx, ws, serverFrame{Type: frameReset, Reset: &reset}); err != nil {
				slog.Debug("Failed to send reset", "error", err)
			}
		case framePing:
			if err := h.write(ctx, ws, serverFrame{Type: framePong}); err != nil {
				slog.Debug("Failed to send pong", "error", err)
			}
		default:
			h.writeError(ctx, ws, "unknown frame type")
			continue
		}

		h.touch(userID)
	}
}

func (h *WebSocketHandler) handleTurn(ctx context.Context, ws *websocket.Conn, sess *triage.Session, frame clientFrame) {
	// The reply belongs in the log even if the socket drops mid-generation.
	turnCtx := context.WithoutCancel(ctx)

	var (
		reply triage.Reply
		err   error
	)
	if frame.Type == frameQuickReply {
		reply, err = sess.QuickReply(turnCtx, frame.ID)
	} else {
		reply, err = sess.Send(turnCtx, frame.Text)
	}

	switch {
	case errors.Is(err, triage.ErrEmptyMessage):
		h.writeError(ctx, ws, "message is required")
		return
	case errors.Is(err, triage.ErrBusy):
		h.writeError(ctx, ws, "a reply is still being generated")
		return
	case errors.Is(err, triage.ErrUnknownQuickReply):
		h.writeError(ctx, ws, "unknown quick reply")
		return
	case err != nil:
		slog.Error("Triage send failed", "error", err)
		h.writeError(ctx, ws, "internal error")
		return
	}

	turn := agent.NewTurnResponse(reply)
	if err := h.write(ctx, ws, serverFrame{Type: frameTurn, Turn: &turn}); err != nil {
		slog.Debug("Failed to send turn", "error", err)
	}
}

func (h *WebSocketHandler) write(ctx context.Context, ws *websocket.Conn, frame serverFrame) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, ws, frame)
}

func (h *WebSocketHandler) writeError(ctx context.Context, ws *websocket.Conn, msg string) {
	if err := h.write(ctx, ws, serverFrame{Type: frameError, Error: msg}); err != nil {
		slog.Debug("Failed to send error frame", "error", err)
	}
}

// touch updates last seen asynchronously with timeout.
func (h *WebSocketHandler) touch(userID string) {
	if h.repo == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.repo.UpdateLastSeen(ctx, userID, time.Now()); err != nil {
			slog.Warn("Failed to update last seen", "error", err)
		}
	}()
}
