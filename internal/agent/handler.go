package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/pawcare-labs/pawcare/internal/api"
	"github.com/pawcare-labs/pawcare/internal/identity"
	"github.com/pawcare-labs/pawcare/internal/store"
	"github.com/pawcare-labs/pawcare/internal/triage"
)

// DefaultMaxRequestBodySize caps the body of triage requests (64KB).
const DefaultMaxRequestBodySize = 64 << 10

const lastSeenTimeout = 5 * time.Second

// Handler serves the triage HTTP API.
type Handler struct {
	svc         *Service
	repo        store.Repository
	maxBodySize int64
}

// NewHandler creates a triage handler. repo may be nil; the events endpoint
// then answers 503.
func NewHandler(svc *Service, repo store.Repository, maxBodySize int64) *Handler {
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxRequestBodySize
	}
	return &Handler{svc: svc, repo: repo, maxBodySize: maxBodySize}
}

// RegisterRoutes registers triage routes (requires the identity middleware).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/triage", func(r chi.Router) {
		r.Post("/messages", h.HandleSend)
		r.Get("/quick-replies", h.HandleListQuickReplies)
		r.Post("/quick-replies/{id}", h.HandleQuickReply)
		r.Post("/reset", h.HandleReset)
		r.Get("/session", h.HandleSession)
		r.Get("/events", h.HandleEvents)
	})
}

// HandleSend handles POST /api/triage/messages.
func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	var req SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	slog.Info("Triage message",
		"user_id", userID,
		"session_id", sessionID,
		"message_length", len(req.Text),
	)

	// A client hanging up must not turn the generation call into a fallback.
	sess := h.svc.Session(userID, sessionID)
	reply, err := sess.Send(context.WithoutCancel(r.Context()), req.Text)
	h.writeReply(w, reply, err)
	h.touch(r.Context(), userID)
}

// HandleListQuickReplies handles GET /api/triage/quick-replies.
func (h *Handler) HandleListQuickReplies(w http.ResponseWriter, _ *http.Request) {
	api.JSON(w, http.StatusOK, triage.QuickReplies())
}

// HandleQuickReply handles POST /api/triage/quick-replies/{id}.
func (h *Handler) HandleQuickReply(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if _, known := triage.LookupQuickReply(id); !known {
		api.Error(w, http.StatusNotFound, "unknown quick reply")
		return
	}

	sess := h.svc.Session(userID, sessionID)
	reply, err := sess.QuickReply(context.WithoutCancel(r.Context()), id)
	h.writeReply(w, reply, err)
	h.touch(r.Context(), userID)
}

// HandleReset handles POST /api/triage/reset.
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	sess := h.svc.Session(userID, sessionID)
	msg := sess.Reset(r.Context())
	slog.Info("Triage session reset", "user_id", userID, "session_id", sessionID)

	api.JSON(w, http.StatusOK, ResetResponse{Message: msg, State: sess.State()})
	h.touch(r.Context(), userID)
}

// HandleSession handles GET /api/triage/session.
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	api.JSON(w, http.StatusOK, h.svc.Session(userID, sessionID).Snapshot())
}

// HandleEvents handles GET /api/triage/events, the audit trail for the
// caller's session.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	userID, sessionID, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.repo == nil {
		api.Error(w, http.StatusServiceUnavailable, "event store unavailable")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	events, err := h.repo.ListTriageEvents(r.Context(), userID, sessionID, limit)
	if err != nil {
		slog.Error("Failed to list triage events", "error", err, "user_id", userID)
		api.Error(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		api.JSON(w, http.StatusOK, []struct{}{})
		return
	}
	api.JSON(w, http.StatusOK, events)
}

func (h *Handler) writeReply(w http.ResponseWriter, reply triage.Reply, err error) {
	switch {
	case err == nil:
		api.JSON(w, http.StatusOK, NewTurnResponse(reply))
	case errors.Is(err, triage.ErrEmptyMessage):
		api.Error(w, http.StatusBadRequest, "message is required")
	case errors.Is(err, triage.ErrBusy):
		api.Error(w, http.StatusConflict, "a reply is still being generated")
	case errors.Is(err, triage.ErrUnknownQuickReply):
		api.Error(w, http.StatusNotFound, "unknown quick reply")
	default:
		slog.Error("Triage send failed", "error", err)
		api.Error(w, http.StatusInternalServerError, "internal error")
	}
}

// touch refreshes the user's last_seen_at without holding up the response.
func (h *Handler) touch(ctx context.Context, userID string) {
	if h.repo == nil {
		return
	}
	reqID := chiMiddleware.GetReqID(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), lastSeenTimeout)
		defer cancel()
		if err := h.repo.UpdateLastSeen(ctx, userID, time.Now()); err != nil {
			slog.Warn("failed to update last seen", "error", err, "user_id", userID, "request_id", reqID)
		}
	}()
}

func requireIdentity(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	id, ok := identity.FromContext(r.Context())
	if !ok {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return "", "", false
	}
	return id.UserID, id.SessionID, true
}
