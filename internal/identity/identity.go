// Package identity ties each request to an anonymous device and a browser tab.
//
// A device is remembered by a long-lived cookie holding a random UUID, which
// doubles as the user id. Tabs pick their own session id and send it in
// SessionHeaderName (or the session_id query parameter for websockets), so
// two tabs on one device get separate triage conversations.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pawcare-labs/pawcare/internal/domain"
	"github.com/pawcare-labs/pawcare/internal/store"
)

const (
	DeviceCookieName  = "pawcare_device"
	SessionHeaderName = "X-PawCare-Session-ID"
	SessionQueryParam = "session_id"
	DefaultSessionID  = "default"

	deviceCookieTTL = 30 * 24 * time.Hour
	maxSessionIDLen = 128
)

// Identity is the caller of one request.
type Identity struct {
	UserID    string
	SessionID string
}

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying id. An unusable session id is
// replaced by DefaultSessionID.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	id.SessionID = normalizeSessionID(id.SessionID)
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity set by Middleware. ok is false for
// requests that never passed through it.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok && id.UserID != ""
}

// SessionIDFromRequest reads the tab session id from the header, falling back
// to the query string.
func SessionIDFromRequest(r *http.Request) string {
	sid := r.Header.Get(SessionHeaderName)
	if sid == "" {
		sid = r.URL.Query().Get(SessionQueryParam)
	}
	return normalizeSessionID(sid)
}

func normalizeSessionID(sid string) string {
	sid = strings.TrimSpace(sid)
	if sid == "" || len(sid) > maxSessionIDLen || strings.IndexFunc(sid, notSessionRune) >= 0 {
		return DefaultSessionID
	}
	return sid
}

func notSessionRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	return !strings.ContainsRune("._:-", r)
}

// validDeviceID accepts only canonical random UUIDs, so a tampered cookie
// never reaches the store.
func validDeviceID(v string) bool {
	id, err := uuid.Parse(v)
	return err == nil && id.Version() == 4 && id.String() == v
}

type deviceCookie struct {
	secure bool
}

func (c deviceCookie) read(r *http.Request) (string, bool) {
	ck, err := r.Cookie(DeviceCookieName)
	if err != nil || !validDeviceID(ck.Value) {
		return "", false
	}
	return ck.Value, true
}

// write sets the cookie, sliding its expiry forward on every request.
func (c deviceCookie) write(w http.ResponseWriter, deviceID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     DeviceCookieName,
		Value:    deviceID,
		Path:     "/",
		MaxAge:   int(deviceCookieTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   c.secure,
	})
}

// register stores a profile for a new device. A known cookie whose profile
// has disappeared (fresh database) is registered again.
func register(ctx context.Context, repo store.Repository, userID string, known bool) error {
	if known {
		user, err := repo.GetUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if user != nil {
			return nil
		}
	}
	if err := repo.UpsertUser(ctx, domain.NewAnonymousUser(userID, time.Now())); err != nil {
		return fmt.Errorf("register user: %w", err)
	}
	return nil
}

// Middleware resolves the device cookie, registering first-time devices, and
// puts the caller's Identity on the request context.
func Middleware(repo store.Repository, isDev bool) func(http.Handler) http.Handler {
	cookie := deviceCookie{secure: !isDev}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, known := cookie.read(r)
			if !known {
				userID = uuid.NewString()
			}

			if err := register(r.Context(), repo, userID, known); err != nil {
				slog.Error("Failed to register device", "error", err, "user_id", userID)
				http.Error(w, `{"error":"failed to initialize anonymous user"}`, http.StatusInternalServerError)
				return
			}
			cookie.write(w, userID)

			ctx := WithIdentity(r.Context(), Identity{UserID: userID, SessionID: SessionIDFromRequest(r)})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
