//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pawcare-labs/pawcare/internal/identity"
	"github.com/pawcare-labs/pawcare/internal/store"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusConflict, "busy")

	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", w.Code)
	}
	var got map[string]string
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got["error"] != "busy" {
		t.Errorf("Expected error=busy, got %v", got)
	}
}

func newRouter(t *testing.T, repo store.Repository, generationEnabled bool) http.Handler {
	t.Helper()
	r := chi.NewRouter()
	r.Use(identity.Middleware(repo, true))
	NewHandler(repo, generationEnabled).RegisterRoutes(r)
	NewHealthHandler(repo, time.Second).RegisterHealth(r)
	return r
}

func TestGetMe(t *testing.T) {
	repo := store.NewMemory()
	router := newRouter(t, repo, false)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set(identity.SessionHeaderName, "tab-7")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var got map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got["session_id"] != "tab-7" {
		t.Errorf("Expected session_id tab-7, got %v", got["session_id"])
	}
	name, _ := got["display_name"].(string)
	if name == "" {
		t.Error("Expected a display name")
	}
}

func TestGetConfig(t *testing.T) {
	router := newRouter(t, store.NewMemory(), true)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/config", nil))

	var got map[string]bool
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !got["generation_enabled"] {
		t.Errorf("Expected generation_enabled=true, got %v", got)
	}
}

type failingPingRepo struct {
	*store.MemoryStore
}

func (failingPingRepo) Ping(context.Context) error { return context.DeadlineExceeded }

func TestHealth(t *testing.T) {
	tests := []struct {
		name     string
		repo     store.Repository
		wantCode int
		wantDB   string
	}{
		{"healthy", store.NewMemory(), http.StatusOK, "ok"},
		{"degraded", failingPingRepo{store.NewMemory()}, http.StatusServiceUnavailable, "unreachable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			NewHealthHandler(tt.repo, time.Second).RegisterHealth(r)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
			if w.Code != tt.wantCode {
				t.Fatalf("Expected status %d, got %d", tt.wantCode, w.Code)
			}

			var got struct {
				Checks map[string]string `json:"checks"`
			}
			if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if got.Checks["database"] != tt.wantDB {
				t.Errorf("Expected database=%s, got %v", tt.wantDB, got.Checks)
			}
		})
	}
}
