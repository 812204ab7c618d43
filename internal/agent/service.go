package agent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/pawcare-labs/pawcare/internal/domain"
	"github.com/pawcare-labs/pawcare/internal/shared"
	"github.com/pawcare-labs/pawcare/internal/store"
	"github.com/pawcare-labs/pawcare/internal/triage"
)

const eventWriteTimeout = 2 * time.Second

// ServiceOptions configures the sessions created by a Service.
type ServiceOptions struct {
	Classifier   *triage.Classifier
	System       string
	HistoryLimit int
	Now          func() time.Time
	Logger       *slog.Logger
}

// SessionKey identifies one browser tab of one anonymous user.
type SessionKey struct {
	UserID    string
	SessionID string
}

func (k SessionKey) String() string {
	return k.UserID + ":" + k.SessionID
}

type sessionEntry struct {
	session    *triage.Session
	lastActive time.Time
}

// Service keeps one triage session per user tab in memory and records
// their audit events in the repository. Conversation text never leaves
// the process.
type Service struct {
	gen  triage.Generator
	repo store.Repository
	opts ServiceOptions

	mu       sync.Mutex
	sessions map[SessionKey]*sessionEntry
}

// NewService creates a session registry. repo may be nil, in which case
// events are only logged.
func NewService(gen triage.Generator, repo store.Repository, opts ServiceOptions) *Service {
	if opts.Classifier == nil {
		opts.Classifier = triage.DefaultClassifier()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		gen:      gen,
		repo:     repo,
		opts:     opts,
		sessions: make(map[SessionKey]*sessionEntry),
	}
}

// Session returns the session for the given user tab, creating it on first
// use. Every call counts as activity for the idle sweeper.
func (s *Service) Session(userID, sessionID string) *triage.Session {
	key := SessionKey{UserID: userID, SessionID: sessionID}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.sessions[key]; ok {
		e.lastActive = s.opts.Now()
		return e.session
	}

	sess := triage.NewSession(s.gen, triage.Options{
		Classifier:   s.opts.Classifier,
		System:       s.opts.System,
		HistoryLimit: s.opts.HistoryLimit,
		Now:          s.opts.Now,
		OnEvent:      s.recorder(key),
		Logger:       s.opts.Logger.With("user_id", userID, "session_id", sessionID),
	})
	s.sessions[key] = &sessionEntry{session: sess, lastActive: s.opts.Now()}
	s.opts.Logger.Debug("Triage session created", "user_id", userID, "session_id", sessionID)
	return sess
}

// Lookup returns an existing session without creating or touching it.
func (s *Service) Lookup(userID, sessionID string) (*triage.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[SessionKey{UserID: userID, SessionID: sessionID}]
	if !ok {
		return nil, false
	}
	return e.session, true
}

// Evict drops a session. It reports whether one existed.
func (s *Service) Evict(userID, sessionID string) bool {
	key := SessionKey{UserID: userID, SessionID: sessionID}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[key]; !ok {
		return false
	}
	delete(s.sessions, key)
	return true
}

// EvictIdle drops sessions inactive for longer than ttl and returns their
// keys. Sessions with a generation call in flight are kept.
func (s *Service) EvictIdle(ttl time.Duration) []SessionKey {
	cutoff := s.opts.Now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []SessionKey
	for key, e := range s.sessions {
		if e.lastActive.After(cutoff) || e.session.Busy() {
			continue
		}
		delete(s.sessions, key)
		evicted = append(evicted, key)
	}
	return evicted
}

// Len returns the number of live sessions.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// recorder persists session events for key. Writes run on a context
// detached from the request so a client hanging up does not drop the audit.
func (s *Service) recorder(key SessionKey) func(context.Context, triage.Event) {
	return func(ctx context.Context, ev triage.Event) {
		event := &domain.TriageEvent{
			UserID:       key.UserID,
			SessionID:    key.SessionID,
			Kind:         ev.Kind,
			FromPhase:    string(ev.From.Phase()),
			ToPhase:      string(ev.To.Phase()),
			WarningCount: ev.To.WarningCount,
			Detail:       ev.Detail,
			RequestID:    chiMiddleware.GetReqID(ctx),
			CreatedAt:    s.opts.Now(),
		}

		s.opts.Logger.Info("Triage event",
			"user_id", key.UserID,
			"session_id", key.SessionID,
			"kind", event.Kind,
			"from", event.FromPhase,
			"to", event.ToPhase,
			"warning_count", event.WarningCount,
		)

		if s.repo == nil {
			return
		}

		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventWriteTimeout)
		defer cancel()
		err := shared.RetryOnConflict(writeCtx, "record triage event", 3, 50*time.Millisecond, func() error {
			return s.repo.RecordTriageEvent(writeCtx, event)
		})
		if err != nil {
			s.opts.Logger.Warn("failed to record triage event",
				"error", err,
				"user_id", key.UserID,
				"session_id", key.SessionID,
				"kind", event.Kind)
		}
	}
}
