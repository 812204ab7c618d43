package triage

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pawcare-labs/pawcare/internal/domain"
)

var (
	// ErrEmptyMessage is returned for blank input. Nothing is appended.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrBusy is returned while a previous message is still being answered.
	ErrBusy = errors.New("a reply is still being generated")
	// ErrUnknownQuickReply is returned for a quick-reply id outside the fixed set.
	ErrUnknownQuickReply = errors.New("unknown quick reply")
)

// Generator produces assistant text from role-tagged turns.
type Generator interface {
	Generate(ctx context.Context, turns []Turn) (string, error)
}

// Event reports something worth auditing about a session.
type Event struct {
	Kind   domain.TriageEventKind
	From   EscalationState
	To     EscalationState
	Detail string
}

// Options configures a Session. Zero values fall back to defaults.
type Options struct {
	Classifier   *Classifier
	System       string
	HistoryLimit int
	Now          func() time.Time
	OnEvent      func(ctx context.Context, ev Event)
	Logger       *slog.Logger
}

// Reply is the outcome of one accepted user message.
type Reply struct {
	Message   domain.Message   `json:"message"`
	Tips      []domain.CareTip `json:"tips"`
	State     EscalationState  `json:"state"`
	Generated bool             `json:"generated"`
}

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	Messages []domain.Message `json:"messages"`
	Tips     []domain.CareTip `json:"tips"`
	State    EscalationState  `json:"state"`
	Phase    Phase            `json:"phase"`
	Busy     bool             `json:"busy"`
}

// Session is one user's triage conversation: an append-only message log, the
// escalation state, the current tips and the single-flight guard around
// generation calls.
type Session struct {
	gen        Generator
	classifier *Classifier
	builder    ContextBuilder
	now        func() time.Time
	onEvent    func(ctx context.Context, ev Event)
	logger     *slog.Logger

	busy atomic.Bool

	mu       sync.Mutex
	messages []domain.Message
	tips     []domain.CareTip
	esc      Escalation
}

// NewSession creates an empty session in the Active phase.
func NewSession(gen Generator, opts Options) *Session {
	if opts.Classifier == nil {
		opts.Classifier = DefaultClassifier()
	}
	if opts.System == "" {
		opts.System = SystemInstruction
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Session{
		gen:        gen,
		classifier: opts.Classifier,
		builder:    ContextBuilder{System: opts.System, HistoryLimit: opts.HistoryLimit},
		now:        opts.Now,
		onEvent:    opts.OnEvent,
		logger:     opts.Logger,
	}
}

// Send processes one user message. Blank input returns ErrEmptyMessage and a
// send while another is in flight returns ErrBusy; neither touches the log.
// Every accepted message gets exactly one assistant reply appended: generated
// text, a canned warning or notice, or the fallback when generation fails.
func (s *Session) Send(ctx context.Context, text string) (Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, ErrEmptyMessage
	}
	if !s.busy.CompareAndSwap(false, true) {
		return Reply{}, ErrBusy
	}
	defer s.busy.Store(false)

	s.mu.Lock()
	prior := slices.Clone(s.messages)
	s.messages = append(s.messages, domain.NewUserMessage(text, s.now()))

	from := s.esc.State()
	topic, emergency := OffTopic, false
	if from.Blocked {
		emergency = s.classifier.IsEmergency(text)
	} else {
		topic = s.classifier.Classify(text)
	}
	to, decision := s.esc.Apply(topic, emergency)

	if !decision.Proceed {
		msg := s.appendLocked(decision.Kind, decision.Message)
		reply := Reply{Message: msg, Tips: slices.Clone(s.tips), State: to}
		s.mu.Unlock()

		if from != to {
			s.emit(ctx, Event{Kind: domain.EventTransition, From: from, To: to, Detail: topic.String()})
		}
		if emergency {
			s.emit(ctx, Event{Kind: domain.EventEmergency, From: from, To: to})
		}
		return reply, nil
	}
	s.mu.Unlock()

	if from != to {
		s.emit(ctx, Event{Kind: domain.EventTransition, From: from, To: to, Detail: topic.String()})
	}

	turns := s.builder.Build(prior, text)
	generated, err := s.gen.Generate(ctx, turns)
	if err != nil {
		s.logger.Warn("generation failed, sending fallback",
			"error", err,
			"turns", len(turns),
		)
		s.mu.Lock()
		msg := s.appendLocked(domain.KindFallback, FallbackMessage)
		reply := Reply{Message: msg, Tips: slices.Clone(s.tips), State: s.esc.State()}
		s.mu.Unlock()

		s.emit(ctx, Event{Kind: domain.EventGatewayFailure, From: to, To: to, Detail: err.Error()})
		return reply, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.appendLocked(domain.KindGenerated, generated)
	// Keep the previous tips when the reply has none.
	if tips := ExtractTips(generated); len(tips) > 0 {
		s.tips = tips
	}
	return Reply{
		Message:   msg,
		Tips:      slices.Clone(s.tips),
		State:     s.esc.State(),
		Generated: true,
	}, nil
}

// QuickReply sends the phrase behind a quick-reply button as a user message.
func (s *Session) QuickReply(ctx context.Context, id string) (Reply, error) {
	q, ok := LookupQuickReply(id)
	if !ok {
		return Reply{}, ErrUnknownQuickReply
	}
	return s.Send(ctx, q.Text)
}

// Reset clears the escalation state, never the message log, and appends a
// confirmation.
func (s *Session) Reset(ctx context.Context) domain.Message {
	s.mu.Lock()
	from := s.esc.Reset()
	msg := s.appendLocked(domain.KindNotice, ResetConfirmationMessage)
	s.mu.Unlock()

	s.emit(ctx, Event{Kind: domain.EventReset, From: from, To: EscalationState{}})
	return msg
}

// State returns the current escalation state.
func (s *Session) State() EscalationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.esc.State()
}

// Busy reports whether a generation call is in flight.
func (s *Session) Busy() bool {
	return s.busy.Load()
}

// Snapshot copies the session for display.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.esc.State()
	return Snapshot{
		Messages: slices.Clone(s.messages),
		Tips:     slices.Clone(s.tips),
		State:    state,
		Phase:    state.Phase(),
		Busy:     s.busy.Load(),
	}
}

func (s *Session) appendLocked(kind domain.MessageKind, text string) domain.Message {
	msg := domain.NewAssistantMessage(kind, text, s.now())
	s.messages = append(s.messages, msg)
	return msg
}

func (s *Session) emit(ctx context.Context, ev Event) {
	if s.onEvent != nil {
		s.onEvent(ctx, ev)
	}
}
