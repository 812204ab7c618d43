package domain

import (
	"time"

	"github.com/google/uuid"
)

// Origin identifies who authored a chat message.
type Origin string

const (
	OriginUser      Origin = "user"
	OriginAssistant Origin = "assistant"
)

// MessageKind distinguishes generated content from canned replies.
type MessageKind string

const (
	// KindUser is text typed by the user or synthesized from a quick reply.
	KindUser MessageKind = "user"
	// KindGenerated is assistant text produced by the generation backend.
	KindGenerated MessageKind = "generated"
	// KindWarning is an escalation notice (warning or block refusal).
	KindWarning MessageKind = "warning"
	// KindFallback replaces a reply when the generation backend failed.
	KindFallback MessageKind = "fallback"
	// KindNotice covers other canned replies: reset confirmation, emergency guidance.
	KindNotice MessageKind = "notice"
)

// Message is one entry of a chat session's append-only log.
type Message struct {
	ID        string      `json:"id"`
	Origin    Origin      `json:"origin"`
	Kind      MessageKind `json:"kind"`
	Text      string      `json:"text"`
	IsWarning bool        `json:"is_warning"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewUserMessage creates a message authored by the user.
func NewUserMessage(text string, now time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Origin:    OriginUser,
		Kind:      KindUser,
		Text:      text,
		CreatedAt: now,
	}
}

// NewAssistantMessage creates an assistant message of the given kind.
// IsWarning is derived from the kind.
func NewAssistantMessage(kind MessageKind, text string, now time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Origin:    OriginAssistant,
		Kind:      kind,
		Text:      text,
		IsWarning: kind == KindWarning,
		CreatedAt: now,
	}
}

// IsCanned reports whether the message is a pre-authored assistant reply.
func (m Message) IsCanned() bool {
	return m.Origin == OriginAssistant && m.Kind != KindGenerated
}

// CareTip is a short actionable statement extracted from a generated reply.
type CareTip struct {
	Text string `json:"text"`
}
