package triage

import (
	"github.com/pawcare-labs/pawcare/internal/domain"
)

// Role tags a turn sent to the generation backend.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged entry of a generation request.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ContextBuilder assembles the turns for one generation call.
type ContextBuilder struct {
	System string
	// HistoryLimit caps the prior turns kept, evicting the oldest exchange
	// first. Exchanges are never split, so an odd limit keeps one turn fewer.
	// Zero keeps everything.
	HistoryLimit int
}

// exchange is a user message and the generated reply that answered it.
type exchange struct {
	question string
	answer   string
}

// Build returns the system instruction, the retained prior exchanges in
// chronological order, then next as the final user turn.
//
// Canned replies are not part of the backend's conversation. A generated
// reply is paired with the latest user message before it, skipping notices
// appended while the reply was pending; user messages answered only by
// canned text are dropped.
func (b ContextBuilder) Build(history []domain.Message, next string) []Turn {
	exchanges := pairExchanges(history)
	if b.HistoryLimit > 0 {
		if keep := b.HistoryLimit / 2; len(exchanges) > keep {
			exchanges = exchanges[len(exchanges)-keep:]
		}
	}

	turns := make([]Turn, 0, 2*len(exchanges)+2)
	turns = append(turns, Turn{Role: RoleSystem, Content: b.System})
	for _, ex := range exchanges {
		turns = append(turns,
			Turn{Role: RoleUser, Content: ex.question},
			Turn{Role: RoleAssistant, Content: ex.answer},
		)
	}
	turns = append(turns, Turn{Role: RoleUser, Content: next})
	return turns
}

func pairExchanges(history []domain.Message) []exchange {
	var (
		out     []exchange
		pending string
		waiting bool
	)
	for _, m := range history {
		switch {
		case m.Origin == domain.OriginUser:
			pending, waiting = m.Text, true
		case m.Kind == domain.KindGenerated && waiting:
			out = append(out, exchange{question: pending, answer: m.Text})
			waiting = false
		case m.Kind == domain.KindWarning || m.Kind == domain.KindFallback:
			// The pending message was answered with canned text.
			waiting = false
		}
	}
	return out
}
