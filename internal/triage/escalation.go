package triage

import (
	"fmt"

	"github.com/pawcare-labs/pawcare/internal/domain"
)

// MaxWarnings is the number of off-topic strikes that blocks a session.
const MaxWarnings = 3

// Phase names the escalation states.
type Phase string

const (
	PhaseActive  Phase = "active"
	PhaseWarned1 Phase = "warned_1"
	PhaseWarned2 Phase = "warned_2"
	PhaseBlocked Phase = "blocked"
)

// EscalationState tracks off-topic strikes for one session.
// Blocked is true exactly when WarningCount reaches MaxWarnings.
type EscalationState struct {
	WarningCount int  `json:"warning_count"`
	Blocked      bool `json:"blocked"`
}

// Phase maps the state onto its named phase.
func (s EscalationState) Phase() Phase {
	switch {
	case s.Blocked:
		return PhaseBlocked
	case s.WarningCount == 1:
		return PhaseWarned1
	case s.WarningCount == 2:
		return PhaseWarned2
	default:
		return PhaseActive
	}
}

// Valid reports whether the state satisfies its invariant.
func (s EscalationState) Valid() bool {
	if s.WarningCount < 0 || s.WarningCount > MaxWarnings {
		return false
	}
	return s.Blocked == (s.WarningCount >= MaxWarnings)
}

// Decision tells the caller whether to call the generation backend. When
// Proceed is false, Message holds the canned reply for this transition.
type Decision struct {
	Proceed bool
	Kind    domain.MessageKind
	Message string
}

// Transition computes the next state for one inbound message. topic is
// ignored while blocked; emergency is only consulted while blocked.
// It panics if s is not a valid state.
func Transition(s EscalationState, topic Topic, emergency bool) (EscalationState, Decision) {
	mustBeValid(s)

	var (
		next     EscalationState
		decision Decision
	)
	switch {
	case s.Blocked:
		next = s
		if emergency {
			decision = Decision{Kind: domain.KindNotice, Message: EmergencyMessage}
		} else {
			decision = Decision{Kind: domain.KindWarning, Message: BlockedRefusalMessage}
		}
	case topic == OnTopic:
		// An on-topic message forgives earlier strikes.
		next = EscalationState{}
		decision = Decision{Proceed: true}
	default:
		next.WarningCount = s.WarningCount + 1
		next.Blocked = next.WarningCount >= MaxWarnings
		decision = Decision{Kind: domain.KindWarning, Message: warningMessage(next.WarningCount)}
	}

	mustBeValid(next)
	return next, decision
}

func warningMessage(count int) string {
	switch count {
	case 1:
		return FirstWarningMessage
	case 2:
		return SecondWarningMessage
	case MaxWarnings:
		return FinalWarningMessage
	default:
		panic(fmt.Sprintf("triage: no warning message for strike %d", count))
	}
}

func mustBeValid(s EscalationState) {
	if !s.Valid() {
		panic(fmt.Sprintf("triage: invalid escalation state %+v", s))
	}
}

// Escalation owns the EscalationState of one session. It is not safe for
// concurrent use; Session serializes access.
type Escalation struct {
	state EscalationState
}

// State returns the current state.
func (e *Escalation) State() EscalationState {
	return e.state
}

// Apply runs Transition against the owned state and stores the result.
func (e *Escalation) Apply(topic Topic, emergency bool) (EscalationState, Decision) {
	next, decision := Transition(e.state, topic, emergency)
	e.state = next
	return next, decision
}

// Reset returns to Active and reports the state it left.
func (e *Escalation) Reset() EscalationState {
	prev := e.state
	e.state = EscalationState{}
	return prev
}
