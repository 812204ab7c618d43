package triage

import (
	"math/rand"
	"testing"

	"github.com/pawcare-labs/pawcare/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionOffTopicSequence(t *testing.T) {
	t.Parallel()

	var e Escalation
	wantPhases := []Phase{PhaseWarned1, PhaseWarned2, PhaseBlocked}
	wantMessages := []string{FirstWarningMessage, SecondWarningMessage, FinalWarningMessage}

	seen := make(map[string]bool)
	for i := range wantPhases {
		state, d := e.Apply(OffTopic, false)
		require.False(t, d.Proceed)
		assert.Equal(t, wantPhases[i], state.Phase())
		assert.Equal(t, wantMessages[i], d.Message)
		assert.Equal(t, domain.KindWarning, d.Kind)
		seen[d.Message] = true
	}
	assert.Len(t, seen, 3)
	assert.True(t, e.State().Blocked)
	assert.Equal(t, MaxWarnings, e.State().WarningCount)
}

func TestTransitionOnTopicForgivesWarnings(t *testing.T) {
	t.Parallel()

	for _, count := range []int{0, 1, 2} {
		next, d := Transition(EscalationState{WarningCount: count}, OnTopic, false)
		assert.True(t, d.Proceed)
		assert.Equal(t, EscalationState{}, next)
	}
}

func TestTransitionBlocked(t *testing.T) {
	t.Parallel()

	blocked := EscalationState{WarningCount: MaxWarnings, Blocked: true}

	next, d := Transition(blocked, OffTopic, false)
	assert.Equal(t, blocked, next)
	assert.False(t, d.Proceed)
	assert.Equal(t, BlockedRefusalMessage, d.Message)

	// On-topic but non-emergency text does not unblock.
	next, d = Transition(blocked, OnTopic, false)
	assert.Equal(t, blocked, next)
	assert.False(t, d.Proceed)
	assert.Equal(t, BlockedRefusalMessage, d.Message)

	next, d = Transition(blocked, OnTopic, true)
	assert.Equal(t, blocked, next)
	assert.False(t, d.Proceed)
	assert.Equal(t, domain.KindNotice, d.Kind)
	assert.Equal(t, EmergencyMessage, d.Message)
}

func TestTransitionPanicsOnInvalidState(t *testing.T) {
	t.Parallel()

	invalid := []EscalationState{
		{WarningCount: 4, Blocked: true},
		{WarningCount: 3, Blocked: false},
		{WarningCount: 1, Blocked: true},
		{WarningCount: -1},
	}
	for _, s := range invalid {
		assert.Panics(t, func() { Transition(s, OffTopic, false) }, "%+v", s)
	}
}

func TestBlockedInvariantHoldsForRandomSequences(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 200; run++ {
		var e Escalation
		for step := 0; step < 25; step++ {
			switch rng.Intn(4) {
			case 0:
				e.Reset()
			case 1:
				e.Apply(OnTopic, rng.Intn(2) == 0)
			default:
				e.Apply(OffTopic, rng.Intn(2) == 0)
			}
			s := e.State()
			require.Equal(t, s.WarningCount >= MaxWarnings, s.Blocked)
			require.True(t, s.Valid())
		}
	}
}

func TestResetFromBlocked(t *testing.T) {
	t.Parallel()

	e := Escalation{state: EscalationState{WarningCount: MaxWarnings, Blocked: true}}
	prev := e.Reset()
	assert.Equal(t, PhaseBlocked, prev.Phase())
	assert.Equal(t, PhaseActive, e.State().Phase())
	assert.Equal(t, EscalationState{}, e.State())
}
