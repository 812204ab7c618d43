// Package agent connects triage sessions to the outside world: the
// generation backend, the session registry and the HTTP API.
package agent

import (
	"time"

	"github.com/pawcare-labs/pawcare/internal/domain"
	"github.com/pawcare-labs/pawcare/internal/triage"
)

// chatCompletionRequest is the body POSTed to the generation backend.
type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []triage.Turn `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

// chatCompletionResponse holds the fields consumed from a backend reply.
type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// GatewayConfig configures the generation backend client.
type GatewayConfig struct {
	URL         string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// DefaultGatewayConfig returns defaults for an OpenAI-compatible endpoint.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		URL:         "https://api.openai.com/v1/chat/completions",
		Model:       "gpt-4o-mini",
		MaxTokens:   500,
		Temperature: 0.7,
		Timeout:     20 * time.Second,
	}
}

// SendRequest is the body of POST /api/triage/messages.
type SendRequest struct {
	Text string `json:"text"`
}

// ResetResponse is returned by POST /api/triage/reset.
type ResetResponse struct {
	Message domain.Message         `json:"message"`
	State   triage.EscalationState `json:"state"`
}

// TurnResponse is returned for every accepted user message.
type TurnResponse struct {
	Reply domain.Message         `json:"reply"`
	Tips  []domain.CareTip       `json:"tips"`
	State triage.EscalationState `json:"state"`
	Phase triage.Phase           `json:"phase"`
}

// NewTurnResponse converts a session reply into its wire form.
func NewTurnResponse(r triage.Reply) TurnResponse {
	tips := r.Tips
	if tips == nil {
		tips = []domain.CareTip{}
	}
	return TurnResponse{
		Reply: r.Message,
		Tips:  tips,
		State: r.State,
		Phase: r.State.Phase(),
	}
}
