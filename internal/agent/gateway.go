package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/pawcare-labs/pawcare/internal/triage"
)

const (
	maxResponseBytes = 1 << 20
	maxErrorSnippet  = 512
)

var (
	ErrUnexpectedStatus  = errors.New("unexpected status from generation backend")
	ErrMalformedResponse = errors.New("malformed generation response")
	errInvalidGatewayURL = errors.New("invalid generation backend url")
)

// ErrorKind classifies a failed generation call.
type ErrorKind string

const (
	ErrorNetwork   ErrorKind = "network"
	ErrorTimeout   ErrorKind = "timeout"
	ErrorStatus    ErrorKind = "status"
	ErrorMalformed ErrorKind = "malformed"
)

// GatewayError is returned for every failed generation call.
type GatewayError struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("generation %s error (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("generation %s error: %v", e.Kind, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// GatewayClient calls an OpenAI-compatible chat completions endpoint. It
// never retries; one call is made per user turn.
type GatewayClient struct {
	cfg    GatewayConfig
	http   *http.Client
	logger *slog.Logger
}

// Ensure GatewayClient implements triage.Generator.
var _ triage.Generator = (*GatewayClient)(nil)

// NewGatewayClient validates cfg and builds a client.
func NewGatewayClient(cfg GatewayConfig, logger *slog.Logger) (*GatewayClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidGatewayURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", errInvalidGatewayURL, cfg.URL)
	}

	defaults := DefaultGatewayConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}

	return &GatewayClient{
		cfg:    cfg,
		http:   &http.Client{},
		logger: logger,
	}, nil
}

// Enabled reports whether a credential is configured.
func (c *GatewayClient) Enabled() bool {
	return c.cfg.APIKey != ""
}

// Generate sends turns to the backend and returns choices[0].message.content.
// Any failure comes back as a *GatewayError.
func (c *GatewayClient) Generate(ctx context.Context, turns []triage.Turn) (string, error) {
	body, err := json.Marshal(chatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    turns,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Stream:      false,
	})
	if err != nil {
		return "", &GatewayError{Kind: ErrorMalformed, Err: fmt.Errorf("encode request: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return "", &GatewayError{Kind: ErrorNetwork, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", transportError(err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("failed to close generation response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorSnippet))
		c.logger.Warn("generation backend returned error status",
			"status_code", resp.StatusCode,
			"body", strings.TrimSpace(string(snippet)),
		)
		return "", &GatewayError{
			Kind:       ErrorStatus,
			StatusCode: resp.StatusCode,
			Err:        ErrUnexpectedStatus,
		}
	}

	var payload chatCompletionResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		if ctx.Err() != nil {
			return "", transportError(err)
		}
		return "", &GatewayError{Kind: ErrorMalformed, Err: fmt.Errorf("%w: %w", ErrMalformedResponse, err)}
	}
	if len(payload.Choices) == 0 {
		return "", &GatewayError{Kind: ErrorMalformed, Err: fmt.Errorf("%w: no choices", ErrMalformedResponse)}
	}
	content := strings.TrimSpace(payload.Choices[0].Message.Content)
	if content == "" {
		return "", &GatewayError{Kind: ErrorMalformed, Err: fmt.Errorf("%w: empty content", ErrMalformedResponse)}
	}
	return content, nil
}

func transportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &GatewayError{Kind: ErrorTimeout, Err: err}
	}
	return &GatewayError{Kind: ErrorNetwork, Err: err}
}
