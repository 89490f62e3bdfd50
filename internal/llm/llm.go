package llm

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"
)

// ErrUnauthorized is returned when a provider rejects the credentials.
var ErrUnauthorized = errors.New("the AI provider rejected the credentials; check the API key and sign in again")

// Conversation roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a structured conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request carries either a flat prompt or a conversation. Messages wins when
// both are set. An empty Model uses the provider's default.
type Request struct {
	Model     string
	Prompt    string
	Messages  []Message
	MaxTokens int
}

// Conversation returns the request as an ordered list of turns.
func (r Request) Conversation() []Message {
	if len(r.Messages) > 0 {
		return r.Messages
	}
	return []Message{{Role: RoleUser, Content: r.Prompt}}
}

func (r Request) model(fallback string) string {
	if r.Model != "" {
		return r.Model
	}
	return fallback
}

// Provider is the interface for LLM providers.
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
	IsConfigured() bool
}

// Streamer is implemented by providers that can stream completions. The
// sequence is finite and ends after the first error.
type Streamer interface {
	Stream(ctx context.Context, req Request) iter.Seq2[string, error]
}

// StatusError is a non-200 answer from a provider.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API returned %d: %s", e.Provider, e.Code, e.Body)
}

// Retryable reports whether the status signals overload or a server fault.
// 529 is the overload status some gateways use.
func (e *StatusError) Retryable() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

// IsRetryable reports whether a failed call is worth repeating.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	// Network errors, timeouts and malformed bodies.
	return true
}

func statusError(provider string, code int, body []byte) error {
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		return fmt.Errorf("%s: %w", provider, ErrUnauthorized)
	}
	b := strings.TrimSpace(string(body))
	if len(b) > 300 {
		b = b[:300]
	}
	return &StatusError{Provider: provider, Code: code, Body: b}
}

// Collect drains a stream into one string.
func Collect(seq iter.Seq2[string, error]) (string, error) {
	var sb strings.Builder
	for chunk, err := range seq {
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(chunk)
	}
	return sb.String(), nil
}
