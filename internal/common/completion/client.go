// Package completion talks to the hosted text-completion service used for
// parameter extraction and response narration.
package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mlops-agent/internal/common/config"
	"mlops-agent/internal/common/metrics"
)

type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one turn of a completion request.
type Message struct {
	Role    Role
	Content string
}

func SystemMessage(content string) Message { return Message{Role: RoleSystem, Content: content} }

func UserMessage(content string) Message { return Message{Role: RoleUser, Content: content} }

// Client returns the text of the first candidate for messages.
type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

var (
	ErrCompletionFailed  = errors.New("COMPLETION_FAILED")
	ErrCompletionTimeout = errors.New("COMPLETION_TIMEOUT")
	ErrNoChoices         = errors.New("completion returned no choices")
)

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, messages []Message) (string, error)

func (f ClientFunc) Complete(ctx context.Context, messages []Message) (string, error) {
	return f(ctx, messages)
}

// New builds the provider named in cfg, wrapped with the configured timeout
// and call metrics.
func New(ctx context.Context, cfg config.CompletionConfig) (Client, error) {
	var (
		backend Client
		err     error
	)
	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		backend = NewOpenAI(cfg)
	case "gemini":
		backend, err = NewGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported completion provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return WithTimeout(backend, cfg.Provider, config.GetDuration(cfg.Timeout)), nil
}

type timeoutClient struct {
	next     Client
	provider string
	timeout  time.Duration
}

// WithTimeout bounds every call of next by timeout and maps failures onto
// ErrCompletionFailed / ErrCompletionTimeout.
func WithTimeout(next Client, provider string, timeout time.Duration) Client {
	if provider == "" {
		provider = "openai"
	}
	return &timeoutClient{next: next, provider: provider, timeout: timeout}
}

func (c *timeoutClient) Complete(ctx context.Context, messages []Message) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := c.next.Complete(ctx, messages)
	metrics.CompletionDuration.WithLabelValues(c.provider).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.CompletionFailures.WithLabelValues(c.provider).Inc()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", ErrCompletionTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}
	return text, nil
}

// splitSystem separates system turns, joined by blank lines, from the rest.
func splitSystem(messages []Message) (string, []Message) {
	var system []string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}
