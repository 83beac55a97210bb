// Package llm holds the language-model collaborators: text completers for
// Gemini and Anthropic, and the intent classifier and response synthesizer
// built on top of any completer.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/finance-agent/internal/logger"
)

// ErrEmptyResponse is returned when the model answers with no text.
var ErrEmptyResponse = errors.New("empty response from model")

// Default call policy.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 1
)

// Completer sends a system instruction and a user prompt to a model and
// returns the text it generated.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Policy bounds a model call.
type Policy struct {
	Timeout    time.Duration
	MaxRetries int
}

func (p Policy) withDefaults() Policy {
	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	return p
}

// complete calls c with a per-attempt timeout, retrying up to p.MaxRetries
// times. The parent context's cancellation is never retried.
func complete(ctx context.Context, c Completer, p Policy, op, system, prompt string) (string, error) {
	log := logger.FromContext(ctx)

	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}

		callCtx, cancel := context.WithTimeout(ctx, p.Timeout)
		text, err := c.Complete(callCtx, system, prompt)
		cancel()

		if err == nil && strings.TrimSpace(text) == "" {
			err = ErrEmptyResponse
		}
		if err == nil {
			return text, nil
		}

		lastErr = err
		log.Warn().Err(err).Str("op", op).Int("attempt", attempt+1).Msg("model call failed")
	}
	return "", fmt.Errorf("%s: %w", op, lastErr)
}

// cleanModelJSON strips Markdown fences and any text around the outermost
// JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the opening fence line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
