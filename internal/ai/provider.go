package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransient marks failures worth retrying after a backoff, such as
	// rate limits, exhausted quota and upstream 5xx.
	ErrTransient = errors.New("transient provider error")
	// ErrPermanent marks failures a retry cannot fix (bad request, auth).
	ErrPermanent = errors.New("permanent provider error")
)

// Prompt is one single-turn completion request.
type Prompt struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float32
	JSON        bool // ask the provider for a JSON object reply
}

// Provider performs a single completion. Implementations wrap failures with
// ErrTransient or ErrPermanent when they can tell them apart.
type Provider interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// classify wraps err according to the HTTP status (0 when unknown) and the
// message text.
func classify(status int, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case status == 429 || status >= 500:
		return fmt.Errorf("%w: %w", ErrTransient, err)
	case status == 400, status == 401, status == 403, status == 404, status == 422:
		return fmt.Errorf("%w: %w", ErrPermanent, err)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") || strings.Contains(msg, "quota") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limit") {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return err
}

// cleanJSONResponse strips code fences and prose around a JSON object.
func cleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}
	return content
}
