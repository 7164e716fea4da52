// Package provider exposes the external LLM completion service behind one
// interface. The service is treated as untrusted: possibly slow, possibly
// failing, always called with an explicit timeout.
package provider

import (
	"context"
	"time"
)

// Request carries one completion call
type Request struct {
	// System sets the role framing for the completion
	System string

	// Prompt is the user-facing content
	Prompt string

	// MaxTokens bounds the response length
	MaxTokens int
}

// Completion is the contract the dialogue and deliberation engines consume
type Completion interface {
	// Complete sends a prompt and returns the text of the completion
	Complete(ctx context.Context, req Request) (string, error)

	// Name identifies the backing provider for logs
	Name() string
}

// RetryPolicy bounds the exponential backoff around Complete calls
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first
	MaxAttempts int

	// BaseDelay is the delay before the first retry; it doubles per attempt
	BaseDelay time.Duration

	// MaxDelay caps the per-attempt delay
	MaxDelay time.Duration
}

// DefaultRetryPolicy returns the policy used across the engines
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}
