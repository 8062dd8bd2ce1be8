// Package llm is the boundary between the assist pipeline and model SDKs.
//
// Each pipeline stage (simplify, continue, visual, diagram) holds its own
// [Provider], so stages can run on different models and credentials. The
// pipeline only ever sends one user prompt and reads back one text reply;
// parsing that reply is the caller's job.
//
// Implementations must be safe for concurrent use.
package llm

import (
	"context"
	"errors"
	"net/http"
)

// Provider is a model backend bound to one model.
type Provider interface {
	// Complete sends req and waits for the full reply. It must return
	// promptly when ctx is cancelled.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities reports the bound model's limits.
	Capabilities() ModelCapabilities
}

// ErrTemporarilyUnavailable marks a failure expected to clear on its own,
// such as rate limiting or an overloaded backend. Adapters wrap it so the
// gateway can retry without knowing the SDK.
var ErrTemporarilyUnavailable = errors.New("llm: model temporarily unavailable")

// IsTransientStatus reports whether an HTTP status from a model API is worth
// retrying.
func IsTransientStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
