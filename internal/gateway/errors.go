package gateway

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strings"
	"syscall"

	"github.com/MrWong99/aurasync/pkg/provider/llm"
)

// ErrProviderUnavailable is returned once every retry of a transient failure
// has been used up. The last provider error is joined to it.
var ErrProviderUnavailable = errors.New("gateway: provider unavailable")

// TransientError wraps an error that is safe to retry (e.g., 429, 5xx,
// "model temporarily unavailable").
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// transientPatterns are lower-cased fragments of provider error messages that
// signal a temporary condition. Hosted models surface overload as plain text
// more often than as typed errors.
var transientPatterns = []string{
	"temporarily unavailable",
	"unavailable",
	"overloaded",
	"resource exhausted",
	"resource_exhausted",
	"rate limit",
	"too many requests",
	"connection reset by peer",
	"i/o timeout",
	"tls handshake timeout",
	"server closed idle connection",
}

// statusPattern matches a retryable HTTP status named as one, such as
// "status 429", "status code: 503" or "Error 503,". Bare digits elsewhere in a
// message (token counts, request ids) do not count.
var statusPattern = regexp.MustCompile(`\b(?:status(?: code)?|code|error|http(?:/[0-9.]+)?)[\s:=]*(?:429|503)\b`)

// IsTransient reports whether err (or any error in its chain) signals a
// temporary provider condition worth retrying.
//
// Context cancellation and deadline expiry are never transient: the caller
// has given up.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if errors.Is(err, llm.ErrTemporarilyUnavailable) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	if statusPattern.MatchString(msg) {
		return true
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
