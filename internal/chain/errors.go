package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrAllEndpointsFailed is returned when every configured endpoint rejected
// the request. The caller treats it as fatal at startup and as transient
// during steady-state operation.
var ErrAllEndpointsFailed = errors.New("all rpc endpoints failed")

// ProviderError wraps a lower-level RPC failure with the endpoint that
// produced it. Callers classify it via errors.Is on the wrapped error.
type ProviderError struct {
	Endpoint string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Endpoint, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// isRateLimited matches the usual shapes of throttling responses.
func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "429") ||
		strings.Contains(s, "Too Many Requests") ||
		strings.Contains(s, "-32005") ||
		strings.Contains(s, "rate limit")
}

// isRangeTooLarge matches provider rejections of an eth_getLogs span.
// Wording varies per provider; all of these appear in the wild.
func isRangeTooLarge(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "block range") ||
		strings.Contains(s, "range too large") ||
		strings.Contains(s, "query returned more than") ||
		strings.Contains(s, "response size exceeded") ||
		strings.Contains(s, "too many results")
}

// isTransient reports whether the failure is worth a failover retry:
// connectivity problems, timeouts, server errors, throttling.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if isRateLimited(err) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset") ||
		strings.Contains(s, "i/o timeout") ||
		strings.Contains(s, "eof") ||
		strings.Contains(s, "502") ||
		strings.Contains(s, "503") ||
		strings.Contains(s, "504") ||
		strings.Contains(s, "no such host")
}
