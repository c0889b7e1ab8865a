// Package collect is the resilient collection core: it drives per-source
// fetch attempts with retry, backoff and a circuit breaker, and aggregates
// per-source outcomes into a run-level report under a partial-results
// policy.
package collect

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/driftwatch/driftwatch/pkg/sources"
)

// Kind classifies a failed fetch attempt.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuth
	KindRateLimit
	KindNetwork
	KindTimeout
	KindCancelled
)

var kindNames = map[Kind]string{
	KindUnknown:   "unknown",
	KindAuth:      "auth",
	KindRateLimit: "ratelimit",
	KindNetwork:   "network",
	KindTimeout:   "timeout",
	KindCancelled: "cancelled",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Retriable reports whether another attempt can help. Auth failures are
// final and cancellation means the caller is gone.
func (k Kind) Retriable() bool {
	return k != KindAuth && k != KindCancelled
}

// FetchError is one classified source failure.
type FetchError struct {
	Source  string `json:"source"`
	Kind    Kind   `json:"-"`
	Message string `json:"message"`

	cause error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Source, e.Kind, e.Message)
}

func (e *FetchError) Unwrap() error { return e.cause }

// Sentinel errors surfaced by this package.
var (
	// ErrCircuitOpen marks a source whose breaker tripped earlier in the
	// current run; no further attempts are made against it.
	ErrCircuitOpen = errors.New("circuit open")

	// ErrAllSourcesRequired is returned when partial results are
	// disallowed and at least one source failed.
	ErrAllSourcesRequired = errors.New("all sources required but some failed")

	// ErrNoDataCollected is returned when every source failed. Always
	// fatal, regardless of the partial-results setting.
	ErrNoDataCollected = errors.New("no data collected from any source")
)

// Classify maps a raw fetch error to a FetchError. The mapping looks at
// error types and HTTP status first, then message patterns; it never
// depends on retry state.
func Classify(source string, err error) *FetchError {
	fe := &FetchError{Source: source, Message: err.Error(), cause: err}
	fe.Kind = classifyKind(err)
	return fe
}

func classifyKind(err error) Kind {
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var se *sources.StatusError
	if errors.As(err, &se) {
		switch {
		case se.Code == 401 || se.Code == 403:
			return KindAuth
		case se.Code == 429:
			return KindRateLimit
		case se.Code == 408:
			return KindTimeout
		case se.Code == 502 || se.Code == 503 || se.Code == 504:
			return KindNetwork
		}
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "unauthorized", "forbidden", "invalid key", "invalid token", "authentication", "auth failed", "401", "403"):
		return KindAuth
	case containsAny(msg, "rate limit", "too many requests", "429"):
		return KindRateLimit
	case containsAny(msg, "timeout", "timed out", "deadline exceeded"):
		return KindTimeout
	case containsAny(msg, "connection", "network", "no such host", "reset by peer", "broken pipe", "refused"):
		return KindNetwork
	}
	return KindUnknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
