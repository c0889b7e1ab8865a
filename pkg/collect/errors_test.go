package collect

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/driftwatch/driftwatch/pkg/sources"
)

// timeoutErr satisfies net.Error with Timeout() == true.
type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o wait expired" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassifyKinds(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"canceled context", context.Canceled, KindCancelled},
		{"deadline exceeded", context.DeadlineExceeded, KindTimeout},
		{"http 401", &sources.StatusError{Code: 401, Message: "unauthorized"}, KindAuth},
		{"http 403", &sources.StatusError{Code: 403, Message: "forbidden"}, KindAuth},
		{"http 429", &sources.StatusError{Code: 429, Message: "too many requests"}, KindRateLimit},
		{"http 408", &sources.StatusError{Code: 408, Message: "request timeout"}, KindTimeout},
		{"http 502", &sources.StatusError{Code: 502, Message: "bad gateway"}, KindNetwork},
		{"http 503", &sources.StatusError{Code: 503, Message: "service unavailable"}, KindNetwork},
		{"http 504", &sources.StatusError{Code: 504, Message: "gateway timeout"}, KindNetwork},
		{"net timeout", timeoutErr{}, KindTimeout},
		{"invalid token message", errors.New("invalid token for account"), KindAuth},
		{"auth failed message", errors.New("auth failed: bad credentials"), KindAuth},
		{"rate limit message", errors.New("Rate Limit exceeded, slow down"), KindRateLimit},
		{"timed out message", errors.New("request timed out after 30s"), KindTimeout},
		{"connection refused", errors.New("dial tcp 127.0.0.1:443: connection refused"), KindNetwork},
		{"no such host", errors.New("lookup api.example.invalid: no such host"), KindNetwork},
		{"reset by peer", errors.New("read: connection reset by peer"), KindNetwork},
		{"opaque failure", errors.New("something odd happened"), KindUnknown},
		{"wrapped status", fmt.Errorf("fetch page: %w", &sources.StatusError{Code: 429, Message: "slow down"}), KindRateLimit},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fe := Classify("src", tc.err)
			if fe.Kind != tc.want {
				t.Fatalf("Classify(%v) kind = %s, want %s", tc.err, fe.Kind, tc.want)
			}
			if fe.Source != "src" {
				t.Fatalf("expected source to carry through, got %q", fe.Source)
			}
			if !errors.Is(fe, tc.err) && fe.Unwrap() == nil {
				t.Fatal("expected the original error to be wrapped")
			}
		})
	}
}

func TestKindRetriable(t *testing.T) {
	retriable := map[Kind]bool{
		KindUnknown:   true,
		KindAuth:      false,
		KindRateLimit: true,
		KindNetwork:   true,
		KindTimeout:   true,
		KindCancelled: false,
	}
	for kind, want := range retriable {
		if got := kind.Retriable(); got != want {
			t.Errorf("%s.Retriable() = %v, want %v", kind, got, want)
		}
	}
}

func TestKindString(t *testing.T) {
	names := map[Kind]string{
		KindUnknown:   "unknown",
		KindAuth:      "auth",
		KindRateLimit: "ratelimit",
		KindNetwork:   "network",
		KindTimeout:   "timeout",
		KindCancelled: "cancelled",
	}
	for kind, want := range names {
		if kind.String() != want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(kind), kind.String(), want)
		}
	}
	if Kind(99).String() != "unknown" {
		t.Errorf("out-of-range kind should read as unknown, got %q", Kind(99).String())
	}
}

func TestFetchErrorMessage(t *testing.T) {
	fe := &FetchError{Source: "hackernews", Kind: KindRateLimit, Message: "too many requests"}
	want := "hackernews: ratelimit: too many requests"
	if fe.Error() != want {
		t.Fatalf("Error() = %q, want %q", fe.Error(), want)
	}
}
