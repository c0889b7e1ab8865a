package collect

import (
	"context"
	"time"

	"github.com/driftwatch/driftwatch/pkg/sources"
)

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// nopLogger silently discards all messages.
type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// AttemptRecord is the per-attempt event handed to the error reporting
// sink. Kind is empty for the successful attempt.
type AttemptRecord struct {
	Time    time.Time
	Source  string
	Attempt int
	Kind    string
	Delay   time.Duration
	Message string
}

// AttemptSink receives one record per collection attempt. Implementations
// must not block; the collector fires and forgets.
type AttemptSink interface {
	RecordAttempt(rec AttemptRecord)
}

type nopSink struct{}

func (nopSink) RecordAttempt(AttemptRecord) {}

// Status of a per-source collection.
type Status int

const (
	StatusFailed Status = iota
	StatusSuccess
)

func (s Status) String() string {
	if s == StatusSuccess {
		return "success"
	}
	return "failed"
}

// Outcome is the final result of collecting one source. Immutable once
// returned.
type Outcome struct {
	Source   string
	Status   Status
	Items    []sources.Item
	Attempts int
	Err      *FetchError // nil on success
}

// Collector wraps one source with retry, backoff and a circuit breaker.
// It owns all of its retry and breaker state; nothing is shared between
// collectors, so no locking happens at this layer.
type Collector struct {
	src     sources.Source
	policy  Policy
	breaker *Breaker
	sink    AttemptSink
	log     Logger

	// pause is swappable for tests that must not sleep for real.
	pause func(ctx context.Context, d time.Duration) error
}

// NewCollector builds a collector for one source. A nil sink or logger is
// replaced with a no-op.
func NewCollector(src sources.Source, policy Policy, breakerThreshold int, sink AttemptSink, log Logger) *Collector {
	if sink == nil {
		sink = nopSink{}
	}
	if log == nil {
		log = nopLogger{}
	}
	return &Collector{
		src:     src,
		policy:  policy.withDefaults(),
		breaker: NewBreaker(breakerThreshold),
		sink:    sink,
		log:     log,
		pause:   sleep,
	}
}

// Collect runs fetch attempts against the source until one succeeds, the
// retry budget is exhausted, the breaker trips, or ctx is cancelled.
// Partial item counts below maxItems are still a success.
func (c *Collector) Collect(ctx context.Context, query string, maxItems int) Outcome {
	name := c.src.Name()
	out := Outcome{Source: name, Status: StatusFailed}

	// A breaker left open by an earlier collection this run fails
	// immediately, carrying the error that tripped it.
	if c.breaker.Open() {
		last := c.breaker.LastError()
		out.Err = &FetchError{
			Source:  name,
			Kind:    last.Kind,
			Message: "circuit open: " + last.Message,
			cause:   ErrCircuitOpen,
		}
		c.record(0, out.Err.Kind.String(), 0, out.Err.Message)
		return out
	}

	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			out.Err = cancelledError(name, err)
			out.Attempts = attempt - 1
			c.record(attempt, KindCancelled.String(), 0, err.Error())
			return out
		}

		items, err := c.src.Fetch(ctx, query, maxItems)
		out.Attempts = attempt
		if err == nil {
			c.breaker.Success()
			c.record(attempt, "", 0, "")
			out.Status = StatusSuccess
			out.Items = items
			return out
		}

		fe := Classify(name, err)
		out.Err = fe
		tripped := c.breaker.Failure(fe)
		c.log.Debugf("%s attempt %d/%d failed (%s): %v", name, attempt, c.policy.MaxAttempts, fe.Kind, err)

		switch {
		case !fe.Kind.Retriable():
			c.record(attempt, fe.Kind.String(), 0, fe.Message)
			c.log.Warnf("%s: %s error, not retrying", name, fe.Kind)
			return out
		case tripped:
			c.record(attempt, fe.Kind.String(), 0, fe.Message)
			c.log.Warnf("%s: breaker tripped after %d consecutive failures", name, attempt)
			return out
		case attempt == c.policy.MaxAttempts:
			c.record(attempt, fe.Kind.String(), 0, fe.Message)
			return out
		}

		delay := c.policy.Delay(attempt)
		c.record(attempt, fe.Kind.String(), delay, fe.Message)
		if err := c.pause(ctx, delay); err != nil {
			out.Err = cancelledError(name, err)
			c.record(attempt+1, KindCancelled.String(), 0, err.Error())
			return out
		}
	}
	return out
}

func cancelledError(source string, err error) *FetchError {
	return &FetchError{Source: source, Kind: KindCancelled, Message: err.Error(), cause: err}
}

func (c *Collector) record(attempt int, kind string, delay time.Duration, msg string) {
	c.sink.RecordAttempt(AttemptRecord{
		Time:    time.Now(),
		Source:  c.src.Name(),
		Attempt: attempt,
		Kind:    kind,
		Delay:   delay,
		Message: msg,
	})
}
