package collect

// Breaker tracks one source's consecutive-failure streak within a run.
// Once the streak reaches the threshold it stays open for the rest of the
// run; there is no half-open probing.
//
// A Breaker is owned by a single collector task and needs no locking.
type Breaker struct {
	threshold int
	streak    int
	lastErr   *FetchError
}

// DefaultBreakerThreshold is the consecutive-failure count that trips a
// source's breaker within one run.
const DefaultBreakerThreshold = 3

// NewBreaker returns a closed breaker. threshold <= 0 uses the default.
func NewBreaker(threshold int) *Breaker {
	if threshold <= 0 {
		threshold = DefaultBreakerThreshold
	}
	return &Breaker{threshold: threshold}
}

// Open reports whether the breaker has tripped.
func (b *Breaker) Open() bool { return b.streak >= b.threshold }

// LastError returns the classified error that tripped, or most recently
// advanced, the streak. Nil while the source has never failed.
func (b *Breaker) LastError() *FetchError { return b.lastErr }

// Failure records a classified failure and reports whether this one
// tripped the breaker.
func (b *Breaker) Failure(err *FetchError) bool {
	b.streak++
	b.lastErr = err
	return b.Open()
}

// Success resets the streak. A tripped breaker stays open; success cannot
// be observed after tripping because no further attempts run.
func (b *Breaker) Success() {
	if !b.Open() {
		b.streak = 0
	}
}
