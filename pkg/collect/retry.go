package collect

import (
	"context"
	"math/rand"
	"time"
)

// Policy controls retry pacing for one source. Passed by value; every
// collector owns its own copy, so there is no shared retry state.
type Policy struct {
	// MaxAttempts bounds total tries, first attempt included.
	MaxAttempts int
	// Base is the first backoff delay; attempt n waits Base * 2^(n-1).
	Base time.Duration
	// Max caps a single delay.
	Max time.Duration
	// JitterFrac spreads each delay by a uniform ±fraction so parallel
	// sources do not retry in lockstep.
	JitterFrac float64

	// rnd is swappable for deterministic tests.
	rnd func() float64
}

// DefaultPolicy mirrors the pacing the tool has always used: five tries,
// exponential from 2s capped at 30s, ±20% jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 5,
		Base:        2 * time.Second,
		Max:         30 * time.Second,
		JitterFrac:  0.20,
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 5
	}
	if p.Base <= 0 {
		p.Base = 2 * time.Second
	}
	if p.Max <= 0 {
		p.Max = 30 * time.Second
	}
	if p.JitterFrac < 0 {
		p.JitterFrac = 0
	}
	if p.rnd == nil {
		p.rnd = rand.Float64
	}
	return p
}

// Delay returns the jittered backoff before attempt+1, given that attempt
// (1-based) just failed.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.Base << uint(attempt-1)
	if d > p.Max || d <= 0 {
		d = p.Max
	}
	if p.JitterFrac > 0 {
		factor := 1 + p.JitterFrac*(2*p.rnd()-1)
		d = time.Duration(float64(d) * factor)
	}
	return d
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
