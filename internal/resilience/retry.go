// Package resilience retries storage writes that fail transiently: SQLite
// lock contention, dropped Postgres connections and serialization failures.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy controls how a store retries a write. Backoff grows exponentially
// from InitialBackoff, capped at MaxBackoff, with symmetric jitter.
type Policy struct {
	// Name identifies the store backend in retry logs.
	Name string

	// MaxAttempts counts the first try. 1 disables retries.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64

	// JitterFraction is the +/- share of each delay drawn at random.
	JitterFraction float64

	// ShouldRetry overrides IsTransient when set.
	ShouldRetry func(err error) bool

	// OnRetry overrides the default zap warning before each retry sleep.
	OnRetry func(op string, attempt int, err error)
}

// DefaultPolicy returns the policy stores start with.
func DefaultPolicy(name string) Policy {
	return Policy{
		Name:           name,
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}
}

// Do runs the write op under p. Cancelling ctx stops retrying at once and
// returns the last error from fn.
func Do(ctx context.Context, p Policy, op string, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, p, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for writes that report a value, usually a row count.
func DoVal[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	for attempt := 1; ; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		if ctx.Err() != nil || !p.ShouldRetry(err) || attempt >= p.MaxAttempts {
			return zero, err
		}

		p.OnRetry(op, attempt, err)

		timer := time.NewTimer(p.backoff(attempt - 1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy(p.Name)
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = def.InitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = def.MaxBackoff
	}
	if p.Multiplier <= 0 {
		p.Multiplier = def.Multiplier
	}
	if p.JitterFraction < 0 {
		p.JitterFraction = 0
	}
	if p.ShouldRetry == nil {
		p.ShouldRetry = IsTransient
	}
	if p.OnRetry == nil {
		p.OnRetry = p.logRetry
	}
	return p
}

func (p Policy) logRetry(op string, attempt int, err error) {
	zap.L().Warn("store: retrying write",
		zap.String("store", p.Name),
		zap.String("op", op),
		zap.Int("attempt", attempt),
		zap.Error(err),
	)
}

// backoff is the sleep after the given zero-based failed attempt.
func (p Policy) backoff(attempt int) time.Duration {
	delay := float64(p.InitialBackoff) * math.Pow(p.Multiplier, float64(attempt))
	delay = math.Min(delay, float64(p.MaxBackoff))

	if p.JitterFraction > 0 {
		delay += (rand.Float64()*2 - 1) * delay * p.JitterFraction
	}
	return time.Duration(math.Max(delay, 0))
}
