package ratelimit

import (
	"context"
	"time"
)

// Store is the counter backend. The Redis store is used when Redis is
// configured so limits survive restarts and span replicas; the memory store
// is the standalone fallback.
type Store interface {
	// Incr bumps the counter for key, starting a new window if none is
	// live, and returns the new count plus time until the window resets.
	Incr(ctx context.Context, key string, window time.Duration) (count int64, reset time.Duration, err error)

	// Decr undoes one Incr while the window is live. Stores that cannot do
	// this safely return ErrDecrUnsupported.
	Decr(ctx context.Context, key string) error

	// Block marks key as blocked for the given duration.
	Block(ctx context.Context, key string, d time.Duration) error

	// BlockedFor returns the remaining block duration, zero if not blocked.
	BlockedFor(ctx context.Context, key string) (time.Duration, error)

	// IncrBreach counts a limit breach for key and returns the total within
	// the breach tracking period.
	IncrBreach(ctx context.Context, key string, period time.Duration) (int64, error)
}

// ErrDecrUnsupported is returned by stores that cannot decrement safely.
// The limiter then skips conditional counting for that store.
var ErrDecrUnsupported = errDecrUnsupported{}

type errDecrUnsupported struct{}

func (errDecrUnsupported) Error() string { return "decrement not supported" }

// Rule configures one named limiter.
type Rule struct {
	Name   string
	Window time.Duration
	Limit  int64

	// BlockAfter breaches within BreachPeriod escalate to a BlockFor block.
	// Zero disables escalation.
	BlockAfter   int64
	BlockFor     time.Duration
	BreachPeriod time.Duration

	// CountFailuresOnly refunds the request when it succeeds, so only
	// failed attempts consume budget. CountSuccessesOnly is the mirror:
	// failed requests are refunded and only successes consume budget.
	// Both are effective only on stores that support decrement.
	CountFailuresOnly  bool
	CountSuccessesOnly bool
}

// Decision is the outcome of a limiter check.
type Decision struct {
	Allowed    bool
	Blocked    bool
	Limit      int64
	Remaining  int64
	Reset      time.Duration
	RetryAfter time.Duration
}

// Limiter applies one rule against a store.
type Limiter struct {
	rule  Rule
	store Store
}

// NewLimiter creates a limiter for the rule.
func NewLimiter(rule Rule, store Store) *Limiter {
	if rule.BreachPeriod <= 0 {
		rule.BreachPeriod = 24 * time.Hour
	}
	return &Limiter{rule: rule, store: store}
}

// Rule returns the limiter's rule.
func (l *Limiter) Rule() Rule {
	return l.rule
}

// Check consumes one unit of budget for key and decides whether the request
// may proceed.
func (l *Limiter) Check(ctx context.Context, key string) (*Decision, error) {
	blocked, err := l.store.BlockedFor(ctx, l.blockKey(key))
	if err != nil {
		return nil, err
	}
	if blocked > 0 {
		return &Decision{
			Blocked:    true,
			Limit:      l.rule.Limit,
			RetryAfter: blocked,
		}, nil
	}

	count, reset, err := l.store.Incr(ctx, l.countKey(key), l.rule.Window)
	if err != nil {
		return nil, err
	}

	if count > l.rule.Limit {
		retryAfter := reset
		if l.rule.BlockAfter > 0 {
			breaches, err := l.store.IncrBreach(ctx, l.breachKey(key), l.rule.BreachPeriod)
			if err != nil {
				return nil, err
			}
			if breaches >= l.rule.BlockAfter {
				if err := l.store.Block(ctx, l.blockKey(key), l.rule.BlockFor); err != nil {
					return nil, err
				}
				return &Decision{
					Blocked:    true,
					Limit:      l.rule.Limit,
					RetryAfter: l.rule.BlockFor,
				}, nil
			}
		}
		return &Decision{
			Limit:      l.rule.Limit,
			Remaining:  0,
			Reset:      reset,
			RetryAfter: retryAfter,
		}, nil
	}

	remaining := l.rule.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return &Decision{
		Allowed:   true,
		Limit:     l.rule.Limit,
		Remaining: remaining,
		Reset:     reset,
	}, nil
}

// Refund returns one unit of budget for key. No-op on stores without
// decrement support.
func (l *Limiter) Refund(ctx context.Context, key string) error {
	err := l.store.Decr(ctx, l.countKey(key))
	if err == ErrDecrUnsupported {
		return nil
	}
	return err
}

func (l *Limiter) countKey(key string) string {
	return "ratelimit:" + l.rule.Name + ":" + key
}

func (l *Limiter) blockKey(key string) string {
	return "ratelimit:" + l.rule.Name + ":" + key + ":block"
}

func (l *Limiter) breachKey(key string) string {
	return "ratelimit:" + l.rule.Name + ":" + key + ":breaches"
}
