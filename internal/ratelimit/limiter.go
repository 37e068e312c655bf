// Package ratelimit implements the per-caller fixed-window rate limiter
// with progressive penalty escalation shared by all inbound processing.
package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Entry is the per-key counter state. The window resets lazily on the next
// access after WindowEnd; no background sweep is required for correctness.
type Entry struct {
	Count      int
	WindowEnd  time.Time
	Violations []time.Time // timestamps of disallowed requests, pruned to the violation window
}

// Store holds per-key entries. Implementations must make Update atomic per
// key so that two near-simultaneous events for one caller cannot both
// observe a count they should not.
type Store interface {
	// Update atomically applies fn to the entry for key, creating a zero
	// entry if absent, and persists the result.
	Update(key string, fn func(e *Entry)) error
	// Get returns a copy of the entry for key without mutating it.
	Get(key string) (Entry, bool, error)
	// Sweep removes entries that ended before cutoff and carry no
	// violations after cutoff. Returns the number removed.
	Sweep(cutoff time.Time) (int, error)
}

// Clock abstracts time.Now for deterministic tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// PenaltyLevel maps a violation count threshold to a window multiplier.
type PenaltyLevel struct {
	Threshold  int // strictly-greater-than violation count that activates this level
	Multiplier int
}

// Config tunes the limiter's penalty escalation.
type Config struct {
	// ViolationWindow is the rolling window in which violations are counted.
	ViolationWindow time.Duration
	// Penalties must be ordered by ascending Threshold. The highest level
	// whose threshold is exceeded applies.
	Penalties []PenaltyLevel
}

// DefaultConfig returns the standard escalation: more than 3 violations in
// 24 hours doubles the effective window, more than 5 quadruples it.
func DefaultConfig() Config {
	return Config{
		ViolationWindow: 24 * time.Hour,
		Penalties: []PenaltyLevel{
			{Threshold: 3, Multiplier: 2},
			{Threshold: 5, Multiplier: 4},
		},
	}
}

// Result is the outcome of one Check call.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
	TotalHits int
}

// Limiter is a fixed-window per-key rate limiter with progressive penalties.
// It fails open: if the store is unreachable the request is allowed and a
// high-severity diagnostic is logged.
type Limiter struct {
	store  Store
	clock  Clock
	cfg    Config
	logger *slog.Logger
}

// New creates a Limiter over the given store with the default penalty
// configuration.
func New(store Store, logger *slog.Logger) *Limiter {
	return NewWithConfig(store, DefaultConfig(), logger)
}

// NewWithConfig creates a Limiter with custom penalty configuration.
func NewWithConfig(store Store, cfg Config, logger *slog.Logger) *Limiter {
	return &Limiter{
		store:  store,
		clock:  systemClock{},
		cfg:    cfg,
		logger: logger.With("subsystem", "ratelimit"),
	}
}

// SetClock overrides the limiter's clock. Intended for tests.
func (l *Limiter) SetClock(c Clock) { l.clock = c }

// Check records a request for key against a fixed window of the given size
// and limit, and reports whether it is allowed. Disallowed requests count as
// violations; accumulated violations extend the reported ResetAt by
// (multiplier-1)*window without altering the underlying counting.
func (l *Limiter) Check(key string, window time.Duration, max int) Result {
	now := l.clock.Now()

	var res Result
	err := l.store.Update(key, func(e *Entry) {
		// Lazy window rollover.
		if e.WindowEnd.IsZero() || !now.Before(e.WindowEnd) {
			e.Count = 0
			e.WindowEnd = now.Add(window)
		}
		e.Count++

		res.TotalHits = e.Count
		res.Allowed = e.Count <= max
		res.Remaining = max - e.Count
		if res.Remaining < 0 {
			res.Remaining = 0
		}
		res.ResetAt = e.WindowEnd

		if !res.Allowed {
			e.Violations = pruneViolations(e.Violations, now.Add(-l.cfg.ViolationWindow))
			e.Violations = append(e.Violations, now)

			if mult := l.multiplier(len(e.Violations)); mult > 1 {
				res.ResetAt = e.WindowEnd.Add(time.Duration(mult-1) * window)
			}
		}
	})
	if err != nil {
		// Fail open: never block legitimate traffic on infrastructure failure.
		l.logger.Error("rate limit store unavailable, failing open",
			"key", key,
			"error", err,
		)
		return Result{Allowed: true, Remaining: max, ResetAt: now.Add(window)}
	}

	if !res.Allowed {
		l.logger.Warn("rate limit exceeded",
			"key", key,
			"total_hits", res.TotalHits,
			"reset_at", res.ResetAt,
		)
	}

	return res
}

// Status returns the current entry for a key without counting a request.
func (l *Limiter) Status(key string) (Entry, bool, error) {
	return l.store.Get(key)
}

// multiplier returns the penalty multiplier for the given violation count.
func (l *Limiter) multiplier(violations int) int {
	mult := 1
	for _, p := range l.cfg.Penalties {
		if violations > p.Threshold {
			mult = p.Multiplier
		}
	}
	return mult
}

// StartSweep runs a background goroutine that periodically removes stale
// entries to bound memory. Stops when the context is cancelled.
func (l *Limiter) StartSweep(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := l.clock.Now().Add(-l.cfg.ViolationWindow)
				removed, err := l.store.Sweep(cutoff)
				if err != nil {
					l.logger.Error("rate limit sweep failed", "error", err)
					continue
				}
				if removed > 0 {
					l.logger.Debug("rate limit sweep", "removed", removed)
				}
			}
		}
	}()
}

// pruneViolations returns only violations at or after cutoff.
func pruneViolations(violations []time.Time, cutoff time.Time) []time.Time {
	var pruned []time.Time
	for _, t := range violations {
		if !t.Before(cutoff) {
			pruned = append(pruned, t)
		}
	}
	return pruned
}
