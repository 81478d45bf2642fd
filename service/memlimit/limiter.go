package memlimit

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Action names the mitigation applied when a threshold is crossed.
type Action string

const (
	// ActionWarn only logs the crossing.
	ActionWarn Action = "warn"
	// ActionThrottle delays the next dispatch that consults the gate.
	ActionThrottle Action = "throttle"
	// ActionGC requests an immediate garbage collection pass.
	ActionGC Action = "gc"
	// ActionError closes the dispatch gate until usage drops back below
	// the threshold.
	ActionError Action = "error"
)

// Threshold binds a usage limit in bytes to an action. Thresholds are
// evaluated low to high and the highest crossed action wins.
type Threshold struct {
	Limit  uint64
	Action Action
}

// ResourceExhaustionError reports that the error gate stayed closed for the
// whole lifetime of the waiting context.
type ResourceExhaustionError struct {
	Limit uint64
	Usage uint64
}

func (e *ResourceExhaustionError) Error() string {
	return fmt.Sprintf("memory usage %v exceeds limit %v", e.Usage, e.Limit)
}

// Limiter turns usage samples into dispatch-side effects. It is wired as a
// monitor callback; the executor consults Gate before each dispatch.
type Limiter struct {
	throttleDelay time.Duration
	logger        zerolog.Logger

	mu         sync.Mutex
	thresholds []Threshold
	usage      uint64
	errorLimit uint64
	throttled  bool
	// release is non-nil while the error gate is closed; closing the
	// channel reopens the gate for every waiter.
	release chan struct{}
}

// NewLimiter creates a limiter; throttleDelay is the pause applied to the
// next dispatch after a throttle threshold is crossed.
func NewLimiter(throttleDelay time.Duration, logger zerolog.Logger) *Limiter {
	return &Limiter{throttleDelay: throttleDelay, logger: logger}
}

// AddThreshold registers a threshold, keeping the set ordered by limit.
func (l *Limiter) AddThreshold(limit uint64, action Action) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.thresholds = append(l.thresholds, Threshold{Limit: limit, Action: action})
	sort.Slice(l.thresholds, func(i, j int) bool {
		return l.thresholds[i].Limit < l.thresholds[j].Limit
	})
}

// OnUsage applies the highest crossed threshold's action and keeps the error
// gate in sync with the sample. Safe to register directly on a Monitor.
func (l *Limiter) OnUsage(usage Usage) {
	l.mu.Lock()
	l.usage = usage.Alloc
	var crossed *Threshold
	for i := range l.thresholds {
		if usage.Alloc >= l.thresholds[i].Limit {
			crossed = &l.thresholds[i]
		}
	}
	errorCrossed := false
	for _, threshold := range l.thresholds {
		if threshold.Action == ActionError && usage.Alloc >= threshold.Limit {
			errorCrossed = true
			l.errorLimit = threshold.Limit
		}
	}
	var action Action
	var limit uint64
	if crossed != nil {
		action, limit = crossed.Action, crossed.Limit
	}
	switch {
	case errorCrossed && l.release == nil:
		l.release = make(chan struct{})
		l.logger.Error().
			Uint64("usage", usage.Alloc).
			Uint64("limit", l.errorLimit).
			Msg("memory limit exceeded, closing dispatch gate")
	case !errorCrossed && l.release != nil:
		close(l.release)
		l.release = nil
		l.logger.Info().
			Uint64("usage", usage.Alloc).
			Msg("memory usage recovered, reopening dispatch gate")
	}
	if action == ActionThrottle {
		l.throttled = true
	}
	l.mu.Unlock()

	switch action {
	case ActionWarn:
		l.logger.Warn().
			Uint64("usage", usage.Alloc).
			Uint64("limit", limit).
			Msg("memory usage above warning threshold")
	case ActionThrottle:
		l.logger.Warn().
			Uint64("usage", usage.Alloc).
			Uint64("limit", limit).
			Dur("delay", l.throttleDelay).
			Msg("memory usage above throttle threshold")
	case ActionGC:
		l.logger.Warn().
			Uint64("usage", usage.Alloc).
			Uint64("limit", limit).
			Msg("memory usage above gc threshold, forcing collection")
		runtime.GC()
	}
}

// Gate blocks the caller while mitigations are pending: a pending throttle
// delays once, a closed error gate blocks until usage recovers. When ctx ends
// while the error gate is closed, a ResourceExhaustionError is returned so the
// caller can escalate.
func (l *Limiter) Gate(ctx context.Context) error {
	l.mu.Lock()
	throttled := l.throttled
	l.throttled = false
	l.mu.Unlock()

	if throttled && l.throttleDelay > 0 {
		timer := time.NewTimer(l.throttleDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	for {
		l.mu.Lock()
		release := l.release
		limit, usage := l.errorLimit, l.usage
		l.mu.Unlock()
		if release == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return &ResourceExhaustionError{Limit: limit, Usage: usage}
		case <-release:
		}
	}
}

// Exhausted reports whether the error gate is currently closed.
func (l *Limiter) Exhausted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.release != nil
}
