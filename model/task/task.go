package task

import (
	"context"
	"math"
	"time"

	"github.com/sitepulse/engine/internal/clock"
)

// Fn is the body of a task. It must honour ctx cancellation at its next safe
// checkpoint; bodies that never check ctx run to completion.
type Fn func(ctx context.Context) (interface{}, error)

// Priority orders ready tasks under the priority strategy. Higher runs first.
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityNormal Priority = 5
	PriorityHigh   Priority = 9
)

type (
	// Task is an immutable unit of work with identity, dependencies and an
	// optional timeout/retry policy.
	Task struct {
		ID        string        `json:"id"`
		Name      string        `json:"name,omitempty"`
		Priority  Priority      `json:"priority,omitempty"`
		DependsOn []string      `json:"dependsOn,omitempty"`
		Timeout   time.Duration `json:"timeout,omitempty"`
		Retry     *Retry        `json:"retry,omitempty"`
		Fn        Fn            `json:"-"`
		CreatedAt time.Time     `json:"createdAt"`
	}

	// Retry describes the retry policy for a task body error.
	Retry struct {
		Type       string        `json:"type,omitempty"` // none, fixed, exponential
		MaxRetries int           `json:"maxRetries,omitempty"`
		Delay      time.Duration `json:"delay,omitempty"`
		Multiplier float64       `json:"multiplier,omitempty"`
		MaxDelay   time.Duration `json:"maxDelay,omitempty"`
	}
)

// New creates a task with normal priority.
func New(id string, fn Fn) *Task {
	return &Task{ID: id, Priority: PriorityNormal, Fn: fn, CreatedAt: clock.Now()}
}

// WithName sets a human readable name.
func (t *Task) WithName(name string) *Task {
	t.Name = name
	return t
}

// WithPriority sets the task priority.
func (t *Task) WithPriority(p Priority) *Task {
	t.Priority = p
	return t
}

// WithDependsOn adds dependencies by task id.
func (t *Task) WithDependsOn(ids ...string) *Task {
	t.DependsOn = append(t.DependsOn, ids...)
	return t
}

// WithTimeout bounds a single execution attempt.
func (t *Task) WithTimeout(d time.Duration) *Task {
	t.Timeout = d
	return t
}

// WithRetry sets the retry policy.
func (t *Task) WithRetry(retry *Retry) *Task {
	t.Retry = retry
	return t
}

// Budget returns how many retries the policy grants.
func (r *Retry) Budget() int {
	if r == nil || r.Type == "none" {
		return 0
	}
	return r.MaxRetries
}

// NextDelay returns the delay before the given retry attempt (1-based).
func (r *Retry) NextDelay(attempt int) time.Duration {
	if r == nil || r.Delay <= 0 {
		return 0
	}
	switch r.Type {
	case "exponential":
		mult := r.Multiplier
		if mult <= 1 {
			mult = 2
		}
		delay := time.Duration(float64(r.Delay) * math.Pow(mult, float64(attempt-1)))
		if r.MaxDelay > 0 && delay > r.MaxDelay {
			delay = r.MaxDelay
		}
		return delay
	default: // fixed
		return r.Delay
	}
}
