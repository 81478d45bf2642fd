package executor

import (
	"fmt"
	"time"
)

// DependencyError rejects a submission whose graph is invalid: a dependency
// on an unknown task, or a dependency cycle. It is the only error raised
// synchronously; everything else lands in a task result.
type DependencyError struct {
	TaskID string
	Reason string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("invalid task graph at %v: %v", e.TaskID, e.Reason)
}

// ExecutionError captures a task body failure after its retry budget ran out.
type ExecutionError struct {
	TaskID   string
	Attempts int
	Cause    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("task %v failed after %v attempt(s): %v", e.TaskID, e.Attempts, e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// TimeoutError marks an attempt that exceeded the task's timeout.
type TimeoutError struct {
	TaskID  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("task %v timed out after %v", e.TaskID, e.Timeout)
}
