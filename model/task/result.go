package task

import "time"

// Result captures the terminal outcome of a task. Immutable once produced.
type Result struct {
	TaskID      string      `json:"taskId"`
	Status      Status      `json:"status"`
	Output      interface{} `json:"output,omitempty"`
	Error       string      `json:"error,omitempty"`
	Attempts    int         `json:"attempts,omitempty"`
	StartedAt   *time.Time  `json:"startedAt,omitempty"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
}

// Succeeded reports whether the task produced its value.
func (r *Result) Succeeded() bool {
	return r != nil && r.Status == StatusSucceeded
}
