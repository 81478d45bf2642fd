package task

// Status represents the current state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusTimedOut  Status = "timedOut"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled, StatusTimedOut:
		return true
	}
	return false
}

// BlocksDependents reports whether dependents of a task in this state must be
// cancelled. TimedOut is treated as Failed for propagation purposes.
func (s Status) BlocksDependents() bool {
	switch s {
	case StatusFailed, StatusCancelled, StatusTimedOut:
		return true
	}
	return false
}
