package executor

import (
	"fmt"
	"sort"

	"github.com/sitepulse/engine/model/task"
)

// Strategy selects how ready tasks are shaped into dispatch waves.
type Strategy string

const (
	// StrategyParallel dispatches every ready task within worker capacity.
	StrategyParallel Strategy = "parallel"
	// StrategyBatched dispatches ready tasks in fixed-size batches; a batch
	// completes fully before the next one starts.
	StrategyBatched Strategy = "batched"
	// StrategyPriority orders ready tasks by priority descending, ties
	// broken by submission order.
	StrategyPriority Strategy = "priority"
	// StrategyDependencyGraph dispatches in dependency waves; a wave holds
	// exactly the tasks whose dependencies have all succeeded.
	StrategyDependencyGraph Strategy = "dependencyGraph"
)

// Validate rejects unknown strategies.
func (s Strategy) Validate() error {
	switch s {
	case StrategyParallel, StrategyBatched, StrategyPriority, StrategyDependencyGraph:
		return nil
	}
	return fmt.Errorf("unsupported strategy: %v", s)
}

// shape orders and trims the ready set for one dispatch wave. The input is in
// submission order, which priority sorting preserves for equal priorities.
func (s Strategy) shape(ready []*task.Task, batchSize int) []*task.Task {
	switch s {
	case StrategyPriority:
		sort.SliceStable(ready, func(i, j int) bool {
			return ready[i].Priority > ready[j].Priority
		})
	case StrategyBatched:
		if batchSize > 0 && len(ready) > batchSize {
			return ready[:batchSize]
		}
	}
	return ready
}
