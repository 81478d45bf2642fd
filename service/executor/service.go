package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/sitepulse/engine/internal/clock"
	"github.com/sitepulse/engine/model/task"
	"github.com/sitepulse/engine/service/dao"
	"github.com/sitepulse/engine/service/event"
	"github.com/sitepulse/engine/service/memlimit"
)

// Config represents executor service configuration.
type Config struct {
	// WorkerCount bounds concurrent task execution.
	WorkerCount int

	// BatchSize caps a dispatch wave under the batched strategy.
	BatchSize int

	// Strategy selects the dispatch ordering.
	Strategy Strategy

	// MaxTaskRetries applies to tasks without their own retry policy.
	MaxTaskRetries int

	// RetryDelay is the delay between retries for tasks without their own
	// retry policy.
	RetryDelay time.Duration

	// GlobalTimeout bounds a whole Process call; 0 means unbounded.
	GlobalTimeout time.Duration
}

// DefaultConfig returns the default executor configuration.
func DefaultConfig() Config {
	return Config{
		WorkerCount: 5,
		BatchSize:   5,
		Strategy:    StrategyDependencyGraph,
	}
}

// Service accepts task submissions, validates the dependency graph and runs
// the accumulated set to completion under the configured strategy. Submission
// is non-blocking; Process blocks until every task reaches a terminal state.
type Service struct {
	config  Config
	logger  zerolog.Logger
	limiter *memlimit.Limiter
	results dao.Service[string, task.Result]
	events  *event.Publisher[task.Result]

	mu      sync.Mutex
	pending map[string]*task.Task
	order   []string
}

// Option customizes the executor service.
type Option func(*Service)

// WithLimiter wires the memory limiter gate consulted between dispatches.
func WithLimiter(limiter *memlimit.Limiter) Option {
	return func(s *Service) { s.limiter = limiter }
}

// WithResultDAO persists each terminal result.
func WithResultDAO(results dao.Service[string, task.Result]) Option {
	return func(s *Service) { s.results = results }
}

// WithEventPublisher emits a task lifecycle event per terminal result.
func WithEventPublisher(publisher *event.Publisher[task.Result]) Option {
	return func(s *Service) { s.events = publisher }
}

// New creates an executor service.
func New(config Config, logger zerolog.Logger, opts ...Option) (*Service, error) {
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultConfig().WorkerCount
	}
	if config.BatchSize <= 0 {
		config.BatchSize = config.WorkerCount
	}
	if config.Strategy == "" {
		config.Strategy = StrategyDependencyGraph
	}
	if err := config.Strategy.Validate(); err != nil {
		return nil, err
	}
	ret := &Service{
		config:  config,
		logger:  logger,
		pending: make(map[string]*task.Task),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret, nil
}

// Handle identifies an admitted task; the map returned by Process carries its
// result under the same id.
type Handle struct {
	TaskID string
}

// Submit adds tasks to the pending set and returns a handle per task. The
// whole accumulated graph is validated: duplicate ids, dependencies on unknown
// tasks and cycles are rejected with a DependencyError and nothing is admitted.
func (s *Service) Submit(tasks ...*task.Task) ([]*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	admitted := make(map[string]*task.Task, len(s.pending)+len(tasks))
	for id, t := range s.pending {
		admitted[id] = t
	}
	for _, t := range tasks {
		if t == nil || t.ID == "" {
			return nil, &DependencyError{Reason: "task without id"}
		}
		if t.Fn == nil {
			return nil, &DependencyError{TaskID: t.ID, Reason: "task without body"}
		}
		if _, ok := admitted[t.ID]; ok {
			return nil, &DependencyError{TaskID: t.ID, Reason: "duplicate task id"}
		}
		admitted[t.ID] = t
	}
	for _, t := range admitted {
		for _, dep := range t.DependsOn {
			if _, ok := admitted[dep]; !ok {
				return nil, &DependencyError{TaskID: t.ID, Reason: fmt.Sprintf("unknown dependency: %v", dep)}
			}
		}
	}
	if cyclic := findCycle(admitted); cyclic != "" {
		return nil, &DependencyError{TaskID: cyclic, Reason: "dependency cycle"}
	}
	handles := make([]*Handle, 0, len(tasks))
	for _, t := range tasks {
		s.pending[t.ID] = t
		s.order = append(s.order, t.ID)
		handles = append(handles, &Handle{TaskID: t.ID})
	}
	return handles, nil
}

// Pending returns the number of tasks awaiting Process.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// findCycle runs Kahn's algorithm over the graph; when not every task can be
// ordered, one task on a cycle is returned.
func findCycle(tasks map[string]*task.Task) string {
	inDegree := make(map[string]int, len(tasks))
	dependents := make(map[string][]string, len(tasks))
	for id, t := range tasks {
		inDegree[id] += 0
		for _, dep := range t.DependsOn {
			inDegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}
	var queue []string
	for id, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, id)
		}
	}
	ordered := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		ordered++
		for _, dependent := range dependents[id] {
			if inDegree[dependent]--; inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}
	if ordered == len(tasks) {
		return ""
	}
	for id, degree := range inDegree {
		if degree > 0 {
			return id
		}
	}
	return ""
}

// run tracks one Process call.
type run struct {
	service  *Service
	tasks    map[string]*task.Task
	order    []string
	sem      *semaphore.Weighted
	mu       sync.Mutex
	statuses map[string]task.Status
	results  map[string]*task.Result
	fatal    error
}

// Process executes every pending task and blocks until all reach a terminal
// state or the global timeout elapses. The returned map holds exactly one
// result per submitted task; only a resource exhaustion escalation is
// returned as an error.
func (s *Service) Process(ctx context.Context) (map[string]*task.Result, error) {
	s.mu.Lock()
	tasks, order := s.pending, s.order
	s.pending = make(map[string]*task.Task)
	s.order = nil
	s.mu.Unlock()

	if s.config.GlobalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.GlobalTimeout)
		defer cancel()
	}

	r := &run{
		service:  s,
		tasks:    tasks,
		order:    order,
		sem:      semaphore.NewWeighted(int64(s.config.WorkerCount)),
		statuses: make(map[string]task.Status, len(tasks)),
		results:  make(map[string]*task.Result, len(tasks)),
	}
	for _, id := range order {
		r.statuses[id] = task.StatusPending
	}

	for {
		r.cancelBlocked(ctx)
		if fatal := r.fatalError(); fatal != nil {
			r.cancelRemaining(ctx, fatal)
			break
		}
		if ctx.Err() != nil {
			r.cancelRemaining(ctx, ctx.Err())
			break
		}
		ready := r.ready()
		if len(ready) == 0 {
			break
		}
		wave := s.config.Strategy.shape(ready, s.config.BatchSize)
		r.dispatch(ctx, wave)
	}
	return r.results, r.fatalError()
}

// ready returns non-terminal tasks whose dependencies have all succeeded, in
// submission order.
func (r *run) ready() []*task.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*task.Task
outer:
	for _, id := range r.order {
		if r.statuses[id].Terminal() {
			continue
		}
		t := r.tasks[id]
		for _, dep := range t.DependsOn {
			if r.statuses[dep] != task.StatusSucceeded {
				continue outer
			}
		}
		result = append(result, t)
	}
	return result
}

// cancelBlocked cascades cancellation: any task with a failed, timed-out or
// cancelled dependency is marked cancelled without ever running its body.
func (r *run) cancelBlocked(ctx context.Context) {
	for changed := true; changed; {
		changed = false
		for _, id := range r.order {
			r.mu.Lock()
			status := r.statuses[id]
			t := r.tasks[id]
			var blocking string
			if !status.Terminal() {
				for _, dep := range t.DependsOn {
					if r.statuses[dep].BlocksDependents() {
						blocking = dep
						break
					}
				}
			}
			r.mu.Unlock()
			if blocking == "" {
				continue
			}
			r.complete(ctx, t, &task.Result{
				TaskID: id,
				Status: task.StatusCancelled,
				Error:  fmt.Sprintf("dependency %v did not succeed", blocking),
			})
			changed = true
		}
	}
}

// cancelRemaining records a cancelled result for every non-terminal task.
func (r *run) cancelRemaining(ctx context.Context, cause error) {
	for _, id := range r.order {
		r.mu.Lock()
		terminal := r.statuses[id].Terminal()
		t := r.tasks[id]
		r.mu.Unlock()
		if terminal {
			continue
		}
		r.complete(ctx, t, &task.Result{
			TaskID: id,
			Status: task.StatusCancelled,
			Error:  cause.Error(),
		})
	}
}

// dispatch runs one wave. Workers are acquired in wave order so that, at
// capacity one, execution order matches the strategy's ordering.
func (r *run) dispatch(ctx context.Context, wave []*task.Task) {
	var wg sync.WaitGroup
	for _, t := range wave {
		if err := r.service.gate(ctx); err != nil {
			var exhausted *memlimit.ResourceExhaustionError
			if errors.As(err, &exhausted) {
				r.setFatal(err)
			}
			break
		}
		if err := r.sem.Acquire(ctx, 1); err != nil {
			break
		}
		r.setStatus(t.ID, task.StatusScheduled)
		wg.Add(1)
		go func(t *task.Task) {
			defer wg.Done()
			defer r.sem.Release(1)
			r.execute(ctx, t)
		}(t)
	}
	wg.Wait()
}

// gate consults the memory limiter before a dispatch.
func (s *Service) gate(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Gate(ctx)
}

func (r *run) setFatal(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fatal == nil {
		r.fatal = err
	}
}

func (r *run) fatalError() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fatal
}

func (r *run) setStatus(id string, status task.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[id] = status
}

// execute runs a single task to a terminal state, honouring its timeout and
// retry policy. Timeouts are not retried.
func (r *run) execute(ctx context.Context, t *task.Task) {
	s := r.service
	r.setStatus(t.ID, task.StatusRunning)
	started := clock.Now()
	budget := s.retryBudget(t)
	attempts := 0
	for {
		attempts++
		output, err := r.attempt(ctx, t)
		completed := clock.Now()
		if err == nil {
			r.complete(ctx, t, &task.Result{
				TaskID:      t.ID,
				Status:      task.StatusSucceeded,
				Output:      output,
				Attempts:    attempts,
				StartedAt:   &started,
				CompletedAt: &completed,
			})
			return
		}
		var timeout *TimeoutError
		if errors.As(err, &timeout) {
			r.complete(ctx, t, &task.Result{
				TaskID:      t.ID,
				Status:      task.StatusTimedOut,
				Error:       err.Error(),
				Attempts:    attempts,
				StartedAt:   &started,
				CompletedAt: &completed,
			})
			return
		}
		if ctx.Err() != nil {
			r.complete(ctx, t, &task.Result{
				TaskID:      t.ID,
				Status:      task.StatusCancelled,
				Error:       ctx.Err().Error(),
				Attempts:    attempts,
				StartedAt:   &started,
				CompletedAt: &completed,
			})
			return
		}
		if attempts > budget {
			execErr := &ExecutionError{TaskID: t.ID, Attempts: attempts, Cause: err}
			r.complete(ctx, t, &task.Result{
				TaskID:      t.ID,
				Status:      task.StatusFailed,
				Error:       execErr.Error(),
				Attempts:    attempts,
				StartedAt:   &started,
				CompletedAt: &completed,
			})
			return
		}
		s.logger.Debug().
			Str("task", t.ID).
			Int("attempt", attempts).
			Err(err).
			Msg("retrying task")
		if delay := s.retryDelay(t, attempts); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
			case <-timer.C:
			}
		}
	}
}

// attempt runs the task body once, bounded by the task timeout. The body
// goroutine is signalled through ctx on timeout; bodies that never check ctx
// run to completion in the background.
func (r *run) attempt(ctx context.Context, t *task.Task) (interface{}, error) {
	runCtx := ctx
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}
	type outcome struct {
		value interface{}
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		value, err := t.Fn(runCtx)
		done <- outcome{value: value, err: err}
	}()
	select {
	case result := <-done:
		if t.Timeout > 0 && errors.Is(result.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &TimeoutError{TaskID: t.ID, Timeout: t.Timeout}
		}
		return result.value, result.err
	case <-runCtx.Done():
		if t.Timeout > 0 && ctx.Err() == nil {
			return nil, &TimeoutError{TaskID: t.ID, Timeout: t.Timeout}
		}
		return nil, ctx.Err()
	}
}

func (s *Service) retryBudget(t *task.Task) int {
	if t.Retry == nil {
		return s.config.MaxTaskRetries
	}
	return t.Retry.Budget()
}

func (s *Service) retryDelay(t *task.Task, attempt int) time.Duration {
	if t.Retry == nil {
		return s.config.RetryDelay
	}
	return t.Retry.NextDelay(attempt)
}

// complete records a terminal result, persists it and emits an event.
func (r *run) complete(ctx context.Context, t *task.Task, result *task.Result) {
	r.mu.Lock()
	if r.statuses[t.ID].Terminal() {
		r.mu.Unlock()
		return
	}
	r.statuses[t.ID] = result.Status
	r.results[t.ID] = result
	r.mu.Unlock()

	s := r.service
	logEvent := s.logger.Debug()
	if result.Status != task.StatusSucceeded {
		logEvent = s.logger.Warn()
	}
	logEvent.
		Str("task", t.ID).
		Str("status", string(result.Status)).
		Int("attempts", result.Attempts).
		Str("error", result.Error).
		Msg("task completed")

	if s.results != nil {
		if err := s.results.Save(ctx, result); err != nil {
			s.logger.Warn().Err(err).Str("task", t.ID).Msg("failed to persist task result")
		}
	}
	if s.events != nil {
		elapsed := 0
		if result.StartedAt != nil && result.CompletedAt != nil {
			elapsed = int(result.CompletedAt.Sub(*result.StartedAt).Milliseconds())
		}
		evt := event.NewEvent(&event.Context{
			TaskID:      t.ID,
			EventType:   "task." + string(result.Status),
			TimeTakenMs: elapsed,
		}, *result)
		if err := s.events.Publish(ctx, evt); err != nil {
			s.logger.Debug().Err(err).Str("task", t.ID).Msg("failed to publish task event")
		}
	}
}
