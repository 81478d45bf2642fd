package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/sitepulse/engine/model/task"
	"github.com/sitepulse/engine/service/memlimit"
)

func newTestService(t *testing.T, config Config, opts ...Option) *Service {
	t.Helper()
	svc, err := New(config, zerolog.Nop(), opts...)
	if err != nil {
		t.Fatal(err)
	}
	return svc
}

func TestService_Process_Acyclic(t *testing.T) {
	svc := newTestService(t, Config{WorkerCount: 4})

	var order []string
	var mu sync.Mutex
	record := func(id string) task.Fn {
		return func(ctx context.Context) (interface{}, error) {
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			return id + "-output", nil
		}
	}
	handles, err := svc.Submit(
		task.New("fetch", record("fetch")),
		task.New("parse", record("parse")).WithDependsOn("fetch"),
		task.New("meta", record("meta")).WithDependsOn("parse"),
		task.New("links", record("links")).WithDependsOn("parse"),
		task.New("report", record("report")).WithDependsOn("meta", "links"),
	)
	assert.NoError(t, err)
	assert.Equal(t, 5, len(handles))
	assert.Equal(t, "fetch", handles[0].TaskID)

	results, err := svc.Process(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 5, len(results))
	for id, result := range results {
		assert.Equal(t, task.StatusSucceeded, result.Status, id)
		assert.Equal(t, id+"-output", result.Output)
		assert.Equal(t, 1, result.Attempts)
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "fetch", order[0])
	assert.Equal(t, "report", order[len(order)-1])
}

func TestService_Submit_InvalidGraph(t *testing.T) {
	testCases := []struct {
		description string
		tasks       []*task.Task
	}{
		{
			description: "unknown dependency",
			tasks: []*task.Task{
				task.New("a", noop).WithDependsOn("missing"),
			},
		},
		{
			description: "cycle",
			tasks: []*task.Task{
				task.New("a", noop).WithDependsOn("b"),
				task.New("b", noop).WithDependsOn("a"),
			},
		},
		{
			description: "self cycle",
			tasks: []*task.Task{
				task.New("a", noop).WithDependsOn("a"),
			},
		},
		{
			description: "duplicate id",
			tasks: []*task.Task{
				task.New("a", noop),
				task.New("a", noop),
			},
		},
	}
	for _, testCase := range testCases {
		svc := newTestService(t, Config{})
		_, err := svc.Submit(testCase.tasks...)
		var depErr *DependencyError
		assert.True(t, errors.As(err, &depErr), testCase.description)
		assert.Equal(t, 0, svc.Pending(), testCase.description)
	}
}

func noop(ctx context.Context) (interface{}, error) { return nil, nil }

func TestService_Process_CancelsDependents(t *testing.T) {
	svc := newTestService(t, Config{WorkerCount: 2})

	var invoked int32
	_, err := svc.Submit(
		task.New("broken", func(ctx context.Context) (interface{}, error) {
			return nil, fmt.Errorf("no such host")
		}),
		task.New("dependent", func(ctx context.Context) (interface{}, error) {
			atomic.AddInt32(&invoked, 1)
			return nil, nil
		}).WithDependsOn("broken"),
		task.New("transitive", func(ctx context.Context) (interface{}, error) {
			atomic.AddInt32(&invoked, 1)
			return nil, nil
		}).WithDependsOn("dependent"),
		task.New("independent", noop),
	)
	assert.NoError(t, err)

	results, err := svc.Process(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, task.StatusFailed, results["broken"].Status)
	assert.Equal(t, task.StatusCancelled, results["dependent"].Status)
	assert.Equal(t, task.StatusCancelled, results["transitive"].Status)
	assert.Equal(t, task.StatusSucceeded, results["independent"].Status)
	assert.Equal(t, int32(0), atomic.LoadInt32(&invoked))
}

func TestService_Process_PriorityOrder(t *testing.T) {
	svc := newTestService(t, Config{WorkerCount: 1, Strategy: StrategyPriority})

	var order []string
	var mu sync.Mutex
	record := func(id string) task.Fn {
		return func(ctx context.Context) (interface{}, error) {
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			return nil, nil
		}
	}
	_, err := svc.Submit(
		task.New("p5", record("p5")).WithPriority(5),
		task.New("p1", record("p1")).WithPriority(1),
		task.New("p9", record("p9")).WithPriority(9),
	)
	assert.NoError(t, err)
	_, err = svc.Process(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []string{"p9", "p5", "p1"}, order)
}

func TestService_Process_PriorityTieIsFIFO(t *testing.T) {
	svc := newTestService(t, Config{WorkerCount: 1, Strategy: StrategyPriority})

	var order []string
	var mu sync.Mutex
	record := func(id string) task.Fn {
		return func(ctx context.Context) (interface{}, error) {
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			return nil, nil
		}
	}
	_, err := svc.Submit(
		task.New("first", record("first")).WithPriority(5),
		task.New("second", record("second")).WithPriority(5),
		task.New("high", record("high")).WithPriority(9),
	)
	assert.NoError(t, err)
	_, err = svc.Process(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, []string{"high", "first", "second"}, order)
}

func TestService_Process_Retries(t *testing.T) {
	svc := newTestService(t, Config{WorkerCount: 1})

	var calls int32
	_, err := svc.Submit(
		task.New("flaky", func(ctx context.Context) (interface{}, error) {
			if atomic.AddInt32(&calls, 1) < 3 {
				return nil, fmt.Errorf("transient")
			}
			return "ok", nil
		}).WithRetry(&task.Retry{Type: "fixed", MaxRetries: 2, Delay: time.Millisecond}),
	)
	assert.NoError(t, err)
	results, err := svc.Process(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, task.StatusSucceeded, results["flaky"].Status)
	assert.Equal(t, 3, results["flaky"].Attempts)
}

func TestService_Process_RetriesExhausted(t *testing.T) {
	svc := newTestService(t, Config{WorkerCount: 1})

	_, err := svc.Submit(
		task.New("doomed", func(ctx context.Context) (interface{}, error) {
			return nil, fmt.Errorf("permanent")
		}).WithRetry(&task.Retry{Type: "fixed", MaxRetries: 1, Delay: time.Millisecond}),
	)
	assert.NoError(t, err)
	results, err := svc.Process(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, task.StatusFailed, results["doomed"].Status)
	assert.Equal(t, 2, results["doomed"].Attempts)
	assert.Contains(t, results["doomed"].Error, "permanent")
}

func TestService_Process_Timeout(t *testing.T) {
	svc := newTestService(t, Config{WorkerCount: 2})

	_, err := svc.Submit(
		task.New("slow", func(ctx context.Context) (interface{}, error) {
			select {
			case <-time.After(time.Second):
				return nil, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}).WithTimeout(20*time.Millisecond).
			WithRetry(&task.Retry{Type: "fixed", MaxRetries: 3}),
		task.New("after", noop).WithDependsOn("slow"),
	)
	assert.NoError(t, err)
	results, err := svc.Process(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, task.StatusTimedOut, results["slow"].Status)
	// timeouts are terminal, the retry budget is not consumed
	assert.Equal(t, 1, results["slow"].Attempts)
	assert.Equal(t, task.StatusCancelled, results["after"].Status)
}

func TestService_Process_Batched(t *testing.T) {
	svc := newTestService(t, Config{WorkerCount: 4, BatchSize: 2, Strategy: StrategyBatched})

	var running, peak int32
	body := func(ctx context.Context) (interface{}, error) {
		now := atomic.AddInt32(&running, 1)
		for {
			seen := atomic.LoadInt32(&peak)
			if now <= seen || atomic.CompareAndSwapInt32(&peak, seen, now) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return nil, nil
	}
	for i := 0; i < 6; i++ {
		_, err := svc.Submit(task.New(fmt.Sprintf("t%d", i), body))
		assert.NoError(t, err)
	}
	results, err := svc.Process(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 6, len(results))
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestService_Process_ResourceExhaustion(t *testing.T) {
	limiter := memlimit.NewLimiter(0, zerolog.Nop())
	limiter.AddThreshold(100, memlimit.ActionError)
	limiter.OnUsage(memlimit.Usage{Alloc: 200})

	svc := newTestService(t, Config{WorkerCount: 1}, WithLimiter(limiter))
	_, err := svc.Submit(task.New("starved", noop))
	assert.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	results, err := svc.Process(ctx)
	var exhausted *memlimit.ResourceExhaustionError
	assert.True(t, errors.As(err, &exhausted))
	assert.Equal(t, task.StatusCancelled, results["starved"].Status)
}

func TestService_Process_ResumesAfterRecovery(t *testing.T) {
	limiter := memlimit.NewLimiter(0, zerolog.Nop())
	limiter.AddThreshold(100, memlimit.ActionError)
	limiter.OnUsage(memlimit.Usage{Alloc: 200})

	svc := newTestService(t, Config{WorkerCount: 1}, WithLimiter(limiter))
	_, err := svc.Submit(task.New("waiting", noop))
	assert.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		limiter.OnUsage(memlimit.Usage{Alloc: 50})
	}()
	results, err := svc.Process(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, task.StatusSucceeded, results["waiting"].Status)
}
