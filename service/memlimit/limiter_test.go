package memlimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLimiter_ThrottleDelaysNextDispatch(t *testing.T) {
	limiter := NewLimiter(30*time.Millisecond, zerolog.Nop())
	limiter.AddThreshold(100, ActionThrottle)

	// below the threshold the gate is free
	limiter.OnUsage(Usage{Alloc: 50})
	started := time.Now()
	assert.NoError(t, limiter.Gate(context.Background()))
	assert.Less(t, time.Since(started), 20*time.Millisecond)

	limiter.OnUsage(Usage{Alloc: 150})
	started = time.Now()
	assert.NoError(t, limiter.Gate(context.Background()))
	assert.GreaterOrEqual(t, time.Since(started), 30*time.Millisecond)

	// the throttle applies once per crossing
	started = time.Now()
	assert.NoError(t, limiter.Gate(context.Background()))
	assert.Less(t, time.Since(started), 20*time.Millisecond)
}

func TestLimiter_ErrorGate(t *testing.T) {
	limiter := NewLimiter(0, zerolog.Nop())
	limiter.AddThreshold(100, ActionError)

	limiter.OnUsage(Usage{Alloc: 200})
	assert.True(t, limiter.Exhausted())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := limiter.Gate(ctx)
	var exhausted *ResourceExhaustionError
	assert.True(t, errors.As(err, &exhausted))
	assert.Equal(t, uint64(100), exhausted.Limit)
	assert.Equal(t, uint64(200), exhausted.Usage)

	limiter.OnUsage(Usage{Alloc: 50})
	assert.False(t, limiter.Exhausted())
	assert.NoError(t, limiter.Gate(context.Background()))
}

func TestLimiter_GateUnblocksOnRecovery(t *testing.T) {
	limiter := NewLimiter(0, zerolog.Nop())
	limiter.AddThreshold(100, ActionError)
	limiter.OnUsage(Usage{Alloc: 200})

	released := make(chan error, 1)
	go func() {
		released <- limiter.Gate(context.Background())
	}()
	time.Sleep(10 * time.Millisecond)
	limiter.OnUsage(Usage{Alloc: 10})

	select {
	case err := <-released:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("gate did not reopen after usage recovered")
	}
}

func TestLimiter_HighestCrossedActionWins(t *testing.T) {
	limiter := NewLimiter(25*time.Millisecond, zerolog.Nop())
	limiter.AddThreshold(100, ActionWarn)
	limiter.AddThreshold(200, ActionThrottle)

	// only the warn threshold is crossed, nothing throttles
	limiter.OnUsage(Usage{Alloc: 150})
	started := time.Now()
	assert.NoError(t, limiter.Gate(context.Background()))
	assert.Less(t, time.Since(started), 20*time.Millisecond)

	limiter.OnUsage(Usage{Alloc: 250})
	started = time.Now()
	assert.NoError(t, limiter.Gate(context.Background()))
	assert.GreaterOrEqual(t, time.Since(started), 25*time.Millisecond)
}

func TestMonitor_SamplesAndNotifies(t *testing.T) {
	previous := ReadUsageFunc
	defer func() { ReadUsageFunc = previous }()
	ReadUsageFunc = func() Usage {
		return Usage{Alloc: 42, SampledAt: time.Now()}
	}

	monitor := NewMonitor(5*time.Millisecond, zerolog.Nop())
	samples := make(chan Usage, 16)
	monitor.RegisterCallback(func(usage Usage) {
		select {
		case samples <- usage:
		default:
		}
	})
	assert.NoError(t, monitor.Start(context.Background()))
	defer monitor.Stop()

	select {
	case usage := <-samples:
		assert.Equal(t, uint64(42), usage.Alloc)
	case <-time.After(time.Second):
		t.Fatal("no sample delivered")
	}
}

func TestMonitor_StartTwice(t *testing.T) {
	monitor := NewMonitor(time.Minute, zerolog.Nop())
	assert.NoError(t, monitor.Start(context.Background()))
	assert.Error(t, monitor.Start(context.Background()))
	monitor.Stop()
}
