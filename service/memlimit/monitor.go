// Package memlimit samples process memory and maps usage thresholds to
// mitigation actions consulted by the task executor between dispatches.
package memlimit

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sitepulse/engine/internal/clock"
)

// Usage is a point-in-time memory snapshot handed to monitor callbacks.
type Usage struct {
	// Alloc is the number of bytes of allocated heap objects.
	Alloc uint64
	// Sys is the total bytes obtained from the OS.
	Sys uint64
	// NumGC counts completed garbage collection cycles.
	NumGC     uint32
	SampledAt time.Time
}

// ReadUsageFunc returns the current usage snapshot.
// It can be replaced for testing purposes.
var ReadUsageFunc = func() Usage {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return Usage{
		Alloc:     stats.Alloc,
		Sys:       stats.Sys,
		NumGC:     stats.NumGC,
		SampledAt: clock.Now(),
	}
}

// Callback receives each usage sample.
type Callback func(usage Usage)

// Monitor periodically samples memory usage and fans the snapshot out to
// registered callbacks. Sampling is advisory and best effort.
type Monitor struct {
	interval  time.Duration
	logger    zerolog.Logger
	mu        sync.Mutex
	callbacks []Callback
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewMonitor creates a monitor sampling at the supplied interval.
func NewMonitor(interval time.Duration, logger zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = time.Second
	}
	return &Monitor{interval: interval, logger: logger}
}

// RegisterCallback adds a callback invoked on every sample. Callbacks run on
// the monitor goroutine and must not block.
func (m *Monitor) RegisterCallback(fn Callback) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, fn)
}

// Start begins sampling until ctx ends or Stop is called. The first sample is
// taken immediately.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return fmt.Errorf("memory monitor already started")
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		m.sample()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sample()
			}
		}
	}()
	return nil
}

// Stop ends sampling and waits for the monitor goroutine to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Sample takes one snapshot outside the ticker loop, fanning it out to the
// registered callbacks.
func (m *Monitor) Sample() Usage {
	return m.sample()
}

func (m *Monitor) sample() Usage {
	usage := ReadUsageFunc()
	m.logger.Trace().
		Uint64("alloc", usage.Alloc).
		Uint64("sys", usage.Sys).
		Uint32("numGC", usage.NumGC).
		Msg("memory sample")
	m.mu.Lock()
	callbacks := make([]Callback, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.Unlock()
	for _, fn := range callbacks {
		fn(usage)
	}
	return usage
}
