package engine

import (
	"fmt"
	"time"

	"github.com/sitepulse/engine/service/executor"
)

// Config is a serialisable representation of the engine configuration. It can
// be populated from JSON or YAML; the zero value is useful since all nested
// fields inherit their package defaults.
type Config struct {
	Executor ExecutorConfig `json:"executor" yaml:"executor"`
	Cache    CacheConfig    `json:"cache" yaml:"cache"`
	Memory   MemoryConfig   `json:"memory" yaml:"memory"`
	Results  ResultsConfig  `json:"results" yaml:"results"`
}

// ExecutorConfig tunes the task executor.
type ExecutorConfig struct {
	Workers       int    `json:"workers" yaml:"workers"`
	BatchSize     int    `json:"batchSize,omitempty" yaml:"batchSize,omitempty"`
	Strategy      string `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	GlobalTimeout string `json:"globalTimeout,omitempty" yaml:"globalTimeout,omitempty"`
}

// CacheConfig tunes the analysis cache.
type CacheConfig struct {
	Capacity   int    `json:"capacity,omitempty" yaml:"capacity,omitempty"`
	DefaultTTL string `json:"defaultTtl,omitempty" yaml:"defaultTtl,omitempty"`
}

// MemoryConfig tunes the memory monitor and limiter.
type MemoryConfig struct {
	Interval      string            `json:"interval,omitempty" yaml:"interval,omitempty"`
	ThrottleDelay string            `json:"throttleDelay,omitempty" yaml:"throttleDelay,omitempty"`
	Thresholds    []ThresholdConfig `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// ThresholdConfig binds a byte limit to a limiter action.
type ThresholdConfig struct {
	Limit  uint64 `json:"limit" yaml:"limit"`
	Action string `json:"action" yaml:"action"`
}

// ResultsConfig tunes task result retention.
type ResultsConfig struct {
	Retention string `json:"retention,omitempty" yaml:"retention,omitempty"`
}

// DefaultConfig returns a config populated with the package defaults.
func DefaultConfig() *Config {
	return &Config{
		Executor: ExecutorConfig{
			Workers:  5,
			Strategy: string(executor.StrategyDependencyGraph),
		},
		Cache: CacheConfig{
			Capacity:   1024,
			DefaultTTL: "15m",
		},
		Memory: MemoryConfig{
			Interval:      "5s",
			ThrottleDelay: "100ms",
		},
		Results: ResultsConfig{
			Retention: "1h",
		},
	}
}

// Validate returns an error describing invalid settings, or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Executor.Workers <= 0 {
		return fmt.Errorf("executor.workers must be > 0")
	}
	if c.Executor.Strategy != "" {
		if err := executor.Strategy(c.Executor.Strategy).Validate(); err != nil {
			return err
		}
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"executor.globalTimeout", c.Executor.GlobalTimeout},
		{"cache.defaultTtl", c.Cache.DefaultTTL},
		{"memory.interval", c.Memory.Interval},
		{"memory.throttleDelay", c.Memory.ThrottleDelay},
		{"results.retention", c.Results.Retention},
	} {
		if field.value == "" {
			continue
		}
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("%v: %w", field.name, err)
		}
	}
	for _, threshold := range c.Memory.Thresholds {
		if threshold.Limit == 0 {
			return fmt.Errorf("memory.thresholds: limit must be > 0")
		}
		switch threshold.Action {
		case "warn", "throttle", "gc", "error":
		default:
			return fmt.Errorf("memory.thresholds: unknown action %q", threshold.Action)
		}
	}
	return nil
}

func duration(value string) time.Duration {
	if value == "" {
		return 0
	}
	d, _ := time.ParseDuration(value)
	return d
}
