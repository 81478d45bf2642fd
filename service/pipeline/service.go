// Package pipeline turns a declarative stage graph into executor tasks,
// routing outputs between stages and assembling the final report.
package pipeline

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/rs/zerolog"
	"github.com/viant/structology/conv"

	"github.com/sitepulse/engine/extension"
	model "github.com/sitepulse/engine/model/pipeline"
	"github.com/sitepulse/engine/model/task"
	"github.com/sitepulse/engine/model/types"
	"github.com/sitepulse/engine/policy"
	"github.com/sitepulse/engine/service/cache"
	"github.com/sitepulse/engine/service/dao"
	"github.com/sitepulse/engine/service/event"
	"github.com/sitepulse/engine/service/executor"
	"github.com/sitepulse/engine/service/memlimit"
	"github.com/sitepulse/engine/tracing"
)

// Service runs pipelines: each stage becomes a task wired by its
// dependencies and executed through the task executor; analyzer stages with
// a cache TTL go through an explicit cache lookup-then-compute-then-store.
type Service struct {
	registry    *extension.Registry
	logger      zerolog.Logger
	converter   *conv.Converter
	executorCfg executor.Config
	cache       cache.Cache
	limiter     *memlimit.Limiter
	results     dao.Service[string, task.Result]
	events      *event.Publisher[task.Result]
}

// Option customizes the pipeline service.
type Option func(*Service)

// WithExecutorConfig overrides the executor configuration used per run.
func WithExecutorConfig(config executor.Config) Option {
	return func(s *Service) { s.executorCfg = config }
}

// WithCache enables analyzer result caching.
func WithCache(c cache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithLimiter wires the memory limiter into stage dispatch.
func WithLimiter(limiter *memlimit.Limiter) Option {
	return func(s *Service) { s.limiter = limiter }
}

// WithResultDAO persists stage results.
func WithResultDAO(results dao.Service[string, task.Result]) Option {
	return func(s *Service) { s.results = results }
}

// WithEventPublisher emits stage lifecycle events.
func WithEventPublisher(publisher *event.Publisher[task.Result]) Option {
	return func(s *Service) { s.events = publisher }
}

// New creates a pipeline service over the supplied component registry.
func New(registry *extension.Registry, logger zerolog.Logger, opts ...Option) *Service {
	options := conv.DefaultOptions()
	options.ClonePointerData = true
	options.IgnoreUnmapped = true
	ret := &Service{
		registry:    registry,
		logger:      logger,
		converter:   conv.NewConverter(options),
		executorCfg: executor.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Run executes every stage of the pipeline against the target and returns the
// assembled report. Stage failures are captured into the report's error map;
// only graph validation and resource exhaustion surface as errors.
func (s *Service) Run(ctx context.Context, p *model.Pipeline, target string) (*types.Report, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	ctx, span := tracing.StartSpan(ctx, "pipeline.run")
	span.WithAttributes(map[string]string{"pipeline": p.Name, "target": target})
	var runErr error
	defer func() { tracing.EndSpan(span, runErr) }()

	session := NewSession(p, target)
	s.logger.Info().
		Str("pipeline", p.Name).
		Str("target", target).
		Str("session", session.ID).
		Msg("pipeline run started")

	opts := []executor.Option{}
	if s.limiter != nil {
		opts = append(opts, executor.WithLimiter(s.limiter))
	}
	if s.results != nil {
		opts = append(opts, executor.WithResultDAO(s.results))
	}
	if s.events != nil {
		opts = append(opts, executor.WithEventPublisher(s.events))
	}
	exec, err := executor.New(s.executorCfg, s.logger, opts...)
	if err != nil {
		runErr = err
		return nil, err
	}

	tasks := make([]*task.Task, 0, len(p.Stages))
	for _, stage := range p.Stages {
		t, err := s.stageTask(session, stage)
		if err != nil {
			runErr = err
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if _, err := exec.Submit(tasks...); err != nil {
		runErr = err
		return nil, err
	}

	results, err := exec.Process(ctx)
	report := session.Report()
	for id, result := range results {
		if !result.Succeeded() {
			report.Errors[id] = result.Error
		}
	}
	s.logger.Info().
		Str("pipeline", p.Name).
		Str("session", session.ID).
		Int("stages", len(results)).
		Int("failed", len(report.Errors)).
		Float64("score", report.Score()).
		Msg("pipeline run completed")
	if err != nil {
		runErr = err
		return report, err
	}
	return report, nil
}

// stageTask builds the executor task for one stage.
func (s *Service) stageTask(session *Session, stage *model.Stage) (*task.Task, error) {
	timeout, err := stage.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	ttl, err := stage.CacheTTLDuration()
	if err != nil {
		return nil, err
	}
	t := task.New(stage.ID, func(ctx context.Context) (interface{}, error) {
		return s.runStage(ctx, session, stage, ttl)
	})
	t.WithName(string(stage.Kind) + "." + stage.Component).
		WithDependsOn(stage.DependsOn...)
	if stage.Priority != 0 {
		t.WithPriority(task.Priority(stage.Priority))
	}
	if timeout > 0 {
		t.WithTimeout(timeout)
	}
	if stage.Retries > 0 {
		t.WithRetry(&task.Retry{Type: "fixed", MaxRetries: stage.Retries})
	}
	return t, nil
}

// runStage executes one stage body: policy check, config conversion, the
// component call and output routing.
func (s *Service) runStage(ctx context.Context, session *Session, stage *model.Stage, ttl time.Duration) (interface{}, error) {
	ctx, span := tracing.StartSpan(ctx, "stage."+stage.ID)
	span.WithAttributes(map[string]string{
		"component": stage.Component,
		"kind":      string(stage.Kind),
	})
	var err error
	defer func() { tracing.EndSpan(span, err) }()

	action := string(stage.Kind) + "." + stage.Component
	if !policy.FromContext(ctx).IsAllowed(action) {
		err = fmt.Errorf("component %v blocked by policy", action)
		return nil, err
	}
	component, err := s.registry.Lookup(stage.Kind, stage.Component)
	if err != nil {
		return nil, err
	}
	config, err := s.stageConfig(component, stage)
	if err != nil {
		return nil, err
	}

	var output interface{}
	switch stage.Kind {
	case types.KindCollector:
		collector := component.(types.Collector)
		raw, collectErr := collector.Collect(ctx, session.Target, config)
		if collectErr != nil {
			err = collectErr
			return nil, err
		}
		output = raw
	case types.KindProcessor:
		raw := session.RawData(stage.DependsOn)
		if raw == nil {
			err = fmt.Errorf("stage %v has no raw data dependency", stage.ID)
			return nil, err
		}
		processor := component.(types.Processor)
		page, processErr := processor.Process(ctx, raw, config)
		if processErr != nil {
			err = processErr
			return nil, err
		}
		output = page
	case types.KindAnalyzer:
		page := session.PageData(stage.DependsOn)
		if page == nil {
			err = fmt.Errorf("stage %v has no page data dependency", stage.ID)
			return nil, err
		}
		analyzer := component.(types.Analyzer)
		analysis, analyzeErr := s.analyze(ctx, analyzer, page, config, ttl)
		if analyzeErr != nil {
			err = analyzeErr
			return nil, err
		}
		output = analysis
	case types.KindReporter:
		reporter := component.(types.Reporter)
		report := session.Report()
		if reportErr := reporter.Report(ctx, report, config); reportErr != nil {
			err = reportErr
			return nil, err
		}
		output = report
	default:
		err = fmt.Errorf("stage %v has unknown kind %q", stage.ID, stage.Kind)
		return nil, err
	}
	session.Set(stage.ID, output)
	return output, nil
}

// analyze wraps the analyzer call in an explicit cache boundary when the
// stage carries a TTL; otherwise it calls straight through.
func (s *Service) analyze(ctx context.Context, analyzer types.Analyzer, page *types.PageData, config interface{}, ttl time.Duration) (*types.Analysis, error) {
	started := time.Now()
	if ttl <= 0 || s.cache == nil {
		analysis, err := analyzer.Analyze(ctx, page, config)
		if err != nil {
			return nil, err
		}
		analysis.Component = analyzer.Name()
		analysis.Elapsed = time.Since(started)
		return analysis, nil
	}
	key, err := cache.Key(analyzer.Name(), page, config)
	if err != nil {
		return nil, err
	}
	value, cached, err := cache.Fetch(ctx, s.cache, key, ttl, func(ctx context.Context) (interface{}, error) {
		analysis, err := analyzer.Analyze(ctx, page, config)
		if err != nil {
			return nil, err
		}
		analysis.Component = analyzer.Name()
		return analysis, nil
	})
	if err != nil {
		return nil, err
	}
	analysis, err := s.toAnalysis(value)
	if err != nil {
		return nil, err
	}
	analysis.Cached = cached
	analysis.Elapsed = time.Since(started)
	return analysis, nil
}

// toAnalysis coerces a cached value back into its typed form. File-backed
// caches return generic JSON structures rather than the original type.
func (s *Service) toAnalysis(value interface{}) (*types.Analysis, error) {
	if analysis, ok := value.(*types.Analysis); ok {
		clone := *analysis
		return &clone, nil
	}
	analysis := &types.Analysis{}
	if err := s.converter.Convert(value, analysis); err != nil {
		return nil, fmt.Errorf("failed to convert cached analysis: %w", err)
	}
	return analysis, nil
}

// stageConfig converts the raw stage config into the component's typed
// config when the component declares one.
func (s *Service) stageConfig(component types.Component, stage *model.Stage) (interface{}, error) {
	configurable, ok := component.(types.Configurable)
	if !ok {
		return stage.Config, nil
	}
	rType := configurable.ConfigType()
	if rType == nil {
		return stage.Config, nil
	}
	if rType.Kind() == reflect.Ptr {
		rType = rType.Elem()
	}
	instance := reflect.New(rType).Interface()
	if len(stage.Config) > 0 {
		if err := s.converter.Convert(stage.Config, instance); err != nil {
			return nil, types.NewInvalidConfigError(component.Name(), err)
		}
	}
	return instance, nil
}
