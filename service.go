package engine

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/viant/afs"

	"github.com/sitepulse/engine/extension"
	"github.com/sitepulse/engine/model/task"
	"github.com/sitepulse/engine/model/types"
	"github.com/sitepulse/engine/service/cache"
	"github.com/sitepulse/engine/service/component/fetch"
	"github.com/sitepulse/engine/service/component/headers"
	"github.com/sitepulse/engine/service/component/htmlproc"
	"github.com/sitepulse/engine/service/component/jsonreport"
	"github.com/sitepulse/engine/service/component/nop"
	"github.com/sitepulse/engine/service/component/seometa"
	"github.com/sitepulse/engine/service/dao"
	resultmemory "github.com/sitepulse/engine/service/dao/result/memory"
	dpipeline "github.com/sitepulse/engine/service/dao/pipeline"
	"github.com/sitepulse/engine/service/event"
	"github.com/sitepulse/engine/service/executor"
	"github.com/sitepulse/engine/service/memlimit"
	spipeline "github.com/sitepulse/engine/service/pipeline"
)

type registration struct {
	kind      types.Kind
	component types.Component
}

// Service wires the engine together: component registry, analysis cache,
// memory monitor and limiter, result store and the pipeline runner. Every
// collaborator can be replaced through an Option; anything not supplied gets
// a sensible in-memory default.
type Service struct {
	config    *Config
	logger    zerolog.Logger
	loggerSet bool
	fs        afs.Service

	registry        *extension.Registry
	extraComponents []registration
	cacheManager    *cache.Manager
	analysisCache   cache.Cache
	monitor         *memlimit.Monitor
	limiter         *memlimit.Limiter
	resultDAO       dao.Service[string, task.Result]
	eventService    *event.Service
	runtime         *Runtime
}

// New creates an engine service.
func New(options ...Option) (*Service, error) {
	ret := &Service{runtime: &Runtime{}}
	for _, option := range options {
		option(ret)
	}
	if err := ret.init(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *Service) init() error {
	if s.config == nil {
		s.config = DefaultConfig()
	}
	if err := s.config.Validate(); err != nil {
		return err
	}
	if !s.loggerSet {
		s.logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	if s.fs == nil {
		s.fs = afs.New()
	}
	s.ensureBaseSetup()

	s.registry = extension.NewRegistry()
	s.registry.Register(types.KindCollector, nop.New())
	s.registry.Register(types.KindProcessor, nop.New())
	s.registry.Register(types.KindAnalyzer, nop.New())
	s.registry.Register(types.KindReporter, nop.New())
	s.registry.Register(types.KindCollector, fetch.New())
	s.registry.Register(types.KindProcessor, htmlproc.New())
	s.registry.Register(types.KindAnalyzer, headers.New())
	s.registry.Register(types.KindAnalyzer, seometa.New())
	s.registry.Register(types.KindReporter, jsonreport.NewWithFs(s.fs))
	for _, extra := range s.extraComponents {
		s.registry.Register(extra.kind, extra.component)
	}

	publisher, err := event.PublisherOf[task.Result](s.eventService)
	if err != nil {
		return err
	}
	runnerOpts := []spipeline.Option{
		spipeline.WithExecutorConfig(executor.Config{
			WorkerCount:   s.config.Executor.Workers,
			BatchSize:     s.config.Executor.BatchSize,
			Strategy:      executor.Strategy(s.config.Executor.Strategy),
			GlobalTimeout: duration(s.config.Executor.GlobalTimeout),
		}),
		spipeline.WithCache(s.analysisCache),
		spipeline.WithLimiter(s.limiter),
		spipeline.WithResultDAO(s.resultDAO),
		spipeline.WithEventPublisher(publisher),
	}
	s.runtime.runner = spipeline.New(s.registry, s.logger, runnerOpts...)
	s.runtime.pipelines = dpipeline.New(s.fs)
	s.runtime.monitor = s.monitor
	return nil
}

func (s *Service) ensureBaseSetup() {
	if s.analysisCache == nil {
		s.analysisCache = cache.NewMemory(cache.MemoryConfig{
			Capacity:   s.config.Cache.Capacity,
			DefaultTTL: duration(s.config.Cache.DefaultTTL),
		})
	}
	s.cacheManager = cache.NewManager()
	s.cacheManager.Register("analysis", s.analysisCache)

	if s.limiter == nil {
		s.limiter = memlimit.NewLimiter(duration(s.config.Memory.ThrottleDelay), s.logger)
		for _, threshold := range s.config.Memory.Thresholds {
			s.limiter.AddThreshold(threshold.Limit, memlimit.Action(threshold.Action))
		}
	}
	if s.monitor == nil {
		s.monitor = memlimit.NewMonitor(duration(s.config.Memory.Interval), s.logger)
		s.monitor.RegisterCallback(s.limiter.OnUsage)
	}
	if s.resultDAO == nil {
		s.resultDAO = resultmemory.New(duration(s.config.Results.Retention))
	}
	if s.eventService == nil {
		s.eventService, _ = event.New("memory")
	}
}

// Runtime returns the run-facing surface of the engine.
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// Registry returns the component registry for extension registration.
func (s *Service) Registry() *extension.Registry {
	return s.registry
}

// Caches returns the cache manager.
func (s *Service) Caches() *cache.Manager {
	return s.cacheManager
}

// Events returns the event service carrying task lifecycle events.
func (s *Service) Events() *event.Service {
	return s.eventService
}

// Limiter returns the memory limiter.
func (s *Service) Limiter() *memlimit.Limiter {
	return s.limiter
}
