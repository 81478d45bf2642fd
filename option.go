package engine

import (
	"github.com/rs/zerolog"
	"github.com/viant/afs"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/sitepulse/engine/model/task"
	"github.com/sitepulse/engine/model/types"
	"github.com/sitepulse/engine/service/cache"
	"github.com/sitepulse/engine/service/dao"
	"github.com/sitepulse/engine/service/event"
	"github.com/sitepulse/engine/service/memlimit"
	"github.com/sitepulse/engine/tracing"
)

// Option customizes the engine service.
type Option func(s *Service)

// WithConfig sets the engine configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) { s.config = config }
}

// WithLogger sets the structured logger shared by all services.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
		s.loggerSet = true
	}
}

// WithComponent registers an extra pipeline component.
func WithComponent(kind types.Kind, component types.Component) Option {
	return func(s *Service) {
		s.extraComponents = append(s.extraComponents, registration{kind: kind, component: component})
	}
}

// WithAnalysisCache overrides the analyzer result cache.
func WithAnalysisCache(c cache.Cache) Option {
	return func(s *Service) { s.analysisCache = c }
}

// WithResultDAO overrides where task results are persisted.
func WithResultDAO(results dao.Service[string, task.Result]) Option {
	return func(s *Service) { s.resultDAO = results }
}

// WithEventService sets the event service carrying task lifecycle events.
func WithEventService(service *event.Service) Option {
	return func(s *Service) { s.eventService = service }
}

// WithLimiter overrides the memory limiter.
func WithLimiter(limiter *memlimit.Limiter) Option {
	return func(s *Service) { s.limiter = limiter }
}

// WithFs sets the afs service used for pipeline definitions.
func WithFs(fsService afs.Service) Option {
	return func(s *Service) { s.fs = fsService }
}

// WithTracing configures OpenTelemetry tracing with the stdout exporter. If
// outputFile is empty traces go to stdout. Safe to call multiple times; the
// first successful initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom
// exporter, for example OTLP, Jaeger or Zipkin.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
