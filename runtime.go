package engine

import (
	"context"
	"fmt"

	model "github.com/sitepulse/engine/model/pipeline"
	"github.com/sitepulse/engine/model/types"
	dpipeline "github.com/sitepulse/engine/service/dao/pipeline"
	"github.com/sitepulse/engine/service/memlimit"
	spipeline "github.com/sitepulse/engine/service/pipeline"
)

// Runtime is the run-facing surface of the engine: loading pipeline
// definitions and executing them against targets.
type Runtime struct {
	pipelines *dpipeline.Service
	runner    *spipeline.Service
	monitor   *memlimit.Monitor
}

// Start begins memory monitoring; it is optional, an engine without a running
// monitor simply never throttles.
func (r *Runtime) Start(ctx context.Context) error {
	if r.monitor == nil {
		return nil
	}
	return r.monitor.Start(ctx)
}

// Shutdown stops memory monitoring.
func (r *Runtime) Shutdown() {
	if r.monitor != nil {
		r.monitor.Stop()
	}
}

// LoadPipeline loads a pipeline definition from any afs location.
func (r *Runtime) LoadPipeline(ctx context.Context, location string) (*model.Pipeline, error) {
	return r.pipelines.Load(ctx, location)
}

// DecodeYAMLPipeline parses and validates a YAML pipeline definition.
func (r *Runtime) DecodeYAMLPipeline(data []byte) (*model.Pipeline, error) {
	return r.pipelines.DecodeYAML(data)
}

// RefreshPipeline discards a cached definition; the next load re-reads the
// source location.
func (r *Runtime) RefreshPipeline(location string) {
	r.pipelines.Refresh(location)
}

// UpsertDefinition parses the supplied YAML bytes and stores the resulting
// definition under location. Nil data falls back to a lazy refresh.
func (r *Runtime) UpsertDefinition(location string, data []byte) error {
	if data == nil {
		r.pipelines.Refresh(location)
		return nil
	}
	p, err := r.pipelines.DecodeYAML(data)
	if err != nil {
		return fmt.Errorf("failed to decode pipeline YAML: %w", err)
	}
	r.pipelines.Upsert(location, p)
	return nil
}

// Run loads the pipeline at location and executes it against the target.
func (r *Runtime) Run(ctx context.Context, location, target string) (*types.Report, error) {
	p, err := r.LoadPipeline(ctx, location)
	if err != nil {
		return nil, err
	}
	return r.RunPipeline(ctx, p, target)
}

// RunPipeline executes an in-memory pipeline definition against the target.
func (r *Runtime) RunPipeline(ctx context.Context, p *model.Pipeline, target string) (*types.Report, error) {
	return r.runner.Run(ctx, p, target)
}
