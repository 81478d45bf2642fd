package pipeline

import (
	"fmt"
	"time"

	"github.com/sitepulse/engine/model/types"
)

type (
	// Pipeline is a declarative stage graph, typically loaded from YAML.
	Pipeline struct {
		Name   string   `json:"name" yaml:"name"`
		Stages []*Stage `json:"stages" yaml:"stages"`

		stageByID map[string]*Stage
	}

	// Stage binds a registered component to a position in the graph.
	Stage struct {
		ID        string                 `json:"id" yaml:"id"`
		Kind      types.Kind             `json:"kind" yaml:"kind"`
		Component string                 `json:"component" yaml:"component"`
		Config    map[string]interface{} `json:"config,omitempty" yaml:"config,omitempty"`
		DependsOn []string               `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`
		Priority  int                    `json:"priority,omitempty" yaml:"priority,omitempty"`
		Timeout   string                 `json:"timeout,omitempty" yaml:"timeout,omitempty"`
		Retries   int                    `json:"retries,omitempty" yaml:"retries,omitempty"`
		CacheTTL  string                 `json:"cacheTtl,omitempty" yaml:"cacheTtl,omitempty"`
	}
)

// New creates a pipeline with the supplied name.
func New(name string) *Pipeline {
	return &Pipeline{Name: name}
}

// AddStage appends a stage and returns it for fluent setup.
func (p *Pipeline) AddStage(id string, kind types.Kind, component string) *Stage {
	stage := &Stage{ID: id, Kind: kind, Component: component}
	p.Stages = append(p.Stages, stage)
	p.stageByID = nil
	return stage
}

// WithConfig sets the raw stage config.
func (s *Stage) WithConfig(config map[string]interface{}) *Stage {
	s.Config = config
	return s
}

// WithDependsOn adds stage dependencies.
func (s *Stage) WithDependsOn(ids ...string) *Stage {
	s.DependsOn = append(s.DependsOn, ids...)
	return s
}

// WithPriority sets the stage priority.
func (s *Stage) WithPriority(priority int) *Stage {
	s.Priority = priority
	return s
}

// WithCacheTTL enables result caching for the stage.
func (s *Stage) WithCacheTTL(ttl string) *Stage {
	s.CacheTTL = ttl
	return s
}

// Stage returns a stage by id.
func (p *Pipeline) Stage(id string) *Stage {
	if p.stageByID == nil {
		p.stageByID = make(map[string]*Stage, len(p.Stages))
		for _, s := range p.Stages {
			p.stageByID[s.ID] = s
		}
	}
	return p.stageByID[id]
}

// TimeoutDuration parses the stage timeout; zero when unset.
func (s *Stage) TimeoutDuration() (time.Duration, error) {
	if s.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(s.Timeout)
}

// CacheTTLDuration parses the stage cache TTL; zero disables caching.
func (s *Stage) CacheTTLDuration() (time.Duration, error) {
	if s.CacheTTL == "" {
		return 0, nil
	}
	return time.ParseDuration(s.CacheTTL)
}

// Validate checks stage identity, kinds and dependency references. Cycle
// detection happens at executor submission; this catches definition-level
// mistakes before any component is looked up.
func (p *Pipeline) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("pipeline name is required")
	}
	if len(p.Stages) == 0 {
		return fmt.Errorf("pipeline %v has no stages", p.Name)
	}
	seen := make(map[string]bool, len(p.Stages))
	for _, stage := range p.Stages {
		if stage.ID == "" {
			return fmt.Errorf("pipeline %v: stage id is required", p.Name)
		}
		if seen[stage.ID] {
			return fmt.Errorf("pipeline %v: duplicate stage %v", p.Name, stage.ID)
		}
		seen[stage.ID] = true
		switch stage.Kind {
		case types.KindCollector, types.KindProcessor, types.KindAnalyzer, types.KindReporter:
		default:
			return fmt.Errorf("pipeline %v: stage %v has unknown kind %q", p.Name, stage.ID, stage.Kind)
		}
		if stage.Component == "" {
			return fmt.Errorf("pipeline %v: stage %v has no component", p.Name, stage.ID)
		}
		if _, err := stage.TimeoutDuration(); err != nil {
			return fmt.Errorf("pipeline %v: stage %v: %w", p.Name, stage.ID, err)
		}
		if _, err := stage.CacheTTLDuration(); err != nil {
			return fmt.Errorf("pipeline %v: stage %v: %w", p.Name, stage.ID, err)
		}
	}
	for _, stage := range p.Stages {
		for _, dep := range stage.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("pipeline %v: stage %v depends on unknown stage %v", p.Name, stage.ID, dep)
			}
		}
	}
	return nil
}
