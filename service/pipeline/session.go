package pipeline

import (
	"sync"
	"time"

	"github.com/sitepulse/engine/internal/clock"
	"github.com/sitepulse/engine/internal/idgen"
	model "github.com/sitepulse/engine/model/pipeline"
	"github.com/sitepulse/engine/model/types"
)

// Session carries the mutable state of one pipeline run: stage outputs keyed
// by stage id, routed between dependent stages under a single mutex.
type Session struct {
	ID        string
	Pipeline  *model.Pipeline
	Target    string
	StartedAt time.Time

	mu      sync.RWMutex
	outputs map[string]interface{}
}

// NewSession creates the run state for a pipeline and target.
func NewSession(p *model.Pipeline, target string) *Session {
	return &Session{
		ID:        idgen.New(),
		Pipeline:  p,
		Target:    target,
		StartedAt: clock.Now(),
		outputs:   make(map[string]interface{}),
	}
}

// Set records a stage output.
func (s *Session) Set(stageID string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs[stageID] = value
}

// Get returns a stage output.
func (s *Session) Get(stageID string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.outputs[stageID]
	return value, ok
}

// RawData returns the first raw data output among the supplied stages.
func (s *Session) RawData(stageIDs []string) *types.RawData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range stageIDs {
		if raw, ok := s.outputs[id].(*types.RawData); ok {
			return raw
		}
	}
	return nil
}

// PageData returns the first page data output among the supplied stages.
func (s *Session) PageData(stageIDs []string) *types.PageData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range stageIDs {
		if page, ok := s.outputs[id].(*types.PageData); ok {
			return page
		}
	}
	return nil
}

// Report assembles the analyses produced so far, in stage order.
func (s *Session) Report() *types.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	report := &types.Report{
		Pipeline:   s.Pipeline.Name,
		Target:     s.Target,
		Errors:     make(map[string]string),
		StartedAt:  s.StartedAt,
		FinishedAt: clock.Now(),
	}
	for _, stage := range s.Pipeline.Stages {
		if analysis, ok := s.outputs[stage.ID].(*types.Analysis); ok {
			report.Analyses = append(report.Analyses, analysis)
		}
	}
	return report
}
