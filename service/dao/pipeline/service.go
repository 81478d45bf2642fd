package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	mpipeline "github.com/sitepulse/engine/model/pipeline"
)

// Service loads pipeline definitions from any afs location and caches the
// decoded form. Refresh/Upsert support hot-swapping a definition without
// restarting the engine.
type Service struct {
	fs    afs.Service
	cache map[string]*mpipeline.Pipeline
	mu    sync.RWMutex
}

// New creates a pipeline definition service.
func New(fsService afs.Service) *Service {
	return &Service{
		fs:    fsService,
		cache: make(map[string]*mpipeline.Pipeline),
	}
}

// Load returns a validated pipeline for the given URL, reading it once and
// serving subsequent calls from cache until Refresh.
func (s *Service) Load(ctx context.Context, location string) (*mpipeline.Pipeline, error) {
	s.mu.RLock()
	cached, ok := s.cache[location]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline %s: %w", location, err)
	}
	pipeline, err := s.DecodeYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode pipeline %s: %w", location, err)
	}
	s.mu.Lock()
	s.cache[location] = pipeline
	s.mu.Unlock()
	return pipeline, nil
}

// DecodeYAML parses and validates a pipeline definition.
func (s *Service) DecodeYAML(data []byte) (*mpipeline.Pipeline, error) {
	pipeline := &mpipeline.Pipeline{}
	if err := yaml.Unmarshal(data, pipeline); err != nil {
		return nil, err
	}
	if err := pipeline.Validate(); err != nil {
		return nil, err
	}
	return pipeline, nil
}

// Refresh discards a cached definition so the next Load re-reads the source.
func (s *Service) Refresh(location string) {
	s.mu.Lock()
	delete(s.cache, location)
	s.mu.Unlock()
}

// Upsert stores a definition under the given location, making it available
// immediately without a source round-trip.
func (s *Service) Upsert(location string, pipeline *mpipeline.Pipeline) {
	s.mu.Lock()
	s.cache[location] = pipeline
	s.mu.Unlock()
}
