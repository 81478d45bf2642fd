// Package nop provides a component that does nothing for every pipeline
// role. It keeps pipeline wiring testable without network or filesystem
// access.
package nop

import (
	"context"

	"github.com/sitepulse/engine/internal/clock"
	"github.com/sitepulse/engine/model/types"
)

const name = "nop"

// Service performs no operation for any pipeline role.
type Service struct{}

// New creates a new nop component.
func New() *Service {
	return &Service{}
}

// Name returns the component name.
func (s *Service) Name() string {
	return name
}

// Collect returns empty raw data for the target.
func (s *Service) Collect(_ context.Context, target string, _ interface{}) (*types.RawData, error) {
	return &types.RawData{Target: target, FetchedAt: clock.Now()}, nil
}

// Process returns empty page data.
func (s *Service) Process(_ context.Context, raw *types.RawData, _ interface{}) (*types.PageData, error) {
	if raw == nil {
		return nil, types.NewInvalidInputError(raw)
	}
	return &types.PageData{Target: raw.Target, StatusCode: raw.StatusCode, Headers: raw.Headers}, nil
}

// Analyze returns a full score with no findings.
func (s *Service) Analyze(_ context.Context, page *types.PageData, _ interface{}) (*types.Analysis, error) {
	if page == nil {
		return nil, types.NewInvalidInputError(page)
	}
	return &types.Analysis{Component: name, Score: 100}, nil
}

// Report does nothing.
func (s *Service) Report(_ context.Context, _ *types.Report, _ interface{}) error {
	return nil
}
