// Package seometa analyzes a page's title and meta description against
// common search-engine length guidance.
package seometa

import (
	"context"
	"fmt"
	"reflect"

	"github.com/sitepulse/engine/model/types"
)

const name = "seometa"

// Config bounds the acceptable title and description lengths.
type Config struct {
	MinTitle       int `json:"minTitle,omitempty" yaml:"minTitle,omitempty"`
	MaxTitle       int `json:"maxTitle,omitempty" yaml:"maxTitle,omitempty"`
	MinDescription int `json:"minDescription,omitempty" yaml:"minDescription,omitempty"`
	MaxDescription int `json:"maxDescription,omitempty" yaml:"maxDescription,omitempty"`
}

func (c *Config) defaults() {
	if c.MinTitle == 0 {
		c.MinTitle = 10
	}
	if c.MaxTitle == 0 {
		c.MaxTitle = 60
	}
	if c.MinDescription == 0 {
		c.MinDescription = 50
	}
	if c.MaxDescription == 0 {
		c.MaxDescription = 160
	}
}

// Service analyzes title and description metadata.
type Service struct{}

// New creates the analyzer.
func New() *Service {
	return &Service{}
}

// Name returns the component name.
func (s *Service) Name() string {
	return name
}

// ConfigType returns the typed config for this component.
func (s *Service) ConfigType() reflect.Type {
	return reflect.TypeOf(&Config{})
}

// Analyze checks title and description presence and length.
func (s *Service) Analyze(_ context.Context, page *types.PageData, config interface{}) (*types.Analysis, error) {
	if page == nil {
		return nil, types.NewInvalidInputError(page)
	}
	cfg, _ := config.(*Config)
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.defaults()

	analysis := &types.Analysis{Component: name, Score: 100}
	deduct := func(points float64, finding *types.Finding) {
		analysis.Score -= points
		analysis.Findings = append(analysis.Findings, finding)
	}
	switch length := len(page.Title); {
	case length == 0:
		deduct(40, &types.Finding{
			ID:       "missing-title",
			Severity: types.SeverityCritical,
			Message:  "page has no title",
		})
	case length < cfg.MinTitle:
		deduct(15, &types.Finding{
			ID:       "short-title",
			Severity: types.SeverityWarning,
			Message:  fmt.Sprintf("title is %v characters, expected at least %v", length, cfg.MinTitle),
		})
	case length > cfg.MaxTitle:
		deduct(10, &types.Finding{
			ID:       "long-title",
			Severity: types.SeverityWarning,
			Message:  fmt.Sprintf("title is %v characters, expected at most %v", length, cfg.MaxTitle),
		})
	}
	switch length := len(page.Description); {
	case length == 0:
		deduct(30, &types.Finding{
			ID:       "missing-description",
			Severity: types.SeverityCritical,
			Message:  "page has no meta description",
		})
	case length < cfg.MinDescription:
		deduct(10, &types.Finding{
			ID:       "short-description",
			Severity: types.SeverityWarning,
			Message:  fmt.Sprintf("description is %v characters, expected at least %v", length, cfg.MinDescription),
		})
	case length > cfg.MaxDescription:
		deduct(10, &types.Finding{
			ID:       "long-description",
			Severity: types.SeverityWarning,
			Message:  fmt.Sprintf("description is %v characters, expected at most %v", length, cfg.MaxDescription),
		})
	}
	if analysis.Score < 0 {
		analysis.Score = 0
	}
	return analysis, nil
}
