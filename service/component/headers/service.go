// Package headers scores a page's HTTP security headers.
package headers

import (
	"context"
	"fmt"
	"net/http"
	"reflect"

	"github.com/sitepulse/engine/model/types"
)

const name = "headers"

// expected lists the security headers checked by default, with the score
// weight lost when one is missing.
var expected = []struct {
	header   string
	weight   float64
	severity types.Severity
}{
	{"Strict-Transport-Security", 25, types.SeverityCritical},
	{"Content-Security-Policy", 25, types.SeverityCritical},
	{"X-Content-Type-Options", 20, types.SeverityWarning},
	{"X-Frame-Options", 15, types.SeverityWarning},
	{"Referrer-Policy", 15, types.SeverityInfo},
}

// Config tunes the check.
type Config struct {
	// Skip lists header names excluded from scoring.
	Skip []string `json:"skip,omitempty" yaml:"skip,omitempty"`
}

// Service analyzes response security headers.
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

// Analyze scores the page headers, emitting a finding per missing header.
func (s *Service) Analyze(_ context.Context, page *types.PageData, config interface{}) (*types.Analysis, error) {
	if page == nil {
		return nil, types.NewInvalidInputError(page)
	}
	cfg, _ := config.(*Config)
	skipped := map[string]bool{}
	if cfg != nil {
		for _, header := range cfg.Skip {
			skipped[http.CanonicalHeaderKey(header)] = true
		}
	}
	headers := http.Header(page.Headers)
	analysis := &types.Analysis{Component: name, Score: 100}
	for _, check := range expected {
		if skipped[check.header] {
			continue
		}
		if headers.Get(check.header) != "" {
			continue
		}
		analysis.Score -= check.weight
		analysis.Findings = append(analysis.Findings, &types.Finding{
			ID:       "missing-" + check.header,
			Severity: check.severity,
			Message:  fmt.Sprintf("missing %v header", check.header),
		})
	}
	if analysis.Score < 0 {
		analysis.Score = 0
	}
	return analysis, nil
}
