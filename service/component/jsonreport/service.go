// Package jsonreport writes the assembled report as a JSON document to any
// afs-supported location.
package jsonreport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"

	"github.com/sitepulse/engine/internal/clock"
	"github.com/sitepulse/engine/model/types"
)

const name = "jsonreport"

// Config locates the report destination.
type Config struct {
	// BaseURL is the directory the report is written into.
	BaseURL string `json:"baseUrl" yaml:"baseUrl"`
	// Indent pretty-prints the JSON document.
	Indent bool `json:"indent,omitempty" yaml:"indent,omitempty"`
}

// Service is a filesystem reporter.
type Service struct {
	fs afs.Service
}

// New creates the reporter.
func New() *Service {
	return NewWithFs(afs.New())
}

// NewWithFs creates the reporter over the supplied afs service.
func NewWithFs(fsService afs.Service) *Service {
	return &Service{fs: fsService}
}

// Name returns the component name.
func (s *Service) Name() string {
	return name
}

// ConfigType returns the typed config for this component.
func (s *Service) ConfigType() reflect.Type {
	return reflect.TypeOf(&Config{})
}

// Report uploads the report as JSON, named by pipeline and timestamp.
func (s *Service) Report(ctx context.Context, report *types.Report, config interface{}) error {
	if report == nil {
		return types.NewInvalidInputError(report)
	}
	cfg, _ := config.(*Config)
	if cfg == nil || cfg.BaseURL == "" {
		return types.NewInvalidConfigError(name, fmt.Errorf("baseUrl is required"))
	}
	var data []byte
	var err error
	if cfg.Indent {
		data, err = json.MarshalIndent(report, "", "  ")
	} else {
		data, err = json.Marshal(report)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	location := url.Join(cfg.BaseURL, fmt.Sprintf("%v-%v.json", report.Pipeline, clock.Now().UnixNano()))
	if err := s.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to upload report to %v: %w", location, err)
	}
	return nil
}
