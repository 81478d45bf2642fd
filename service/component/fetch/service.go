// Package fetch collects a target page over HTTP: the raw body, status code
// and response headers.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"time"

	"github.com/sitepulse/engine/internal/clock"
	"github.com/sitepulse/engine/model/types"
)

const name = "fetch"

const defaultMaxBodySize = 5 << 20

// Config controls the HTTP request.
type Config struct {
	Method      string            `json:"method,omitempty" yaml:"method,omitempty"`
	UserAgent   string            `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	MaxBodySize int64             `json:"maxBodySize,omitempty" yaml:"maxBodySize,omitempty"`
	Timeout     string            `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Service is an HTTP collector.
type Service struct {
	client *http.Client
}

// New creates a collector with a default HTTP client.
func New() *Service {
	return NewWithClient(&http.Client{Timeout: 30 * time.Second})
}

// NewWithClient creates a collector using the supplied client.
func NewWithClient(client *http.Client) *Service {
	return &Service{client: client}
}

// Name returns the component name.
func (s *Service) Name() string {
	return name
}

// ConfigType returns the typed config for this component.
func (s *Service) ConfigType() reflect.Type {
	return reflect.TypeOf(&Config{})
}

// Collect fetches the target and returns the raw response.
func (s *Service) Collect(ctx context.Context, target string, config interface{}) (*types.RawData, error) {
	cfg, _ := config.(*Config)
	if cfg == nil {
		cfg = &Config{}
	}
	method := cfg.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %v: %w", target, err)
	}
	if cfg.UserAgent != "" {
		req.Header.Set("User-Agent", cfg.UserAgent)
	}
	for key, value := range cfg.Headers {
		req.Header.Set(key, value)
	}
	client := s.client
	if cfg.Timeout != "" {
		timeout, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, types.NewInvalidConfigError(name, err)
		}
		clone := *client
		clone.Timeout = timeout
		client = &clone
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %v: %w", target, err)
	}
	defer resp.Body.Close()
	maxBody := cfg.MaxBodySize
	if maxBody <= 0 {
		maxBody = defaultMaxBodySize
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read %v: %w", target, err)
	}
	return &types.RawData{
		Target:     target,
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
		FetchedAt:  clock.Now(),
	}, nil
}
