package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"

	"github.com/sitepulse/engine/model/task"
	"github.com/sitepulse/engine/service/dao"
)

// Service persists task results as JSON files under a base URL. Any afs
// scheme works (file, mem, s3, gs), which keeps results inspectable after a
// run and shareable across processes.
type Service struct {
	baseURL string
	fs      afs.Service
	mu      sync.RWMutex
}

// Ensure Service implements dao.Service
var _ dao.Service[string, task.Result] = (*Service)(nil)

// New creates a filesystem result store rooted at baseURL.
func New(fsService afs.Service, baseURL string) *Service {
	return &Service{fs: fsService, baseURL: baseURL}
}

// Save persists a result.
func (s *Service) Save(ctx context.Context, result *task.Result) error {
	if result == nil {
		return dao.ErrNilEntity
	}
	if result.TaskID == "" {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	location := s.resultURL(result.TaskID)
	if err = s.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save result to %s: %w", location, err)
	}
	return nil
}

// Load retrieves a result by task id.
func (s *Service) Load(ctx context.Context, id string) (*task.Result, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	location := s.resultURL(id)
	exists, err := s.fs.Exists(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to check result %s: %w", location, err)
	}
	if !exists {
		return nil, dao.ErrNotFound
	}
	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to read result %s: %w", location, err)
	}
	var result task.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result %s: %w", location, err)
	}
	return &result, nil
}

// Delete removes a stored result.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	location := s.resultURL(id)
	exists, err := s.fs.Exists(ctx, location)
	if err != nil {
		return fmt.Errorf("failed to check result %s: %w", location, err)
	}
	if !exists {
		return dao.ErrNotFound
	}
	return s.fs.Delete(ctx, location)
}

// List returns all stored results.
func (s *Service) List(ctx context.Context, _ ...*dao.Parameter) ([]*task.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	objects, err := s.fs.List(ctx, s.baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	var results []*task.Result
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := s.fs.DownloadWithURL(ctx, object.URL())
		if err != nil {
			return nil, fmt.Errorf("failed to read result %s: %w", object.URL(), err)
		}
		var result task.Result
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result %s: %w", object.URL(), err)
		}
		results = append(results, &result)
	}
	return results, nil
}

func (s *Service) resultURL(id string) string {
	return url.Join(s.baseURL, id+".json")
}
