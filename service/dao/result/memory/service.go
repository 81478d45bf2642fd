package memory

import (
	"time"

	"github.com/sitepulse/engine/model/task"
	"github.com/sitepulse/engine/service/dao"
	"github.com/sitepulse/engine/service/dao/store"
)

// Service is an in-memory task result store with optional retention.
type Service struct {
	*store.MemoryStore[string, task.Result]
}

// Ensure Service implements dao.Service
var _ dao.Service[string, task.Result] = (*Service)(nil)

// New creates an in-memory result store. A positive retention window makes
// Sweep drop results older than the window.
func New(retention time.Duration) *Service {
	return &Service{
		MemoryStore: store.NewMemoryStore(
			func(r *task.Result) string { return r.TaskID },
			store.WithRetention[string, task.Result](retention),
		),
	}
}
