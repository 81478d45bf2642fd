package event

import (
	"github.com/sitepulse/engine/service/messaging/fs"
	"github.com/sitepulse/engine/service/messaging/memory"
)

type Option func(*Service)

// WithFsQueueConfig supplies a per-queue config factory for the fs vendor.
func WithFsQueueConfig(fn func(name string) fs.Config) Option {
	return func(s *Service) {
		s.fsNewQueueConfig = fn
	}
}

// WithMemQueueConfig supplies a per-queue config factory for the memory vendor.
func WithMemQueueConfig(fn func(name string) memory.Config) Option {
	return func(s *Service) {
		s.memNewQueueConfig = fn
	}
}
