package event

import (
	"time"

	"github.com/sitepulse/engine/internal/clock"
)

// Context carries the origin of an event.
type Context struct {
	PipelineID  string `json:"pipelineID,omitempty"`
	TaskID      string `json:"taskID,omitempty"`
	EventType   string `json:"eventType"`
	Component   string `json:"component,omitempty"`
	Stage       string `json:"stage,omitempty"`
	TimeTakenMs int    `json:"timeTakenMs,omitempty"`
}

type Event[T any] struct {
	Context   *Context               `json:"context"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata"`
	Data      T                      `json:"data"`
}

func NewEvent[T any](context *Context, data T) *Event[T] {
	return &Event[T]{
		Context:   context,
		CreatedAt: clock.Now(),
		Metadata:  make(map[string]interface{}),
		Data:      data,
	}
}
