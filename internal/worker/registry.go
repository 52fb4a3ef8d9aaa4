package worker

import (
	"context"
	"fmt"

	"marketplace/internal/queue"
)

// HandlerFunc processes one job. A nil return acks the job; errors are
// classified by the pool (see failure.go).
type HandlerFunc func(ctx context.Context, job *queue.Job) error

// Registry is the explicit (queue, jobType) -> handler map, built at
// startup. Registration conflicts and empty queues fail fast instead of
// surfacing as runtime dead-letters.
type Registry struct {
	handlers map[string]map[string]HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]map[string]HandlerFunc)}
}

func (r *Registry) Register(queueName, jobType string, fn HandlerFunc) error {
	if fn == nil {
		return fmt.Errorf("nil handler for %s/%s", queueName, jobType)
	}
	byType, ok := r.handlers[queueName]
	if !ok {
		byType = make(map[string]HandlerFunc)
		r.handlers[queueName] = byType
	}
	if _, exists := byType[jobType]; exists {
		return fmt.Errorf("handler already registered for %s/%s", queueName, jobType)
	}
	byType[jobType] = fn
	return nil
}

func (r *Registry) Resolve(queueName, jobType string) (HandlerFunc, bool) {
	fn, ok := r.handlers[queueName][jobType]
	return fn, ok
}

// HandlerCount reports how many job types are registered for a queue.
func (r *Registry) HandlerCount(queueName string) int {
	return len(r.handlers[queueName])
}
