package mq

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

type HandlerFunc func(ctx context.Context, topic string, payload []byte) error

// Router dispatches payloads to the handler registered for their topic.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

func NewRouter() *Router {
	return &Router{handlers: map[string]HandlerFunc{}}
}

func (r *Router) Register(topic string, handler HandlerFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[topic]; exists {
		return fmt.Errorf("handler for topic %s already registered", topic)
	}

	r.handlers[topic] = handler
	return nil
}

// Topics returns the topics with a registered handler.
func (r *Router) Topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	topics := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		topics = append(topics, t)
	}
	return topics
}

// ErrNoHandler is returned by Dispatch for a topic without a handler.
var ErrNoHandler = errors.New("no handler registered for topic")

func (r *Router) Dispatch(ctx context.Context, topic string, payload []byte) error {
	r.mu.RLock()
	fn, exists := r.handlers[topic]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w %s", ErrNoHandler, topic)
	}

	return fn(ctx, topic, payload)
}
