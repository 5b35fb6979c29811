// Package events provides a small typed emitter for in-process domain events.
// It replaces ad hoc string-keyed callback lists with one emitter per event
// kind: subscribers are invoked synchronously in subscription order, and a
// panic in one subscriber never affects the others.
package events

import (
	"log/slog"
	"sync"
)

// Emitter fans a value of type T out to all subscribed handlers.
// The zero value is not usable; create with NewEmitter.
type Emitter[T any] struct {
	mu       sync.RWMutex
	handlers []func(T)
}

func NewEmitter[T any]() *Emitter[T] {
	return &Emitter[T]{}
}

// Subscribe registers a handler. Handlers cannot be removed; subscribers
// live as long as the process, matching the hosting application's lifecycle.
func (e *Emitter[T]) Subscribe(handler func(T)) {
	if handler == nil {
		return
	}
	e.mu.Lock()
	e.handlers = append(e.handlers, handler)
	e.mu.Unlock()
}

// Emit invokes every subscribed handler with value, in subscription order.
func (e *Emitter[T]) Emit(value T) {
	e.mu.RLock()
	handlers := make([]func(T), len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	for _, handler := range handlers {
		invoke(handler, value)
	}
}

// Len returns the number of subscribed handlers.
func (e *Emitter[T]) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers)
}

func invoke[T any](handler func(T), value T) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Event handler panic recovered", "panic", r)
		}
	}()
	handler(value)
}
