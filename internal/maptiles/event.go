package maptiles

import "sync"

// Event is a minimal observer list. Listeners are invoked synchronously, in
// unspecified order, on the goroutine that calls Raise.
type Event struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]func(interface{})
}

// NewEvent returns an empty event.
func NewEvent() *Event {
	return &Event{listeners: make(map[int]func(interface{}))}
}

// AddListener registers a listener and returns a function that removes it.
func (e *Event) AddListener(fn func(interface{})) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++
	e.listeners[id] = fn

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, id)
	}
}

// Raise invokes every registered listener with the payload.
func (e *Event) Raise(payload interface{}) {
	e.mu.Lock()
	fns := make([]func(interface{}), 0, len(e.listeners))
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(payload)
	}
}
