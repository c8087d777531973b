package core

import (
	"sync"

	"github.com/google/uuid"
)

// ListenerID identifies one subscription on an Event.
type ListenerID uuid.UUID

func (id ListenerID) String() string {
	return uuid.UUID(id).String()
}

type listener[T any] struct {
	id     ListenerID
	fn     func(T)
	active bool
}

// Event is a typed observer list. Removal swaps the last listener into the
// freed slot, so broadcast order is insertion order only until the first
// Unsubscribe.
type Event[T any] struct {
	mu        sync.RWMutex
	listeners []*listener[T]
	index     map[ListenerID]int
}

func NewEvent[T any]() *Event[T] {
	return &Event[T]{
		index: make(map[ListenerID]int),
	}
}

// Subscribe registers fn and returns the id used to unsubscribe it.
func (e *Event[T]) Subscribe(fn func(T)) ListenerID {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.index == nil {
		e.index = make(map[ListenerID]int)
	}
	id := ListenerID(uuid.New())
	e.index[id] = len(e.listeners)
	e.listeners = append(e.listeners, &listener[T]{id: id, fn: fn, active: true})
	return id
}

// Unsubscribe removes the listener. Returns false if the id is unknown.
func (e *Event[T]) Unsubscribe(id ListenerID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	i, ok := e.index[id]
	if !ok {
		return false
	}
	last := len(e.listeners) - 1
	if i != last {
		e.listeners[i] = e.listeners[last]
		e.index[e.listeners[i].id] = i
	}
	e.listeners[last] = nil
	e.listeners = e.listeners[:last]
	delete(e.index, id)
	return true
}

// SetActive toggles whether a listener receives broadcasts without removing it.
func (e *Event[T]) SetActive(id ListenerID, active bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	i, ok := e.index[id]
	if !ok {
		return false
	}
	e.listeners[i].active = active
	return true
}

func (e *Event[T]) IsActive(id ListenerID) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	i, ok := e.index[id]
	return ok && e.listeners[i].active
}

func (e *Event[T]) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners)
}

// Broadcast calls every active listener in list order.
func (e *Event[T]) Broadcast(value T) {
	for _, fn := range e.snapshot() {
		fn(value)
	}
}

// BroadcastReverse calls every active listener from the back of the list.
func (e *Event[T]) BroadcastReverse(value T) {
	fns := e.snapshot()
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i](value)
	}
}

// listeners may subscribe or unsubscribe from inside a callback, so
// broadcasting works on a copy.
func (e *Event[T]) snapshot() []func(T) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	fns := make([]func(T), 0, len(e.listeners))
	for _, l := range e.listeners {
		if l.active {
			fns = append(fns, l.fn)
		}
	}
	return fns
}

func (e *Event[T]) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = nil
	e.index = make(map[ListenerID]int)
}
