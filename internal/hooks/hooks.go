// Package hooks provides a priority-ordered hook registry used to fan out
// protocol events to external consumers (plugins, relay logic).
package hooks

import (
	"fmt"
	"log"
	"reflect"
	"runtime"
	"sort"
	"sync"
)

// Hook is a consumer callback. Returning an error does not stop the other
// hooks from running; errors are collected and reported to the caller.
type Hook[T any] func(event T) error

type entry[T any] struct {
	name     string
	hook     Hook[T]
	priority int64
}

// Registry manages hook registration and dispatch for one event type.
// Registration and dispatch are safe for concurrent use.
type Registry[T any] struct {
	mu      sync.RWMutex
	entries []entry[T]
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{}
}

// Register adds a hook with the default priority (0).
func (r *Registry[T]) Register(hook Hook[T]) {
	r.RegisterWithPriority(hook, 0)
}

// RegisterWithPriority adds a hook that runs in priority order; lower values
// run first.
func (r *Registry[T]) RegisterWithPriority(hook Hook[T], priority int64) {
	name := runtime.FuncForPC(reflect.ValueOf(hook).Pointer()).Name()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry[T]{name: name, hook: hook, priority: priority})
}

// Dispatch runs every registered hook against the event. A panicking hook is
// recovered and reported as an error so one consumer cannot take down the
// network's receive loop. Returns nil when every hook succeeded, otherwise a
// map of hook name to failure.
func (r *Registry[T]) Dispatch(event T) map[string]error {
	r.mu.RLock()
	entries := make([]entry[T], len(r.entries))
	copy(entries, r.entries)
	r.mu.RUnlock()

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].priority < entries[j].priority
	})

	var failures map[string]error
	fail := func(name string, err error) {
		if failures == nil {
			failures = make(map[string]error)
		}
		if failures[name] == nil {
			failures[name] = err
		}
	}

	for _, e := range entries {
		err := func() (err error) {
			defer func() {
				if v := recover(); v != nil {
					err = fmt.Errorf("panic in hook %s: %v", e.name, v)
				}
			}()
			return e.hook(event)
		}()
		if err != nil {
			log.Printf("hook %s failed: %v", e.name, err)
			fail(e.name, err)
		}
	}
	return failures
}

// Count returns the number of registered hooks.
func (r *Registry[T]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Clear removes all registered hooks.
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}
