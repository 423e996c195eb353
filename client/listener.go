// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

package client

import "sync"

// Subscription is a revocable listener registration. Every
// AddListener returns one.
type Subscription struct {
	once   sync.Once
	loop   *Loop
	remove func()
}

// Close revokes the listener, exactly once. The removal executes on
// the loop goroutine: when Close is called from a callback it takes
// effect immediately; called from another goroutine it blocks until
// the loop performs the removal, so no callback for this subscription
// is in flight or will fire once Close returns.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.loop.Invoke(s.remove)
	})
}

// listenerSet holds the registered listeners of one event source.
// Dispatch happens on the loop goroutine; registration may addition-
// ally happen before the loop starts, so the set carries its own
// small lock rather than relying on loop discipline alone.
type listenerSet[T any] struct {
	mu      sync.Mutex
	nextID  int
	entries map[int]T
}

func (s *listenerSet[T]) add(listener T) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries == nil {
		s.entries = make(map[int]T)
	}
	id := s.nextID
	s.nextID++
	s.entries[id] = listener
	return id
}

func (s *listenerSet[T]) remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// each snapshots the set and invokes fn for every listener. The
// snapshot keeps dispatch reentrancy-safe: a callback may add or
// remove listeners without invalidating the iteration.
func (s *listenerSet[T]) each(fn func(T)) {
	s.mu.Lock()
	snapshot := make([]T, 0, len(s.entries))
	for _, listener := range s.entries {
		snapshot = append(snapshot, listener)
	}
	s.mu.Unlock()
	for _, listener := range snapshot {
		fn(listener)
	}
}
