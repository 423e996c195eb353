// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"sort"
	"sync"

	"github.com/patchline-project/patchline/wire"
)

// Mirror is the client-side copy of the daemon's object registry,
// keyed by global id. The bridge's loop goroutine is the sole writer;
// any goroutine may read. Every operation holds the guard only for
// the duration of that one map access and performs no I/O, so readers
// never contend with a daemon call.
type Mirror struct {
	mu      sync.RWMutex
	objects map[uint32]wire.Global
}

// NewMirror returns an empty mirror.
func NewMirror() *Mirror {
	return &Mirror{objects: make(map[uint32]wire.Global)}
}

// Upsert inserts or overwrites the object at its id. Re-advertisement
// replaces the previous object wholesale, so a reused id cannot leak
// stale properties.
func (m *Mirror) Upsert(global wire.Global) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[global.ID] = global
}

// Remove deletes the object at id. Removing an absent id is a no-op:
// removal notifications racing frontend reads are expected, not
// errors.
func (m *Mirror) Remove(id uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, id)
}

// Get returns the object at id.
func (m *Mirror) Get(id uint32) (wire.Global, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	global, ok := m.objects[id]
	return global, ok
}

// Len returns the number of mirrored objects.
func (m *Mirror) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// Snapshot returns all objects sorted by id, for rendering.
func (m *Mirror) Snapshot() []wire.Global {
	m.mu.RLock()
	globals := make([]wire.Global, 0, len(m.objects))
	for _, global := range m.objects {
		globals = append(globals, global)
	}
	m.mu.RUnlock()
	sort.Slice(globals, func(i, j int) bool { return globals[i].ID < globals[j].ID })
	return globals
}

// FindByProperty returns some object carrying the exact key/value
// pair. Linear scan; daemons advertise tens to low hundreds of
// objects.
func (m *Mirror) FindByProperty(key, value string) (wire.Global, bool) {
	return m.FindFirst(func(global wire.Global) bool {
		return global.Property(key) == value
	})
}

// FindFirst returns some object satisfying the predicate. Iteration
// order is unspecified; predicates that can match several objects
// should not rely on which one is returned.
func (m *Mirror) FindFirst(predicate func(wire.Global) bool) (wire.Global, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, global := range m.objects {
		if predicate(global) {
			return global, true
		}
	}
	return wire.Global{}, false
}

// FactoryName returns the runtime-assigned name of a factory that
// produces the given kind, if one has been advertised. Callers treat
// a missing factory as transient: the daemon may simply not have
// advertised it yet.
func (m *Mirror) FactoryName(kind wire.ObjectKind) (string, bool) {
	typeName := kind.TypeName()
	factory, ok := m.FindFirst(func(global wire.Global) bool {
		return global.Kind == wire.KindFactory &&
			global.Property(wire.KeyFactoryTypeName) == typeName &&
			global.HasProperty(wire.KeyFactoryName)
	})
	if !ok {
		return "", false
	}
	return factory.Property(wire.KeyFactoryName), true
}
