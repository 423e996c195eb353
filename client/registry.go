// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

package client

import "github.com/patchline-project/patchline/wire"

// RegistryEvents are the callbacks a registry listener may register.
// Nil fields are skipped.
type RegistryEvents struct {
	// OnGlobal delivers a global advertisement. On connect the daemon
	// replays every existing global, so a listener registered before
	// the loop runs sees the complete graph.
	OnGlobal func(global wire.Global)

	// OnGlobalRemove withdraws a global by id.
	OnGlobalRemove func(id uint32)
}

// Registry is the proxy for the daemon's object registry.
type Registry struct {
	conn      *Conn
	listeners listenerSet[RegistryEvents]
}

// AddListener registers registry event callbacks.
func (r *Registry) AddListener(events RegistryEvents) *Subscription {
	id := r.listeners.add(events)
	return &Subscription{
		loop:   r.conn.loop,
		remove: func() { r.listeners.remove(id) },
	}
}

// Destroy asks the daemon to destroy the global with the given id.
// Asynchronous: success is observed through GlobalRemoved, an unknown
// id through a session-level CoreError.
func (r *Registry) Destroy(id uint32) error {
	return r.conn.writeFrame(wire.FrameDestroyGlobal, wire.DestroyGlobal{ID: id})
}
