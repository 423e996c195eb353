// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"sync/atomic"

	"github.com/patchline-project/patchline/wire"
)

// LinkEvents are the callbacks a link proxy listener may register.
type LinkEvents struct {
	// OnInfo delivers a link state update. Consult ChangeMask before
	// acting on individual fields.
	OnInfo func(info wire.LinkInfo)
}

// LinkProxy is the client-side handle for a link created through
// Core.CreateObject. It routes the daemon's LinkInfo updates to its
// listeners.
type LinkProxy struct {
	conn    *Conn
	proxyID uint32

	// globalID is set when the daemon's Bound frame arrives, 0 before.
	globalID atomic.Uint32

	listeners listenerSet[LinkEvents]
}

// ProxyID returns the client-chosen identifier for this proxy.
func (p *LinkProxy) ProxyID() uint32 {
	return p.proxyID
}

// GlobalID returns the daemon-allocated global id, or 0 if the Bound
// frame has not arrived yet.
func (p *LinkProxy) GlobalID() uint32 {
	return p.globalID.Load()
}

// AddListener registers link event callbacks.
func (p *LinkProxy) AddListener(events LinkEvents) *Subscription {
	id := p.listeners.add(events)
	return &Subscription{
		loop:   p.conn.loop,
		remove: func() { p.listeners.remove(id) },
	}
}

// Close detaches the proxy from the connection. Further LinkInfo
// frames for its id are dropped. Close does not destroy the link on
// the daemon: a link created with object.linger outlives its proxy,
// and removal goes through Registry.Destroy.
func (p *LinkProxy) Close() {
	p.conn.releaseProxy(p.proxyID)
}
