// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"sync/atomic"

	"github.com/patchline-project/patchline/wire"
)

// CoreEvents are the callbacks a core listener may register. Nil
// fields are skipped.
type CoreEvents struct {
	// OnInfo delivers the daemon's session greeting.
	OnInfo func(info wire.CoreInfo)

	// OnDone answers a Sync with the matching sequence number.
	OnDone func(seq uint32)

	// OnError reports a failed request. ProxyID is 0 for
	// session-level errors.
	OnError func(coreError wire.CoreError)
}

// Core is the proxy for the daemon's core object. It issues requests
// and receives session-level events.
type Core struct {
	conn      *Conn
	listeners listenerSet[CoreEvents]
	syncSeq   atomic.Uint32
}

// AddListener registers core event callbacks. Register before running
// the loop to observe the initial CoreInfo.
func (c *Core) AddListener(events CoreEvents) *Subscription {
	id := c.listeners.add(events)
	return &Subscription{
		loop:   c.conn.loop,
		remove: func() { c.listeners.remove(id) },
	}
}

// CreateObject asks the daemon to instantiate an object through the
// named factory and returns the proxy that will receive its events.
// The request is asynchronous: success arrives as Bound plus a
// GlobalAdded advertisement, failure as a CoreError carrying the
// proxy's id.
func (c *Core) CreateObject(factoryName string, properties map[string]string) (*LinkProxy, error) {
	proxy := c.conn.allocateProxy()
	request := wire.CreateObject{
		ProxyID:     proxy.proxyID,
		FactoryName: factoryName,
		Properties:  properties,
	}
	if err := c.conn.writeFrame(wire.FrameCreateObject, request); err != nil {
		c.conn.releaseProxy(proxy.proxyID)
		return nil, err
	}
	return proxy, nil
}

// Sync asks the daemon to confirm that every request sent before this
// call has been processed. The returned sequence number is echoed in
// the eventual OnDone callback.
func (c *Core) Sync() (uint32, error) {
	seq := c.syncSeq.Add(1)
	if err := c.conn.writeFrame(wire.FrameSync, wire.Sync{Seq: seq}); err != nil {
		return 0, err
	}
	return seq, nil
}
