// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patchline-project/patchline/lib/version"
	"github.com/patchline-project/patchline/wire"
)

// ErrConnClosed is returned by calls on a closed connection.
var ErrConnClosed = errors.New("client: connection closed")

// Options configure a connection.
type Options struct {
	// Application identifies the client to the daemon. Defaults to
	// the process name "patchline".
	Application string

	// DialTimeout bounds the initial socket connect. Default 5s.
	DialTimeout time.Duration

	// Logger receives structured log output. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

func (o *Options) fillDefaults() {
	if o.Application == "" {
		o.Application = "patchline"
	}
	if o.DialTimeout == 0 {
		o.DialTimeout = 5 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Conn is a connection to the routing daemon. It owns the socket, the
// event loop and the proxies created through it. A Conn is not
// restartable: once closed, create a new one.
type Conn struct {
	socket net.Conn
	loop   *Loop
	logger *slog.Logger

	core *Core

	// writeMu serializes frame writes. Calls normally happen on the
	// loop goroutine, but the lock keeps the wire format intact even
	// for misbehaving callers.
	writeMu sync.Mutex

	// mu guards proxies, registry and nextProxyID.
	mu          sync.Mutex
	proxies     map[uint32]*LinkProxy
	registry    *Registry
	nextProxyID uint32

	closed    atomic.Bool
	closeOnce sync.Once
}

// Connect dials the daemon's Unix socket, sends the protocol greeting
// and returns. Failures here are fatal: the caller must not proceed
// without a connection. No events are dispatched until Loop().Run() is
// called, so listeners registered between Connect and Run cannot miss
// advertisements.
func Connect(socketPath string, options Options) (*Conn, error) {
	options.fillDefaults()

	socket, err := net.DialTimeout("unix", socketPath, options.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("client: connecting to daemon socket %s: %w", socketPath, err)
	}

	c := &Conn{
		socket:  socket,
		loop:    newLoop(),
		logger:  options.Logger,
		proxies: make(map[uint32]*LinkProxy),
	}
	c.core = &Core{conn: c}
	c.loop.handler = c.dispatch

	hello := wire.Hello{Application: options.Application, Version: version.Short()}
	if err := c.writeFrame(wire.FrameHello, hello); err != nil {
		socket.Close()
		return nil, fmt.Errorf("client: sending hello: %w", err)
	}

	go c.readFrames()

	c.logger.Debug("daemon connection established", "socket", socketPath)
	return c, nil
}

// Loop returns the connection's event loop.
func (c *Conn) Loop() *Loop {
	return c.loop
}

// Core returns the core proxy.
func (c *Conn) Core() *Core {
	return c.core
}

// GetRegistry returns the registry proxy. The same proxy is returned
// on every call.
func (c *Conn) GetRegistry() (*Registry, error) {
	if c.closed.Load() {
		return nil, ErrConnClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.registry == nil {
		c.registry = &Registry{conn: c}
	}
	return c.registry, nil
}

// Close sends a best-effort Bye, closes the socket and stops the
// loop. Idempotent. Callers normally Quit the loop, wait for Run to
// return, then Close.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		// Ignore the write error: the connection may already be gone,
		// and Bye only suppresses the daemon's reset log line.
		_ = c.writeFrame(wire.FrameBye, wire.Bye{})
		c.closed.Store(true)
		c.socket.Close()
		c.loop.Quit()
	})
	return nil
}

// writeFrame writes one frame to the socket.
func (c *Conn) writeFrame(frameType byte, payload any) error {
	if c.closed.Load() {
		return ErrConnClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := wire.WriteFrame(c.socket, frameType, payload); err != nil {
		return fmt.Errorf("client: %w", err)
	}
	return nil
}

// readFrames is the connection's reader goroutine. It decodes frames
// into the loop's inbox; the loop goroutine does all dispatching. On
// read failure the inbox is closed and the loop's Run returns.
func (c *Conn) readFrames() {
	defer close(c.loop.inbox)
	for {
		frame, err := wire.ReadFrame(c.socket)
		if err != nil {
			if !c.closed.Load() {
				readErr := fmt.Errorf("client: reading from daemon: %w", err)
				c.loop.readErr.Store(&readErr)
			}
			return
		}
		select {
		case c.loop.inbox <- frame:
		case <-c.loop.quitCh:
			return
		case <-c.loop.done:
			return
		}
	}
}

// allocateProxy registers a new link proxy and returns it.
func (c *Conn) allocateProxy() *LinkProxy {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextProxyID++
	proxy := &LinkProxy{conn: c, proxyID: c.nextProxyID}
	c.proxies[proxy.proxyID] = proxy
	return proxy
}

func (c *Conn) lookupProxy(proxyID uint32) *LinkProxy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.proxies[proxyID]
}

func (c *Conn) releaseProxy(proxyID uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.proxies, proxyID)
}

// dispatch routes one inbound frame to its listeners. Loop goroutine
// only. A payload that fails to decode means the stream is desynced or
// the daemon speaks an incompatible revision; both are unrecoverable
// for this connection, so the loop is quit.
func (c *Conn) dispatch(frame wire.Frame) {
	switch frame.Type {
	case wire.FrameCoreInfo:
		var info wire.CoreInfo
		if !c.decodeOrQuit(frame, &info) {
			return
		}
		c.core.listeners.each(func(events CoreEvents) {
			if events.OnInfo != nil {
				events.OnInfo(info)
			}
		})

	case wire.FrameDone:
		var done wire.Done
		if !c.decodeOrQuit(frame, &done) {
			return
		}
		c.core.listeners.each(func(events CoreEvents) {
			if events.OnDone != nil {
				events.OnDone(done.Seq)
			}
		})

	case wire.FrameCoreError:
		var coreError wire.CoreError
		if !c.decodeOrQuit(frame, &coreError) {
			return
		}
		c.core.listeners.each(func(events CoreEvents) {
			if events.OnError != nil {
				events.OnError(coreError)
			}
		})

	case wire.FrameGlobalAdded:
		var added wire.GlobalAdded
		if !c.decodeOrQuit(frame, &added) {
			return
		}
		if registry := c.currentRegistry(); registry != nil {
			registry.listeners.each(func(events RegistryEvents) {
				if events.OnGlobal != nil {
					events.OnGlobal(added.Global)
				}
			})
		}

	case wire.FrameGlobalRemoved:
		var removed wire.GlobalRemoved
		if !c.decodeOrQuit(frame, &removed) {
			return
		}
		if registry := c.currentRegistry(); registry != nil {
			registry.listeners.each(func(events RegistryEvents) {
				if events.OnGlobalRemove != nil {
					events.OnGlobalRemove(removed.ID)
				}
			})
		}

	case wire.FrameBound:
		var bound wire.Bound
		if !c.decodeOrQuit(frame, &bound) {
			return
		}
		if proxy := c.lookupProxy(bound.ProxyID); proxy != nil {
			proxy.globalID.Store(bound.GlobalID)
		}

	case wire.FrameLinkInfo:
		var info wire.LinkInfo
		if !c.decodeOrQuit(frame, &info) {
			return
		}
		if proxy := c.lookupProxy(info.ProxyID); proxy != nil {
			proxy.listeners.each(func(events LinkEvents) {
				if events.OnInfo != nil {
					events.OnInfo(info)
				}
			})
		}

	default:
		// Unknown frame types are skipped, not fatal: the payload was
		// fully read, so the stream stays in sync and an older client
		// keeps working against a newer daemon.
		c.logger.Debug("ignoring unknown frame type", "type", fmt.Sprintf("0x%02x", frame.Type))
	}
}

func (c *Conn) decodeOrQuit(frame wire.Frame, v any) bool {
	if err := wire.DecodePayload(frame, v); err != nil {
		c.logger.Error("protocol decode failure, abandoning connection", "error", err)
		c.loop.Quit()
		return false
	}
	return true
}

func (c *Conn) currentRegistry() *Registry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry
}
