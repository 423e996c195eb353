// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patchline-project/patchline/client"
	"github.com/patchline-project/patchline/wire"
)

// State is the bridge lifecycle phase, for observability. Transitions
// run strictly Starting → Running → Draining → Stopped; a connection
// failure can skip from any phase to Stopped.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// ErrBridgeClosed is returned by Send once the bridge is draining or
// stopped.
var ErrBridgeClosed = errors.New("bridge: not accepting commands")

// Options configure a bridge.
type Options struct {
	// SocketPath is the daemon's Unix socket. Required.
	SocketPath string

	// Application identifies this client to the daemon.
	Application string

	// Logger receives structured log output. Nil uses slog.Default().
	Logger *slog.Logger

	// CommandBuffer is the command queue capacity. Zero uses 64.
	CommandBuffer int

	// NotificationBuffer is the notification queue capacity. Zero
	// uses 256.
	NotificationBuffer int

	// PollInitial and PollInterval control the command drain timer on
	// the loop goroutine. The poll only bounds command latency: the
	// daemon's own events wake the loop on their own. Zero values use
	// 1ms and 100ms.
	PollInitial  time.Duration
	PollInterval time.Duration
}

func (o *Options) fillDefaults() {
	if o.Application == "" {
		o.Application = "patchline"
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.CommandBuffer == 0 {
		o.CommandBuffer = 64
	}
	if o.NotificationBuffer == 0 {
		o.NotificationBuffer = 256
	}
	if o.PollInitial == 0 {
		o.PollInitial = time.Millisecond
	}
	if o.PollInterval == 0 {
		o.PollInterval = 100 * time.Millisecond
	}
}

// Bridge owns the daemon connection and its loop goroutine, mirrors
// the registry, and executes frontend commands. Construct with New,
// stop with Quit; a stopped bridge may not be reused.
type Bridge struct {
	logger   *slog.Logger
	conn     *client.Conn
	registry *client.Registry
	mirror   *Mirror
	poll     *client.Timer

	commands      chan Command
	notifications chan Notification

	state    atomic.Int32
	quitOnce sync.Once

	// done is closed when the loop goroutine has exited and the
	// connection is released.
	done chan struct{}
}

// New connects to the daemon, acquires the registry and starts the
// loop goroutine. Any failure here is fatal: without a connection and
// registry there is nothing to coordinate, so the caller must not
// proceed. On success the bridge is in Starting and moves to Running
// when the daemon's greeting arrives (emitting a CoreReady
// notification).
func New(options Options) (*Bridge, error) {
	options.fillDefaults()

	conn, err := client.Connect(options.SocketPath, client.Options{
		Application: options.Application,
		Logger:      options.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("bridge: %w", err)
	}
	registry, err := conn.GetRegistry()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("bridge: acquiring registry: %w", err)
	}

	b := &Bridge{
		logger:        options.Logger,
		conn:          conn,
		registry:      registry,
		mirror:        NewMirror(),
		commands:      make(chan Command, options.CommandBuffer),
		notifications: make(chan Notification, options.NotificationBuffer),
		done:          make(chan struct{}),
	}

	conn.Core().AddListener(client.CoreEvents{
		OnInfo: func(info wire.CoreInfo) {
			if b.state.CompareAndSwap(int32(StateStarting), int32(StateRunning)) {
				b.logger.Info("daemon ready",
					"daemon", info.Name,
					"version", info.Version,
					"cookie", info.Cookie)
				b.notify(Notification{Kind: NotifyCoreReady})
			}
		},
		OnError: func(coreError wire.CoreError) {
			b.logger.Warn("daemon reported request failure",
				"proxy", coreError.ProxyID,
				"code", coreError.Code,
				"message", coreError.Message)
		},
	})
	registry.AddListener(client.RegistryEvents{
		OnGlobal: func(global wire.Global) {
			b.mirror.Upsert(global)
			b.notify(Notification{Kind: NotifyObjectAdded, ID: global.ID})
		},
		OnGlobalRemove: func(id uint32) {
			b.mirror.Remove(id)
			b.notify(Notification{Kind: NotifyObjectRemoved, ID: id})
		},
	})
	b.poll = conn.Loop().AddTimer(options.PollInitial, options.PollInterval, b.drainCommands)

	go b.run()
	return b, nil
}

// run hosts the loop goroutine for the bridge's whole life.
func (b *Bridge) run() {
	err := b.conn.Loop().Run()
	if err != nil {
		b.logger.Error("daemon loop terminated", "error", err)
	}
	b.poll.Stop()
	b.state.Store(int32(StateStopped))
	b.conn.Close()
	close(b.done)
	b.logger.Info("bridge stopped")
}

// State returns the current lifecycle phase.
func (b *Bridge) State() State {
	return State(b.state.Load())
}

// Mirror returns the registry mirror. Read-only for callers; the
// bridge is the sole writer.
func (b *Bridge) Mirror() *Mirror {
	return b.mirror
}

// Done returns a channel closed once the bridge has stopped.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

// Send enqueues a command. Commands execute in arrival order relative
// to each other on the next drain poll. Returns ErrBridgeClosed once
// the bridge is draining or stopped.
func (b *Bridge) Send(command Command) error {
	if b.State() >= StateDraining {
		return ErrBridgeClosed
	}
	select {
	case b.commands <- command:
		return nil
	case <-b.done:
		return ErrBridgeClosed
	}
}

// TryReceive dequeues one pending notification without blocking.
func (b *Bridge) TryReceive() (Notification, bool) {
	select {
	case notification := <-b.notifications:
		return notification, true
	default:
		return Notification{}, false
	}
}

// Quit drains and stops the bridge, blocking until the loop goroutine
// has exited and the connection is released. There is deliberately no
// timeout: shutdown is cooperative, and a daemon that never yields
// the loop hangs Quit rather than leaking a half-dead bridge.
// Idempotent; always returns nil.
func (b *Bridge) Quit() error {
	b.quitOnce.Do(func() {
		select {
		case b.commands <- Shutdown():
		case <-b.done:
		}
	})
	<-b.done
	return nil
}

// notify forwards a notification to the frontend queue. Never blocks
// the loop goroutine: when the frontend stops draining, newest
// notifications are dropped with a log line.
func (b *Bridge) notify(notification Notification) {
	select {
	case b.notifications <- notification:
	default:
		b.logger.Warn("notification queue full, dropping",
			"kind", notification.Kind,
			"id", notification.ID)
	}
}

// drainCommands executes all queued commands in arrival order, each
// to completion before the next. Loop goroutine only.
func (b *Bridge) drainCommands() {
	for {
		select {
		case command := <-b.commands:
			if b.execute(command) {
				return
			}
		default:
			return
		}
	}
}

// execute runs one command; reports whether it was a shutdown.
func (b *Bridge) execute(command Command) bool {
	switch command.Kind {
	case CommandShutdown:
		b.logger.Info("draining")
		b.state.Store(int32(StateDraining))
		b.poll.Stop()
		b.conn.Loop().Quit()
		return true
	case CommandCreateLink:
		b.createLink(command)
	case CommandDestroyLink:
		b.destroyLink(command)
	default:
		b.logger.Warn("ignoring unknown command", "kind", command.Kind)
	}
	return false
}

// discard reports a recoverable command failure and moves on.
func (b *Bridge) discard(command Command, err error) {
	b.logger.Warn("discarding command",
		"command", command.Kind,
		"from", command.From,
		"to", command.To,
		"error", err)
	b.notify(Notification{
		Kind:   NotifyCommandFailed,
		Reason: fmt.Sprintf("%s: %v", command.Kind, err),
	})
}

// createLink resolves both endpoints and the link factory, then
// issues the creation request. The daemon's answer arrives
// asynchronously as an ordinary advertisement plus proxy updates; the
// bridge does not wait for it.
func (b *Bridge) createLink(command Command) {
	properties, err := LinkProperties(b.mirror, command.From, command.To)
	if err != nil {
		b.discard(command, err)
		return
	}
	factoryName, ok := b.mirror.FactoryName(wire.KindLink)
	if !ok {
		// Transient startup condition: factories arrive with the
		// registry replay. The frontend may simply retry.
		b.discard(command, errors.New("link factory not advertised yet"))
		return
	}

	// Linger keeps the link alive until explicitly destroyed, so it
	// cannot vanish before the frontend observes it.
	properties[wire.KeyObjectLinger] = "1"

	proxy, err := b.conn.Core().CreateObject(factoryName, properties)
	if err != nil {
		b.logger.Error("link creation request failed", "error", err)
		return
	}
	b.logger.Debug("link requested",
		"factory", factoryName,
		"from", command.From,
		"to", command.To)

	watcher := WatchLink(proxy, b.conn.Loop(), b.logger)
	watcher.AddObserver(func(update LinkUpdate) {
		b.notify(Notification{
			Kind:   NotifyLinkChanged,
			ID:     update.LinkID,
			State:  update.State,
			Reason: update.Error,
		})
		if update.State == wire.StateUnlinked || update.State == wire.StateError {
			watcher.Close()
			proxy.Close()
		}
	})
}

// destroyLink resolves both endpoints and destroys the link matching
// the derived four-tuple exactly. A missing match is a benign race:
// the link was already removed between the frontend's decision and
// this command's execution.
func (b *Bridge) destroyLink(command Command) {
	properties, err := LinkProperties(b.mirror, command.From, command.To)
	if err != nil {
		b.discard(command, err)
		return
	}
	link, ok := b.mirror.FindFirst(func(global wire.Global) bool {
		return matchesLinkProperties(global, properties)
	})
	if !ok {
		b.logger.Info("destroy target not found, assuming already removed",
			"from", command.From,
			"to", command.To)
		b.notify(Notification{
			Kind:   NotifyCommandFailed,
			Reason: fmt.Sprintf("%s: link already gone", command.Kind),
		})
		return
	}
	if err := b.registry.Destroy(link.ID); err != nil {
		b.logger.Error("link destroy request failed", "id", link.ID, "error", err)
		return
	}
	b.logger.Debug("link destroy requested", "id", link.ID)
}
