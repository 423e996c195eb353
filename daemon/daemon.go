// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/patchline-project/patchline/wire"
)

// Options configure a simulator instance.
type Options struct {
	// SocketPath is the Unix socket to listen on. Required.
	SocketPath string

	// Seed is the object graph advertised at startup. Nil uses
	// DefaultSeed.
	Seed *Seed

	// Logger receives structured log output. Nil uses slog.Default().
	Logger *slog.Logger

	// RequireSameUser rejects connections whose peer uid differs from
	// the daemon's own.
	RequireSameUser bool

	// WalkInterval is the delay between link lifecycle steps. Zero
	// uses 2ms.
	WalkInterval time.Duration

	// ImmediateActive collapses the link lifecycle walk to a single
	// Active update. Test hook.
	ImmediateActive bool

	// HoldState parks created links in the given state instead of
	// completing the walk to Active. Test hook.
	HoldState *wire.LinkState

	// RawStateOverride emits exactly one link update carrying this raw
	// state value, bypassing the lifecycle walk. For exercising client
	// handling of out-of-range states. Test hook.
	RawStateOverride *int32
}

// Daemon is an in-memory routing daemon simulator serving the control
// protocol on a Unix socket.
type Daemon struct {
	options Options
	logger  *slog.Logger

	listener net.Listener
	cookie   uint32

	// mu guards globals, links, sessions, nextID and closed.
	mu       sync.Mutex
	globals  map[uint32]wire.Global
	links    map[uint32]*linkRecord
	sessions map[*session]struct{}
	nextID   uint32
	closed   bool

	wg sync.WaitGroup
}

// linkRecord tracks a link created through the factory: who made it
// and whether it outlives that session.
type linkRecord struct {
	id      uint32
	creator *session
	proxyID uint32
	linger  bool

	outputNode uint32
	outputPort uint32
	inputNode  uint32
	inputPort  uint32
}

// New creates the simulator, seeds its registry and starts accepting
// connections. A stale socket file at the configured path is removed
// first.
func New(options Options) (*Daemon, error) {
	if options.SocketPath == "" {
		return nil, errors.New("daemon: no socket path configured")
	}
	if options.Seed == nil {
		options.Seed = DefaultSeed()
	}
	if err := options.Seed.validate(); err != nil {
		return nil, fmt.Errorf("daemon: invalid seed: %w", err)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.WalkInterval == 0 {
		options.WalkInterval = 2 * time.Millisecond
	}

	if err := os.Remove(options.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("daemon: removing stale socket: %w", err)
	}
	listener, err := net.Listen("unix", options.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("daemon: listening on %s: %w", options.SocketPath, err)
	}

	d := &Daemon{
		options:  options,
		logger:   options.Logger,
		listener: listener,
		cookie:   rand.Uint32(),
		globals:  make(map[uint32]wire.Global),
		links:    make(map[uint32]*linkRecord),
		sessions: make(map[*session]struct{}),
	}
	d.seedRegistry(options.Seed)

	d.wg.Add(1)
	go d.acceptLoop()

	d.logger.Info("simulator listening",
		"socket", options.SocketPath,
		"nodes", len(options.Seed.Nodes))
	return d, nil
}

// SocketPath returns the socket the daemon listens on.
func (d *Daemon) SocketPath() string {
	return d.options.SocketPath
}

// Stop closes the listener and every live session, then waits for all
// daemon goroutines to exit. The socket file is removed.
func (d *Daemon) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.wg.Wait()
		return
	}
	d.closed = true
	sessions := make([]*session, 0, len(d.sessions))
	for s := range d.sessions {
		sessions = append(sessions, s)
	}
	d.mu.Unlock()

	d.listener.Close()
	for _, s := range sessions {
		s.conn.Close()
	}
	d.wg.Wait()
	_ = os.Remove(d.options.SocketPath)
}

// seedRegistry populates the initial object graph: the core global,
// the link factory, and the seed's nodes with their ports.
func (d *Daemon) seedRegistry(seed *Seed) {
	d.mu.Lock()
	defer d.mu.Unlock()

	coreID := d.allocateIDLocked()
	d.globals[coreID] = wire.Global{
		ID:          coreID,
		Kind:        wire.KindCore,
		Version:     3,
		Permissions: wire.PermRead,
		Properties: map[string]string{
			"core.name": "patchlined",
		},
	}

	factoryID := d.allocateIDLocked()
	d.globals[factoryID] = wire.Global{
		ID:          factoryID,
		Kind:        wire.KindFactory,
		Version:     3,
		Permissions: wire.PermRead,
		Properties: map[string]string{
			wire.KeyFactoryName:     "link-factory",
			wire.KeyFactoryTypeName: wire.KindLink.TypeName(),
		},
	}

	for _, node := range seed.Nodes {
		nodeID := d.allocateIDLocked()
		d.globals[nodeID] = wire.Global{
			ID:          nodeID,
			Kind:        wire.KindNode,
			Version:     3,
			Permissions: wire.PermAll,
			Properties: map[string]string{
				"node.name": node.Name,
			},
		}
		for index, portName := range node.Outputs {
			d.seedPortLocked(nodeID, node.Name, portName, "out", index)
		}
		for index, portName := range node.Inputs {
			d.seedPortLocked(nodeID, node.Name, portName, "in", index)
		}
	}
}

func (d *Daemon) seedPortLocked(nodeID uint32, nodeName, portName, direction string, index int) {
	portID := d.allocateIDLocked()
	d.globals[portID] = wire.Global{
		ID:          portID,
		Kind:        wire.KindPort,
		Version:     3,
		Permissions: wire.PermAll,
		Properties: map[string]string{
			wire.KeyNodeID:        strconv.FormatUint(uint64(nodeID), 10),
			wire.KeyPortID:        strconv.Itoa(index),
			wire.KeyPortName:      portName,
			wire.KeyPortAlias:     nodeName + ":" + portName,
			wire.KeyPortDirection: direction,
		},
	}
}

// allocateIDLocked hands out the next global id. Ids are never reused
// within a daemon run.
func (d *Daemon) allocateIDLocked() uint32 {
	d.nextID++
	return d.nextID
}

func (d *Daemon) acceptLoop() {
	defer d.wg.Done()
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			// Listener closed during Stop, or a transient accept
			// failure; either way the simulator does not retry.
			return
		}
		if d.options.RequireSameUser {
			ok, err := sameUserPeer(conn)
			if err != nil || !ok {
				d.logger.Warn("rejecting connection from other user", "error", err)
				conn.Close()
				continue
			}
		}
		s := &session{daemon: d, conn: conn, logger: d.logger}
		d.wg.Add(1)
		go s.run()
	}
}

// snapshotLocked returns all globals sorted by id, for session replay.
func (d *Daemon) snapshotLocked() []wire.Global {
	globals := make([]wire.Global, 0, len(d.globals))
	for _, global := range d.globals {
		globals = append(globals, global)
	}
	sort.Slice(globals, func(i, j int) bool { return globals[i].ID < globals[j].ID })
	return globals
}

// broadcast sends one frame to every live session.
func (d *Daemon) broadcast(frameType byte, payload any) {
	d.mu.Lock()
	sessions := make([]*session, 0, len(d.sessions))
	for s := range d.sessions {
		sessions = append(sessions, s)
	}
	d.mu.Unlock()
	for _, s := range sessions {
		s.writeFrame(frameType, payload)
	}
}
