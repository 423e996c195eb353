// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

package daemon

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/patchline-project/patchline/lib/version"
	"github.com/patchline-project/patchline/wire"
)

// Protocol error codes, modelled on errno values.
const (
	errorCodeInvalid  int32 = -22 // bad request arguments
	errorCodeNoEntity int32 = -2  // no such global
)

// session is one connected client.
type session struct {
	daemon *Daemon
	conn   net.Conn
	logger *slog.Logger

	// writeMu serializes frame writes: the session's own handler, the
	// daemon's broadcasts and link walk goroutines all write here.
	writeMu sync.Mutex

	closed atomic.Bool

	clientGlobalID uint32
}

func (s *session) run() {
	defer s.daemon.wg.Done()
	defer s.teardown()

	// The first frame must be the greeting.
	frame, err := wire.ReadFrame(s.conn)
	if err != nil {
		s.logger.Debug("session ended before greeting", "error", err)
		return
	}
	if frame.Type != wire.FrameHello {
		s.logger.Warn("session opened without greeting", "type", frame.Type)
		return
	}
	var hello wire.Hello
	if err := wire.DecodePayload(frame, &hello); err != nil {
		s.logger.Warn("malformed greeting", "error", err)
		return
	}
	s.logger = s.logger.With("application", hello.Application)

	s.register(hello)
	s.logger.Debug("session established")

	for {
		frame, err := wire.ReadFrame(s.conn)
		if err != nil {
			s.logger.Debug("session read ended", "error", err)
			return
		}
		switch frame.Type {
		case wire.FrameSync:
			var sync wire.Sync
			if err := wire.DecodePayload(frame, &sync); err != nil {
				s.logger.Warn("malformed sync", "error", err)
				return
			}
			s.writeFrame(wire.FrameDone, wire.Done{Seq: sync.Seq})

		case wire.FrameCreateObject:
			var request wire.CreateObject
			if err := wire.DecodePayload(frame, &request); err != nil {
				s.logger.Warn("malformed create request", "error", err)
				return
			}
			s.handleCreate(request)

		case wire.FrameDestroyGlobal:
			var request wire.DestroyGlobal
			if err := wire.DecodePayload(frame, &request); err != nil {
				s.logger.Warn("malformed destroy request", "error", err)
				return
			}
			s.handleDestroy(request)

		case wire.FrameBye:
			s.logger.Debug("session said goodbye")
			return

		default:
			s.logger.Debug("ignoring unknown frame type", "type", frame.Type)
		}
	}
}

// register adds the session to the daemon, greets it with CoreInfo,
// advertises its Client global and replays the full registry.
func (s *session) register(hello wire.Hello) {
	d := s.daemon

	d.mu.Lock()
	d.sessions[s] = struct{}{}
	clientID := d.allocateIDLocked()
	clientGlobal := wire.Global{
		ID:          clientID,
		Kind:        wire.KindClient,
		Version:     3,
		Permissions: wire.PermRead,
		Properties: map[string]string{
			"client.name":        hello.Application,
			"client.api.version": hello.Version,
		},
	}
	d.globals[clientID] = clientGlobal
	s.clientGlobalID = clientID
	replay := d.snapshotLocked()
	d.mu.Unlock()

	s.writeFrame(wire.FrameCoreInfo, wire.CoreInfo{
		Cookie:  d.cookie,
		Name:    "patchlined",
		Version: version.Short(),
	})
	for _, global := range replay {
		s.writeFrame(wire.FrameGlobalAdded, wire.GlobalAdded{Global: global})
	}

	// Other sessions learn about the newcomer too.
	for _, peer := range d.peersOf(s) {
		peer.writeFrame(wire.FrameGlobalAdded, wire.GlobalAdded{Global: clientGlobal})
	}
}

// peersOf returns every live session except s.
func (d *Daemon) peersOf(s *session) []*session {
	d.mu.Lock()
	defer d.mu.Unlock()
	peers := make([]*session, 0, len(d.sessions))
	for peer := range d.sessions {
		if peer != s {
			peers = append(peers, peer)
		}
	}
	return peers
}

// teardown withdraws the session's Client global and its non-lingering
// links.
func (s *session) teardown() {
	s.closed.Store(true)
	s.conn.Close()
	d := s.daemon

	d.mu.Lock()
	delete(d.sessions, s)
	removed := make([]uint32, 0, 4)
	if s.clientGlobalID != 0 {
		delete(d.globals, s.clientGlobalID)
		removed = append(removed, s.clientGlobalID)
	}
	for id, link := range d.links {
		if link.creator != s {
			continue
		}
		if link.linger {
			// The link survives; nobody is left to receive its proxy
			// updates though.
			link.creator = nil
			continue
		}
		delete(d.globals, id)
		delete(d.links, id)
		removed = append(removed, id)
	}
	d.mu.Unlock()

	for _, id := range removed {
		d.broadcast(wire.FrameGlobalRemoved, wire.GlobalRemoved{ID: id})
	}
}

// handleCreate services a factory instantiation request. Only the link
// factory exists here; anything else is an invalid-argument error.
func (s *session) handleCreate(request wire.CreateObject) {
	d := s.daemon

	link, err := s.buildLink(request)
	if err != nil {
		s.logger.Debug("rejecting create request", "factory", request.FactoryName, "error", err)
		s.writeFrame(wire.FrameCoreError, wire.CoreError{
			ProxyID: request.ProxyID,
			Code:    errorCodeInvalid,
			Message: err.Error(),
		})
		return
	}

	properties := map[string]string{
		wire.KeyLinkOutputNode: strconv.FormatUint(uint64(link.outputNode), 10),
		wire.KeyLinkOutputPort: strconv.FormatUint(uint64(link.outputPort), 10),
		wire.KeyLinkInputNode:  strconv.FormatUint(uint64(link.inputNode), 10),
		wire.KeyLinkInputPort:  strconv.FormatUint(uint64(link.inputPort), 10),
	}
	if link.linger {
		properties[wire.KeyObjectLinger] = "1"
	}

	d.mu.Lock()
	link.id = d.allocateIDLocked()
	global := wire.Global{
		ID:          link.id,
		Kind:        wire.KindLink,
		Version:     3,
		Permissions: wire.PermAll,
		Properties:  properties,
	}
	d.globals[link.id] = global
	d.links[link.id] = link
	d.mu.Unlock()

	s.writeFrame(wire.FrameBound, wire.Bound{ProxyID: request.ProxyID, GlobalID: link.id})
	d.broadcast(wire.FrameGlobalAdded, wire.GlobalAdded{Global: global})

	d.wg.Add(1)
	go s.walkLink(link)
}

// buildLink validates a create request against the registry and
// returns the pending link record.
func (s *session) buildLink(request wire.CreateObject) (*linkRecord, error) {
	d := s.daemon

	d.mu.Lock()
	defer d.mu.Unlock()

	factoryFound := false
	for _, global := range d.globals {
		if global.Kind != wire.KindFactory {
			continue
		}
		if global.Property(wire.KeyFactoryName) != request.FactoryName {
			continue
		}
		if global.Property(wire.KeyFactoryTypeName) != wire.KindLink.TypeName() {
			return nil, fmt.Errorf("factory %q does not make links", request.FactoryName)
		}
		factoryFound = true
		break
	}
	if !factoryFound {
		return nil, fmt.Errorf("unknown factory %q", request.FactoryName)
	}

	link := &linkRecord{
		creator: s,
		proxyID: request.ProxyID,
		linger:  request.Properties[wire.KeyObjectLinger] == "1",
	}
	for _, endpoint := range []struct {
		key  string
		kind wire.ObjectKind
		dest *uint32
	}{
		{wire.KeyLinkOutputNode, wire.KindNode, &link.outputNode},
		{wire.KeyLinkOutputPort, wire.KindPort, &link.outputPort},
		{wire.KeyLinkInputNode, wire.KindNode, &link.inputNode},
		{wire.KeyLinkInputPort, wire.KindPort, &link.inputPort},
	} {
		raw, ok := request.Properties[endpoint.key]
		if !ok {
			return nil, fmt.Errorf("missing property %s", endpoint.key)
		}
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("property %s: %q is not an id", endpoint.key, raw)
		}
		global, exists := d.globals[uint32(id)]
		if !exists || global.Kind != endpoint.kind {
			return nil, fmt.Errorf("property %s: no %s with id %d", endpoint.key, endpoint.kind, id)
		}
		*endpoint.dest = uint32(id)
	}
	return link, nil
}

// walkLink emits the link's lifecycle updates to its creator.
func (s *session) walkLink(link *linkRecord) {
	defer s.daemon.wg.Done()
	options := s.daemon.options

	if options.RawStateOverride != nil {
		s.sendLinkInfo(link, *options.RawStateOverride)
		return
	}

	walk := []wire.LinkState{
		wire.StateInit, wire.StateNegotiating, wire.StateAllocating, wire.StateActive,
	}
	if options.ImmediateActive {
		walk = []wire.LinkState{wire.StateActive}
	}
	if options.HoldState != nil {
		// Walk the full ordered lifecycle only up to the held state,
		// so a hold at Paused never reaches Active.
		hold := *options.HoldState
		lifecycle := []wire.LinkState{
			wire.StateInit, wire.StateNegotiating, wire.StateAllocating,
			wire.StatePaused, wire.StateActive,
		}
		held := make([]wire.LinkState, 0, len(lifecycle))
		found := false
		for _, state := range lifecycle {
			held = append(held, state)
			if state == hold {
				found = true
				break
			}
		}
		if !found {
			held = append(held, hold)
		}
		walk = held
	}

	for step, state := range walk {
		if step > 0 {
			time.Sleep(options.WalkInterval)
		}
		if !s.linkAlive(link) {
			return
		}
		s.sendLinkInfo(link, int32(state))
	}
}

func (s *session) linkAlive(link *linkRecord) bool {
	d := s.daemon
	d.mu.Lock()
	defer d.mu.Unlock()
	record, exists := d.links[link.id]
	return exists && record.creator == s && !s.closed.Load()
}

func (s *session) sendLinkInfo(link *linkRecord, rawState int32) {
	s.writeFrame(wire.FrameLinkInfo, wire.LinkInfo{
		ProxyID:      link.proxyID,
		ID:           link.id,
		OutputNodeID: link.outputNode,
		OutputPortID: link.outputPort,
		InputNodeID:  link.inputNode,
		InputPortID:  link.inputPort,
		ChangeMask:   wire.LinkChangeState,
		State:        rawState,
	})
}

// handleDestroy removes a global by id, broadcasting the removal. A
// destroyed link additionally sends a terminal Unlinked update to its
// creator if that session is still around.
func (s *session) handleDestroy(request wire.DestroyGlobal) {
	d := s.daemon

	d.mu.Lock()
	_, exists := d.globals[request.ID]
	var link *linkRecord
	if exists {
		delete(d.globals, request.ID)
		link = d.links[request.ID]
		delete(d.links, request.ID)
	}
	d.mu.Unlock()

	if !exists {
		s.writeFrame(wire.FrameCoreError, wire.CoreError{
			Code:    errorCodeNoEntity,
			Message: fmt.Sprintf("no global with id %d", request.ID),
		})
		return
	}

	d.broadcast(wire.FrameGlobalRemoved, wire.GlobalRemoved{ID: request.ID})
	if link != nil && link.creator != nil && !link.creator.closed.Load() {
		link.creator.sendLinkInfo(link, int32(wire.StateUnlinked))
	}
}

// writeFrame sends one frame, swallowing errors: a session that stops
// reading is torn down by its own read loop soon enough.
func (s *session) writeFrame(frameType byte, payload any) {
	if s.closed.Load() {
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := wire.WriteFrame(s.conn, frameType, payload); err != nil {
		s.logger.Debug("session write failed", "error", err)
	}
}
