// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"fmt"
	"strconv"

	"github.com/patchline-project/patchline/wire"
)

// Endpoint is a symbolic handle for a port: any property key/value
// pair identifying it, typically port.alias or port.name. The
// frontend uses these instead of numeric ids, which are meaningless
// to an operator and may change across daemon restarts.
type Endpoint struct {
	Key   string
	Value string
}

func (e Endpoint) String() string {
	return e.Key + "=" + e.Value
}

// UnresolvedEndpointError reports an endpoint matching no advertised
// port: the descriptor is stale or mistyped. Non-fatal; the frontend
// may retry once the registry catches up.
type UnresolvedEndpointError struct {
	Endpoint Endpoint
}

func (e *UnresolvedEndpointError) Error() string {
	return fmt.Sprintf("no port matches %s", e.Endpoint)
}

// OrphanPortError reports a matched port whose owning node cannot be
// determined: the daemon advertised inconsistent state. Non-fatal.
type OrphanPortError struct {
	PortID uint32
	Reason string
}

func (e *OrphanPortError) Error() string {
	return fmt.Sprintf("port %d has no usable %s property: %s", e.PortID, wire.KeyNodeID, e.Reason)
}

// ResolveEndpoint finds the port matching the descriptor and returns
// the wire-level pair a link request needs: the owning node's
// declared id and the port's own global id. Only Port objects are
// considered.
func ResolveEndpoint(m *Mirror, endpoint Endpoint) (nodeID, portID uint32, err error) {
	port, ok := m.FindFirst(func(global wire.Global) bool {
		return global.Kind == wire.KindPort && global.Property(endpoint.Key) == endpoint.Value
	})
	if !ok {
		return 0, 0, &UnresolvedEndpointError{Endpoint: endpoint}
	}
	raw := port.Property(wire.KeyNodeID)
	if raw == "" {
		return 0, 0, &OrphanPortError{PortID: port.ID, Reason: "property missing"}
	}
	node, parseErr := strconv.ParseUint(raw, 10, 32)
	if parseErr != nil {
		return 0, 0, &OrphanPortError{PortID: port.ID, Reason: fmt.Sprintf("%q is not an id", raw)}
	}
	return uint32(node), port.ID, nil
}

// LinkProperties resolves both endpoints and builds the four-key
// property set identifying a link on the wire. The same set serves
// creation (with linger added) and destroy matching.
func LinkProperties(m *Mirror, from, to Endpoint) (map[string]string, error) {
	outputNode, outputPort, err := ResolveEndpoint(m, from)
	if err != nil {
		return nil, fmt.Errorf("output endpoint: %w", err)
	}
	inputNode, inputPort, err := ResolveEndpoint(m, to)
	if err != nil {
		return nil, fmt.Errorf("input endpoint: %w", err)
	}
	return map[string]string{
		wire.KeyLinkOutputNode: strconv.FormatUint(uint64(outputNode), 10),
		wire.KeyLinkOutputPort: strconv.FormatUint(uint64(outputPort), 10),
		wire.KeyLinkInputNode:  strconv.FormatUint(uint64(inputNode), 10),
		wire.KeyLinkInputPort:  strconv.FormatUint(uint64(inputPort), 10),
	}, nil
}

// matchesLinkProperties reports whether a Link global carries exactly
// the given four-tuple. All four must match: partial matches would
// let a destroy collect an unrelated link sharing an endpoint.
func matchesLinkProperties(global wire.Global, properties map[string]string) bool {
	if global.Kind != wire.KindLink {
		return false
	}
	for _, key := range []string{
		wire.KeyLinkOutputNode, wire.KeyLinkOutputPort,
		wire.KeyLinkInputNode, wire.KeyLinkInputPort,
	} {
		if global.Property(key) != properties[key] {
			return false
		}
	}
	return true
}
