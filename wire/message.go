// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

package wire

// Hello opens a session. The daemon answers with CoreInfo.
type Hello struct {
	// Application identifies the connecting program (for the
	// daemon's Client global advertisement).
	Application string `cbor:"application"`

	// Version is the client's build version string.
	Version string `cbor:"version,omitempty"`
}

// CreateObject asks the daemon to instantiate a new object through the
// named factory. The daemon replies asynchronously: a Bound frame
// binds ProxyID to the allocated global id, and the new object arrives
// as an ordinary GlobalAdded advertisement.
type CreateObject struct {
	// ProxyID is a client-chosen identifier used to route subsequent
	// proxy events (Bound, LinkInfo, CoreError) back to the caller.
	ProxyID uint32 `cbor:"proxy_id"`

	// FactoryName is the runtime-assigned name of the factory, as
	// advertised in a Factory global's factory.name property.
	FactoryName string `cbor:"factory_name"`

	// Properties parameterize the new object. For links these are the
	// four endpoint keys plus object.linger.
	Properties map[string]string `cbor:"properties,omitempty"`
}

// DestroyGlobal destroys a global object by id. An unknown id is
// answered with CoreError; a successful destroy is observed through
// GlobalRemoved.
type DestroyGlobal struct {
	ID uint32 `cbor:"id"`
}

// Bye announces an orderly client disconnect. The daemon tears down
// the session's non-lingering objects either way; Bye only suppresses
// the "connection reset" log line.
type Bye struct{}

// Sync asks the daemon to confirm that everything sent before this
// message has been processed. The daemon answers with a Done carrying
// the same sequence number.
type Sync struct {
	Seq uint32 `cbor:"seq"`
}

// Done answers a Sync.
type Done struct {
	Seq uint32 `cbor:"seq"`
}

// CoreInfo is the daemon's session greeting.
type CoreInfo struct {
	// Cookie is a random per-daemon-instance value; a changed cookie
	// across reconnects means daemon restart.
	Cookie uint32 `cbor:"cookie"`

	// Name is the daemon's advertised name.
	Name string `cbor:"name"`

	// Version is the daemon's build version string.
	Version string `cbor:"version"`

	// Properties carries daemon-level metadata.
	Properties map[string]string `cbor:"properties,omitempty"`
}

// GlobalAdded advertises a global object. Re-advertisement at an
// existing id replaces the previous object wholesale.
type GlobalAdded struct {
	Global Global `cbor:"global"`
}

// GlobalRemoved withdraws a global object.
type GlobalRemoved struct {
	ID uint32 `cbor:"id"`
}

// Bound binds a client proxy to the global id the daemon allocated
// for it.
type Bound struct {
	ProxyID  uint32 `cbor:"proxy_id"`
	GlobalID uint32 `cbor:"global_id"`
}

// LinkInfo change mask bits.
const (
	LinkChangeState uint32 = 1 << 0
	LinkChangeProps uint32 = 1 << 1
)

// LinkInfo is a state update for a link proxy.
type LinkInfo struct {
	// ProxyID routes the update to the creating client's proxy.
	ProxyID uint32 `cbor:"proxy_id"`

	// ID is the link's global id (0 until Bound has been sent).
	ID uint32 `cbor:"id"`

	OutputNodeID uint32 `cbor:"output_node_id"`
	OutputPortID uint32 `cbor:"output_port_id"`
	InputNodeID  uint32 `cbor:"input_node_id"`
	InputPortID  uint32 `cbor:"input_port_id"`

	// ChangeMask flags which of State and Properties changed in this
	// update.
	ChangeMask uint32 `cbor:"change_mask"`

	// State is the raw lifecycle state value. Decode it with
	// LinkStateFromRaw; out-of-range values are a protocol violation.
	State int32 `cbor:"state"`

	// Error carries the failure message when State is StateError.
	Error string `cbor:"error,omitempty"`

	Properties map[string]string `cbor:"properties,omitempty"`
}

// CoreError reports a failed client request. ProxyID is the proxy the
// failure concerns, or 0 for session-level errors.
type CoreError struct {
	ProxyID uint32 `cbor:"proxy_id"`
	Code    int32  `cbor:"code"`
	Message string `cbor:"message"`
}
