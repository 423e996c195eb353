// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import "strings"

// ObjectKind classifies a global object. The daemon transmits kinds as
// protocol type identifier strings ("Routing:Object:Port"); unknown
// identifiers survive decode/encode verbatim so that a newer daemon
// does not break an older client.
type ObjectKind string

const (
	KindNode     ObjectKind = "Node"
	KindPort     ObjectKind = "Port"
	KindLink     ObjectKind = "Link"
	KindFactory  ObjectKind = "Factory"
	KindClient   ObjectKind = "Client"
	KindDevice   ObjectKind = "Device"
	KindModule   ObjectKind = "Module"
	KindCore     ObjectKind = "Core"
	KindMetadata ObjectKind = "Metadata"
)

// typeNamePrefix prefixes every protocol type identifier.
const typeNamePrefix = "Routing:Object:"

// TypeName returns the protocol type identifier for the kind. Factory
// globals declare the kind they produce with this string in their
// factory.type.name property.
func (k ObjectKind) TypeName() string {
	return typeNamePrefix + string(k)
}

// KindFromTypeName maps a protocol type identifier back to an
// ObjectKind. Identifiers outside the known namespace map to an
// "other" kind carrying the full identifier, never to an error: the
// registry must be able to mirror objects it does not understand.
func KindFromTypeName(typeName string) ObjectKind {
	if rest, ok := strings.CutPrefix(typeName, typeNamePrefix); ok {
		return ObjectKind(rest)
	}
	return ObjectKind(typeName)
}

// Known reports whether the kind is one of the enumerated kinds, as
// opposed to an unrecognized identifier carried verbatim.
func (k ObjectKind) Known() bool {
	switch k {
	case KindNode, KindPort, KindLink, KindFactory, KindClient,
		KindDevice, KindModule, KindCore, KindMetadata:
		return true
	}
	return false
}

// Permissions is the access mask a client holds on a global object.
type Permissions uint32

const (
	PermRead    Permissions = 1 << 0
	PermWrite   Permissions = 1 << 1
	PermExecute Permissions = 1 << 2
	PermModify  Permissions = 1 << 3

	// PermAll is the mask the daemon grants on objects a client owns.
	PermAll = PermRead | PermWrite | PermExecute | PermModify
)

// Has reports whether every bit in mask is present.
func (p Permissions) Has(mask Permissions) bool {
	return p&mask == mask
}

// String renders the mask in the conventional compact form, one rune
// per permission with "-" for absent bits (e.g. "rw-m").
func (p Permissions) String() string {
	runes := []byte("----")
	if p.Has(PermRead) {
		runes[0] = 'r'
	}
	if p.Has(PermWrite) {
		runes[1] = 'w'
	}
	if p.Has(PermExecute) {
		runes[2] = 'x'
	}
	if p.Has(PermModify) {
		runes[3] = 'm'
	}
	return string(runes)
}

// Global is one entry in the daemon's object registry as advertised to
// clients. Ids are unique per connection while the object is alive but
// may be reused by the daemon after removal. A re-advertisement at an
// existing id replaces the previous object wholesale.
type Global struct {
	// ID is the daemon-assigned global id.
	ID uint32 `cbor:"id"`

	// Kind classifies the object.
	Kind ObjectKind `cbor:"kind"`

	// Version is the protocol interface version of the object.
	Version uint32 `cbor:"version"`

	// Permissions is the access mask granted to this client.
	Permissions Permissions `cbor:"permissions"`

	// Properties carries the object's metadata. May be nil for
	// objects advertised without properties.
	Properties map[string]string `cbor:"properties,omitempty"`
}

// Property returns the named property, or "" when absent. Callers
// that must distinguish an absent key from an empty value use
// HasProperty.
func (g Global) Property(key string) string {
	return g.Properties[key]
}

// HasProperty reports whether the global carries the key at all.
func (g Global) HasProperty(key string) bool {
	_, ok := g.Properties[key]
	return ok
}
