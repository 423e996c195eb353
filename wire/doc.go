// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire defines the control protocol between the routing daemon
// and its clients: framed CBOR messages over a local Unix stream socket.
//
// The package is organized around the protocol surface:
//
//   - frame.go: wire framing (type byte + length-prefixed CBOR payload)
//   - message.go: message payload types for both directions
//   - object.go: global object model (kinds, permissions, properties)
//   - linkstate.go: link lifecycle state enumeration and decoding
//   - keys.go: well-known property keys
//
// Everything the daemon knows is advertised as a global object: a
// numeric id, an object kind, a permission mask, and an ordered
// string-to-string property map. Clients never see daemon internals,
// only this registry and the proxies they create through factories.
package wire
