// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Patchline's standard CBOR encoding
// configuration.
//
// The daemon control protocol carries CBOR payloads exclusively; YAML
// appears only in configuration files and never on the wire. This
// package provides the shared CBOR encoding and decoding modes so that
// the client library and the simulator daemon encode identically
// without duplicating configuration. The encoder uses Core
// Deterministic Encoding (RFC 8949 §4.2): sorted map keys, smallest
// integer encoding, no indefinite-length items. Same logical data
// always produces identical bytes.
//
// For buffer-oriented operations (frame payloads):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations:
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Protocol types use `cbor` struct tags throughout: they are never
// serialized as JSON.
package codec
