// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

// Package daemon is a simulator for the routing daemon's control
// protocol. It serves the same framed CBOR protocol a real daemon
// would, backed by a seeded in-memory object graph instead of actual
// media routing.
//
// The simulator exists for development and testing: cmd/patchlined
// runs it standalone, and package tests start one in-process on a
// temporary Unix socket. It implements enough of the protocol for a
// full client session: registry replay and live advertisements, link
// creation through the advertised factory (with the usual lifecycle
// state walk), destroy-by-id, linger semantics across disconnects,
// and per-session Client globals.
package daemon
