// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

// Package client is the Go client library for the routing daemon's
// control protocol.
//
// The protocol is asynchronous and event-driven: after Connect, the
// daemon pushes registry advertisements and proxy updates whenever it
// pleases, and every client request is answered through those same
// push channels rather than a synchronous reply. The library therefore
// centers on an event loop:
//
//	conn, err := client.Connect(socketPath, client.Options{})
//	// register listeners BEFORE running the loop: nothing is
//	// dispatched until Run, so no events can be missed
//	registry, _ := conn.GetRegistry()
//	sub := registry.AddListener(client.RegistryEvents{...})
//	go conn.Loop().Run()
//
// All listener callbacks, timer callbacks and Invoke functions execute
// on the single goroutine that calls Loop.Run. That goroutine is
// cooperative and non-reentrant: callbacks must not block, and calls
// into the connection (CreateObject, Destroy, Sync) are expected to
// happen on it. The loop blocks only in its own wait for events.
//
// Listener registration returns a *Subscription. Closing the
// subscription revokes the listener exactly once and guarantees that
// no callback is executing or will execute after Close returns on the
// loop goroutine (Close from other goroutines waits for the loop to
// perform the removal).
package client
