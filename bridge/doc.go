// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

// Package bridge is the coordination layer between an interactive
// frontend and the routing daemon's single-threaded event loop.
//
// The daemon's client library requires all interaction to happen on
// one dedicated loop goroutine that must never block. The frontend
// runs on its own goroutine and needs current registry state plus a
// way to issue link operations. The bridge sits between the two:
//
//   - it owns the daemon connection and its loop goroutine outright;
//   - it mirrors every advertised global into a Mirror the frontend
//     may read directly under a short-lived guard;
//   - it accepts Commands through a queue, drained in arrival order by
//     a periodic poll on the loop goroutine, and translates symbolic
//     endpoint descriptors into the numeric link requests the wire
//     protocol needs;
//   - it reports back through a Notification queue the frontend polls
//     at its own pace.
//
// Commands and Notifications are the only data-carrying primitives
// crossing the goroutine boundary; the Mirror is additionally shared
// read-mostly under its own lock. Recoverable command failures (a
// stale endpoint, a factory not yet advertised, a destroy target that
// is already gone) surface as CommandFailed notifications and never
// terminate the bridge.
package bridge
