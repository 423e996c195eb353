// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"log/slog"
	"testing"

	"github.com/patchline-project/patchline/wire"
)

func newDetachedWatcher() *LinkWatcher {
	return &LinkWatcher{
		logger:    slog.New(slog.DiscardHandler),
		observers: make(map[int]Observer),
	}
}

func TestLinkWatcherFanOut(t *testing.T) {
	w := newDetachedWatcher()

	var first, second []LinkUpdate
	w.AddObserver(func(update LinkUpdate) { first = append(first, update) })
	w.AddObserver(func(update LinkUpdate) { second = append(second, update) })

	update := LinkUpdate{LinkID: 12, State: wire.StateActive}
	w.publish(update)

	if len(first) != 1 || first[0] != update {
		t.Fatalf("first observer saw %v", first)
	}
	if len(second) != 1 || second[0] != update {
		t.Fatalf("second observer saw %v", second)
	}

	latest, seen := w.Latest()
	if !seen || latest != update {
		t.Fatalf("Latest = (%v, %v)", latest, seen)
	}
}

func TestLinkWatcherReplaysLatestToLateObserver(t *testing.T) {
	w := newDetachedWatcher()
	w.publish(LinkUpdate{LinkID: 12, State: wire.StatePaused})

	var got []LinkUpdate
	w.AddObserver(func(update LinkUpdate) { got = append(got, update) })
	if len(got) != 1 || got[0].State != wire.StatePaused {
		t.Fatalf("late observer replay = %v", got)
	}
}

func TestLinkWatcherObserverRemoval(t *testing.T) {
	w := newDetachedWatcher()

	var kept, revoked int
	w.AddObserver(func(LinkUpdate) { kept++ })
	handle := w.AddObserver(func(LinkUpdate) { revoked++ })

	w.publish(LinkUpdate{LinkID: 1, State: wire.StateInit})
	// Exercise the removal directly; routing through the loop is
	// covered by the connection-level subscription tests.
	handle.remove()
	w.publish(LinkUpdate{LinkID: 1, State: wire.StateActive})

	if kept != 2 {
		t.Fatalf("kept observer called %d times, want 2", kept)
	}
	if revoked != 1 {
		t.Fatalf("revoked observer called %d times, want 1", revoked)
	}
}
