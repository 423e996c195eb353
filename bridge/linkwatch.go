// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"log/slog"
	"sync"

	"github.com/patchline-project/patchline/client"
	"github.com/patchline-project/patchline/wire"
)

// LinkUpdate is one decoded lifecycle transition of a watched link.
type LinkUpdate struct {
	// LinkID is the link's global id, 0 if the update arrived before
	// the daemon bound the proxy.
	LinkID uint32

	State wire.LinkState

	// Error carries the failure message when State is StateError,
	// whether reported by the daemon or synthesized for an
	// undecodable raw state.
	Error string
}

// Observer receives decoded link updates. Invoked on the loop
// goroutine only; must not block.
type Observer func(update LinkUpdate)

// ObserverHandle revokes one observer registration.
type ObserverHandle struct {
	once   sync.Once
	loop   *client.Loop
	remove func()
}

// Close revokes the observer, exactly once. Removal executes on the
// loop goroutine, so after Close returns there (or completes from
// another goroutine) no invocation is in flight or forthcoming.
func (h *ObserverHandle) Close() {
	h.once.Do(func() {
		h.loop.Invoke(h.remove)
	})
}

// LinkWatcher tracks one created link proxy, decoding its raw state
// updates and fanning them out to observers. An undecodable state is
// a protocol mismatch fatal to this link's tracking only: observers
// see a final Error update, the watcher detaches from the proxy, and
// the bridge carries on.
type LinkWatcher struct {
	logger       *slog.Logger
	loop         *client.Loop
	subscription *client.Subscription

	// mu guards the observer table and the latest-update fields.
	// State changes happen on the loop goroutine; reads may come from
	// anywhere.
	mu        sync.Mutex
	observers map[int]Observer
	nextID    int
	latest    LinkUpdate
	seen      bool
	poisoned  bool
}

// WatchLink attaches a watcher to a link proxy. The proxy must belong
// to a connection driven by loop.
func WatchLink(proxy *client.LinkProxy, loop *client.Loop, logger *slog.Logger) *LinkWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	w := &LinkWatcher{
		logger:    logger,
		loop:      loop,
		observers: make(map[int]Observer),
	}
	w.subscription = proxy.AddListener(client.LinkEvents{OnInfo: w.handleInfo})
	return w
}

// AddObserver registers an observer for decoded updates. If the
// watcher already saw an update, the observer immediately receives
// the latest one (on the caller's goroutine, before any loop
// dispatch).
func (w *LinkWatcher) AddObserver(observer Observer) *ObserverHandle {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.observers[id] = observer
	replay, seen := w.latest, w.seen
	w.mu.Unlock()

	if seen {
		observer(replay)
	}
	return &ObserverHandle{
		loop:   w.loop,
		remove: func() { w.removeObserver(id) },
	}
}

func (w *LinkWatcher) removeObserver(id int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.observers, id)
}

// Latest returns the most recent decoded update, if any arrived yet.
func (w *LinkWatcher) Latest() (LinkUpdate, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.latest, w.seen
}

// Close detaches the watcher from its proxy. Idempotent.
func (w *LinkWatcher) Close() {
	w.subscription.Close()
}

// handleInfo decodes one raw proxy update. Loop goroutine only.
func (w *LinkWatcher) handleInfo(info wire.LinkInfo) {
	if info.ChangeMask&wire.LinkChangeState == 0 {
		return
	}

	state, err := wire.LinkStateFromRaw(info.State)
	if err != nil {
		// The daemon speaks a state revision this build does not
		// know. Tracking this link any further would misreport it, so
		// the watcher poisons itself: one final Error update, then
		// detach.
		w.logger.Error("undecodable link state, abandoning link tracking",
			"link", info.ID, "raw_state", info.State)
		w.mu.Lock()
		if w.poisoned {
			w.mu.Unlock()
			return
		}
		w.poisoned = true
		w.mu.Unlock()
		w.publish(LinkUpdate{LinkID: info.ID, State: wire.StateError, Error: err.Error()})
		w.subscription.Close()
		return
	}

	w.publish(LinkUpdate{LinkID: info.ID, State: state, Error: info.Error})
}

// publish records the update as latest and fans it out.
func (w *LinkWatcher) publish(update LinkUpdate) {
	w.mu.Lock()
	w.latest = update
	w.seen = true
	snapshot := make([]Observer, 0, len(w.observers))
	for _, observer := range w.observers {
		snapshot = append(snapshot, observer)
	}
	w.mu.Unlock()
	for _, observer := range snapshot {
		observer(update)
	}
}
