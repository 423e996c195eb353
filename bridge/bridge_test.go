// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

package bridge_test

import (
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/patchline-project/patchline/bridge"
	"github.com/patchline-project/patchline/daemon"
	"github.com/patchline-project/patchline/lib/testutil"
	"github.com/patchline-project/patchline/wire"
)

var (
	captureFL  = bridge.Endpoint{Key: wire.KeyPortAlias, Value: "demo-capture:capture_FL"}
	captureFR  = bridge.Endpoint{Key: wire.KeyPortAlias, Value: "demo-capture:capture_FR"}
	playbackFL = bridge.Endpoint{Key: wire.KeyPortAlias, Value: "demo-playback:playback_FL"}
	playbackFR = bridge.Endpoint{Key: wire.KeyPortAlias, Value: "demo-playback:playback_FR"}
)

func startSimulator(t *testing.T, options daemon.Options) *daemon.Daemon {
	t.Helper()
	options.SocketPath = filepath.Join(testutil.SocketDir(t), "patchlined.sock")
	options.Logger = slog.New(slog.DiscardHandler)
	if options.WalkInterval == 0 {
		options.WalkInterval = time.Millisecond
	}
	d, err := daemon.New(options)
	if err != nil {
		t.Fatalf("starting simulator: %v", err)
	}
	t.Cleanup(d.Stop)
	return d
}

func newBridge(t *testing.T, d *daemon.Daemon) *bridge.Bridge {
	t.Helper()
	b, err := bridge.New(bridge.Options{
		SocketPath:   d.SocketPath(),
		Application:  "bridge-test",
		Logger:       slog.New(slog.DiscardHandler),
		PollInitial:  time.Millisecond,
		PollInterval: 2 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("constructing bridge: %v", err)
	}
	t.Cleanup(func() { _ = b.Quit() })
	return b
}

// drainUntil polls TryReceive until a notification satisfies the
// predicate, returning it plus everything seen on the way.
func drainUntil(t *testing.T, b *bridge.Bridge, predicate func(bridge.Notification) bool, what string) (bridge.Notification, []bridge.Notification) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	var seen []bridge.Notification
	for time.Now().Before(deadline) {
		notification, ok := b.TryReceive()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		seen = append(seen, notification)
		if predicate(notification) {
			return notification, seen
		}
	}
	t.Fatalf("timed out waiting for notification: %s (saw %d others)", what, len(seen))
	panic("unreachable")
}

// awaitReady waits for CoreReady and for the registry replay to reach
// the mirror.
func awaitReady(t *testing.T, b *bridge.Bridge) {
	t.Helper()
	first, _ := drainUntil(t, b, func(n bridge.Notification) bool {
		return n.Kind == bridge.NotifyCoreReady
	}, "core ready")
	if first.Kind != bridge.NotifyCoreReady {
		t.Fatalf("first notification = %v, want core-ready", first.Kind)
	}
	testutil.Eventually(t, func() bool {
		_, ok := b.Mirror().FactoryName(wire.KindLink)
		return ok
	}, 5*time.Second, time.Millisecond, "factory advertisement")
	testutil.Eventually(t, func() bool {
		_, _, err := bridge.ResolveEndpoint(b.Mirror(), captureFL)
		return err == nil
	}, 5*time.Second, time.Millisecond, "port advertisements")
}

func isLinkState(state wire.LinkState) func(bridge.Notification) bool {
	return func(n bridge.Notification) bool {
		return n.Kind == bridge.NotifyLinkChanged && n.State == state
	}
}

// mirrorLink finds the mirrored Link global for an endpoint pair.
func mirrorLink(b *bridge.Bridge, from, to bridge.Endpoint) (wire.Global, bool) {
	properties, err := bridge.LinkProperties(b.Mirror(), from, to)
	if err != nil {
		return wire.Global{}, false
	}
	return b.Mirror().FindFirst(func(global wire.Global) bool {
		if global.Kind != wire.KindLink {
			return false
		}
		for key, value := range properties {
			if global.Property(key) != value {
				return false
			}
		}
		return true
	})
}

func TestBridgeReachesRunning(t *testing.T) {
	d := startSimulator(t, daemon.Options{})
	b := newBridge(t, d)
	awaitReady(t, b)

	if state := b.State(); state != bridge.StateRunning {
		t.Fatalf("state = %v after core ready, want running", state)
	}
	if b.Mirror().Len() == 0 {
		t.Fatal("mirror empty after replay")
	}
}

func TestBridgeConnectFailureIsFatal(t *testing.T) {
	socketPath := filepath.Join(testutil.SocketDir(t), "absent.sock")
	_, err := bridge.New(bridge.Options{
		SocketPath: socketPath,
		Logger:     slog.New(slog.DiscardHandler),
	})
	if err == nil {
		t.Fatal("bridge constructed without a daemon")
	}
}

func TestCreateLinkWalksLifecycle(t *testing.T) {
	d := startSimulator(t, daemon.Options{})
	b := newBridge(t, d)
	awaitReady(t, b)

	if err := b.Send(bridge.CreateLink(captureFL, playbackFL)); err != nil {
		t.Fatalf("Send: %v", err)
	}

	_, seen := drainUntil(t, b, isLinkState(wire.StateActive), "link active")

	// The decoded walk arrives in daemon order.
	var states []wire.LinkState
	for _, notification := range seen {
		if notification.Kind == bridge.NotifyLinkChanged {
			states = append(states, notification.State)
		}
	}
	want := []wire.LinkState{
		wire.StateInit, wire.StateNegotiating, wire.StateAllocating, wire.StateActive,
	}
	if len(states) != len(want) {
		t.Fatalf("link states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("link states = %v, want %v", states, want)
		}
	}

	// The link also arrives as an ordinary advertisement.
	testutil.Eventually(t, func() bool {
		_, ok := mirrorLink(b, captureFL, playbackFL)
		return ok
	}, 5*time.Second, time.Millisecond, "link in mirror")
}

func TestCommandsExecuteInArrivalOrder(t *testing.T) {
	d := startSimulator(t, daemon.Options{})
	b := newBridge(t, d)
	awaitReady(t, b)

	// Distinct unresolvable endpoints make execution order observable
	// through the failure notifications.
	ghosts := []string{"ghost:one", "ghost:two", "ghost:three"}
	for _, ghost := range ghosts {
		err := b.Send(bridge.CreateLink(
			bridge.Endpoint{Key: wire.KeyPortAlias, Value: ghost}, playbackFL))
		if err != nil {
			t.Fatalf("Send: %v", err)
		}
	}

	var failures []string
	for len(failures) < len(ghosts) {
		notification, _ := drainUntil(t, b, func(n bridge.Notification) bool {
			return n.Kind == bridge.NotifyCommandFailed
		}, "command failure")
		failures = append(failures, notification.Reason)
	}
	for i, ghost := range ghosts {
		if !strings.Contains(failures[i], ghost) {
			t.Fatalf("failure %d = %q, want mention of %q (order violated?)", i, failures[i], ghost)
		}
	}
}

func TestDestroyRequiresExactFourTuple(t *testing.T) {
	d := startSimulator(t, daemon.Options{ImmediateActive: true})
	b := newBridge(t, d)
	awaitReady(t, b)

	if err := b.Send(bridge.CreateLink(captureFL, playbackFL)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	drainUntil(t, b, isLinkState(wire.StateActive), "link active")
	testutil.Eventually(t, func() bool {
		_, ok := mirrorLink(b, captureFL, playbackFL)
		return ok
	}, 5*time.Second, time.Millisecond, "link in mirror")

	// Destroying a pair that shares no complete four-tuple with the
	// existing link must not touch it.
	if err := b.Send(bridge.DestroyLink(captureFR, playbackFR)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	notification, _ := drainUntil(t, b, func(n bridge.Notification) bool {
		return n.Kind == bridge.NotifyCommandFailed
	}, "benign race for unrelated pair")
	if !strings.Contains(notification.Reason, "already gone") {
		t.Fatalf("reason = %q", notification.Reason)
	}
	if _, ok := mirrorLink(b, captureFL, playbackFL); !ok {
		t.Fatal("unrelated link was destroyed")
	}

	// The exact pair does destroy it.
	if err := b.Send(bridge.DestroyLink(captureFL, playbackFL)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	drainUntil(t, b, isLinkState(wire.StateUnlinked), "link unlinked")
	testutil.Eventually(t, func() bool {
		_, ok := mirrorLink(b, captureFL, playbackFL)
		return !ok
	}, 5*time.Second, time.Millisecond, "link removed from mirror")
}

func TestDoubleDestroySecondIsBenign(t *testing.T) {
	d := startSimulator(t, daemon.Options{ImmediateActive: true})
	b := newBridge(t, d)
	awaitReady(t, b)

	if err := b.Send(bridge.CreateLink(captureFL, playbackFL)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	drainUntil(t, b, isLinkState(wire.StateActive), "link active")
	testutil.Eventually(t, func() bool {
		_, ok := mirrorLink(b, captureFL, playbackFL)
		return ok
	}, 5*time.Second, time.Millisecond, "link in mirror")
	link, _ := mirrorLink(b, captureFL, playbackFL)

	if err := b.Send(bridge.DestroyLink(captureFL, playbackFL)); err != nil {
		t.Fatalf("first destroy: %v", err)
	}
	_, seen := drainUntil(t, b, func(n bridge.Notification) bool {
		return n.Kind == bridge.NotifyObjectRemoved && n.ID == link.ID
	}, "link removal")
	removals := 0
	for _, notification := range seen {
		if notification.Kind == bridge.NotifyObjectRemoved && notification.ID == link.ID {
			removals++
		}
	}

	// The matching link is gone from the mirror now; the second
	// destroy finds nothing and reports the race instead of issuing
	// another remote call.
	if err := b.Send(bridge.DestroyLink(captureFL, playbackFL)); err != nil {
		t.Fatalf("second destroy: %v", err)
	}
	notification, extra := drainUntil(t, b, func(n bridge.Notification) bool {
		return n.Kind == bridge.NotifyCommandFailed
	}, "benign race report")
	if !strings.Contains(notification.Reason, "already gone") {
		t.Fatalf("reason = %q", notification.Reason)
	}
	for _, n := range extra {
		if n.Kind == bridge.NotifyObjectRemoved && n.ID == link.ID {
			removals++
		}
	}
	if removals != 1 {
		t.Fatalf("saw %d removals of link %d, want exactly 1", removals, link.ID)
	}
}

func TestUndecodableStatePoisonsOnlyThatLink(t *testing.T) {
	raw := int32(99)
	d := startSimulator(t, daemon.Options{RawStateOverride: &raw})
	b := newBridge(t, d)
	awaitReady(t, b)

	if err := b.Send(bridge.CreateLink(captureFL, playbackFL)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	notification, _ := drainUntil(t, b, isLinkState(wire.StateError), "poisoned link error")
	if !strings.Contains(notification.Reason, "unknown link state") {
		t.Fatalf("reason = %q", notification.Reason)
	}

	// The bridge itself survives and keeps executing commands.
	if state := b.State(); state != bridge.StateRunning {
		t.Fatalf("state = %v after protocol violation, want running", state)
	}
	if err := b.Send(bridge.DestroyLink(captureFR, playbackFR)); err != nil {
		t.Fatalf("Send after violation: %v", err)
	}
	drainUntil(t, b, func(n bridge.Notification) bool {
		return n.Kind == bridge.NotifyCommandFailed
	}, "bridge still executing commands")
}

func TestQuitStopsBridgeAndRejectsSend(t *testing.T) {
	d := startSimulator(t, daemon.Options{})
	b := newBridge(t, d)
	awaitReady(t, b)

	if err := b.Quit(); err != nil {
		t.Fatalf("Quit: %v", err)
	}
	if state := b.State(); state != bridge.StateStopped {
		t.Fatalf("state = %v after Quit, want stopped", state)
	}
	if err := b.Send(bridge.CreateLink(captureFL, playbackFL)); !errors.Is(err, bridge.ErrBridgeClosed) {
		t.Fatalf("Send after Quit = %v, want ErrBridgeClosed", err)
	}

	// Idempotent.
	if err := b.Quit(); err != nil {
		t.Fatalf("second Quit: %v", err)
	}
}

func TestDaemonShutdownStopsBridge(t *testing.T) {
	d := startSimulator(t, daemon.Options{})
	b := newBridge(t, d)
	awaitReady(t, b)

	d.Stop()
	testutil.RequireClosed(t, b.Done(), 5*time.Second, "bridge shutdown after daemon exit")
	if state := b.State(); state != bridge.StateStopped {
		t.Fatalf("state = %v, want stopped", state)
	}
}
