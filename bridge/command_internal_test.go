// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/patchline-project/patchline/wire"
)

// stubBridge builds a bridge with just enough wiring for command
// paths that never reach the daemon connection.
func stubBridge(m *Mirror) *Bridge {
	return &Bridge{
		logger:        slog.New(slog.DiscardHandler),
		mirror:        m,
		notifications: make(chan Notification, 8),
	}
}

func TestCreateLinkWithoutFactoryIsTransient(t *testing.T) {
	// Ports resolve, but no link factory has been advertised yet.
	b := stubBridge(portPairMirror())

	b.createLink(CreateLink(
		Endpoint{wire.KeyPortDirection, "out"},
		Endpoint{wire.KeyPortDirection, "in"}))

	notification, ok := b.TryReceive()
	if !ok {
		t.Fatal("no notification for discarded command")
	}
	if notification.Kind != NotifyCommandFailed {
		t.Fatalf("notification kind = %v, want command-failed", notification.Kind)
	}
	if !strings.Contains(notification.Reason, "factory") {
		t.Fatalf("reason %q does not name the missing factory", notification.Reason)
	}
}

func TestCreateLinkStaleEndpointDiscarded(t *testing.T) {
	b := stubBridge(portPairMirror())

	b.createLink(CreateLink(
		Endpoint{wire.KeyPortAlias, "ghost:out"},
		Endpoint{wire.KeyPortDirection, "in"}))

	notification, ok := b.TryReceive()
	if !ok {
		t.Fatal("no notification for discarded command")
	}
	if notification.Kind != NotifyCommandFailed {
		t.Fatalf("notification kind = %v, want command-failed", notification.Kind)
	}
	if !strings.Contains(notification.Reason, "no port matches") {
		t.Fatalf("reason %q does not describe the stale endpoint", notification.Reason)
	}
}

func TestDestroyLinkBenignRace(t *testing.T) {
	// Both endpoints resolve but no link with that four-tuple exists:
	// it was already removed. Informational, not an error, and no
	// remote call is attempted (the stub has no connection; a remote
	// call would panic).
	b := stubBridge(portPairMirror())

	b.destroyLink(DestroyLink(
		Endpoint{wire.KeyPortDirection, "out"},
		Endpoint{wire.KeyPortDirection, "in"}))

	notification, ok := b.TryReceive()
	if !ok {
		t.Fatal("no notification for benign race")
	}
	if notification.Kind != NotifyCommandFailed {
		t.Fatalf("notification kind = %v, want command-failed", notification.Kind)
	}
	if !strings.Contains(notification.Reason, "already gone") {
		t.Fatalf("reason %q does not describe the race", notification.Reason)
	}
}

func TestCommandKindStrings(t *testing.T) {
	if CommandCreateLink.String() != "create-link" || CommandShutdown.String() != "shutdown" {
		t.Fatal("command kind strings changed")
	}
	if NotifyCoreReady.String() != "core-ready" || NotifyLinkChanged.String() != "link-changed" {
		t.Fatal("notification kind strings changed")
	}
}
