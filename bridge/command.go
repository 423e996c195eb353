// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"fmt"

	"github.com/patchline-project/patchline/wire"
)

// CommandKind discriminates Command values.
type CommandKind int

const (
	// CommandShutdown asks the bridge to drain and stop.
	CommandShutdown CommandKind = iota

	// CommandCreateLink connects two symbolic endpoints.
	CommandCreateLink

	// CommandDestroyLink disconnects two symbolic endpoints.
	CommandDestroyLink
)

func (k CommandKind) String() string {
	switch k {
	case CommandShutdown:
		return "shutdown"
	case CommandCreateLink:
		return "create-link"
	case CommandDestroyLink:
		return "destroy-link"
	default:
		return fmt.Sprintf("command(%d)", int(k))
	}
}

// Command is a frontend request to the bridge. From and To identify
// the output and input endpoint for the link kinds; Shutdown carries
// neither.
type Command struct {
	Kind CommandKind
	From Endpoint
	To   Endpoint
}

// Shutdown builds the drain-and-stop command.
func Shutdown() Command {
	return Command{Kind: CommandShutdown}
}

// CreateLink builds a command connecting the port matching from to
// the port matching to.
func CreateLink(from, to Endpoint) Command {
	return Command{Kind: CommandCreateLink, From: from, To: to}
}

// DestroyLink builds a command disconnecting the ports matching from
// and to.
func DestroyLink(from, to Endpoint) Command {
	return Command{Kind: CommandDestroyLink, From: from, To: to}
}

// NotificationKind discriminates Notification values.
type NotificationKind int

const (
	// NotifyCoreReady fires once, when the daemon's greeting arrives
	// and the bridge enters Running.
	NotifyCoreReady NotificationKind = iota

	// NotifyObjectAdded reports a registry advertisement; the object
	// is readable from the Mirror by ID.
	NotifyObjectAdded

	// NotifyObjectRemoved reports a registry withdrawal.
	NotifyObjectRemoved

	// NotifyLinkChanged reports a lifecycle transition of a link the
	// bridge created.
	NotifyLinkChanged

	// NotifyCommandFailed reports a command the bridge had to discard:
	// a stale endpoint, a factory not yet advertised, or a destroy
	// whose target was already gone.
	NotifyCommandFailed
)

func (k NotificationKind) String() string {
	switch k {
	case NotifyCoreReady:
		return "core-ready"
	case NotifyObjectAdded:
		return "object-added"
	case NotifyObjectRemoved:
		return "object-removed"
	case NotifyLinkChanged:
		return "link-changed"
	case NotifyCommandFailed:
		return "command-failed"
	default:
		return fmt.Sprintf("notification(%d)", int(k))
	}
}

// Notification is a bridge event for the frontend. ID is set for the
// object and link kinds, State for NotifyLinkChanged, Reason for
// NotifyCommandFailed and for link error messages.
type Notification struct {
	Kind   NotificationKind
	ID     uint32
	State  wire.LinkState
	Reason string
}
