// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import "fmt"

// LinkState is the lifecycle state of a link as reported by the
// daemon. Init is the initial state; Active and Unlinked are terminal
// success states; StateError is terminal failure (the message travels
// in LinkInfo.Error).
type LinkState int32

const (
	StateError       LinkState = -1
	StateInit        LinkState = 0
	StateNegotiating LinkState = 1
	StateAllocating  LinkState = 2
	StatePaused      LinkState = 3
	StateActive      LinkState = 4
	StateUnlinked    LinkState = 5
)

// String returns the lowercase state name.
func (s LinkState) String() string {
	switch s {
	case StateError:
		return "error"
	case StateInit:
		return "init"
	case StateNegotiating:
		return "negotiating"
	case StateAllocating:
		return "allocating"
	case StatePaused:
		return "paused"
	case StateActive:
		return "active"
	case StateUnlinked:
		return "unlinked"
	}
	return fmt.Sprintf("LinkState(%d)", int32(s))
}

// Terminal reports whether the state ends the link's lifecycle.
func (s LinkState) Terminal() bool {
	return s == StateActive || s == StateUnlinked || s == StateError
}

// UnknownLinkStateError reports a raw state value outside the
// enumerated range. A daemon speaking a newer protocol revision can
// emit states this client does not know; decoding must surface that
// as a typed error rather than defaulting, because a coordinator that
// guesses at lifecycle states corrupts its tracking silently.
type UnknownLinkStateError struct {
	// Raw is the rejected on-wire value.
	Raw int32
}

func (e *UnknownLinkStateError) Error() string {
	return fmt.Sprintf("unknown link state %d", e.Raw)
}

// LinkStateFromRaw decodes an untrusted on-wire state value. Returns
// *UnknownLinkStateError for values outside the enumeration.
func LinkStateFromRaw(raw int32) (LinkState, error) {
	state := LinkState(raw)
	switch state {
	case StateError, StateInit, StateNegotiating, StateAllocating,
		StatePaused, StateActive, StateUnlinked:
		return state, nil
	}
	return 0, &UnknownLinkStateError{Raw: raw}
}
