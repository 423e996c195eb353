// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"errors"
	"testing"
)

func TestLinkStateFromRawKnownValues(t *testing.T) {
	// The happy-path creation sequence, in protocol order.
	sequence := []struct {
		raw  int32
		want LinkState
	}{
		{0, StateInit},
		{1, StateNegotiating},
		{2, StateAllocating},
		{4, StateActive},
	}
	for _, step := range sequence {
		state, err := LinkStateFromRaw(step.raw)
		if err != nil {
			t.Fatalf("LinkStateFromRaw(%d): %v", step.raw, err)
		}
		if state != step.want {
			t.Errorf("LinkStateFromRaw(%d) = %v, want %v", step.raw, state, step.want)
		}
	}

	for _, raw := range []int32{-1, 3, 5} {
		if _, err := LinkStateFromRaw(raw); err != nil {
			t.Errorf("LinkStateFromRaw(%d): unexpected error %v", raw, err)
		}
	}
}

func TestLinkStateFromRawRejectsUnknownValues(t *testing.T) {
	for _, raw := range []int32{-2, 6, 42, 1 << 20} {
		_, err := LinkStateFromRaw(raw)
		if err == nil {
			t.Fatalf("LinkStateFromRaw(%d) succeeded; want protocol violation", raw)
		}
		var unknown *UnknownLinkStateError
		if !errors.As(err, &unknown) {
			t.Fatalf("LinkStateFromRaw(%d) error %T, want *UnknownLinkStateError", raw, err)
		}
		if unknown.Raw != raw {
			t.Errorf("error carries raw %d, want %d", unknown.Raw, raw)
		}
	}
}

func TestLinkStateTerminal(t *testing.T) {
	terminal := map[LinkState]bool{
		StateError:       true,
		StateInit:        false,
		StateNegotiating: false,
		StateAllocating:  false,
		StatePaused:      false,
		StateActive:      true,
		StateUnlinked:    true,
	}
	for state, want := range terminal {
		if state.Terminal() != want {
			t.Errorf("%v.Terminal() = %v, want %v", state, state.Terminal(), want)
		}
	}
}

func TestPermissionsString(t *testing.T) {
	cases := []struct {
		mask Permissions
		want string
	}{
		{0, "----"},
		{PermRead, "r---"},
		{PermRead | PermWrite, "rw--"},
		{PermAll, "rwxm"},
		{PermRead | PermModify, "r--m"},
	}
	for _, testCase := range cases {
		if got := testCase.mask.String(); got != testCase.want {
			t.Errorf("Permissions(%d).String() = %q, want %q", testCase.mask, got, testCase.want)
		}
	}
}

func TestDisplayNamePriority(t *testing.T) {
	global := Global{
		ID:   7,
		Kind: KindNode,
		Properties: map[string]string{
			"object.path": "alsa:pcm:0",
			"node.name":   "Built-in Audio",
		},
	}
	key, value, ok := DisplayName(global)
	if !ok {
		t.Fatal("DisplayName found nothing")
	}
	// node.name outranks object.path in the priority list.
	if key != "node.name" || value != "Built-in Audio" {
		t.Errorf("DisplayName = (%q, %q), want node.name first", key, value)
	}

	if _, _, ok := DisplayName(Global{ID: 8, Kind: KindPort}); ok {
		t.Error("DisplayName on property-less global reported a name")
	}
}
