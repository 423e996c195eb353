// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings for the patchbay TUI.
type KeyMap struct {
	// Navigation within the focused pane.
	Up   key.Binding
	Down key.Binding

	// FocusNext cycles keyboard focus between the panes.
	FocusNext key.Binding

	// Link actions, valid while the link pane has focus.
	Create  key.Binding
	Destroy key.Binding

	Quit key.Binding
}

// DefaultKeyMap is the built-in binding set: vim-style movement next
// to the arrow keys.
var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	FocusNext: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "switch pane"),
	),
	Create: key.NewBinding(
		key.WithKeys("c", "enter"),
		key.WithHelp("c", "create link"),
	),
	Destroy: key.NewBinding(
		key.WithKeys("d", "backspace"),
		key.WithHelp("d", "destroy link"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}
