// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

// Package tui is the terminal patchbay frontend. It renders the
// bridge's registry mirror and turns key presses into bridge
// commands; all daemon interaction stays behind the Backend.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/patchline-project/patchline/bridge"
	"github.com/patchline-project/patchline/wire"
)

// Backend is the bridge surface the TUI consumes. *bridge.Bridge
// implements it; tests substitute a fake.
type Backend interface {
	Send(command bridge.Command) error
	TryReceive() (bridge.Notification, bool)
	Mirror() *bridge.Mirror
	Quit() error
}

// pane identifies which pane has keyboard focus.
type pane int

const (
	// paneObjects is the registry object table.
	paneObjects pane = iota
	// paneOutputs is the output port picker of the link panel.
	paneOutputs
	// paneInputs is the input port picker of the link panel.
	paneInputs
)

// pollInterval is how often the model drains bridge notifications and
// refreshes its registry snapshot. Rendering is driven by these
// ticks; the bridge itself never pushes into the TUI.
const pollInterval = 100 * time.Millisecond

// eventLogLimit bounds the in-memory event log.
const eventLogLimit = 200

// tickMsg drives the notification poll.
type tickMsg time.Time

// quitDoneMsg reports that the bridge finished draining.
type quitDoneMsg struct{}

// logEntry is one rendered event log line.
type logEntry struct {
	text  string
	isErr bool
}

// Model is the bubbletea model for the patchbay.
type Model struct {
	backend Backend
	keys    KeyMap

	width  int
	height int

	focus        pane
	objectCursor int
	outputCursor int
	inputCursor  int

	// snapshot and the port slices are refreshed from the mirror on
	// every tick; between ticks the model renders stale data, which
	// is fine at the poll cadence.
	snapshot []wire.Global
	outputs  []wire.Global
	inputs   []wire.Global

	events   []logEntry
	ready    bool
	status   string
	quitting bool
}

// New builds a model over the given backend.
func New(backend Backend) Model {
	return Model{
		backend: backend,
		keys:    DefaultKeyMap,
		status:  "connecting",
	}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		if m.quitting {
			return m, nil
		}
		m.drainNotifications()
		m.refresh()
		return m, tick()

	case quitDoneMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.quitting {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		m.status = "draining"
		backend := m.backend
		// The bridge drains on its own goroutine; blocking the tea
		// update loop here would freeze the final repaint.
		return m, func() tea.Msg {
			_ = backend.Quit()
			return quitDoneMsg{}
		}

	case key.Matches(msg, m.keys.FocusNext):
		m.focus = (m.focus + 1) % 3

	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)

	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)

	case key.Matches(msg, m.keys.Create):
		if m.focus != paneObjects {
			m.sendLinkCommand(bridge.CreateLink)
		}

	case key.Matches(msg, m.keys.Destroy):
		if m.focus != paneObjects {
			m.sendLinkCommand(bridge.DestroyLink)
		}
	}
	return m, nil
}

func (m *Model) moveCursor(delta int) {
	switch m.focus {
	case paneObjects:
		m.objectCursor = clamp(m.objectCursor+delta, len(m.snapshot))
	case paneOutputs:
		m.outputCursor = clamp(m.outputCursor+delta, len(m.outputs))
	case paneInputs:
		m.inputCursor = clamp(m.inputCursor+delta, len(m.inputs))
	}
}

func clamp(value, length int) int {
	if length == 0 {
		return 0
	}
	if value < 0 {
		return 0
	}
	if value >= length {
		return length - 1
	}
	return value
}

// sendLinkCommand builds a create or destroy command from the two
// port pickers and enqueues it.
func (m *Model) sendLinkCommand(build func(from, to bridge.Endpoint) bridge.Command) {
	from, ok := portEndpoint(m.outputs, m.outputCursor)
	if !ok {
		m.status = "no output port selected"
		return
	}
	to, ok := portEndpoint(m.inputs, m.inputCursor)
	if !ok {
		m.status = "no input port selected"
		return
	}
	command := build(from, to)
	if err := m.backend.Send(command); err != nil {
		m.status = fmt.Sprintf("send failed: %v", err)
		return
	}
	m.status = fmt.Sprintf("%s %s -> %s", command.Kind, from.Value, to.Value)
}

// portEndpoint derives the symbolic descriptor for a picked port,
// preferring the alias over the bare name.
func portEndpoint(ports []wire.Global, cursor int) (bridge.Endpoint, bool) {
	if cursor < 0 || cursor >= len(ports) {
		return bridge.Endpoint{}, false
	}
	port := ports[cursor]
	if alias := port.Property(wire.KeyPortAlias); alias != "" {
		return bridge.Endpoint{Key: wire.KeyPortAlias, Value: alias}, true
	}
	if name := port.Property(wire.KeyPortName); name != "" {
		return bridge.Endpoint{Key: wire.KeyPortName, Value: name}, true
	}
	return bridge.Endpoint{}, false
}

// drainNotifications empties the bridge's notification queue into the
// event log.
func (m *Model) drainNotifications() {
	for {
		notification, ok := m.backend.TryReceive()
		if !ok {
			return
		}
		m.applyNotification(notification)
	}
}

func (m *Model) applyNotification(notification bridge.Notification) {
	switch notification.Kind {
	case bridge.NotifyCoreReady:
		m.ready = true
		m.status = "ready"
		m.logEvent("daemon ready", false)

	case bridge.NotifyObjectAdded:
		m.logEvent(m.describeObject("added", notification.ID), false)

	case bridge.NotifyObjectRemoved:
		m.logEvent(fmt.Sprintf("removed object %d", notification.ID), false)

	case bridge.NotifyLinkChanged:
		text := fmt.Sprintf("link %d %s", notification.ID, notification.State)
		if notification.Reason != "" {
			text += ": " + notification.Reason
		}
		m.logEvent(text, notification.State == wire.StateError)

	case bridge.NotifyCommandFailed:
		m.logEvent("command failed: "+notification.Reason, true)
	}
}

// describeObject renders an added object with its kind and display
// name, when the mirror still has it.
func (m *Model) describeObject(verb string, id uint32) string {
	global, ok := m.backend.Mirror().Get(id)
	if !ok {
		return fmt.Sprintf("%s object %d", verb, id)
	}
	if _, name, ok := wire.DisplayName(global); ok {
		return fmt.Sprintf("%s %s %d (%s)", verb, global.Kind, id, name)
	}
	return fmt.Sprintf("%s %s %d", verb, global.Kind, id)
}

func (m *Model) logEvent(text string, isErr bool) {
	m.events = append(m.events, logEntry{text: text, isErr: isErr})
	if len(m.events) > eventLogLimit {
		m.events = m.events[len(m.events)-eventLogLimit:]
	}
}

// refresh re-reads the mirror snapshot and rebuilds the port pickers.
func (m *Model) refresh() {
	m.snapshot = m.backend.Mirror().Snapshot()
	m.outputs = m.outputs[:0]
	m.inputs = m.inputs[:0]
	for _, global := range m.snapshot {
		if global.Kind != wire.KindPort {
			continue
		}
		switch global.Property(wire.KeyPortDirection) {
		case "out":
			m.outputs = append(m.outputs, global)
		case "in":
			m.inputs = append(m.inputs, global)
		}
	}
	m.objectCursor = clamp(m.objectCursor, len(m.snapshot))
	m.outputCursor = clamp(m.outputCursor, len(m.outputs))
	m.inputCursor = clamp(m.inputCursor, len(m.inputs))
}
