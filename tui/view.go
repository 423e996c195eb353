// Copyright 2026 The Patchline Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/patchline-project/patchline/wire"
)

func (m Model) View() string {
	if m.width == 0 {
		return "loading..."
	}

	title := titleStyle.Render("patchline")

	// Layout: object table left, link panel (two pickers) right, the
	// event log across the bottom, status bar last.
	chromeHeight := 5
	bodyHeight := m.height - chromeHeight
	logHeight := bodyHeight / 3
	if logHeight < 3 {
		logHeight = 3
	}
	tableHeight := bodyHeight - logHeight
	if tableHeight < 3 {
		tableHeight = 3
	}
	leftWidth := m.width / 2
	rightWidth := m.width - leftWidth - 4

	objects := m.renderObjects(leftWidth-4, tableHeight)
	links := m.renderLinkPanel(rightWidth, tableHeight)
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		m.framed(paneObjects, objects, leftWidth-4, tableHeight),
		links)

	log := m.framed(pane(-1), m.renderLog(logHeight), m.width-4, logHeight)
	status := statusBarStyle.Width(m.width).Render(m.statusLine())

	return lipgloss.JoinVertical(lipgloss.Left, title, body, log, status)
}

// framed wraps pane content in a border, highlighted when the pane
// has focus.
func (m Model) framed(p pane, content string, width, height int) string {
	style := paneStyle
	if p == m.focus {
		style = focusedPaneStyle
	}
	return style.Width(width).Height(height).Render(content)
}

func (m Model) renderObjects(width, height int) string {
	var b strings.Builder
	b.WriteString(paneHeaderStyle.Render("objects"))
	b.WriteByte('\n')

	rows := height - 1
	start := 0
	if m.objectCursor >= rows {
		start = m.objectCursor - rows + 1
	}
	for i := start; i < len(m.snapshot) && i < start+rows; i++ {
		global := m.snapshot[i]
		name := ""
		if _, value, ok := wire.DisplayName(global); ok {
			name = value
		}
		line := truncate(fmt.Sprintf("%4d  %-8s %s", global.ID, global.Kind, name), width)
		if i == m.objectCursor && m.focus == paneObjects {
			line = selectedRowStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderLinkPanel draws the two port pickers stacked vertically.
func (m Model) renderLinkPanel(width, height int) string {
	half := height / 2
	outputs := m.renderPicker("outputs", m.outputs, m.outputCursor, m.focus == paneOutputs, width-4, half)
	inputs := m.renderPicker("inputs", m.inputs, m.inputCursor, m.focus == paneInputs, width-4, height-half)
	return lipgloss.JoinVertical(lipgloss.Left,
		m.framed(paneOutputs, outputs, width-4, half-2),
		m.framed(paneInputs, inputs, width-4, height-half-2))
}

func (m Model) renderPicker(header string, ports []wire.Global, cursor int, focused bool, width, height int) string {
	var b strings.Builder
	b.WriteString(paneHeaderStyle.Render(header))
	b.WriteByte('\n')
	if len(ports) == 0 {
		b.WriteString(dimStyle.Render("(no ports)"))
		return b.String()
	}

	rows := height - 1
	if rows < 1 {
		rows = 1
	}
	start := 0
	if cursor >= rows {
		start = cursor - rows + 1
	}
	for i := start; i < len(ports) && i < start+rows; i++ {
		label := ports[i].Property(wire.KeyPortAlias)
		if label == "" {
			label = ports[i].Property(wire.KeyPortName)
		}
		line := truncate(label, width)
		if i == cursor && focused {
			line = selectedRowStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderLog(height int) string {
	var b strings.Builder
	b.WriteString(paneHeaderStyle.Render("events"))
	b.WriteByte('\n')

	rows := height - 1
	start := 0
	if len(m.events) > rows {
		start = len(m.events) - rows
	}
	for _, entry := range m.events[start:] {
		line := truncate(entry.text, m.width-6)
		if entry.isErr {
			line = errorStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) statusLine() string {
	state := m.status
	if m.ready && !m.quitting {
		state = activeStyle.Render(state)
	}
	help := dimStyle.Render("tab: pane  c: link  d: unlink  q: quit")
	return state + "  " + help
}

func truncate(s string, width int) string {
	if width <= 0 || len(s) <= width {
		return s
	}
	if width <= 1 {
		return s[:width]
	}
	return s[:width-1] + "…"
}
