// Package sessions implements the 3-zone session board. It renders
// sessions grouped by zone (attention/working/idle), with status glyphs
// colored by agent and a selection cursor.
package sessions

import (
	"sort"
	"strings"

	"github.com/agent-pulse/pulse/internal/tui/client"
	"github.com/agent-pulse/pulse/internal/tui/theme"
	"github.com/charmbracelet/lipgloss"
)

// Model holds the board state.
type Model struct {
	// Sessions grouped by zone, rebuilt on each SetSessions call.
	attention []*client.SessionState
	working   []*client.SessionState
	idle      []*client.SessionState

	// Navigation state.
	SelectedIdx int
	ActiveZone  Zone

	// Layout dimensions.
	Width  int
	Height int
}

// New creates a board model.
func New() Model {
	return Model{}
}

// SetSessions updates the session list and rebuilds zone groupings.
func (m *Model) SetSessions(sessions map[string]*client.SessionState) {
	m.attention = nil
	m.working = nil
	m.idle = nil

	for _, s := range sessions {
		switch Classify(s) {
		case ZoneAttention:
			m.attention = append(m.attention, s)
		case ZoneWorking:
			m.working = append(m.working, s)
		case ZoneIdle:
			m.idle = append(m.idle, s)
		}
	}

	// Sort attention by wait start (longest waiting first).
	sort.Slice(m.attention, func(i, j int) bool {
		return m.attention[i].LastStatusAt.Before(m.attention[j].LastStatusAt)
	})
	// Sort working by last output (most recent first).
	sort.Slice(m.working, func(i, j int) bool {
		return m.working[i].LastOutputAt.After(m.working[j].LastOutputAt)
	})
	// Sort idle by last transition (most recent first), inactive last.
	sort.Slice(m.idle, func(i, j int) bool {
		ii := m.idle[i].Status == client.StatusInactive
		ij := m.idle[j].Status == client.StatusInactive
		if ii != ij {
			return ij
		}
		return m.idle[i].LastStatusAt.After(m.idle[j].LastStatusAt)
	})

	m.clampSelection()
}

// Counts returns the number of sessions in each zone.
func (m Model) Counts() (attention, working, idle int) {
	return len(m.attention), len(m.working), len(m.idle)
}

// MoveDown advances the selection cursor within the active zone.
func (m *Model) MoveDown() {
	count := m.activeZoneCount()
	if count > 0 {
		m.SelectedIdx = (m.SelectedIdx + 1) % count
	}
}

// MoveUp moves the selection cursor back within the active zone.
func (m *Model) MoveUp() {
	count := m.activeZoneCount()
	if count > 0 {
		m.SelectedIdx = (m.SelectedIdx - 1 + count) % count
	}
}

// CycleZone advances to the next zone.
func (m *Model) CycleZone() {
	m.ActiveZone = (m.ActiveZone + 1) % 3
	m.SelectedIdx = 0
}

// JumpToZone sets the active zone directly.
func (m *Model) JumpToZone(z Zone) {
	m.ActiveZone = z
	m.SelectedIdx = 0
}

// SelectedSession returns the currently selected session, if any.
func (m Model) SelectedSession() *client.SessionState {
	zone := m.activeZoneSessions()
	if m.SelectedIdx >= 0 && m.SelectedIdx < len(zone) {
		return zone[m.SelectedIdx]
	}
	return nil
}

// View renders the full board.
func (m Model) View() string {
	width := m.Width
	if width < 60 {
		width = 60
	}

	var sections []string

	// Attention zone header, emphasized when anything is waiting.
	attnHeader := "━━━ NEEDS ATTENTION " + strings.Repeat("━", max(4, width-22))
	if len(m.attention) > 0 {
		sections = append(sections, theme.StyleAttention.Render(attnHeader))
	} else {
		sections = append(sections, theme.StyleDimmed.Render(attnHeader))
	}

	if len(m.attention) == 0 {
		sections = append(sections, theme.StyleDimmed.Render("  Nothing waiting on you"))
	}
	for i, s := range m.attention {
		selected := m.ActiveZone == ZoneAttention && i == m.SelectedIdx
		sections = append(sections, renderAttentionLine(i, s, selected))
	}

	// Working zone.
	workHeader := "─── WORKING " + strings.Repeat("─", max(4, width-14))
	sections = append(sections, theme.StyleDimmed.Render(workHeader))

	if len(m.working) == 0 {
		sections = append(sections, theme.StyleDimmed.Render("  No sessions working"))
	}
	for i, s := range m.working {
		selected := m.ActiveZone == ZoneWorking && i == m.SelectedIdx
		sections = append(sections, renderWorkingLine(i, s, selected))
	}

	// Idle zone.
	idleHeader := "─── IDLE " + strings.Repeat("─", max(4, width-11))
	sections = append(sections, theme.StyleDimmed.Render(idleHeader))

	if len(m.idle) == 0 {
		sections = append(sections, theme.StyleDimmed.Render("  No idle sessions"))
	}
	for i, s := range m.idle {
		selected := m.ActiveZone == ZoneIdle && i == m.SelectedIdx
		sections = append(sections, renderIdleLine(i, s, selected))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) activeZoneCount() int {
	return len(m.activeZoneSessions())
}

func (m Model) activeZoneSessions() []*client.SessionState {
	switch m.ActiveZone {
	case ZoneAttention:
		return m.attention
	case ZoneWorking:
		return m.working
	case ZoneIdle:
		return m.idle
	default:
		return nil
	}
}

func (m *Model) clampSelection() {
	count := m.activeZoneCount()
	if count == 0 {
		m.SelectedIdx = 0
	} else if m.SelectedIdx >= count {
		m.SelectedIdx = count - 1
	}
}
