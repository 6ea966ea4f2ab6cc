// Package statusbar renders the top bar of the agent-pulse TUI:
// connection state, zone counts, and source health.
package statusbar

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agent-pulse/pulse/internal/tui/client"
	"github.com/agent-pulse/pulse/internal/tui/theme"
	"github.com/charmbracelet/lipgloss"
)

// Model holds the status bar state.
type Model struct {
	Connected    bool
	Attention    int
	Working      int
	Idle         int
	SourceHealth map[string]client.SourceHealthPayload
	Width        int
}

// New creates a status bar model.
func New() Model {
	return Model{
		SourceHealth: make(map[string]client.SourceHealthPayload),
	}
}

// SetCounts updates the zone counts.
func (m *Model) SetCounts(attention, working, idle int) {
	m.Attention = attention
	m.Working = working
	m.Idle = idle
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var connStr string
	if m.Connected {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Connected")
	} else {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ Connecting...")
	}

	attnStr := fmt.Sprintf("%d waiting", m.Attention)
	if m.Attention > 0 {
		attnStr = theme.StyleAttention.Render(attnStr)
	}
	counts := fmt.Sprintf("%s  %d working  %d idle", attnStr, m.Working, m.Idle)

	// Map iteration order is random; sort so the bar doesn't shuffle
	// on every render.
	names := make([]string, 0, len(m.SourceHealth))
	for name := range m.SourceHealth {
		names = append(names, name)
	}
	sort.Strings(names)

	var healthParts []string
	for _, name := range names {
		h := m.SourceHealth[name]
		if h.Healthy {
			healthParts = append(healthParts, lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render(
				fmt.Sprintf("%s: ok", h.Source)))
		} else {
			healthParts = append(healthParts, lipgloss.NewStyle().Foreground(theme.ColorDanger).Render(
				fmt.Sprintf("%s: down (%d fails)", h.Source, h.ConsecutiveFails)))
		}
	}
	healthStr := strings.Join(healthParts, "  ")

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := connStr + sep + counts
	if healthStr != "" {
		content += sep + healthStr
	}

	bar := lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)

	return bar
}
