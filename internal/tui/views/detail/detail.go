// Package detail renders the session info flyout overlay.
package detail

import (
	"fmt"
	"strings"
	"time"

	"github.com/agent-pulse/pulse/internal/tui/client"
	"github.com/agent-pulse/pulse/internal/tui/theme"
	"github.com/charmbracelet/lipgloss"
)

const (
	panelWidth = 60
	labelWidth = 13
)

var (
	stylePanel = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.ColorBorder).
			Padding(0, 1)

	styleLabel = lipgloss.NewStyle().
			Foreground(theme.ColorDimmed).
			Width(labelWidth)

	styleValue = lipgloss.NewStyle().
			Foreground(theme.ColorBright)

	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorBright)

	styleFooter = lipgloss.NewStyle().
			Foreground(theme.ColorDimmed)

	styleError = lipgloss.NewStyle().
			Foreground(theme.ColorDanger)
)

// Model holds the state for the detail overlay.
type Model struct {
	Session    *client.SessionState
	FocusError string
}

// New creates a detail model for the given session.
func New(s *client.SessionState) Model {
	return Model{Session: s}
}

// View renders the detail panel. Returns an empty string if no session is set.
func (m Model) View() string {
	if m.Session == nil {
		return ""
	}
	inner := m.renderInner(m.Session)
	return stylePanel.Width(panelWidth).Render(inner)
}

func (m Model) renderInner(s *client.SessionState) string {
	var b strings.Builder

	title := styleTitle.Render("Session: " + DisplayName(s))
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("─", panelWidth-4) + "\n")

	// Identity.
	writeRow(&b, "ID", truncate(s.ID, 40))
	writeRow(&b, "Source", theme.SourceBadge(s.Source)+" "+s.Source)

	agent := string(s.AgentType)
	if agent == "" {
		agent = "unidentified"
	}
	writeRow(&b, "Agent", lipgloss.NewStyle().Foreground(theme.AgentColor(string(s.AgentType))).Render(agent))

	statusColor := theme.StatusColor(string(s.Status))
	writeRow(&b, "Status", lipgloss.NewStyle().Foreground(statusColor).Render(string(s.Status)))

	b.WriteString("\n")

	// Output volume.
	writeRow(&b, "Output", fmt.Sprintf("%d chunks  %s", s.ChunkCount, formatBytes(s.BytesSeen)))

	b.WriteString("\n")

	// Location.
	if s.WorkingDir != "" {
		writeRow(&b, "Working Dir", truncate(s.WorkingDir, 40))
	}
	if s.TmuxTarget != "" {
		writeRow(&b, "Tmux", s.TmuxTarget)
	}
	if s.PID != 0 {
		writeRow(&b, "PID", fmt.Sprintf("%d", s.PID))
	}

	b.WriteString("\n")

	// Timing.
	if !s.StartedAt.IsZero() {
		writeRow(&b, "Started", formatAge(s.StartedAt))
	}
	if !s.LastStatusAt.IsZero() {
		writeRow(&b, "Last Change", formatAge(s.LastStatusAt))
	}
	if !s.LastOutputAt.IsZero() {
		writeRow(&b, "Last Output", formatAge(s.LastOutputAt))
	}

	// Error (focus failure).
	if m.FocusError != "" {
		b.WriteString("\n")
		b.WriteString(styleError.Render("Focus error: "+m.FocusError) + "\n")
	}

	// Footer.
	b.WriteString("\n")
	footer := "[f] focus tmux  [esc] close"
	if s.TmuxTarget == "" {
		footer = "[esc] close  (no tmux target)"
	}
	b.WriteString(styleFooter.Render(footer))

	return b.String()
}

func writeRow(b *strings.Builder, label, value string) {
	b.WriteString(styleLabel.Render(label+":") + styleValue.Render(value) + "\n")
}

// DisplayName returns a human-readable label for a session, preferring
// Title, then a truncated ID.
func DisplayName(s *client.SessionState) string {
	if s.Title != "" {
		return s.Title
	}
	if len(s.ID) >= 8 {
		return s.ID[:8]
	}
	return s.ID
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1fMB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fKB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%dB", n)
	}
}

func formatAge(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds ago", int(d.Minutes()), int(d.Seconds())%60)
	default:
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		return fmt.Sprintf("%dh %dm ago", h, m)
	}
}
