package sessions

import (
	"fmt"
	"strings"
	"time"

	"github.com/agent-pulse/pulse/internal/tui/client"
	"github.com/agent-pulse/pulse/internal/tui/theme"
	"github.com/charmbracelet/lipgloss"
)

const titleWidth = 22

// displayTitle returns a truncated session title for display.
func displayTitle(s *client.SessionState, maxLen int) string {
	title := s.Title
	if title == "" && len(s.ID) >= 8 {
		title = s.ID[:8]
	}
	if title == "" {
		title = s.ID
	}
	if len(title) > maxLen {
		title = title[:maxLen-1] + "…"
	}
	return title
}

// formatBytes renders a byte count in human-readable form.
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

// formatElapsed renders a duration as a compact string (e.g. "42s", "3m").
func formatElapsed(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// formatSince renders elapsed time since t, or "" when t is zero.
func formatSince(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return formatElapsed(time.Since(t))
}

// linePrefix writes the common prefix shared by all session lines:
// selection cursor, number, separator, styled glyph, badges, and padded
// title.
func linePrefix(b *strings.Builder, idx int, s *client.SessionState, selected bool) {
	if selected {
		b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorBright).Bold(true).Render("> "))
	} else {
		b.WriteString("  ")
	}

	b.WriteString(theme.StyleDimmed.Render(fmt.Sprintf("%2d", idx+1)))
	b.WriteString("│ ")

	glyphStyle := lipgloss.NewStyle().Foreground(theme.StatusColor(string(s.Status)))
	b.WriteString(glyphStyle.Render(theme.StatusGlyph(string(s.Status))))
	b.WriteByte(' ')

	b.WriteString(theme.SourceBadge(s.Source))
	b.WriteByte(' ')
	b.WriteString(theme.AgentBadge(string(s.AgentType)))
	b.WriteByte(' ')

	title := displayTitle(s, titleWidth)
	titleStyle := lipgloss.NewStyle().Foreground(theme.AgentColor(string(s.AgentType)))
	b.WriteString(titleStyle.Render(title))
	if len(title) < titleWidth {
		b.WriteString(strings.Repeat(" ", titleWidth-len(title)))
	}
}

// renderAttentionLine renders a session blocked on the user, with how
// long it has been waiting.
func renderAttentionLine(idx int, s *client.SessionState, selected bool) string {
	var b strings.Builder
	linePrefix(&b, idx, s, selected)
	b.WriteString("  ")
	b.WriteString(theme.StyleAttention.Render("waiting " + formatSince(s.LastStatusAt)))
	b.WriteString(theme.StyleDimmed.Render(fmt.Sprintf("  up %s", formatSince(s.StartedAt))))
	return b.String()
}

// renderWorkingLine renders an actively producing session with output
// freshness and volume.
func renderWorkingLine(idx int, s *client.SessionState, selected bool) string {
	var b strings.Builder
	linePrefix(&b, idx, s, selected)
	b.WriteString("  ")
	b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorWorking).Render("out " + formatSince(s.LastOutputAt) + " ago"))
	b.WriteString(theme.StyleDimmed.Render(fmt.Sprintf("  %d chunks  %s  up %s",
		s.ChunkCount, formatBytes(s.BytesSeen), formatSince(s.StartedAt))))
	return b.String()
}

// renderIdleLine renders a resting or inactive session.
func renderIdleLine(idx int, s *client.SessionState, selected bool) string {
	statusStyle := lipgloss.NewStyle().Foreground(theme.StatusColor(string(s.Status)))

	var b strings.Builder
	linePrefix(&b, idx, s, selected)
	b.WriteString("  ")
	b.WriteString(statusStyle.Render(string(s.Status)))
	if since := formatSince(s.LastStatusAt); since != "" {
		b.WriteString(theme.StyleDimmed.Render(" for " + since))
	}
	return b.String()
}
