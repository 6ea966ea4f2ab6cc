// Package theme provides the Lip Gloss color palette and reusable styles
// for the agent-pulse TUI. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Agent colors.
var (
	ColorClaude   = lipgloss.Color("#a855f7")
	ColorCodex    = lipgloss.Color("#10b981")
	ColorGemini   = lipgloss.Color("#4285f4")
	ColorAider    = lipgloss.Color("#f472b6")
	ColorOpenCode = lipgloss.Color("#06b6d4")
	ColorDefault  = lipgloss.Color("#9ca3af")
)

// Status colors.
var (
	ColorWorking  = lipgloss.Color("#2563eb")
	ColorWaiting  = lipgloss.Color("#d97706")
	ColorIdle     = lipgloss.Color("#4b5563")
	ColorInactive = lipgloss.Color("#374151")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// AgentColor returns the Lip Gloss color for an agent name.
func AgentColor(agent string) lipgloss.Color {
	switch agent {
	case "claude":
		return ColorClaude
	case "codex":
		return ColorCodex
	case "gemini":
		return ColorGemini
	case "aider":
		return ColorAider
	case "opencode":
		return ColorOpenCode
	default:
		return ColorDefault
	}
}

// StatusColor returns the Lip Gloss color for a status string.
func StatusColor(status string) lipgloss.Color {
	switch status {
	case "working":
		return ColorWorking
	case "waiting":
		return ColorWaiting
	case "idle":
		return ColorIdle
	case "inactive":
		return ColorInactive
	default:
		return ColorDefault
	}
}

// AgentBadge returns a colored badge string for an agent name.
func AgentBadge(agent string) string {
	switch agent {
	case "claude":
		return lipgloss.NewStyle().Foreground(ColorClaude).Render("[C]")
	case "codex":
		return lipgloss.NewStyle().Foreground(ColorCodex).Render("[X]")
	case "gemini":
		return lipgloss.NewStyle().Foreground(ColorGemini).Render("[G]")
	case "aider":
		return lipgloss.NewStyle().Foreground(ColorAider).Render("[A]")
	case "opencode":
		return lipgloss.NewStyle().Foreground(ColorOpenCode).Render("[O]")
	default:
		return lipgloss.NewStyle().Foreground(ColorDefault).Render("[?]")
	}
}

// SourceBadge returns a colored badge string for a source name.
func SourceBadge(source string) string {
	switch source {
	case "spool":
		return lipgloss.NewStyle().Foreground(ColorHealthy).Render("[sp]")
	case "tmux":
		return lipgloss.NewStyle().Foreground(ColorGemini).Render("[tm]")
	case "mock":
		return lipgloss.NewStyle().Foreground(ColorDimmed).Render("[mk]")
	default:
		return lipgloss.NewStyle().Foreground(ColorDefault).Render("[??]")
	}
}

// StatusGlyph returns a Unicode glyph representing a session status.
func StatusGlyph(status string) string {
	switch status {
	case "working":
		return "●"
	case "waiting":
		return "◆"
	case "idle":
		return "○"
	case "inactive":
		return "·"
	default:
		return "·"
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
		Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)

	StyleAttention = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorWaiting)
)
