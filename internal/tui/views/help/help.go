// Package help renders the keybinding and legend overlay. The content is
// markdown run through glamour so it picks up the terminal's style.
package help

import (
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/agent-pulse/pulse/internal/tui/theme"
)

const helpMarkdown = `# agent-pulse

Watches your AI coding agents and tells you which one needs you.

## Zones

| Zone | Meaning |
|------|---------|
| NEEDS ATTENTION | The agent is blocked on a prompt. Answer it. |
| WORKING | Output is flowing. Leave it alone. |
| IDLE | The agent finished and is resting at its input prompt. |

## Keys

| Key | Action |
|-----|--------|
| j / k | Move selection within the active zone |
| tab | Cycle active zone |
| 1 / 2 / 3 | Jump to attention / working / idle zone |
| enter | Open session detail |
| f | Focus the session's tmux pane |
| s | Show aggregate stats |
| d | Show event log |
| r | Reconnect and resync from the daemon |
| esc | Close overlay |
| q | Quit |

## Status glyphs

` + "`●`" + ` working · ` + "`◆`" + ` waiting · ` + "`○`" + ` idle · ` + "`·`" + ` inactive
`

// Model holds the help overlay state.
type Model struct {
	rendered string
	width    int
}

// New creates a help model.
func New() Model {
	return Model{}
}

// View renders the help panel, re-rendering the markdown when the width
// changes.
func (m *Model) View(width, height int) string {
	innerW := width - 8
	if innerW < 40 {
		innerW = 40
	}
	if innerW > 76 {
		innerW = 76
	}

	if m.rendered == "" || m.width != innerW {
		m.rendered = renderMarkdown(helpMarkdown, innerW)
		m.width = innerW
	}

	panel := lipgloss.NewStyle().
		Width(innerW + 4).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(m.rendered)

	return panel
}

// renderMarkdown runs the source through glamour, falling back to the
// raw text if the renderer cannot be built.
func renderMarkdown(src string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return src
	}
	out, err := r.Render(src)
	if err != nil {
		return src
	}
	return out
}
