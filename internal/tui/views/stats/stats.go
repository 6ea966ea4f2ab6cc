// Package stats renders the aggregate stats overlay. Bars grow into
// place with a spring animation driven by frame ticks from the app.
package stats

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"

	"github.com/agent-pulse/pulse/internal/tui/client"
	"github.com/agent-pulse/pulse/internal/tui/theme"
)

// FPS is the animation frame rate; the app schedules ticks at this rate
// while the overlay is open.
const FPS = 30

const (
	barWidth   = 24
	labelWidth = 10
	// settleEpsilon is how close a spring has to be to rest before the
	// animation stops requesting frames.
	settleEpsilon = 0.001
)

// bar is one spring-animated row.
type bar struct {
	label string
	value int
	color lipgloss.Color

	pos float64 // animated 0..1 fraction of final length
	vel float64
}

// Model holds the stats overlay state.
type Model struct {
	Stats *client.Stats
	Err   string

	spring      harmonica.Spring
	transitions []*bar
	agents      []*bar
	maxTrans    int
	maxAgent    int
}

// New creates a stats model.
func New() Model {
	return Model{
		spring: harmonica.NewSpring(harmonica.FPS(FPS), 7.0, 0.6),
	}
}

// SetStats installs a fresh stats payload and restarts the bar animation.
func (m *Model) SetStats(s *client.Stats) {
	m.Stats = s
	m.Err = ""
	m.transitions = nil
	m.agents = nil
	m.maxTrans = 0
	m.maxAgent = 0
	if s == nil {
		return
	}

	// Fixed status order so the chart doesn't reshuffle between fetches.
	for _, status := range []string{"working", "waiting", "idle", "inactive"} {
		count := s.Transitions[status]
		if count == 0 {
			continue
		}
		m.transitions = append(m.transitions, &bar{
			label: status,
			value: count,
			color: theme.StatusColor(status),
		})
		if count > m.maxTrans {
			m.maxTrans = count
		}
	}

	names := make([]string, 0, len(s.SessionsPerAgent))
	for name := range s.SessionsPerAgent {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if s.SessionsPerAgent[names[i]] != s.SessionsPerAgent[names[j]] {
			return s.SessionsPerAgent[names[i]] > s.SessionsPerAgent[names[j]]
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		count := s.SessionsPerAgent[name]
		m.agents = append(m.agents, &bar{
			label: name,
			value: count,
			color: theme.AgentColor(name),
		})
		if count > m.maxAgent {
			m.maxAgent = count
		}
	}
}

// SetError records a fetch failure shown in place of the charts.
func (m *Model) SetError(err error) {
	if err != nil {
		m.Err = err.Error()
	}
}

// Step advances the spring animation one frame and reports whether any
// bar is still moving.
func (m *Model) Step() bool {
	moving := false
	for _, b := range m.allBars() {
		b.pos, b.vel = m.spring.Update(b.pos, b.vel, 1.0)
		if math.Abs(1.0-b.pos) > settleEpsilon || math.Abs(b.vel) > settleEpsilon {
			moving = true
		}
	}
	return moving
}

func (m *Model) allBars() []*bar {
	out := make([]*bar, 0, len(m.transitions)+len(m.agents))
	out = append(out, m.transitions...)
	out = append(out, m.agents...)
	return out
}

// View renders the stats panel.
func (m Model) View(width, height int) string {
	innerW := width - 8
	if innerW < 44 {
		innerW = 44
	}

	title := theme.StyleHeader.Render(" STATS ")
	help := theme.StyleDimmed.Render("[esc] close")

	var body string
	switch {
	case m.Err != "":
		body = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("stats unavailable: " + m.Err)
	case m.Stats == nil:
		body = theme.StyleDimmed.Render("Loading...")
	default:
		body = m.renderCharts()
	}

	content := lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help)
	return lipgloss.NewStyle().
		Width(innerW).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}

func (m Model) renderCharts() string {
	s := m.Stats
	var lines []string

	lines = append(lines, fmt.Sprintf("%s %d sessions   %d chunks   %s",
		theme.StyleDimmed.Render("Totals:"), s.TotalSessions, s.TotalChunks, formatBytes(s.TotalBytes)))
	lines = append(lines, fmt.Sprintf("%s %d concurrent   longest %s   most waits %d",
		theme.StyleDimmed.Render("Peaks: "), s.MaxConcurrentActive,
		formatSeconds(s.MaxSessionDurationSec), s.MaxWaitsInSession))
	lines = append(lines, fmt.Sprintf("%s %d",
		theme.StyleDimmed.Render("Agents:"), s.DistinctAgentsUsed))

	if len(m.transitions) > 0 {
		lines = append(lines, "", theme.StyleHeader.Render("Status transitions"))
		for _, b := range m.transitions {
			lines = append(lines, renderBar(b, m.maxTrans))
		}
	}

	if len(m.agents) > 0 {
		lines = append(lines, "", theme.StyleHeader.Render("Sessions per agent"))
		for _, b := range m.agents {
			lines = append(lines, renderBar(b, m.maxAgent))
		}
	}

	if !s.LastUpdated.IsZero() {
		lines = append(lines, "", theme.StyleDimmed.Render("updated "+s.LastUpdated.Format(time.Kitchen)))
	}

	return strings.Join(lines, "\n")
}

// renderBar draws one animated bar scaled against the chart maximum.
func renderBar(b *bar, maxVal int) string {
	full := 0
	if maxVal > 0 {
		full = int(float64(b.value) / float64(maxVal) * barWidth)
	}
	if full < 1 {
		full = 1
	}

	// Animated length: spring position scales the final bar length.
	n := int(b.pos * float64(full))
	if n < 0 {
		n = 0
	}
	if n > full {
		n = full
	}

	label := b.label
	if len(label) > labelWidth {
		label = label[:labelWidth]
	}

	return fmt.Sprintf("  %-*s %s %d",
		labelWidth, label,
		lipgloss.NewStyle().Foreground(b.color).Render(strings.Repeat("█", n)),
		b.value)
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

func formatSeconds(sec float64) string {
	d := time.Duration(sec * float64(time.Second))
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
