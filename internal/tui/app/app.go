package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/agent-pulse/pulse/internal/tui/client"
	"github.com/agent-pulse/pulse/internal/tui/theme"
	"github.com/agent-pulse/pulse/internal/tui/views/debug"
	"github.com/agent-pulse/pulse/internal/tui/views/detail"
	"github.com/agent-pulse/pulse/internal/tui/views/help"
	"github.com/agent-pulse/pulse/internal/tui/views/sessions"
	"github.com/agent-pulse/pulse/internal/tui/views/stats"
	"github.com/agent-pulse/pulse/internal/tui/views/statusbar"
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDetail
	OverlayStats
	OverlayHelp
	OverlayDebug
)

// statsLoadedMsg carries the /api/stats response into the update loop.
type statsLoadedMsg struct {
	stats *client.Stats
	err   error
}

// focusResultMsg reports the outcome of a focus request.
type focusResultMsg struct {
	sessionID string
	err       error
}

// statsTickMsg drives the stats overlay spring animation.
type statsTickMsg struct{}

// Model is the root Bubble Tea model.
type Model struct {
	ws     *client.WSClient
	http   *client.HTTPClient
	ctx    context.Context
	cancel context.CancelFunc

	keys   KeyMap
	width  int
	height int

	// Session state, keyed by session ID.
	sessions map[string]*client.SessionState

	overlay Overlay

	// Sub-views.
	statusBar statusbar.Model
	board     sessions.Model
	detail    detail.Model
	statsView stats.Model
	helpView  help.Model
	debugLog  debug.Model

	// Connection state.
	connected bool
}

// New creates the root model.
func New(ws *client.WSClient, http *client.HTTPClient) Model {
	ctx, cancel := context.WithCancel(context.Background())
	return Model{
		ws:        ws,
		http:      http,
		ctx:       ctx,
		cancel:    cancel,
		keys:      DefaultKeyMap(),
		sessions:  make(map[string]*client.SessionState),
		statusBar: statusbar.New(),
		board:     sessions.New(),
		statsView: stats.New(),
		helpView:  help.New(),
		debugLog:  debug.New(),
	}
}

// Init starts the WebSocket connection.
func (m Model) Init() tea.Cmd {
	return m.ws.Listen(m.ctx)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.board.Width = msg.Width
		m.board.Height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case client.WSConnectedMsg:
		m.connected = true
		m.statusBar.Connected = true
		m.debugLog.Add("ws", "connected")
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSDisconnectedMsg:
		m.connected = false
		m.statusBar.Connected = false
		m.debugLog.Add("err", fmt.Sprintf("disconnected: %v", msg.Err))
		return m, m.ws.Listen(m.ctx)

	case client.WSSnapshotMsg:
		m.sessions = make(map[string]*client.SessionState)
		for _, s := range msg.Payload.Sessions {
			m.sessions[s.ID] = s
		}
		m.statusBar.SourceHealth = make(map[string]client.SourceHealthPayload)
		for _, h := range msg.Payload.SourceHealth {
			m.statusBar.SourceHealth[h.Source] = h
		}
		m.debugLog.Add("ws", fmt.Sprintf("snapshot: %d sessions", len(msg.Payload.Sessions)))
		m.refresh()
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSDeltaMsg:
		for _, s := range msg.Payload.Updates {
			m.sessions[s.ID] = s
		}
		for _, id := range msg.Payload.Removed {
			delete(m.sessions, id)
		}
		m.refresh()
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSStatusChangeMsg:
		// Status changes land ahead of the throttled delta, so apply
		// them immediately; the delta carries the rest of the fields.
		if s, ok := m.sessions[msg.Payload.SessionID]; ok {
			s.Status = msg.Payload.Status
		}
		m.debugLog.Add("ws", fmt.Sprintf("%s: %s (was %s)",
			shortID(msg.Payload.SessionID), msg.Payload.Status, msg.Payload.Previous))
		m.refresh()
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSAgentChangeMsg:
		if s, ok := m.sessions[msg.Payload.SessionID]; ok {
			s.AgentType = msg.Payload.AgentType
		}
		m.debugLog.Add("ws", fmt.Sprintf("%s: agent %s",
			shortID(msg.Payload.SessionID), msg.Payload.AgentType))
		m.refresh()
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSSourceHealthMsg:
		m.statusBar.SourceHealth[msg.Payload.Source] = msg.Payload
		if msg.Payload.Healthy {
			m.debugLog.Add("hlth", msg.Payload.Source+" recovered")
		} else {
			m.debugLog.Add("hlth", fmt.Sprintf("%s down: %s", msg.Payload.Source, msg.Payload.Error))
		}
		return m, m.ws.ReadLoop(m.ctx)

	case client.WSErrorMsg:
		m.debugLog.Add("err", string(msg.Raw))
		return m, m.ws.ReadLoop(m.ctx)

	case statsLoadedMsg:
		if msg.err != nil {
			m.statsView.SetError(msg.err)
			m.debugLog.Add("err", "stats: "+msg.err.Error())
			return m, nil
		}
		m.statsView.SetStats(msg.stats)
		m.debugLog.Add("stat", "stats loaded")
		if m.overlay == OverlayStats {
			return m, statsTick()
		}
		return m, nil

	case statsTickMsg:
		if m.overlay != OverlayStats {
			return m, nil
		}
		if m.statsView.Step() {
			return m, statsTick()
		}
		return m, nil

	case focusResultMsg:
		if msg.err != nil {
			m.detail.FocusError = msg.err.Error()
			m.debugLog.Add("err", "focus: "+msg.err.Error())
		} else {
			m.debugLog.Add("nav", "focused "+shortID(msg.sessionID))
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.overlay != OverlayNone {
		if key.Matches(msg, m.keys.Escape) {
			m.overlay = OverlayNone
			m.detail.FocusError = ""
			return m, nil
		}

		switch m.overlay {
		case OverlayDebug:
			switch {
			case key.Matches(msg, m.keys.Up):
				m.debugLog.ScrollUp(1)
			case key.Matches(msg, m.keys.Down):
				m.debugLog.ScrollDown(1)
			}
		case OverlayDetail:
			if key.Matches(msg, m.keys.Focus) && m.detail.Session != nil {
				return m, m.focusSession(m.detail.Session.ID)
			}
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Down):
		m.board.MoveDown()
		return m, nil

	case key.Matches(msg, m.keys.Up):
		m.board.MoveUp()
		return m, nil

	case key.Matches(msg, m.keys.Tab):
		m.board.CycleZone()
		return m, nil

	case key.Matches(msg, m.keys.Zone1):
		m.board.JumpToZone(sessions.ZoneAttention)
		return m, nil

	case key.Matches(msg, m.keys.Zone2):
		m.board.JumpToZone(sessions.ZoneWorking)
		return m, nil

	case key.Matches(msg, m.keys.Zone3):
		m.board.JumpToZone(sessions.ZoneIdle)
		return m, nil

	case key.Matches(msg, m.keys.Enter):
		if s := m.board.SelectedSession(); s != nil {
			m.detail = detail.New(s)
			m.overlay = OverlayDetail
		}
		return m, nil

	case key.Matches(msg, m.keys.Focus):
		if s := m.board.SelectedSession(); s != nil {
			return m, m.focusSession(s.ID)
		}
		return m, nil

	case key.Matches(msg, m.keys.Stats):
		m.overlay = OverlayStats
		return m, m.loadStats()

	case key.Matches(msg, m.keys.Help):
		m.overlay = OverlayHelp
		return m, nil

	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug
		return m, nil

	case key.Matches(msg, m.keys.Reconnect):
		m.debugLog.Add("nav", "manual reconnect")
		m.ws.Reconnect()
		return m, nil
	}

	return m, nil
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	switch m.overlay {
	case OverlayDetail:
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.detail.View())
	case OverlayStats:
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.statsView.View(m.width, m.height))
	case OverlayHelp:
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.helpView.View(m.width, m.height))
	case OverlayDebug:
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.debugLog.View(m.width, m.height))
	}

	sections := []string{m.statusBar.View()}

	if !m.connected {
		banner := lipgloss.NewStyle().Foreground(theme.ColorDanger).Bold(true).Render("  ! DISCONNECTED") +
			theme.StyleDimmed.Render("  Reconnecting to the daemon...")
		sections = append(sections, banner)
	}

	sections = append(sections,
		m.board.View(),
		theme.StyleDimmed.Render("  j/k:navigate  tab:zone  enter:detail  f:focus  s:stats  d:events  ?:help  q:quit"),
	)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// refresh rebuilds the board groupings and the status bar counts after
// any change to the session map.
func (m *Model) refresh() {
	m.board.SetSessions(m.sessions)
	attention, working, idle := m.board.Counts()
	m.statusBar.SetCounts(attention, working, idle)
}

func (m Model) loadStats() tea.Cmd {
	httpc := m.http
	return func() tea.Msg {
		if httpc == nil {
			return statsLoadedMsg{err: fmt.Errorf("no http client")}
		}
		s, err := httpc.GetStats()
		return statsLoadedMsg{stats: s, err: err}
	}
}

func (m Model) focusSession(id string) tea.Cmd {
	httpc := m.http
	return func() tea.Msg {
		if httpc == nil {
			return focusResultMsg{sessionID: id, err: fmt.Errorf("no http client")}
		}
		return focusResultMsg{sessionID: id, err: httpc.FocusSession(id)}
	}
}

func statsTick() tea.Cmd {
	return tea.Tick(time.Second/stats.FPS, func(time.Time) tea.Msg {
		return statsTickMsg{}
	})
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
