// Package mock drives the daemon with scripted sessions for demos and
// frontend work. Scripts are raw terminal output, fed through the real
// classification engine, so everything downstream of the sources
// behaves exactly as with live captures.
package mock

import (
	"context"
	"time"

	"github.com/agent-pulse/pulse/internal/activity"
	"github.com/agent-pulse/pulse/internal/session"
	"github.com/agent-pulse/pulse/internal/ws"
)

// mockSession is one scripted fake session. Each tick emits the next
// script entry; an empty entry is a silent tick, which is how scripts
// hand control to the engine's silence debounce. Scripts wrap around.
type mockSession struct {
	state     *session.SessionState
	agentType session.AgentType // what a source would have guessed; None exercises banner detection
	script    []string
	idx       int
}

type Generator struct {
	store       *session.Store
	broadcaster *ws.Broadcaster
	engine      *activity.Engine
	sessions    []*mockSession
	statsEvents chan<- session.Event
}

// NewGenerator wires a generator to the store, broadcaster and engine.
// It registers the engine callbacks the monitor would normally own, so
// mock mode and monitor mode are mutually exclusive.
func NewGenerator(store *session.Store, broadcaster *ws.Broadcaster, engine *activity.Engine) *Generator {
	g := &Generator{
		store:       store,
		broadcaster: broadcaster,
		engine:      engine,
	}
	engine.OnStatusChange(g.applyStatusChange)
	engine.OnAgentTypeChange(g.applyAgentChange)
	return g
}

// SetStatsEvents configures a channel for session lifecycle events.
// Must be called before Start. Pass nil to disable.
func (g *Generator) SetStatsEvents(ch chan<- session.Event) {
	g.statsEvents = ch
}

func (g *Generator) Start(ctx context.Context) {
	g.seed(time.Now())
	go g.run(ctx)
}

func (g *Generator) seed(now time.Time) {
	g.sessions = []*mockSession{
		{
			state: &session.SessionState{
				ID: "mock-claude-feature", Title: "payments-api",
				Source: "mock", AgentType: session.AgentClaude,
				WorkingDir: "/home/dev/payments-api", TmuxTarget: "dev:0.0",
				StartedAt: now.Add(-18 * time.Minute),
			},
			agentType: session.AgentClaude,
			script: []string{
				"╭──────────────────────────────╮\n│ ✻ Welcome to Claude Code!    │\n╰──────────────────────────────╯\n",
				"> add retry logic to the webhook dispatcher\n",
				"\r⠋ Scheming… (esc to interrupt)",
				"\r⠙ Scheming… (3s · ↓ 120 tokens · esc to interrupt)",
				"⏺ Read(internal/webhook/dispatch.go)\n  ⎿ Read 240 lines\n",
				"\r⠹ Scheming… (8s · ↓ 1.1k tokens · esc to interrupt)",
				"⏺ Edit(internal/webhook/dispatch.go)\n",
				"Do you want to make this edit to dispatch.go?\n❯ 1. Yes\n  2. Yes, allow all edits during this session\n  3. No, and tell Claude what to do differently\n",
				"", "", "",
				"\x1b[2J⏺ Update(internal/webhook/dispatch.go)\n  ⎿ Updated dispatch.go with 18 additions\n",
				"\r⠸ Simmering… (24s · ↑ 2.3k tokens · esc to interrupt)",
				"Running…\n  go test ./internal/webhook/\n",
				"\r⠼ Simmering… (31s · esc to interrupt)",
				"✻ Worked for 34s · ↑ 4.1k tokens\n\n❯ \n  ? for shortcuts\n",
				"", "", "",
			},
		},
		{
			state: &session.SessionState{
				ID: "mock-claude-review", Title: "storefront",
				Source: "mock", AgentType: session.AgentClaude,
				WorkingDir: "/home/dev/storefront", TmuxTarget: "dev:1.0",
				StartedAt: now.Add(-41 * time.Minute),
			},
			agentType: session.AgentClaude,
			script: []string{
				"✻ Welcome to Claude Code!\n\n/help for help\n\ncwd: /home/dev/storefront\n",
				"> review the open diff for race conditions\n",
				"\r⠚ Reviewing diff hunks (esc to interrupt)",
				"⏺ Bash(go vet ./...)\n  ⎿ ok\n",
				"Do you want to ",
				"proceed? (y/n)\n",
				"", "",
				"y\n",
				"\r⠞ Churning… (19s · esc to interrupt)",
				"No races in the dispatcher; one unguarded map write in cache.go\n",
				"? for sh",
				"ortcuts\n",
				"", "",
			},
		},
		{
			state: &session.SessionState{
				ID: "mock-codex-migrate", Title: "warehouse",
				Source: "mock",
				WorkingDir: "/home/dev/warehouse",
				StartedAt:  now.Add(-7 * time.Minute),
			},
			agentType: session.AgentNone, // banner identifies it on the first chunk
			script: []string{
				"OpenAI Codex v0.34.0 · you are in /home/dev/warehouse\n",
				"› migrate the orders table to partitioned storage\n",
				"• Working (esc to interrupt)\n",
				"• Ran sqlc generate\n",
				"Allow command?\n  psql -f migrations/0041_partition.sql\n  Yes (y)  ·  No (n)\n",
				"", "",
				"• Applied migration 0041\n",
				"\n› \n",
				"", "",
			},
		},
		{
			state: &session.SessionState{
				ID: "mock-gemini-analyze", Title: "analytics",
				Source: "mock", AgentType: session.AgentGemini,
				WorkingDir: "/home/dev/analytics",
				StartedAt:  now.Add(-63 * time.Minute),
			},
			agentType: session.AgentGemini,
			script: []string{
				"Gemini CLI · gemini-2.5-pro\n",
				"> chart weekly active users by cohort\n",
				"✦ Scanning analytics/cohorts.sql\n",
				"Apply this change?\n ● Yes, allow once\n ○ Yes, always allow\n ○ No\n",
				"", "",
				"✦ 14 cohorts charted. Retention dips at week 6.\n",
				"Type your message\n",
				"", "", "",
			},
		},
		{
			state: &session.SessionState{
				ID: "mock-aider-refactor", Title: "billing",
				Source: "mock", AgentType: session.AgentAider,
				WorkingDir: "/home/dev/billing",
				StartedAt:  now.Add(-3 * time.Minute),
			},
			agentType: session.AgentAider,
			script: []string{
				"aider v0.86.1\nModel: gpt-4o with diff edit format\n",
				"architect> split the payment client out of views.py\n",
				"Determining which files to edit\n",
				"Applied edit to payments/client.py\n",
				"Add payments/views.py to the chat? (Y)es/(N)o [Yes]: ",
				"", "",
				"Tokens: 12k sent, 3.4k received. Cost: $0.08\n",
				"\n> \n",
				"", "",
			},
		},
		{
			state: &session.SessionState{
				ID: "mock-opencode-docs", Title: "docs-site",
				Source: "mock", AgentType: session.AgentOpenCode,
				WorkingDir: "/home/dev/docs-site",
				StartedAt:  now.Add(-26 * time.Minute),
			},
			agentType: session.AgentOpenCode,
			script: []string{
				"█ opencode v0.3.112\n",
				"> write release notes for 0.4\n",
				"∙ Drafting release notes\n",
				"publish draft to docs/? [y/N] ",
				"", "",
				"Draft saved to docs/releases/0.4.md\n",
				"Ask anything\n",
				"", "", "",
			},
		},
	}

	states := make([]*session.SessionState, 0, len(g.sessions))
	for _, ms := range g.sessions {
		g.store.Update(ms.state)
		g.emitEvent(session.EventNew, ms.state, session.Inactive)
		clone := *ms.state
		states = append(states, &clone)
	}
	g.broadcaster.QueueUpdate(states)
}

func (g *Generator) run(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.step()
		}
	}
}

// step plays one tick of every script: metadata goes to the store and
// socket first, then the chunk goes into the engine, matching the
// commit-then-classify order the monitor uses.
func (g *Generator) step() {
	now := time.Now()

	type feed struct {
		id        string
		agentType session.AgentType
		chunk     string
	}
	var updates []*session.SessionState
	var feeds []feed

	for _, ms := range g.sessions {
		chunk := ms.script[ms.idx]
		ms.idx = (ms.idx + 1) % len(ms.script)
		if chunk == "" {
			// Scripted pause: the silence debounce owns this gap.
			continue
		}

		ms.state.ChunkCount++
		ms.state.BytesSeen += int64(len(chunk))
		ms.state.LastOutputAt = now
		g.store.Update(ms.state)

		clone := *ms.state
		updates = append(updates, &clone)
		feeds = append(feeds, feed{ms.state.ID, ms.agentType, chunk})
	}

	if len(updates) > 0 {
		g.broadcaster.QueueUpdate(updates)
	}
	for _, f := range feeds {
		g.engine.ProcessOutput(f.id, f.agentType, f.chunk)
	}
}

func (g *Generator) applyStatusChange(sessionID string, status session.Status) {
	state, ok := g.store.Get(sessionID)
	if !ok {
		return
	}
	prev := state.Status
	if prev == status {
		return
	}
	state.Status = status
	state.LastStatusAt = time.Now()
	g.store.UpdateAndNotify(state, func() {
		g.broadcaster.PublishStatusChange(sessionID, prev, status)
		g.broadcaster.QueueUpdate([]*session.SessionState{state})
	})
	g.emitEvent(session.EventUpdate, state, prev)
}

func (g *Generator) applyAgentChange(sessionID string, agentType session.AgentType) {
	state, ok := g.store.Get(sessionID)
	if !ok || state.AgentType == agentType {
		return
	}
	state.AgentType = agentType
	g.store.UpdateAndNotify(state, func() {
		g.broadcaster.PublishAgentChange(sessionID, agentType)
		g.broadcaster.QueueUpdate([]*session.SessionState{state})
	})
}

// emitEvent sends a session event to the stats channel if configured.
// Never blocks; mock traffic is not worth stalling a tick over.
func (g *Generator) emitEvent(evType session.EventType, state *session.SessionState, prev session.Status) {
	if g.statsEvents == nil {
		return
	}
	snap := *state
	select {
	case g.statsEvents <- session.Event{
		Type:        evType,
		State:       &snap,
		PrevStatus:  prev,
		ActiveCount: g.store.ActiveCount(),
	}:
	default:
	}
}
