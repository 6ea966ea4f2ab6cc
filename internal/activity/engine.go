// Package activity turns raw terminal output into per-session status.
// The engine owns a registry of session records, feeds each chunk through
// the ansi normalizer and the cue classifier, and resolves ambiguous
// output with a silence debounce. Status and agent-type changes are
// delivered synchronously to subscribers in registration order.
package activity

import (
	"strings"
	"sync"
	"time"

	"github.com/agent-pulse/pulse/internal/ansi"
	"github.com/agent-pulse/pulse/internal/cue"
	"github.com/agent-pulse/pulse/internal/session"
)

// debounceDelay is the silence window after which a still-working session
// resolves to idle or waiting.
const debounceDelay = 500 * time.Millisecond

// bufferCap bounds the per-session trailing buffer, in runes. The buffer
// exists to catch cues split across chunk boundaries, so only the most
// recent tail is kept.
const bufferCap = 100

// state is the engine's private record for one session. Mutated only under
// Engine.mu; never handed out.
type state struct {
	status         session.Status
	lastUpdate     time.Time
	buffer         string
	toolInProgress bool
	agentType      session.AgentType // detected from output; overrides the caller's
	idleTimer      *time.Timer
}

type notice struct {
	isAgent bool
	id      string
	status  session.Status
	agent   session.AgentType
}

// Engine classifies per-session activity. Construct with NewEngine; the
// zero value is not usable.
type Engine struct {
	mu         sync.Mutex
	classifier *cue.Library
	sessions   map[string]*state
	statusSubs []func(sessionID string, status session.Status)
	agentSubs  []func(sessionID string, agentType session.AgentType)
	pending    []notice

	// deliverMu serializes notification delivery so transitions reach
	// subscribers in the order they were made, even when a debounce
	// timer races a ProcessOutput call.
	deliverMu sync.Mutex
}

// NewEngine returns an engine using the given cue library. A nil library
// falls back to the built-in tables.
func NewEngine(classifier *cue.Library) *Engine {
	if classifier == nil {
		classifier = cue.DefaultLibrary()
	}
	return &Engine{
		classifier: classifier,
		sessions:   make(map[string]*state),
	}
}

// OnStatusChange registers a subscriber for status transitions.
// Subscribers run synchronously, in registration order, on the goroutine
// that triggered the change; they must not call back into the engine's
// mutating methods.
func (e *Engine) OnStatusChange(fn func(sessionID string, status session.Status)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.statusSubs = append(e.statusSubs, fn)
}

// OnAgentTypeChange registers a subscriber for agent identification
// changes. Same delivery rules as OnStatusChange.
func (e *Engine) OnAgentTypeChange(fn func(sessionID string, agentType session.AgentType)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.agentSubs = append(e.agentSubs, fn)
}

// Status returns the session's current status, Inactive for unknown ids.
func (e *Engine) Status(sessionID string) session.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok := e.sessions[sessionID]; ok {
		return st.status
	}
	return session.Inactive
}

// AgentType returns the agent type detected from the session's output,
// AgentNone when nothing has been detected or the session is unknown.
func (e *Engine) AgentType(sessionID string) session.AgentType {
	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok := e.sessions[sessionID]; ok {
		return st.agentType
	}
	return session.AgentNone
}

// Clear cancels any pending debounce timer and removes the session. The
// id becomes unknown again: Status reports Inactive and no further
// notifications are delivered for it.
func (e *Engine) Clear(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok := e.sessions[sessionID]; ok {
		e.cancelTimer(st)
		delete(e.sessions, sessionID)
	}
}

// ProcessOutput classifies one chunk of raw terminal output for a session,
// creating the session record on first sight. agentType is the caller's
// idea of which agent runs in the session; an agent identified from the
// output itself takes precedence. Notifications for any resulting
// transitions are delivered before ProcessOutput returns.
func (e *Engine) ProcessOutput(sessionID string, agentType session.AgentType, chunk string) {
	e.mu.Lock()
	st, ok := e.sessions[sessionID]
	if !ok {
		st = &state{}
		e.sessions[sessionID] = st
	}
	now := time.Now()
	st.lastUpdate = now

	// Agent banners are sniffed on the raw chunk: styling rarely splits
	// the short tokens the banner cues key on.
	if detected := e.classifier.DetectAgentType(chunk); detected.Known() && detected != st.agentType {
		st.agentType = detected
		e.pending = append(e.pending, notice{isAgent: true, id: sessionID, agent: detected})
	}
	effective := agentType
	if st.agentType.Known() {
		effective = st.agentType
	}

	// A full-screen redraw invalidates everything the terminal showed
	// before it, including what we buffered.
	if idx := ansi.LastRedraw(chunk); idx >= 0 {
		st.buffer = ""
		chunk = chunk[idx:]
	}

	clean := ansi.Strip(chunk)

	if e.classifier.ToolCue(clean) {
		st.toolInProgress = true
	}

	// Chunk-local pass: a cue contained in this chunk alone decides
	// immediately and skips the buffered pass.
	switch e.classifier.Detect(effective, clean) {
	case session.Waiting:
		e.cancelTimer(st)
		st.buffer = tailString(clean)
		if st.status != session.Waiting {
			st.status = session.Waiting
			st.toolInProgress = false
			e.pending = append(e.pending, notice{id: sessionID, status: session.Waiting})
		}
		e.unlockAndNotify()
		return

	case session.Idle:
		e.cancelTimer(st)
		st.buffer = tailString(clean)
		if st.status != session.Idle {
			st.status = session.Idle
			st.buffer = ""
			st.toolInProgress = false
			e.pending = append(e.pending, notice{id: sessionID, status: session.Idle})
		}
		e.unlockAndNotify()
		return

	case session.Working:
		// No cue table produces working from a single chunk today; the
		// branch mirrors the others so one could.
		e.cancelTimer(st)
		st.buffer = tailString(clean)
		if st.status != session.Working {
			st.status = session.Working
			e.pending = append(e.pending, notice{id: sessionID, status: session.Working})
		}
		e.scheduleTimer(sessionID, st)
		e.unlockAndNotify()
		return
	}

	// Buffered pass: accumulate and look for cues split across chunks.
	// This pass keys on the caller-supplied agent type, not the detected
	// one; see the engine tests for the observable consequence.
	st.buffer = tailString(st.buffer + clean)
	e.cancelTimer(st)
	switch e.classifier.DetectFromBuffer(agentType, strings.Split(st.buffer, "\n")) {
	case session.Waiting:
		if st.status != session.Waiting {
			st.status = session.Waiting
			st.toolInProgress = false
			e.pending = append(e.pending, notice{id: sessionID, status: session.Waiting})
		}

	case session.Idle:
		st.buffer = ""
		st.toolInProgress = false
		if st.status != session.Idle {
			st.status = session.Idle
			e.pending = append(e.pending, notice{id: sessionID, status: session.Idle})
		}

	default:
		// Unrecognized output means the agent is doing something.
		if st.status != session.Working {
			st.status = session.Working
			e.pending = append(e.pending, notice{id: sessionID, status: session.Working})
		}
		e.scheduleTimer(sessionID, st)
	}
	e.unlockAndNotify()
}

// scheduleTimer arms the debounce for a session, superseding any previous
// timer. Caller holds e.mu.
func (e *Engine) scheduleTimer(sessionID string, st *state) {
	e.cancelTimer(st)
	var t *time.Timer
	t = time.AfterFunc(debounceDelay, func() {
		e.debounceFire(sessionID, t)
	})
	st.idleTimer = t
}

// cancelTimer stops a pending debounce. A timer whose callback already
// started will see itself superseded and bail. Caller holds e.mu.
func (e *Engine) cancelTimer(st *state) {
	if st.idleTimer != nil {
		st.idleTimer.Stop()
		st.idleTimer = nil
	}
}

// debounceFire resolves a session that stayed silent through the debounce
// window. A session still working was either blocked on a permission
// question after invoking a tool, or simply finished talking.
func (e *Engine) debounceFire(sessionID string, t *time.Timer) {
	e.mu.Lock()
	st, ok := e.sessions[sessionID]
	if !ok || st.idleTimer != t {
		// Session cleared or timer superseded after this fire was
		// already in flight.
		e.mu.Unlock()
		return
	}
	st.idleTimer = nil
	if st.status == session.Working {
		st.lastUpdate = time.Now()
		if st.toolInProgress {
			st.status = session.Waiting
			st.toolInProgress = false
			e.pending = append(e.pending, notice{id: sessionID, status: session.Waiting})
		} else {
			st.status = session.Idle
			st.buffer = ""
			e.pending = append(e.pending, notice{id: sessionID, status: session.Idle})
		}
	}
	e.unlockAndNotify()
}

// unlockAndNotify releases the state lock, then drains queued
// notifications under deliverMu. Called exactly once at the end of every
// mutating path, with e.mu held.
func (e *Engine) unlockAndNotify() {
	e.mu.Unlock()
	e.deliverMu.Lock()
	defer e.deliverMu.Unlock()
	for {
		e.mu.Lock()
		if len(e.pending) == 0 {
			e.mu.Unlock()
			return
		}
		n := e.pending[0]
		e.pending = e.pending[1:]
		statusSubs := e.statusSubs
		agentSubs := e.agentSubs
		e.mu.Unlock()

		if n.isAgent {
			for _, fn := range agentSubs {
				fn(n.id, n.agent)
			}
		} else {
			for _, fn := range statusSubs {
				fn(n.id, n.status)
			}
		}
	}
}

// tailString keeps the last bufferCap runes of s.
func tailString(s string) string {
	if len(s) <= bufferCap {
		return s
	}
	r := []rune(s)
	if len(r) <= bufferCap {
		return s
	}
	return string(r[len(r)-bufferCap:])
}
