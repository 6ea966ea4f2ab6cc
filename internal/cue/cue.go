// Package cue recognizes fragments of AI-agent terminal UI. A Library maps
// agent types to waiting and idle cues plus a shared set of tool-invocation
// markers and identification banners. Matching is stateless; callers share
// one Library across sessions.
//
// Cues classify only waiting and idle. Output that matches nothing is
// reported as inactive and it is the engine's business to treat that as
// "still working".
package cue

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/agent-pulse/pulse/internal/session"
)

// Cue is one recognizable fragment of agent output. Literal matches by
// substring; Pattern, when set, takes precedence. Requires names a second
// substring that must also be present, for paired markers like Allow/Deny.
type Cue struct {
	Name     string
	Literal  string
	Pattern  *regexp.Regexp
	Requires string
}

func (c Cue) matches(text string) bool {
	var ok bool
	switch {
	case c.Pattern != nil:
		ok = c.Pattern.MatchString(text)
	case c.Literal != "":
		ok = strings.Contains(text, c.Literal)
	}
	if ok && c.Requires != "" {
		ok = strings.Contains(text, c.Requires)
	}
	return ok
}

type bannerCue struct {
	agent session.AgentType
	cue   Cue
}

// Library holds the cue tables. The generic tables apply to every agent
// type on top of its own; unknown agents match against the generic tables
// alone.
type Library struct {
	waiting        map[session.AgentType][]Cue
	idle           map[session.AgentType][]Cue
	genericWaiting []Cue
	genericIdle    []Cue
	tool           []Cue
	banners        []bannerCue
}

// Detect classifies a cleaned chunk of output for the given agent type.
// Waiting takes priority over idle; inactive means nothing matched.
func (l *Library) Detect(agent session.AgentType, text string) session.Status {
	if text == "" {
		return session.Inactive
	}
	if l.matchAny(l.waitingFor(agent), text) {
		return session.Waiting
	}
	if l.matchAny(l.idleFor(agent), text) {
		return session.Idle
	}
	return session.Inactive
}

// DetectFromBuffer classifies the most recent lines of accumulated output.
// The most recent line with any signal decides; waiting beats idle on the
// same line. When no line matches on its own, adjacent pairs are joined and
// retried, so cues split by a hard terminal wrap still count.
func (l *Library) DetectFromBuffer(agent session.AgentType, lines []string) session.Status {
	waiting := l.waitingFor(agent)
	idle := l.idleFor(agent)
	for i := len(lines) - 1; i >= 0; i-- {
		if l.matchAny(waiting, lines[i]) {
			return session.Waiting
		}
		if l.matchAny(idle, lines[i]) {
			return session.Idle
		}
	}
	for i := len(lines) - 1; i > 0; i-- {
		seg := lines[i-1] + lines[i]
		if l.matchAny(waiting, seg) {
			return session.Waiting
		}
		if l.matchAny(idle, seg) {
			return session.Idle
		}
	}
	return session.Inactive
}

// DetectAgentType sniffs raw, pre-strip output for agent banners. Returns
// AgentNone when nothing identifies the agent. Cheap enough to run on
// every chunk.
func (l *Library) DetectAgentType(text string) session.AgentType {
	if text == "" {
		return session.AgentNone
	}
	for _, b := range l.banners {
		if b.cue.matches(text) {
			return b.agent
		}
	}
	return session.AgentNone
}

// ToolCue reports whether a cleaned chunk contains a tool-invocation
// marker: a file write/read/edit indicator, a shell execution line, or a
// permission-question lead-in.
func (l *Library) ToolCue(text string) bool {
	return l.matchAny(l.tool, text)
}

func (l *Library) matchAny(cues []Cue, text string) bool {
	for _, c := range cues {
		if c.matches(text) {
			return true
		}
	}
	return false
}

func (l *Library) waitingFor(agent session.AgentType) []Cue {
	return joined(l.waiting[agent], l.genericWaiting)
}

func (l *Library) idleFor(agent session.AgentType) []Cue {
	return joined(l.idle[agent], l.genericIdle)
}

func joined(specific, generic []Cue) []Cue {
	if len(specific) == 0 {
		return generic
	}
	out := make([]Cue, 0, len(specific)+len(generic))
	out = append(out, specific...)
	return append(out, generic...)
}

// AddWaiting compiles expr and appends it to the agent's waiting cues.
// Used to wire user-configured cues on top of the built-in tables.
func (l *Library) AddWaiting(agent session.AgentType, name, expr string) error {
	return l.add(l.waiting, agent, name, expr)
}

// AddIdle compiles expr and appends it to the agent's idle cues.
func (l *Library) AddIdle(agent session.AgentType, name, expr string) error {
	return l.add(l.idle, agent, name, expr)
}

func (l *Library) add(table map[session.AgentType][]Cue, agent session.AgentType, name, expr string) error {
	re, err := regexp.Compile(expr)
	if err != nil {
		return fmt.Errorf("cue %q: %w", name, err)
	}
	table[agent] = append(table[agent], Cue{Name: name, Pattern: re})
	return nil
}
