package cue

import (
	"regexp"

	"github.com/agent-pulse/pulse/internal/session"
)

// DefaultLibrary builds the built-in cue tables for the agents this
// project recognizes. Cue strings come from the rendered UIs of the
// respective CLIs; they are heuristics, chosen to be distinctive rather
// than exhaustive.
func DefaultLibrary() *Library {
	l := &Library{
		waiting: make(map[session.AgentType][]Cue),
		idle:    make(map[session.AgentType][]Cue),
	}

	l.waiting[session.AgentClaude] = []Cue{
		{Name: "confirm-menu", Pattern: regexp.MustCompile(`(?m)^\s*(?:❯\s*)?1\.\s+Yes\b`)},
		{Name: "menu-select", Pattern: regexp.MustCompile(`(?m)^\s*❯\s*\d+\.\s`)},
		{Name: "always-allow", Literal: "Always allow"},
	}
	l.idle[session.AgentClaude] = []Cue{
		{Name: "shortcuts-footer", Literal: "? for shortcuts"},
		{Name: "worked-for", Pattern: regexp.MustCompile(`[✻─]\s*Worked for`)},
		{Name: "done", Literal: "Done."},
		{Name: "all-set", Literal: "All set."},
		{Name: "prompt", Pattern: regexp.MustCompile(`(?m)^\s*❯\s*$`)},
	}

	l.waiting[session.AgentCodex] = []Cue{
		{Name: "allow-command", Literal: "Allow command"},
		{Name: "approve-option", Literal: "Yes (y)"},
	}
	l.idle[session.AgentCodex] = []Cue{
		{Name: "composer", Pattern: regexp.MustCompile(`(?m)^\s*›\s*$`)},
	}

	l.waiting[session.AgentGemini] = []Cue{
		{Name: "apply-change", Literal: "Apply this change?"},
		{Name: "allow-execution", Literal: "Allow execution"},
		{Name: "allow-once", Literal: "Yes, allow once"},
	}
	l.idle[session.AgentGemini] = []Cue{
		{Name: "composer", Literal: "Type your message"},
	}

	l.waiting[session.AgentAider] = []Cue{
		{Name: "yes-no", Literal: "(Y)es"},
	}
	l.idle[session.AgentAider] = []Cue{
		{Name: "prompt", Pattern: regexp.MustCompile(`(?m)^[a-z]*>\s*$`)},
	}

	l.idle[session.AgentOpenCode] = []Cue{
		{Name: "ask-anything", Literal: "Ask anything"},
	}

	l.genericWaiting = []Cue{
		{Name: "bracket-confirm", Pattern: regexp.MustCompile(`\[[yY]/[nN]\]`)},
		{Name: "press-enter", Literal: "Press Enter to continue"},
		{Name: "allow-deny", Literal: "Allow", Requires: "Deny"},
	}
	// No generic idle cues: a bare "> " means different things to
	// different programs, so unidentified agents reach idle through the
	// silence debounce instead.

	l.tool = []Cue{
		{Name: "tool-call", Pattern: regexp.MustCompile(`\b(?:Write|Read|Edit|MultiEdit|Bash|Task)\(`)},
		{Name: "progress-verb", Pattern: regexp.MustCompile(`(?m)^\s*(?:Running|Writing|Reading|Editing|Searching|Fetching)(?:…|\.{3}|:)`)},
		{Name: "permission-ask", Literal: "Do you want to"},
	}

	l.banners = []bannerCue{
		{session.AgentClaude, Cue{Name: "claude-banner", Pattern: regexp.MustCompile(`(?i)claude\s+code`)}},
		{session.AgentClaude, Cue{Name: "anthropic", Pattern: regexp.MustCompile(`(?i)anthropic`)}},
		{session.AgentCodex, Cue{Name: "codex-banner", Pattern: regexp.MustCompile(`(?i)openai codex`)}},
		{session.AgentGemini, Cue{Name: "gemini-banner", Pattern: regexp.MustCompile(`(?i)gemini[ -]cli|gemini-\d`)}},
		{session.AgentAider, Cue{Name: "aider-banner", Pattern: regexp.MustCompile(`(?i)aider v\d|aider\.chat`)}},
		{session.AgentOpenCode, Cue{Name: "opencode-banner", Pattern: regexp.MustCompile(`(?i)\bopencode\b`)}},
	}

	return l
}
