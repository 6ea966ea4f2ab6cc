package session

import (
	"encoding/json"
	"strings"
	"time"
)

// Status is the classified activity of a monitored agent session.
type Status int

const (
	// Inactive is the default for sessions the engine knows nothing about.
	Inactive Status = iota
	// Working means output is flowing with no terminal cue recognized yet.
	Working
	// Idle means the agent finished and is resting at its input prompt.
	Idle
	// Waiting means the agent is blocked on the user, typically a
	// permission prompt.
	Waiting
)

var statusNames = map[Status]string{
	Inactive: "inactive",
	Working:  "working",
	Idle:     "idle",
	Waiting:  "waiting",
}

var statusFromName = map[string]Status{
	"inactive": Inactive,
	"working":  Working,
	"idle":     Idle,
	"waiting":  Waiting,
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "unknown"
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	if v, ok := statusFromName[name]; ok {
		*s = v
	}
	return nil
}

// AgentType identifies which agent CLI produced a session's output. The
// zero value means the agent has not been identified.
type AgentType string

const (
	AgentNone     AgentType = ""
	AgentClaude   AgentType = "claude"
	AgentCodex    AgentType = "codex"
	AgentGemini   AgentType = "gemini"
	AgentAider    AgentType = "aider"
	AgentOpenCode AgentType = "opencode"
)

// Known reports whether the agent type carries an identification.
func (a AgentType) Known() bool {
	return a != AgentNone
}

func (a AgentType) String() string {
	if a == AgentNone {
		return "none"
	}
	return string(a)
}

// NormalizeAgentType folds caller-supplied agent names onto the canonical
// constants. Unrecognized non-empty names pass through lowercased so custom
// agents can still be tracked under their own cue tables.
func NormalizeAgentType(name string) AgentType {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none", "unknown":
		return AgentNone
	case "claude", "claude-code", "claudecode", "anthropic":
		return AgentClaude
	case "codex", "openai":
		return AgentCodex
	case "gemini", "gemini-cli", "google":
		return AgentGemini
	case "aider":
		return AgentAider
	case "opencode":
		return AgentOpenCode
	default:
		return AgentType(strings.ToLower(strings.TrimSpace(name)))
	}
}

// SessionState is the public snapshot of a monitored session, as served
// over HTTP and broadcast to WebSocket clients. The engine's internal
// per-session record (trailing buffer, debounce timer) is not part of it.
type SessionState struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Source       string    `json:"source"`
	AgentType    AgentType `json:"agentType"`
	Status       Status    `json:"status"`
	WorkingDir   string    `json:"workingDir,omitempty"`
	TmuxTarget   string    `json:"tmuxTarget,omitempty"`
	PID          int       `json:"pid,omitempty"`
	StartedAt    time.Time `json:"startedAt"`
	LastStatusAt time.Time `json:"lastStatusAt"`
	LastOutputAt time.Time `json:"lastOutputAt"`
	ChunkCount   int       `json:"chunkCount"`
	BytesSeen    int64     `json:"bytesSeen"`
}

// Clone returns a copy that can be mutated independently of the original.
func (s *SessionState) Clone() *SessionState {
	c := *s
	return &c
}

// IsActive reports whether the session is doing something or blocked on
// the user, as opposed to resting or gone quiet.
func (s *SessionState) IsActive() bool {
	return s.Status == Working || s.Status == Waiting
}

// NeedsAttention reports whether the session is blocked waiting for the
// user to respond.
func (s *SessionState) NeedsAttention() bool {
	return s.Status == Waiting
}
