// Package client provides WebSocket and HTTP clients for the agent-pulse
// daemon. Types mirror the daemon wire protocol without importing server
// packages.
package client

import (
	"encoding/json"
	"time"
)

// MessageType identifies the kind of WebSocket message.
type MessageType string

const (
	MsgSnapshot     MessageType = "snapshot"
	MsgDelta        MessageType = "delta"
	MsgStatusChange MessageType = "status_change"
	MsgAgentChange  MessageType = "agent_change"
	MsgSourceHealth MessageType = "source_health"
	MsgError        MessageType = "error"
)

// WSMessage is the envelope for all WebSocket messages.
type WSMessage struct {
	Type    MessageType     `json:"type"`
	Seq     uint64          `json:"seq"`
	Payload json.RawMessage `json:"payload"`
}

// Status is a session's classified activity, as serialized by the daemon.
type Status string

const (
	StatusInactive Status = "inactive"
	StatusWorking  Status = "working"
	StatusIdle     Status = "idle"
	StatusWaiting  Status = "waiting"
)

// AgentType names the agent CLI behind a session. Empty means the daemon
// has not identified it yet.
type AgentType string

const (
	AgentClaude   AgentType = "claude"
	AgentCodex    AgentType = "codex"
	AgentGemini   AgentType = "gemini"
	AgentAider    AgentType = "aider"
	AgentOpenCode AgentType = "opencode"
)

// SessionState mirrors internal/session.SessionState.
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

// --- WebSocket payload types ---

// SnapshotPayload is sent on initial connection and on the snapshot
// interval.
type SnapshotPayload struct {
	Sessions     []*SessionState       `json:"sessions"`
	ActiveCount  int                   `json:"activeCount"`
	SourceHealth []SourceHealthPayload `json:"sourceHealth,omitempty"`
}

// DeltaPayload contains incremental session updates.
type DeltaPayload struct {
	Updates []*SessionState `json:"updates"`
	Removed []string        `json:"removed,omitempty"`
}

// StatusChangePayload is pushed on every transition, ahead of the
// throttled delta.
type StatusChangePayload struct {
	SessionID string `json:"sessionId"`
	Status    Status `json:"status"`
	Previous  Status `json:"previous"`
}

// AgentChangePayload is sent when a session's agent is identified.
type AgentChangePayload struct {
	SessionID string    `json:"sessionId"`
	AgentType AgentType `json:"agentType"`
}

// SourceHealthPayload reports the health of a session source.
type SourceHealthPayload struct {
	Source           string `json:"source"`
	Healthy          bool   `json:"healthy"`
	ConsecutiveFails int    `json:"consecutiveFails"`
	Error            string `json:"error,omitempty"`
}

// --- HTTP response types ---

// Stats mirrors the aggregate stats returned by /api/stats.
type Stats struct {
	Version               int            `json:"version"`
	TotalSessions         int            `json:"totalSessions"`
	TotalChunks           int64          `json:"totalChunks"`
	TotalBytes            int64          `json:"totalBytes"`
	Transitions           map[string]int `json:"transitions"`
	SessionsPerAgent      map[string]int `json:"sessionsPerAgent"`
	SessionsPerSource     map[string]int `json:"sessionsPerSource"`
	DistinctAgentsUsed    int            `json:"distinctAgentsUsed"`
	MaxConcurrentActive   int            `json:"maxConcurrentActive"`
	MaxSessionDurationSec float64        `json:"maxSessionDurationSec"`
	MaxWaitsInSession     int            `json:"maxWaitsInSession"`
	LastUpdated           time.Time      `json:"lastUpdated"`
}

// SourcesConfig is the enabled-sources section of /api/config.
type SourcesConfig struct {
	Spool bool `json:"spool"`
	Tmux  bool `json:"tmux"`
	Mock  bool `json:"mock"`
}

// ServerConfig is the shape returned by /api/config.
type ServerConfig struct {
	Sources      SourcesConfig `json:"sources"`
	StatsEnabled bool          `json:"statsEnabled"`
	PollInterval string        `json:"pollInterval"`
}
