package ws

import (
	"github.com/agent-pulse/pulse/internal/session"
)

type MessageType string

const (
	MsgSnapshot     MessageType = "snapshot"
	MsgDelta        MessageType = "delta"
	MsgStatusChange MessageType = "status_change"
	MsgAgentChange  MessageType = "agent_change"
	MsgSourceHealth MessageType = "source_health"
	MsgError        MessageType = "error"
)

// WSMessage is the envelope for every frame. Seq increases by one per
// broadcast frame, letting clients notice dropped messages and request
// a fresh snapshot by reconnecting.
type WSMessage struct {
	Type    MessageType `json:"type"`
	Seq     uint64      `json:"seq"`
	Payload interface{} `json:"payload"`
}

type SnapshotPayload struct {
	Sessions     []*session.SessionState `json:"sessions"`
	ActiveCount  int                     `json:"activeCount"`
	SourceHealth []SourceHealthPayload   `json:"sourceHealth,omitempty"`
}

type DeltaPayload struct {
	Updates []*session.SessionState `json:"updates"`
	Removed []string                `json:"removed,omitempty"`
}

// StatusChangePayload is pushed immediately on every transition, ahead
// of the throttled delta that carries the full state.
type StatusChangePayload struct {
	SessionID string         `json:"sessionId"`
	Status    session.Status `json:"status"`
	Previous  session.Status `json:"previous"`
}

type AgentChangePayload struct {
	SessionID string            `json:"sessionId"`
	AgentType session.AgentType `json:"agentType"`
}

type SourceHealthPayload struct {
	Source           string `json:"source"`
	Healthy          bool   `json:"healthy"`
	ConsecutiveFails int    `json:"consecutiveFails"`
	Error            string `json:"error,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
