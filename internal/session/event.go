package session

// EventType classifies session lifecycle events.
type EventType int

const (
	EventNew     EventType = iota // session first seen
	EventUpdate                   // status or metadata changed
	EventRemoved                  // session cleared from the store
)

// Event carries a session state snapshot to observers such as the stats
// tracker. The snapshot is safe to retain.
type Event struct {
	Type        EventType
	State       *SessionState
	PrevStatus  Status // status before this event, Inactive for EventNew
	ActiveCount int    // working+waiting sessions at event time
}
