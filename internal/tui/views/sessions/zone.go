package sessions

import "github.com/agent-pulse/pulse/internal/tui/client"

// Zone identifies a board zone.
type Zone int

const (
	ZoneAttention Zone = iota
	ZoneWorking
	ZoneIdle
)

// Classify returns the zone a session belongs in. The daemon already
// debounces working vs idle, so the board trusts the reported status
// instead of second-guessing it with its own freshness window.
func Classify(s *client.SessionState) Zone {
	switch s.Status {
	case client.StatusWaiting:
		return ZoneAttention
	case client.StatusWorking:
		return ZoneWorking
	default:
		return ZoneIdle
	}
}

// ZoneName returns a display label.
func ZoneName(z Zone) string {
	switch z {
	case ZoneAttention:
		return "NEEDS ATTENTION"
	case ZoneWorking:
		return "WORKING"
	case ZoneIdle:
		return "IDLE"
	default:
		return "?"
	}
}
