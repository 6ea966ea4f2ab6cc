package monitor

import (
	"time"

	"github.com/agent-pulse/pulse/internal/session"
)

// Source is a provider of agent terminal output. Each implementation
// knows how to discover active sessions on the local machine and read
// their captured output incrementally.
//
// Implementations are called from a single goroutine (the monitor poll
// loop) and do not need to be safe for concurrent use.
type Source interface {
	// Name returns a short lowercase identifier for this source,
	// e.g. "spool", "tmux". Used as part of composite session keys and
	// surfaced to clients for display.
	Name() string

	// Discover finds sessions that currently have output capture on the
	// local machine. The returned handles uniquely identify each session
	// and carry enough context for subsequent Read calls.
	//
	// Discover is called on every poll tick. Implementations should be
	// cheap, typically a directory listing with a recency filter.
	Discover() ([]SessionHandle, error)

	// Read returns raw terminal output captured since the given byte
	// offset, and the offset to use on the next call. When there is no
	// new data it returns a zero-value SourceUpdate, the same offset,
	// and nil error.
	//
	// The monitor calls Read once per tracked session per poll tick.
	Read(handle SessionHandle, offset int64) (SourceUpdate, int64, error)
}

// SessionHandle identifies a single agent session discovered by a Source.
// The monitor keys tracked sessions on these and passes them back into
// Source.Read on subsequent polls.
type SessionHandle struct {
	// SessionID is unique within the source. For spool files it is
	// derived from the filename; for tmux panes it is the pane target.
	SessionID string

	// OutputPath is the absolute path of the capture file Read tails.
	OutputPath string

	// WorkingDir is the directory the agent is operating in, if the
	// source can determine it during discovery. May be empty.
	WorkingDir string

	// Source is the lowercase name of the source that produced this
	// handle (matches Source.Name()).
	Source string

	// AgentType is the source's best guess at which agent CLI owns the
	// session (filename prefix, process name). The engine's banner
	// detection overrides it once output identifies the agent.
	AgentType session.AgentType

	// PID is the agent process id, when the source discovered the
	// session through a running process. Zero means unknown.
	PID int

	// TmuxTarget is the "session:window.pane" target of the pane the
	// agent runs in, when known. Enables the focus endpoint.
	TmuxTarget string

	// StartedAt is the session start time if the source can determine
	// it during discovery. Zero value means unknown.
	StartedAt time.Time
}

// SourceUpdate carries the data read from a session capture since the
// last offset, plus any metadata the source learned along the way.
type SourceUpdate struct {
	// Chunk is the raw terminal output read this tick, escape sequences
	// and all. Empty means no new output.
	Chunk []byte

	// WorkingDir may be set when the source discovers the working
	// directory late (e.g. from the owning process). Empty means no new
	// information.
	WorkingDir string

	// TmuxTarget may be set when pane resolution succeeds after the
	// session was first discovered. Empty means no new information.
	TmuxTarget string
}

// HasData reports whether this update carries anything worth merging.
func (u SourceUpdate) HasData() bool {
	return len(u.Chunk) > 0 || u.WorkingDir != "" || u.TmuxTarget != ""
}
