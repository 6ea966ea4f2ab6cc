package monitor

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agent-pulse/pulse/internal/session"
)

const (
	// maxReadBytes bounds how much a single Read returns. A backlog
	// larger than this is drained across consecutive polls.
	maxReadBytes = 64 * 1024

	// initialTailBytes is how far from the end of a pre-existing capture
	// file the first read starts. Classification only needs the recent
	// tail; replaying megabytes of scrollback would churn the engine
	// through months-old transitions.
	initialTailBytes = 4 * 1024

	spoolSuffix = ".out"
)

// agentPrefixes are the filename prefixes recognized as agent names in
// spool capture files ("claude-abc123.out"). Anything else is treated as
// part of the session id.
var agentPrefixes = []session.AgentType{
	session.AgentClaude,
	session.AgentCodex,
	session.AgentGemini,
	session.AgentAider,
	session.AgentOpenCode,
}

// SpoolSource tails raw terminal capture files dropped into a spool
// directory, e.g. by "script -f" or a tmux pipe-pane the user set up
// themselves. Files are named "<agent>-<session>.out"; the agent prefix
// is optional.
type SpoolSource struct {
	dir            string
	discoverWindow time.Duration
}

// NewSpoolSource returns a source scanning dir for capture files
// modified within discoverWindow.
func NewSpoolSource(dir string, discoverWindow time.Duration) *SpoolSource {
	return &SpoolSource{dir: dir, discoverWindow: discoverWindow}
}

func (s *SpoolSource) Name() string { return "spool" }

func (s *SpoolSource) Discover() ([]SessionHandle, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	cutoff := time.Now().Add(-s.discoverWindow)
	var handles []SessionHandle

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), spoolSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if s.discoverWindow > 0 && info.ModTime().Before(cutoff) {
			continue
		}

		id, agentType := parseSpoolName(entry.Name())
		handles = append(handles, SessionHandle{
			SessionID:  id,
			OutputPath: filepath.Join(s.dir, entry.Name()),
			Source:     "spool",
			AgentType:  agentType,
		})
	}

	return handles, nil
}

func (s *SpoolSource) Read(h SessionHandle, offset int64) (SourceUpdate, int64, error) {
	return tailCaptureFile(h.OutputPath, offset)
}

// parseSpoolName splits a capture filename into session id and agent
// type. "claude-abc.out" → ("abc", claude); "notes-v2.out" has no known
// agent prefix, so the whole base becomes the id.
func parseSpoolName(name string) (string, session.AgentType) {
	base := strings.TrimSuffix(name, spoolSuffix)
	for _, agent := range agentPrefixes {
		prefix := string(agent) + "-"
		if strings.HasPrefix(base, prefix) && len(base) > len(prefix) {
			return base[len(prefix):], agent
		}
	}
	return base, session.AgentNone
}

// tailCaptureFile reads new bytes from path starting at offset. The
// first read of a large pre-existing file starts initialTailBytes from
// the end; a file that shrank below the offset was truncated or rotated
// and is re-read from the start.
func tailCaptureFile(path string, offset int64) (SourceUpdate, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Deleted between discovery and read, or a pipe not yet
			// producing. Stale detection handles the former.
			return SourceUpdate{}, offset, nil
		}
		return SourceUpdate{}, offset, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return SourceUpdate{}, offset, err
	}
	size := info.Size()

	if size < offset {
		offset = 0
	}
	if offset == 0 && size > initialTailBytes {
		offset = size - initialTailBytes
	}
	if size == offset {
		return SourceUpdate{}, offset, nil
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return SourceUpdate{}, offset, err
	}

	n := size - offset
	if n > maxReadBytes {
		n = maxReadBytes
	}
	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return SourceUpdate{}, offset, err
	}

	return SourceUpdate{Chunk: buf[:read]}, offset + int64(read), nil
}
