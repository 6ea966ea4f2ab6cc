package monitor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/agent-pulse/pulse/internal/session"
)

func TestParseSpoolName(t *testing.T) {
	tests := []struct {
		name      string
		wantID    string
		wantAgent session.AgentType
	}{
		{"claude-abc123.out", "abc123", session.AgentClaude},
		{"codex-x.out", "x", session.AgentCodex},
		{"gemini-session-1.out", "session-1", session.AgentGemini},
		{"aider-a.out", "a", session.AgentAider},
		{"opencode-b.out", "b", session.AgentOpenCode},
		{"notes-v2.out", "notes-v2", session.AgentNone},
		{"claude.out", "claude", session.AgentNone},
		{"claude-.out", "claude-", session.AgentNone}, // empty id keeps the whole base
	}

	for _, tt := range tests {
		id, agent := parseSpoolName(tt.name)
		if id != tt.wantID || agent != tt.wantAgent {
			t.Errorf("parseSpoolName(%q) = (%q, %q), want (%q, %q)",
				tt.name, id, agent, tt.wantID, tt.wantAgent)
		}
	}
}

func TestSpoolDiscover(t *testing.T) {
	dir := t.TempDir()
	writeCapture(t, filepath.Join(dir, "claude-a.out"), "output a")
	writeCapture(t, filepath.Join(dir, "b.out"), "output b")
	writeCapture(t, filepath.Join(dir, "notes.txt"), "not a capture")
	if err := os.Mkdir(filepath.Join(dir, "tmux"), 0o755); err != nil {
		t.Fatal(err)
	}

	src := NewSpoolSource(dir, time.Hour)
	handles, err := src.Discover()
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if len(handles) != 2 {
		t.Fatalf("Discover() returned %d handles, want 2", len(handles))
	}

	byID := make(map[string]SessionHandle, len(handles))
	for _, h := range handles {
		byID[h.SessionID] = h
	}

	a, ok := byID["a"]
	if !ok {
		t.Fatal("missing handle for claude-a.out")
	}
	if a.AgentType != session.AgentClaude {
		t.Errorf("AgentType = %q, want claude", a.AgentType)
	}
	if a.Source != "spool" {
		t.Errorf("Source = %q, want spool", a.Source)
	}
	if a.OutputPath != filepath.Join(dir, "claude-a.out") {
		t.Errorf("OutputPath = %q", a.OutputPath)
	}

	b, ok := byID["b"]
	if !ok {
		t.Fatal("missing handle for b.out")
	}
	if b.AgentType != session.AgentNone {
		t.Errorf("AgentType = %q, want none for unprefixed file", b.AgentType)
	}
}

func TestSpoolDiscoverRecencyWindow(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "claude-old.out")
	writeCapture(t, oldPath, "ancient output")
	oldTime := time.Now().Add(-time.Hour)
	if err := os.Chtimes(oldPath, oldTime, oldTime); err != nil {
		t.Fatal(err)
	}
	writeCapture(t, filepath.Join(dir, "claude-new.out"), "fresh output")

	src := NewSpoolSource(dir, 10*time.Minute)
	handles, err := src.Discover()
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if len(handles) != 1 || handles[0].SessionID != "new" {
		t.Errorf("handles = %+v, want only the fresh capture", handles)
	}

	// A zero window disables the recency filter.
	src = NewSpoolSource(dir, 0)
	handles, err = src.Discover()
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if len(handles) != 2 {
		t.Errorf("Discover() with zero window returned %d handles, want 2", len(handles))
	}
}

func TestSpoolDiscoverMissingDir(t *testing.T) {
	src := NewSpoolSource(filepath.Join(t.TempDir(), "does-not-exist"), time.Hour)
	handles, err := src.Discover()
	if err != nil {
		t.Fatalf("Discover() on missing dir error: %v", err)
	}
	if handles != nil {
		t.Errorf("Discover() on missing dir = %v, want nil", handles)
	}
}

func TestTailCaptureFileIncremental(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "claude-x.out")
	writeCapture(t, path, "first chunk")

	update, offset, err := tailCaptureFile(path, 0)
	if err != nil {
		t.Fatalf("first read error: %v", err)
	}
	if string(update.Chunk) != "first chunk" {
		t.Errorf("first chunk = %q", update.Chunk)
	}
	if offset != int64(len("first chunk")) {
		t.Errorf("offset = %d, want %d", offset, len("first chunk"))
	}

	// No new data: same offset, empty update.
	update, offset2, err := tailCaptureFile(path, offset)
	if err != nil {
		t.Fatalf("idle read error: %v", err)
	}
	if update.HasData() || offset2 != offset {
		t.Errorf("idle read = (%q, %d), want no data at offset %d", update.Chunk, offset2, offset)
	}

	appendCapture(t, path, " second chunk")

	update, offset3, err := tailCaptureFile(path, offset)
	if err != nil {
		t.Fatalf("second read error: %v", err)
	}
	if string(update.Chunk) != " second chunk" {
		t.Errorf("second chunk = %q", update.Chunk)
	}
	if offset3 != offset+int64(len(" second chunk")) {
		t.Errorf("offset after append = %d", offset3)
	}
}

func TestTailCaptureFileTruncation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "claude-x.out")
	writeCapture(t, path, "a long first generation of output")

	_, offset, err := tailCaptureFile(path, 0)
	if err != nil {
		t.Fatal(err)
	}

	// Rotation: the file is rewritten shorter than the old offset.
	writeCapture(t, path, "short")

	update, newOffset, err := tailCaptureFile(path, offset)
	if err != nil {
		t.Fatalf("read after truncation error: %v", err)
	}
	if string(update.Chunk) != "short" {
		t.Errorf("chunk after truncation = %q, want re-read from start", update.Chunk)
	}
	if newOffset != int64(len("short")) {
		t.Errorf("offset after truncation = %d, want %d", newOffset, len("short"))
	}
}

func TestTailCaptureFileInitialTail(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "claude-x.out")

	// A pre-existing file larger than the initial tail: the first read
	// must skip the old scrollback.
	content := strings.Repeat("x", initialTailBytes+1000) + "recent output"
	writeCapture(t, path, content)

	update, offset, err := tailCaptureFile(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(update.Chunk) != initialTailBytes {
		t.Errorf("first read returned %d bytes, want %d", len(update.Chunk), initialTailBytes)
	}
	if !strings.HasSuffix(string(update.Chunk), "recent output") {
		t.Error("first read should cover the end of the file")
	}
	if offset != int64(len(content)) {
		t.Errorf("offset = %d, want file size %d", offset, len(content))
	}
}

func TestTailCaptureFileBacklogCap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "claude-x.out")
	writeCapture(t, path, "seed")

	_, offset, err := tailCaptureFile(path, 0)
	if err != nil {
		t.Fatal(err)
	}

	// A burst larger than one read drains across consecutive calls.
	backlog := strings.Repeat("y", maxReadBytes+100)
	appendCapture(t, path, backlog)

	update, offset, err := tailCaptureFile(path, offset)
	if err != nil {
		t.Fatal(err)
	}
	if len(update.Chunk) != maxReadBytes {
		t.Errorf("capped read returned %d bytes, want %d", len(update.Chunk), maxReadBytes)
	}

	update, offset, err = tailCaptureFile(path, offset)
	if err != nil {
		t.Fatal(err)
	}
	if len(update.Chunk) != 100 {
		t.Errorf("drain read returned %d bytes, want 100", len(update.Chunk))
	}
	if offset != int64(len("seed")+len(backlog)) {
		t.Errorf("final offset = %d, want %d", offset, len("seed")+len(backlog))
	}
}

func TestTailCaptureFileMissing(t *testing.T) {
	update, offset, err := tailCaptureFile(filepath.Join(t.TempDir(), "nope.out"), 42)
	if err != nil {
		t.Fatalf("missing file should not error, got %v", err)
	}
	if update.HasData() || offset != 42 {
		t.Errorf("missing file read = (%q, %d), want no data at offset 42", update.Chunk, offset)
	}
}
