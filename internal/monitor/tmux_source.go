package monitor

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/agent-pulse/pulse/internal/session"
)

// TmuxSource discovers running agent CLI processes, resolves each to
// its tmux pane, and captures the pane's raw output into the spool
// directory with pipe-pane. Reads tail the capture files the same way
// SpoolSource does.
type TmuxSource struct {
	captureDir string
	attached   map[string]string // pane target -> capture file
}

// NewTmuxSource returns a source writing pane captures under
// spoolDir/tmux. The subdirectory keeps SpoolSource from discovering
// the same files a second time.
func NewTmuxSource(spoolDir string) *TmuxSource {
	return &TmuxSource{
		captureDir: filepath.Join(spoolDir, "tmux"),
		attached:   make(map[string]string),
	}
}

func (t *TmuxSource) Name() string { return "tmux" }

func (t *TmuxSource) Discover() ([]SessionHandle, error) {
	resolver := NewTmuxResolver()
	if resolver == nil {
		// tmux not installed or no server running.
		return nil, nil
	}

	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}

	var handles []SessionHandle
	seen := make(map[string]bool)

	for _, p := range procs {
		agentType := classifyProcess(p)
		if !agentType.Known() {
			continue
		}

		cwd, _ := p.Cwd()
		if isAgentInternalDir(agentType, cwd) {
			continue
		}

		target, ok := resolver.Resolve(int(p.Pid))
		if !ok || seen[target] {
			continue
		}
		seen[target] = true

		file, err := t.ensureCapture(target, agentType)
		if err != nil {
			log.Printf("[tmux] capture %s: %v", target, err)
			continue
		}

		var startedAt time.Time
		if created, err := p.CreateTime(); err == nil && created > 0 {
			startedAt = time.UnixMilli(created)
		}

		handles = append(handles, SessionHandle{
			SessionID:  target,
			OutputPath: file,
			WorkingDir: cwd,
			Source:     "tmux",
			AgentType:  agentType,
			PID:        int(p.Pid),
			TmuxTarget: target,
			StartedAt:  startedAt,
		})
	}

	return handles, nil
}

func (t *TmuxSource) Read(h SessionHandle, offset int64) (SourceUpdate, int64, error) {
	return tailCaptureFile(h.OutputPath, offset)
}

// ensureCapture attaches pipe-pane for the target if this source has
// not done so yet, and returns the capture file path.
func (t *TmuxSource) ensureCapture(target string, agentType session.AgentType) (string, error) {
	if file, ok := t.attached[target]; ok {
		return file, nil
	}

	if err := os.MkdirAll(t.captureDir, 0o700); err != nil {
		return "", err
	}

	file := filepath.Join(t.captureDir,
		fmt.Sprintf("%s-%s%s", agentType, sanitizeTarget(target), spoolSuffix))
	if err := attachPipePane(target, file); err != nil {
		return "", err
	}

	t.attached[target] = file
	log.Printf("[tmux] capturing %s into %s", target, file)
	return file, nil
}

// sanitizeTarget makes a pane target safe to embed in a filename. tmux
// forbids ":" and "." in session names but allows "/".
func sanitizeTarget(target string) string {
	return strings.ReplaceAll(target, "/", "_")
}

// classifyProcess returns the agent type of a process, or AgentNone
// when the process is not a recognized agent CLI.
func classifyProcess(p *process.Process) session.AgentType {
	parts, err := p.CmdlineSlice()
	if err != nil || len(parts) == 0 {
		return session.AgentNone
	}
	return agentTypeFromCmdline(parts)
}

// agentTypeFromCmdline classifies a command line as one of the known
// agent CLIs. It matches the executable name directly and falls back to
// interpreter invocations (node running a claude script, python -m
// aider), excluding node_modules/.bin shims which belong to unrelated
// tooling.
func agentTypeFromCmdline(parts []string) session.AgentType {
	if len(parts) == 0 {
		return session.AgentNone
	}

	exe := filepath.Base(parts[0])
	switch exe {
	case "claude", "claude-code":
		return session.AgentClaude
	case "codex":
		return session.AgentCodex
	case "gemini":
		return session.AgentGemini
	case "aider":
		return session.AgentAider
	case "opencode":
		return session.AgentOpenCode
	}

	if exe == "node" {
		for _, part := range parts[1:] {
			if strings.Contains(part, "node_modules/.bin") {
				return session.AgentNone
			}
			switch {
			case strings.Contains(part, "claude"):
				return session.AgentClaude
			case strings.Contains(part, "codex"):
				return session.AgentCodex
			case strings.Contains(part, "gemini"):
				return session.AgentGemini
			case strings.Contains(part, "opencode"):
				return session.AgentOpenCode
			}
		}
	}

	if strings.HasPrefix(exe, "python") {
		for i, part := range parts[1:] {
			if part == "-m" && i+2 < len(parts) && strings.HasPrefix(parts[i+2], "aider") {
				return session.AgentAider
			}
			if strings.HasSuffix(part, "/aider") || part == "aider" {
				return session.AgentAider
			}
		}
	}

	return session.AgentNone
}

// isAgentInternalDir reports whether cwd is inside the agent's own
// dotdir (e.g. ~/.claude), which marks helper subprocesses rather than
// an interactive session.
func isAgentInternalDir(agentType session.AgentType, cwd string) bool {
	if cwd == "" {
		return false
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return false
	}
	dotdir := filepath.Join(home, "."+string(agentType))
	return cwd == dotdir || strings.HasPrefix(cwd, dotdir+string(filepath.Separator))
}
