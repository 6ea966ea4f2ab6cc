package monitor

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// TmuxPane is a single tmux pane and the PID of the shell inside it.
type TmuxPane struct {
	SessionName string // e.g. "main"
	WindowIndex int    // e.g. 2
	PaneIndex   int    // e.g. 0
	PanePID     int    // PID of the shell running inside this pane
	Target      string // pre-formatted "main:2.0" for tmux commands
}

// TmuxResolver maps process PIDs to their containing tmux pane.
type TmuxResolver struct {
	targetByPID map[int]string // pane shell PID -> target string
}

// NewTmuxResolver queries tmux for all panes. Returns nil (not an
// error) when tmux is not running or not installed.
func NewTmuxResolver() *TmuxResolver {
	panes, err := listTmuxPanes()
	if err != nil || len(panes) == 0 {
		return nil
	}
	targetByPID := make(map[int]string, len(panes))
	for _, p := range panes {
		targetByPID[p.PanePID] = p.Target
	}
	return &TmuxResolver{targetByPID: targetByPID}
}

// Resolve walks the process tree from pid upward to find an ancestor
// that is a pane's shell. Returns the pane target and true, or
// ("", false) if no match. Stops after 10 ancestors to avoid runaway
// loops.
func (r *TmuxResolver) Resolve(pid int) (string, bool) {
	if r == nil {
		return "", false
	}

	current := pid
	for i := 0; i < 10; i++ {
		if target, ok := r.targetByPID[current]; ok {
			return target, true
		}
		parent := getParentPID(current)
		if parent <= 1 || parent == current {
			break
		}
		current = parent
	}

	return "", false
}

// getParentPID returns the parent PID of pid, or 0 if it cannot be
// determined.
func getParentPID(pid int) int {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return 0
	}
	ppid, err := p.Ppid()
	if err != nil {
		return 0
	}
	return int(ppid)
}

// listTmuxPanes runs tmux list-panes and parses the output.
func listTmuxPanes() ([]TmuxPane, error) {
	path, err := exec.LookPath("tmux")
	if err != nil {
		return nil, err
	}

	out, err := exec.Command(path, "list-panes", "-a", "-F",
		"#{pane_pid}\t#{session_name}\t#{window_index}\t#{pane_index}").Output()
	if err != nil {
		return nil, err
	}

	return parseTmuxPanes(string(out)), nil
}

// parseTmuxPanes parses the tab-separated output of tmux list-panes.
func parseTmuxPanes(output string) []TmuxPane {
	var panes []TmuxPane
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 4 {
			continue
		}

		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		winIdx, err := strconv.Atoi(fields[2])
		if err != nil {
			continue
		}
		paneIdx, err := strconv.Atoi(fields[3])
		if err != nil {
			continue
		}

		panes = append(panes, TmuxPane{
			SessionName: fields[1],
			WindowIndex: winIdx,
			PaneIndex:   paneIdx,
			PanePID:     pid,
			Target:      fmt.Sprintf("%s:%d.%d", fields[1], winIdx, paneIdx),
		})
	}
	return panes
}

// attachPipePane asks tmux to append the pane's raw output to file.
// The -o flag makes the call a no-op when a pipe is already open, so
// calling this on every poll is safe.
func attachPipePane(target, file string) error {
	path, err := exec.LookPath("tmux")
	if err != nil {
		return err
	}
	cmd := fmt.Sprintf("cat >> %s", shellQuote(file))
	if err := exec.Command(path, "pipe-pane", "-o", "-t", target, cmd).Run(); err != nil {
		return fmt.Errorf("pipe-pane %s: %w", target, err)
	}
	return nil
}

// shellQuote wraps s in single quotes for the pipe-pane shell command,
// escaping any embedded single quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
