package activity

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/agent-pulse/pulse/internal/session"
)

// recorder collects notifications under a lock; debounce timers deliver
// from their own goroutines.
type recorder struct {
	mu       sync.Mutex
	statuses []session.Status
	agents   []session.AgentType
}

func (r *recorder) recordStatus(id string, s session.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *recorder) recordAgent(id string, a session.AgentType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents = append(r.agents, a)
}

func (r *recorder) statusList() []session.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]session.Status, len(r.statuses))
	copy(out, r.statuses)
	return out
}

func (r *recorder) agentList() []session.AgentType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]session.AgentType, len(r.agents))
	copy(out, r.agents)
	return out
}

func newTestEngine(t *testing.T) (*Engine, *recorder) {
	t.Helper()
	e := NewEngine(nil)
	r := &recorder{}
	e.OnStatusChange(r.recordStatus)
	e.OnAgentTypeChange(r.recordAgent)
	return e, r
}

func wantStatuses(t *testing.T, got, want []session.Status) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("notifications = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("notifications = %v, want %v", got, want)
		}
	}
}

func TestPlainOutputGoesWorking(t *testing.T) {
	e, r := newTestEngine(t)
	defer e.Clear("t1")

	e.ProcessOutput("t1", session.AgentClaude, "Some output")

	wantStatuses(t, r.statusList(), []session.Status{session.Working})
	if got := e.Status("t1"); got != session.Working {
		t.Errorf("Status = %v, want working", got)
	}
}

func TestBarePromptResolvesIdleAfterSilence(t *testing.T) {
	e, r := newTestEngine(t)
	defer e.Clear("t1")

	e.ProcessOutput("t1", session.AgentClaude, "> ")
	time.Sleep(600 * time.Millisecond)

	wantStatuses(t, r.statusList(), []session.Status{session.Working, session.Idle})
	if got := e.Status("t1"); got != session.Idle {
		t.Errorf("Status = %v, want idle", got)
	}
}

func TestInlinePermissionQuestionResolvesWaiting(t *testing.T) {
	e, r := newTestEngine(t)
	defer e.Clear("t1")

	// The inline y/n form matches no status cue; the permission lead-in
	// marks a tool in flight and the silence debounce resolves waiting.
	e.ProcessOutput("t1", session.AgentClaude, "Do you want to proceed? (y/n)")
	time.Sleep(600 * time.Millisecond)

	wantStatuses(t, r.statusList(), []session.Status{session.Working, session.Waiting})
	if got := e.Status("t1"); got != session.Waiting {
		t.Errorf("Status = %v, want waiting", got)
	}
}

func TestRapidChunksNotifyWorkingOnce(t *testing.T) {
	e, r := newTestEngine(t)

	e.ProcessOutput("t1", session.AgentClaude, "Reading...")
	time.Sleep(100 * time.Millisecond)
	e.ProcessOutput("t1", session.AgentClaude, "Writing...")
	time.Sleep(100 * time.Millisecond)
	e.ProcessOutput("t1", session.AgentClaude, "Done")
	time.Sleep(150 * time.Millisecond)

	// 350ms in: debounce keeps getting pushed out, so the only
	// notification is the initial transition to working.
	wantStatuses(t, r.statusList(), []session.Status{session.Working})
	e.Clear("t1")
}

func TestSplitCueAcrossChunksResolvesWaiting(t *testing.T) {
	e, r := newTestEngine(t)
	defer e.Clear("t1")

	for _, chunk := range []string{"Line 1", "Do you want to", "proceed? (y/n)"} {
		e.ProcessOutput("t1", session.AgentClaude, chunk)
	}
	time.Sleep(600 * time.Millisecond)

	wantStatuses(t, r.statusList(), []session.Status{session.Working, session.Waiting})
	if got := e.Status("t1"); got != session.Waiting {
		t.Errorf("Status = %v, want waiting", got)
	}
}

func TestChunkLocalWaitingTransitionsImmediately(t *testing.T) {
	e, r := newTestEngine(t)
	defer e.Clear("t1")

	e.ProcessOutput("t1", session.AgentClaude, "Do you want to proceed?\n❯ 1. Yes\n  2. No")

	wantStatuses(t, r.statusList(), []session.Status{session.Waiting})

	// No debounce is armed while waiting; silence changes nothing.
	time.Sleep(600 * time.Millisecond)
	wantStatuses(t, r.statusList(), []session.Status{session.Waiting})
}

func TestChunkLocalIdleTransitionsImmediately(t *testing.T) {
	e, r := newTestEngine(t)
	defer e.Clear("t1")

	e.ProcessOutput("t1", session.AgentClaude, "✻ Worked for 54s\n❯\n  ? for shortcuts")

	wantStatuses(t, r.statusList(), []session.Status{session.Idle})
	if got := e.Status("t1"); got != session.Idle {
		t.Errorf("Status = %v, want idle", got)
	}
}

func TestUnmatchedOutputFlipsIdleBackToWorking(t *testing.T) {
	e, r := newTestEngine(t)
	defer e.Clear("t1")

	e.ProcessOutput("t1", session.AgentClaude, "? for shortcuts")
	e.ProcessOutput("t1", session.AgentClaude, "compiling module graph")

	wantStatuses(t, r.statusList(), []session.Status{session.Idle, session.Working})
}

func TestWaitingClearsToolFlag(t *testing.T) {
	e, r := newTestEngine(t)
	defer e.Clear("t1")

	// Reach waiting through the tool-cue debounce path, then continue:
	// if the flag survived the transition, the second debounce would
	// resolve waiting again instead of idle.
	e.ProcessOutput("t1", session.AgentClaude, "Do you want to proceed? (y/n)")
	time.Sleep(600 * time.Millisecond)
	e.ProcessOutput("t1", session.AgentClaude, "ok, continuing")
	time.Sleep(600 * time.Millisecond)

	wantStatuses(t, r.statusList(), []session.Status{
		session.Working, session.Waiting, session.Working, session.Idle,
	})
}

func TestMoreOutputWhileWorkingOnlyResetsDebounce(t *testing.T) {
	e, r := newTestEngine(t)
	defer e.Clear("t1")

	e.ProcessOutput("t1", session.AgentClaude, "alpha")
	time.Sleep(300 * time.Millisecond)
	e.ProcessOutput("t1", session.AgentClaude, "beta")

	// 300ms after the second chunk the original deadline has passed but
	// the reset one has not.
	time.Sleep(300 * time.Millisecond)
	wantStatuses(t, r.statusList(), []session.Status{session.Working})

	time.Sleep(400 * time.Millisecond)
	wantStatuses(t, r.statusList(), []session.Status{session.Working, session.Idle})
}

func TestNoConsecutiveDuplicateNotifications(t *testing.T) {
	e, r := newTestEngine(t)
	defer e.Clear("t1")

	chunks := []string{
		"plain output",
		"more plain output",
		"❯ 1. Yes",
		"❯ 1. Yes",
		"\x1b[2Jback to work",
		"? for shortcuts",
		"? for shortcuts",
	}
	for _, c := range chunks {
		e.ProcessOutput("t1", session.AgentClaude, c)
	}

	got := r.statusList()
	wantStatuses(t, got, []session.Status{
		session.Working, session.Waiting, session.Working, session.Idle,
	})
	for i := 1; i < len(got); i++ {
		if got[i] == got[i-1] {
			t.Errorf("consecutive duplicate notification: %v at %d", got[i], i)
		}
	}
}

func TestTrailingBufferStaysBounded(t *testing.T) {
	e, _ := newTestEngine(t)
	defer e.Clear("t1")

	for i := 0; i < 10; i++ {
		e.ProcessOutput("t1", session.AgentClaude, fmt.Sprintf("⠋⠙⠹ chunk %d with some padding text and runes ⣾⣽⣻", i))

		e.mu.Lock()
		n := len([]rune(e.sessions["t1"].buffer))
		e.mu.Unlock()
		if n > bufferCap {
			t.Fatalf("buffer holds %d runes after chunk %d, cap is %d", n, i, bufferCap)
		}
	}
}

func TestClearCancelsPendingDebounce(t *testing.T) {
	e, r := newTestEngine(t)

	e.ProcessOutput("t1", session.AgentClaude, "busy busy")
	e.Clear("t1")

	if got := e.Status("t1"); got != session.Inactive {
		t.Errorf("Status after Clear = %v, want inactive", got)
	}

	time.Sleep(600 * time.Millisecond)
	wantStatuses(t, r.statusList(), []session.Status{session.Working})
}

func TestClearThenReuseStartsFresh(t *testing.T) {
	e, r := newTestEngine(t)
	defer e.Clear("t1")

	e.ProcessOutput("t1", session.AgentClaude, "first life")
	e.Clear("t1")
	e.ProcessOutput("t1", session.AgentClaude, "second life")

	wantStatuses(t, r.statusList(), []session.Status{session.Working, session.Working})
	if got := e.Status("t1"); got != session.Working {
		t.Errorf("Status = %v, want working", got)
	}
}

func TestUnknownSessionDefaults(t *testing.T) {
	e, _ := newTestEngine(t)

	if got := e.Status("never-seen"); got != session.Inactive {
		t.Errorf("Status = %v, want inactive", got)
	}
	if got := e.AgentType("never-seen"); got != session.AgentNone {
		t.Errorf("AgentType = %q, want none", got)
	}
}

func TestAgentTypeDetectionEmitsChange(t *testing.T) {
	e, r := newTestEngine(t)
	defer e.Clear("t1")

	e.ProcessOutput("t1", session.AgentNone, "Welcome to Claude Code!")
	e.ProcessOutput("t1", session.AgentNone, "Welcome to Claude Code!")

	agents := r.agentList()
	if len(agents) != 1 || agents[0] != session.AgentClaude {
		t.Fatalf("agent notifications = %v, want [claude]", agents)
	}
	if got := e.AgentType("t1"); got != session.AgentClaude {
		t.Errorf("AgentType = %q, want claude", got)
	}
}

func TestDetectedAgentOverridesCaller(t *testing.T) {
	e, r := newTestEngine(t)
	defer e.Clear("t1")

	e.ProcessOutput("t1", session.AgentCodex, "Welcome to Claude Code!")
	// The shortcuts footer is a claude cue; it only classifies idle if
	// the detected type took precedence over the caller's codex.
	e.ProcessOutput("t1", session.AgentCodex, "? for shortcuts")

	got := r.statusList()
	if len(got) == 0 || got[len(got)-1] != session.Idle {
		t.Errorf("notifications = %v, want idle last", got)
	}
}

func TestBufferedPassKeysOnCallerAgentType(t *testing.T) {
	e, _ := newTestEngine(t)
	defer e.Clear("a")
	defer e.Clear("b")

	// Same split idle cue, same detected agent. Session a supplies no
	// caller type, so the buffered pass has no claude tables to match
	// against and the session stays working; session b supplies claude
	// and goes idle. Chunk-local detection does not share this
	// asymmetry: it uses the detected type.
	e.ProcessOutput("a", session.AgentNone, "Welcome to Claude Code!")
	e.ProcessOutput("a", session.AgentNone, "? for sh")
	e.ProcessOutput("a", session.AgentNone, "ortcuts")

	e.ProcessOutput("b", session.AgentClaude, "Welcome to Claude Code!")
	e.ProcessOutput("b", session.AgentClaude, "? for sh")
	e.ProcessOutput("b", session.AgentClaude, "ortcuts")

	if got := e.Status("a"); got != session.Working {
		t.Errorf("Status(a) = %v, want working", got)
	}
	if got := e.Status("b"); got != session.Idle {
		t.Errorf("Status(b) = %v, want idle", got)
	}
}

func TestRedrawDiscardsSupersededContext(t *testing.T) {
	e, _ := newTestEngine(t)
	defer e.Clear("t1")
	defer e.Clear("t2")

	// Buffered half of a cue must not survive a full-screen redraw.
	e.ProcessOutput("t1", session.AgentClaude, "? for sh")
	e.ProcessOutput("t1", session.AgentClaude, "\x1b[2Jortcuts")
	if got := e.Status("t1"); got != session.Working {
		t.Errorf("Status(t1) = %v, want working", got)
	}

	// Text after the last redraw still classifies.
	e.ProcessOutput("t2", session.AgentClaude, "old screen\x1b[2J? for shortcuts")
	if got := e.Status("t2"); got != session.Idle {
		t.Errorf("Status(t2) = %v, want idle", got)
	}
}

func TestSubscribersRunInRegistrationOrder(t *testing.T) {
	e := NewEngine(nil)
	defer e.Clear("t1")

	var mu sync.Mutex
	var order []int
	e.OnStatusChange(func(string, session.Status) {
		mu.Lock()
		order = append(order, 1)
		mu.Unlock()
	})
	e.OnStatusChange(func(string, session.Status) {
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
	})

	e.ProcessOutput("t1", session.AgentClaude, "output")

	// Delivery is synchronous: both subscribers ran before ProcessOutput
	// returned.
	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("delivery order = %v, want [1 2]", order)
	}
}

func TestConcurrentSessions(t *testing.T) {
	e, _ := newTestEngine(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", n)
			for j := 0; j < 20; j++ {
				e.ProcessOutput(id, session.AgentClaude, "chunk chunk chunk")
			}
			e.Clear(id)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("s%d", i)
		if got := e.Status(id); got != session.Inactive {
			t.Errorf("Status(%s) = %v after Clear, want inactive", id, got)
		}
	}
}
