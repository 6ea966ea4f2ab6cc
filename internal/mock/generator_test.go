package mock

import (
	"testing"
	"time"

	"github.com/agent-pulse/pulse/internal/activity"
	"github.com/agent-pulse/pulse/internal/session"
	"github.com/agent-pulse/pulse/internal/ws"
)

func newTestGenerator() (*Generator, *session.Store) {
	store := session.NewStore()
	broadcaster := ws.NewBroadcaster(store, time.Hour, time.Hour, 0)
	engine := activity.NewEngine(nil)
	return NewGenerator(store, broadcaster, engine), store
}

// drainEvents collects all events currently in ch without blocking.
func drainEvents(ch <-chan session.Event) []session.Event {
	var events []session.Event
	for {
		select {
		case ev := <-ch:
			events = append(events, ev)
		default:
			return events
		}
	}
}

func TestGeneratorSeedsStore(t *testing.T) {
	g, store := newTestGenerator()

	g.seed(time.Now())

	if store.Len() != len(g.sessions) {
		t.Fatalf("store holds %d sessions, want %d", store.Len(), len(g.sessions))
	}
	for _, ms := range g.sessions {
		state, ok := store.Get(ms.state.ID)
		if !ok {
			t.Errorf("session %q missing from store", ms.state.ID)
			continue
		}
		if state.Source != "mock" {
			t.Errorf("session %q Source = %q, want mock", state.ID, state.Source)
		}
		if state.Title == "" {
			t.Errorf("session %q has empty Title", state.ID)
		}
	}
}

func TestGeneratorEmitsEventNewOnSeed(t *testing.T) {
	g, _ := newTestGenerator()
	ch := make(chan session.Event, 32)
	g.SetStatsEvents(ch)

	g.seed(time.Now())

	newCount := 0
	for _, ev := range drainEvents(ch) {
		if ev.Type != session.EventNew {
			continue
		}
		newCount++
		if ev.State == nil || ev.State.ID == "" {
			t.Error("EventNew carries no usable state")
		}
	}
	if newCount != len(g.sessions) {
		t.Errorf("seed emitted %d EventNew events, want %d", newCount, len(g.sessions))
	}
}

func TestGeneratorFirstStepClassifiesWorking(t *testing.T) {
	g, store := newTestGenerator()
	g.seed(time.Now())

	g.step()

	for _, ms := range g.sessions {
		state, _ := store.Get(ms.state.ID)
		if state.Status != session.Working {
			t.Errorf("session %q Status after first step = %v, want working", state.ID, state.Status)
		}
		if state.ChunkCount != 1 {
			t.Errorf("session %q ChunkCount = %d, want 1", state.ID, state.ChunkCount)
		}
	}
}

func TestGeneratorScriptsCycleThroughStatuses(t *testing.T) {
	g, store := newTestGenerator()
	g.seed(time.Now())

	// Chunk-local cues fire synchronously inside step, so driving two
	// full script cycles must show every status on the flagship script.
	seen := make(map[session.Status]bool)
	for i := 0; i < 40; i++ {
		g.step()
		state, _ := store.Get("mock-claude-feature")
		seen[state.Status] = true
	}

	for _, want := range []session.Status{session.Working, session.Waiting, session.Idle} {
		if !seen[want] {
			t.Errorf("feature script never reached %v (saw %v)", want, seen)
		}
	}
}

func TestGeneratorSplitCueResolvesThroughDebounce(t *testing.T) {
	g, store := newTestGenerator()
	g.seed(time.Now())

	// Six steps put the review script just past "proceed? (y/n)", with
	// the permission lead-in split across two chunks. Only silence can
	// resolve it.
	for i := 0; i < 6; i++ {
		g.step()
	}
	state, _ := store.Get("mock-claude-review")
	if state.Status != session.Working {
		t.Fatalf("Status before debounce = %v, want working", state.Status)
	}

	time.Sleep(600 * time.Millisecond)

	state, _ = store.Get("mock-claude-review")
	if state.Status != session.Waiting {
		t.Errorf("Status after silence = %v, want waiting", state.Status)
	}
}

func TestGeneratorBannerDetectionUpdatesAgentType(t *testing.T) {
	g, store := newTestGenerator()
	g.seed(time.Now())

	state, _ := store.Get("mock-codex-migrate")
	if state.AgentType != session.AgentNone {
		t.Fatalf("seeded AgentType = %q, want none", state.AgentType)
	}

	g.step() // banner chunk

	state, _ = store.Get("mock-codex-migrate")
	if state.AgentType != session.AgentCodex {
		t.Errorf("AgentType after banner = %q, want codex", state.AgentType)
	}
}

func TestGeneratorStatusChangesEmitEvents(t *testing.T) {
	g, _ := newTestGenerator()
	ch := make(chan session.Event, 256)
	g.SetStatsEvents(ch)

	g.seed(time.Now())
	drainEvents(ch)

	g.step()

	updates := 0
	for _, ev := range drainEvents(ch) {
		if ev.Type == session.EventUpdate {
			updates++
			if ev.PrevStatus != session.Inactive {
				t.Errorf("first transition PrevStatus = %v, want inactive", ev.PrevStatus)
			}
		}
	}
	if updates == 0 {
		t.Error("step produced no EventUpdate events for status transitions")
	}
}
