package stats

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/agent-pulse/pulse/internal/session"
)

const defaultSaveInterval = 30 * time.Second

// Tracker observes session lifecycle events and maintains aggregate
// stats. It receives events from the monitor via a channel and
// periodically persists the accumulated stats to disk.
type Tracker struct {
	persist      *Store
	stats        *Stats
	events       chan session.Event
	saveInterval time.Duration

	mu         sync.Mutex
	dirty      bool
	counted    map[string]bool // session IDs already counted for TotalSessions
	waitCounts map[string]int  // session ID -> waits observed this session
}

// NewTracker creates a Tracker backed by the given persistence store.
// It loads existing stats from disk and returns a send-only channel for
// the monitor to deliver events on. The caller must run Run in a
// goroutine.
func NewTracker(persist *Store, saveInterval time.Duration) (*Tracker, chan<- session.Event, error) {
	stats, err := persist.Load()
	if err != nil {
		return nil, nil, err
	}
	if saveInterval <= 0 {
		saveInterval = defaultSaveInterval
	}
	ch := make(chan session.Event, 256)
	t := &Tracker{
		persist:      persist,
		stats:        stats,
		events:       ch,
		saveInterval: saveInterval,
		counted:      make(map[string]bool),
		waitCounts:   make(map[string]int),
	}
	return t, ch, nil
}

// Run processes events and periodically saves dirty stats to disk.
// It blocks until ctx is cancelled, then performs a final save.
func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.saveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.save()
			return
		case ev := <-t.events:
			t.processEvent(ev)
		case <-ticker.C:
			if t.isDirty() {
				t.save()
			}
		}
	}
}

// Stats returns a deep copy of the current aggregate stats.
func (t *Tracker) Stats() *Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats.clone()
}

func (t *Tracker) processEvent(ev session.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := ev.State
	if s == nil {
		return
	}

	if ev.ActiveCount > t.stats.MaxConcurrentActive {
		t.stats.MaxConcurrentActive = ev.ActiveCount
	}

	switch ev.Type {
	case session.EventNew:
		if t.counted[s.ID] {
			return
		}
		t.counted[s.ID] = true
		t.stats.TotalSessions++
		if s.Source != "" {
			t.stats.SessionsPerSource[s.Source]++
		}

	case session.EventUpdate:
		if s.Status != ev.PrevStatus {
			t.stats.Transitions[s.Status.String()]++
			if s.Status == session.Waiting {
				t.waitCounts[s.ID]++
			}
		}

	case session.EventRemoved:
		if s.AgentType.Known() {
			t.stats.SessionsPerAgent[s.AgentType.String()]++
			t.stats.DistinctAgentsUsed = len(t.stats.SessionsPerAgent)
		}
		t.stats.TotalChunks += int64(s.ChunkCount)
		t.stats.TotalBytes += s.BytesSeen
		if !s.StartedAt.IsZero() {
			dur := time.Since(s.StartedAt).Seconds()
			if dur > t.stats.MaxSessionDurationSec {
				t.stats.MaxSessionDurationSec = dur
			}
		}
		if waits := t.waitCounts[s.ID]; waits > t.stats.MaxWaitsInSession {
			t.stats.MaxWaitsInSession = waits
		}
		delete(t.counted, s.ID)
		delete(t.waitCounts, s.ID)
	}

	t.dirty = true
}

func (t *Tracker) isDirty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dirty
}

func (t *Tracker) save() {
	t.mu.Lock()
	stats := t.stats.clone()
	t.dirty = false
	t.mu.Unlock()

	if err := t.persist.Save(stats); err != nil {
		log.Printf("[stats] save failed: %v", err)
	}
}
