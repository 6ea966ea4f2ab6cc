package monitor

import (
	"context"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/agent-pulse/pulse/internal/activity"
	"github.com/agent-pulse/pulse/internal/config"
	"github.com/agent-pulse/pulse/internal/session"
	"github.com/agent-pulse/pulse/internal/ws"
)

// trackedSession holds per-session state used by the monitor between
// polls.
type trackedSession struct {
	handle       SessionHandle
	offset       int64
	lastDataTime time.Time
}

// trackingKey returns the composite key identifying a tracked session.
// Using source:sessionID avoids collisions across sources.
func trackingKey(source, sessionID string) string {
	return source + ":" + sessionID
}

// sourceFromKey extracts the source name from a composite tracking key.
// Returns empty string if the key has no separator.
func sourceFromKey(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[:i]
	}
	return ""
}

// Monitor polls sources for captured terminal output and feeds it to
// the classification engine. Engine callbacks write classified status
// back to the store and out to WebSocket clients, so the monitor itself
// never interprets output.
type Monitor struct {
	mu      sync.RWMutex // protects cfg, sources, health
	cfg     *config.Config
	store   *session.Store
	broadcaster *ws.Broadcaster
	engine  *activity.Engine
	sources []Source
	health  map[string]*sourceHealth

	// Poll-goroutine state, never touched elsewhere.
	tracked     map[string]*trackedSession // keyed by source:sessionID
	removedKeys map[string]bool            // removed from store, offset kept for resume detection

	statsEvents chan<- session.Event

	dropMu           sync.Mutex
	statsDropped     int64
	statsLastDropLog time.Time
}

func NewMonitor(cfg *config.Config, store *session.Store, broadcaster *ws.Broadcaster, engine *activity.Engine, sources []Source) *Monitor {
	healthMap := make(map[string]*sourceHealth, len(sources))
	for _, src := range sources {
		healthMap[src.Name()] = newSourceHealth()
	}
	m := &Monitor{
		cfg:         cfg,
		store:       store,
		broadcaster: broadcaster,
		engine:      engine,
		sources:     sources,
		health:      healthMap,
		tracked:     make(map[string]*trackedSession),
		removedKeys: make(map[string]bool),
	}

	engine.OnStatusChange(m.applyStatusChange)
	engine.OnAgentTypeChange(m.applyAgentChange)
	broadcaster.SetHealthHook(m.sourceHealthSnapshot)

	return m
}

// SetConfig replaces the monitor's config pointer. The new config is
// read on the next poll tick. Only fields consulted during polling take
// effect (timings, health threshold); server-level settings require a
// restart.
func (m *Monitor) SetConfig(cfg *config.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
}

// SetSources replaces the source list. Health tracking carries over for
// sources present in both lists; sessions of dropped sources are pruned
// on the next poll when their files are no longer discovered.
func (m *Monitor) SetSources(newSources []Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	newHealth := make(map[string]*sourceHealth, len(newSources))
	for _, src := range newSources {
		name := src.Name()
		if existing, ok := m.health[name]; ok {
			newHealth[name] = existing
		} else {
			newHealth[name] = newSourceHealth()
		}
	}
	m.sources = newSources
	m.health = newHealth
}

// SetStatsEvents configures a channel for session lifecycle events.
// Must be called before Start. Pass nil to disable.
func (m *Monitor) SetStatsEvents(ch chan<- session.Event) {
	m.statsEvents = ch
}

// emitEvent sends a session event to the stats channel if configured.
// The send never blocks; dropped events are counted and logged at most
// once per 10 seconds.
func (m *Monitor) emitEvent(evType session.EventType, state *session.SessionState, prev session.Status) {
	if m.statsEvents == nil {
		return
	}
	snap := *state
	select {
	case m.statsEvents <- session.Event{
		Type:        evType,
		State:       &snap,
		PrevStatus:  prev,
		ActiveCount: m.store.ActiveCount(),
	}:
	default:
		m.dropMu.Lock()
		m.statsDropped++
		now := time.Now()
		if m.statsLastDropLog.IsZero() || now.Sub(m.statsLastDropLog) >= 10*time.Second {
			log.Printf("[monitor] stats events dropped: %d (channel full)", m.statsDropped)
			m.statsDropped = 0
			m.statsLastDropLog = now
		}
		m.dropMu.Unlock()
	}
}

func (m *Monitor) Start(ctx context.Context) {
	m.mu.RLock()
	pollInterval := m.cfg.Monitor.PollInterval
	sourceNames := make([]string, len(m.sources))
	for i, s := range m.sources {
		sourceNames[i] = s.Name()
	}
	m.mu.RUnlock()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	log.Printf("[monitor] started with sources: %v", sourceNames)

	// Initial poll
	m.poll()

	for {
		select {
		case <-ctx.Done():
			log.Println("[monitor] stopped")
			return
		case <-ticker.C:
			m.poll()
		}
	}
}

// engineFeed is a chunk waiting to go into the engine after the store
// commit.
type engineFeed struct {
	key       string
	agentType session.AgentType
	chunk     []byte
}

func (m *Monitor) poll() {
	now := time.Now()

	// Snapshot mutable fields under the read lock so concurrent
	// SetConfig/SetSources calls from the SIGHUP goroutine don't race
	// with this iteration.
	m.mu.RLock()
	cfg := m.cfg
	sources := m.sources
	health := m.health
	m.mu.RUnlock()

	// Session keys discovered this tick, for stale detection.
	activeKeys := make(map[string]bool)

	var updates []*session.SessionState
	var feeds []engineFeed

	for _, src := range sources {
		sh := health[src.Name()]
		handles, err := src.Discover()
		if err != nil {
			log.Printf("[%s] discovery error: %v", src.Name(), err)
			sh.recordDiscoverFailure(err)
			continue
		}
		sh.recordDiscoverSuccess()

		for _, h := range handles {
			activeKeys[trackingKey(h.Source, h.SessionID)] = true
		}

		for _, h := range handles {
			key := trackingKey(h.Source, h.SessionID)

			ts, exists := m.tracked[key]
			if !exists {
				ts = &trackedSession{handle: h, lastDataTime: now}
				m.tracked[key] = ts
				log.Printf("[%s] tracking new session: %s", src.Name(), h.SessionID)
			} else {
				ts.handle = h
			}

			oldOffset := ts.offset
			update, newOffset, err := src.Read(ts.handle, ts.offset)
			if err != nil {
				log.Printf("[%s] read error for %s: %v", src.Name(), h.SessionID, err)
				sh.recordReadFailure(key, err)
				continue
			}
			sh.recordReadSuccess(key)
			ts.offset = newOffset
			hasNewData := newOffset > oldOffset || update.HasData()
			if hasNewData {
				ts.lastDataTime = now
			}

			// Sessions removed for silence stay tracked so that new
			// output resumes them at the kept offset instead of
			// replaying what was already seen.
			if m.removedKeys[key] {
				if !hasNewData {
					continue
				}
				delete(m.removedKeys, key)
				log.Printf("[%s] session resumed: %s (%d new bytes)", src.Name(), h.SessionID, newOffset-oldOffset)
			}

			state, existed := m.store.Get(key)
			if !existed {
				startedAt := h.StartedAt
				if startedAt.IsZero() {
					startedAt = now
				}
				state = &session.SessionState{
					ID:         key,
					Title:      titleForHandle(h),
					Source:     h.Source,
					AgentType:  h.AgentType,
					WorkingDir: h.WorkingDir,
					TmuxTarget: h.TmuxTarget,
					PID:        h.PID,
					StartedAt:  startedAt,
				}
			} else if !hasNewData {
				continue
			}

			mergeHandleMetadata(state, h, update)

			if len(update.Chunk) > 0 {
				state.ChunkCount++
				state.BytesSeen += int64(len(update.Chunk))
				state.LastOutputAt = now
				feeds = append(feeds, engineFeed{
					key:       key,
					agentType: state.AgentType,
					chunk:     update.Chunk,
				})
			}

			if !existed {
				m.emitEvent(session.EventNew, state, session.Inactive)
			} else {
				m.emitEvent(session.EventUpdate, state, state.Status)
			}
			updates = append(updates, state)
		}
	}

	m.emitHealthEvents(cfg, sources, health)

	// Commit all metadata updates atomically and queue the delta under
	// the same lock, so HTTP readers cannot observe state WebSocket
	// clients have not been queued.
	if len(updates) > 0 {
		m.store.BatchUpdateAndNotify(updates, func() {
			m.broadcaster.QueueUpdate(updates)
		})
	}

	// Feed captured output to the engine only after the commit, so
	// classification callbacks find the sessions they refer to.
	for _, f := range feeds {
		m.engine.ProcessOutput(f.key, f.agentType, string(f.chunk))
	}

	m.pruneStale(cfg, now, activeKeys, health)
}

// mergeHandleMetadata folds source-discovered metadata into the state.
// Update fields win over handle fields; existing values are only
// replaced by new information, never blanked.
func mergeHandleMetadata(state *session.SessionState, h SessionHandle, update SourceUpdate) {
	if update.WorkingDir != "" && update.WorkingDir != state.WorkingDir {
		state.WorkingDir = update.WorkingDir
		state.Title = titleFromPath(update.WorkingDir)
	} else if state.WorkingDir == "" && h.WorkingDir != "" {
		state.WorkingDir = h.WorkingDir
		state.Title = titleFromPath(h.WorkingDir)
	}

	if update.TmuxTarget != "" {
		state.TmuxTarget = update.TmuxTarget
	} else if state.TmuxTarget == "" && h.TmuxTarget != "" {
		state.TmuxTarget = h.TmuxTarget
	}

	if state.PID == 0 && h.PID != 0 {
		state.PID = h.PID
	}
}

// applyStatusChange is the engine's status callback. It runs on the
// goroutine that processed the output (poll loop or debounce timer) and
// writes the transition through to the store, the socket, and stats.
func (m *Monitor) applyStatusChange(sessionID string, status session.Status) {
	state, ok := m.store.Get(sessionID)
	if !ok {
		return
	}
	prev := state.Status
	if prev == status {
		return
	}
	state.Status = status
	state.LastStatusAt = time.Now()
	m.store.UpdateAndNotify(state, func() {
		m.broadcaster.PublishStatusChange(sessionID, prev, status)
		m.broadcaster.QueueUpdate([]*session.SessionState{state})
	})
	m.emitEvent(session.EventUpdate, state, prev)
}

// applyAgentChange is the engine's agent detection callback.
func (m *Monitor) applyAgentChange(sessionID string, agentType session.AgentType) {
	state, ok := m.store.Get(sessionID)
	if !ok || state.AgentType == agentType {
		return
	}
	state.AgentType = agentType
	m.store.UpdateAndNotify(state, func() {
		m.broadcaster.PublishAgentChange(sessionID, agentType)
		m.broadcaster.QueueUpdate([]*session.SessionState{state})
	})
}

// pruneStale walks tracked sessions and applies the silence policy:
// after StaleAfter without output the session drops to inactive; after
// RemoveAfter it leaves the store (resumable); when its capture file is
// no longer discovered it is forgotten entirely.
func (m *Monitor) pruneStale(cfg *config.Config, now time.Time, activeKeys map[string]bool, health map[string]*sourceHealth) {
	var removeIDs []string
	var removeStates []*session.SessionState

	for key, ts := range m.tracked {
		if !activeKeys[key] {
			if state, ok := m.store.Get(key); ok {
				removeIDs = append(removeIDs, key)
				removeStates = append(removeStates, state)
				log.Printf("[monitor] session gone: %s (capture file no longer present)", key)
			}
			m.engine.Clear(key)
			delete(m.tracked, key)
			delete(m.removedKeys, key)
			if sh, ok := health[sourceFromKey(key)]; ok {
				sh.removeSession(key)
			}
			continue
		}

		if m.removedKeys[key] {
			continue
		}

		silent := now.Sub(ts.lastDataTime)

		if cfg.Monitor.RemoveAfter > 0 && silent > cfg.Monitor.RemoveAfter {
			if state, ok := m.store.Get(key); ok {
				removeIDs = append(removeIDs, key)
				removeStates = append(removeStates, state)
			}
			m.engine.Clear(key)
			m.removedKeys[key] = true
			log.Printf("[monitor] removing silent session %s (no output for %s)", key, silent.Round(time.Second))
			continue
		}

		if cfg.Monitor.StaleAfter > 0 && silent > cfg.Monitor.StaleAfter {
			m.markInactive(key, now)
		}
	}

	if len(removeIDs) == 0 {
		return
	}
	for _, state := range removeStates {
		m.emitEvent(session.EventRemoved, state, state.Status)
	}
	m.store.BatchRemoveAndNotify(removeIDs, func() {
		m.broadcaster.QueueRemoval(removeIDs)
	})
}

// markInactive transitions a stale session to inactive and clears its
// engine record, cancelling any pending debounce. Idempotent across
// polls.
func (m *Monitor) markInactive(key string, now time.Time) {
	state, ok := m.store.Get(key)
	if !ok || state.Status == session.Inactive {
		return
	}
	m.engine.Clear(key)
	prev := state.Status
	state.Status = session.Inactive
	state.LastStatusAt = now
	m.store.UpdateAndNotify(state, func() {
		m.broadcaster.PublishStatusChange(key, prev, session.Inactive)
		m.broadcaster.QueueUpdate([]*session.SessionState{state})
	})
	m.emitEvent(session.EventUpdate, state, prev)
}

// healthThreshold returns the configured failure threshold, falling
// back to 3 when unset.
func healthThreshold(cfg *config.Config) int {
	if t := cfg.Monitor.HealthThreshold; t > 0 {
		return t
	}
	return 3
}

// emitHealthEvents pushes a source_health frame for every source whose
// healthy value flipped since the last emission.
func (m *Monitor) emitHealthEvents(cfg *config.Config, sources []Source, health map[string]*sourceHealth) {
	threshold := healthThreshold(cfg)
	for _, src := range sources {
		sh := health[src.Name()]
		healthy, fails, lastErr, changed := sh.snapshotAndEmit(threshold)
		if !changed {
			continue
		}
		m.broadcaster.PublishSourceHealth(ws.SourceHealthPayload{
			Source:           src.Name(),
			Healthy:          healthy,
			ConsecutiveFails: fails,
			Error:            lastErr,
		})
		log.Printf("[%s] health: healthy=%v (fails=%d, lastErr=%q)", src.Name(), healthy, fails, lastErr)
	}
}

// sourceHealthSnapshot reports all currently unhealthy sources, for the
// broadcaster to embed in snapshot frames.
func (m *Monitor) sourceHealthSnapshot() []ws.SourceHealthPayload {
	m.mu.RLock()
	cfg := m.cfg
	sources := m.sources
	health := m.health
	m.mu.RUnlock()

	threshold := healthThreshold(cfg)
	var result []ws.SourceHealthPayload
	for _, src := range sources {
		sh := health[src.Name()]
		healthy, fails, lastErr := sh.snapshot(threshold)
		if healthy {
			continue
		}
		result = append(result, ws.SourceHealthPayload{
			Source:           src.Name(),
			Healthy:          healthy,
			ConsecutiveFails: fails,
			Error:            lastErr,
		})
	}
	return result
}

func titleForHandle(h SessionHandle) string {
	if h.WorkingDir != "" {
		return titleFromPath(h.WorkingDir)
	}
	return h.SessionID
}

func titleFromPath(path string) string {
	base := filepath.Base(path)
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "unknown"
	}
	return base
}
