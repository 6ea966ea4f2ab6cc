package monitor

import (
	"sync"
	"time"
)

// sourceHealth tracks consecutive failure counts for a single source.
// The monitor uses it to detect broken sources and push alerts to
// clients. Fields are protected by mu because poll() writes them from
// the monitor goroutine while snapshot readers may run elsewhere.
type sourceHealth struct {
	mu               sync.Mutex
	discoverFailures int
	lastDiscoverErr  string
	lastDiscoverFail time.Time
	readFailures     map[string]int // keyed by session tracking key
	lastReadErr      string
	lastReadFail     time.Time
	lastEmitted      bool // last healthy value pushed to clients
}

func newSourceHealth() *sourceHealth {
	return &sourceHealth{
		readFailures: make(map[string]int),
		lastEmitted:  true,
	}
}

func (h *sourceHealth) recordDiscoverSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.discoverFailures = 0
	h.lastDiscoverErr = ""
}

func (h *sourceHealth) recordDiscoverFailure(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.discoverFailures++
	h.lastDiscoverErr = err.Error()
	h.lastDiscoverFail = time.Now()
}

func (h *sourceHealth) recordReadSuccess(sessionKey string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.readFailures, sessionKey)
}

func (h *sourceHealth) recordReadFailure(sessionKey string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readFailures[sessionKey]++
	h.lastReadErr = err.Error()
	h.lastReadFail = time.Now()
}

// removeSession cleans up read failure tracking for a removed session.
func (h *sourceHealth) removeSession(sessionKey string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.readFailures, sessionKey)
}

// snapshot returns a consistent copy of the health fields under the
// lock. A source is healthy while discovery has failed fewer than
// threshold times in a row and no session's reads have either.
func (h *sourceHealth) snapshot(threshold int) (healthy bool, consecutiveFails int, lastErr string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.healthyLocked(threshold), h.discoverFailures, h.lastErrorLocked()
}

// snapshotAndEmit is snapshot plus a changed flag reporting whether the
// healthy value differs from the last emission. When it does, the
// emission marker is updated in the same lock acquisition.
func (h *sourceHealth) snapshotAndEmit(threshold int) (healthy bool, consecutiveFails int, lastErr string, changed bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	healthy = h.healthyLocked(threshold)
	changed = healthy != h.lastEmitted
	if changed {
		h.lastEmitted = healthy
	}
	return healthy, h.discoverFailures, h.lastErrorLocked(), changed
}

// healthyLocked computes the health value. Caller must hold h.mu.
func (h *sourceHealth) healthyLocked(threshold int) bool {
	if h.discoverFailures >= threshold {
		return false
	}
	for _, failures := range h.readFailures {
		if failures >= threshold {
			return false
		}
	}
	return true
}

// lastErrorLocked returns the most recent error, preferring whichever
// of discover or read failed later. Caller must hold h.mu.
func (h *sourceHealth) lastErrorLocked() string {
	if h.lastDiscoverErr != "" && (h.lastReadErr == "" || h.lastDiscoverFail.After(h.lastReadFail)) {
		return h.lastDiscoverErr
	}
	return h.lastReadErr
}
