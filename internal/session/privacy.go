package session

import (
	"crypto/sha256"
	"fmt"
	"path/filepath"
)

// PrivacyFilter masks session fields and filters sessions by working
// directory before state leaves the process over HTTP or WebSocket.
// The zero value passes everything through untouched.
type PrivacyFilter struct {
	MaskTitles      bool
	MaskWorkingDirs bool
	MaskSessionIDs  bool
	MaskPIDs        bool
	MaskTmuxTargets bool
	AllowedPaths    []string
	BlockedPaths    []string
}

// IsAllowed reports whether a session rooted at workingDir may be exposed.
// Sessions without a resolved working directory are always allowed. A
// non-empty allowlist must match first; the blocklist is applied after.
func (f *PrivacyFilter) IsAllowed(workingDir string) bool {
	if workingDir == "" {
		return true
	}
	if len(f.AllowedPaths) > 0 && !matchAny(f.AllowedPaths, workingDir) {
		return false
	}
	return !matchAny(f.BlockedPaths, workingDir)
}

func matchAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		if matchPathOrParent(pattern, path) {
			return true
		}
	}
	return false
}

// matchPathOrParent matches pattern against path and each of its parents,
// so "/home/user/*" covers deeply nested project directories.
func matchPathOrParent(pattern, path string) bool {
	for p := path; p != "." && p != "" && p != filepath.Dir(p); p = filepath.Dir(p) {
		if matched, _ := filepath.Match(pattern, p); matched {
			return true
		}
	}
	return false
}

// Apply returns a masked copy of the session state. The original is never
// modified.
func (f *PrivacyFilter) Apply(s *SessionState) *SessionState {
	masked := *s
	if f.MaskTitles && masked.Title != "" {
		masked.Title = shortHash(masked.Title)
	}
	if f.MaskWorkingDirs && masked.WorkingDir != "" {
		masked.WorkingDir = filepath.Base(masked.WorkingDir)
	}
	if f.MaskSessionIDs && masked.ID != "" {
		masked.ID = shortHash(masked.ID)
	}
	if f.MaskPIDs {
		masked.PID = 0
	}
	if f.MaskTmuxTargets {
		masked.TmuxTarget = ""
	}
	return &masked
}

// MaskID returns the session ID as it appears in filtered output, so
// per-session messages stay correlatable with masked snapshots.
func (f *PrivacyFilter) MaskID(id string) string {
	if f.MaskSessionIDs && id != "" {
		return shortHash(id)
	}
	return id
}

// FilterSlice returns the allowed sessions with masking applied.
func (f *PrivacyFilter) FilterSlice(sessions []*SessionState) []*SessionState {
	result := make([]*SessionState, 0, len(sessions))
	for _, s := range sessions {
		if !f.IsAllowed(s.WorkingDir) {
			continue
		}
		result = append(result, f.Apply(s))
	}
	return result
}

// IsNoop reports whether the filter masks nothing and filters nothing.
func (f *PrivacyFilter) IsNoop() bool {
	return !f.MaskTitles && !f.MaskWorkingDirs && !f.MaskSessionIDs &&
		!f.MaskPIDs && !f.MaskTmuxTargets &&
		len(f.AllowedPaths) == 0 && len(f.BlockedPaths) == 0
}

func shortHash(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h[:6])
}
