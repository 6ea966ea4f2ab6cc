package session

import "testing"

func TestPrivacyFilterZeroValueAllowsEverything(t *testing.T) {
	var f PrivacyFilter
	if !f.IsNoop() {
		t.Error("zero filter IsNoop() = false, want true")
	}
	if !f.IsAllowed("/home/user/project") {
		t.Error("zero filter blocked a path")
	}
	s := &SessionState{ID: "a", Title: "proj", WorkingDir: "/home/user/project", PID: 42}
	got := f.Apply(s)
	if *got != *s {
		t.Errorf("zero filter modified state: %+v", got)
	}
}

func TestPrivacyFilterAllowlist(t *testing.T) {
	f := PrivacyFilter{AllowedPaths: []string{"/home/user/work/*"}}

	tests := []struct {
		dir     string
		allowed bool
	}{
		{"/home/user/work/project-a", true},
		{"/home/user/work/nested/deep/project", true},
		{"/home/user/personal/diary", false},
		{"", true},
	}

	for _, tt := range tests {
		if got := f.IsAllowed(tt.dir); got != tt.allowed {
			t.Errorf("IsAllowed(%q) = %v, want %v", tt.dir, got, tt.allowed)
		}
	}
}

func TestPrivacyFilterBlocklistWinsAfterAllowlist(t *testing.T) {
	f := PrivacyFilter{
		AllowedPaths: []string{"/home/user/*"},
		BlockedPaths: []string{"/home/user/secrets"},
	}

	if !f.IsAllowed("/home/user/work") {
		t.Error("allowed path was blocked")
	}
	if f.IsAllowed("/home/user/secrets/vault") {
		t.Error("blocked path was allowed")
	}
}

func TestPrivacyFilterMasking(t *testing.T) {
	f := PrivacyFilter{
		MaskTitles:      true,
		MaskWorkingDirs: true,
		MaskSessionIDs:  true,
		MaskPIDs:        true,
		MaskTmuxTargets: true,
	}
	s := &SessionState{
		ID:         "spool:abc123",
		Title:      "secret-project",
		WorkingDir: "/home/user/secret-project",
		PID:        1234,
		TmuxTarget: "main:1.2",
	}

	got := f.Apply(s)

	if got.ID == s.ID || got.ID == "" {
		t.Errorf("ID not masked: %q", got.ID)
	}
	if got.Title == s.Title || got.Title == "" {
		t.Errorf("Title not masked: %q", got.Title)
	}
	if got.WorkingDir != "secret-project" {
		t.Errorf("WorkingDir = %q, want basename only", got.WorkingDir)
	}
	if got.PID != 0 {
		t.Errorf("PID = %d, want 0", got.PID)
	}
	if got.TmuxTarget != "" {
		t.Errorf("TmuxTarget = %q, want empty", got.TmuxTarget)
	}

	// Original untouched.
	if s.PID != 1234 || s.ID != "spool:abc123" {
		t.Error("Apply mutated the original state")
	}
}

func TestPrivacyFilterMaskingIsStable(t *testing.T) {
	f := PrivacyFilter{MaskSessionIDs: true}
	s := &SessionState{ID: "spool:abc123"}

	a := f.Apply(s)
	b := f.Apply(s)
	if a.ID != b.ID {
		t.Errorf("masked IDs differ across calls: %q vs %q", a.ID, b.ID)
	}
}

func TestMaskIDMatchesApply(t *testing.T) {
	f := PrivacyFilter{MaskSessionIDs: true}
	s := &SessionState{ID: "tmux:%42"}

	if got, want := f.MaskID(s.ID), f.Apply(s).ID; got != want {
		t.Errorf("MaskID = %q, Apply produced %q", got, want)
	}

	off := PrivacyFilter{}
	if got := off.MaskID("tmux:%42"); got != "tmux:%42" {
		t.Errorf("MaskID with masking off = %q, want identity", got)
	}
}

func TestFilterSlice(t *testing.T) {
	f := PrivacyFilter{BlockedPaths: []string{"/blocked/*"}}
	sessions := []*SessionState{
		{ID: "a", WorkingDir: "/ok/project"},
		{ID: "b", WorkingDir: "/blocked/project"},
		{ID: "c", WorkingDir: ""},
	}

	got := f.FilterSlice(sessions)
	if len(got) != 2 {
		t.Fatalf("FilterSlice returned %d sessions, want 2", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("FilterSlice kept wrong sessions: %v, %v", got[0].ID, got[1].ID)
	}
}
