package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agent-pulse/pulse/internal/cue"
	"github.com/agent-pulse/pulse/internal/session"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yaml := `
server:
  port: 9090
  host: "0.0.0.0"
  auth_token: "deadbeef"
sources:
  tmux: false
  mock: true
monitor:
  health_threshold: 5
privacy:
  mask_working_dirs: true
  blocked_paths:
    - "/tmp/secret"
cues:
  claude:
    waiting:
      - 'Deploy now\?'
`
	if err := os.WriteFile(cfgPath, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.AuthToken != "deadbeef" {
		t.Errorf("Server.AuthToken = %q, want deadbeef", cfg.Server.AuthToken)
	}
	if cfg.Sources.Tmux {
		t.Error("Sources.Tmux = true, want false")
	}
	if !cfg.Sources.Mock {
		t.Error("Sources.Mock = false, want true")
	}
	if cfg.Monitor.HealthThreshold != 5 {
		t.Errorf("Monitor.HealthThreshold = %d, want 5", cfg.Monitor.HealthThreshold)
	}
	if !cfg.Privacy.MaskWorkingDirs {
		t.Error("Privacy.MaskWorkingDirs = false, want true")
	}
	if len(cfg.Privacy.BlockedPaths) != 1 || cfg.Privacy.BlockedPaths[0] != "/tmp/secret" {
		t.Errorf("Privacy.BlockedPaths = %v, want [/tmp/secret]", cfg.Privacy.BlockedPaths)
	}
	if len(cfg.Cues["claude"].Waiting) != 1 {
		t.Errorf("Cues[claude].Waiting = %v, want one pattern", cfg.Cues["claude"].Waiting)
	}

	// Defaults still apply for unspecified fields.
	if cfg.Monitor.PollInterval == 0 {
		t.Error("Monitor.PollInterval should have default, got 0")
	}
	if !cfg.Sources.Spool {
		t.Error("Sources.Spool should default to true")
	}
	if cfg.Monitor.SpoolDir == "" {
		t.Error("Monitor.SpoolDir should have default, got empty")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("Load() on missing file should return error")
	}
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("LoadOrDefault() error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want default %q", cfg.Server.Host, "127.0.0.1")
	}
	if !cfg.Sources.Spool || !cfg.Sources.Tmux {
		t.Error("Sources.Spool and Sources.Tmux should default to true")
	}
	if cfg.Sources.Mock {
		t.Error("Sources.Mock should default to false")
	}
	if !cfg.Stats.Enabled {
		t.Error("Stats.Enabled should default to true")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(cfgPath, []byte(":::not valid yaml"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(cfgPath)
	if err == nil {
		t.Fatal("Load() with invalid YAML should return error")
	}
}

func TestNewPrivacyFilter(t *testing.T) {
	pc := PrivacyConfig{
		MaskWorkingDirs: true,
		MaskSessionIDs:  true,
		MaskPIDs:        false,
		MaskTmuxTargets: true,
		AllowedPaths:    []string{"/home/user/*"},
		BlockedPaths:    []string{"/home/user/secret"},
	}

	pf := pc.NewPrivacyFilter()

	if !pf.MaskWorkingDirs {
		t.Error("MaskWorkingDirs not copied")
	}
	if !pf.MaskSessionIDs {
		t.Error("MaskSessionIDs not copied")
	}
	if pf.MaskPIDs {
		t.Error("MaskPIDs should be false")
	}
	if !pf.MaskTmuxTargets {
		t.Error("MaskTmuxTargets not copied")
	}
	if len(pf.AllowedPaths) != 1 || pf.AllowedPaths[0] != "/home/user/*" {
		t.Errorf("AllowedPaths = %v, want [/home/user/*]", pf.AllowedPaths)
	}
	if len(pf.BlockedPaths) != 1 || pf.BlockedPaths[0] != "/home/user/secret" {
		t.Errorf("BlockedPaths = %v, want [/home/user/secret]", pf.BlockedPaths)
	}
}

func TestNewPrivacyFilterZeroValue(t *testing.T) {
	pc := PrivacyConfig{}
	pf := pc.NewPrivacyFilter()

	if !pf.IsNoop() {
		t.Error("zero-value PrivacyConfig should produce a noop filter")
	}
}

func TestApplyCues(t *testing.T) {
	cfg := defaultConfig()
	cfg.Cues = map[string]CueConfig{
		"claude": {Waiting: []string{`(?m)^Continue\?$`}},
		"codex":  {Idle: []string{`ready for input`}},
	}

	lib := cue.DefaultLibrary()
	if got := lib.Detect(session.AgentClaude, "Continue?"); got != session.Inactive {
		t.Fatalf("pattern should not match before ApplyCues, got %v", got)
	}

	if err := cfg.ApplyCues(lib); err != nil {
		t.Fatalf("ApplyCues() error: %v", err)
	}

	if got := lib.Detect(session.AgentClaude, "Continue?"); got != session.Waiting {
		t.Errorf("Detect(claude) after ApplyCues = %v, want waiting", got)
	}
	if got := lib.Detect(session.AgentCodex, "ready for input"); got != session.Idle {
		t.Errorf("Detect(codex) after ApplyCues = %v, want idle", got)
	}
}

func TestApplyCuesBadPattern(t *testing.T) {
	cfg := defaultConfig()
	cfg.Cues = map[string]CueConfig{
		"claude": {Waiting: []string{"[unclosed"}},
	}

	err := cfg.ApplyCues(cue.DefaultLibrary())
	if err == nil {
		t.Fatal("ApplyCues() with bad regexp should return error")
	}
	if !strings.Contains(err.Error(), "cues.claude.waiting") {
		t.Errorf("error %q should name the offending section", err)
	}
}

func TestGenerateToken(t *testing.T) {
	tok, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken() error: %v", err)
	}
	if len(tok) != 32 { // 16 bytes = 32 hex chars
		t.Errorf("token length = %d, want 32", len(tok))
	}

	tok2, _ := GenerateToken()
	if tok == tok2 {
		t.Error("two generated tokens should not be identical")
	}
}

func TestDiffNoChanges(t *testing.T) {
	a := defaultConfig()
	b := defaultConfig()
	if changes := Diff(a, b); len(changes) != 0 {
		t.Errorf("Diff of identical configs = %v, want empty", changes)
	}
}

func TestDiffDetectsChanges(t *testing.T) {
	old := defaultConfig()
	updated := defaultConfig()

	updated.Server.Port = 9090
	updated.Sources.Mock = true
	updated.Privacy.MaskWorkingDirs = true
	updated.Privacy.BlockedPaths = []string{"/tmp/secret"}
	updated.Cues = map[string]CueConfig{"claude": {Waiting: []string{"x"}}}

	changes := Diff(old, updated)
	if len(changes) == 0 {
		t.Fatal("Diff should detect changes, got none")
	}

	found := map[string]bool{}
	for _, c := range changes {
		found[c] = true
	}

	want := []string{
		"server.port: 8080 → 9090",
		"sources.mock: false → true",
		"privacy.mask_working_dirs: false → true",
		"privacy.blocked_paths: [] → [/tmp/secret]",
		"cues: added claude",
	}
	for _, w := range want {
		if !found[w] {
			t.Errorf("missing expected change: %q\ngot: %v", w, changes)
		}
	}
}
