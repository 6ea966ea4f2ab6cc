// Package config loads the daemon configuration from YAML, applying
// defaults for anything the file leaves unset.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agent-pulse/pulse/internal/cue"
	"github.com/agent-pulse/pulse/internal/session"
)

type Config struct {
	Server  ServerConfig         `yaml:"server"`
	Monitor MonitorConfig        `yaml:"monitor"`
	Sources SourcesConfig        `yaml:"sources"`
	Privacy PrivacyConfig        `yaml:"privacy"`
	Cues    map[string]CueConfig `yaml:"cues"`
	Stats   StatsConfig          `yaml:"stats"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AuthToken      string   `yaml:"auth_token"`
	MaxClients     int      `yaml:"max_clients"`
}

type MonitorConfig struct {
	PollInterval      time.Duration `yaml:"poll_interval"`
	SpoolDir          string        `yaml:"spool_dir"`
	StaleAfter        time.Duration `yaml:"stale_after"`
	RemoveAfter       time.Duration `yaml:"remove_after"`
	BroadcastThrottle time.Duration `yaml:"broadcast_throttle"`
	SnapshotInterval  time.Duration `yaml:"snapshot_interval"`
	HealthThreshold   int           `yaml:"health_threshold"`
}

// SourcesConfig doubles as the /api/config payload, so it carries JSON
// tags alongside the YAML ones.
type SourcesConfig struct {
	Spool bool `yaml:"spool" json:"spool"`
	Tmux  bool `yaml:"tmux" json:"tmux"`
	Mock  bool `yaml:"mock" json:"mock"`
}

type PrivacyConfig struct {
	MaskTitles      bool     `yaml:"mask_titles"`
	MaskWorkingDirs bool     `yaml:"mask_working_dirs"`
	MaskSessionIDs  bool     `yaml:"mask_session_ids"`
	MaskPIDs        bool     `yaml:"mask_pids"`
	MaskTmuxTargets bool     `yaml:"mask_tmux_targets"`
	AllowedPaths    []string `yaml:"allowed_paths"`
	BlockedPaths    []string `yaml:"blocked_paths"`
}

// CueConfig holds extra classifier patterns for one agent type. Entries
// are regular expressions compiled at load time.
type CueConfig struct {
	Waiting []string `yaml:"waiting"`
	Idle    []string `yaml:"idle"`
}

type StatsConfig struct {
	Enabled      bool          `yaml:"enabled"`
	SaveInterval time.Duration `yaml:"save_interval"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           8080,
			AllowedOrigins: []string{"localhost", "127.0.0.1"},
		},
		Monitor: MonitorConfig{
			PollInterval:      time.Second,
			SpoolDir:          filepath.Join(os.TempDir(), "agent-pulse"),
			StaleAfter:        5 * time.Minute,
			RemoveAfter:       30 * time.Minute,
			BroadcastThrottle: 100 * time.Millisecond,
			SnapshotInterval:  5 * time.Second,
			HealthThreshold:   3,
		},
		Sources: SourcesConfig{
			Spool: true,
			Tmux:  true,
		},
		Stats: StatsConfig{
			Enabled:      true,
			SaveInterval: 30 * time.Second,
		},
	}
}

// Load reads the YAML file at path over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields the defaults
// instead of an error.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if os.IsNotExist(err) {
		return defaultConfig(), nil
	}
	return cfg, err
}

// NewPrivacyFilter converts the config section into the filter applied
// before session state leaves the process.
func (pc PrivacyConfig) NewPrivacyFilter() *session.PrivacyFilter {
	return &session.PrivacyFilter{
		MaskTitles:      pc.MaskTitles,
		MaskWorkingDirs: pc.MaskWorkingDirs,
		MaskSessionIDs:  pc.MaskSessionIDs,
		MaskPIDs:        pc.MaskPIDs,
		MaskTmuxTargets: pc.MaskTmuxTargets,
		AllowedPaths:    pc.AllowedPaths,
		BlockedPaths:    pc.BlockedPaths,
	}
}

// ApplyCues compiles the configured extra patterns into lib. The first
// bad pattern aborts with its agent and expression named.
func (c *Config) ApplyCues(lib *cue.Library) error {
	agents := make([]string, 0, len(c.Cues))
	for agent := range c.Cues {
		agents = append(agents, agent)
	}
	sort.Strings(agents)

	for _, agent := range agents {
		cc := c.Cues[agent]
		typ := session.NormalizeAgentType(agent)
		for _, expr := range cc.Waiting {
			if err := lib.AddWaiting(typ, "config", expr); err != nil {
				return fmt.Errorf("cues.%s.waiting: %w", agent, err)
			}
		}
		for _, expr := range cc.Idle {
			if err := lib.AddIdle(typ, "config", expr); err != nil {
				return fmt.Errorf("cues.%s.idle: %w", agent, err)
			}
		}
	}
	return nil
}

// GenerateToken returns a fresh 32-hex-char auth token.
func GenerateToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Diff reports the settings that changed between two configs, one
// human-readable line per change. Used to log what a reload picked up.
func Diff(old, new *Config) []string {
	var changes []string

	add := func(format string, args ...any) {
		changes = append(changes, fmt.Sprintf(format, args...))
	}

	if old.Server.Host != new.Server.Host {
		add("server.host: %s → %s", old.Server.Host, new.Server.Host)
	}
	if old.Server.Port != new.Server.Port {
		add("server.port: %d → %d", old.Server.Port, new.Server.Port)
	}
	if fmt.Sprint(old.Server.AllowedOrigins) != fmt.Sprint(new.Server.AllowedOrigins) {
		add("server.allowed_origins: %v → %v", old.Server.AllowedOrigins, new.Server.AllowedOrigins)
	}
	if old.Server.AuthToken != new.Server.AuthToken {
		add("server.auth_token: changed")
	}
	if old.Server.MaxClients != new.Server.MaxClients {
		add("server.max_clients: %d → %d", old.Server.MaxClients, new.Server.MaxClients)
	}

	if old.Monitor.PollInterval != new.Monitor.PollInterval {
		add("monitor.poll_interval: %s → %s", old.Monitor.PollInterval, new.Monitor.PollInterval)
	}
	if old.Monitor.SpoolDir != new.Monitor.SpoolDir {
		add("monitor.spool_dir: %s → %s", old.Monitor.SpoolDir, new.Monitor.SpoolDir)
	}
	if old.Monitor.StaleAfter != new.Monitor.StaleAfter {
		add("monitor.stale_after: %s → %s", old.Monitor.StaleAfter, new.Monitor.StaleAfter)
	}
	if old.Monitor.RemoveAfter != new.Monitor.RemoveAfter {
		add("monitor.remove_after: %s → %s", old.Monitor.RemoveAfter, new.Monitor.RemoveAfter)
	}
	if old.Monitor.BroadcastThrottle != new.Monitor.BroadcastThrottle {
		add("monitor.broadcast_throttle: %s → %s", old.Monitor.BroadcastThrottle, new.Monitor.BroadcastThrottle)
	}
	if old.Monitor.SnapshotInterval != new.Monitor.SnapshotInterval {
		add("monitor.snapshot_interval: %s → %s", old.Monitor.SnapshotInterval, new.Monitor.SnapshotInterval)
	}
	if old.Monitor.HealthThreshold != new.Monitor.HealthThreshold {
		add("monitor.health_threshold: %d → %d", old.Monitor.HealthThreshold, new.Monitor.HealthThreshold)
	}

	if old.Sources.Spool != new.Sources.Spool {
		add("sources.spool: %t → %t", old.Sources.Spool, new.Sources.Spool)
	}
	if old.Sources.Tmux != new.Sources.Tmux {
		add("sources.tmux: %t → %t", old.Sources.Tmux, new.Sources.Tmux)
	}
	if old.Sources.Mock != new.Sources.Mock {
		add("sources.mock: %t → %t", old.Sources.Mock, new.Sources.Mock)
	}

	if old.Privacy.MaskTitles != new.Privacy.MaskTitles {
		add("privacy.mask_titles: %t → %t", old.Privacy.MaskTitles, new.Privacy.MaskTitles)
	}
	if old.Privacy.MaskWorkingDirs != new.Privacy.MaskWorkingDirs {
		add("privacy.mask_working_dirs: %t → %t", old.Privacy.MaskWorkingDirs, new.Privacy.MaskWorkingDirs)
	}
	if old.Privacy.MaskSessionIDs != new.Privacy.MaskSessionIDs {
		add("privacy.mask_session_ids: %t → %t", old.Privacy.MaskSessionIDs, new.Privacy.MaskSessionIDs)
	}
	if old.Privacy.MaskPIDs != new.Privacy.MaskPIDs {
		add("privacy.mask_pids: %t → %t", old.Privacy.MaskPIDs, new.Privacy.MaskPIDs)
	}
	if old.Privacy.MaskTmuxTargets != new.Privacy.MaskTmuxTargets {
		add("privacy.mask_tmux_targets: %t → %t", old.Privacy.MaskTmuxTargets, new.Privacy.MaskTmuxTargets)
	}
	if fmt.Sprint(old.Privacy.AllowedPaths) != fmt.Sprint(new.Privacy.AllowedPaths) {
		add("privacy.allowed_paths: %v → %v", old.Privacy.AllowedPaths, new.Privacy.AllowedPaths)
	}
	if fmt.Sprint(old.Privacy.BlockedPaths) != fmt.Sprint(new.Privacy.BlockedPaths) {
		add("privacy.blocked_paths: %v → %v", old.Privacy.BlockedPaths, new.Privacy.BlockedPaths)
	}

	for _, agent := range cueAgents(old, new) {
		oc, inOld := old.Cues[agent]
		nc, inNew := new.Cues[agent]
		switch {
		case !inOld:
			add("cues: added %s", agent)
		case !inNew:
			add("cues: removed %s", agent)
		case fmt.Sprint(oc) != fmt.Sprint(nc):
			add("cues.%s: patterns changed", agent)
		}
	}

	if old.Stats.Enabled != new.Stats.Enabled {
		add("stats.enabled: %t → %t", old.Stats.Enabled, new.Stats.Enabled)
	}
	if old.Stats.SaveInterval != new.Stats.SaveInterval {
		add("stats.save_interval: %s → %s", old.Stats.SaveInterval, new.Stats.SaveInterval)
	}

	return changes
}

func cueAgents(old, new *Config) []string {
	seen := map[string]bool{}
	for agent := range old.Cues {
		seen[agent] = true
	}
	for agent := range new.Cues {
		seen[agent] = true
	}
	agents := make([]string, 0, len(seen))
	for agent := range seen {
		agents = append(agents, agent)
	}
	sort.Strings(agents)
	return agents
}
