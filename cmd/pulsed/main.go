package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/agent-pulse/pulse/internal/activity"
	"github.com/agent-pulse/pulse/internal/config"
	"github.com/agent-pulse/pulse/internal/cue"
	"github.com/agent-pulse/pulse/internal/frontend"
	"github.com/agent-pulse/pulse/internal/mock"
	"github.com/agent-pulse/pulse/internal/monitor"
	"github.com/agent-pulse/pulse/internal/session"
	"github.com/agent-pulse/pulse/internal/stats"
	"github.com/agent-pulse/pulse/internal/ws"
)

// spoolDiscoverWindow is how far back discovery looks at capture file
// mtimes. Files untouched for longer stop being discovered entirely;
// silence pruning handles everything shorter.
const spoolDiscoverWindow = 24 * time.Hour

func main() {
	mockMode := flag.Bool("mock", false, "Run with scripted demo sessions instead of real sources")
	devMode := flag.Bool("dev", false, "Development mode (serve frontend from filesystem)")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	genToken := flag.Bool("gen-token", false, "Print a fresh auth token and exit")
	flag.Parse()

	if *genToken {
		token, err := config.GenerateToken()
		if err != nil {
			log.Fatalf("Failed to generate token: %v", err)
		}
		fmt.Println(token)
		return
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *port > 0 {
		cfg.Server.Port = *port
	}

	library := cue.DefaultLibrary()
	if err := cfg.ApplyCues(library); err != nil {
		log.Fatalf("Failed to apply configured cues: %v", err)
	}

	store := session.NewStore()
	broadcaster := ws.NewBroadcaster(store, cfg.Monitor.BroadcastThrottle, cfg.Monitor.SnapshotInterval, cfg.Server.MaxClients)
	broadcaster.SetPrivacyFilter(cfg.Privacy.NewPrivacyFilter())
	engine := activity.NewEngine(library)

	frontendDir := ""
	if *devMode {
		exe, _ := os.Executable()
		frontendDir = filepath.Join(filepath.Dir(exe), "..", "..", "internal", "frontend", "static")
		// If running with go run, the exe path is in a temp dir, use CWD instead
		if _, err := os.Stat(frontendDir); os.IsNotExist(err) {
			cwd, _ := os.Getwd()
			frontendDir = filepath.Join(cwd, "internal", "frontend", "static")
		}
	}

	server := ws.NewServer(cfg, store, broadcaster)
	server.SetFrontend(frontendDir, *devMode, frontend.Handler())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var statsEvents chan<- session.Event
	var statsDone chan struct{}
	if cfg.Stats.Enabled {
		persist := stats.NewStore("")
		tracker, events, err := stats.NewTracker(persist, cfg.Stats.SaveInterval)
		if err != nil {
			log.Fatalf("Failed to load stats: %v", err)
		}
		statsEvents = events
		statsDone = make(chan struct{})
		go func() {
			tracker.Run(ctx)
			close(statsDone)
		}()
		server.SetStatsTracker(tracker)
		log.Printf("[stats] tracking to %s", persist.Path())
	}

	var mon *monitor.Monitor
	if *mockMode || cfg.Sources.Mock {
		log.Println("Starting in mock mode")
		gen := mock.NewGenerator(store, broadcaster, engine)
		gen.SetStatsEvents(statsEvents)
		gen.Start(ctx)
	} else {
		log.Println("Starting in monitor mode")
		mon = monitor.NewMonitor(cfg, store, broadcaster, engine, buildSources(cfg))
		mon.SetStatsEvents(statsEvents)
		go mon.Start(ctx)
	}

	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	reloadCh := make(chan os.Signal, 1)
	signal.Notify(reloadCh, syscall.SIGHUP)
	go func() {
		for range reloadCh {
			newCfg, err := config.LoadOrDefault(*configPath)
			if err != nil {
				log.Printf("Reload failed, keeping old config: %v", err)
				continue
			}
			if *port > 0 {
				newCfg.Server.Port = *port
			}
			for _, change := range config.Diff(cfg, newCfg) {
				log.Printf("[config] %s", change)
			}
			// Cue tables are append-only on the shared library; edits to
			// them take effect on restart, not reload.
			broadcaster.SetPrivacyFilter(newCfg.Privacy.NewPrivacyFilter())
			if mon != nil {
				mon.SetConfig(newCfg)
				mon.SetSources(buildSources(newCfg))
			}
			cfg = newCfg
			log.Println("Config reloaded")
		}
	}()

	go func() {
		<-sigCh
		log.Println("Shutting down...")
		cancel()
		broadcaster.Stop()
		if statsDone != nil {
			// Wait for the tracker's final save.
			<-statsDone
		}
		os.Exit(0)
	}()

	if err := ws.ListenAndServe(cfg.Server.Host, cfg.Server.Port, mux); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// buildSources assembles the enabled sources. The tmux capture dir
// nests under the spool dir, so one config knob places both.
func buildSources(cfg *config.Config) []monitor.Source {
	var sources []monitor.Source
	if cfg.Sources.Spool {
		sources = append(sources, monitor.NewSpoolSource(cfg.Monitor.SpoolDir, spoolDiscoverWindow))
	}
	if cfg.Sources.Tmux {
		sources = append(sources, monitor.NewTmuxSource(cfg.Monitor.SpoolDir))
	}
	return sources
}
