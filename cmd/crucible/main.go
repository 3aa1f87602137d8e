// Package main is the entry point for the Crucible simulation engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/crescentlabs/crucible/internal/catalog"
	"github.com/crescentlabs/crucible/internal/change"
	"github.com/crescentlabs/crucible/internal/config"
	"github.com/crescentlabs/crucible/internal/creature"
	"github.com/crescentlabs/crucible/internal/ipc"
	"github.com/crescentlabs/crucible/internal/store"
	"github.com/crescentlabs/crucible/internal/stress"
	"github.com/crescentlabs/crucible/internal/synthesis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to configuration JSON file")
	seedPath := flag.String("creatures", "", "path to creature seed YAML (default: creatures.yaml in the catalog dir)")
	maxTicks := flag.Int("ticks", 0, "stop after this many ticks (0 = run until interrupted)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("crucible %s (commit=%s, built=%s)\n", version, commit, date)
		os.Exit(0)
	}

	// Resolve config path: --config flag > CRUCIBLE_CONFIG env > auto-discover next to exe.
	path := *configPath
	if path == "" {
		path = os.Getenv("CRUCIBLE_CONFIG")
	}
	if path == "" {
		path = discoverConfig()
	}
	if path == "" {
		fatal("no config found. Place config.json next to the exe, use --config <path>, or set CRUCIBLE_CONFIG.")
	}

	cfg, err := config.Load(path)
	if err != nil {
		fatal(fmt.Sprintf("load config: %v", err))
	}

	log, err := zap.NewProduction()
	if err != nil {
		fatal(fmt.Sprintf("init logger: %v", err))
	}
	defer log.Sync()

	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		fatal(fmt.Sprintf("open database: %v", err))
	}
	defer db.Close()

	cat, err := catalog.Load(cfg.CatalogDir)
	if err != nil {
		fatal(fmt.Sprintf("load catalog: %v", err))
	}

	defs, err := stress.NewDefinitions(cat.Stressors, cat.Environments)
	if err != nil {
		fatal(fmt.Sprintf("build stressor definitions: %v", err))
	}
	registry := synthesis.NewRegistry()
	for _, rule := range cat.Rules {
		registry.Register(rule)
	}

	minLevel, err := cfg.ValidationLevel()
	if err != nil {
		fatal(fmt.Sprintf("validation level: %v", err))
	}

	sim := creature.NewSimulation(defs, registry, creature.EngineConfigs{
		Change: change.Config{
			HistoryCapacity:    cfg.HistoryCapacity,
			MinValidationLevel: minLevel,
		},
		Stress: stress.Config{
			Thresholds:      cfg.ThresholdConfigs(),
			LethalThreshold: cfg.LethalThreshold,
		},
		Synthesis: synthesis.Config{
			FormingThreshold:  cfg.Synthesis.FormingThreshold,
			CriticalFloor:     cfg.Synthesis.CriticalFloor,
			ProgressRate:      cfg.Synthesis.ProgressRate,
			DecayRate:         cfg.Synthesis.DecayRate,
			WeakCatalystFloor: cfg.Synthesis.WeakCatalystFloor,
			MaxLevel:          cfg.Synthesis.MaxLevel,
			Factors:           cfg.StabilityFactors(),
		},
	}, db, log)

	seed := *seedPath
	if seed == "" {
		seed = filepath.Join(cfg.CatalogDir, "creatures.yaml")
	}
	creatures, err := catalog.LoadCreatures(seed)
	if err != nil {
		fatal(fmt.Sprintf("load creatures: %v", err))
	}
	for _, sc := range creatures {
		if _, err := sim.Spawn(sc.ID, sc.Name, sc.Environment, sc.State); err != nil {
			fatal(fmt.Sprintf("spawn %s: %v", sc.ID, err))
		}
	}
	log.Info("population seeded",
		zap.Int("creatures", sim.Population()),
		zap.String("catalog", cfg.CatalogDir))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The inspection API is optional; it only runs when listen_addr is set.
	if cfg.ListenAddr != "" {
		handler := &ipc.Handler{
			Sim:       sim,
			DB:        db,
			ChangeLog: &store.ChangeLogRepo{},
			Stress:    &store.StressEventRepo{},
			Synthesis: &store.SynthesisEventRepo{},
		}
		srv := ipc.NewServer(handler, cfg.ListenAddr)
		go func() {
			log.Info("inspection api listening", zap.String("addr", cfg.ListenAddr))
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				log.Error("inspection api", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn("api shutdown", zap.Error(err))
			}
		}()
	}

	run(ctx, sim, cfg.TickSeconds, *maxTicks, log)
}

// run drives the tick loop until the context is cancelled, the tick budget is
// spent, or the population dies out.
func run(ctx context.Context, sim *creature.Simulation, tickSeconds float64, maxTicks int, log *zap.Logger) {
	ticker := time.NewTicker(time.Duration(tickSeconds * float64(time.Second)))
	defer ticker.Stop()

	ticks := 0
	for {
		select {
		case <-ctx.Done():
			log.Info("shutting down", zap.Int("ticks", ticks))
			return
		case <-ticker.C:
		}

		if err := sim.Tick(ctx, tickSeconds); err != nil {
			log.Error("tick failed", zap.Int("tick", ticks), zap.Error(err))
		}
		ticks++

		if sim.Population() == 0 {
			log.Warn("population extinct", zap.Int("ticks", ticks))
			return
		}
		if maxTicks > 0 && ticks >= maxTicks {
			log.Info("tick budget spent", zap.Int("ticks", ticks))
			return
		}
	}
}

// discoverConfig looks for config.json next to the executable, then in the cwd.
func discoverConfig() string {
	// Next to executable.
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "config.json")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	// Current working directory.
	if _, err := os.Stat("config.json"); err == nil {
		return "config.json"
	}
	return ""
}

func fatal(msg string) {
	fmt.Fprintf(os.Stderr, "ERROR: %s\n", msg)
	os.Exit(1)
}
