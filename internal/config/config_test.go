package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/crescentlabs/crucible/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalConfig = `{"db_path": "crucible.db", "catalog_dir": "catalog"}`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.HistoryCapacity != 100 {
		t.Errorf("history capacity = %d, want 100", cfg.HistoryCapacity)
	}
	if cfg.MinValidationLevel != "warning" {
		t.Errorf("validation level = %q, want warning", cfg.MinValidationLevel)
	}
	if cfg.LethalThreshold != 0.9 {
		t.Errorf("lethal threshold = %f, want 0.9", cfg.LethalThreshold)
	}
	if cfg.TickSeconds != 1.0 {
		t.Errorf("tick seconds = %f, want 1.0", cfg.TickSeconds)
	}
	if cfg.Synthesis.FormingThreshold != 0.67 || cfg.Synthesis.MaxLevel != 3 {
		t.Errorf("synthesis defaults wrong: %+v", cfg.Synthesis)
	}
	if len(cfg.Thresholds) != 5 {
		t.Errorf("thresholds = %d, want the full default ladder", len(cfg.Thresholds))
	}
	if th := cfg.Thresholds["synthesis_enabled"]; th.Value != 0.65 || !th.RequiresContinuous {
		t.Errorf("synthesis_enabled threshold wrong: %+v", th)
	}
}

func TestLoad_ExplicitValuesKept(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{
		"db_path": "x.db",
		"catalog_dir": "defs",
		"history_capacity": 25,
		"min_validation_level": "error",
		"thresholds": {"critical": {"value": 0.99, "duration": 1, "requires_continuous": true}}
	}`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.HistoryCapacity != 25 {
		t.Errorf("history capacity = %d, want 25", cfg.HistoryCapacity)
	}
	lvl, err := cfg.ValidationLevel()
	if err != nil || lvl != domain.ValidationError {
		t.Errorf("validation level = %v (%v), want error", lvl, err)
	}
	if len(cfg.Thresholds) != 1 {
		t.Errorf("explicit thresholds must not gain defaults: %v", cfg.Thresholds)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CRUCIBLE_DB_PATH", "/tmp/override.db")
	t.Setenv("CRUCIBLE_HISTORY_CAPACITY", "7")
	t.Setenv("CRUCIBLE_MIN_VALIDATION_LEVEL", "critical")

	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "/tmp/override.db" {
		t.Errorf("db path = %q, env override lost", cfg.DBPath)
	}
	if cfg.HistoryCapacity != 7 {
		t.Errorf("history capacity = %d, env override lost", cfg.HistoryCapacity)
	}
	if cfg.MinValidationLevel != "critical" {
		t.Errorf("validation level = %q, env override lost", cfg.MinValidationLevel)
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	cases := []struct {
		name string
		json string
	}{
		{"missing db path", `{"catalog_dir": "defs"}`},
		{"missing catalog dir", `{"db_path": "x.db"}`},
		{"bad validation level", `{"db_path": "x.db", "catalog_dir": "defs", "min_validation_level": "loose"}`},
		{"lethal out of range", `{"db_path": "x.db", "catalog_dir": "defs", "lethal_threshold": 1.5}`},
		{"forming threshold out of range", `{"db_path": "x.db", "catalog_dir": "defs", "synthesis": {"forming_threshold": 1.0}}`},
		{"unknown threshold name", `{"db_path": "x.db", "catalog_dir": "defs", "thresholds": {"mild_concern": {"value": 0.1}}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.json))
			if !errors.Is(err, domain.ErrConfigInvalid) {
				t.Fatalf("got %v, want a config error", err)
			}
		})
	}
}

func TestLoad_FileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("expected an error for a missing file")
	}
	if _, err := Load(writeConfig(t, `{not json`)); err == nil {
		t.Error("expected an error for malformed JSON")
	}
}

func TestThresholdConfigs(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	ths := cfg.ThresholdConfigs()
	if len(ths) != 5 {
		t.Fatalf("threshold configs = %d, want 5", len(ths))
	}
	if th := ths[domain.ThresholdCritical]; th.Value != 0.95 || !th.RequiresContinuous {
		t.Errorf("critical threshold wrong: %+v", th)
	}
	if th := ths[domain.ThresholdMinorAdaptation]; th.Value != 0.25 || th.RequiresContinuous {
		t.Errorf("minor adaptation threshold wrong: %+v", th)
	}
}

func TestStabilityFactors(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	f := cfg.StabilityFactors()
	if f.Base != 1.0 || f.LevelPenalty != 0.1 || f.MinStability != 0.2 {
		t.Errorf("stability factors wrong: %+v", f)
	}
}
