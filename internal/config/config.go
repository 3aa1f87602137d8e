// Package config loads the engine's runtime configuration from a JSON file,
// applies defaults and CRUCIBLE_* environment overrides, and validates.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"

	"github.com/crescentlabs/crucible/internal/domain"
)

// ThresholdEntry configures one stress threshold in the config file.
type ThresholdEntry struct {
	Value              float64 `json:"value"`
	Duration           float64 `json:"duration"`
	RequiresContinuous bool    `json:"requires_continuous"`
}

// SynthesisConfig holds the synthesis tunables.
type SynthesisConfig struct {
	FormingThreshold  float64 `json:"forming_threshold" env:"CRUCIBLE_FORMING_THRESHOLD"`
	CriticalFloor     float64 `json:"critical_floor"`
	ProgressRate      float64 `json:"progress_rate"`
	DecayRate         float64 `json:"decay_rate"`
	WeakCatalystFloor float64 `json:"weak_catalyst_floor"`
	MaxLevel          int     `json:"max_level"`
}

// StabilityConfig holds the stability factor tunables.
type StabilityConfig struct {
	Base               float64 `json:"base"`
	CatalystMultiplier float64 `json:"catalyst_multiplier"`
	LevelPenalty       float64 `json:"level_penalty"`
	MinStability       float64 `json:"min_stability"`
}

// Config holds the engine's runtime configuration.
type Config struct {
	DBPath             string                    `json:"db_path" env:"CRUCIBLE_DB_PATH"`
	CatalogDir         string                    `json:"catalog_dir" env:"CRUCIBLE_CATALOG_DIR"`
	ListenAddr         string                    `json:"listen_addr" env:"CRUCIBLE_LISTEN_ADDR"`
	HistoryCapacity    int                       `json:"history_capacity" env:"CRUCIBLE_HISTORY_CAPACITY"`
	MinValidationLevel string                    `json:"min_validation_level" env:"CRUCIBLE_MIN_VALIDATION_LEVEL"`
	LethalThreshold    float64                   `json:"lethal_threshold"`
	TickSeconds        float64                   `json:"tick_seconds" env:"CRUCIBLE_TICK_SECONDS"`
	Thresholds         map[string]ThresholdEntry `json:"thresholds"`
	Synthesis          SynthesisConfig           `json:"synthesis"`
	Stability          StabilityConfig           `json:"stability"`
}

// Load reads a JSON config file, applies defaults and environment overrides,
// and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config JSON: %w", err)
	}

	cfg.applyDefaults()

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HistoryCapacity == 0 {
		c.HistoryCapacity = 100
	}
	if c.MinValidationLevel == "" {
		c.MinValidationLevel = "warning"
	}
	if c.LethalThreshold == 0 {
		c.LethalThreshold = 0.9
	}
	if c.TickSeconds == 0 {
		c.TickSeconds = 1.0
	}
	if c.Synthesis.FormingThreshold == 0 {
		c.Synthesis.FormingThreshold = 0.67
	}
	if c.Synthesis.CriticalFloor == 0 {
		c.Synthesis.CriticalFloor = 0.1
	}
	if c.Synthesis.ProgressRate == 0 {
		c.Synthesis.ProgressRate = 0.25
	}
	if c.Synthesis.DecayRate == 0 {
		c.Synthesis.DecayRate = 0.05
	}
	if c.Synthesis.WeakCatalystFloor == 0 {
		c.Synthesis.WeakCatalystFloor = 0.1
	}
	if c.Synthesis.MaxLevel == 0 {
		c.Synthesis.MaxLevel = 3
	}
	if c.Stability.Base == 0 {
		c.Stability.Base = 1.0
	}
	if c.Stability.CatalystMultiplier == 0 {
		c.Stability.CatalystMultiplier = 1.0
	}
	if c.Stability.LevelPenalty == 0 {
		c.Stability.LevelPenalty = 0.1
	}
	if c.Stability.MinStability == 0 {
		c.Stability.MinStability = 0.2
	}
	if c.Thresholds == nil {
		c.Thresholds = map[string]ThresholdEntry{
			"minor_adaptation":  {Value: 0.25, Duration: 2},
			"major_adaptation":  {Value: 0.50, Duration: 3},
			"synthesis_enabled": {Value: 0.65, Duration: 2, RequiresContinuous: true},
			"extinction_risk":   {Value: 0.80, Duration: 2, RequiresContinuous: true},
			"critical":          {Value: 0.95, Duration: 1, RequiresContinuous: true},
		}
	}
}

func (c *Config) validate() error {
	var problems []string

	if c.DBPath == "" {
		problems = append(problems, "db_path is required")
	}
	if c.CatalogDir == "" {
		problems = append(problems, "catalog_dir is required")
	}
	if _, err := c.ValidationLevel(); err != nil {
		problems = append(problems, fmt.Sprintf("min_validation_level %q is not one of warning/error/critical", c.MinValidationLevel))
	}
	if c.LethalThreshold <= 0 || c.LethalThreshold > 1 {
		problems = append(problems, "lethal_threshold must be in (0,1]")
	}
	if c.Synthesis.FormingThreshold <= 0 || c.Synthesis.FormingThreshold >= 1 {
		problems = append(problems, "synthesis.forming_threshold must be in (0,1)")
	}
	for name := range c.Thresholds {
		if _, err := parseThresholdKind(name); err != nil {
			problems = append(problems, fmt.Sprintf("unknown threshold %q", name))
		}
	}

	if len(problems) > 0 {
		return &domain.EngineError{
			Code:    domain.ErrConfigInvalid.Code,
			Message: fmt.Sprintf("%s: %v", domain.ErrConfigInvalid.Message, problems),
		}
	}
	return nil
}

// ValidationLevel parses the configured minimum validation level.
func (c *Config) ValidationLevel() (domain.ValidationLevel, error) {
	switch c.MinValidationLevel {
	case "warning":
		return domain.ValidationWarning, nil
	case "error":
		return domain.ValidationError, nil
	case "critical":
		return domain.ValidationCritical, nil
	default:
		return 0, fmt.Errorf("unknown validation level %q", c.MinValidationLevel)
	}
}

func parseThresholdKind(name string) (domain.ThresholdKind, error) {
	for _, k := range domain.ThresholdKinds {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown threshold %q", name)
}

// ThresholdConfigs converts the configured threshold map to domain form.
func (c *Config) ThresholdConfigs() map[domain.ThresholdKind]domain.ThresholdConfig {
	out := make(map[domain.ThresholdKind]domain.ThresholdConfig, len(c.Thresholds))
	for name, entry := range c.Thresholds {
		kind, err := parseThresholdKind(name)
		if err != nil {
			continue
		}
		out[kind] = domain.ThresholdConfig{
			Value:              entry.Value,
			Duration:           entry.Duration,
			RequiresContinuous: entry.RequiresContinuous,
		}
	}
	return out
}

// StabilityFactors converts the stability tunables to domain form.
func (c *Config) StabilityFactors() domain.StabilityFactors {
	return domain.StabilityFactors{
		Base:               c.Stability.Base,
		CatalystMultiplier: c.Stability.CatalystMultiplier,
		LevelPenalty:       c.Stability.LevelPenalty,
		MinStability:       c.Stability.MinStability,
	}
}
