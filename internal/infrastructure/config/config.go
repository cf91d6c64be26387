package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
// This is an infrastructure component that loads configuration from environment variables.
type Config struct {
	Port        string
	LogLevel    string
	DatabaseDSN string

	// CellSizeDefault holds CELL_SIZE_DEFAULT. Nothing in this module reads
	// it: NewDeliberation falls back to 5 when DeliberationParams.CellSize
	// is below 2.
	CellSizeDefault int
	// XPBudgetDefault holds XP_BUDGET_DEFAULT. Nothing in this module reads
	// it: NewDeliberation falls back to cellSize*2 when
	// DeliberationParams.XPBudget is not positive.
	XPBudgetDefault int
	// SchedulerInterval is the Scheduler's tick cadence.
	SchedulerInterval time.Duration
	// UpPollinationThresholdRatio is the fraction of a cell's voters whose
	// upvote triggers up-pollination, absent an override.
	UpPollinationThresholdRatio float64
}

// Load creates a new Config instance by reading environment variables.
func Load() *Config {
	return &Config{
		Port:                        getEnv("PORT", "8080"),
		LogLevel:                    getEnv("LOG_LEVEL", "info"),
		DatabaseDSN:                 getEnv("DATABASE_DSN", ""),
		CellSizeDefault:             getEnvInt("CELL_SIZE_DEFAULT", 5),
		XPBudgetDefault:             getEnvInt("XP_BUDGET_DEFAULT", 10),
		SchedulerInterval:           getEnvDuration("SCHEDULER_INTERVAL", 15*time.Second),
		UpPollinationThresholdRatio: getEnvFloat("UP_POLLINATION_THRESHOLD_RATIO", 0.6),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// GetPortInt returns the port as an integer.
func (c *Config) GetPortInt() int {
	p, _ := strconv.Atoi(c.Port)
	return p
}

// Preset is a named bundle of deliberation-formation knobs, loaded from
// YAML so operators can hand organizers a menu ("town-hall", "sprint-retro",
// "large-conference") instead of hand-tuning env vars per deliberation.
type Preset struct {
	Name                        string   `yaml:"name"`
	CellSize                    int      `yaml:"cellSize"`
	XPBudget                    int      `yaml:"xpBudget"`
	VotingTimeoutMs             int64    `yaml:"votingTimeoutMs"`
	SecondVoteTimeoutMs         *int64   `yaml:"secondVoteTimeoutMs,omitempty"`
	AccumulationTimeoutMs       *int64   `yaml:"accumulationTimeoutMs,omitempty"`
	ContinuousFlow              bool     `yaml:"continuousFlow"`
	AccumulationEnabled         bool     `yaml:"accumulationEnabled"`
	UpPollinationThresholdRatio *float64 `yaml:"upPollinationThresholdRatio,omitempty"`
}

// PresetFile is the top-level shape of a presets YAML document.
type PresetFile struct {
	Presets []Preset `yaml:"presets"`
}

// LoadPresets parses a YAML presets document (see PresetFile) from raw
// bytes, as produced by reading a config file from disk or an embedded FS.
func LoadPresets(data []byte) ([]Preset, error) {
	var f PresetFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing deliberation presets: %w", err)
	}
	return f.Presets, nil
}

// FindPreset returns the named preset, or ok=false if no such preset exists.
func FindPreset(presets []Preset, name string) (Preset, bool) {
	for _, p := range presets {
		if p.Name == name {
			return p, true
		}
	}
	return Preset{}, false
}
