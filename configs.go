package deliberation

import "github.com/fractalvote/deliberation/internal/infrastructure/config"

// Re-export the env-driven Config and YAML Preset types for public use.
type (
	Config     = config.Config
	Preset     = config.Preset
	PresetFile = config.PresetFile
)

// LoadConfig reads Config from the environment.
func LoadConfig() *Config {
	return config.Load()
}

// LoadPresets parses a YAML preset bundle (cellSize/XP-budget/timeout
// presets such as "town-hall", "sprint-retro").
func LoadPresets(data []byte) ([]Preset, error) {
	return config.LoadPresets(data)
}

// FindPreset looks up a preset by name.
func FindPreset(presets []Preset, name string) (Preset, bool) {
	return config.FindPreset(presets, name)
}
