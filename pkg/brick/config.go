package brick

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

const DefaultConfigFile = "ctcontrol.json"

// Config holds the terminal configuration
type Config struct {
	// Backend is the registered name of the hardware backend.
	Backend string `json:"backend"`
	// Attributes are decoded by the backend into its own config.
	Attributes map[string]any `json:"attributes,omitempty"`
	// Lift replaces motor B and sensor S1 with a servo winch when set.
	Lift    map[string]any `json:"lift,omitempty"`
	Control ControlConfig  `json:"control"`
}

// ControlConfig holds the tunables of the control program.
// Zero values select the built-in defaults.
type ControlConfig struct {
	Hz              int `json:"hz,omitempty"`
	DefaultPower    int `json:"default_power,omitempty"`
	HomingPower     int `json:"homing_power,omitempty"`
	HomingDelayMs   int `json:"homing_delay_ms,omitempty"`
	HomingTimeoutMs int `json:"homing_timeout_ms,omitempty"`
}

// HasLift returns true if a lift winch is configured
func (c *Config) HasLift() bool {
	return len(c.Lift) > 0
}

// LoadConfig loads configuration from the default config file
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a specific file
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return &cfg, nil
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the default config file exists
func ConfigExists() bool {
	_, err := os.Stat(DefaultConfigFile)
	return err == nil
}
