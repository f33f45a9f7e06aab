// Package config holds the settings of a single search run.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RunConfig configures one search. It is read from YAML by the CLI and from
// JSON by the job server.
type RunConfig struct {
	Problem       string `yaml:"problem" json:"problem"`
	MaxIterations int    `yaml:"maxIterations" json:"maxIterations"`
	PopulationCap int    `yaml:"populationCap" json:"populationCap"`
	Seed          uint64 `yaml:"seed" json:"seed"`
	// Top is the number of best iterations kept in reports.
	Top int `yaml:"top" json:"top"`

	// Optional overrides of the problem's own settings.
	DesignThreshold   *float64 `yaml:"designThreshold,omitempty" json:"designThreshold,omitempty"`
	ModifierThreshold *float64 `yaml:"modifierThreshold,omitempty" json:"modifierThreshold,omitempty"`
	StopAt            *float64 `yaml:"stopAt,omitempty" json:"stopAt,omitempty"` // portion of the perfect score
}

// Default returns the settings used when nothing else is given.
func Default() RunConfig {
	return RunConfig{
		Problem:       "guess",
		MaxIterations: 10000,
		PopulationCap: 1000,
		Top:           5,
	}
}

// Load reads a YAML file on top of the defaults and validates the result.
func Load(path string) (RunConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config as YAML.
func (c RunConfig) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks that every setting is in range.
func (c RunConfig) Validate() error {
	if c.Problem == "" {
		return fmt.Errorf("problem is required")
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("maxIterations must be positive, got %d", c.MaxIterations)
	}
	if c.PopulationCap <= 0 {
		return fmt.Errorf("populationCap must be positive, got %d", c.PopulationCap)
	}
	if c.Top < 0 {
		return fmt.Errorf("top must not be negative, got %d", c.Top)
	}
	if err := checkProbability("designThreshold", c.DesignThreshold); err != nil {
		return err
	}
	if err := checkProbability("modifierThreshold", c.ModifierThreshold); err != nil {
		return err
	}
	if c.StopAt != nil && (*c.StopAt <= 0 || *c.StopAt > 1) {
		return fmt.Errorf("stopAt must be in (0, 1], got %v", *c.StopAt)
	}
	return nil
}

func checkProbability(name string, v *float64) error {
	if v != nil && (*v < 0 || *v > 1) {
		return fmt.Errorf("%s must be in [0, 1], got %v", name, *v)
	}
	return nil
}

// Float returns a pointer to v, for filling optional fields.
func Float(v float64) *float64 { return &v }
