package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/prdloop/prdloop/internal/supervisor"
)

// Config represents the .prd/config.json configuration file
type Config struct {
	Version     string   `json:"version"`
	AgentBinary string   `json:"agent_binary"`
	Convert     Workflow `json:"convert"`
	Observe     Workflow `json:"observe"`
}

// Workflow contains per-workflow agent settings
type Workflow struct {
	Model          string `json:"model"`
	TimeoutMinutes int    `json:"timeout_minutes"`
}

// GenerateDefault creates a new Config with default values
func GenerateDefault() *Config {
	return &Config{
		Version:     "1.0",
		AgentBinary: supervisor.DefaultBinary,
		Convert: Workflow{
			Model:          string(supervisor.ModelSonnet),
			TimeoutMinutes: 15,
		},
		Observe: Workflow{
			Model:          string(supervisor.ModelHaiku),
			TimeoutMinutes: 10,
		},
	}
}

// Validate checks the configuration for errors and returns user-friendly error messages
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("configuration error: missing required field 'version'\n\nHint: Add a version field like:\n  \"version\": \"1.0\"")
	}

	if c.AgentBinary == "" {
		return fmt.Errorf("configuration error: missing required field 'agent_binary'\n\nHint: Name the agent CLI executable:\n  \"agent_binary\": \"claude\"")
	}

	workflows := map[string]Workflow{
		"convert": c.Convert,
		"observe": c.Observe,
	}
	for name, wf := range workflows {
		if err := wf.Validate(name); err != nil {
			return err
		}
	}

	return nil
}

// Validate checks a workflow configuration for errors
func (w Workflow) Validate(name string) error {
	if _, err := supervisor.ParseModel(w.Model); err != nil {
		return fmt.Errorf("configuration error: workflow '%s' has invalid 'model': %w\n\nHint: Pick one of opus, sonnet, or haiku:\n  \"model\": \"sonnet\"", name, err)
	}

	if w.TimeoutMinutes < 1 {
		return fmt.Errorf("configuration error: workflow '%s' has invalid 'timeout_minutes' value: %d\n\nHint: The inactivity timeout must be at least one minute:\n  \"timeout_minutes\": 15", name, w.TimeoutMinutes)
	}

	return nil
}

// LoadFromFile loads a configuration from a JSON file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &cfg, nil
}

// SaveToFile writes the configuration to a JSON file with 0600 permissions
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Add newline at end of file
	data = append(data, '\n')

	// Write with 0600 permissions (owner read/write only)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}
