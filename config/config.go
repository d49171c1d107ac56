// Package config loads the persistent per-user configuration document:
// display name, audio device selection, and the ICE/STUN server lists
// that drive Phase-2 signaling and Phase-1 reflexive-address discovery.
// It follows the teacher's config.Config/LoadFromFile/SaveToFile shape,
// scoped down to this system's handful of keys.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the full set of persistent user settings.
type Config struct {
	Username          string   `yaml:"username"`
	AudioInputDevice  string   `yaml:"audio_input_device"`
	AudioOutputDevice string   `yaml:"audio_output_device"`
	ICEServers        []string `yaml:"ice_servers"`
	STUNServers       []string `yaml:"stun_servers"`
}

// LoadFromFile reads and parses a YAML config document from path.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	setDefaults(cfg)
	return cfg, nil
}

// SaveToFile marshals cfg as YAML and writes it to path, creating parent
// directories as needed.
func SaveToFile(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// defaultUsername is spec.md §6's documented default for an unset
// username key.
const defaultUsername = "Anonymous"

func setDefaults(cfg *Config) {
	if cfg.Username == "" {
		cfg.Username = defaultUsername
	}
	if len(cfg.ICEServers) == 0 {
		cfg.ICEServers = []string{"stun:stun.l.google.com:19302"}
	}
	if len(cfg.STUNServers) == 0 {
		cfg.STUNServers = []string{"stun.l.google.com:19302"}
	}
}
