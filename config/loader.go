package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoaderOptions configures Load. Unlike the teacher's server-side loader,
// this one has no environment-specific file tier — a desktop node has no
// deploy environments — but keeps the same default-file / built-in-
// defaults / environment-variable-override layering.
type LoaderOptions struct {
	// Path overrides the config file location entirely.
	Path string
	// SkipEnvOverrides disables the RESONANCE_* environment variable layer.
	SkipEnvOverrides bool
}

// DefaultPath returns os.UserConfigDir()/resonance/config.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "resonance", "config.yaml"), nil
}

// Load loads the user config document, falling back to built-in defaults
// if no file exists yet, then applying any RESONANCE_* environment
// variable overrides (highest priority).
func Load(opts ...LoaderOptions) (*Config, error) {
	options := LoaderOptions{}
	if len(opts) > 0 {
		options = opts[0]
	}

	path := options.Path
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	var cfg *Config
	if _, statErr := os.Stat(path); statErr == nil {
		c, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = c
	} else {
		cfg = &Config{}
		setDefaults(cfg)
	}

	if !options.SkipEnvOverrides {
		applyEnvironmentOverrides(cfg)
	}
	return cfg, nil
}

// applyEnvironmentOverrides lets RESONANCE_* environment variables
// override whatever the file (or built-in defaults) supplied, following
// the teacher's applyEnvironmentOverrides precedence rule.
func applyEnvironmentOverrides(cfg *Config) {
	if v := os.Getenv("RESONANCE_USERNAME"); v != "" {
		cfg.Username = v
	}
	if v := os.Getenv("RESONANCE_AUDIO_INPUT_DEVICE"); v != "" {
		cfg.AudioInputDevice = v
	}
	if v := os.Getenv("RESONANCE_AUDIO_OUTPUT_DEVICE"); v != "" {
		cfg.AudioOutputDevice = v
	}
	if v := os.Getenv("RESONANCE_ICE_SERVERS"); v != "" {
		cfg.ICEServers = splitCSV(v)
	}
	if v := os.Getenv("RESONANCE_STUN_SERVERS"); v != "" {
		cfg.STUNServers = splitCSV(v)
	}
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// EnsureSaved writes cfg to path (creating its parent directory) if the
// file does not already exist — used on first run to persist a
// generated default Username/ICEServers/STUNServers set.
func EnsureSaved(cfg *Config, path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return SaveToFile(cfg, path)
}
