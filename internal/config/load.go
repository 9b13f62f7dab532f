package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Load loads configuration with priority: defaults < file < flags.
func Load() (*Config, error) {
	cfg, _, err := LoadWithPath()
	return cfg, err
}

// LoadWithPath is Load that also reports the file it read, empty if none.
func LoadWithPath() (*Config, string, error) {
	cfg := Default()

	// Explicit path takes priority
	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, "", fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	// CLI flags win over the file
	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config: %w", err)
	}
	return cfg, configPath, nil
}

// Validate reports every setting that would break the projection or the
// scene generator.
func (c *Config) Validate() error {
	var err error
	g := c.Graphics
	if g.Width <= 0 || g.Height <= 0 {
		err = multierr.Append(err, fmt.Errorf("graphics size %dx%d must be positive", g.Width, g.Height))
	}
	if g.FOV <= 0 || g.FOV >= 180 {
		err = multierr.Append(err, fmt.Errorf("graphics fov %g out of range (0, 180)", g.FOV))
	}
	if g.Near <= 0 || g.Far <= g.Near {
		err = multierr.Append(err, fmt.Errorf("graphics near %g / far %g: need 0 < near < far", g.Near, g.Far))
	}
	s := c.Scene
	if s.GridSize < 1 {
		err = multierr.Append(err, fmt.Errorf("scene grid_size %d must be at least 1", s.GridSize))
	}
	if s.ChunkSize <= 0 {
		err = multierr.Append(err, fmt.Errorf("scene chunk_size %g must be positive", s.ChunkSize))
	}
	if s.Buildings < 0 || s.Props < 0 || s.Trees < 0 {
		err = multierr.Append(err, fmt.Errorf("scene object counts must not be negative"))
	}
	return err
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "MidgardVis")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "MidgardVis")
	default: // Linux and others
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "midgard-vis")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "midgard-vis")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return nil
}
