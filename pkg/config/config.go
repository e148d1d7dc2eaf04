// Package config loads launch configuration for the renderer and the preview server.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
)

// DefaultPath is where LoadDefault looks for a config file
const DefaultPath = "~/.config/scene-preview/config.toml"

// Config is the full launch configuration
type Config struct {
	Render RenderConfig `toml:"render"`
	Cache  CacheConfig  `toml:"cache"`
	Server ServerConfig `toml:"server"`
	Watch  WatchConfig  `toml:"watch"`
}

// RenderConfig sets the target image size and engine parallelism
type RenderConfig struct {
	Width    int `toml:"width"`
	Height   int `toml:"height"`
	TileSize int `toml:"tile_size"`
	Workers  int `toml:"workers"` // 0 means one per CPU
}

// CacheConfig sizes the mesh cache
type CacheConfig struct {
	Capacity int `toml:"capacity"`
}

// ServerConfig configures the preview server
type ServerConfig struct {
	Port         int      `toml:"port"`
	PollInterval Duration `toml:"poll_interval"`
	StaticDir    string   `toml:"static_dir"`
}

// WatchConfig configures re-rendering when the scene file changes
type WatchConfig struct {
	Enabled  bool     `toml:"enabled"`
	Debounce Duration `toml:"debounce"`
}

// Duration is a time.Duration written as a string like "250ms" in TOML
type Duration time.Duration

// UnmarshalText parses a duration string
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText formats the duration
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Default returns the configuration used when no file is present
func Default() Config {
	return Config{
		Render: RenderConfig{Width: 800, Height: 450, TileSize: 32},
		Cache:  CacheConfig{Capacity: 4},
		Server: ServerConfig{Port: 8080, PollInterval: Duration(50 * time.Millisecond)},
		Watch:  WatchConfig{Debounce: Duration(200 * time.Millisecond)},
	}
}

// Load reads a TOML file over the defaults. Unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	expanded, err := homedir.Expand(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to expand config path %q: %w", path, err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", expanded, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config file %s: %w", expanded, err)
	}
	if cfg.Server.StaticDir != "" {
		if cfg.Server.StaticDir, err = homedir.Expand(cfg.Server.StaticDir); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

// LoadDefault loads DefaultPath if it exists and falls back to Default otherwise
func LoadDefault() (Config, error) {
	cfg, err := Load(DefaultPath)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// MaxDimension is the exclusive upper bound for image width and height
const MaxDimension = 8000

// Validate checks value ranges
func (c Config) Validate() error {
	if c.Render.Width < 1 || c.Render.Width >= MaxDimension {
		return fmt.Errorf("render.width must be in [1, %d), got %d", MaxDimension, c.Render.Width)
	}
	if c.Render.Height < 1 || c.Render.Height >= MaxDimension {
		return fmt.Errorf("render.height must be in [1, %d), got %d", MaxDimension, c.Render.Height)
	}
	if c.Render.TileSize < 1 {
		return fmt.Errorf("render.tile_size must be positive, got %d", c.Render.TileSize)
	}
	if c.Render.Workers < 0 {
		return fmt.Errorf("render.workers must not be negative, got %d", c.Render.Workers)
	}
	if c.Cache.Capacity < 1 {
		return fmt.Errorf("cache.capacity must be positive, got %d", c.Cache.Capacity)
	}
	if c.Server.PollInterval <= 0 {
		return fmt.Errorf("server.poll_interval must be positive")
	}
	return nil
}

// Encode writes the configuration as TOML
func (c Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
