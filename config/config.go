// Package config resolves playback settings from defaults, an optional
// YAML or JSON file and command line overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/njyeung/asciiplay/glyph"
)

// Config is the resolved configuration. Playback reads it, never writes it.
type Config struct {
	TargetWidth        int     `json:"target_width" yaml:"target_width"`
	FPSCap             float64 `json:"fps_cap" yaml:"fps_cap"`
	Invert             bool    `json:"invert" yaml:"invert"`
	AspectCorr         float64 `json:"aspect_corr" yaml:"aspect_corr"`
	UseColors          bool    `json:"use_colors" yaml:"use_colors"`
	Charset            string  `json:"charset" yaml:"charset"`
	EnableAudio        bool    `json:"enable_audio" yaml:"enable_audio"`
	Volume             float64 `json:"volume" yaml:"volume"`
	FrameCacheSize     int     `json:"frame_cache_size" yaml:"frame_cache_size"`
	AdaptiveQuality    bool    `json:"adaptive_quality" yaml:"adaptive_quality"`
	AutoDetectTerminal bool    `json:"auto_detect_terminal" yaml:"auto_detect_terminal"`
	Loop               bool    `json:"loop" yaml:"loop"`

	// StartPaused only comes from the command line
	StartPaused bool `json:"-" yaml:"-"`
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		TargetWidth:        120,
		FPSCap:             24,
		AspectCorr:         0.45,
		UseColors:          true,
		Charset:            glyph.DefaultCharset,
		EnableAudio:        true,
		Volume:             1,
		FrameCacheSize:     100,
		AdaptiveQuality:    true,
		AutoDetectTerminal: true,
	}
}

// FileName is the name of the per-user config file
const FileName = "asciiplay.yaml"

// DefaultPath returns the per-user config file location
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(dir, "asciiplay", FileName), nil
}

// Load reads path over the defaults. Keys missing from the file keep their
// default value. Files ending in .yaml or .yml are YAML, anything else JSON.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if isYAML(path) {
		err = yaml.Unmarshal(data, &cfg)
	} else {
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return Default(), fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault loads the per-user config file. A missing file is not an error.
func LoadDefault() (Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return Default(), err
	}
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Write saves cfg to path in the format implied by its extension, creating
// parent directories.
func Write(path string, cfg Config) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
		data = append([]byte("# asciiplay config\n\n"), data...)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Validate rejects settings playback cannot work with
func (c Config) Validate() error {
	var errs []error
	if c.TargetWidth < 1 {
		errs = append(errs, fmt.Errorf("target_width must be at least 1, got %d", c.TargetWidth))
	}
	if c.FPSCap <= 0 {
		errs = append(errs, fmt.Errorf("fps_cap must be positive, got %v", c.FPSCap))
	}
	if c.AspectCorr <= 0 {
		errs = append(errs, fmt.Errorf("aspect_corr must be positive, got %v", c.AspectCorr))
	}
	if c.FrameCacheSize < 0 {
		errs = append(errs, fmt.Errorf("frame_cache_size must not be negative, got %d", c.FrameCacheSize))
	}
	if c.Volume < 0 || c.Volume > 1 {
		errs = append(errs, fmt.Errorf("volume must be within [0, 1], got %v", c.Volume))
	}
	if _, err := glyph.Charset(c.Charset); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// DetectTerminal turns colors off when stdout is not a terminal or the
// terminal type cannot display them.
func (c *Config) DetectTerminal(isTTY bool, term string) {
	if !c.AutoDetectTerminal {
		return
	}
	if !isTTY || term == "dumb" || term == "unknown" {
		c.UseColors = false
	}
}
