package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config failed validation: %v", err)
	}
	if cfg.TargetWidth != 120 || cfg.FPSCap != 24 || cfg.AspectCorr != 0.45 || cfg.FrameCacheSize != 100 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		check   func(t *testing.T, cfg Config)
	}{
		{
			name:    "yaml",
			file:    "cfg.yaml",
			content: "target_width: 80\ncharset: block\ninvert: true\n",
			check: func(t *testing.T, cfg Config) {
				if cfg.TargetWidth != 80 || cfg.Charset != "block" || !cfg.Invert {
					t.Errorf("yaml values not applied: %+v", cfg)
				}
				if cfg.FPSCap != 24 {
					t.Errorf("missing key lost its default: fps_cap = %v", cfg.FPSCap)
				}
			},
		},
		{
			name:    "yml extension",
			file:    "cfg.YML",
			content: "fps_cap: 12.5\n",
			check: func(t *testing.T, cfg Config) {
				if cfg.FPSCap != 12.5 {
					t.Errorf("fps_cap = %v, expected 12.5", cfg.FPSCap)
				}
			},
		},
		{
			name:    "json",
			file:    "cfg.json",
			content: `{"use_colors": false, "frame_cache_size": 0, "loop": true}`,
			check: func(t *testing.T, cfg Config) {
				if cfg.UseColors || cfg.FrameCacheSize != 0 || !cfg.Loop {
					t.Errorf("json values not applied: %+v", cfg)
				}
				if cfg.TargetWidth != 120 {
					t.Errorf("missing key lost its default: target_width = %d", cfg.TargetWidth)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			cfg, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load of a missing file returned %v, expected ErrNotExist", err)
	}

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte("{not json"), 0644)
	cfg, err := Load(bad)
	if err == nil {
		t.Fatal("Load accepted malformed JSON")
	}
	if cfg != Default() {
		t.Errorf("Load returned %+v on error, expected defaults", cfg)
	}
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)
	cfg := Default()
	cfg.TargetWidth = 64
	cfg.Charset = "simple"

	if err := Write(path, cfg); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != cfg {
		t.Errorf("Load after Write = %+v, expected %+v", got, cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"width", func(c *Config) { c.TargetWidth = 0 }, "target_width"},
		{"fps", func(c *Config) { c.FPSCap = 0 }, "fps_cap"},
		{"aspect", func(c *Config) { c.AspectCorr = -1 }, "aspect_corr"},
		{"cache", func(c *Config) { c.FrameCacheSize = -1 }, "frame_cache_size"},
		{"volume", func(c *Config) { c.Volume = 1.5 }, "volume"},
		{"charset", func(c *Config) { c.Charset = "emoji" }, "emoji"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate returned %v, expected an error mentioning %q", err, tt.want)
			}
		})
	}

	cfg := Default()
	cfg.FrameCacheSize = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("zero cache rejected: %v", err)
	}
}

func TestDetectTerminal(t *testing.T) {
	tests := []struct {
		auto  bool
		isTTY bool
		term  string
		want  bool
	}{
		{true, true, "xterm-256color", true},
		{true, false, "xterm-256color", false},
		{true, true, "dumb", false},
		{true, true, "unknown", false},
		{false, false, "dumb", true},
	}
	for _, tt := range tests {
		cfg := Default()
		cfg.AutoDetectTerminal = tt.auto
		cfg.DetectTerminal(tt.isTTY, tt.term)
		if cfg.UseColors != tt.want {
			t.Errorf("DetectTerminal(auto=%v, tty=%v, %q) left colors %v, expected %v",
				tt.auto, tt.isTTY, tt.term, cfg.UseColors, tt.want)
		}
	}
}
