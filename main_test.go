package main

import (
	"log/slog"
	"testing"
)

func TestLogLevel(t *testing.T) {
	tests := []struct {
		name                     string
		toFile, verbose, playing bool
		want                     slog.Level
	}{
		{"playing on stderr", false, false, true, slog.LevelWarn},
		{"verbose playing on stderr", false, true, true, slog.LevelWarn},
		{"verbose playing to file", true, true, true, slog.LevelDebug},
		{"playing to file", true, false, true, slog.LevelInfo},
		{"export on stderr", false, false, false, slog.LevelInfo},
		{"verbose export on stderr", false, true, false, slog.LevelDebug},
	}
	for _, tt := range tests {
		if got := logLevel(tt.toFile, tt.verbose, tt.playing); got != tt.want {
			t.Errorf("%s: logLevel returned %v, expected %v", tt.name, got, tt.want)
		}
	}
}
