// Package fetch downloads remote videos with yt-dlp so they can be played
// like local files.
package fetch

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/njyeung/asciiplay/player"
)

// Formats are tried in order until one downloads. Low resolutions are
// preferred since frames end up a few hundred glyphs wide anyway.
var Formats = []string{
	"bestvideo[height<=360][fps<=30]+bestaudio/best/best",
	"best[height<=360]/best",
	"best",
}

var videoExts = []string{".mp4", ".mkv", ".webm", ".mov"}

// errLines is how much yt-dlp stderr is kept for error messages
const errLines = 5

// IsRemote reports whether src should be downloaded rather than opened.
func IsRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// Downloader runs yt-dlp into a fresh temporary directory per download.
type Downloader struct {
	Binary  string // yt-dlp executable
	TempDir string // parent of the per-download directories, "" for the OS default
	Log     *slog.Logger
}

// New creates a downloader using yt-dlp from PATH
func New() *Downloader {
	return &Downloader{Binary: "yt-dlp", Log: slog.Default()}
}

// Resolve downloads remote sources and passes local paths through. It has
// the signature of player.Resolver.
func (d *Downloader) Resolve(ctx context.Context, src string) (string, func(), error) {
	if !IsRemote(src) {
		if _, err := os.Stat(src); err != nil {
			return "", nil, fmt.Errorf("%w: %w", player.ErrSourceUnavailable, err)
		}
		return src, nil, nil
	}
	return d.Download(ctx, src)
}

// Download fetches url and returns the downloaded video file. cleanup
// removes the temporary directory. Errors wrap player.ErrSourceUnavailable.
func (d *Downloader) Download(ctx context.Context, url string) (path string, cleanup func(), err error) {
	dir, err := os.MkdirTemp(d.TempDir, "asciiplay_")
	if err != nil {
		return "", nil, fmt.Errorf("%w: failed to create download directory: %w", player.ErrSourceUnavailable, err)
	}
	cleanup = func() {
		if err := os.RemoveAll(dir); err != nil {
			d.Log.Warn("fetch: failed to remove download directory", "dir", dir, "err", err)
		}
	}

	d.Log.Info("fetch: downloading", "url", url, "dir", dir)

	var lastErr error
	for _, format := range Formats {
		if ctx.Err() != nil {
			cleanup()
			return "", nil, ctx.Err()
		}

		tail, err := d.run(ctx, dir, format, url)
		if err != nil {
			d.Log.Debug("fetch: format failed", "format", format, "err", err)
			lastErr = explain(err, tail)
			continue
		}

		path, err := pickVideo(dir)
		if err != nil {
			cleanup()
			return "", nil, fmt.Errorf("%w: %w", player.ErrSourceUnavailable, err)
		}
		return path, cleanup, nil
	}

	cleanup()
	return "", nil, fmt.Errorf("%w: download failed: %w", player.ErrSourceUnavailable, lastErr)
}

// run invokes yt-dlp once and returns the last lines it wrote to stderr.
func (d *Downloader) run(ctx context.Context, dir, format, url string) ([]string, error) {
	cmd := exec.CommandContext(ctx, d.Binary,
		"--no-playlist",
		"-f", format,
		"-o", "%(title)s.%(ext)s",
		url,
	)
	cmd.Dir = dir
	cmd.Stdout = io.Discard

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", d.Binary, err)
	}

	var tail []string
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "%") {
			d.Log.Debug("fetch: progress", "line", line)
		}
		tail = append(tail, line)
		if len(tail) > errLines {
			tail = tail[1:]
		}
	}

	return tail, cmd.Wait()
}

// explain turns a failed run into an error carrying yt-dlp's last words.
func explain(err error, tail []string) error {
	msg := strings.Join(tail, "\n")
	if strings.Contains(msg, "403") || strings.Contains(msg, "Forbidden") {
		return fmt.Errorf("request blocked (403 Forbidden); try updating yt-dlp or using a local file: %s", msg)
	}
	if msg == "" {
		return err
	}
	return fmt.Errorf("%w: %s", err, msg)
}

// pickVideo returns the first video file in dir.
func pickVideo(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, v := range videoExts {
			if ext == v {
				return filepath.Join(dir, e.Name()), nil
			}
		}
	}
	return "", errors.New("no video file found after download")
}
