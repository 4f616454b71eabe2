package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/njyeung/asciiplay/config"
	"github.com/njyeung/asciiplay/export"
	"github.com/njyeung/asciiplay/fetch"
	"github.com/njyeung/asciiplay/glyph"
	"github.com/njyeung/asciiplay/media"
	"github.com/njyeung/asciiplay/player"
)

type flags struct {
	width        int
	fps          float64
	invert       bool
	noColor      bool
	charset      string
	noAudio      bool
	noCache      bool
	noAdaptive   bool
	configPath   string
	exportFormat string
	output       string
	frameByFrame bool
	loop         bool
	volume       float64
	logFile      string
	verbose      bool
}

func main() {
	var f flags

	cmd := &cobra.Command{
		Use:   "asciiplay <source>...",
		Short: "Play videos as colored character art in the terminal",
		Long: `Play local video files or URLs (downloaded with yt-dlp) as character art.

Controls: space pause, q quit, left/right seek 5s, +/- speed,
f fullscreen, enter next frame while paused.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, f, args)
		},
	}

	cmd.Flags().IntVarP(&f.width, "width", "w", 0, "target width in characters")
	cmd.Flags().Float64Var(&f.fps, "fps", 0, "maximum frames per second")
	cmd.Flags().BoolVar(&f.invert, "invert", false, "invert brightness")
	cmd.Flags().BoolVar(&f.noColor, "no-color", false, "disable colors")
	cmd.Flags().StringVar(&f.charset, "charset", "", "character set: detailed, simple, block or binary")
	cmd.Flags().BoolVar(&f.noAudio, "no-audio", false, "disable audio")
	cmd.Flags().BoolVar(&f.noCache, "no-cache", false, "disable the frame cache")
	cmd.Flags().BoolVar(&f.noAdaptive, "no-adaptive", false, "keep the frame rate when rendering falls behind")
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "config file (YAML or JSON)")
	cmd.Flags().StringVar(&f.exportFormat, "export", "", "export instead of playing: text, gif or html")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output file for --export")
	cmd.Flags().BoolVar(&f.frameByFrame, "frame-by-frame", false, "start paused, step with enter")
	cmd.Flags().BoolVar(&f.loop, "loop", false, "loop each source until quit")
	cmd.Flags().Float64Var(&f.volume, "volume", 0, "audio volume between 0 and 1")
	cmd.Flags().StringVar(&f.logFile, "log-file", "", "write logs to this file")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(newConfigCmd())

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newConfigCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				p, err := config.DefaultPath()
				if err != nil {
					return err
				}
				path = p
			}
			if err := config.Write(path, config.Default()); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "path", "p", "", "destination (default: user config dir)")
	return cmd
}

func run(cmd *cobra.Command, f flags, sources []string) error {
	closeLog, err := setupLogging(f.logFile, f.verbose, f.exportFormat == "")
	if err != nil {
		return err
	}
	defer closeLog()

	cfg := loadConfig(f.configPath)
	applyFlags(cmd, f, &cfg)
	cfg.DetectTerminal(isatty.IsTerminal(os.Stdout.Fd()), os.Getenv("TERM"))
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if f.exportFormat != "" {
		if err := runExport(ctx, cfg, f, sources); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	}

	opts, err := playerOptions(cfg)
	if err != nil {
		return err
	}

	var audio player.Audio
	if cfg.EnableAudio {
		audio = media.NewAudioPlayer()
	}
	c := player.New(media.NewVideoSource(), audio, opts)
	defer c.Close()

	return player.RunPlaylist(ctx, c, sources, fetch.New().Resolve)
}

// setupLogging installs the default logger.
func setupLogging(path string, verbose, playing bool) (func(), error) {
	var w io.Writer = os.Stderr
	closeFn := func() {}
	if path != "" {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = file
		closeFn = func() { file.Close() }
	}

	level := logLevel(path != "", verbose, playing)
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
	return closeFn, nil
}

// logLevel picks the handler level. While playing, stderr only takes
// warnings since the terminal belongs to the player; debug output needs a
// log file.
func logLevel(toFile, verbose, playing bool) slog.Level {
	switch {
	case playing && !toFile:
		return slog.LevelWarn
	case verbose:
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// loadConfig reads the config file. A broken file is reported and the
// defaults are used.
func loadConfig(path string) config.Config {
	var (
		cfg config.Config
		err error
	)
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		slog.Warn("config: using defaults", "err", err)
		return config.Default()
	}
	return cfg
}

func applyFlags(cmd *cobra.Command, f flags, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("width") {
		cfg.TargetWidth = f.width
	}
	if changed("fps") {
		cfg.FPSCap = f.fps
	}
	if changed("charset") {
		cfg.Charset = f.charset
	}
	if changed("volume") {
		cfg.Volume = f.volume
	}
	if f.invert {
		cfg.Invert = true
	}
	if f.noColor {
		cfg.UseColors = false
		cfg.AutoDetectTerminal = false
	}
	if f.noAudio {
		cfg.EnableAudio = false
	}
	if f.noCache {
		cfg.FrameCacheSize = 0
	}
	if f.noAdaptive {
		cfg.AdaptiveQuality = false
	}
	if f.loop {
		cfg.Loop = true
	}
	cfg.StartPaused = f.frameByFrame
}

func playerOptions(cfg config.Config) (player.Options, error) {
	charset, err := glyph.Charset(cfg.Charset)
	if err != nil {
		return player.Options{}, err
	}
	return player.Options{
		Width:       cfg.TargetWidth,
		FPSCap:      cfg.FPSCap,
		Charset:     charset,
		Invert:      cfg.Invert,
		Aspect:      cfg.AspectCorr,
		Color:       cfg.UseColors,
		CacheSize:   cfg.FrameCacheSize,
		Adaptive:    cfg.AdaptiveQuality,
		Audio:       cfg.EnableAudio,
		Volume:      cfg.Volume,
		Loop:        cfg.Loop,
		StartPaused: cfg.StartPaused,
	}, nil
}

func runExport(ctx context.Context, cfg config.Config, f flags, sources []string) error {
	if f.output == "" {
		return errors.New("--output is required for export mode")
	}
	write, err := exporter(f.exportFormat)
	if err != nil {
		return err
	}

	charset, err := glyph.Charset(cfg.Charset)
	if err != nil {
		return err
	}
	opts := export.Options{
		Render: glyph.Options{
			Width:   cfg.TargetWidth,
			Charset: charset,
			Invert:  cfg.Invert,
			Aspect:  cfg.AspectCorr,
			Color:   cfg.UseColors,
		},
		FPSCap: cfg.FPSCap,
	}

	tty := isatty.IsTerminal(os.Stdout.Fd())
	dl := fetch.New()

	var (
		frames []string
		fps    float64
	)
	for _, src := range sources {
		got, rate, err := collectSource(ctx, dl, src, opts, tty)
		if err != nil {
			return err
		}
		if fps == 0 {
			fps = rate
		}
		frames = append(frames, got...)
	}

	if err := write(frames, fps, f.output); err != nil {
		return err
	}
	fmt.Printf("Exported %d frames to %s\n", len(frames), f.output)
	return nil
}

func collectSource(ctx context.Context, dl *fetch.Downloader, src string, opts export.Options, tty bool) ([]string, float64, error) {
	path, cleanup, err := dl.Resolve(ctx, src)
	if err != nil {
		return nil, 0, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	var (
		frames []string
		fps    float64
	)
	collect := func(progress export.Progress) error {
		var err error
		frames, fps, err = export.Collect(ctx, media.NewVideoSource(), path, opts, progress)
		return err
	}

	if tty {
		err = export.RunWithProgress(ctx, os.Stdout, src, collect)
	} else {
		err = collect(export.LogProgress(slog.Default(), src))
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to export %s: %w", src, err)
	}
	return frames, fps, nil
}

func exporter(format string) (func([]string, float64, string) error, error) {
	switch format {
	case "text":
		return func(frames []string, _ float64, path string) error {
			return export.WriteText(frames, path)
		}, nil
	case "gif":
		return export.WriteGIF, nil
	case "html":
		return export.WriteHTML, nil
	}
	return nil, fmt.Errorf("unknown export format %q (want text, gif or html)", format)
}
