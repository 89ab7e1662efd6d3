// Package main provides the CLI entry point for vidsync.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"

	"github.com/user/vidsync/pkg/adapters/ggrenderer"
	"github.com/user/vidsync/pkg/adapters/logger"
	"github.com/user/vidsync/pkg/adapters/mp4probe"
	"github.com/user/vidsync/pkg/adapters/osfilesystem"
	"github.com/user/vidsync/pkg/adapters/syntheticdecoder"
	"github.com/user/vidsync/pkg/config"
	"github.com/user/vidsync/pkg/player"
	"github.com/user/vidsync/pkg/ports"
	"github.com/user/vidsync/pkg/summarizer"
)

var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:                 "vidsync",
		Usage:                l10n.T("Play several videos in lockstep"),
		Description:          l10n.T("vidsync plays videos with different frame rates on one clock, frame accurately, forward and backward."),
		Version:              version,
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			playCommand(),
			demoCommand(),
			probeCommand(),
			versionCommand(),
		},
	}
}

func sessionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: l10n.T("YAML configuration file"), Category: l10n.T("Configuration")},
		&cli.IntFlag{Name: "queue-size", Aliases: []string{"n"}, Usage: l10n.T("Decoded frames kept per stream"), Category: l10n.T("Playback")},
		&cli.StringFlag{Name: "speed", Aliases: []string{"s"}, Usage: l10n.T("Playback speed as a rational or decimal (e.g., 1/2, 2)"), Category: l10n.T("Playback")},
		&cli.StringFlag{Name: "direction", Usage: l10n.T("Initial direction (forward, backward)"), Category: l10n.T("Playback")},
		&cli.StringFlag{Name: "snapshots", Usage: l10n.T("Directory for frame snapshots"), Category: l10n.T("Output")},
		&cli.IntFlag{Name: "snapshot-every", Usage: l10n.T("Write one snapshot every N rendered frames"), Category: l10n.T("Output")},
		&cli.IntFlag{Name: "snapshot-width", Usage: l10n.T("Scale snapshots to this width"), Category: l10n.T("Output")},
		&cli.StringFlag{Name: "diff", Usage: l10n.T("Compare two streams by index (e.g., 0,1)"), Category: l10n.T("Output")},
		&cli.StringFlag{Name: "summary", Usage: l10n.T("Output playback summary to file (Markdown format)"), Category: l10n.T("Output")},
		&cli.StringFlag{Name: "log-level", Aliases: []string{"l"}, Usage: l10n.T("Log level (debug, info, warn, error)"), Category: l10n.T("Logging")},
		&cli.BoolFlag{Name: "quiet", Aliases: []string{"Q"}, Usage: l10n.T("Suppress all log output"), Category: l10n.T("Logging")},
	}
}

func playCommand() *cli.Command {
	flags := append(sessionFlags(),
		&cli.StringFlag{Name: "ffmpeg", Usage: l10n.T("Path to ffmpeg executable"), Category: l10n.T("Decoding")},
		&cli.BoolFlag{Name: "autoplay", Value: true, Usage: l10n.T("Start playback once every stream is ready"), Category: l10n.T("Playback")},
		&cli.BoolFlag{Name: "exit-at-end", Usage: l10n.T("Exit when playback stops at either end"), Category: l10n.T("Playback")},
	)
	return &cli.Command{
		Name:      "play",
		Usage:     l10n.T("Play video files in sync"),
		ArgsUsage: "FILE...",
		Description: l10n.T("Play the given files on one clock. Commands are read from standard input: " +
			"play, pause, toggle, step, back, seek <ms>, frame <pts>, speed <r>, dir, add <file>, remove <i>, diff <a> <b>|off, status, quit."),
		Flags: flags,
		Action: func(c *cli.Context) error {
			fs := osfilesystem.New()
			cfg, err := buildConfig(c, fs)
			if err != nil {
				return err
			}
			if ffmpeg := c.String("ffmpeg"); ffmpeg != "" {
				cfg.FFmpegPath = ffmpeg
			}
			for _, path := range c.Args().Slice() {
				cfg.Streams = append(cfg.Streams, config.StreamConfig{Path: path})
			}
			if len(cfg.Streams) == 0 {
				return cli.Exit(l10n.T("At least one video file is required"), 2)
			}
			return runSession(c, cfg, fs, player.Options{
				Autoplay:  c.Bool("autoplay"),
				ExitAtEnd: c.Bool("exit-at-end"),
			}, true)
		},
	}
}

func demoCommand() *cli.Command {
	flags := append(sessionFlags(),
		&cli.StringFlag{Name: "rates", Value: "25,30,50", Usage: l10n.T("Frame rates of the synthetic streams"), Category: l10n.T("Demo")},
		&cli.Int64Flag{Name: "frames", Value: 100, Usage: l10n.T("Frames per synthetic stream"), Category: l10n.T("Demo")},
		&cli.IntFlag{Name: "width", Value: 160, Usage: l10n.T("Width of the synthetic streams"), Category: l10n.T("Demo")},
		&cli.IntFlag{Name: "height", Value: 90, Usage: l10n.T("Height of the synthetic streams"), Category: l10n.T("Demo")},
	)
	return &cli.Command{
		Name:  "demo",
		Usage: l10n.T("Play synthetic streams headlessly and print the summary"),
		Flags: flags,
		Action: func(c *cli.Context) error {
			fs := osfilesystem.New()
			cfg, err := buildConfig(c, fs)
			if err != nil {
				return err
			}
			cfg.Streams = nil
			for _, rate := range strings.Split(c.String("rates"), ",") {
				rate = strings.TrimSpace(rate)
				cfg.Streams = append(cfg.Streams, config.StreamConfig{
					Path:      "synthetic@" + rate,
					FrameRate: rate,
				})
			}
			opts := player.Options{
				Factory: syntheticdecoder.Factory(syntheticdecoder.Options{
					Width:  c.Int("width"),
					Height: c.Int("height"),
					Frames: c.Int64("frames"),
				}),
				Autoplay:  true,
				ExitAtEnd: true,
			}
			return runSession(c, cfg, fs, opts, false)
		},
	}
}

func probeCommand() *cli.Command {
	return &cli.Command{
		Name:      "probe",
		Usage:     l10n.T("Show MP4 video track metadata"),
		ArgsUsage: "FILE...",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit(l10n.T("At least one video file is required"), 2)
			}
			w := c.App.Writer
			for _, path := range c.Args().Slice() {
				info, err := mp4probe.ProbeFile(path)
				if err != nil {
					return fmt.Errorf("probe %s: %w", path, err)
				}
				fmt.Fprintf(w, "%s\n", path)
				fmt.Fprintf(w, "  %s: %s\n", l10n.T("Codec"), info.Codec)
				fmt.Fprintf(w, "  %s: %dx%d\n", l10n.T("Size"), info.Width, info.Height)
				fmt.Fprintf(w, "  %s: %s (%s fps)\n", l10n.T("Timebase"), info.Timebase(), info.FrameRate())
				fmt.Fprintf(w, "  %s: %d\n", l10n.T("Frames"), info.Frames)
				fmt.Fprintf(w, "  %s: %s\n", l10n.T("Duration"), info.Duration)
				fmt.Fprintf(w, "  %s: %t\n", l10n.T("Fragmented"), info.Fragmented)
			}
			return nil
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: l10n.T("Show version information"),
		Action: func(c *cli.Context) error {
			fmt.Fprintln(c.App.Writer, l10n.F("vidsync version %s", version))
			return nil
		},
	}
}

// buildConfig loads the configuration file, if any, and applies the flags
// that were set over it.
func buildConfig(c *cli.Context, fs ports.FileSystem) (config.Config, error) {
	cfg := config.Defaults()
	if path := c.String("config"); path != "" {
		loaded, err := config.LoadFromFile(fs, path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if c.IsSet("queue-size") {
		cfg.QueueSize = c.Int("queue-size")
	}
	if c.IsSet("speed") {
		cfg.Speed = c.String("speed")
	}
	if c.IsSet("direction") {
		cfg.Direction = c.String("direction")
	}
	if c.IsSet("snapshots") {
		cfg.Snapshots.Dir = c.String("snapshots")
	}
	if c.IsSet("snapshot-every") {
		cfg.Snapshots.Every = c.Int("snapshot-every")
	}
	if c.IsSet("snapshot-width") {
		cfg.Snapshots.Width = c.Int("snapshot-width")
	}
	if c.IsSet("diff") {
		diff, err := config.ParseDiff(c.String("diff"))
		if err != nil {
			return cfg, err
		}
		cfg.Diff = diff
	}
	if c.IsSet("summary") {
		cfg.Summary = c.String("summary")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.Bool("quiet") {
		cfg.LogLevel = "quiet"
	}
	return cfg, nil
}

func newLogger(cfg config.Config) ports.Logger {
	if cfg.Level() == ports.LevelQuiet {
		return logger.NewNoop()
	}
	return logger.NewConsole(cfg.Level())
}

// runSession runs a player until it ends or the process is interrupted.
// Interactive sessions read commands from stdin; the others print the
// summary when done.
func runSession(c *cli.Context, cfg config.Config, fs ports.FileSystem, opts player.Options, interactive bool) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := newLogger(cfg)
	opts.Config = cfg
	opts.FS = fs
	opts.Renderer = ggrenderer.New()
	opts.Logger = log
	opts.Out = c.App.Writer
	opts.Translate = l10n.T
	opts.Version = version

	p, err := player.New(opts)
	if err != nil {
		return err
	}

	var summary *summarizer.Summary
	if interactive {
		summary, err = p.Run(ctx, os.Stdin)
	} else {
		summary, err = p.Run(ctx, nil)
	}
	if err != nil {
		return err
	}

	if !interactive && summary != nil {
		formatter := summarizer.NewMarkdownFormatter(
			summarizer.WithTranslator(l10n.T),
			summarizer.WithVersion(version),
		)
		fmt.Fprint(c.App.Writer, formatter.Format(summary))
	}
	return nil
}
