// Package player wires configuration, adapters and the video controller
// into a playback session driven by line commands.
package player

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/vidsync/pkg/adapters/ffmpegdecoder"
	"github.com/user/vidsync/pkg/adapters/nullpresenter"
	"github.com/user/vidsync/pkg/adapters/psnrcomparer"
	"github.com/user/vidsync/pkg/adapters/snapshotpresenter"
	"github.com/user/vidsync/pkg/config"
	"github.com/user/vidsync/pkg/media"
	"github.com/user/vidsync/pkg/ports"
	"github.com/user/vidsync/pkg/summarizer"
	"github.com/user/vidsync/pkg/videocontroller"
)

// endPoll is how often an ExitAtEnd session checks the status when no
// event arrives.
const endPoll = 50 * time.Millisecond

// Options contains the collaborators of a Player. Config is required;
// unset adapters are chosen from it.
type Options struct {
	Config config.Config

	// Factory overrides the ffmpeg decoder.
	Factory ports.DecoderFactory
	// Presenter overrides the presenter selected by Config.Snapshots.
	Presenter ports.Presenter

	FS       ports.FileSystem
	Renderer ports.Renderer
	Logger   ports.Logger

	// Autoplay starts playback once every stream is ready.
	Autoplay bool
	// ExitAtEnd ends the session when playback stops at either end.
	ExitAtEnd bool

	// Out receives command output.
	Out io.Writer
	// Translate and Version are passed to the summary formatter.
	Translate func(string) string
	Version   string
}

// Player runs one playback session.
type Player struct {
	cfg       config.Config
	opts      Options
	dir       media.Direction
	presenter ports.Presenter
	ctrl      *videocontroller.Controller
	logger    ports.Logger
	out       io.Writer

	// Owned by the session goroutine.
	played bool
	ready  bool
}

// New validates the configuration and builds the controller.
func New(opts Options) (*Player, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil || opts.FS == nil {
		return nil, fmt.Errorf("%w: logger and file system are required", config.ErrInvalid)
	}
	speed, _ := cfg.SpeedRational()
	dir, _ := cfg.PlaybackDirection()

	factory := opts.Factory
	if factory == nil {
		factory = ffmpegdecoder.Factory(ffmpegdecoder.Options{FFmpegPath: cfg.FFmpegPath})
	}

	presenter := opts.Presenter
	if presenter == nil {
		var err error
		if presenter, err = newPresenter(cfg, opts); err != nil {
			return nil, err
		}
	}

	ctrl, err := videocontroller.New(videocontroller.Config{
		QueueSize:      cfg.QueueSize,
		Speed:          speed,
		DecoderFactory: factory,
		Presenter:      presenter,
		Comparer:       psnrcomparer.New(),
		Logger:         opts.Logger.WithComponent("video"),
	})
	if err != nil {
		return nil, fmt.Errorf("create controller: %w", err)
	}

	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	return &Player{
		cfg:       cfg,
		opts:      opts,
		dir:       dir,
		presenter: presenter,
		ctrl:      ctrl,
		logger:    opts.Logger.WithComponent("player"),
		out:       out,
	}, nil
}

func newPresenter(cfg config.Config, opts Options) (ports.Presenter, error) {
	if cfg.Snapshots.Dir == "" {
		return nullpresenter.New(), nil
	}
	if opts.Renderer == nil {
		return nil, fmt.Errorf("%w: snapshots need a renderer", config.ErrInvalid)
	}
	format, _ := cfg.SnapshotFormat()
	so := snapshotpresenter.DefaultOptions()
	so.Dir = cfg.Snapshots.Dir
	so.Every = cfg.Snapshots.Every
	so.Width = cfg.Snapshots.Width
	so.Format = format
	so.OSD = cfg.Snapshots.OSD
	so.FontPath = cfg.Snapshots.Font
	if err := opts.FS.MkdirAll(cfg.Snapshots.Dir); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return snapshotpresenter.New(so, opts.Renderer, opts.FS, opts.Logger), nil
}

// Controller returns the underlying controller.
func (p *Player) Controller() *videocontroller.Controller {
	return p.ctrl
}

// Run plays the configured streams until ctx is cancelled, a quit command
// arrives on commands, or playback ends with ExitAtEnd set. commands may
// be nil. The returned summary reflects the state at the end of the
// session; it is also written to Config.Summary when set.
func (p *Player) Run(ctx context.Context, commands io.Reader) (*summarizer.Summary, error) {
	started := time.Now()
	events := p.ctrl.Subscribe(256)

	// The controller outlives ctx so the final status can still be read.
	ctrlCtx, stopCtrl := context.WithCancel(context.WithoutCancel(ctx))
	defer stopCtrl()

	done := make(chan struct{})
	lines := readLines(commands, done)

	var summary *summarizer.Summary
	var g errgroup.Group
	g.Go(func() error {
		return p.ctrl.Run(ctrlCtx)
	})
	g.Go(func() error {
		defer stopCtrl()
		defer close(done)

		err := p.session(ctx, events, lines)
		st, serr := p.ctrl.Status(ctrlCtx)
		if serr != nil {
			return err
		}
		summary = summarizer.NewBuilder().
			WithSession(summarizer.SessionInfo{
				QueueSize: p.cfg.QueueSize,
				Elapsed:   time.Since(started),
			}).
			WithStatus(st).
			Build()
		return err
	})
	if err := g.Wait(); err != nil {
		return summary, err
	}

	if summary != nil && p.cfg.Summary != "" {
		if err := p.writeSummary(summary); err != nil {
			return summary, err
		}
	}
	return summary, nil
}

func (p *Player) session(ctx context.Context, events <-chan videocontroller.Event, lines <-chan string) error {
	p.logger.Info("Starting playback of %d streams", len(p.cfg.Streams))
	if err := p.setup(ctx); err != nil {
		return err
	}

	var poll <-chan time.Time
	if p.opts.ExitAtEnd {
		ticker := time.NewTicker(endPoll)
		defer ticker.Stop()
		poll = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Interrupted, shutting down...")
			return nil

		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			quit, err := p.Execute(ctx, line)
			if err != nil {
				p.logger.Warn("Command failed: %v", err)
				fmt.Fprintf(p.out, "error: %v\n", err)
			}
			if quit {
				return nil
			}

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if p.onEvent(ctx, ev) {
				return nil
			}

		case <-poll:
			if p.finished(ctx) {
				return nil
			}
		}
	}
}

func (p *Player) setup(ctx context.Context) error {
	for _, sc := range p.cfg.Streams {
		info, err := sc.StreamInfo()
		if err != nil {
			return err
		}
		if _, err := p.ctrl.AddVideo(ctx, info); err != nil {
			p.logger.Error("Failed to add %s: %v", sc.Path, err)
			return err
		}
	}
	if p.cfg.Diff.Enabled {
		if err := p.ctrl.SetDiffMode(ctx, true, p.cfg.Diff.A, p.cfg.Diff.B); err != nil {
			return err
		}
	}
	if p.dir == media.Backward {
		if err := p.ctrl.ToggleDirection(ctx); err != nil {
			return err
		}
	}
	return nil
}

// onEvent reports whether the session is over.
func (p *Player) onEvent(ctx context.Context, ev videocontroller.Event) bool {
	switch ev.Kind {
	case videocontroller.EventReady:
		if ev.Index != -1 || p.ready {
			return false
		}
		p.ready = true
		if p.opts.Autoplay {
			if err := p.ctrl.Play(ctx); err != nil {
				p.logger.Warn("Command failed: %v", err)
				return false
			}
			p.played = true
		}

	case videocontroller.EventPlaying, videocontroller.EventEndOfVideo, videocontroller.EventStartOfVideo:
		if p.opts.ExitAtEnd {
			return p.finished(ctx)
		}
	}
	return false
}

// finished reports whether playback has run and stopped at either end.
// Events may be dropped, so the decision is made from the status.
func (p *Player) finished(ctx context.Context) bool {
	st, err := p.ctrl.Status(ctx)
	if err != nil {
		return true
	}
	if st.Playing {
		p.played = true
		return false
	}
	if !p.played || st.Buffering || st.Seeking {
		return false
	}
	return st.ReachedEnd || st.AtStart
}

func (p *Player) writeSummary(summary *summarizer.Summary) error {
	fopts := []summarizer.MarkdownOption{summarizer.WithVersion(p.opts.Version)}
	if p.opts.Translate != nil {
		fopts = append(fopts, summarizer.WithTranslator(p.opts.Translate))
	}
	w := summarizer.NewWriter(summarizer.NewMarkdownFormatter(fopts...), p.opts.FS)
	if err := w.Write(p.cfg.Summary, summary); err != nil {
		return err
	}
	p.logger.Info("Summary written to %s", p.cfg.Summary)
	return nil
}

// readLines forwards the lines of r until EOF or done is closed.
func readLines(r io.Reader, done <-chan struct{}) <-chan string {
	if r == nil {
		return nil
	}
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()
	return lines
}
