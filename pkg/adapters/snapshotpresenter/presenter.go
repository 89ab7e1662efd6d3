// Package snapshotpresenter renders frames to images with an on-screen
// display and writes periodic snapshots to disk.
//
// Upload copies the planes of a frame; Render converts the copy to RGB,
// scales it, draws the OSD and keeps the result as the stream's current
// picture. Every Nth render of a stream is encoded and written as
// <dir>/stream-<i>/frame-<pts>.png.
package snapshotpresenter

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/vidsync/pkg/media"
	"github.com/user/vidsync/pkg/ports"
)

// ErrNoFrame is returned by Render before any frame of the stream was uploaded.
var ErrNoFrame = errors.New("snapshotpresenter: no frame uploaded")

// Options configures the presenter.
type Options struct {
	// Dir receives snapshot files. Nothing is written when empty.
	Dir string
	// Every writes one snapshot per Every renders of a stream. 0 disables
	// writing.
	Every int
	// Width scales pictures to this width keeping the aspect ratio. 0 keeps
	// the source width.
	Width int
	// Format of snapshot files.
	Format  ports.ImageFormat
	Quality int
	// OSD draws the stream index, pts and time over the picture.
	OSD      bool
	FontPath string
	FontSize float64
}

// DefaultOptions returns PNG snapshots of every 25th render with an OSD.
func DefaultOptions() Options {
	return Options{
		Every:    25,
		Format:   ports.FormatPNG,
		Quality:  85,
		OSD:      true,
		FontSize: 13,
	}
}

type frame struct {
	pts    int64
	meta   media.Metadata
	planes media.Planes
	valid  bool
}

type streamState struct {
	frame   frame
	picture image.Image
	renders int
}

// Presenter implements ports.Presenter.
type Presenter struct {
	opts     Options
	renderer ports.Renderer
	fs       ports.FileSystem
	logger   ports.Logger

	mu      sync.Mutex
	streams map[int]*streamState
	written []string
}

// New creates a Presenter.
func New(opts Options, renderer ports.Renderer, fs ports.FileSystem, logger ports.Logger) *Presenter {
	if opts.FontSize <= 0 {
		opts.FontSize = 13
	}
	return &Presenter{
		opts:     opts,
		renderer: renderer,
		fs:       fs,
		logger:   logger.WithComponent("snapshot"),
		streams:  make(map[int]*streamState),
	}
}

// Upload copies the planes of a frame.
func (p *Presenter) Upload(ctx context.Context, stream int, pts int64, planes media.Planes, meta media.Metadata) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.state(stream)
	f := &s.frame
	f.planes.Y = append(f.planes.Y[:0], planes.Y...)
	f.planes.U = append(f.planes.U[:0], planes.U...)
	f.planes.V = append(f.planes.V[:0], planes.V...)
	f.pts = pts
	f.meta = meta
	f.valid = true
	return nil
}

// Render draws the last uploaded frame of a stream.
func (p *Presenter) Render(ctx context.Context, stream int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.state(stream)
	if !s.frame.valid {
		return fmt.Errorf("%w: stream %d", ErrNoFrame, stream)
	}

	picture, err := p.compose(stream, s.frame)
	if err != nil {
		return err
	}
	s.picture = picture
	s.renders++

	if p.opts.Dir == "" || p.opts.Every <= 0 || (s.renders-1)%p.opts.Every != 0 {
		return nil
	}
	return p.write(stream, s.frame.pts, picture)
}

// Picture returns the current picture of a stream, nil before its first
// render.
func (p *Presenter) Picture(stream int) image.Image {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.streams[stream]; ok {
		return s.picture
	}
	return nil
}

// Written returns the snapshot paths written so far.
func (p *Presenter) Written() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.written...)
}

func (p *Presenter) state(stream int) *streamState {
	s, ok := p.streams[stream]
	if !ok {
		s = &streamState{}
		p.streams[stream] = s
	}
	return s
}

func (p *Presenter) compose(stream int, f frame) (image.Image, error) {
	src, err := toImage(f.planes, f.meta)
	if err != nil {
		return nil, err
	}

	width, height := f.meta.YWidth, f.meta.YHeight
	var picture image.Image = src
	if p.opts.Width > 0 && p.opts.Width != width {
		height = max(1, height*p.opts.Width/width)
		width = p.opts.Width
		picture = p.renderer.ResizeImage(src, width, height)
	}
	if !p.opts.OSD {
		return picture, nil
	}

	canvas := p.renderer.CreateCanvas(width, height, color.Black)
	canvas.DrawImage(picture, 0, 0)

	style := ports.TextStyle{
		FontSize: p.opts.FontSize,
		FontPath: p.opts.FontPath,
		Color:    color.White,
	}
	text := fmt.Sprintf("#%d  pts %d  %s", stream, f.pts, formatTime(f.meta.TimeAt(f.pts)))
	tw, th := canvas.MeasureText(text, style)
	const pad = 4
	canvas.DrawRect(0, 0, int(tw)+2*pad, int(th)+2*pad, color.RGBA{A: 160})
	canvas.DrawText(text, pad, pad, style)
	return canvas.ToImage(), nil
}

func (p *Presenter) write(stream int, pts int64, picture image.Image) error {
	data, err := p.renderer.EncodeImage(picture, p.opts.Format, p.opts.Quality)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	name := fmt.Sprintf("frame-%06d%s", pts, p.opts.Format.Extension())
	path := filepath.Join(p.opts.Dir, fmt.Sprintf("stream-%d", stream), name)
	if err := p.fs.WriteFile(path, data); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	p.written = append(p.written, path)
	p.logger.Debug("Saved snapshot %s", path)
	return nil
}

// toImage wraps the planes in an image.YCbCr without copying.
func toImage(planes media.Planes, meta media.Metadata) (*image.YCbCr, error) {
	var ratio image.YCbCrSubsampleRatio
	switch meta.PixelFormat {
	case media.PixelFormatYUV444P:
		ratio = image.YCbCrSubsampleRatio444
	case media.PixelFormatYUV422P:
		ratio = image.YCbCrSubsampleRatio422
	case media.PixelFormatYUV420P, "":
		ratio = image.YCbCrSubsampleRatio420
	default:
		return nil, fmt.Errorf("snapshotpresenter: unsupported pixel format %s", meta.PixelFormat)
	}
	if len(planes.Y) < meta.YWidth*meta.YHeight || len(planes.U) < meta.UVWidth*meta.UVHeight {
		return nil, fmt.Errorf("snapshotpresenter: planes smaller than %dx%d", meta.YWidth, meta.YHeight)
	}
	return &image.YCbCr{
		Y:              planes.Y,
		Cb:             planes.U,
		Cr:             planes.V,
		YStride:        meta.YWidth,
		CStride:        meta.UVWidth,
		SubsampleRatio: ratio,
		Rect:           image.Rect(0, 0, meta.YWidth, meta.YHeight),
	}, nil
}

func formatTime(t time.Duration) string {
	ms := t.Milliseconds()
	return fmt.Sprintf("%02d:%02d.%03d", ms/60000, ms/1000%60, ms%1000)
}

// Ensure Presenter implements ports.Presenter
var _ ports.Presenter = (*Presenter)(nil)
