// Package ffmpegdecoder decodes video files with an ffmpeg child process.
//
// The process writes planar rawvideo frames to a pipe in the requested
// geometry and pixel format. Seeking restarts the process at the target
// time, so frames are always produced in ascending order from the seek
// point.
package ffmpegdecoder

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/user/vidsync/pkg/adapters/mp4probe"
	"github.com/user/vidsync/pkg/media"
	"github.com/user/vidsync/pkg/ports"
)

var (
	// ErrFFmpegNotFound is returned when ffmpeg is not found.
	ErrFFmpegNotFound = errors.New("ffmpegdecoder: ffmpeg not found in PATH")

	// ErrNotOpen is returned when frames are requested before Open.
	ErrNotOpen = errors.New("ffmpegdecoder: not open")
)

// ProbeFunc reads the source geometry, timebase and frame count of a file.
type ProbeFunc func(path string) (mp4probe.Info, error)

// Options configures the decoder.
type Options struct {
	// FFmpegPath overrides the ffmpeg lookup.
	FFmpegPath string
	// Probe defaults to mp4probe.ProbeFile.
	Probe ProbeFunc
}

// Decoder implements ports.Decoder on top of ffmpeg.
type Decoder struct {
	opts Options

	mu         sync.Mutex
	ffmpegPath string
	path       string
	meta       media.Metadata
	rate       media.Rational
	resample   bool

	ctx    context.Context
	cancel context.CancelFunc
	cmd    *exec.Cmd
	stdout *bufio.Reader
	stderr bytes.Buffer
	pos    int64
	next   int64 // first frame of a process not started yet, -1 when running
}

// New creates a decoder.
func New(opts Options) *Decoder {
	if opts.Probe == nil {
		opts.Probe = mp4probe.ProbeFile
	}
	return &Decoder{opts: opts, next: -1}
}

// Factory returns a ports.DecoderFactory creating ffmpeg decoders.
func Factory(opts Options) ports.DecoderFactory {
	return func(info media.StreamInfo) (ports.Decoder, error) {
		return New(opts), nil
	}
}

// Open probes the file and prepares decoding from the first frame.
// Width, height and frame rate of info override the source values.
func (d *Decoder) Open(ctx context.Context, info media.StreamInfo) (media.Metadata, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ffmpegPath, err := FindFFmpeg(d.opts.FFmpegPath)
	if err != nil {
		return media.Metadata{}, err
	}
	src, err := d.opts.Probe(info.Path)
	if err != nil {
		return media.Metadata{}, fmt.Errorf("probe %s: %w", info.Path, err)
	}

	width, height := src.Width, src.Height
	if info.Width > 0 && info.Height > 0 {
		width, height = info.Width, info.Height
	}
	if width <= 0 || height <= 0 {
		return media.Metadata{}, fmt.Errorf("probe %s: no frame size", info.Path)
	}

	rate := src.FrameRate()
	frames := src.Frames
	resample := false
	if info.FrameRate.Positive() && info.FrameRate != rate {
		rate = info.FrameRate
		frames = max(1, rate.Inverse().UnitsAt(int64(src.Duration)))
		resample = true
	}

	d.ffmpegPath = ffmpegPath
	d.path = info.Path
	d.rate = rate
	d.resample = resample
	d.meta = media.NewMetadata(width, height, info.PixelFormat, rate.Inverse(), frames)
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.pos = 0
	d.next = 0
	return d.meta, nil
}

// Seek stops the running process; the next ReadFrame restarts it at pts.
func (d *Decoder) Seek(ctx context.Context, pts int64) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx == nil {
		return 0, ErrNotOpen
	}

	pts = min(max(pts, 0), d.meta.TotalFrames)
	d.stopLocked()
	d.pos = pts
	d.next = pts
	return pts, nil
}

// ReadFrame reads the next frame into dst.
func (d *Decoder) ReadFrame(ctx context.Context, dst media.Planes) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx == nil {
		return ErrNotOpen
	}
	if d.pos >= d.meta.TotalFrames {
		return io.EOF
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.next >= 0 {
		if err := d.startLocked(d.next); err != nil {
			return err
		}
		d.next = -1
	}

	for _, plane := range [][]byte{dst.Y, dst.U, dst.V} {
		if _, err := io.ReadFull(d.stdout, plane); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				// The container ended before the probed frame count.
				d.stopLocked()
				d.next = d.pos
				return io.EOF
			}
			d.stopLocked()
			d.next = d.pos
			return fmt.Errorf("read frame %d: %w\nstderr: %s", d.pos, err, d.stderr.String())
		}
	}
	d.pos++
	return nil
}

// Close stops ffmpeg.
func (d *Decoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx == nil {
		return nil
	}
	d.stopLocked()
	d.cancel()
	d.ctx = nil
	return nil
}

func (d *Decoder) args(pts int64) []string {
	filter := fmt.Sprintf("scale=%d:%d", d.meta.YWidth, d.meta.YHeight)
	if d.resample {
		filter += fmt.Sprintf(",fps=%d/%d", d.rate.Num, d.rate.Den)
	}
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	if pts > 0 {
		args = append(args, "-ss", seconds(d.meta.TimeAt(pts)))
	}
	return append(args,
		"-i", d.path,
		"-an", "-sn",
		"-vf", filter,
		"-pix_fmt", string(d.meta.PixelFormat),
		"-f", "rawvideo",
		"pipe:1",
	)
}

func (d *Decoder) startLocked(pts int64) error {
	d.stderr.Reset()
	cmd := exec.CommandContext(d.ctx, d.ffmpegPath, d.args(pts)...)
	cmd.Stderr = &d.stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}
	sizes := d.meta.PlaneSizes()
	d.cmd = cmd
	d.stdout = bufio.NewReaderSize(stdout, sizes.Y+2*sizes.UV)
	return nil
}

func (d *Decoder) stopLocked() {
	if d.cmd == nil {
		return
	}
	if d.cmd.Process != nil {
		_ = d.cmd.Process.Kill()
	}
	_ = d.cmd.Wait()
	d.cmd = nil
	d.stdout = nil
}

func seconds(t time.Duration) string {
	return strconv.FormatFloat(t.Seconds(), 'f', 6, 64)
}

var _ ports.Decoder = (*Decoder)(nil)
