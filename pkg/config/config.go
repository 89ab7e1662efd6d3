// Package config provides configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/user/vidsync/pkg/media"
	"github.com/user/vidsync/pkg/ports"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config represents the full configuration of a playback session.
type Config struct {
	// Playback
	QueueSize int    `yaml:"queue_size"`
	Speed     string `yaml:"speed"`
	Direction string `yaml:"direction"`
	LogLevel  string `yaml:"log_level"`

	// Input
	Streams    []StreamConfig `yaml:"streams"`
	FFmpegPath string         `yaml:"ffmpeg_path"`

	// Output
	Snapshots SnapshotConfig `yaml:"snapshots"`
	Diff      DiffConfig     `yaml:"diff"`
	Summary   string         `yaml:"summary"`
}

// StreamConfig describes one input. Zero width, height and frame rate keep
// the source values.
type StreamConfig struct {
	Path        string `yaml:"path"`
	Width       int    `yaml:"width"`
	Height      int    `yaml:"height"`
	FrameRate   string `yaml:"framerate"`
	PixelFormat string `yaml:"pixel_format"`
}

// SnapshotConfig enables the snapshot presenter.
type SnapshotConfig struct {
	Dir    string `yaml:"dir"`
	Every  int    `yaml:"every"`
	Width  int    `yaml:"width"`
	Format string `yaml:"format"`
	OSD    bool   `yaml:"osd"`
	Font   string `yaml:"font"`
}

// DiffConfig enables diff mode between two stream indices.
type DiffConfig struct {
	Enabled bool `yaml:"enabled"`
	A       int  `yaml:"a"`
	B       int  `yaml:"b"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	return Config{
		QueueSize: 16,
		Speed:     "1/1",
		Direction: "forward",
		LogLevel:  "info",
		Snapshots: SnapshotConfig{
			Every:  25,
			Format: "png",
			OSD:    true,
		},
		Diff: DiffConfig{A: 0, B: 1},
	}
}

// Load parses YAML over the defaults.
func Load(data []byte) (Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(fs ports.FileSystem, path string) (Config, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return Defaults(), fmt.Errorf("read config: %w", err)
	}
	return Load(data)
}

// Validate reports every problem of the configuration at once.
func (c Config) Validate() error {
	var result *multierror.Error
	add := func(format string, args ...interface{}) {
		result = multierror.Append(result, fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalid}, args...)...))
	}

	if c.QueueSize < 2 {
		add("queue_size %d is below 2", c.QueueSize)
	}
	if _, err := c.SpeedRational(); err != nil {
		add("speed: %v", err)
	}
	if _, err := c.PlaybackDirection(); err != nil {
		add("direction: %v", err)
	}
	if _, err := ports.ParseLogLevel(c.LogLevel); err != nil {
		add("log_level: %v", err)
	}
	for i, s := range c.Streams {
		if s.Path == "" {
			add("streams[%d]: path is empty", i)
		}
		if (s.Width > 0) != (s.Height > 0) || s.Width < 0 || s.Height < 0 {
			add("streams[%d]: width and height must both be set", i)
		}
		if _, err := s.StreamInfo(); err != nil {
			add("streams[%d]: %v", i, err)
		}
	}
	if c.Snapshots.Every < 0 {
		add("snapshots.every %d is negative", c.Snapshots.Every)
	}
	if _, err := c.SnapshotFormat(); err != nil {
		add("snapshots.format: %v", err)
	}
	if c.Diff.Enabled && (c.Diff.A < 0 || c.Diff.B < 0 || c.Diff.A == c.Diff.B) {
		add("diff needs two distinct stream indices, got %d and %d", c.Diff.A, c.Diff.B)
	}
	return result.ErrorOrNil()
}

// SpeedRational parses Speed.
func (c Config) SpeedRational() (media.Rational, error) {
	r, err := media.ParseRational(c.Speed)
	if err != nil {
		return media.Rational{}, err
	}
	if !r.Positive() {
		return media.Rational{}, fmt.Errorf("%s is not positive", r)
	}
	return r, nil
}

// PlaybackDirection parses Direction.
func (c Config) PlaybackDirection() (media.Direction, error) {
	switch strings.ToLower(c.Direction) {
	case "", "forward":
		return media.Forward, nil
	case "backward":
		return media.Backward, nil
	}
	return media.Forward, fmt.Errorf("unknown direction %q", c.Direction)
}

// Level returns the log level, LevelInfo when LogLevel is not recognized.
func (c Config) Level() ports.LogLevel {
	level, _ := ports.ParseLogLevel(c.LogLevel)
	return level
}

// SnapshotFormat parses Snapshots.Format.
func (c Config) SnapshotFormat() (ports.ImageFormat, error) {
	switch strings.ToLower(c.Snapshots.Format) {
	case "", "png":
		return ports.FormatPNG, nil
	case "jpg", "jpeg":
		return ports.FormatJPEG, nil
	}
	return ports.FormatPNG, fmt.Errorf("unknown format %q", c.Snapshots.Format)
}

// StreamInfo converts the stream entry for the decoder.
func (s StreamConfig) StreamInfo() (media.StreamInfo, error) {
	info := media.StreamInfo{
		Path:        s.Path,
		Width:       s.Width,
		Height:      s.Height,
		PixelFormat: media.PixelFormat(s.PixelFormat),
	}
	switch info.PixelFormat {
	case "", media.PixelFormatYUV420P, media.PixelFormatYUV422P, media.PixelFormatYUV444P:
	default:
		return info, fmt.Errorf("unsupported pixel format %q", s.PixelFormat)
	}
	if s.FrameRate != "" {
		rate, err := media.ParseRational(s.FrameRate)
		if err != nil {
			return info, err
		}
		if !rate.Positive() {
			return info, fmt.Errorf("framerate %s is not positive", rate)
		}
		info.FrameRate = rate
	}
	return info, nil
}

// ParseDiff parses "a,b" into stream indices.
func ParseDiff(s string) (DiffConfig, error) {
	a, b, ok := strings.Cut(s, ",")
	if !ok {
		return DiffConfig{}, fmt.Errorf("%w: diff %q, want a,b", ErrInvalid, s)
	}
	ia, errA := strconv.Atoi(strings.TrimSpace(a))
	ib, errB := strconv.Atoi(strings.TrimSpace(b))
	if errA != nil || errB != nil {
		return DiffConfig{}, fmt.Errorf("%w: diff %q, want a,b", ErrInvalid, s)
	}
	return DiffConfig{Enabled: true, A: ia, B: ib}, nil
}
