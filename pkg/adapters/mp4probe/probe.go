// Package mp4probe reads video track metadata from MP4 files.
package mp4probe

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Eyevinn/mp4ff/mp4"

	"github.com/user/vidsync/pkg/media"
)

// ErrNoVideoTrack is returned when a file has no usable video track.
var ErrNoVideoTrack = errors.New("mp4probe: no video track found")

// Codec represents a video codec type.
type Codec string

const (
	CodecH264    Codec = "h264"
	CodecHEVC    Codec = "hevc"
	CodecAV1     Codec = "av1"
	CodecVP9     Codec = "vp9"
	CodecUnknown Codec = "unknown"
)

// Info describes the first video track of a file.
type Info struct {
	Codec      Codec
	Width      int
	Height     int
	Timescale  uint32
	Frames     int64
	Duration   time.Duration
	Fragmented bool
	// FrameDelta is the duration of the first sample in timescale units.
	FrameDelta uint32
}

// Timebase returns seconds per frame, FrameDelta/Timescale.
func (i Info) Timebase() media.Rational {
	return media.R(int64(i.FrameDelta), int64(i.Timescale))
}

// FrameRate returns frames per second.
func (i Info) FrameRate() media.Rational {
	return i.Timebase().Inverse()
}

// ProbeFile probes the MP4 file at path.
func ProbeFile(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	return Probe(f)
}

// Probe probes an MP4 stream.
func Probe(reader io.ReadSeeker) (Info, error) {
	mp4File, err := mp4.DecodeFile(reader)
	if err != nil {
		return Info{}, fmt.Errorf("decode mp4: %w", err)
	}

	if mp4File.IsFragmented() {
		return probeFragmented(mp4File)
	}
	return probeProgressive(mp4File)
}

func probeProgressive(mp4File *mp4.File) (Info, error) {
	if mp4File.Moov == nil {
		return Info{}, ErrNoVideoTrack
	}
	trak := findVideoTrack(mp4File.Moov.Traks)
	if trak == nil {
		return Info{}, ErrNoVideoTrack
	}

	info := trackInfo(trak)
	stbl := trak.Mdia.Minf.Stbl
	if stbl.Stsz != nil {
		info.Frames = int64(stbl.Stsz.SampleNumber)
	}
	var total uint64
	if stbl.Stts != nil {
		for i, count := range stbl.Stts.SampleCount {
			delta := stbl.Stts.SampleTimeDelta[i]
			if info.FrameDelta == 0 {
				info.FrameDelta = delta
			}
			total += uint64(count) * uint64(delta)
			if stbl.Stsz == nil {
				info.Frames += int64(count)
			}
		}
	}
	info.Duration = ticksToDuration(total, info.Timescale)
	return validate(info)
}

func probeFragmented(mp4File *mp4.File) (Info, error) {
	if mp4File.Init == nil || mp4File.Init.Moov == nil {
		return Info{}, ErrNoVideoTrack
	}
	moov := mp4File.Init.Moov
	trak := findVideoTrack(moov.Traks)
	if trak == nil {
		return Info{}, ErrNoVideoTrack
	}
	info := trackInfo(trak)
	info.Fragmented = true

	var trex *mp4.TrexBox
	if moov.Mvex != nil {
		for _, t := range moov.Mvex.Trexs {
			if t.TrackID == trak.Tkhd.TrackID {
				trex = t
				break
			}
		}
	}

	var total uint64
	for _, seg := range mp4File.Segments {
		for _, frag := range seg.Fragments {
			if frag.Moof == nil {
				continue
			}
			for _, traf := range frag.Moof.Trafs {
				if traf.Tfhd.TrackID != trak.Tkhd.TrackID {
					continue
				}
				samples, err := frag.GetFullSamples(trex)
				if err != nil {
					return Info{}, fmt.Errorf("read fragment samples: %w", err)
				}
				for _, s := range samples {
					if info.FrameDelta == 0 {
						info.FrameDelta = s.Dur
					}
					total += uint64(s.Dur)
				}
				info.Frames += int64(len(samples))
			}
		}
	}
	info.Duration = ticksToDuration(total, info.Timescale)
	return validate(info)
}

func findVideoTrack(traks []*mp4.TrakBox) *mp4.TrakBox {
	for _, trak := range traks {
		if trak.Mdia == nil || trak.Mdia.Hdlr == nil || trak.Mdia.Hdlr.HandlerType != "vide" {
			continue
		}
		if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil {
			continue
		}
		return trak
	}
	return nil
}

// trackInfo reads codec, geometry and timescale.
func trackInfo(trak *mp4.TrakBox) Info {
	info := Info{Codec: CodecUnknown}
	if trak.Mdia.Mdhd != nil {
		info.Timescale = trak.Mdia.Mdhd.Timescale
	}
	if trak.Tkhd != nil {
		info.Width = int(trak.Tkhd.Width >> 16)
		info.Height = int(trak.Tkhd.Height >> 16)
	}

	stsd := trak.Mdia.Minf.Stbl.Stsd
	if stsd == nil {
		return info
	}
	for _, child := range stsd.Children {
		switch child.Type() {
		case "avc1", "avc3":
			info.Codec = CodecH264
		case "hvc1", "hev1":
			info.Codec = CodecHEVC
		case "av01":
			info.Codec = CodecAV1
		case "vp09":
			info.Codec = CodecVP9
		default:
			continue
		}
		// The sample entry carries the coded size; prefer it to tkhd.
		if vse, ok := child.(*mp4.VisualSampleEntryBox); ok && vse.Width > 0 && vse.Height > 0 {
			info.Width, info.Height = int(vse.Width), int(vse.Height)
		}
		break
	}
	return info
}

func validate(info Info) (Info, error) {
	if info.Timescale == 0 || info.FrameDelta == 0 || info.Frames == 0 {
		return Info{}, fmt.Errorf("%w: timescale %d, frame delta %d, %d frames",
			ErrNoVideoTrack, info.Timescale, info.FrameDelta, info.Frames)
	}
	return info, nil
}

func ticksToDuration(ticks uint64, timescale uint32) time.Duration {
	if timescale == 0 {
		return 0
	}
	return time.Duration(ticks * uint64(time.Second) / uint64(timescale))
}
