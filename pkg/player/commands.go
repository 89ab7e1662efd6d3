package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/user/vidsync/pkg/media"
	"github.com/user/vidsync/pkg/videocontroller"
)

var (
	// ErrUnknownCommand is returned for command names Execute does not know.
	ErrUnknownCommand = errors.New("player: unknown command")
	// ErrUsage is returned for commands with missing or malformed arguments.
	ErrUsage = errors.New("player: usage")
)

// Execute runs one command line and reports whether the session should
// end. Blank lines are ignored.
func (p *Player) Execute(ctx context.Context, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	p.logger.Debug("Command: %s", line)

	switch name {
	case "play":
		return false, p.ctrl.Play(ctx)
	case "pause":
		return false, p.ctrl.Pause(ctx)
	case "toggle":
		return false, p.ctrl.TogglePlayPause(ctx)
	case "step":
		return false, p.ctrl.StepForward(ctx)
	case "back":
		return false, p.ctrl.StepBackward(ctx)
	case "dir":
		return false, p.ctrl.ToggleDirection(ctx)

	case "seek":
		ms, err := intArg(name, args, "<ms>")
		if err != nil {
			return false, err
		}
		return false, p.ctrl.SeekTo(ctx, time.Duration(ms)*time.Millisecond)

	case "frame":
		pts, err := intArg(name, args, "<pts>")
		if err != nil {
			return false, err
		}
		return false, p.ctrl.JumpToFrame(ctx, pts)

	case "speed":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: speed <rational>", ErrUsage)
		}
		speed, err := media.ParseRational(args[0])
		if err != nil {
			return false, err
		}
		return false, p.ctrl.SetSpeed(ctx, speed)

	case "add":
		if len(args) != 1 {
			return false, fmt.Errorf("%w: add <file>", ErrUsage)
		}
		index, err := p.ctrl.AddVideo(ctx, media.StreamInfo{Path: args[0]})
		if err != nil {
			return false, err
		}
		fmt.Fprintf(p.out, "added #%d %s\n", index, args[0])
		return false, nil

	case "remove":
		index, err := intArg(name, args, "<index>")
		if err != nil {
			return false, err
		}
		return false, p.ctrl.RemoveVideo(ctx, int(index))

	case "diff":
		if len(args) == 1 && strings.EqualFold(args[0], "off") {
			return false, p.ctrl.SetDiffMode(ctx, false, 0, 0)
		}
		if len(args) != 2 {
			return false, fmt.Errorf("%w: diff <a> <b> | diff off", ErrUsage)
		}
		a, errA := strconv.Atoi(args[0])
		b, errB := strconv.Atoi(args[1])
		if errA != nil || errB != nil {
			return false, fmt.Errorf("%w: diff <a> <b> | diff off", ErrUsage)
		}
		return false, p.ctrl.SetDiffMode(ctx, true, a, b)

	case "status":
		st, err := p.ctrl.Status(ctx)
		if err != nil {
			return false, err
		}
		writeStatus(p.out, st)
		return false, nil

	case "quit", "exit":
		return true, nil
	}

	p.logger.Warn("Unknown command: %s", name)
	return false, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
}

func intArg(name string, args []string, usage string) (int64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%w: %s %s", ErrUsage, name, usage)
	}
	v, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %s", ErrUsage, name, usage)
	}
	return v, nil
}

func writeStatus(w io.Writer, st videocontroller.Status) {
	state := "paused"
	switch {
	case st.Seeking:
		state = "seeking"
	case st.Buffering:
		state = "buffering"
	case st.Playing:
		state = "playing"
	}
	fmt.Fprintf(w, "%s %s / %s speed %s %s", state,
		clock(st.CurrentTime), clock(st.Duration), st.Speed, st.Direction)
	if st.ReachedEnd {
		fmt.Fprint(w, " end")
	}
	fmt.Fprintln(w)

	for _, s := range st.Streams {
		flags := ""
		if !s.Ready {
			flags += " prefilling"
		}
		if s.Stalled {
			flags += " stalled"
		}
		if s.ReachedEnd {
			flags += " end"
		}
		fmt.Fprintf(w, "#%d %s frame %d/%d%s\n", s.Index, s.Path, s.Shown, s.Metadata.TotalFrames, flags)
	}

	if st.DiffEnabled {
		fmt.Fprintf(w, "diff #%d #%d", st.DiffA, st.DiffB)
		if st.PSNR.Count > 0 {
			fmt.Fprintf(w, " psnr min %s avg %s max %s", db(st.PSNR.Min), db(st.PSNR.Avg()), db(st.PSNR.Max))
		}
		fmt.Fprintln(w)
	}
}

func clock(d time.Duration) string {
	ms := d.Milliseconds()
	return fmt.Sprintf("%02d:%02d.%03d", ms/60000, ms/1000%60, ms%1000)
}

func db(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", v)
}
