package media

import (
	"errors"
	"testing"
	"time"
)

func TestRationalScaleNanos(t *testing.T) {
	tests := []struct {
		name  string
		tb    Rational
		units int64
		want  int64
	}{
		{"25fps one second", R(1, 25), 25, int64(time.Second)},
		{"30fps one second", R(1, 30), 30, int64(time.Second)},
		{"30fps one frame", R(1, 30), 1, 33333333},
		{"ntsc", R(1001, 30000), 30, 1001000000},
		{"zero", R(1, 25), 0, 0},
		{"invalid", R(1, 0), 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tb.ScaleNanos(tt.units); got != tt.want {
				t.Errorf("ScaleNanos(%d) = %d, want %d", tt.units, got, tt.want)
			}
		})
	}
}

func TestRationalUnitsAt(t *testing.T) {
	tb := R(1, 30)
	if got := tb.UnitsAt(int64(time.Second)); got != 30 {
		t.Errorf("UnitsAt(1s) = %d, want 30", got)
	}
	if got := tb.UnitsAt(int64(time.Second) - 1); got != 29 {
		t.Errorf("UnitsAt(1s-1ns) = %d, want 29", got)
	}
}

func TestRationalDivDuration(t *testing.T) {
	if got := R(2, 1).DivDuration(40 * time.Millisecond); got != 20*time.Millisecond {
		t.Errorf("2x speed: got %v, want 20ms", got)
	}
	if got := R(1, 2).DivDuration(40 * time.Millisecond); got != 80*time.Millisecond {
		t.Errorf("0.5x speed: got %v, want 80ms", got)
	}
}

func TestParseRational(t *testing.T) {
	tests := []struct {
		in      string
		want    Rational
		wantErr bool
	}{
		{"1/25", R(1, 25), false},
		{" 30000 / 1001 ", R(30000, 1001), false},
		{"2", R(2, 1), false},
		{"1.5", R(3, 2), false},
		{"0.5", R(1, 2), false},
		{"1/0", Rational{}, true},
		{"abc", Rational{}, true},
		{"", Rational{}, true},
	}

	for _, tt := range tests {
		got, err := ParseRational(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidRational) {
				t.Errorf("ParseRational(%q) error = %v, want ErrInvalidRational", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRational(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRational(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRationalPositive(t *testing.T) {
	if !R(1, 2).Positive() || !R(-1, -2).Positive() {
		t.Error("expected positive")
	}
	if R(0, 1).Positive() || R(-1, 2).Positive() || R(1, 0).Positive() {
		t.Error("expected not positive")
	}
}

func TestNewMetadata(t *testing.T) {
	m := NewMetadata(1921, 1081, PixelFormatYUV420P, R(1, 25), 250)
	if m.UVWidth != 961 || m.UVHeight != 541 {
		t.Errorf("chroma = %dx%d, want 961x541", m.UVWidth, m.UVHeight)
	}
	if m.Duration != 10*time.Second {
		t.Errorf("duration = %v, want 10s", m.Duration)
	}
	if got := m.PTSAt(time.Second); got != 25 {
		t.Errorf("PTSAt(1s) = %d, want 25", got)
	}
	if got := m.PTSAt(time.Hour); got != 249 {
		t.Errorf("PTSAt(1h) = %d, want clamp to 249", got)
	}

	m444 := NewMetadata(64, 48, PixelFormatYUV444P, R(1, 30), 1)
	if m444.UVWidth != 64 || m444.UVHeight != 48 {
		t.Errorf("444 chroma = %dx%d", m444.UVWidth, m444.UVHeight)
	}
}

func TestPTSAtRoundTripsTimeAt(t *testing.T) {
	m := NewMetadata(64, 36, "", R(1, 30), 300)
	for pts := int64(0); pts < 300; pts++ {
		if got := m.PTSAt(m.TimeAt(pts)); got != pts {
			t.Fatalf("PTSAt(TimeAt(%d)) = %d", pts, got)
		}
	}
	if got := m.PTSAt(m.TimeAt(10) - 1); got != 9 {
		t.Errorf("just before frame 10 = %d, want 9", got)
	}
}
