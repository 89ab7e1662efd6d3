// Package media defines the value types shared by the frame pipeline:
// timebases, playback direction and stream metadata.
package media

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidRational is returned for rationals with a zero denominator or
// strings that cannot be parsed.
var ErrInvalidRational = errors.New("media: invalid rational")

// Rational is an exact fraction Num/Den. It is used for stream timebases
// (seconds per PTS unit) and for the playback speed multiplier.
type Rational struct {
	Num int64
	Den int64
}

// R is a shorthand constructor.
func R(num, den int64) Rational {
	return Rational{Num: num, Den: den}
}

// Valid reports whether the denominator is non-zero.
func (r Rational) Valid() bool {
	return r.Den != 0
}

// Positive reports whether r is a valid value strictly greater than zero.
func (r Rational) Positive() bool {
	return r.Valid() && (r.Num > 0) == (r.Den > 0) && r.Num != 0
}

// Float64 returns the approximate floating point value.
func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Inverse returns Den/Num.
func (r Rational) Inverse() Rational {
	return Rational{Num: r.Den, Den: r.Num}
}

// String formats the rational as "num/den".
func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// ScaleNanos converts a count of r units to nanoseconds, rounding toward
// zero. For a timebase of 1/25 and pts 25 this yields exactly one second.
func (r Rational) ScaleNanos(units int64) int64 {
	if r.Den == 0 {
		return 0
	}
	// units*num*1e9 can overflow int64 for long streams with large
	// numerators, so go through big.Int.
	n := new(big.Int).SetInt64(units)
	n.Mul(n, big.NewInt(r.Num))
	n.Mul(n, big.NewInt(int64(time.Second)))
	n.Quo(n, big.NewInt(r.Den))
	return n.Int64()
}

// UnitsAt returns how many whole r units fit into nanos (floor for
// non-negative values).
func (r Rational) UnitsAt(nanos int64) int64 {
	if r.Num == 0 || r.Den == 0 {
		return 0
	}
	n := new(big.Int).SetInt64(nanos)
	n.Mul(n, big.NewInt(r.Den))
	d := new(big.Int).Mul(big.NewInt(r.Num), big.NewInt(int64(time.Second)))
	n.Quo(n, d)
	return n.Int64()
}

// DivDuration divides a duration by r, e.g. a 40ms delay at speed 2/1
// becomes 20ms.
func (r Rational) DivDuration(d time.Duration) time.Duration {
	if r.Num == 0 || r.Den == 0 {
		return d
	}
	return time.Duration(int64(d) * r.Den / r.Num)
}

// ParseRational accepts "num/den", an integer, or a decimal like "1.5".
func ParseRational(s string) (Rational, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Rational{}, fmt.Errorf("%w: empty", ErrInvalidRational)
	}

	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(num), 10, 64)
		if err != nil {
			return Rational{}, fmt.Errorf("%w: %q", ErrInvalidRational, s)
		}
		d, err := strconv.ParseInt(strings.TrimSpace(den), 10, 64)
		if err != nil || d == 0 {
			return Rational{}, fmt.Errorf("%w: %q", ErrInvalidRational, s)
		}
		return Rational{Num: n, Den: d}, nil
	}

	rat, ok := new(big.Rat).SetString(s)
	if !ok {
		return Rational{}, fmt.Errorf("%w: %q", ErrInvalidRational, s)
	}
	if !rat.Num().IsInt64() || !rat.Denom().IsInt64() {
		return Rational{}, fmt.Errorf("%w: %q out of range", ErrInvalidRational, s)
	}
	return Rational{Num: rat.Num().Int64(), Den: rat.Denom().Int64()}, nil
}
