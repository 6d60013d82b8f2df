// Package interp fills runs of missing (NaN) samples in a waveform
// using standard 1-D interpolation methods.
package interp

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrInsufficientData is returned when fewer than two known samples
	// exist, making interpolation impossible. Batch drivers treat this
	// per channel, not as a fatal condition.
	ErrInsufficientData = errors.New("fewer than 2 non-missing samples")

	// ErrOutOfRange is returned when the method cannot produce a value
	// for a boundary gap: previous at the start, next at the end.
	ErrOutOfRange = errors.New("method undefined for boundary gap")

	// ErrUnknownMethod is returned for an unrecognized method name.
	ErrUnknownMethod = errors.New("unknown interpolation method")
)

// Method selects the 1-D interpolation scheme.
type Method int

const (
	Linear Method = iota
	Nearest
	Previous
	Next
	Spline
	PChip
	Cubic
)

// ParseMethod maps a method name to its Method.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(s) {
	case "linear":
		return Linear, nil
	case "nearest":
		return Nearest, nil
	case "previous":
		return Previous, nil
	case "next":
		return Next, nil
	case "spline":
		return Spline, nil
	case "pchip":
		return PChip, nil
	case "cubic":
		return Cubic, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}

func (m Method) String() string {
	switch m {
	case Linear:
		return "linear"
	case Nearest:
		return "nearest"
	case Previous:
		return "previous"
	case Next:
		return "next"
	case Spline:
		return "spline"
	case PChip:
		return "pchip"
	case Cubic:
		return "cubic"
	}
	return fmt.Sprintf("method(%d)", int(m))
}

// Result is the outcome of one interpolation call.
type Result struct {
	// Filled is the gap-free output, same length as the input.
	Filled []float64

	// Fraction is the proportion of samples that were filled.
	Fraction float64

	// ForcedExtrapolation is set when boundary gaps had to be
	// extrapolated although the caller did not ask for extrapolation.
	// It is a warning, not an error: leaving boundary NaNs in place is
	// not an option once interpolation was requested.
	ForcedExtrapolation bool
}

// Interpolate fills every NaN run in samples with the chosen method.
//
// Boundary gaps (missing samples before the first or after the last
// known one) are extrapolated; when allowExtrapolation is false this is
// reported through Result.ForcedExtrapolation. Previous cannot fill a
// gap at the start and Next cannot fill one at the end; those calls
// fail with ErrOutOfRange.
func Interpolate(samples []float64, method Method, allowExtrapolation bool) (Result, error) {
	if method < Linear || method > Cubic {
		return Result{}, fmt.Errorf("%w: %d", ErrUnknownMethod, int(method))
	}

	xs := make([]float64, 0, len(samples))
	ys := make([]float64, 0, len(samples))
	missing := 0
	for i, v := range samples {
		if math.IsNaN(v) {
			missing++
		} else {
			xs = append(xs, float64(i))
			ys = append(ys, v)
		}
	}

	out := append([]float64(nil), samples...)
	if missing == 0 {
		return Result{Filled: out}, nil
	}
	if len(xs) < 2 {
		return Result{}, fmt.Errorf("%w (%d of %d known)", ErrInsufficientData, len(xs), len(samples))
	}

	startGap := math.IsNaN(samples[0])
	endGap := math.IsNaN(samples[len(samples)-1])
	if startGap && method == Previous {
		return Result{}, fmt.Errorf("%w: previous has no value before the first known sample", ErrOutOfRange)
	}
	if endGap && method == Next {
		return Result{}, fmt.Errorf("%w: next has no value after the last known sample", ErrOutOfRange)
	}

	ev, err := newEvaluator(method, xs, ys)
	if err != nil {
		return Result{}, err
	}
	for i, v := range samples {
		if math.IsNaN(v) {
			out[i] = ev.at(float64(i))
		}
	}

	return Result{
		Filled:              out,
		Fraction:            float64(missing) / float64(len(samples)),
		ForcedExtrapolation: (startGap || endGap) && !allowExtrapolation,
	}, nil
}

// evaluator evaluates the fitted interpolant at arbitrary positions,
// including positions outside the known range.
type evaluator struct {
	method Method
	xs, ys []float64

	// Spline second derivatives or Hermite tangents, per method.
	d2 []float64
	m  []float64
}

func newEvaluator(method Method, xs, ys []float64) (*evaluator, error) {
	ev := &evaluator{method: method, xs: xs, ys: ys}
	switch method {
	case Spline:
		ev.d2 = naturalSplineSecondDerivs(xs, ys)
	case PChip:
		ev.m = pchipTangents(xs, ys)
	case Cubic:
		ev.m = catmullRomTangents(xs, ys)
	}
	return ev, nil
}

// segment returns the index i such that the query lies in
// [xs[i], xs[i+1]], clamped to the first/last segment for
// extrapolation.
func (ev *evaluator) segment(x float64) int {
	lo, hi := 0, len(ev.xs)-2
	if x <= ev.xs[0] {
		return 0
	}
	if x >= ev.xs[len(ev.xs)-1] {
		return hi
	}
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if ev.xs[mid] <= x {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

func (ev *evaluator) at(x float64) float64 {
	switch ev.method {
	case Nearest:
		i := ev.segment(x)
		if x-ev.xs[i] <= ev.xs[i+1]-x {
			return ev.ys[i]
		}
		return ev.ys[i+1]
	case Previous:
		i := ev.segment(x)
		if x >= ev.xs[i+1] {
			return ev.ys[i+1]
		}
		return ev.ys[i]
	case Next:
		i := ev.segment(x)
		if x <= ev.xs[i] {
			return ev.ys[i]
		}
		return ev.ys[i+1]
	case Linear:
		i := ev.segment(x)
		t := (x - ev.xs[i]) / (ev.xs[i+1] - ev.xs[i])
		return ev.ys[i] + t*(ev.ys[i+1]-ev.ys[i])
	case Spline:
		return ev.splineAt(x)
	case PChip, Cubic:
		return ev.hermiteAt(x)
	}
	return math.NaN()
}

func (ev *evaluator) splineAt(x float64) float64 {
	i := ev.segment(x)
	h := ev.xs[i+1] - ev.xs[i]
	a := (ev.xs[i+1] - x) / h
	b := (x - ev.xs[i]) / h
	return a*ev.ys[i] + b*ev.ys[i+1] +
		((a*a*a-a)*ev.d2[i]+(b*b*b-b)*ev.d2[i+1])*h*h/6
}

func (ev *evaluator) hermiteAt(x float64) float64 {
	i := ev.segment(x)
	h := ev.xs[i+1] - ev.xs[i]
	t := (x - ev.xs[i]) / h
	h00 := (1 + 2*t) * (1 - t) * (1 - t)
	h10 := t * (1 - t) * (1 - t)
	h01 := t * t * (3 - 2*t)
	h11 := t * t * (t - 1)
	return h00*ev.ys[i] + h10*h*ev.m[i] + h01*ev.ys[i+1] + h11*h*ev.m[i+1]
}
