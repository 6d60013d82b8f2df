package dsp

import (
	"fmt"
	"math"
	"sort"
)

// Median applies a sliding-window median of odd window length (in
// samples). Near the edges the window shrinks to the samples available.
// Used for spike and outlier suppression; no frequency semantics.
func Median(samples []float64, window int) ([]float64, error) {
	if window < 1 || window%2 == 0 {
		return nil, fmt.Errorf("%w: median window must be odd and positive, got %d", ErrInvalidSpec, window)
	}

	half := window / 2
	out := make([]float64, len(samples))
	buf := make([]float64, 0, window)
	for i := range samples {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half + 1
		if hi > len(samples) {
			hi = len(samples)
		}
		buf = append(buf[:0], samples[lo:hi]...)
		sort.Float64s(buf)
		mid := len(buf) / 2
		if len(buf)%2 == 1 {
			out[i] = buf[mid]
		} else {
			out[i] = (buf[mid-1] + buf[mid]) / 2
		}
	}
	return out, nil
}

// Notch suppresses a single interference frequency (typically mains
// hum) with a pole-zero notch: unit-circle zeros at the notch frequency
// and poles just inside, giving a narrow stopband of width freq/q Hz.
// The filter is applied zero-phase.
func Notch(samples []float64, rate, freq, q float64) ([]float64, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %g", ErrInvalidSpec, rate)
	}
	if !(freq > 0) || freq >= rate/2 {
		return nil, fmt.Errorf("%w: notch frequency %g Hz outside (0, %g)", ErrInvalidSpec, freq, rate/2)
	}
	if q <= 0 {
		return nil, fmt.Errorf("%w: notch quality factor %g", ErrInvalidSpec, q)
	}

	w0 := 2 * math.Pi * freq / rate
	alpha := math.Sin(w0) / (2 * q)
	a0 := 1 + alpha
	sec := biquad{
		b0: 1 / a0,
		b1: -2 * math.Cos(w0) / a0,
		b2: 1 / a0,
		a1: -2 * math.Cos(w0) / a0,
		a2: (1 - alpha) / a0,
	}
	return filterZeroPhase([]biquad{sec}, samples), nil
}

// LeakyIntegrator smooths samples with an exponential-decay running
// accumulator. tauSec is the time constant in seconds; it is converted
// to samples with the channel's rate and must amount to at least one
// sample. The kernel is causal with analytically known latency.
func LeakyIntegrator(samples []float64, rate, tauSec float64) ([]float64, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %g", ErrInvalidSpec, rate)
	}
	tau := tauSec * rate
	if tau < 1 {
		return nil, fmt.Errorf("%w: time constant %g s is below one sample at %g Hz", ErrInvalidSpec, tauSec, rate)
	}

	out := make([]float64, len(samples))
	if len(samples) == 0 {
		return out, nil
	}
	y := samples[0]
	for i, x := range samples {
		y += (x - y) / tau
		out[i] = y
	}
	return out, nil
}

// Rectify replaces each sample with its absolute value.
func Rectify(samples []float64) []float64 {
	out := make([]float64, len(samples))
	for i, x := range samples {
		out[i] = math.Abs(x)
	}
	return out
}
