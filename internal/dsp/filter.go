// Package dsp provides the numeric filtering and resampling primitives
// of the toolbox: Butterworth low/high/band filtering with causal or
// zero-phase application, integer-factor decimation, and the median,
// notch and leaky-integrator operators.
//
// All functions operate on a plain waveform payload plus its sample
// rate; channel-kind policy is enforced by the callers that hold the
// channel header.
package dsp

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidSpec is returned for numerically inconsistent filter
// specifications, e.g. a cutoff at or above the Nyquist frequency.
var ErrInvalidSpec = errors.New("invalid filter specification")

// Direction selects how an IIR filter is applied.
type Direction int

const (
	// Unidirectional applies the filter causally, forward only.
	Unidirectional Direction = iota
	// Bidirectional applies the filter forward then backward,
	// canceling phase delay (zero-phase filtering).
	Bidirectional
)

// FilterSpec describes one Butterworth filtering pass. Frequencies set
// to NaN disable the corresponding stage.
type FilterSpec struct {
	// LowPassFreq is the low-pass cutoff in Hz, NaN to skip.
	LowPassFreq float64
	// LowPassOrder is the low-pass filter order. Defaults to 1 when the
	// stage is enabled and the order is zero.
	LowPassOrder int

	// HighPassFreq is the high-pass cutoff in Hz, NaN to skip.
	HighPassFreq float64
	// HighPassOrder is the high-pass filter order, defaulted like
	// LowPassOrder.
	HighPassOrder int

	// Direction selects causal or zero-phase application.
	Direction Direction

	// DownsampleRate requests decimation to this rate in Hz, NaN to
	// skip. The achieved rate may differ because decimation uses the
	// nearest integer factor.
	DownsampleRate float64
}

// NoFilter returns a spec with every stage disabled.
func NoFilter() FilterSpec {
	return FilterSpec{
		LowPassFreq:    math.NaN(),
		HighPassFreq:   math.NaN(),
		DownsampleRate: math.NaN(),
	}
}

// Order of the anti-alias low pass implied by decimation when the
// caller's own low-pass stage does not already bound the new Nyquist.
const antiAliasOrder = 4

// Apply runs the spec over samples at the given rate and returns the
// filtered samples together with the resulting sample rate, which only
// changes when decimation was requested.
func Apply(samples []float64, rate float64, spec FilterSpec) ([]float64, float64, error) {
	if rate <= 0 || math.IsNaN(rate) {
		return nil, 0, fmt.Errorf("%w: sample rate %g", ErrInvalidSpec, rate)
	}

	out := append([]float64(nil), samples...)

	lowPass := !math.IsNaN(spec.LowPassFreq)
	highPass := !math.IsNaN(spec.HighPassFreq)

	outRate := rate
	factor := 1
	if !math.IsNaN(spec.DownsampleRate) && spec.DownsampleRate < rate {
		if spec.DownsampleRate <= 0 {
			return nil, 0, fmt.Errorf("%w: downsample rate %g", ErrInvalidSpec, spec.DownsampleRate)
		}
		factor = int(math.Round(rate / spec.DownsampleRate))
		if factor < 1 {
			factor = 1
		}
		outRate = rate / float64(factor)

		// Decimation implies an anti-alias low pass. If the explicit
		// low-pass stage does not already bound the new Nyquist, add
		// one below it.
		if !lowPass || spec.LowPassFreq >= outRate/2 {
			lowPass = true
			spec.LowPassFreq = 0.8 * outRate / 2
			if spec.LowPassOrder < antiAliasOrder {
				spec.LowPassOrder = antiAliasOrder
			}
		}
	}

	if lowPass {
		order := spec.LowPassOrder
		if order == 0 {
			order = 1
		}
		sections, err := butterworth(order, spec.LowPassFreq, rate, false)
		if err != nil {
			return nil, 0, fmt.Errorf("low-pass stage: %w", err)
		}
		out = run(sections, out, spec.Direction)
	}

	if highPass {
		order := spec.HighPassOrder
		if order == 0 {
			order = 1
		}
		sections, err := butterworth(order, spec.HighPassFreq, rate, true)
		if err != nil {
			return nil, 0, fmt.Errorf("high-pass stage: %w", err)
		}
		out = run(sections, out, spec.Direction)
	}

	if factor > 1 {
		out = decimate(out, factor)
	}

	return out, outRate, nil
}

func run(sections []biquad, samples []float64, dir Direction) []float64 {
	if dir == Bidirectional {
		return filterZeroPhase(sections, samples)
	}
	return filterForward(sections, samples)
}

// decimate keeps every factor-th sample, starting with the first.
func decimate(samples []float64, factor int) []float64 {
	out := make([]float64, 0, (len(samples)+factor-1)/factor)
	for i := 0; i < len(samples); i += factor {
		out = append(out, samples[i])
	}
	return out
}
