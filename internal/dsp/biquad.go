package dsp

import (
	"fmt"
	"math"
)

// biquad is one second-order section in Direct Form II transposed.
// Coefficients are normalized so a0 == 1.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// filterForward runs the cascade causally over samples and returns a new
// slice. State starts at zero.
func filterForward(sections []biquad, samples []float64) []float64 {
	out := make([]float64, len(samples))
	copy(out, samples)
	for s := range sections {
		sec := sections[s]
		var z1, z2 float64
		for i, x := range out {
			y := sec.b0*x + z1
			z1 = sec.b1*x - sec.a1*y + z2
			z2 = sec.b2*x - sec.a2*y
			out[i] = y
		}
	}
	return out
}

// filterZeroPhase runs the cascade forward, then backward over the
// reversed signal, canceling phase delay. The signal is extended at both
// ends with odd reflections of itself so the filter state settles before
// the real samples are reached.
func filterZeroPhase(sections []biquad, samples []float64) []float64 {
	n := len(samples)
	if n < 2 {
		return append([]float64(nil), samples...)
	}

	pad := 3 * (2*len(sections) + 1)
	if pad > n-1 {
		pad = n - 1
	}

	ext := make([]float64, 0, n+2*pad)
	for i := pad; i >= 1; i-- {
		ext = append(ext, 2*samples[0]-samples[i])
	}
	ext = append(ext, samples...)
	for i := 1; i <= pad; i++ {
		ext = append(ext, 2*samples[n-1]-samples[n-1-i])
	}

	ext = filterForward(sections, ext)
	reverse(ext)
	ext = filterForward(sections, ext)
	reverse(ext)

	return append([]float64(nil), ext[pad:pad+n]...)
}

func reverse(s []float64) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// butterworth designs a Butterworth low- or high-pass of the given order
// as a cascade of second-order sections, using bilinear-transform biquads
// with the Butterworth pole Q values. cutoff must lie below Nyquist.
func butterworth(order int, cutoff, rate float64, highpass bool) ([]biquad, error) {
	if order < 1 {
		return nil, fmt.Errorf("%w: filter order %d", ErrInvalidSpec, order)
	}
	nyquist := rate / 2
	if !(cutoff > 0) || cutoff >= nyquist {
		return nil, fmt.Errorf("%w: cutoff %g Hz outside (0, %g) at %g Hz sampling",
			ErrInvalidSpec, cutoff, nyquist, rate)
	}

	sections := make([]biquad, 0, (order+1)/2)
	w0 := 2 * math.Pi * cutoff / rate
	cosw0, sinw0 := math.Cos(w0), math.Sin(w0)

	for k := 0; k < order/2; k++ {
		// Pole angles of the analog Butterworth prototype.
		q := 1 / (2 * math.Cos(math.Pi*float64(2*k+1)/float64(2*order)))
		alpha := sinw0 / (2 * q)
		a0 := 1 + alpha
		sec := biquad{
			a1: -2 * cosw0 / a0,
			a2: (1 - alpha) / a0,
		}
		if highpass {
			sec.b0 = (1 + cosw0) / 2 / a0
			sec.b1 = -(1 + cosw0) / a0
			sec.b2 = (1 + cosw0) / 2 / a0
		} else {
			sec.b0 = (1 - cosw0) / 2 / a0
			sec.b1 = (1 - cosw0) / a0
			sec.b2 = (1 - cosw0) / 2 / a0
		}
		sections = append(sections, sec)
	}

	if order%2 == 1 {
		// Odd orders contribute one real pole: a first-order section
		// from the bilinear transform, expressed as a degenerate biquad.
		k := math.Tan(w0 / 2)
		if highpass {
			sections = append(sections, biquad{
				b0: 1 / (1 + k),
				b1: -1 / (1 + k),
				a1: (k - 1) / (k + 1),
			})
		} else {
			sections = append(sections, biquad{
				b0: k / (1 + k),
				b1: k / (1 + k),
				a1: (k - 1) / (k + 1),
			})
		}
	}

	return sections, nil
}
