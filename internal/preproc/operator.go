// Package preproc implements the preprocessing orchestrators: fixed
// pipelines that load channels from a session, run filter and
// interpolation stages, and write results back. The store is only
// touched after every stage has succeeded.
package preproc

import (
	"errors"
	"fmt"
	"math"

	"github.com/ZhangSihui999/PsPM/internal/dsp"
)

// ErrInvalidOptions is returned for malformed pipeline options (unknown
// method name, out-of-range parameter). Detected before any mutation.
var ErrInvalidOptions = errors.New("invalid preprocessing options")

// Operator is one waveform transformation selected at pipeline
// construction time. Apply returns the transformed samples and the
// resulting sample rate.
type Operator interface {
	// Name is the method tag, e.g. "median".
	Name() string
	// Describe is the history message for a completed run, naming the
	// operator and its parameters.
	Describe() string
	Apply(samples []float64, rate float64) ([]float64, float64, error)
}

// MedianOperator is the sliding-window median (spike suppression).
type MedianOperator struct {
	// Window is the window length in samples, odd and positive.
	Window int
}

func (o MedianOperator) Name() string { return "median" }

func (o MedianOperator) Describe() string {
	return fmt.Sprintf("median filter over %d timepoints", o.Window)
}

func (o MedianOperator) Apply(samples []float64, rate float64) ([]float64, float64, error) {
	out, err := dsp.Median(samples, o.Window)
	return out, rate, err
}

// ButterOperator applies one Butterworth filter pass.
type ButterOperator struct {
	Spec dsp.FilterSpec
}

func (o ButterOperator) Name() string { return "butter" }

func (o ButterOperator) Describe() string {
	desc := "butterworth filter ("
	sep := ""
	if !math.IsNaN(o.Spec.LowPassFreq) {
		desc += fmt.Sprintf("low-pass %g Hz order %d", o.Spec.LowPassFreq, orderOrDefault(o.Spec.LowPassOrder))
		sep = ", "
	}
	if !math.IsNaN(o.Spec.HighPassFreq) {
		desc += sep + fmt.Sprintf("high-pass %g Hz order %d", o.Spec.HighPassFreq, orderOrDefault(o.Spec.HighPassOrder))
		sep = ", "
	}
	if !math.IsNaN(o.Spec.DownsampleRate) {
		desc += sep + fmt.Sprintf("downsample to %g Hz", o.Spec.DownsampleRate)
		sep = ", "
	}
	if o.Spec.Direction == dsp.Bidirectional {
		desc += sep + "bidirectional"
	} else {
		desc += sep + "unidirectional"
	}
	return desc + ")"
}

func orderOrDefault(order int) int {
	if order == 0 {
		return 1
	}
	return order
}

func (o ButterOperator) Apply(samples []float64, rate float64) ([]float64, float64, error) {
	return dsp.Apply(samples, rate, o.Spec)
}

// LeakyOperator is the exponential-decay leaky integrator.
type LeakyOperator struct {
	// TimeConstant is in seconds.
	TimeConstant float64
}

func (o LeakyOperator) Name() string { return "leaky_integrator" }

func (o LeakyOperator) Describe() string {
	return fmt.Sprintf("leaky integrator with time constant %g s", o.TimeConstant)
}

func (o LeakyOperator) Apply(samples []float64, rate float64) ([]float64, float64, error) {
	out, err := dsp.LeakyIntegrator(samples, rate, o.TimeConstant)
	return out, rate, err
}

// MethodParams carries the union of per-method parameters for
// NewOperator. Only the fields of the chosen method are read.
type MethodParams struct {
	// Window is the median window in samples.
	Window int
	// Filter is the butter filter pass.
	Filter dsp.FilterSpec
	// TimeConstant is the leaky-integrator time constant in seconds.
	TimeConstant float64
}

// NewOperator resolves a method name to its operator. The method set is
// closed; dispatch happens once here, not per call.
func NewOperator(method string, p MethodParams) (Operator, error) {
	switch method {
	case "median":
		if p.Window < 1 || p.Window%2 == 0 {
			return nil, fmt.Errorf("%w: median window must be odd and positive, got %d", ErrInvalidOptions, p.Window)
		}
		return MedianOperator{Window: p.Window}, nil
	case "butter":
		return ButterOperator{Spec: p.Filter}, nil
	case "leaky_integrator":
		if p.TimeConstant <= 0 {
			return nil, fmt.Errorf("%w: leaky integrator time constant %g", ErrInvalidOptions, p.TimeConstant)
		}
		return LeakyOperator{TimeConstant: p.TimeConstant}, nil
	}
	return nil, fmt.Errorf("%w: unknown method %q", ErrInvalidOptions, method)
}
