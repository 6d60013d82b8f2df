package preproc

import (
	"errors"
	"fmt"

	"github.com/ZhangSihui999/PsPM/internal/channel"
	"github.com/ZhangSihui999/PsPM/internal/interp"
	"github.com/ZhangSihui999/PsPM/internal/store"
)

// InterpolateOptions configures the gap-filling pipeline.
type InterpolateOptions struct {
	// Method defaults to linear.
	Method interp.Method

	// AllowExtrapolation suppresses the forced-extrapolation warning
	// for boundary gaps.
	AllowExtrapolation bool

	// Channels selects the sources. Empty selects every waveform
	// channel in the session.
	Channels []Selector

	// WriteMode defaults to WriteAdd.
	WriteMode WriteMode
}

// ChannelOutcome reports one channel's result within an interpolation
// run.
type ChannelOutcome struct {
	Source    int
	ChannelID int
	Fraction  float64
	Warnings  []string
	// Err is set when this channel was skipped, e.g. for
	// ErrInsufficientData. It does not abort the rest of the run.
	Err error
}

// RunInterpolate fills missing samples in the selected channels. A
// channel that cannot be interpolated is recorded and skipped; the
// remaining channels continue. The session is only mutated for
// channels that succeeded.
func RunInterpolate(sess *store.Session, opts InterpolateOptions) ([]ChannelOutcome, error) {
	selectors := opts.Channels
	if len(selectors) == 0 {
		for _, sel := range sess.Find(func(c *channel.Channel) bool { return c.Kind == channel.Waveform }) {
			selectors = append(selectors, Selector{ID: sel.ID})
		}
	}
	if len(selectors) == 0 {
		return nil, fmt.Errorf("%w: session has no waveform channel", store.ErrNotFound)
	}

	// Interpolate everything first so a late failure cannot leave the
	// session partially rewritten.
	type staged struct {
		src     int
		ch      *channel.Channel
		result  interp.Result
		outcome ChannelOutcome
	}
	var stages []staged
	for _, sel := range selectors {
		id, src, err := sel.waveform(sess)
		if err != nil {
			if errors.Is(err, channel.ErrUnsupportedKind) || errors.Is(err, store.ErrNotFound) {
				stages = append(stages, staged{outcome: ChannelOutcome{Source: sel.ID, Err: err}})
				continue
			}
			return nil, err
		}
		res, err := interp.Interpolate(src.Data, opts.Method, opts.AllowExtrapolation)
		if err != nil {
			stages = append(stages, staged{outcome: ChannelOutcome{Source: id, Err: err}})
			continue
		}
		stages = append(stages, staged{src: id, ch: src, result: res})
	}

	outcomes := make([]ChannelOutcome, 0, len(stages))
	for _, st := range stages {
		if st.outcome.Err != nil {
			outcomes = append(outcomes, st.outcome)
			continue
		}
		filled := channel.NewWaveform(st.ch.Type, st.ch.Units, st.ch.SampleRate, st.result.Filled)
		msg := fmt.Sprintf("%s interpolation filled %.1f%% of samples", opts.Method, st.result.Fraction*100)
		res, err := writeBack(sess, filled, st.src, opts.WriteMode, msg)
		if err != nil {
			return outcomes, err
		}
		oc := ChannelOutcome{
			Source:    st.src,
			ChannelID: res.ChannelID,
			Fraction:  st.result.Fraction,
			Warnings:  res.Warnings,
		}
		if st.result.ForcedExtrapolation {
			oc.Warnings = append(oc.Warnings,
				"boundary gaps were extrapolated although extrapolation was not requested")
		}
		outcomes = append(outcomes, oc)
	}
	return outcomes, nil
}

// RunInterpolateFile executes the interpolation pipeline against a
// persisted session.
func RunInterpolateFile(b store.Backend, opts InterpolateOptions) ([]ChannelOutcome, error) {
	var outcomes []ChannelOutcome
	err := store.Update(b, func(sess *store.Session) error {
		var err error
		outcomes, err = RunInterpolate(sess, opts)
		return err
	})
	return outcomes, err
}
