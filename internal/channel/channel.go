// Package channel defines the canonical representation of one recorded
// physiological signal and the registry of recognized channel types.
//
// Every component of the toolbox (importers, the session store, the
// preprocessing pipelines) exchanges data exclusively in this shape.
package channel

import (
	"errors"
	"fmt"
	"math"
)

// Kind is the semantic category of a channel, fixed at creation.
type Kind string

const (
	// Waveform is a uniformly sampled continuous signal.
	Waveform Kind = "wave"
	// Events is a sparse series of timestamps, optionally annotated
	// with per-event marker values and names.
	Events Kind = "events"
)

var (
	// ErrUnsupportedKind is returned when a waveform-only operation is
	// invoked on an events channel, or the reverse.
	ErrUnsupportedKind = errors.New("operation not supported for this channel kind")

	// ErrInvalidChannel is returned when a channel payload violates the
	// canonical shape (bad sample rate, mismatched marker info, ...).
	ErrInvalidChannel = errors.New("invalid channel")
)

// MarkerInfo carries optional per-event annotations for an events channel.
// When present, Values and Names run parallel to the event timestamps;
// either slice may be empty if the source recorded no such annotation.
type MarkerInfo struct {
	Values Samples  `json:"values,omitempty"`
	Names  []string `json:"names,omitempty"`
}

// Channel is one typed signal stream in canonical form.
//
// For Waveform channels Data holds samples at SampleRate samples/second.
// For Events channels Data holds event timestamps in seconds since
// recording start; SampleRate is kept for bookkeeping only.
type Channel struct {
	// Type is a tag registered in the channel type registry, e.g. "scr".
	Type string `json:"type"`

	// Kind is the semantic category. It never changes after creation.
	Kind Kind `json:"kind"`

	// Units is the physical unit of the samples, e.g. "µS", "mm", "events".
	Units string `json:"units"`

	// SampleRate is in samples per second. Must be positive for waveform
	// channels; events channels carry it only for bookkeeping.
	SampleRate float64 `json:"sample_rate"`

	// Data holds samples (waveform) or timestamps in seconds (events).
	Data Samples `json:"data"`

	// Marker holds per-event annotations. Only meaningful for events.
	Marker *MarkerInfo `json:"marker,omitempty"`
}

// NewWaveform builds a waveform channel.
func NewWaveform(typ, units string, sampleRate float64, data []float64) *Channel {
	return &Channel{
		Type:       typ,
		Kind:       Waveform,
		Units:      units,
		SampleRate: sampleRate,
		Data:       data,
	}
}

// NewEvents builds an events channel from timestamps in seconds.
func NewEvents(typ string, timestamps []float64, marker *MarkerInfo) *Channel {
	return &Channel{
		Type:   typ,
		Kind:   Events,
		Units:  "events",
		Data:   timestamps,
		Marker: marker,
	}
}

// Validate checks the canonical-shape invariants.
func (c *Channel) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil channel", ErrInvalidChannel)
	}
	switch c.Kind {
	case Waveform:
		if c.SampleRate <= 0 || math.IsNaN(c.SampleRate) || math.IsInf(c.SampleRate, 0) {
			return fmt.Errorf("%w: waveform channel %q needs a positive sample rate, got %v",
				ErrInvalidChannel, c.Type, c.SampleRate)
		}
		if c.Marker != nil {
			return fmt.Errorf("%w: waveform channel %q carries marker info", ErrInvalidChannel, c.Type)
		}
	case Events:
		for i := 1; i < len(c.Data); i++ {
			if c.Data[i] < c.Data[i-1] {
				return fmt.Errorf("%w: events channel %q has non-monotonic timestamps at index %d",
					ErrInvalidChannel, c.Type, i)
			}
		}
		if c.Marker != nil {
			if len(c.Marker.Values) != 0 && len(c.Marker.Values) != len(c.Data) {
				return fmt.Errorf("%w: events channel %q has %d marker values for %d events",
					ErrInvalidChannel, c.Type, len(c.Marker.Values), len(c.Data))
			}
			if len(c.Marker.Names) != 0 && len(c.Marker.Names) != len(c.Data) {
				return fmt.Errorf("%w: events channel %q has %d marker names for %d events",
					ErrInvalidChannel, c.Type, len(c.Marker.Names), len(c.Data))
			}
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidChannel, c.Kind)
	}
	return nil
}

// Duration returns the channel's extent in seconds: sample count over
// sample rate for waveforms, the last timestamp for events.
func (c *Channel) Duration() float64 {
	switch c.Kind {
	case Waveform:
		if c.SampleRate <= 0 {
			return 0
		}
		return float64(len(c.Data)) / c.SampleRate
	case Events:
		if len(c.Data) == 0 {
			return 0
		}
		return c.Data[len(c.Data)-1]
	}
	return 0
}

// Clone returns a deep copy. The store hands out clones so callers can
// never mutate stored payloads in place.
func (c *Channel) Clone() *Channel {
	if c == nil {
		return nil
	}
	out := *c
	out.Data = append([]float64(nil), c.Data...)
	if c.Marker != nil {
		m := &MarkerInfo{
			Values: append([]float64(nil), c.Marker.Values...),
			Names:  append([]string(nil), c.Marker.Names...),
		}
		out.Marker = m
	}
	return &out
}
