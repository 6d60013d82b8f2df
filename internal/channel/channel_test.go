package channel

import (
	"errors"
	"testing"
)

func TestValidateWaveform(t *testing.T) {
	c := NewWaveform("scr", "µS", 100, []float64{0.1, 0.2, 0.3})
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestValidateWaveformBadRate(t *testing.T) {
	cases := []float64{0, -10}
	for _, rate := range cases {
		c := NewWaveform("scr", "µS", rate, nil)
		err := c.Validate()
		if !errors.Is(err, ErrInvalidChannel) {
			t.Errorf("rate %v: want ErrInvalidChannel, got %v", rate, err)
		}
	}
}

func TestValidateEventsMonotonic(t *testing.T) {
	c := NewEvents("marker", []float64{0.5, 1.0, 0.9}, nil)
	if err := c.Validate(); !errors.Is(err, ErrInvalidChannel) {
		t.Fatalf("want ErrInvalidChannel for non-monotonic timestamps, got %v", err)
	}
}

func TestValidateEventsMarkerMismatch(t *testing.T) {
	c := NewEvents("marker", []float64{0.5, 1.0}, &MarkerInfo{Values: []float64{1}})
	if err := c.Validate(); !errors.Is(err, ErrInvalidChannel) {
		t.Fatalf("want ErrInvalidChannel for mismatched marker values, got %v", err)
	}
}

func TestDuration(t *testing.T) {
	wave := NewWaveform("scr", "µS", 100, make([]float64, 250))
	if got := wave.Duration(); got != 2.5 {
		t.Errorf("waveform duration = %v, want 2.5", got)
	}

	ev := NewEvents("marker", []float64{0.5, 3.25}, nil)
	if got := ev.Duration(); got != 3.25 {
		t.Errorf("events duration = %v, want 3.25", got)
	}

	empty := NewEvents("marker", nil, nil)
	if got := empty.Duration(); got != 0 {
		t.Errorf("empty events duration = %v, want 0", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := NewEvents("marker", []float64{1, 2}, &MarkerInfo{Names: []string{"a", "b"}})
	cp := orig.Clone()

	cp.Data[0] = 99
	cp.Marker.Names[0] = "x"

	if orig.Data[0] != 1 || orig.Marker.Names[0] != "a" {
		t.Fatal("Clone shares backing storage with original")
	}
}
