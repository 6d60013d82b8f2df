package preproc

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/ZhangSihui999/PsPM/internal/channel"
	"github.com/ZhangSihui999/PsPM/internal/dsp"
	"github.com/ZhangSihui999/PsPM/internal/interp"
	"github.com/ZhangSihui999/PsPM/internal/store"
)

func sessionWithSCRAndMarker(t *testing.T) *store.Session {
	t.Helper()
	sess := store.NewSession(channel.Default())
	scr := make([]float64, 300)
	for i := range scr {
		scr[i] = math.Sin(2*math.Pi*float64(i)/100) + 0.01*float64(i%7)
	}
	_, err := sess.Add("",
		channel.NewWaveform("scr", "µS", 100, scr),
		channel.NewEvents("marker", []float64{0.5, 1.5, 2.5}, nil),
	)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	return sess
}

func TestGenericMedianEndToEnd(t *testing.T) {
	sess := sessionWithSCRAndMarker(t)
	historyBefore := len(sess.History())

	op, err := NewOperator("median", MethodParams{Window: 5})
	if err != nil {
		t.Fatalf("NewOperator failed: %v", err)
	}
	res, err := Run(sess, op, Selector{ID: 1}, WriteAdd)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if sess.Len() != 3 {
		t.Fatalf("session has %d channels, want 3", sess.Len())
	}
	if res.ChannelID != 3 {
		t.Errorf("result id = %d, want 3", res.ChannelID)
	}

	src, _ := sess.ByID(1)
	out, _ := sess.ByID(3)
	if out.Type != "scr" || out.SampleRate != src.SampleRate || len(out.Data) != len(src.Data) {
		t.Errorf("output channel %s@%g with %d samples, want scr@%g with %d",
			out.Type, out.SampleRate, len(out.Data), src.SampleRate, len(src.Data))
	}

	h := sess.History()
	if len(h) != historyBefore+1 {
		t.Fatalf("history grew by %d entries, want 1", len(h)-historyBefore)
	}
	if !strings.Contains(h[len(h)-1].Message, "median filter over 5 timepoints") {
		t.Errorf("history message = %q", h[len(h)-1].Message)
	}
}

func TestEMGEndToEnd(t *testing.T) {
	sess := store.NewSession(channel.Default())
	raw := make([]float64, 4000)
	for i := range raw {
		ti := float64(i) / 2000
		raw[i] = math.Sin(2*math.Pi*120*ti) + 0.5*math.Sin(2*math.Pi*60*ti)
	}
	if _, err := sess.Add("", channel.NewWaveform("emg", "mV", 2000, raw)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	res, err := RunEMG(sess, EMGOptions{MainsFrequency: 60})
	if err != nil {
		t.Fatalf("RunEMG failed: %v", err)
	}

	out, err := sess.ByID(res.ChannelID)
	if err != nil {
		t.Fatalf("ByID failed: %v", err)
	}
	if out.Type != EMGOutputType {
		t.Errorf("output type = %q, want %q", out.Type, EMGOutputType)
	}
	if out.SampleRate != 2000 {
		t.Errorf("sample rate = %g, want unchanged 2000", out.SampleRate)
	}
	if len(out.Data) != len(raw) {
		t.Errorf("output length = %d, want %d", len(out.Data), len(raw))
	}
	// The rectified envelope never goes negative.
	for i, v := range out.Data {
		if v < -1e-6 {
			t.Fatalf("envelope negative at %d: %v", i, v)
		}
	}
}

func TestEMGReplaceDegradesToAdd(t *testing.T) {
	sess := store.NewSession(channel.Default())
	raw := make([]float64, 2000)
	if _, err := sess.Add("", channel.NewWaveform("emg", "mV", 2000, raw)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	res, err := RunEMG(sess, EMGOptions{WriteMode: WriteReplace})
	if err != nil {
		t.Fatalf("RunEMG failed: %v", err)
	}
	if len(res.Warnings) == 0 {
		t.Error("want degrade-to-add warning when no processed channel exists yet")
	}
	if sess.Len() != 2 {
		t.Errorf("session has %d channels, want 2", sess.Len())
	}

	// A second replace run now substitutes the processed channel.
	res, err = RunEMG(sess, EMGOptions{WriteMode: WriteReplace})
	if err != nil {
		t.Fatalf("second RunEMG failed: %v", err)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings on true replace: %v", res.Warnings)
	}
	if sess.Len() != 2 {
		t.Errorf("session has %d channels after replace, want 2", sess.Len())
	}
}

func TestEventsChannelRejected(t *testing.T) {
	sess := sessionWithSCRAndMarker(t)

	ops := []Operator{
		MedianOperator{Window: 3},
		ButterOperator{Spec: dsp.NoFilter()},
		LeakyOperator{TimeConstant: 0.1},
	}
	for _, op := range ops {
		_, err := Run(sess, op, Selector{ID: 2}, WriteAdd)
		if !errors.Is(err, channel.ErrUnsupportedKind) {
			t.Errorf("%s on events channel: want ErrUnsupportedKind, got %v", op.Name(), err)
		}
	}
	if sess.Len() != 2 {
		t.Errorf("rejected runs must not mutate the session")
	}
}

func TestUnknownMethod(t *testing.T) {
	_, err := NewOperator("wavelet", MethodParams{})
	if !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("want ErrInvalidOptions, got %v", err)
	}
}

func TestStageFailureLeavesSessionUntouched(t *testing.T) {
	sess := sessionWithSCRAndMarker(t)

	spec := dsp.NoFilter()
	spec.LowPassFreq = 80 // above the 50 Hz Nyquist of the scr channel
	_, err := Run(sess, ButterOperator{Spec: spec}, Selector{Type: "scr"}, WriteAdd)
	if !errors.Is(err, dsp.ErrInvalidSpec) {
		t.Fatalf("want ErrInvalidSpec, got %v", err)
	}
	if sess.Len() != 2 || len(sess.History()) != 2 {
		t.Error("failed stage must not mutate the session")
	}
}

func TestSelectorTypePicksNewest(t *testing.T) {
	sess := store.NewSession(channel.Default())
	_, err := sess.Add("",
		channel.NewWaveform("scr", "µS", 100, []float64{1}),
		channel.NewWaveform("scr", "µS", 100, []float64{2}),
	)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	id, c, err := Selector{Type: "scr"}.resolve(sess)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if id != 2 || c.Data[0] != 2 {
		t.Errorf("resolved id %d value %v, want newest channel", id, c.Data[0])
	}
}

func TestRunInline(t *testing.T) {
	out, rate, err := RunInline([]float64{1, 1, 9, 1, 1}, 100, MedianOperator{Window: 3})
	if err != nil {
		t.Fatalf("RunInline failed: %v", err)
	}
	if rate != 100 || out[2] != 1 {
		t.Errorf("out = %v rate %g", out, rate)
	}
}

func TestRunInterpolate(t *testing.T) {
	sess := store.NewSession(channel.Default())
	_, err := sess.Add("",
		channel.NewWaveform("scr", "µS", 100, []float64{0, math.NaN(), 2, 3}),
		channel.NewWaveform("hr", "bpm", 10, []float64{math.NaN(), 60, math.NaN()}), // 1 known sample
	)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	outcomes, err := RunInterpolate(sess, InterpolateOptions{Method: interp.Linear})
	if err != nil {
		t.Fatalf("RunInterpolate failed: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(outcomes))
	}

	if outcomes[0].Err != nil {
		t.Fatalf("scr outcome failed: %v", outcomes[0].Err)
	}
	if outcomes[0].Fraction != 0.25 {
		t.Errorf("scr fraction = %v, want 0.25", outcomes[0].Fraction)
	}
	filled, _ := sess.ByID(outcomes[0].ChannelID)
	if filled.Data[1] != 1 {
		t.Errorf("filled sample = %v, want 1", filled.Data[1])
	}

	// The hr channel has a single known sample: recorded and skipped.
	if !errors.Is(outcomes[1].Err, interp.ErrInsufficientData) {
		t.Errorf("hr outcome = %v, want ErrInsufficientData", outcomes[1].Err)
	}
}

func TestParseWriteMode(t *testing.T) {
	if m, err := ParseWriteMode("replace"); err != nil || m != WriteReplace {
		t.Errorf("ParseWriteMode(replace) = %v, %v", m, err)
	}
	if _, err := ParseWriteMode("append"); !errors.Is(err, ErrInvalidOptions) {
		t.Errorf("want ErrInvalidOptions, got %v", err)
	}
}
