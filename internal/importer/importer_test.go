package importer

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/OpenPSG/edf"
	"github.com/stretchr/testify/require"

	"github.com/ZhangSihui999/PsPM/internal/channel"
	"github.com/ZhangSihui999/PsPM/internal/store"
)

// writeFixtureEDF writes a 2-record EDF file with an EDA signal at
// 10 Hz and an ECG signal at 100 Hz.
func writeFixtureEDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recording.edf")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	hdr := edf.Header{
		Version:            edf.Version0,
		PatientID:          "X X X X",
		RecordingID:        "Startdate 01-JAN-2026",
		StartTime:          time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
		DataRecordDuration: time.Second,
		SignalCount:        2,
		Signals: []edf.SignalHeader{
			{
				Label:             "EDA",
				PhysicalDimension: "uS",
				PhysicalMin:       -10, PhysicalMax: 10,
				DigitalMin: -32768, DigitalMax: 32767,
				SamplesPerRecord: 10,
			},
			{
				Label:             "ECG Lead I",
				PhysicalDimension: "mV",
				PhysicalMin:       -5, PhysicalMax: 5,
				DigitalMin: -32768, DigitalMax: 32767,
				SamplesPerRecord: 100,
			},
		},
	}
	w, err := edf.Create(f, hdr)
	require.NoError(t, err)

	for rec := 0; rec < 2; rec++ {
		eda := make([]float64, 10)
		ecg := make([]float64, 100)
		for i := range eda {
			eda[i] = 2.5
		}
		for i := range ecg {
			ecg[i] = math.Sin(2 * math.Pi * float64(i) / 100)
		}
		require.NoError(t, w.WriteRecord([][]float64{eda, ecg}))
	}
	require.NoError(t, w.Close())
	return path
}

func TestEDFImport(t *testing.T) {
	path := writeFixtureEDF(t)

	chans, err := EDFImporter{}.Import(path, channel.Default())
	require.NoError(t, err)
	require.Len(t, chans, 2)

	eda := chans[0]
	require.Equal(t, "scr", eda.Type)
	require.Equal(t, "uS", eda.Units)
	require.Equal(t, float64(10), eda.SampleRate)
	require.Len(t, eda.Data, 20)
	require.InDelta(t, 2.5, eda.Data[0], 0.01)

	ecg := chans[1]
	require.Equal(t, "ecg", ecg.Type)
	require.Equal(t, "mV", ecg.Units)
	require.Equal(t, float64(100), ecg.SampleRate)
	require.Len(t, ecg.Data, 200)
}

func TestImportInto(t *testing.T) {
	path := writeFixtureEDF(t)
	session := filepath.Join(t.TempDir(), "session.json")

	b, err := store.Open(session, channel.Default())
	require.NoError(t, err)
	defer b.Close()

	ids, err := ImportInto(b, path, channel.Default(), All())
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, ids)

	sess, err := b.Load()
	require.NoError(t, err)
	require.Equal(t, 2, sess.Len())
	h := sess.History()
	require.Len(t, h, 1)
	require.True(t, strings.Contains(h[0].Message, "imported 2 channels"),
		"history message %q", h[0].Message)
}

func TestForPathUnsupported(t *testing.T) {
	_, err := ForPath("data.csv", All())
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("want ErrUnsupportedFormat, got %v", err)
	}
}

func TestMapLabel(t *testing.T) {
	reg := channel.Default()
	cases := map[string]string{
		"EDA":          "scr",
		"GSR Skin":     "scr",
		"ECG Lead II":  "ecg",
		"Thor Belt":    "resp",
		"Pupil Left":   "pupil",
		"Temp Ambient": "custom",
		"scr":          "scr",
	}
	for label, want := range cases {
		if got := mapLabel(label, reg); got != want {
			t.Errorf("mapLabel(%q) = %q, want %q", label, got, want)
		}
	}
}
