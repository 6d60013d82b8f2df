package importer

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/OpenPSG/edf"

	"github.com/ZhangSihui999/PsPM/internal/channel"
)

// EDFImporter reads European Data Format recordings. Each EDF signal
// becomes one waveform channel.
type EDFImporter struct{}

func (EDFImporter) Format() string { return "edf" }

func (EDFImporter) Extensions() []string { return []string{".edf", ".rec"} }

func (EDFImporter) Import(path string, reg *channel.Registry) ([]*channel.Channel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	meta, err := readEDFMeta(f)
	if err != nil {
		return nil, fmt.Errorf("parse edf header: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	r, err := edf.Open(f)
	if err != nil {
		return nil, fmt.Errorf("parse edf: %w", err)
	}

	recordSec := meta.recordDuration.Seconds()
	if recordSec <= 0 {
		return nil, fmt.Errorf("edf: non-positive data record duration %v", meta.recordDuration)
	}
	if meta.dataRecords < 0 {
		return nil, fmt.Errorf("edf: unknown data record count")
	}

	chans := make([]*channel.Channel, 0, len(meta.signals))
	for i, sig := range meta.signals {
		sr, err := r.Signal(i)
		if err != nil {
			return nil, err
		}

		data := make([]float64, meta.dataRecords*sig.samplesPerRecord)
		n, err := sr.Read(data)
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("edf signal %q: %w", sig.label, err)
		}
		data = data[:n]

		rate := float64(sig.samplesPerRecord) / recordSec
		typ := mapLabel(sig.label, reg)
		chans = append(chans, channel.NewWaveform(typ, sig.units, rate, data))
	}
	return chans, nil
}

type edfSignalMeta struct {
	label            string
	units            string
	samplesPerRecord int
}

type edfMeta struct {
	dataRecords    int
	recordDuration time.Duration
	signals        []edfSignalMeta
}

// readEDFMeta extracts the signal metadata the channel mapping needs
// from the fixed-layout EDF header.
func readEDFMeta(r io.Reader) (*edfMeta, error) {
	fixed := make([]byte, 256)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, err
	}

	meta := &edfMeta{}
	var err error
	meta.dataRecords, err = strconv.Atoi(strings.TrimSpace(string(fixed[236:244])))
	if err != nil {
		return nil, fmt.Errorf("data record count: %w", err)
	}
	durSec, err := strconv.ParseFloat(strings.TrimSpace(string(fixed[244:252])), 64)
	if err != nil {
		return nil, fmt.Errorf("data record duration: %w", err)
	}
	meta.recordDuration = time.Duration(durSec * float64(time.Second))
	ns, err := strconv.Atoi(strings.TrimSpace(string(fixed[252:256])))
	if err != nil {
		return nil, fmt.Errorf("signal count: %w", err)
	}
	if ns < 1 {
		return nil, fmt.Errorf("no signals")
	}

	// Per-signal header: label 16, transducer 80, dimension 8, physical
	// min/max 8+8, digital min/max 8+8, prefiltering 80, samples per
	// record 8, reserved 32.
	rest := make([]byte, ns*256)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, err
	}

	meta.signals = make([]edfSignalMeta, ns)
	for i := 0; i < ns; i++ {
		meta.signals[i].label = strings.TrimSpace(string(rest[i*16 : (i+1)*16]))
	}
	dimOff := ns * (16 + 80)
	for i := 0; i < ns; i++ {
		meta.signals[i].units = strings.TrimSpace(string(rest[dimOff+i*8 : dimOff+(i+1)*8]))
	}
	sprOff := ns * (16 + 80 + 8 + 8 + 8 + 8 + 8 + 80)
	for i := 0; i < ns; i++ {
		spr, err := strconv.Atoi(strings.TrimSpace(string(rest[sprOff+i*8 : sprOff+(i+1)*8])))
		if err != nil {
			return nil, fmt.Errorf("signal %d samples per record: %w", i, err)
		}
		meta.signals[i].samplesPerRecord = spr
	}
	return meta, nil
}

// labelTags maps substrings of common EDF signal labels to registry
// tags, checked in order.
var labelTags = []struct {
	substr string
	tag    string
}{
	{"eda", "scr"},
	{"gsr", "scr"},
	{"scr", "scr"},
	{"ecg", "ecg"},
	{"ekg", "ecg"},
	{"emg", "emg"},
	{"resp", "resp"},
	{"thor", "resp"},
	{"abdo", "resp"},
	{"pupil", "pupil"},
	{"gaze x", "gaze_x"},
	{"gaze y", "gaze_y"},
	{"heart rate", "hr"},
	{"pulse", "hr"},
	{"hr", "hr"},
	{"sound", "snd"},
	{"mic", "snd"},
}

// mapLabel guesses the registry tag for an EDF signal label. Unknown
// labels import as custom channels.
func mapLabel(label string, reg *channel.Registry) string {
	l := strings.ToLower(strings.TrimSpace(label))
	if _, err := reg.Lookup(l); err == nil && reg.IsWaveform(l) {
		return l
	}
	for _, m := range labelTags {
		if strings.Contains(l, m.substr) {
			return m.tag
		}
	}
	return "custom"
}
