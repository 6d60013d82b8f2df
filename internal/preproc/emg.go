package preproc

import (
	"fmt"
	"math"

	"github.com/ZhangSihui999/PsPM/internal/channel"
	"github.com/ZhangSihui999/PsPM/internal/dsp"
	"github.com/ZhangSihui999/PsPM/internal/store"
)

// Fixed stage parameters of the EMG pipeline.
const (
	// Band-pass corner frequencies and order for baseline and movement
	// artifact removal.
	emgBandLow   = 50.0
	emgBandHigh  = 470.0
	emgBandOrder = 4

	// Quality factor of the mains notch: stopband width is f0/Q.
	emgNotchQ = 35.0

	// Time constant of the smoothing stage; the envelope low-pass
	// cutoff is its equivalent frequency 1/(2*pi*tau).
	emgSmoothTau = 0.003

	// EMGOutputType tags the processed envelope channel, keeping it
	// distinct from the raw recording.
	EMGOutputType = "emg_pp"
)

// EMGOptions configures the EMG preprocessing pipeline.
type EMGOptions struct {
	// MainsFrequency is the line interference frequency in Hz.
	// Defaults to 50.
	MainsFrequency float64

	// Channel selects the source. Defaults to the newest "emg" channel.
	Channel Selector

	// WriteMode defaults to WriteAdd. With WriteReplace the previous
	// processed channel is substituted (degrading to add when none
	// exists yet).
	WriteMode WriteMode
}

func (o *EMGOptions) setDefaults() {
	if o.MainsFrequency == 0 {
		o.MainsFrequency = 50
	}
	if o.Channel.ID == 0 && o.Channel.Type == "" {
		o.Channel.Type = "emg"
	}
}

// RunEMG executes the three-stage EMG pipeline: band-pass for artifact
// removal, mains notch, then rectification with an envelope low-pass.
// The sample rate is unchanged; the result is written back under the
// processed EMG type.
func RunEMG(sess *store.Session, opts EMGOptions) (Result, error) {
	opts.setDefaults()
	if opts.MainsFrequency < 0 {
		return Result{}, fmt.Errorf("%w: mains frequency %g", ErrInvalidOptions, opts.MainsFrequency)
	}

	_, src, err := opts.Channel.waveform(sess)
	if err != nil {
		return Result{}, err
	}

	band := dsp.NoFilter()
	band.HighPassFreq = emgBandLow
	band.HighPassOrder = emgBandOrder
	band.LowPassFreq = emgBandHigh
	band.LowPassOrder = emgBandOrder
	band.Direction = dsp.Unidirectional

	out, rate, err := dsp.Apply(src.Data, src.SampleRate, band)
	if err != nil {
		return Result{}, fmt.Errorf("emg band-pass stage: %w", err)
	}

	out, err = dsp.Notch(out, rate, opts.MainsFrequency, emgNotchQ)
	if err != nil {
		return Result{}, fmt.Errorf("emg notch stage: %w", err)
	}

	smooth := dsp.NoFilter()
	smooth.LowPassFreq = 1 / (2 * math.Pi * emgSmoothTau)
	smooth.LowPassOrder = emgBandOrder
	smooth.Direction = dsp.Unidirectional

	out, rate, err = dsp.Apply(dsp.Rectify(out), rate, smooth)
	if err != nil {
		return Result{}, fmt.Errorf("emg smoothing stage: %w", err)
	}

	res := channel.NewWaveform(EMGOutputType, src.Units, rate, out)
	msg := fmt.Sprintf("emg preprocessing (band-pass %g-%g Hz order %d, notch at %g Hz, rectified envelope)",
		emgBandLow, emgBandHigh, emgBandOrder, opts.MainsFrequency)

	if opts.WriteMode == WriteReplace {
		id, warn, err := sess.Replace(store.ByType(EMGOutputType), res, msg)
		if err != nil {
			return Result{}, err
		}
		r := Result{ChannelID: id}
		if warn != "" {
			r.Warnings = append(r.Warnings, warn)
		}
		return r, nil
	}
	ids, err := sess.Add(msg, res)
	if err != nil {
		return Result{}, err
	}
	return Result{ChannelID: ids[0]}, nil
}

// RunEMGFile executes the EMG pipeline against a persisted session.
func RunEMGFile(b store.Backend, opts EMGOptions) (Result, error) {
	var res Result
	err := store.Update(b, func(sess *store.Session) error {
		var err error
		res, err = RunEMG(sess, opts)
		return err
	})
	return res, err
}
