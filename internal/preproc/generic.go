package preproc

import (
	"fmt"

	"github.com/ZhangSihui999/PsPM/internal/channel"
	"github.com/ZhangSihui999/PsPM/internal/store"
)

// WriteMode selects how a pipeline result goes back into the session.
type WriteMode int

const (
	// WriteAdd appends the result as a new channel.
	WriteAdd WriteMode = iota
	// WriteReplace substitutes the source channel's payload.
	WriteReplace
)

// ParseWriteMode maps a mode name to its WriteMode.
func ParseWriteMode(s string) (WriteMode, error) {
	switch s {
	case "add":
		return WriteAdd, nil
	case "replace":
		return WriteReplace, nil
	}
	return 0, fmt.Errorf("%w: unknown write mode %q", ErrInvalidOptions, s)
}

// Selector designates the source channel: an explicit id, or a type tag
// resolved to the most recent (highest-id) channel of that type, so a
// pipeline by default picks up the newest output of a previous run.
type Selector struct {
	ID   int
	Type string
}

func (sel Selector) String() string {
	if sel.ID > 0 {
		return fmt.Sprintf("channel %d", sel.ID)
	}
	return fmt.Sprintf("channel type %q", sel.Type)
}

// resolve returns the selected channel and its current id.
func (sel Selector) resolve(sess *store.Session) (int, *channel.Channel, error) {
	if sel.ID > 0 {
		c, err := sess.ByID(sel.ID)
		if err != nil {
			return 0, nil, err
		}
		return sel.ID, c, nil
	}
	matches, err := sess.ByType(sel.Type)
	if err != nil {
		return 0, nil, err
	}
	last := matches[len(matches)-1]
	return last.ID, last.Channel, nil
}

// waveform resolves the selector and enforces the waveform-only rule
// shared by every filtering pipeline.
func (sel Selector) waveform(sess *store.Session) (int, *channel.Channel, error) {
	id, c, err := sel.resolve(sess)
	if err != nil {
		return 0, nil, err
	}
	if c.Kind != channel.Waveform {
		return 0, nil, fmt.Errorf("%w: %s is an events channel", channel.ErrUnsupportedKind, sel)
	}
	return id, c, nil
}

// Result reports where a pipeline wrote its output.
type Result struct {
	// ChannelID is the id of the written channel.
	ChannelID int
	// Warnings are recoverable anomalies, e.g. a replace that degraded
	// to an add.
	Warnings []string
}

// Run executes the generic single-operator pipeline: load one waveform
// channel, apply the operator, write the result back. Any stage failure
// returns before the session is touched.
func Run(sess *store.Session, op Operator, sel Selector, mode WriteMode) (Result, error) {
	id, src, err := sel.waveform(sess)
	if err != nil {
		return Result{}, err
	}

	out, rate, err := op.Apply(src.Data, src.SampleRate)
	if err != nil {
		return Result{}, fmt.Errorf("%s on %s: %w", op.Name(), sel, err)
	}

	res := channel.NewWaveform(src.Type, src.Units, rate, out)
	return writeBack(sess, res, id, mode, op.Describe())
}

// RunInline applies the operator to a bare waveform without any store
// involvement and returns the transformed samples and resulting rate.
func RunInline(samples []float64, rate float64, op Operator) ([]float64, float64, error) {
	return op.Apply(samples, rate)
}

// RunFile executes the generic pipeline as one read-modify-write
// transaction against a persisted session.
func RunFile(b store.Backend, op Operator, sel Selector, mode WriteMode) (Result, error) {
	var res Result
	err := store.Update(b, func(sess *store.Session) error {
		var err error
		res, err = Run(sess, op, sel, mode)
		return err
	})
	return res, err
}

func writeBack(sess *store.Session, c *channel.Channel, srcID int, mode WriteMode, msg string) (Result, error) {
	switch mode {
	case WriteReplace:
		id, warn, err := sess.Replace(store.ByID(srcID), c, msg)
		if err != nil {
			return Result{}, err
		}
		res := Result{ChannelID: id}
		if warn != "" {
			res.Warnings = append(res.Warnings, warn)
		}
		return res, nil
	default:
		ids, err := sess.Add(msg, c)
		if err != nil {
			return Result{}, err
		}
		return Result{ChannelID: ids[0]}, nil
	}
}
