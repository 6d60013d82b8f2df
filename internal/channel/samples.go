package channel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Samples is a waveform payload. It marshals NaN samples as JSON null
// so that channels with missing data survive the session file format,
// which plain encoding/json float64 slices would reject.
type Samples []float64

// MarshalJSON encodes the samples as a JSON array with null for NaN.
func (s Samples) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(s)*8 + 2)
	buf.WriteByte('[')
	for i, v := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		if math.IsNaN(v) {
			buf.WriteString("null")
		} else if math.IsInf(v, 0) {
			return nil, fmt.Errorf("sample %d is infinite", i)
		} else {
			buf.Write(strconv.AppendFloat(nil, v, 'g', -1, 64))
		}
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON array, mapping null back to NaN.
func (s *Samples) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Samples, len(raw))
	for i, p := range raw {
		if p == nil {
			out[i] = math.NaN()
		} else {
			out[i] = *p
		}
	}
	*s = out
	return nil
}
