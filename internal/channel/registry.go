package channel

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownType is returned when a type tag is not in the registry.
var ErrUnknownType = errors.New("unknown channel type")

// Entry describes one recognized channel type.
type Entry struct {
	// Tag is the globally unique type tag, matched case-insensitively.
	Tag string

	// Description is a human-readable name for listings.
	Description string

	// Kind is the semantic category every channel of this type has.
	Kind Kind

	// Importable marks types that can be produced directly from raw
	// vendor files. Types without it are derived, written only by
	// preprocessing pipelines.
	Importable bool
}

// Registry is the static catalog of channel types. It is built once at
// startup and never mutated afterwards; components hold a shared
// reference and query it instead of hardcoding type lists.
type Registry struct {
	entries map[string]Entry
}

// NewRegistry builds a registry from the given entries.
// Duplicate tags (case-insensitive) are rejected.
func NewRegistry(entries []Entry) (*Registry, error) {
	r := &Registry{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		key := strings.ToLower(e.Tag)
		if key == "" {
			return nil, fmt.Errorf("registry entry with empty tag")
		}
		if _, dup := r.entries[key]; dup {
			return nil, fmt.Errorf("duplicate channel type tag %q", e.Tag)
		}
		r.entries[key] = e
	}
	return r, nil
}

// Default returns the registry of the toolbox's built-in channel types.
func Default() *Registry {
	r, err := NewRegistry([]Entry{
		{Tag: "scr", Description: "skin conductance", Kind: Waveform, Importable: true},
		{Tag: "ecg", Description: "electrocardiogram", Kind: Waveform, Importable: true},
		{Tag: "hr", Description: "heart rate", Kind: Waveform, Importable: true},
		{Tag: "hp", Description: "heart period", Kind: Waveform, Importable: true},
		{Tag: "hb", Description: "heart beat events", Kind: Events, Importable: true},
		{Tag: "resp", Description: "respiration", Kind: Waveform, Importable: true},
		{Tag: "rr", Description: "respiration rate", Kind: Waveform},
		{Tag: "pupil", Description: "pupil diameter", Kind: Waveform, Importable: true},
		{Tag: "pupil_l", Description: "pupil diameter, left eye", Kind: Waveform, Importable: true},
		{Tag: "pupil_r", Description: "pupil diameter, right eye", Kind: Waveform, Importable: true},
		{Tag: "gaze_x", Description: "gaze x coordinate", Kind: Waveform, Importable: true},
		{Tag: "gaze_y", Description: "gaze y coordinate", Kind: Waveform, Importable: true},
		{Tag: "blink_l", Description: "blink events, left eye", Kind: Events},
		{Tag: "blink_r", Description: "blink events, right eye", Kind: Events},
		{Tag: "emg", Description: "electromyogram", Kind: Waveform, Importable: true},
		{Tag: "emg_pp", Description: "electromyogram, preprocessed", Kind: Waveform},
		{Tag: "marker", Description: "experiment markers", Kind: Events, Importable: true},
		{Tag: "snd", Description: "sound", Kind: Waveform, Importable: true},
		{Tag: "custom", Description: "custom", Kind: Waveform, Importable: true},
	})
	if err != nil {
		// The built-in table is fixed at compile time.
		panic(err)
	}
	return r
}

// Lookup resolves a type tag case-insensitively.
func (r *Registry) Lookup(tag string) (Entry, error) {
	e, ok := r.entries[strings.ToLower(tag)]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownType, tag)
	}
	return e, nil
}

// ImportableTypes returns the sorted tags that have an import path from
// raw vendor files.
func (r *Registry) ImportableTypes() []string {
	var tags []string
	for _, e := range r.entries {
		if e.Importable {
			tags = append(tags, e.Tag)
		}
	}
	sort.Strings(tags)
	return tags
}

// IsWaveform reports whether the tag names a waveform type.
// Unknown tags report false.
func (r *Registry) IsWaveform(tag string) bool {
	e, err := r.Lookup(tag)
	return err == nil && e.Kind == Waveform
}
