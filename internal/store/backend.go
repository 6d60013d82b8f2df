package store

import (
	"fmt"
	"strings"

	"github.com/ZhangSihui999/PsPM/internal/channel"
)

// FormatVersion is the current session container version.
const FormatVersion = 1

// Backend persists a session as a whole unit. Load of a path that does
// not exist yet yields an empty session; the file is materialized by
// the first Save. A failed load or save leaves the persisted state
// unchanged.
//
// Backends assume exclusive access for the duration of one
// read-modify-write transaction; concurrent writers must be serialized
// by the caller.
type Backend interface {
	Load() (*Session, error)
	Save(*Session) error
	Close() error
}

// Open picks a backend by file extension: .db/.sqlite opens the SQLite
// backend, everything else the JSON file backend.
func Open(path string, reg *channel.Registry) (Backend, error) {
	switch {
	case strings.HasSuffix(path, ".db"), strings.HasSuffix(path, ".sqlite"):
		return OpenSQLite(path, reg)
	default:
		return NewFileBackend(path, reg), nil
	}
}

// Update runs one read-modify-write transaction: load, apply fn, save.
// If fn fails the store is not written.
func Update(b Backend, fn func(*Session) error) error {
	s, err := b.Load()
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if err := fn(s); err != nil {
		return err
	}
	if err := b.Save(s); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// sessionFile is the serialized shape shared by both backends.
type sessionFile struct {
	Version  int                `json:"version"`
	Duration float64            `json:"duration"`
	History  []HistoryEntry     `json:"history"`
	Channels []*channel.Channel `json:"channels"`
}

func (s *Session) toFile() *sessionFile {
	f := &sessionFile{
		Version:  FormatVersion,
		Duration: s.Duration(),
		History:  s.History(),
		Channels: make([]*channel.Channel, 0, len(s.entries)),
	}
	for _, e := range s.entries {
		f.Channels = append(f.Channels, e.ch.Clone())
	}
	return f
}

func sessionFromFile(f *sessionFile, reg *channel.Registry) (*Session, error) {
	if f.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported session format version %d", f.Version)
	}
	s := NewSession(reg)
	for i, c := range f.Channels {
		if err := s.validate(c); err != nil {
			return nil, fmt.Errorf("channel %d: %w", i+1, err)
		}
		s.entries = append(s.entries, entry{handle: s.next, ch: c.Clone()})
		s.next++
	}
	s.history = append(s.history, f.History...)
	return s, nil
}
