// Package store implements the session container: an ordered sequence
// of typed channels plus an append-only provenance history, with
// whole-file persistence backends.
//
// Channel ids visible to callers are 1-based positions over the current
// order. Internally each channel carries a stable, never-reused handle;
// the visible id is recomputed as a view, so deleting a channel shifts
// the ids of everything behind it. Callers must re-resolve ids after
// any mutation.
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/ZhangSihui999/PsPM/internal/channel"
)

var (
	// ErrNotFound is returned when a selection matches no channel.
	ErrNotFound = errors.New("no matching channel")

	// ErrAmbiguousTarget is returned when an operation that needs a
	// single target matched more than one channel.
	ErrAmbiguousTarget = errors.New("target matches multiple channels")
)

// Action is the verb recorded with each history entry.
type Action string

const (
	ActionAdded    Action = "added"
	ActionReplaced Action = "replaced"
	ActionDeleted  Action = "deleted"
)

// HistoryEntry is one provenance record. Exactly one is appended per
// mutating operation.
type HistoryEntry struct {
	Action      Action    `json:"action"`
	ChannelType string    `json:"channel_type"`
	ChannelID   int       `json:"channel_id"`
	Message     string    `json:"message"`
	At          time.Time `json:"at"`
}

// Policy selects which of several matches a delete acts on.
type Policy int

const (
	First Policy = iota
	Last
	All
)

// ParsePolicy maps a policy name to its Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "first":
		return First, nil
	case "last":
		return Last, nil
	case "all":
		return All, nil
	}
	return 0, fmt.Errorf("unknown deletion policy %q", s)
}

type entry struct {
	handle uint64
	ch     *channel.Channel
}

// Session is the in-memory form of one channel store.
type Session struct {
	reg     *channel.Registry
	next    uint64
	entries []entry
	history []HistoryEntry
}

// NewSession creates an empty session bound to a registry.
func NewSession(reg *channel.Registry) *Session {
	return &Session{reg: reg, next: 1}
}

// Selected pairs a channel with its current 1-based id.
type Selected struct {
	ID      int
	Channel *channel.Channel
}

// Len returns the number of channels.
func (s *Session) Len() int { return len(s.entries) }

// History returns a copy of the provenance log.
func (s *Session) History() []HistoryEntry {
	return append([]HistoryEntry(nil), s.history...)
}

// Duration returns the session duration in seconds: the largest extent
// over all channels.
func (s *Session) Duration() float64 {
	var max float64
	for _, e := range s.entries {
		if d := e.ch.Duration(); d > max {
			max = d
		}
	}
	return max
}

// ByID returns the channel at the 1-based id. The returned channel is a
// clone; stored payloads are never handed out by reference.
func (s *Session) ByID(id int) (*channel.Channel, error) {
	if id < 1 || id > len(s.entries) {
		return nil, fmt.Errorf("%w: channel id %d of %d", ErrNotFound, id, len(s.entries))
	}
	return s.entries[id-1].ch.Clone(), nil
}

// ByType returns all channels of the given type tag, in store order.
func (s *Session) ByType(tag string) ([]Selected, error) {
	sel := s.find(func(c *channel.Channel) bool { return c.Type == tag })
	if len(sel) == 0 {
		return nil, fmt.Errorf("%w: type %q", ErrNotFound, tag)
	}
	return sel, nil
}

// Find returns the channels satisfying the predicate, in store order.
// An empty result is not an error.
func (s *Session) Find(pred func(*channel.Channel) bool) []Selected {
	return s.find(pred)
}

// Channels returns every channel with its id.
func (s *Session) Channels() []Selected {
	return s.find(func(*channel.Channel) bool { return true })
}

func (s *Session) find(pred func(*channel.Channel) bool) []Selected {
	var sel []Selected
	for i, e := range s.entries {
		if pred(e.ch) {
			sel = append(sel, Selected{ID: i + 1, Channel: e.ch.Clone()})
		}
	}
	return sel
}

// Add appends channels and returns their new ids. A caller-supplied
// message overrides the default history text; the verb and timestamp
// are attached regardless.
func (s *Session) Add(msg string, chans ...*channel.Channel) ([]int, error) {
	for _, c := range chans {
		if err := s.validate(c); err != nil {
			return nil, err
		}
	}
	ids := make([]int, 0, len(chans))
	for _, c := range chans {
		s.entries = append(s.entries, entry{handle: s.next, ch: c.Clone()})
		s.next++
		id := len(s.entries)
		ids = append(ids, id)
		s.log(ActionAdded, c.Type, id, msg)
	}
	return ids, nil
}

// Target designates the channel a replace or delete acts on: either an
// explicit id or a type tag.
type Target struct {
	id  int
	typ string
}

// ByID targets one channel by its current 1-based id.
func ByID(id int) Target { return Target{id: id} }

// ByType targets channels carrying the given type tag.
func ByType(tag string) Target { return Target{typ: tag} }

func (t Target) String() string {
	if t.typ != "" {
		return fmt.Sprintf("type %q", t.typ)
	}
	return fmt.Sprintf("id %d", t.id)
}

// resolve returns the 0-based indices the target matches.
func (s *Session) resolve(t Target) []int {
	if t.typ != "" {
		var idx []int
		for i, e := range s.entries {
			if e.ch.Type == t.typ {
				idx = append(idx, i)
			}
		}
		return idx
	}
	if t.id >= 1 && t.id <= len(s.entries) {
		return []int{t.id - 1}
	}
	return nil
}

// Replace substitutes the full payload of the single channel the target
// resolves to and returns its id. When the target matches nothing the
// operation degrades to Add and the returned warning says so; more than
// one match fails with ErrAmbiguousTarget.
func (s *Session) Replace(t Target, c *channel.Channel, msg string) (id int, warning string, err error) {
	if err := s.validate(c); err != nil {
		return 0, "", err
	}
	idx := s.resolve(t)
	switch len(idx) {
	case 0:
		ids, err := s.Add(msg, c)
		if err != nil {
			return 0, "", err
		}
		return ids[0], fmt.Sprintf("replace target %s matched no channel, added as channel %d instead", t, ids[0]), nil
	case 1:
		i := idx[0]
		s.entries[i] = entry{handle: s.next, ch: c.Clone()}
		s.next++
		s.log(ActionReplaced, c.Type, i+1, msg)
		return i + 1, "", nil
	default:
		return 0, "", fmt.Errorf("%w: %s matches %d channels", ErrAmbiguousTarget, t, len(idx))
	}
}

// Delete removes the first, last or all channels the target matches and
// returns the ids that were removed (as they were before removal).
// Channels behind a removed one shift down by one id. Deleting all
// matches of a type that has none is not an error; first/last with no
// match is.
func (s *Session) Delete(t Target, policy Policy, msg string) ([]int, error) {
	idx := s.resolve(t)
	if len(idx) == 0 {
		if policy == All {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, t)
	}

	switch policy {
	case First:
		idx = idx[:1]
	case Last:
		idx = idx[len(idx)-1:]
	}

	removed := make([]int, 0, len(idx))
	// Remove back to front so earlier indices stay valid.
	for i := len(idx) - 1; i >= 0; i-- {
		j := idx[i]
		typ := s.entries[j].ch.Type
		s.entries = append(s.entries[:j], s.entries[j+1:]...)
		removed = append([]int{j + 1}, removed...)
		s.log(ActionDeleted, typ, j+1, msg)
	}
	return removed, nil
}

func (s *Session) validate(c *channel.Channel) error {
	if err := c.Validate(); err != nil {
		return err
	}
	e, err := s.reg.Lookup(c.Type)
	if err != nil {
		return err
	}
	if e.Kind != c.Kind {
		return fmt.Errorf("%w: channel %q is %s but type is registered as %s",
			channel.ErrInvalidChannel, c.Type, c.Kind, e.Kind)
	}
	return nil
}

func (s *Session) log(action Action, typ string, id int, msg string) {
	if msg == "" {
		msg = fmt.Sprintf("%s channel %s at position %d", action, typ, id)
	}
	s.history = append(s.history, HistoryEntry{
		Action:      action,
		ChannelType: typ,
		ChannelID:   id,
		Message:     msg,
		At:          time.Now().UTC(),
	})
}
