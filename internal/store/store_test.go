package store

import (
	"errors"
	"testing"

	"github.com/ZhangSihui999/PsPM/internal/channel"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	return NewSession(channel.Default())
}

func scrChannel(v ...float64) *channel.Channel {
	return channel.NewWaveform("scr", "µS", 100, v)
}

func TestAddAndReadBack(t *testing.T) {
	s := newTestSession(t)

	ids, err := s.Add("", scrChannel(0.1, 0.2, 0.3))
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("ids = %v, want [1]", ids)
	}

	got, err := s.ByID(1)
	if err != nil {
		t.Fatalf("ByID failed: %v", err)
	}
	if got.Type != "scr" || got.Units != "µS" || len(got.Data) != 3 || got.Data[1] != 0.2 {
		t.Errorf("read back %+v, want original payload", got)
	}
}

func TestAddRejectsUnknownType(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Add("", channel.NewWaveform("seismograph", "m", 100, nil))
	if !errors.Is(err, channel.ErrUnknownType) {
		t.Fatalf("want ErrUnknownType, got %v", err)
	}
}

func TestAddRejectsKindMismatch(t *testing.T) {
	s := newTestSession(t)
	// marker is registered as events
	_, err := s.Add("", channel.NewWaveform("marker", "events", 100, nil))
	if !errors.Is(err, channel.ErrInvalidChannel) {
		t.Fatalf("want ErrInvalidChannel, got %v", err)
	}
}

func TestReplaceSingleMatch(t *testing.T) {
	s := newTestSession(t)
	if _, err := s.Add("", scrChannel(1, 2, 3)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	id, warn, err := s.Replace(ByType("scr"), scrChannel(9, 9), "")
	if err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if warn != "" {
		t.Errorf("unexpected warning: %q", warn)
	}
	if id != 1 {
		t.Errorf("id = %d, want 1", id)
	}

	got, _ := s.ByID(1)
	if len(got.Data) != 2 || got.Data[0] != 9 {
		t.Errorf("replace did not substitute payload: %+v", got)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestReplaceDegradesToAdd(t *testing.T) {
	direct := newTestSession(t)
	if _, err := direct.Add("", scrChannel(1)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	viaReplace := newTestSession(t)
	id, warn, err := viaReplace.Replace(ByType("scr"), scrChannel(1), "")
	if err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if warn == "" {
		t.Error("want warning when replace degrades to add")
	}
	if id != 1 {
		t.Errorf("id = %d, want 1", id)
	}

	// Resulting channel lists are identical.
	a, b := direct.Channels(), viaReplace.Channels()
	if len(a) != len(b) {
		t.Fatalf("channel counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Channel.Type != b[i].Channel.Type {
			t.Errorf("channel %d differs", i)
		}
	}
}

func TestReplaceAmbiguous(t *testing.T) {
	s := newTestSession(t)
	if _, err := s.Add("", scrChannel(1), scrChannel(2)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	_, _, err := s.Replace(ByType("scr"), scrChannel(3), "")
	if !errors.Is(err, ErrAmbiguousTarget) {
		t.Fatalf("want ErrAmbiguousTarget, got %v", err)
	}
}

func TestDeleteReindexes(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Add("",
		scrChannel(1),
		channel.NewWaveform("hr", "bpm", 10, []float64{60}),
		channel.NewWaveform("resp", "V", 10, []float64{0.5}),
	)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	removed, err := s.Delete(ByID(2), First, "")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if len(removed) != 1 || removed[0] != 2 {
		t.Fatalf("removed = %v, want [2]", removed)
	}

	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	first, _ := s.ByID(1)
	second, _ := s.ByID(2)
	if first.Type != "scr" {
		t.Errorf("id 1 = %s, want scr (unchanged)", first.Type)
	}
	if second.Type != "resp" {
		t.Errorf("id 2 = %s, want resp (shifted down)", second.Type)
	}
}

func TestDeletePolicies(t *testing.T) {
	setup := func() *Session {
		s := newTestSession(t)
		if _, err := s.Add("", scrChannel(1), scrChannel(2), scrChannel(3)); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		return s
	}

	s := setup()
	if _, err := s.Delete(ByType("scr"), First, ""); err != nil {
		t.Fatalf("Delete first failed: %v", err)
	}
	got, _ := s.ByID(1)
	if got.Data[0] != 2 {
		t.Error("first-policy should remove the earliest match")
	}

	s = setup()
	if _, err := s.Delete(ByType("scr"), Last, ""); err != nil {
		t.Fatalf("Delete last failed: %v", err)
	}
	got, _ = s.ByID(2)
	if got.Data[0] != 2 {
		t.Error("last-policy should remove the latest match")
	}

	s = setup()
	removed, err := s.Delete(ByType("scr"), All, "")
	if err != nil {
		t.Fatalf("Delete all failed: %v", err)
	}
	if len(removed) != 3 || s.Len() != 0 {
		t.Errorf("all-policy removed %v, Len %d", removed, s.Len())
	}
}

func TestDeleteNoMatch(t *testing.T) {
	s := newTestSession(t)

	if _, err := s.Delete(ByType("scr"), First, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("first with no match: want ErrNotFound, got %v", err)
	}
	if removed, err := s.Delete(ByType("scr"), All, ""); err != nil || removed != nil {
		t.Errorf("all with no match: want empty success, got %v, %v", removed, err)
	}
}

func TestHistoryOnePerMutation(t *testing.T) {
	s := newTestSession(t)

	if _, err := s.Add("", scrChannel(1)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, _, err := s.Replace(ByID(1), scrChannel(2), "custom note"); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if _, err := s.Delete(ByID(1), First, ""); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	h := s.History()
	if len(h) != 3 {
		t.Fatalf("history length = %d, want 3", len(h))
	}
	if h[0].Action != ActionAdded || h[1].Action != ActionReplaced || h[2].Action != ActionDeleted {
		t.Errorf("history verbs = %v %v %v", h[0].Action, h[1].Action, h[2].Action)
	}
	if h[1].Message != "custom note" {
		t.Errorf("caller message not kept: %q", h[1].Message)
	}
	for i, e := range h {
		if e.At.IsZero() {
			t.Errorf("entry %d has no timestamp", i)
		}
		if e.ChannelType != "scr" || e.ChannelID != 1 {
			t.Errorf("entry %d = %+v", i, e)
		}
	}
}

func TestSelectionsAreClones(t *testing.T) {
	s := newTestSession(t)
	if _, err := s.Add("", scrChannel(1, 2)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	got, _ := s.ByID(1)
	got.Data[0] = 99
	again, _ := s.ByID(1)
	if again.Data[0] != 1 {
		t.Fatal("stored payload was mutated through a selection")
	}
}

func TestDuration(t *testing.T) {
	s := newTestSession(t)
	_, err := s.Add("",
		channel.NewWaveform("scr", "µS", 100, make([]float64, 500)), // 5 s
		channel.NewEvents("marker", []float64{0.5, 7.25}, nil),      // 7.25 s
	)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if d := s.Duration(); d != 7.25 {
		t.Errorf("Duration = %v, want 7.25", d)
	}
}
