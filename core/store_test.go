package core

import (
	"testing"

	"pkt.systems/teamwatch/schema"
)

func ev(id schema.EventID) schema.Event {
	return schema.Event{ID: id, AgentName: "lead", Category: schema.CategoryLifecycle}
}

func ids(events []schema.Event) []schema.EventID {
	out := make([]schema.EventID, 0, len(events))
	for _, event := range events {
		out = append(out, event.ID)
	}
	return out
}

func equalIDs(a, b []schema.EventID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestEventStorePrependNewestFirst(t *testing.T) {
	s := NewEventStore()
	for _, id := range []schema.EventID{1, 2, 3} {
		if !s.Prepend(ev(id)) {
			t.Fatalf("expected event %d to be admitted", id)
		}
	}
	if got := ids(s.Events()); !equalIDs(got, []schema.EventID{3, 2, 1}) {
		t.Fatalf("unexpected order: %v", got)
	}
	if s.HighWater() != 3 {
		t.Fatalf("expected high-water 3, got %d", s.HighWater())
	}
}

func TestEventStorePrependIgnoresStaleIDs(t *testing.T) {
	s := NewEventStore()
	s.Prepend(ev(5))
	s.Prepend(ev(7))
	before := ids(s.Events())
	for _, id := range []schema.EventID{7, 6, 1, 0} {
		if s.Prepend(ev(id)) {
			t.Fatalf("expected event %d to be ignored", id)
		}
	}
	if got := ids(s.Events()); !equalIDs(got, before) {
		t.Fatalf("contents changed: %v -> %v", before, got)
	}
	if s.HighWater() != 7 {
		t.Fatalf("expected high-water 7, got %d", s.HighWater())
	}
}

func TestEventStoreReplaceAllEmptyThenPrepend(t *testing.T) {
	s := NewEventStore()
	s.Prepend(ev(40))
	s.ReplaceAll(nil)
	if s.HighWater() != 0 || s.Len() != 0 {
		t.Fatalf("expected empty store, got len=%d hw=%d", s.Len(), s.HighWater())
	}
	s.Prepend(ev(3))
	if got := ids(s.Events()); !equalIDs(got, []schema.EventID{3}) {
		t.Fatalf("expected exactly [3], got %v", got)
	}
}

func TestEventStoreReplaceAllSortsAndDedupes(t *testing.T) {
	s := NewEventStore()
	s.ReplaceAll([]schema.Event{ev(4), ev(9), ev(4), ev(1), ev(7)})
	if got := ids(s.Events()); !equalIDs(got, []schema.EventID{9, 7, 4, 1}) {
		t.Fatalf("unexpected contents: %v", got)
	}
	if s.HighWater() != 9 {
		t.Fatalf("expected high-water 9, got %d", s.HighWater())
	}
	if s.Prepend(ev(8)) {
		t.Fatalf("expected id below high-water to be ignored after replace")
	}
}

func TestEventStoreRespectsMaxEvents(t *testing.T) {
	s := newEventStoreWithMax(3)
	for id := schema.EventID(1); id <= 5; id++ {
		s.Prepend(ev(id))
	}
	if got := ids(s.Events()); !equalIDs(got, []schema.EventID{5, 4, 3}) {
		t.Fatalf("unexpected contents: %v", got)
	}
	s.ReplaceAll([]schema.Event{ev(1), ev(2), ev(3), ev(4), ev(5), ev(6)})
	if got := ids(s.Events()); !equalIDs(got, []schema.EventID{6, 5, 4}) {
		t.Fatalf("unexpected contents after replace: %v", got)
	}
}

func TestEventStoreDefaultCap(t *testing.T) {
	s := NewEventStore()
	for id := schema.EventID(1); id <= MaxEvents+25; id++ {
		s.Prepend(ev(id))
	}
	if s.Len() != MaxEvents {
		t.Fatalf("expected %d events, got %d", MaxEvents, s.Len())
	}
	events := s.Events()
	if events[0].ID != MaxEvents+25 || events[len(events)-1].ID != 26 {
		t.Fatalf("unexpected bounds: first=%d last=%d", events[0].ID, events[len(events)-1].ID)
	}
}

func TestEventStoreEventsReturnsCopy(t *testing.T) {
	s := NewEventStore()
	s.Prepend(ev(1))
	events := s.Events()
	events[0].Summary = "mutated"
	got, ok := s.Get(1)
	if !ok || got.Summary == "mutated" {
		t.Fatalf("expected store contents to be isolated from callers")
	}
	if _, ok := s.Get(99); ok {
		t.Fatalf("expected missing id lookup to fail")
	}
}
