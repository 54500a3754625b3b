package core

import (
	"cmp"
	"slices"

	"pkt.systems/teamwatch/schema"
)

// MaxEvents caps the displayed events; it matches the pull page size.
const MaxEvents = 100

// EventStore holds the displayed events newest-first and the high-water mark.
// It is not safe for concurrent use; the controller loop owns it.
type EventStore struct {
	events    []schema.Event
	highWater schema.EventID
	maxEvents int
}

// NewEventStore returns an empty store capped at MaxEvents.
func NewEventStore() *EventStore {
	return newEventStoreWithMax(MaxEvents)
}

func newEventStoreWithMax(maxEvents int) *EventStore {
	if maxEvents <= 0 {
		maxEvents = MaxEvents
	}
	return &EventStore{maxEvents: maxEvents}
}

// ReplaceAll discards the current contents and installs events. The result is
// deduplicated by id, sorted by descending id and capped. The high-water mark
// becomes the largest id in events, or 0 when events is empty.
func (s *EventStore) ReplaceAll(events []schema.Event) {
	next := append([]schema.Event(nil), events...)
	slices.SortStableFunc(next, func(a, b schema.Event) int {
		return cmp.Compare(b.ID, a.ID)
	})
	next = slices.CompactFunc(next, func(a, b schema.Event) bool {
		return a.ID == b.ID
	})
	s.highWater = 0
	if len(next) > 0 {
		s.highWater = next[0].ID
	}
	if len(next) > s.maxEvents {
		clear(next[s.maxEvents:])
		next = next[:s.maxEvents]
	}
	s.events = next
}

// Prepend inserts event at the front when its id is above the high-water mark.
// It reports whether the event was admitted; older or repeated ids are ignored.
func (s *EventStore) Prepend(event schema.Event) bool {
	if event.ID <= s.highWater {
		return false
	}
	s.highWater = event.ID
	s.events = slices.Insert(s.events, 0, event)
	if len(s.events) > s.maxEvents {
		clear(s.events[s.maxEvents:])
		s.events = s.events[:s.maxEvents]
	}
	return true
}

// Events returns a copy of the contents, newest first.
func (s *EventStore) Events() []schema.Event {
	return append([]schema.Event(nil), s.events...)
}

// Len returns the number of stored events.
func (s *EventStore) Len() int {
	return len(s.events)
}

// HighWater returns the largest admitted id.
func (s *EventStore) HighWater() schema.EventID {
	return s.highWater
}

// Get returns the stored event with the given id.
func (s *EventStore) Get(id schema.EventID) (schema.Event, bool) {
	for _, event := range s.events {
		if event.ID == id {
			return event, true
		}
	}
	return schema.Event{}, false
}
