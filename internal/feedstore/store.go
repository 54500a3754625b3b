// Package feedstore is the in-memory event log behind the fixture backend.
package feedstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/teamwatch/core"
	"pkt.systems/teamwatch/schema"
)

// DefaultRetain bounds how many events the store keeps.
const DefaultRetain = 10000

// Stats is the aggregate view served by /api/stats.
type Stats struct {
	TotalEvents      int64
	EventsLastMinute int64
	MostActiveAgent  string
	MostActiveCount  int64
	ByCategory       map[schema.Category]int64
}

// Options configures a Store.
type Options struct {
	Retain int
	Now    func() time.Time
	Logger pslog.Logger
}

// Store holds events in ascending id order and keeps running aggregates.
type Store struct {
	mu         sync.RWMutex
	events     []schema.Event
	nextID     schema.EventID
	total      int64
	byCategory map[schema.Category]int64
	agents     map[string]*schema.AgentSummary
	retain     int
	now        func() time.Time
	log        pslog.Logger
}

// New constructs an empty Store.
func New(opts Options) *Store {
	retain := opts.Retain
	if retain <= 0 {
		retain = DefaultRetain
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Store{
		nextID:     1,
		byCategory: make(map[schema.Category]int64, len(schema.Categories)),
		agents:     make(map[string]*schema.AgentSummary),
		retain:     retain,
		now:        now,
		log:        logger,
	}
}

// Append assigns the next id, fills defaults and stores the event.
func (s *Store) Append(event schema.Event) schema.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	event.ID = s.nextID
	s.nextID++
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}
	event.Category = schema.NormalizeCategory(string(event.Category))
	if strings.TrimSpace(event.AgentName) == "" {
		event.AgentName = schema.SystemAgent
	}
	s.insertLocked(event)
	s.log.Trace("feedstore append", "id", event.ID, "agent", event.AgentName, "category", event.Category)
	return event
}

func (s *Store) insertLocked(event schema.Event) {
	s.events = append(s.events, event)
	if over := len(s.events) - s.retain; over > 0 {
		s.events = append(s.events[:0:0], s.events[over:]...)
	}
	s.total++
	s.byCategory[event.Category]++
	agent := s.agents[event.AgentName]
	if agent == nil {
		agent = &schema.AgentSummary{AgentName: event.AgentName}
		s.agents[event.AgentName] = agent
	}
	agent.EventCount++
	if event.TeamName != "" {
		agent.TeamName = event.TeamName
	}
	if event.Timestamp.After(agent.LastSeen) {
		agent.LastSeen = event.Timestamp
	}
}

// List returns up to limit events matching filter, newest first.
func (s *Store) List(filter schema.FilterState, limit int) []schema.Event {
	events, _ := s.Page(filter, 1, limit)
	return events
}

// Page returns one page of events matching filter, newest first, together
// with the total number of matches. Pages are 1-based.
func (s *Store) Page(filter schema.FilterState, page, perPage int) ([]schema.Event, int) {
	if perPage <= 0 {
		perPage = core.MaxEvents
	}
	if page < 1 {
		page = 1
	}
	skip := (page - 1) * perPage
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]schema.Event, 0, min(perPage, len(s.events)))
	total := 0
	for i := len(s.events) - 1; i >= 0; i-- {
		if !core.Matches(s.events[i], filter) {
			continue
		}
		total++
		if total > skip && len(out) < perPage {
			out = append(out, s.events[i])
		}
	}
	return out, total
}

// Get returns the event with id.
func (s *Store) Get(id schema.EventID) (schema.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := sort.Search(len(s.events), func(i int) bool { return s.events[i].ID >= id })
	if idx < len(s.events) && s.events[idx].ID == id {
		return s.events[idx], true
	}
	return schema.Event{}, false
}

// After returns retained events with id greater than after, oldest first.
func (s *Store) After(after schema.EventID) []schema.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := sort.Search(len(s.events), func(i int) bool { return s.events[i].ID > after })
	return append([]schema.Event(nil), s.events[idx:]...)
}

// LastID returns the most recently assigned id, or 0.
func (s *Store) LastID() schema.EventID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextID - 1
}

// Agents returns every agent seen, most recently active first.
func (s *Store) Agents() []schema.AgentSummary {
	s.mu.RLock()
	out := make([]schema.AgentSummary, 0, len(s.agents))
	for _, agent := range s.agents {
		out = append(out, *agent)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastSeen.Equal(out[j].LastSeen) {
			return out[i].LastSeen.After(out[j].LastSeen)
		}
		return out[i].AgentName < out[j].AgentName
	})
	return out
}

// Stats computes the aggregate view. The per-minute figure counts events
// stamped within the trailing window.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := Stats{
		TotalEvents: s.total,
		ByCategory:  make(map[schema.Category]int64, len(schema.Categories)),
	}
	for _, cat := range schema.Categories {
		stats.ByCategory[cat] = s.byCategory[cat]
	}
	cutoff := s.now().Add(-core.RateWindowSpan)
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].Timestamp.Before(cutoff) {
			break
		}
		stats.EventsLastMinute++
	}
	for name, agent := range s.agents {
		if agent.EventCount > stats.MostActiveCount || (agent.EventCount == stats.MostActiveCount && name < stats.MostActiveAgent) {
			stats.MostActiveAgent = name
			stats.MostActiveCount = agent.EventCount
		}
	}
	return stats
}
