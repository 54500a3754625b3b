package core

import "pkt.systems/teamwatch/schema"

// Matches reports whether event satisfies every non-empty field of filter.
// The same predicate applies to pushed and fetched events.
func Matches(event schema.Event, filter schema.FilterState) bool {
	if filter.Category != "" && event.Category != filter.Category {
		return false
	}
	if filter.AgentName != "" && event.AgentName != filter.AgentName {
		return false
	}
	if filter.ToolName != "" && event.ToolName != filter.ToolName {
		return false
	}
	return true
}

// FilterEvents returns the events that match filter, preserving order.
func FilterEvents(events []schema.Event, filter schema.FilterState) []schema.Event {
	if filter.IsEmpty() {
		return events
	}
	out := make([]schema.Event, 0, len(events))
	for _, event := range events {
		if Matches(event, filter) {
			out = append(out, event)
		}
	}
	return out
}
