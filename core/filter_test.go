package core

import (
	"testing"

	"pkt.systems/teamwatch/schema"
)

func TestMatchesEmptyFilterMatchesEverything(t *testing.T) {
	events := []schema.Event{
		{ID: 1},
		{ID: 2, AgentName: "lead", Category: schema.CategoryToolUse, ToolName: "Bash"},
		{ID: 3, AgentName: schema.SystemAgent, Category: schema.CategoryLifecycle},
	}
	for _, event := range events {
		if !Matches(event, schema.FilterState{}) {
			t.Fatalf("expected empty filter to match %+v", event)
		}
	}
}

func TestMatchesFieldsAreANDed(t *testing.T) {
	event := schema.Event{ID: 1, AgentName: "lead", Category: schema.CategoryToolUse, ToolName: "Bash"}
	tests := []struct {
		name   string
		filter schema.FilterState
		want   bool
	}{
		{name: "category", filter: schema.FilterState{Category: schema.CategoryToolUse}, want: true},
		{name: "wrong-category", filter: schema.FilterState{Category: schema.CategoryLifecycle}, want: false},
		{name: "agent", filter: schema.FilterState{AgentName: "lead"}, want: true},
		{name: "wrong-agent", filter: schema.FilterState{AgentName: "scout"}, want: false},
		{name: "tool", filter: schema.FilterState{ToolName: "Bash"}, want: true},
		{name: "all", filter: schema.FilterState{Category: schema.CategoryToolUse, AgentName: "lead", ToolName: "Bash"}, want: true},
		{name: "all-but-tool", filter: schema.FilterState{Category: schema.CategoryToolUse, AgentName: "lead", ToolName: "Read"}, want: false},
	}
	for _, tc := range tests {
		if got := Matches(event, tc.filter); got != tc.want {
			t.Fatalf("%s: Matches = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestFilterEventsPreservesOrder(t *testing.T) {
	events := []schema.Event{
		{ID: 3, Category: schema.CategoryToolUse},
		{ID: 2, Category: schema.CategoryLifecycle},
		{ID: 1, Category: schema.CategoryToolUse},
	}
	got := FilterEvents(events, schema.FilterState{Category: schema.CategoryToolUse})
	if len(got) != 2 || got[0].ID != 3 || got[1].ID != 1 {
		t.Fatalf("unexpected filtered events: %+v", got)
	}
}
