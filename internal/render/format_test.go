package render

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"pkt.systems/teamwatch/schema"
)

func TestTruncate(t *testing.T) {
	short := strings.Repeat("a", SummaryLimit)
	if got := Truncate(short, SummaryLimit); got != short {
		t.Fatalf("expected text at the limit to be untouched")
	}
	long := strings.Repeat("b", SummaryLimit+5)
	got := Truncate(long, SummaryLimit)
	if got != strings.Repeat("b", SummaryLimit)+"..." {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if Truncate("", SummaryLimit) != "" {
		t.Fatalf("expected empty string to stay empty")
	}
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{ago: 0, want: "now"},
		{ago: -3 * time.Second, want: "now"},
		{ago: 4900 * time.Millisecond, want: "now"},
		{ago: 5 * time.Second, want: "5s ago"},
		{ago: 59 * time.Second, want: "59s ago"},
		{ago: 90 * time.Second, want: "1m ago"},
		{ago: 59 * time.Minute, want: "59m ago"},
		{ago: 3 * time.Hour, want: "3h ago"},
	}
	for _, tc := range tests {
		if got := RelativeTime(now.Add(-tc.ago), now); got != tc.want {
			t.Fatalf("%v ago: expected %q, got %q", tc.ago, tc.want, got)
		}
	}
	if got := RelativeTime(time.Time{}, now); got != "" {
		t.Fatalf("expected empty for zero time, got %q", got)
	}
	old := now.Add(-48 * time.Hour)
	if got := RelativeTime(old, now); got != old.Local().Format("2006-01-02 15:04:05") {
		t.Fatalf("expected date for old timestamps, got %q", got)
	}
}

func TestAgentColorIsStable(t *testing.T) {
	if AgentColor("") != "#58a6ff" {
		t.Fatalf("expected first palette color for empty name")
	}
	if got := AgentColor("a"); got != "#3fb950" {
		t.Fatalf("unexpected color for a: %s", got)
	}
	if got := AgentColor("ab"); got != "#f85149" {
		t.Fatalf("unexpected color for ab: %s", got)
	}
	long := strings.Repeat("team-lead-", 20)
	first := AgentColor(long)
	if AgentColor(long) != first {
		t.Fatalf("expected deterministic color")
	}
	found := false
	for _, color := range agentPalette {
		if color == first {
			found = true
		}
	}
	if !found {
		t.Fatalf("color %s is not in the palette", first)
	}
}

func TestCategoryColorAndLabel(t *testing.T) {
	if CategoryColor(schema.CategoryToolUse) != "#9e6a03" {
		t.Fatalf("unexpected tool_use color")
	}
	if CategoryColor("bogus") != "#484f58" {
		t.Fatalf("expected lifecycle color fallback")
	}
	if CategoryLabel(schema.CategoryTaskManagement) != "task management" {
		t.Fatalf("unexpected label: %q", CategoryLabel(schema.CategoryTaskManagement))
	}
}

func TestFormatPayload(t *testing.T) {
	event := schema.Event{ID: 4, Payload: json.RawMessage(`{"cmd":"ls","args":["-la"]}`)}
	want := "{\n  \"cmd\": \"ls\",\n  \"args\": [\n    \"-la\"\n  ]\n}"
	if got := FormatPayload(event); got != want {
		t.Fatalf("unexpected payload:\n%s", got)
	}
	bare := FormatPayload(schema.Event{ID: 9, AgentName: "lead", Summary: "hi"})
	if !strings.Contains(bare, `"id": 9`) || !strings.Contains(bare, `"summary": "hi"`) {
		t.Fatalf("expected whole event when payload is missing:\n%s", bare)
	}
}

func TestFilterLabel(t *testing.T) {
	if FilterLabel(schema.FilterState{}) != "none" {
		t.Fatalf("expected none for empty filter")
	}
	got := FilterLabel(schema.FilterState{Category: schema.CategoryToolUse, ToolName: "Bash"})
	if got != "category=tool_use tool=Bash" {
		t.Fatalf("unexpected label %q", got)
	}
}
