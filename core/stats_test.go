package core

import (
	"testing"

	"pkt.systems/teamwatch/schema"
)

func TestSnapshotEmptyHistogramHasZeroBars(t *testing.T) {
	snap := Snapshot(schema.ServerStats{ByCategory: map[schema.Category]int64{}}, 0)
	if len(snap.Bars) != len(schema.Categories) {
		t.Fatalf("expected %d bars, got %d", len(schema.Categories), len(snap.Bars))
	}
	for _, bar := range snap.Bars {
		if bar.Percent != 0 {
			t.Fatalf("expected 0%% for %s, got %d", bar.Category, bar.Percent)
		}
	}
	nilSnap := Snapshot(schema.ServerStats{}, 0)
	for _, bar := range nilSnap.Bars {
		if bar.Percent != 0 {
			t.Fatalf("expected 0%% with nil histogram, got %d", bar.Percent)
		}
	}
}

func TestSnapshotBarsRelativeToMax(t *testing.T) {
	snap := Snapshot(schema.ServerStats{ByCategory: map[schema.Category]int64{
		schema.CategoryToolUse:       40,
		schema.CategoryCommunication: 10,
		schema.CategoryLifecycle:     1,
	}}, 0)
	want := map[schema.Category]int{
		schema.CategoryCommunication:  25,
		schema.CategoryTaskManagement: 0,
		schema.CategoryToolUse:        100,
		schema.CategoryLifecycle:      3,
	}
	for i, bar := range snap.Bars {
		if bar.Category != schema.Categories[i] {
			t.Fatalf("expected fixed order, got %s at %d", bar.Category, i)
		}
		if bar.Percent != want[bar.Category] {
			t.Fatalf("%s: expected %d%%, got %d%%", bar.Category, want[bar.Category], bar.Percent)
		}
	}
}

func TestSnapshotSingleEventIsFullBar(t *testing.T) {
	snap := Snapshot(schema.ServerStats{ByCategory: map[schema.Category]int64{schema.CategoryCommunication: 1}}, 0)
	if snap.Bars[0].Percent != 100 {
		t.Fatalf("expected 100%%, got %d", snap.Bars[0].Percent)
	}
}

func TestSnapshotPrefersLocalRate(t *testing.T) {
	server := schema.ServerStats{TotalEvents: 10, EventsPerMinute: 7, MostActiveAgent: "lead", MostActiveCount: 6}
	local := Snapshot(server, 3)
	if local.EventsPerMinute != 3 || local.RateSource != schema.RateLocal {
		t.Fatalf("expected local rate, got %d from %s", local.EventsPerMinute, local.RateSource)
	}
	fallback := Snapshot(server, 0)
	if fallback.EventsPerMinute != 7 || fallback.RateSource != schema.RateServer {
		t.Fatalf("expected server rate, got %d from %s", fallback.EventsPerMinute, fallback.RateSource)
	}
	if fallback.TotalEvents != 10 || fallback.MostActiveAgent != "lead" || fallback.MostActiveCount != 6 {
		t.Fatalf("expected server totals to pass through, got %+v", fallback)
	}
}
