package core

import (
	"math"

	"pkt.systems/teamwatch/schema"
)

// Snapshot merges backend-reported stats with the locally observed rate.
// The local rate wins whenever it is non-zero; an empty local window (fresh start
// or just reconnected) falls back to the backend's figure.
func Snapshot(server schema.ServerStats, localRate int) schema.AggregateSnapshot {
	snap := schema.AggregateSnapshot{
		TotalEvents:     server.TotalEvents,
		EventsPerMinute: int64(localRate),
		RateSource:      schema.RateLocal,
		MostActiveAgent: server.MostActiveAgent,
		MostActiveCount: server.MostActiveCount,
		ByCategory:      make(map[schema.Category]int64, len(server.ByCategory)),
	}
	if localRate <= 0 {
		snap.EventsPerMinute = server.EventsPerMinute
		snap.RateSource = schema.RateServer
	}
	for cat, count := range server.ByCategory {
		snap.ByCategory[cat] = count
	}
	snap.Bars = categoryBars(server.ByCategory)
	return snap
}

// categoryBars sizes each fixed category relative to the largest one.
// The denominator is at least 1, so an empty histogram yields all zeros.
func categoryBars(byCategory map[schema.Category]int64) []schema.CategoryBar {
	var maxCount int64 = 1
	for _, cat := range schema.Categories {
		if count := byCategory[cat]; count > maxCount {
			maxCount = count
		}
	}
	bars := make([]schema.CategoryBar, 0, len(schema.Categories))
	for _, cat := range schema.Categories {
		count := byCategory[cat]
		if count < 0 {
			count = 0
		}
		pct := int(math.Round(float64(count) / float64(maxCount) * 100))
		bars = append(bars, schema.CategoryBar{Category: cat, Count: count, Percent: pct})
	}
	return bars
}
