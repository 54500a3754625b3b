package core

import "time"

// RateWindowSpan is the trailing window used for the local event rate.
const RateWindowSpan = 60 * time.Second

// RateWindow counts observations inside a trailing time window.
// It is not safe for concurrent use; the controller loop owns it.
type RateWindow struct {
	span   time.Duration
	stamps []time.Time
}

// NewRateWindow returns a window spanning RateWindowSpan.
func NewRateWindow() *RateWindow {
	return newRateWindowWithSpan(RateWindowSpan)
}

func newRateWindowWithSpan(span time.Duration) *RateWindow {
	if span <= 0 {
		span = RateWindowSpan
	}
	return &RateWindow{span: span}
}

// Record adds an observation at the given instant.
func (w *RateWindow) Record(at time.Time) {
	w.stamps = append(w.stamps, at)
	w.prune(at)
}

// Count returns the number of observations at or after now-span.
func (w *RateWindow) Count(now time.Time) int {
	w.prune(now)
	return len(w.stamps)
}

// prune drops observations older than now-span. Observations are kept in arrival
// order, which is not necessarily chronological, so every entry is checked.
func (w *RateWindow) prune(now time.Time) {
	cutoff := now.Add(-w.span)
	kept := w.stamps[:0]
	for _, ts := range w.stamps {
		if ts.Before(cutoff) {
			continue
		}
		kept = append(kept, ts)
	}
	for i := len(kept); i < len(w.stamps); i++ {
		w.stamps[i] = time.Time{}
	}
	w.stamps = kept
}
