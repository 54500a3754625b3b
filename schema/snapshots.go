package schema

// RateSource records where a snapshot's events-per-minute figure came from.
type RateSource string

const (
	// RateLocal means the rate was observed by this client.
	RateLocal RateSource = "local"
	// RateServer means the rate was reported by the backend.
	RateServer RateSource = "server"
)

// ServerStats is the aggregate payload reported by the backend.
type ServerStats struct {
	TotalEvents     int64              `json:"total_events"`
	EventsPerMinute int64              `json:"events_per_minute"`
	MostActiveAgent string             `json:"most_active_agent,omitempty"`
	MostActiveCount int64              `json:"most_active_count,omitempty"`
	ByCategory      map[Category]int64 `json:"by_category"`
}

// CategoryBar is one row of the category distribution chart.
type CategoryBar struct {
	Category Category `json:"category"`
	Count    int64    `json:"count"`
	Percent  int      `json:"percent"`
}

// AggregateSnapshot is the display-ready statistics view.
type AggregateSnapshot struct {
	TotalEvents     int64              `json:"total_events"`
	EventsPerMinute int64              `json:"events_per_minute"`
	RateSource      RateSource         `json:"rate_source"`
	MostActiveAgent string             `json:"most_active_agent,omitempty"`
	MostActiveCount int64              `json:"most_active_count,omitempty"`
	ByCategory      map[Category]int64 `json:"by_category"`
	Bars            []CategoryBar      `json:"bars"`
}
