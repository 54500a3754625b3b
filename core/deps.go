package core

import (
	"context"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/teamwatch/schema"
)

// Fetcher performs the pull requests against the backend.
type Fetcher interface {
	Events(ctx context.Context, filter schema.FilterState, limit int) ([]schema.Event, error)
	Agents(ctx context.Context) ([]schema.AgentSummary, error)
	Stats(ctx context.Context) (schema.ServerStats, error)
	Event(ctx context.Context, id schema.EventID) (schema.Event, error)
}

// Observer receives controller counters. Implementations must be safe for
// concurrent use; fetch completions are reported from fetch goroutines.
type Observer interface {
	EventReceived(result string)
	FetchCompleted(endpoint string, err error)
	StaleResponse(endpoint string)
	ConnState(state schema.ConnState)
	Rate(perMinute int64)
}

// Event outcomes reported to Observer.EventReceived.
const (
	EventAdmitted  = "admitted"
	EventFiltered  = "filtered"
	EventDuplicate = "duplicate"
)

// ControllerDeps captures the controller's collaborators.
type ControllerDeps struct {
	Fetcher  Fetcher
	Sink     Sink
	Observer Observer
	Logger   pslog.Logger
	// Now overrides the clock used for rate observations.
	Now func() time.Time
}

type noopObserver struct{}

func (noopObserver) EventReceived(string)         {}
func (noopObserver) FetchCompleted(string, error) {}
func (noopObserver) StaleResponse(string)         {}
func (noopObserver) ConnState(schema.ConnState)   {}
func (noopObserver) Rate(int64)                   {}
