package core

import "pkt.systems/teamwatch/schema"

// InstructionKind identifies what the presentation layer should redraw.
type InstructionKind int

const (
	// FullRender redraws the feed, agents and stats.
	FullRender InstructionKind = iota
	// IncrementalEventAppend prepends one row to the feed and refreshes stats.
	IncrementalEventAppend
	// ConnectionStatusChanged updates the connection indicator.
	ConnectionStatusChanged
	// SummaryUpdate redraws the agents row and stats without touching the feed.
	SummaryUpdate
)

func (k InstructionKind) String() string {
	switch k {
	case FullRender:
		return "full"
	case IncrementalEventAppend:
		return "append"
	case ConnectionStatusChanged:
		return "status"
	case SummaryUpdate:
		return "summary"
	default:
		return "unknown"
	}
}

// Instruction is one render request emitted by the controller. Only the fields
// relevant to Kind are populated.
type Instruction struct {
	Kind   InstructionKind
	Events []schema.Event
	Event  schema.Event
	Agents []schema.AgentSummary
	Stats  schema.AggregateSnapshot
	State  schema.ConnState
	Filter schema.FilterState
}

// Sink receives render instructions on the controller loop goroutine.
type Sink interface {
	Render(Instruction)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Instruction)

// Render implements Sink.
func (f SinkFunc) Render(in Instruction) {
	if f != nil {
		f(in)
	}
}
