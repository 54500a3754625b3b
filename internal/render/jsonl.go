package render

import (
	"encoding/json"
	"io"
	"sync"

	"pkt.systems/teamwatch/core"
	"pkt.systems/teamwatch/schema"
)

type jsonInstruction struct {
	Kind   string                    `json:"kind"`
	Events []schema.Event            `json:"events,omitempty"`
	Event  *schema.Event             `json:"event,omitempty"`
	Agents []schema.AgentSummary     `json:"agents,omitempty"`
	Stats  *schema.AggregateSnapshot `json:"stats,omitempty"`
	State  *schema.ConnState         `json:"state,omitempty"`
	Filter *schema.FilterState       `json:"filter,omitempty"`
}

// JSONLines writes one JSON object per instruction.
type JSONLines struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONLines builds a JSON lines sink on w.
func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{enc: json.NewEncoder(w)}
}

// Render implements core.Sink.
func (j *JSONLines) Render(in core.Instruction) {
	out := jsonInstruction{Kind: in.Kind.String()}
	switch in.Kind {
	case core.FullRender:
		out.Events = in.Events
		if out.Events == nil {
			out.Events = []schema.Event{}
		}
		out.Agents = in.Agents
		out.Stats = &in.Stats
		out.State = &in.State
		out.Filter = &in.Filter
	case core.IncrementalEventAppend:
		out.Event = &in.Event
		out.Stats = &in.Stats
	case core.ConnectionStatusChanged:
		out.State = &in.State
	case core.SummaryUpdate:
		out.Agents = in.Agents
		out.Stats = &in.Stats
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	_ = j.enc.Encode(out)
}

// Detail writes one event as a detail record.
func (j *JSONLines) Detail(event schema.Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	_ = j.enc.Encode(jsonInstruction{Kind: "detail", Event: &event})
}

// Notice writes a free-form message record.
func (j *JSONLines) Notice(format string, args ...any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	_ = j.enc.Encode(struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	}{Kind: "notice", Message: sprintf(format, args...)})
}
