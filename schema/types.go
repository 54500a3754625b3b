package schema

import (
	"encoding/json"
	"time"
)

// EventID is the server-assigned, monotonically increasing event identifier.
type EventID int64

// Category classifies an event. The set is fixed; see Categories.
type Category string

const (
	// CategoryCommunication covers messages between agents.
	CategoryCommunication Category = "communication"
	// CategoryTaskManagement covers task creation and updates.
	CategoryTaskManagement Category = "task_management"
	// CategoryToolUse covers tool invocations.
	CategoryToolUse Category = "tool_use"
	// CategoryLifecycle covers agent start/stop and anything unclassified.
	CategoryLifecycle Category = "lifecycle"
)

// Categories lists the fixed categories in display order.
var Categories = []Category{
	CategoryCommunication,
	CategoryTaskManagement,
	CategoryToolUse,
	CategoryLifecycle,
}

// SystemAgent is the agent name used when an event carries none.
const SystemAgent = "system"

// Event is the canonical, normalized activity record.
type Event struct {
	ID        EventID         `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	AgentName string          `json:"agent_name"`
	TeamName  string          `json:"team_name,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	HookEvent string          `json:"hook_event,omitempty"`
	Category  Category        `json:"category"`
	ToolName  string          `json:"tool_name,omitempty"`
	Summary   string          `json:"summary"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// FilterState constrains which events are displayed. Empty fields match anything.
type FilterState struct {
	Category  Category `json:"category,omitempty" yaml:"category"`
	AgentName string   `json:"agent,omitempty" yaml:"agent"`
	ToolName  string   `json:"tool,omitempty" yaml:"tool"`
}

// IsEmpty reports whether the filter constrains nothing.
func (f FilterState) IsEmpty() bool {
	return f.Category == "" && f.AgentName == "" && f.ToolName == ""
}

// AgentSummary is the per-agent row reported by the backend.
type AgentSummary struct {
	AgentName  string    `json:"agent_name"`
	TeamName   string    `json:"team_name,omitempty"`
	LastSeen   time.Time `json:"last_seen"`
	EventCount int64     `json:"event_count"`
}

// ConnState is the push channel connection state.
type ConnState int

const (
	// ConnConnecting means a connection attempt is in progress.
	ConnConnecting ConnState = iota
	// ConnOpen means the stream is delivering messages.
	ConnOpen
	// ConnDisconnected means the stream failed and a reconnect is scheduled.
	ConnDisconnected
)

func (s ConnState) String() string {
	switch s {
	case ConnConnecting:
		return "connecting"
	case ConnOpen:
		return "open"
	case ConnDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s ConnState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
