package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// NormalizeCategory maps a wire category onto the fixed set.
// Unknown or empty values fall back to lifecycle.
func NormalizeCategory(value string) Category {
	switch Category(strings.ToLower(strings.TrimSpace(value))) {
	case CategoryCommunication:
		return CategoryCommunication
	case CategoryTaskManagement:
		return CategoryTaskManagement
	case CategoryToolUse:
		return CategoryToolUse
	default:
		return CategoryLifecycle
	}
}

// ParseCategory validates a filter category. Empty means "no constraint".
func ParseCategory(value string) (Category, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return "", nil
	}
	for _, cat := range Categories {
		if string(cat) == trimmed {
			return cat, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, value)
}

// NormalizeFilter trims the filter fields and validates the category.
func NormalizeFilter(f FilterState) (FilterState, error) {
	cat, err := ParseCategory(string(f.Category))
	if err != nil {
		return FilterState{}, err
	}
	return FilterState{
		Category:  cat,
		AgentName: strings.TrimSpace(f.AgentName),
		ToolName:  strings.TrimSpace(f.ToolName),
	}, nil
}

// wireEvent accepts every field spelling the backend has used.
type wireEvent struct {
	ID            flexInt         `json:"id"`
	Timestamp     string          `json:"timestamp"`
	CreatedAt     string          `json:"created_at"`
	AgentName     string          `json:"agent_name"`
	TeamName      string          `json:"team_name"`
	SessionID     string          `json:"session_id"`
	HookEvent     string          `json:"hook_event"`
	Category      string          `json:"category"`
	EventCategory string          `json:"event_category"`
	ToolName      string          `json:"tool_name"`
	Summary       string          `json:"summary"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PayloadJSON   json.RawMessage `json:"payload_json"`
}

// DecodeEvent decodes one event from a push message or API response into the
// canonical shape. It returns ErrMalformedEvent or ErrMissingEventID on failure.
func DecodeEvent(data []byte) (Event, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Event{}, ErrMalformedEvent
	}
	var wire wireEvent
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return wire.toEvent()
}

func (w wireEvent) toEvent() (Event, error) {
	if w.ID <= 0 {
		return Event{}, ErrMissingEventID
	}
	agent := strings.TrimSpace(w.AgentName)
	if agent == "" {
		agent = SystemAgent
	}
	category := w.Category
	if strings.TrimSpace(category) == "" {
		category = w.EventCategory
	}
	timestamp := w.Timestamp
	if strings.TrimSpace(timestamp) == "" {
		timestamp = w.CreatedAt
	}
	summary := w.Summary
	if summary == "" {
		summary = w.EventType
	}
	if summary == "" {
		summary = w.HookEvent
	}
	payload := normalizePayload(w.Payload)
	if payload == nil {
		payload = normalizePayload(w.PayloadJSON)
	}
	return Event{
		ID:        EventID(w.ID),
		Timestamp: ParseTimestamp(timestamp),
		AgentName: agent,
		TeamName:  w.TeamName,
		SessionID: w.SessionID,
		HookEvent: w.HookEvent,
		Category:  NormalizeCategory(category),
		ToolName:  strings.TrimSpace(w.ToolName),
		Summary:   summary,
		Payload:   payload,
	}, nil
}

// normalizePayload returns the payload as JSON. String payloads that hold a JSON
// document are unwrapped; other strings stay quoted.
func normalizePayload(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return nil
		}
		if strings.TrimSpace(text) == "" {
			return nil
		}
		inner := []byte(strings.TrimSpace(text))
		if json.Valid(inner) {
			return json.RawMessage(inner)
		}
	}
	out := make(json.RawMessage, len(trimmed))
	copy(out, trimmed)
	return out
}

// DecodeEvents decodes an events listing. Both {"events": [...]} and a bare array
// are accepted; entries that fail to decode are skipped.
func DecodeEvents(data []byte) ([]Event, error) {
	items, err := decodeList(data, "events")
	if err != nil {
		return nil, err
	}
	events := make([]Event, 0, len(items))
	for _, item := range items {
		event, err := DecodeEvent(item)
		if err != nil {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

type wireAgent struct {
	AgentName    string  `json:"agent_name"`
	Name         string  `json:"name"`
	TeamName     string  `json:"team_name"`
	LastSeen     string  `json:"last_seen"`
	LastActivity string  `json:"last_activity"`
	EventCount   flexInt `json:"event_count"`
}

// DecodeAgents decodes an agents listing ({"agents": [...]} or a bare array).
func DecodeAgents(data []byte) ([]AgentSummary, error) {
	items, err := decodeList(data, "agents")
	if err != nil {
		return nil, err
	}
	agents := make([]AgentSummary, 0, len(items))
	for _, item := range items {
		var wire wireAgent
		if err := json.Unmarshal(item, &wire); err != nil {
			continue
		}
		name := wire.AgentName
		if name == "" {
			name = wire.Name
		}
		lastSeen := wire.LastSeen
		if lastSeen == "" {
			lastSeen = wire.LastActivity
		}
		agents = append(agents, AgentSummary{
			AgentName:  name,
			TeamName:   wire.TeamName,
			LastSeen:   ParseTimestamp(lastSeen),
			EventCount: int64(wire.EventCount),
		})
	}
	return agents, nil
}

type wireStats struct {
	TotalEvents      flexInt            `json:"total_events"`
	EventsLastMinute flexInt            `json:"events_last_minute"`
	EventsPerMinute  flexInt            `json:"events_per_minute"`
	MostActiveAgent  json.RawMessage    `json:"most_active_agent"`
	ByCategory       map[string]flexInt `json:"by_category"`
}

type wireMostActive struct {
	AgentName  string  `json:"agent_name"`
	EventCount flexInt `json:"event_count"`
}

// DecodeStats decodes the aggregate stats payload. Category keys outside the
// fixed set are folded into lifecycle.
func DecodeStats(data []byte) (ServerStats, error) {
	var wire wireStats
	if err := json.Unmarshal(data, &wire); err != nil {
		return ServerStats{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	stats := ServerStats{
		TotalEvents:     int64(wire.TotalEvents),
		EventsPerMinute: int64(wire.EventsLastMinute),
		ByCategory:      make(map[Category]int64, len(wire.ByCategory)),
	}
	if stats.EventsPerMinute == 0 {
		stats.EventsPerMinute = int64(wire.EventsPerMinute)
	}
	for key, count := range wire.ByCategory {
		stats.ByCategory[NormalizeCategory(key)] += int64(count)
	}
	most := bytes.TrimSpace(wire.MostActiveAgent)
	switch {
	case len(most) == 0 || bytes.Equal(most, []byte("null")):
	case most[0] == '{':
		var obj wireMostActive
		if err := json.Unmarshal(most, &obj); err == nil {
			stats.MostActiveAgent = obj.AgentName
			stats.MostActiveCount = int64(obj.EventCount)
		}
	case most[0] == '"':
		_ = json.Unmarshal(most, &stats.MostActiveAgent)
	}
	return stats, nil
}

func decodeList(data []byte, key string) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrMalformedResponse
	}
	var items []json.RawMessage
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return items, nil
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	raw, ok := envelope[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return items, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses the ISO-8601 variants the backend emits. Values without a
// zone are taken as UTC. Unparseable values yield the zero time.
func ParseTimestamp(value string) time.Time {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, trimmed); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}

// flexInt decodes integers sent as numbers, numeric strings, or null.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*f = 0
		return nil
	}
	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			*f = 0
			return nil
		}
		trimmed = []byte(text)
	}
	if n, err := strconv.ParseInt(string(trimmed), 10, 64); err == nil {
		*f = flexInt(n)
		return nil
	}
	n, err := strconv.ParseFloat(string(trimmed), 64)
	if err != nil {
		return fmt.Errorf("not an integer: %s", trimmed)
	}
	*f = flexInt(math.Trunc(n))
	return nil
}
