// Package render turns controller instructions into terminal or machine output.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/charmbracelet/x/ansi"

	"pkt.systems/teamwatch/schema"
)

// SummaryLimit is the display width after which summaries are cut.
const SummaryLimit = 120

// Empty-state messages.
const (
	NoEventsMessage = "No events yet. Waiting for activity..."
	NoAgentsMessage = "No agents detected yet"
)

var agentPalette = []string{"#58a6ff", "#3fb950", "#d29922", "#f85149", "#bc8cff", "#79c0ff"}

var categoryPalette = map[schema.Category]string{
	schema.CategoryCommunication:  "#1f6feb",
	schema.CategoryTaskManagement: "#238636",
	schema.CategoryToolUse:        "#9e6a03",
	schema.CategoryLifecycle:      "#484f58",
}

// Truncate cuts text to limit display cells and appends "..." when it was cut.
func Truncate(text string, limit int) string {
	if limit <= 0 || ansi.StringWidth(text) <= limit {
		return text
	}
	return ansi.Truncate(text, limit, "") + "..."
}

// RelativeTime renders ts relative to now: "now" under five seconds, then
// seconds, minutes and hours ago, and a local date-time after a day.
func RelativeTime(ts, now time.Time) string {
	if ts.IsZero() {
		return ""
	}
	diff := now.Sub(ts)
	switch {
	case diff < 5*time.Second:
		return "now"
	case diff < time.Minute:
		return fmt.Sprintf("%ds ago", int(diff/time.Second))
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff/time.Minute))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff/time.Hour))
	default:
		return ts.Local().Format("2006-01-02 15:04:05")
	}
}

// CategoryColor returns the hex color for a category.
func CategoryColor(category schema.Category) string {
	if color, ok := categoryPalette[category]; ok {
		return color
	}
	return categoryPalette[schema.CategoryLifecycle]
}

// CategoryLabel is the human label used on distribution bars.
func CategoryLabel(category schema.Category) string {
	return strings.Replace(string(category), "_", " ", 1)
}

// AgentColor picks a stable palette color for an agent name.
func AgentColor(name string) string {
	if name == "" {
		return agentPalette[0]
	}
	// 31*h + c over UTF-16 code units, with the shifted term wrapped to 32 bits.
	var h float64
	for _, unit := range utf16.Encode([]rune(name)) {
		shifted := int32(uint32(int64(h))) << 5
		h = float64(unit) + (float64(shifted) - h)
	}
	idx := int64(math.Abs(h)) % int64(len(agentPalette))
	return agentPalette[idx]
}

// FormatPayload pretty-prints the event payload. Events without a payload are
// rendered whole.
func FormatPayload(event schema.Event) string {
	raw := bytes.TrimSpace(event.Payload)
	if len(raw) == 0 {
		encoded, err := json.MarshalIndent(event, "", "  ")
		if err != nil {
			return fmt.Sprintf("%+v", event)
		}
		return string(encoded)
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return string(raw)
	}
	return out.String()
}

// FilterLabel renders a filter as key=value pairs, or "none".
func FilterLabel(filter schema.FilterState) string {
	var parts []string
	if filter.Category != "" {
		parts = append(parts, "category="+string(filter.Category))
	}
	if filter.AgentName != "" {
		parts = append(parts, "agent="+filter.AgentName)
	}
	if filter.ToolName != "" {
		parts = append(parts, "tool="+filter.ToolName)
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " ")
}

// StatusLabel is the connection indicator text.
func StatusLabel(state schema.ConnState) string {
	switch state {
	case schema.ConnOpen:
		return "Connected"
	case schema.ConnDisconnected:
		return "Disconnected"
	default:
		return "Connecting..."
	}
}

func pad(text string, width int) string {
	return text + padding(text, width)
}

// padding returns the spaces needed to widen text to width cells.
func padding(text string, width int) string {
	if gap := width - ansi.StringWidth(text); gap > 0 {
		return strings.Repeat(" ", gap)
	}
	return ""
}
