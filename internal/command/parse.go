package command

import (
	"fmt"
	"strings"

	"pkt.systems/teamwatch/schema"
)

// Command represents a parsed slash command.
type Command struct {
	Name      string
	Args      []string
	Raw       string
	Remainder string
}

// Parse parses a line and returns a Command if it starts with "/".
func Parse(input string) (Command, bool) {
	trimmed := strings.TrimLeft(input, " \t")
	if !strings.HasPrefix(trimmed, "/") {
		return Command{}, false
	}
	raw := strings.TrimSpace(trimmed[1:])
	if raw == "" {
		return Command{Name: "", Raw: ""}, true
	}
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return Command{Name: "", Raw: raw}, true
	}
	name := strings.ToLower(fields[0])
	args := []string{}
	if len(fields) > 1 {
		args = fields[1:]
	}
	remainder := remainderAfterTokens(raw, 1)
	return Command{
		Name:      name,
		Args:      args,
		Raw:       raw,
		Remainder: remainder,
	}, true
}

func remainderAfterTokens(raw string, count int) string {
	i := 0
	remaining := count
	for remaining > 0 && i < len(raw) {
		for i < len(raw) && isSpace(raw[i]) {
			i++
		}
		for i < len(raw) && !isSpace(raw[i]) {
			i++
		}
		remaining--
	}
	if i >= len(raw) {
		return ""
	}
	return strings.TrimSpace(raw[i:])
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// ParseFilterArgs applies key=value arguments to base. Keys are category, agent
// and tool; an empty value or "-" clears the field.
func ParseFilterArgs(base schema.FilterState, args []string) (schema.FilterState, error) {
	out := base
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return base, fmt.Errorf("filter argument %q must be key=value", arg)
		}
		value = strings.TrimSpace(value)
		if value == "-" {
			value = ""
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "category", "cat":
			category, err := schema.ParseCategory(value)
			if err != nil {
				return base, err
			}
			out.Category = category
		case "agent":
			out.AgentName = value
		case "tool":
			out.ToolName = value
		default:
			return base, fmt.Errorf("unknown filter key %q (want category, agent or tool)", key)
		}
	}
	return out, nil
}
