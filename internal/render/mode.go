package render

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"pkt.systems/teamwatch/core"
	"pkt.systems/teamwatch/schema"
)

// Format selects the presentation.
type Format string

const (
	// FormatAuto picks color on a terminal and plain otherwise.
	FormatAuto  Format = "auto"
	FormatColor Format = "color"
	FormatPlain Format = "plain"
	FormatJSON  Format = "json"
)

// ParseFormat validates a format name; empty means auto.
func ParseFormat(value string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(value))); f {
	case "":
		return FormatAuto, nil
	case FormatAuto, FormatColor, FormatPlain, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown render format %q (want auto, color, plain or json)", value)
	}
}

// Resolve turns auto into color or plain based on whether w is a terminal and
// NO_COLOR is unset.
func Resolve(format Format, w io.Writer) Format {
	if format != FormatAuto {
		return format
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return FormatPlain
	}
	if f, ok := w.(interface{ Fd() uintptr }); ok && term.IsTerminal(int(f.Fd())) {
		return FormatColor
	}
	return FormatPlain
}

// Presenter is a sink that can also print event details and notices.
type Presenter interface {
	core.Sink
	Detail(schema.Event)
	Notice(format string, args ...any)
}

// New builds the presenter for format on w. rows is passed to text sinks.
func New(format Format, w io.Writer, rows int) Presenter {
	switch Resolve(format, w) {
	case FormatJSON:
		return NewJSONLines(w)
	case FormatColor:
		return NewText(TextOptions{Writer: w, Color: true, Rows: rows})
	default:
		return NewText(TextOptions{Writer: w, Rows: rows})
	}
}
