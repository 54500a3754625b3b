package render

import (
	"fmt"

	"pkt.systems/teamwatch/core"
)

// Fanout forwards each instruction to every non-nil sink in order.
type Fanout []core.Sink

// Render implements core.Sink.
func (f Fanout) Render(in core.Instruction) {
	for _, sink := range f {
		if sink == nil {
			continue
		}
		sink.Render(in)
	}
}

func sprintf(format string, args ...any) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
