package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pkt.systems/pslog"
	"pkt.systems/teamwatch/core"
	"pkt.systems/teamwatch/internal/logx"
	"pkt.systems/teamwatch/internal/render"
	"pkt.systems/teamwatch/internal/version"
	"pkt.systems/teamwatch/schema"
)

// Target is the dashboard the commands operate on.
type Target interface {
	UpdateFilter(ctx context.Context, update func(schema.FilterState) (schema.FilterState, error)) (schema.FilterState, error)
	ClearFilter(ctx context.Context) error
	State(ctx context.Context) (core.ViewState, error)
	Detail(ctx context.Context, id schema.EventID) (schema.Event, error)
}

// Output receives command results.
type Output interface {
	Detail(event schema.Event)
	Notice(format string, args ...any)
}

// ErrUsage wraps argument errors so callers can print them without a stack of
// context.
var ErrUsage = errors.New("usage")

// Handler routes slash commands to the dashboard.
type Handler struct {
	target Target
	out    Output
	logger pslog.Logger
}

// NewHandler constructs a command handler.
func NewHandler(target Target, out Output, logger pslog.Logger) *Handler {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Handler{target: target, out: out, logger: logger}
}

// Handle inspects input and executes slash commands. It reports false when the
// input is not a command.
func (h *Handler) Handle(ctx context.Context, input string) (bool, error) {
	if ctx == nil {
		return false, errors.New("missing context")
	}
	cmd, ok := Parse(input)
	if !ok {
		return false, nil
	}
	log := h.logger.With("command", cmd.Name, "args", len(cmd.Args))
	log.Debug("command request")
	switch cmd.Name {
	case "":
		log.Warn("command rejected", "reason", "empty")
		return true, fmt.Errorf("invalid command")
	case "filter", "f":
		return true, h.handleFilter(ctx, log, cmd)
	case "clear":
		return true, h.handleClear(ctx, log)
	case "show":
		return true, h.handleShow(ctx, log, cmd)
	case "status":
		return true, h.handleStatus(ctx, log)
	case "help", "?":
		h.handleHelp()
		return true, nil
	case "version":
		h.out.Notice("%s %s", version.Module(), version.Current())
		return true, nil
	default:
		log.Warn("command rejected", "reason", "unknown")
		return true, fmt.Errorf("unknown command: /%s", cmd.Name)
	}
}

func (h *Handler) handleFilter(ctx context.Context, log pslog.Logger, cmd Command) error {
	if len(cmd.Args) == 0 {
		state, err := h.target.State(ctx)
		if err != nil {
			return err
		}
		h.out.Notice("filter: %s", render.FilterLabel(state.Filter))
		return nil
	}
	filter, err := h.target.UpdateFilter(ctx, func(current schema.FilterState) (schema.FilterState, error) {
		next, err := ParseFilterArgs(current, cmd.Args)
		if err != nil {
			return current, fmt.Errorf("%w: /filter category=<category> agent=<name> tool=<name>: %v", ErrUsage, err)
		}
		return next, nil
	})
	if err != nil {
		if errors.Is(err, ErrUsage) {
			log.Warn("command filter rejected", "err", err)
		}
		return err
	}
	logx.WithFilter(log, filter).Info("command filter applied")
	h.out.Notice("filter: %s", render.FilterLabel(filter))
	return nil
}

func (h *Handler) handleClear(ctx context.Context, log pslog.Logger) error {
	if err := h.target.ClearFilter(ctx); err != nil {
		return err
	}
	log.Info("command filter cleared")
	h.out.Notice("filter: none")
	return nil
}

func (h *Handler) handleShow(ctx context.Context, log pslog.Logger, cmd Command) error {
	if len(cmd.Args) != 1 {
		return fmt.Errorf("%w: /show <event-id>", ErrUsage)
	}
	raw := strings.TrimPrefix(cmd.Args[0], "#")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("%w: /show <event-id>: invalid id %q", ErrUsage, cmd.Args[0])
	}
	event, err := h.target.Detail(ctx, schema.EventID(id))
	if err != nil {
		log.Debug("command show failed", "event_id", id, "err", err)
		return err
	}
	h.out.Detail(event)
	return nil
}

func (h *Handler) handleStatus(ctx context.Context, log pslog.Logger) error {
	state, err := h.target.State(ctx)
	if err != nil {
		return err
	}
	h.out.Notice("stream: %s", state.Conn)
	h.out.Notice("filter: %s", render.FilterLabel(state.Filter))
	h.out.Notice("events shown: %d (newest #%d)", len(state.Events), state.HighWater)
	h.out.Notice("agents: %d", len(state.Agents))
	h.out.Notice("total events: %d, rate: %d/min (%s)", state.Stats.TotalEvents, state.Stats.EventsPerMinute, state.Stats.RateSource)
	log.Debug("command status completed")
	return nil
}

func (h *Handler) handleHelp() {
	for _, line := range HelpLines() {
		h.out.Notice("%s", line)
	}
}

// HelpLines describes the available commands.
func HelpLines() []string {
	return []string{
		"/filter [category=<c>] [agent=<name>] [tool=<name>]  set filter fields (value - clears one)",
		"/filter                                              show the active filter",
		"/clear                                               remove all filters",
		"/show <id>                                           print an event with its payload",
		"/status                                              connection, filter and counts",
		"/version                                             print the version",
		"/help                                                this help",
		"categories: communication, task_management, tool_use, lifecycle",
	}
}
