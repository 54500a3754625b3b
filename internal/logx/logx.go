package logx

import (
	"context"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/teamwatch/schema"
)

type contextKey int

const (
	clientKey contextKey = iota
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithClient annotates the logger with the client instance id if present.
func WithClient(ctx context.Context, clientID string) pslog.Logger {
	log := pslog.Ctx(ctx)
	if clientID != "" {
		if current, ok := ctx.Value(clientKey).(string); ok && current == clientID {
			return log
		}
		log = log.With("client", clientID)
	}
	return log
}

// WithFilter annotates the logger with the non-empty filter fields.
func WithFilter(log pslog.Logger, filter schema.FilterState) pslog.Logger {
	if filter.Category != "" {
		log = log.With("filter_category", string(filter.Category))
	}
	if filter.AgentName != "" {
		log = log.With("filter_agent", filter.AgentName)
	}
	if filter.ToolName != "" {
		log = log.With("filter_tool", filter.ToolName)
	}
	return log
}

// WithEvent annotates the logger with event identity fields.
func WithEvent(log pslog.Logger, event schema.Event) pslog.Logger {
	log = log.With("event_id", int64(event.ID), "category", string(event.Category))
	if event.AgentName != "" {
		log = log.With("agent", event.AgentName)
	}
	if event.ToolName != "" {
		log = log.With("tool", event.ToolName)
	}
	return log
}

// WithAttempt annotates the logger with a stream connection attempt and its delay.
func WithAttempt(log pslog.Logger, attempt int, delay time.Duration) pslog.Logger {
	log = log.With("attempt", attempt)
	if delay > 0 {
		log = log.With("delay_ms", delay.Milliseconds())
	}
	return log
}

// ContextWithClient stores the client marker on the context for log de-duplication.
func ContextWithClient(ctx context.Context, clientID string) context.Context {
	if ctx == nil || clientID == "" {
		return ctx
	}
	return context.WithValue(ctx, clientKey, clientID)
}

// ContextWithClientLogger attaches the logger and client marker to the context.
func ContextWithClientLogger(ctx context.Context, log pslog.Logger, clientID string) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithClient(ctx, clientID)
}
