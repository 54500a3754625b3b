package render

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"pkt.systems/teamwatch/core"
	"pkt.systems/teamwatch/schema"
)

const (
	// DefaultRows is the number of feed rows printed on a full render.
	DefaultRows = 20
	// DefaultSummaryInterval throttles summary reprints between full renders.
	DefaultSummaryInterval = 10 * time.Second

	barWidth = 20
)

// TextOptions configures a Text sink.
type TextOptions struct {
	Writer io.Writer
	Color  bool
	// Rows caps the feed rows printed on a full render; 0 means DefaultRows and a
	// negative value prints every row.
	Rows            int
	SummaryInterval time.Duration
	Now             func() time.Time
}

// Text renders instructions as human-readable lines, styled when Color is set.
// Full renders print the whole view; appended events print one row each.
type Text struct {
	mu       sync.Mutex
	w        io.Writer
	theme    Theme
	rows     int
	interval time.Duration
	now      func() time.Time

	lastSummary time.Time
	lastStats   string
}

// NewText builds a text sink.
func NewText(opts TextOptions) *Text {
	profile := termenv.Ascii
	if opts.Color {
		profile = termenv.TrueColor
	}
	rows := opts.Rows
	if rows == 0 {
		rows = DefaultRows
	}
	interval := opts.SummaryInterval
	if interval <= 0 {
		interval = DefaultSummaryInterval
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Text{
		w:        opts.Writer,
		theme:    NewTheme(lipgloss.NewRenderer(opts.Writer), profile),
		rows:     rows,
		interval: interval,
		now:      now,
	}
}

// Render implements core.Sink.
func (t *Text) Render(in core.Instruction) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	var b strings.Builder
	switch in.Kind {
	case core.FullRender:
		t.writeHeader(&b, in.State, in.Filter, in.Stats)
		t.writeStats(&b, in.Stats)
		t.writeAgents(&b, in.Agents, now)
		t.writeFeed(&b, in.Events, now)
		t.lastSummary = now
		t.lastStats = statsKey(in.Stats)
	case core.IncrementalEventAppend:
		b.WriteString(t.row(in.Event, now))
		b.WriteByte('\n')
	case core.ConnectionStatusChanged:
		fmt.Fprintf(&b, "%s %s\n", t.theme.Faint.Render("stream"), t.theme.Status(in.State))
	case core.SummaryUpdate:
		key := statsKey(in.Stats)
		if key == t.lastStats || now.Sub(t.lastSummary) < t.interval {
			return
		}
		t.writeStats(&b, in.Stats)
		t.writeAgents(&b, in.Agents, now)
		t.lastSummary = now
		t.lastStats = key
	default:
		return
	}
	_, _ = io.WriteString(t.w, b.String())
}

// Detail prints one event with its pretty-printed payload.
func (t *Text) Detail(event schema.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var b strings.Builder
	b.WriteString(t.row(event, t.now()))
	b.WriteByte('\n')
	if event.SessionID != "" || event.TeamName != "" || event.HookEvent != "" {
		fmt.Fprintf(&b, "%s team=%s session=%s hook=%s\n", t.theme.Faint.Render("  meta"), event.TeamName, event.SessionID, event.HookEvent)
	}
	for _, line := range strings.Split(FormatPayload(event), "\n") {
		b.WriteString("  ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	_, _ = io.WriteString(t.w, b.String())
}

// Notice prints a free-form line, serialized with instruction output.
func (t *Text) Notice(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = io.WriteString(t.w, sprintf(format, args...)+"\n")
}

func (t *Text) writeHeader(b *strings.Builder, state schema.ConnState, filter schema.FilterState, stats schema.AggregateSnapshot) {
	fmt.Fprintf(b, "%s  %s  %s  %s\n",
		t.theme.Header.Render("teamwatch"),
		t.theme.Status(state),
		t.theme.Count.Render(fmt.Sprintf("%d events", stats.TotalEvents)),
		t.theme.Faint.Render("filter: "+FilterLabel(filter)),
	)
}

func (t *Text) writeStats(b *strings.Builder, stats schema.AggregateSnapshot) {
	most := "-"
	if stats.MostActiveAgent != "" {
		most = fmt.Sprintf("%s (%d)", t.theme.Agent(stats.MostActiveAgent), stats.MostActiveCount)
	}
	fmt.Fprintf(b, "total %s  rate %s/min %s  most active %s\n",
		t.theme.Count.Render(fmt.Sprint(stats.TotalEvents)),
		t.theme.Count.Render(fmt.Sprint(stats.EventsPerMinute)),
		t.theme.Faint.Render("("+string(stats.RateSource)+")"),
		most,
	)
	for _, bar := range stats.Bars {
		filled := int(float64(bar.Percent)*barWidth/100 + 0.5)
		fmt.Fprintf(b, "  %s %s%s %d\n",
			pad(CategoryLabel(bar.Category), 16),
			t.theme.Category(bar.Category, strings.Repeat("█", filled)),
			t.theme.BarEmpty.Render(strings.Repeat("░", barWidth-filled)),
			bar.Count,
		)
	}
}

func (t *Text) writeAgents(b *strings.Builder, agents []schema.AgentSummary, now time.Time) {
	if len(agents) == 0 {
		fmt.Fprintf(b, "agents: %s\n", t.theme.Faint.Render(NoAgentsMessage))
		return
	}
	parts := make([]string, 0, len(agents))
	for _, agent := range agents {
		seen := RelativeTime(agent.LastSeen, now)
		if seen == "" {
			seen = "-"
		}
		label := t.theme.Agent(agent.AgentName)
		if agent.TeamName != "" {
			label += t.theme.Faint.Render("@" + agent.TeamName)
		}
		parts = append(parts, fmt.Sprintf("%s (%d, %s)", label, agent.EventCount, seen))
	}
	fmt.Fprintf(b, "agents: %s\n", strings.Join(parts, "  "))
}

func (t *Text) writeFeed(b *strings.Builder, events []schema.Event, now time.Time) {
	if len(events) == 0 {
		fmt.Fprintf(b, "%s\n", t.theme.Faint.Render(NoEventsMessage))
		return
	}
	shown := events
	if t.rows > 0 && len(shown) > t.rows {
		shown = shown[:t.rows]
	}
	for _, event := range shown {
		b.WriteString(t.row(event, now))
		b.WriteByte('\n')
	}
	if hidden := len(events) - len(shown); hidden > 0 {
		fmt.Fprintf(b, "%s\n", t.theme.Faint.Render(fmt.Sprintf("... %d older events", hidden)))
	}
}

func (t *Text) row(event schema.Event, now time.Time) string {
	cols := []string{
		t.theme.Faint.Render(pad(fmt.Sprintf("#%d", event.ID), 7)),
		t.theme.Faint.Render(pad(RelativeTime(event.Timestamp, now), 8)),
		t.theme.Agent(event.AgentName) + padding(event.AgentName, 12),
		t.theme.Category(event.Category, pad(string(event.Category), 15)),
	}
	if event.ToolName != "" {
		cols = append(cols, pad(event.ToolName, 10))
	}
	cols = append(cols, Truncate(event.Summary, SummaryLimit))
	return strings.TrimRight(strings.Join(cols, " "), " ")
}

func statsKey(stats schema.AggregateSnapshot) string {
	return fmt.Sprintf("%d/%d/%s/%d/%v", stats.TotalEvents, stats.EventsPerMinute, stats.MostActiveAgent, stats.MostActiveCount, stats.Bars)
}
