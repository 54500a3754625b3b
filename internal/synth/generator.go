// Package synth generates plausible agent-team activity for the fixture backend.
package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/teamwatch/schema"
)

// DefaultInterval is the delay between generated events.
const DefaultInterval = 1500 * time.Millisecond

// DefaultAgents are the team members the generator simulates.
var DefaultAgents = []string{"team-lead", "researcher", "implementer", "reviewer"}

// Appender stores an event and returns it with its assigned id.
type Appender interface {
	Append(schema.Event) schema.Event
}

// Publisher delivers a stored event to live subscribers.
type Publisher interface {
	Publish(schema.Event)
}

// Options configures a Generator.
type Options struct {
	Seed     int64
	Interval time.Duration
	Agents   []string
	Team     string
	Logger   pslog.Logger
}

// Generator produces a deterministic sequence of events for a seed.
type Generator struct {
	rng      *rand.Rand
	interval time.Duration
	agents   []string
	team     string
	session  map[string]string
	tasks    int
	log      pslog.Logger
}

// New constructs a Generator.
func New(opts Options) *Generator {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	agents := opts.Agents
	if len(agents) == 0 {
		agents = DefaultAgents
	}
	team := opts.Team
	if team == "" {
		team = "fixture"
	}
	logger := opts.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	seed := uint64(opts.Seed)
	return &Generator{
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		interval: interval,
		agents:   append([]string(nil), agents...),
		team:     team,
		session:  make(map[string]string, len(agents)),
		log:      logger,
	}
}

// Run appends and publishes one event per interval until ctx is done.
func (g *Generator) Run(ctx context.Context, store Appender, bus Publisher) error {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	g.log.Info("synth generator started", "interval", g.interval.String(), "agents", len(g.agents))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			event := store.Append(g.Next())
			if bus != nil {
				bus.Publish(event)
			}
			g.log.Trace("synth event", "id", event.ID, "agent", event.AgentName, "summary", event.Summary)
		}
	}
}

// Next builds the next event. Id and timestamp are left for the store.
func (g *Generator) Next() schema.Event {
	agent := g.agents[g.rng.IntN(len(g.agents))]
	peer := g.agents[g.rng.IntN(len(g.agents))]
	act := activities[g.rng.IntN(len(activities))]
	a := act(g, peer)

	input := a.input
	if input == nil {
		input = map[string]any{}
	}
	payload := map[string]any{
		"session_id":      g.sessionFor(agent),
		"hook_event_name": a.hook,
		"agent_name":      agent,
		"team_name":       g.team,
		"tool_input":      input,
	}
	if a.tool != "" {
		payload["tool_name"] = a.tool
	}
	if a.result != "" {
		payload["tool_result"] = a.result
	}
	raw, _ := json.Marshal(payload)
	return schema.Event{
		AgentName: agent,
		TeamName:  g.team,
		SessionID: g.sessionFor(agent),
		HookEvent: a.hook,
		Category:  a.category,
		ToolName:  a.tool,
		Summary:   a.summary,
		Payload:   raw,
	}
}

func (g *Generator) sessionFor(agent string) string {
	id, ok := g.session[agent]
	if !ok {
		id = fmt.Sprintf("%s-%08x", agent, g.rng.Uint32())
		g.session[agent] = id
	}
	return id
}

func (g *Generator) pick(options ...string) string {
	return options[g.rng.IntN(len(options))]
}

type activity struct {
	hook     string
	tool     string
	category schema.Category
	summary  string
	input    map[string]any
	result   string
}

var activities = []func(g *Generator, peer string) activity{
	func(g *Generator, _ string) activity {
		cmd := g.pick("go test ./...", "git status", "make lint", "ls -la internal", "go vet ./...")
		return activity{
			hook: "PostToolUse", tool: "Bash", category: schema.CategoryToolUse,
			summary: "Bash: " + cmd,
			input:   map[string]any{"command": cmd},
			result:  "ok",
		}
	},
	func(g *Generator, _ string) activity {
		tool := g.pick("Read", "Edit", "Write")
		path := g.pick("core/controller.go", "internal/stream/session.go", "README.md", "schema/types.go")
		return activity{
			hook: "PostToolUse", tool: tool, category: schema.CategoryToolUse,
			summary: tool + ": " + path,
			input:   map[string]any{"file_path": path},
		}
	},
	func(g *Generator, _ string) activity {
		pattern := g.pick("TODO", "func New", "context.Context", "ErrNotFound")
		tool := g.pick("Grep", "Glob")
		return activity{
			hook: "PostToolUse", tool: tool, category: schema.CategoryToolUse,
			summary: tool + ": " + pattern,
			input:   map[string]any{"pattern": pattern},
		}
	},
	func(g *Generator, peer string) activity {
		text := g.pick("ready for review", "tests are green", "need the schema change first", "picking up the next task")
		return activity{
			hook: "PostToolUse", tool: "SendMessage", category: schema.CategoryCommunication,
			summary: fmt.Sprintf("DM to %s: %s", peer, text),
			input:   map[string]any{"type": "message", "recipient": peer, "content": text},
		}
	},
	func(g *Generator, _ string) activity {
		text := g.pick("standup in five", "merging to main", "freeze for release")
		return activity{
			hook: "PostToolUse", tool: "SendMessage", category: schema.CategoryCommunication,
			summary: "Broadcast: " + text,
			input:   map[string]any{"type": "broadcast", "content": text},
		}
	},
	func(g *Generator, _ string) activity {
		g.tasks++
		subject := g.pick("wire reconnect backoff", "render category bars", "add metrics endpoint", "fix flaky test")
		return activity{
			hook: "PostToolUse", tool: "TaskCreate", category: schema.CategoryTaskManagement,
			summary: "Created task: " + subject,
			input:   map[string]any{"subject": subject},
		}
	},
	func(g *Generator, peer string) activity {
		task := g.tasks
		if task == 0 {
			task = 1
		}
		if g.rng.IntN(2) == 0 {
			return activity{
				hook: "PostToolUse", tool: "TaskUpdate", category: schema.CategoryTaskManagement,
				summary: fmt.Sprintf("Assigned task #%d to %s", task, peer),
				input:   map[string]any{"taskId": fmt.Sprint(task), "owner": peer},
			}
		}
		status := g.pick("in_progress", "completed")
		return activity{
			hook: "PostToolUse", tool: "TaskUpdate", category: schema.CategoryTaskManagement,
			summary: fmt.Sprintf("Updated task #%d: %s", task, status),
			input:   map[string]any{"taskId": fmt.Sprint(task), "status": status},
		}
	},
	func(g *Generator, peer string) activity {
		if g.rng.IntN(2) == 0 {
			return activity{
				hook: "SubagentStart", category: schema.CategoryLifecycle,
				summary: "Subagent started: " + peer,
				input:   map[string]any{"name": peer},
			}
		}
		return activity{hook: "Stop", category: schema.CategoryLifecycle, summary: "Agent stopped"}
	},
}
