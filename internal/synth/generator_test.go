package synth

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"pkt.systems/teamwatch/schema"
)

func TestNextIsDeterministicForSeed(t *testing.T) {
	a := New(Options{Seed: 7})
	b := New(Options{Seed: 7})
	for i := 0; i < 20; i++ {
		ea, eb := a.Next(), b.Next()
		if ea.AgentName != eb.AgentName || ea.Summary != eb.Summary || string(ea.Payload) != string(eb.Payload) {
			t.Fatalf("step %d diverged: %+v vs %+v", i, ea, eb)
		}
	}
}

func TestNextProducesValidEvents(t *testing.T) {
	g := New(Options{Seed: 3, Agents: []string{"lead", "scout"}, Team: "blue"})
	seen := map[schema.Category]bool{}
	for i := 0; i < 200; i++ {
		event := g.Next()
		seen[event.Category] = true
		if event.AgentName != "lead" && event.AgentName != "scout" {
			t.Fatalf("unexpected agent %q", event.AgentName)
		}
		if event.TeamName != "blue" || event.Summary == "" || event.HookEvent == "" {
			t.Fatalf("incomplete event: %+v", event)
		}
		var payload map[string]any
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			t.Fatalf("payload is not json: %v", err)
		}
		if payload["agent_name"] != event.AgentName {
			t.Fatalf("payload agent mismatch: %v", payload["agent_name"])
		}
		if event.Category == schema.CategoryToolUse && event.ToolName == "" {
			t.Fatalf("tool event without tool name: %+v", event)
		}
	}
	for _, cat := range schema.Categories {
		if !seen[cat] {
			t.Fatalf("expected category %s within 200 events", cat)
		}
	}
}

type recordingAppender struct {
	mu     sync.Mutex
	nextID schema.EventID
	events []schema.Event
}

func (r *recordingAppender) Append(event schema.Event) schema.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	event.ID = r.nextID
	r.events = append(r.events, event)
	return event
}

type recordingPublisher struct {
	ch chan schema.Event
}

func (p recordingPublisher) Publish(event schema.Event) {
	p.ch <- event
}

func TestRunAppendsThenPublishes(t *testing.T) {
	g := New(Options{Seed: 1, Interval: time.Millisecond})
	store := &recordingAppender{}
	bus := recordingPublisher{ch: make(chan schema.Event, 1024)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx, store, bus) }()

	for want := schema.EventID(1); want <= 3; want++ {
		select {
		case event := <-bus.ch:
			if event.ID != want {
				t.Fatalf("expected published id %d, got %d", want, event.ID)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d", want)
		}
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop")
	}
}
