package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pkt.systems/teamwatch/internal/eventbus"
	"pkt.systems/teamwatch/internal/feedclient"
	"pkt.systems/teamwatch/internal/feedstore"
	"pkt.systems/teamwatch/internal/sse"
	"pkt.systems/teamwatch/schema"
)

type fixture struct {
	store  *feedstore.Store
	bus    *eventbus.Bus
	server *httptest.Server
	client *feedclient.Client
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	store := feedstore.New(feedstore.Options{})
	bus := eventbus.New(nil)
	ts := httptest.NewServer(NewServer(cfg, store, bus).Handler())
	t.Cleanup(ts.Close)
	client, err := feedclient.New(feedclient.Options{BaseURL: ts.URL + cfg.BasePath, ClientID: "test-client"})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return &fixture{store: store, bus: bus, server: ts, client: client}
}

func (f *fixture) add(event schema.Event) schema.Event {
	stored := f.store.Append(event)
	f.bus.Publish(stored)
	return stored
}

func TestEventsEndpointFiltersAndPages(t *testing.T) {
	f := newFixture(t, Config{})
	f.add(schema.Event{AgentName: "lead", Category: schema.CategoryToolUse, ToolName: "Bash", Payload: json.RawMessage(`{"command":"ls"}`)})
	f.add(schema.Event{AgentName: "scout", Category: schema.CategoryCommunication})
	f.add(schema.Event{AgentName: "lead", Category: schema.CategoryToolUse, ToolName: "Read"})

	events, err := f.client.Events(context.Background(), schema.FilterState{AgentName: "lead"}, 100)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 2 || events[0].ID != 3 || events[1].ID != 1 {
		t.Fatalf("unexpected events: %+v", events)
	}
	if len(events[1].Payload) != 0 {
		t.Fatalf("expected listing without payload, got %s", events[1].Payload)
	}

	resp, err := http.Get(f.server.URL + "/api/events?per_page=1&page=2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var page eventsResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 3 || page.Pages != 3 || page.Page != 2 || len(page.Events) != 1 || page.Events[0].ID != 2 {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestEventsEndpointRejectsBadCategory(t *testing.T) {
	f := newFixture(t, Config{})
	resp, err := http.Get(f.server.URL + "/api/events?category=gossip")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestEventDetailIncludesPayload(t *testing.T) {
	f := newFixture(t, Config{})
	f.add(schema.Event{AgentName: "lead", Payload: json.RawMessage(`{"command":"ls"}`)})

	event, err := f.client.Event(context.Background(), 1)
	if err != nil {
		t.Fatalf("event: %v", err)
	}
	if !strings.Contains(string(event.Payload), `"command"`) {
		t.Fatalf("expected payload, got %s", event.Payload)
	}
	if _, err := f.client.Event(context.Background(), 99); !errors.Is(err, schema.ErrEventNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	resp, err := http.Get(f.server.URL + "/api/events/abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad id, got %d", resp.StatusCode)
	}
}

func TestAgentsAndStatsDecodeOnClient(t *testing.T) {
	f := newFixture(t, Config{BasePath: "/team"})
	f.add(schema.Event{AgentName: "lead", Category: schema.CategoryToolUse})
	f.add(schema.Event{AgentName: "lead", Category: schema.CategoryCommunication})
	f.add(schema.Event{AgentName: "scout", Category: schema.CategoryLifecycle})

	agents, err := f.client.Agents(context.Background())
	if err != nil {
		t.Fatalf("agents: %v", err)
	}
	if len(agents) != 2 {
		t.Fatalf("expected 2 agents, got %+v", agents)
	}
	stats, err := f.client.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalEvents != 3 || stats.EventsPerMinute != 3 {
		t.Fatalf("unexpected totals: %+v", stats)
	}
	if stats.MostActiveAgent != "lead" || stats.MostActiveCount != 2 {
		t.Fatalf("unexpected most active: %+v", stats)
	}
	if stats.ByCategory[schema.CategoryToolUse] != 1 || stats.ByCategory[schema.CategoryLifecycle] != 1 {
		t.Fatalf("unexpected histogram: %+v", stats.ByCategory)
	}
}

func openStream(t *testing.T, f *fixture, lastID schema.EventID) (*sse.Reader, io.ReadCloser) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	body, err := f.client.OpenStream(ctx, lastID)
	if err != nil {
		cancel()
		t.Fatalf("open stream: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		body.Close()
	})
	return sse.NewReader(body), body
}

func nextMessage(t *testing.T, r *sse.Reader) sse.Message {
	t.Helper()
	got := make(chan bool, 1)
	go func() { got <- r.Next() }()
	select {
	case ok := <-got:
		if !ok {
			t.Fatalf("stream ended: %v", r.Err())
		}
		return r.Message()
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for stream message")
	}
	return sse.Message{}
}

func waitSubscribers(t *testing.T, bus *eventbus.Bus, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for bus.Subscribers() != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d subscribers, have %d", want, bus.Subscribers())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStreamDeliversLiveEvents(t *testing.T) {
	f := newFixture(t, Config{})
	reader, _ := openStream(t, f, 0)
	waitSubscribers(t, f.bus, 1)

	f.add(schema.Event{AgentName: "lead", Summary: "hello"})
	msg := nextMessage(t, reader)
	if msg.ID != "1" || msg.Type != "" {
		t.Fatalf("unexpected frame: %+v", msg)
	}
	event, err := schema.DecodeEvent([]byte(msg.Data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.ID != 1 || event.Summary != "hello" {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestStreamReplaysAfterLastEventID(t *testing.T) {
	f := newFixture(t, Config{})
	for i := 0; i < 4; i++ {
		f.add(schema.Event{AgentName: "lead"})
	}
	reader, _ := openStream(t, f, 2)
	if msg := nextMessage(t, reader); msg.ID != "3" {
		t.Fatalf("expected replay of 3, got %+v", msg)
	}
	if msg := nextMessage(t, reader); msg.ID != "4" {
		t.Fatalf("expected replay of 4, got %+v", msg)
	}
	waitSubscribers(t, f.bus, 1)
	f.add(schema.Event{AgentName: "scout"})
	if msg := nextMessage(t, reader); msg.ID != "5" {
		t.Fatalf("expected live 5, got %+v", msg)
	}
}

func TestStreamSendsHeartbeats(t *testing.T) {
	f := newFixture(t, Config{Heartbeat: 10 * time.Millisecond})
	_, body := openStream(t, f, 0)
	buf := make([]byte, 64)
	done := make(chan string, 1)
	go func() {
		n, _ := io.ReadAtLeast(body, buf, len(": heartbeat\n\n"))
		done <- string(buf[:n])
	}()
	select {
	case got := <-done:
		if !strings.HasPrefix(got, ": heartbeat\n\n") {
			t.Fatalf("expected heartbeat comment, got %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for heartbeat")
	}
}

func TestStreamSeveredAfterDropEvery(t *testing.T) {
	f := newFixture(t, Config{DropEvery: 2})
	reader, _ := openStream(t, f, 0)
	waitSubscribers(t, f.bus, 1)
	for i := 0; i < 3; i++ {
		f.add(schema.Event{AgentName: "lead"})
	}
	nextMessage(t, reader)
	nextMessage(t, reader)
	ended := make(chan bool, 1)
	go func() { ended <- reader.Next() }()
	select {
	case more := <-ended:
		if more {
			t.Fatalf("expected stream to end, got %+v", reader.Message())
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("stream was not severed")
	}
}
