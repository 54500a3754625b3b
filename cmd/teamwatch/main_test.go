package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pkt.systems/teamwatch/httpapi"
	"pkt.systems/teamwatch/internal/eventbus"
	"pkt.systems/teamwatch/internal/feedstore"
	"pkt.systems/teamwatch/schema"
)

func TestArgv0Alias(t *testing.T) {
	tests := []struct {
		name string
		base string
		want string
	}{
		{name: "teamwatch-fixture", base: "teamwatch-fixture", want: "fixture"},
		{name: "twfixture", base: "twfixture", want: "fixture"},
		{name: "teamwatch", base: "teamwatch", want: ""},
	}
	for _, tc := range tests {
		if got := argv0Alias(tc.base); got != tc.want {
			t.Fatalf("%s: argv0Alias(%q) = %q, want %q", tc.name, tc.base, got, tc.want)
		}
	}
}

func TestApplyArgv0Alias(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{name: "empty", args: nil, want: nil},
		{name: "no-alias", args: []string{"teamwatch", "watch"}, want: []string{"teamwatch", "watch"}},
		{name: "fixture", args: []string{"/usr/bin/teamwatch-fixture", "--seed", "3"}, want: []string{"/usr/bin/teamwatch-fixture", "fixture", "--seed", "3"}},
	}
	for _, tc := range tests {
		got := applyArgv0Alias(tc.args)
		if len(got) != len(tc.want) {
			t.Fatalf("%s: applyArgv0Alias length = %d, want %d", tc.name, len(got), len(tc.want))
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("%s: applyArgv0Alias[%d] = %q, want %q", tc.name, i, got[i], tc.want[i])
			}
		}
	}
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runRoot(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "pkt.systems/teamwatch ") {
		t.Fatalf("unexpected version output %q", out)
	}
}

func TestConfigInitWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if _, err := runRoot(t, "config", "init", "-c", path); err != nil {
		t.Fatalf("config init: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "config_version: 1") {
		t.Fatalf("unexpected config:\n%s", data)
	}
	if _, err := runRoot(t, "config", "init", "-c", path); err == nil {
		t.Fatalf("expected error without --force")
	}
	if _, err := runRoot(t, "config", "init", "-c", path, "--force"); err != nil {
		t.Fatalf("config init --force: %v", err)
	}
}

func startBackend(t *testing.T) string {
	t.Helper()
	store := feedstore.New(feedstore.Options{})
	store.Append(schema.Event{AgentName: "lead", Category: schema.CategoryToolUse, ToolName: "Bash", Summary: "Bash: ls", Payload: json.RawMessage(`{"command":"ls"}`)})
	store.Append(schema.Event{AgentName: "scout", Category: schema.CategoryCommunication, Summary: "DM to lead: done"})
	ts := httptest.NewServer(httpapi.NewServer(httpapi.Config{}, store, eventbus.New(nil)).Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

func missingConfig(t *testing.T) string {
	return filepath.Join(t.TempDir(), "none.yaml")
}

func TestShowCommandPrintsPayload(t *testing.T) {
	url := startBackend(t)
	out, err := runRoot(t, "show", "#1", "-c", missingConfig(t), "--server", url, "--format", "plain")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, `"command": "ls"`) {
		t.Fatalf("expected indented payload, got:\n%s", out)
	}
	if _, err := runRoot(t, "show", "42", "-c", missingConfig(t), "--server", url); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := runRoot(t, "show", "abc", "-c", missingConfig(t), "--server", url); err == nil {
		t.Fatalf("expected invalid id error")
	}
}

func TestSnapshotCommandJSON(t *testing.T) {
	url := startBackend(t)
	out, err := runRoot(t, "snapshot", "-c", missingConfig(t), "--server", url, "--format", "json", "--agent", "lead")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	var rec struct {
		Kind   string         `json:"kind"`
		Events []schema.Event `json:"events"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &rec); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if rec.Kind != "full" || len(rec.Events) != 1 || rec.Events[0].AgentName != "lead" {
		t.Fatalf("unexpected snapshot: %+v", rec)
	}
}

func TestClientFlagsRejectInvalidValues(t *testing.T) {
	if _, err := runRoot(t, "snapshot", "-c", missingConfig(t), "--category", "gossip"); err == nil || !strings.Contains(err.Error(), "filter.category") {
		t.Fatalf("expected category error, got %v", err)
	}
	if _, err := runRoot(t, "snapshot", "-c", missingConfig(t), "--server", "nope"); err == nil || !strings.Contains(err.Error(), "server.base_url") {
		t.Fatalf("expected base url error, got %v", err)
	}
}
