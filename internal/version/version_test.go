package version

import (
	"runtime/debug"
	"strings"
	"testing"
	"time"
)

func TestCurrentPrefersBuildVersion(t *testing.T) {
	old := buildVersion
	buildVersion = "v1.2.3"
	t.Cleanup(func() { buildVersion = old })

	if got := Current(); got != "v1.2.3" {
		t.Fatalf("expected build version, got %q", got)
	}
	if got := UserAgent(); got != "teamwatch/v1.2.3" {
		t.Fatalf("unexpected user agent %q", got)
	}
}

func TestFromBuildInfoPseudoVersion(t *testing.T) {
	ts := time.Date(2025, time.January, 2, 3, 4, 5, 0, time.UTC)
	info := fromBuildInfo(&debug.BuildInfo{
		Main: debug.Module{Path: "example.com/fork", Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "1234567890abcdef"},
			{Key: "vcs.time", Value: ts.Format(time.RFC3339)},
			{Key: "vcs.modified", Value: "true"},
		},
	})
	if info.Module != "example.com/fork" {
		t.Fatalf("unexpected module %q", info.Module)
	}
	if info.Version != "v0.0.0-20250102030405-1234567890ab+dirty" {
		t.Fatalf("unexpected version %q", info.Version)
	}
	if !info.Time.Equal(ts) || !info.Modified {
		t.Fatalf("unexpected vcs fields: %+v", info)
	}
}

func TestFromBuildInfoFallbacks(t *testing.T) {
	info := fromBuildInfo(nil)
	if info.Module != defaultModule || info.Version != "v0.0.0-unknown" {
		t.Fatalf("unexpected fallback: %+v", info)
	}
	tagged := fromBuildInfo(&debug.BuildInfo{Main: debug.Module{Path: defaultModule, Version: "v0.4.0"}})
	if tagged.Version != "v0.4.0" {
		t.Fatalf("expected module version, got %q", tagged.Version)
	}
	if !strings.HasPrefix(UserAgent(), "teamwatch/") {
		t.Fatalf("unexpected user agent %q", UserAgent())
	}
}
