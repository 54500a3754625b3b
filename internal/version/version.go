// Package version reports the build version of the teamwatch binary.
package version

import (
	"runtime/debug"
	"strings"
	"time"
)

const defaultModule = "pkt.systems/teamwatch"

// buildVersion is set via -ldflags "-X pkt.systems/teamwatch/internal/version.buildVersion=...".
var buildVersion = ""

// Info describes the running build.
type Info struct {
	Module   string
	Version  string
	Revision string
	Time     time.Time
	Modified bool
}

// Read collects build information, falling back to placeholders outside a
// module build.
func Read() Info {
	info, _ := debug.ReadBuildInfo()
	return fromBuildInfo(info)
}

// Current returns the best available version string without a dirty suffix.
func Current() string {
	return strings.TrimSuffix(Read().Version, "+dirty")
}

// Module returns the main module path.
func Module() string {
	return Read().Module
}

// UserAgent is the HTTP User-Agent sent to the backend.
func UserAgent() string {
	return "teamwatch/" + Current()
}

func fromBuildInfo(info *debug.BuildInfo) Info {
	out := Info{Module: defaultModule}
	if info != nil {
		if path := strings.TrimSpace(info.Main.Path); path != "" {
			out.Module = path
		}
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				out.Revision = setting.Value
			case "vcs.time":
				if parsed, err := time.Parse(time.RFC3339, setting.Value); err == nil {
					out.Time = parsed.UTC()
				}
			case "vcs.modified":
				out.Modified = setting.Value == "true"
			}
		}
	}
	switch {
	case strings.TrimSpace(buildVersion) != "":
		out.Version = strings.TrimSpace(buildVersion)
	case info != nil && info.Main.Version != "" && info.Main.Version != "(devel)":
		out.Version = info.Main.Version
	case out.Revision != "" && !out.Time.IsZero():
		out.Version = pseudoVersion(out)
	default:
		out.Version = "v0.0.0-unknown"
	}
	return out
}

func pseudoVersion(info Info) string {
	rev := info.Revision
	if len(rev) > 12 {
		rev = rev[:12]
	}
	v := "v0.0.0-" + info.Time.Format("20060102150405") + "-" + rev
	if info.Modified {
		v += "+dirty"
	}
	return v
}
