// Package version provides information about the build version of the binaries
package version

import "runtime/debug"

// BuildInfo holds version information about a build
type BuildInfo struct {
	Service string `json:"service" example:"ruleexplain-api"`
	Version string `json:"version" example:"v0.3.0"`
	Commit  string `json:"commit"  example:"4f1c2ab"`
	Date    string `json:"date"    example:"2026-10-01T12:00:00Z"`
	Go      string `json:"go"      example:"go1.24.0"`
}

// Set via -ldflags "-X 'ruleexplain/internal/core/version.version=v0.0.1'
// -X 'ruleexplain/internal/core/version.commit=abcd' -X 'ruleexplain/internal/core/version.date=2026-10-02'"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// readBuild is swapped in tests
var readBuild = debug.ReadBuildInfo

// Info returns build information for service
// Values not stamped by ldflags fall back to the vcs settings the toolchain embeds
func Info(service string) BuildInfo {
	bi := BuildInfo{Service: service, Version: version, Commit: commit, Date: date}
	info, ok := readBuild()
	if !ok {
		return bi
	}
	bi.Go = info.GoVersion
	if bi.Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		bi.Version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if bi.Commit == "none" {
				bi.Commit = s.Value
				if len(bi.Commit) > 12 {
					bi.Commit = bi.Commit[:12]
				}
			}
		case "vcs.time":
			if bi.Date == "unknown" {
				bi.Date = s.Value
			}
		}
	}
	return bi
}
