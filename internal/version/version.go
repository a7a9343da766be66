// Package version exposes build metadata injected via -ldflags.
package version

import (
	"runtime"

	"github.com/mundotango/engagement/internal/metrics"
)

// Set at build time via -ldflags "-X ...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info is the version payload served on /version.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
}

// Get returns the current build information.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

// RecordBuildInfo sets the build_info metric. Call once at startup.
func RecordBuildInfo() {
	metrics.BuildInfo.WithLabelValues(Version, Commit, BuildTime, runtime.Version()).Set(1)
}
