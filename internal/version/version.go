// Package version holds build-time version metadata.
package version

import "fmt"

// Version is set with ldflags in release builds:
// go build -ldflags "-X git.home.luguber.info/inful/incbuild/internal/version.Version=v0.3.0".
var Version = "dev"

// Build metadata, also set with ldflags.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version line printed by --version.
func String() string {
	return fmt.Sprintf("incbuild %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}
