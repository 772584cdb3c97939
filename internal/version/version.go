// Package version contains build version information.
package version

import "fmt"

// Version is the current application version.
// Set at build time via ldflags.
var Version = "0.0.0-dev"

// GitCommit is the git commit hash.
var GitCommit = "unknown"

// BuildDate is the build date.
var BuildDate = "unknown"

// String returns a one-line description of the build.
func String() string {
	return fmt.Sprintf("cti-webhook %s (commit %s, built %s)", Version, GitCommit, BuildDate)
}

// Info returns the build fields keyed for JSON output.
func Info() map[string]string {
	return map[string]string{
		"version":    Version,
		"commit":     GitCommit,
		"build_date": BuildDate,
	}
}
