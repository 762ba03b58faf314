// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package version

var (
	// Version is the current application version.
	// It is populated by the build system (ldflags).
	Version = "v0.4.0"

	// Commit is the git short hash of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)

// String renders the version triple for CLI output.
func String() string {
	return Version + " (commit: " + Commit + ", built: " + Date + ")"
}
