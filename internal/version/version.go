// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package version carries build metadata injected with -ldflags.
package version

import "fmt"

var (
	// Version is overridden at build time.
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String formats the metadata for -version output.
func String() string {
	return fmt.Sprintf("dialwatchd %s (commit: %s, built: %s)", Version, Commit, Date)
}
