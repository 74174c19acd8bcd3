// Package logging assembles structured slog loggers and formatting helpers used
// across the Collective CLI.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so workflow code can tag log
// lines with run IDs, workflow names, and proposal IDs. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
