// Package version holds build metadata injected via ldflags, surfaced by
// the version subcommand and the serve startup log.
package version

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)
