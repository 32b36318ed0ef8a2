// Package version holds build version information for gippity.
// The variables are set at build time via ldflags.
package version

// Build information variables.
// Example: go build -ldflags "-X autogippity/pkg/version.Version=v0.1.0".
//
//nolint:gochecknoglobals // These must be package-level vars for ldflags injection.
var (
	// Version is the semantic version, "dev" for development builds.
	Version = "dev"

	// Commit is the git commit SHA of the build.
	Commit = "none"

	// Date is the build date in ISO format.
	Date = "unknown"
)
