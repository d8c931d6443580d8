package version

import "fmt"

var (
	// Name is the binary name reported to the rates API.
	Name = "ratesctl"
	// Version is the semantic version of the binary. Overridden at build time.
	Version = "dev"
	// Commit is the git commit hash. Overridden at build time.
	Commit = "unknown"
	// BuildDate is the build timestamp. Overridden at build time.
	BuildDate = "unknown"
)

// UserAgent returns the default User-Agent header value.
func UserAgent() string {
	return fmt.Sprintf("%s/%s", Name, Version)
}
