// Package version holds the build version of the redcap CLI.
package version

import "fmt"

var (
	// Version is set at build time with
	// -ldflags "-X github.com/hashicorp-forge/redcap/internal/version.Version=...".
	Version = "0.1.0"

	// GitCommit is the commit the binary was built from, if known.
	GitCommit = ""
)

// HumanVersion returns the version with the commit appended when known.
func HumanVersion() string {
	if GitCommit == "" {
		return fmt.Sprintf("redcap v%s", Version)
	}
	return fmt.Sprintf("redcap v%s (%s)", Version, GitCommit)
}
