// Package version carries build metadata injected via -ldflags.
package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String returns a single-line version banner.
func String() string {
	return fmt.Sprintf("horizon %s (%s, built %s)", Version, GitSHA, BuildTime)
}

// Citation is printed for --how_to_cite in run configs.
const Citation = `If you use horizon in published work, please cite the
repository release you ran, including the version string and git SHA
reported by "horizon version".`
