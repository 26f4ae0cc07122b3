// Package version exposes the build identity of the propfoto binary.
package version

// Release builds overwrite these via -ldflags; a plain `go build`
// identifies itself as a dev build.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns the release version, commit hash and build date.
func Info() (version, commit, date string) {
	return Version, GitCommit, BuildDate
}
