// Package buildinfo carries version details stamped in at link time:
//
//	go build -ldflags "-X github.com/cleared-dev/forecast/internal/buildinfo.Version=v1.2.0"
package buildinfo

var (
	// Version is the release tag.
	Version = "dev"
	// Commit is the git commit the binary was built from.
	Commit = "none"
	// Date is the build time in RFC 3339.
	Date = "unknown"
)
