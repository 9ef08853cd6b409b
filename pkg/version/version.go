// Package version holds the build version, set at link time with
// -ldflags "-X github.com/getpup/dcprobe/pkg/version.Version=...".
package version

// Version is the release of this build.
var Version = "dev"
