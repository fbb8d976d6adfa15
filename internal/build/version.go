package build

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// These are set via -ldflags at build time. In a plain `go build` they are
// empty, except CommitHash, which init fills from the vcs.revision build
// setting when the binary carries VCS info.
var (
	// Commit is the Git commit hash baked in at build time, including a
	// dirty-tree suffix if applicable.
	Commit string

	// CommitHash is the Git commit hash alone, with no dirty-tree
	// suffix.
	CommitHash string

	// RawTags is the comma-separated list of build tags used to build
	// this binary, as passed to `go build -tags`.
	RawTags string
)

// GoVersion is the version of the Go toolchain used to build this
// binary, as reported by runtime.Version.
var GoVersion = runtime.Version()

const (
	appMajor uint = 0
	appMinor uint = 1
	appPatch uint = 0

	// appPreRelease is appended to the semantic version when this is a
	// pre-release build.
	appPreRelease = "beta"
)

// Version returns the application version as a properly formed string
// per the semantic versioning 2.0.0 spec (http://semver.org/).
func Version() string {
	version := fmt.Sprintf("%d.%d.%d", appMajor, appMinor, appPatch)
	if appPreRelease != "" {
		version = fmt.Sprintf("%s-%s", version, appPreRelease)
	}
	return version
}

// Tags returns the list of build tags that produced the current binary,
// parsed from the comma-separated RawTags; nil when RawTags is empty.
func Tags() []string {
	if RawTags == "" {
		return nil
	}
	return strings.Split(RawTags, ",")
}

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if CommitHash == "" {
				CommitHash = setting.Value
			}
		}
	}
}
