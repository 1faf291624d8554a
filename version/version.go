// Package version reports build information for handlepool.
//
// Values are injected with ldflags:
//
//	go build -ldflags "-X github.com/go-i2p/handlepool/version.Version=1.0.0 \
//	  -X github.com/go-i2p/handlepool/version.GitCommit=$(git rev-parse --short HEAD)"
//
// When GitCommit is not injected, the VCS revision recorded by the Go
// toolchain is used if present.
package version

import (
	"runtime"
	"runtime/debug"
)

// Version is the release version, "dev" for local builds.
var Version = "dev"

// GitCommit is the short commit hash.
var GitCommit = ""

// BuildTime is the RFC 3339 build timestamp.
var BuildTime = ""

// Info is a snapshot of the build information.
type Info struct {
	Version   string
	GitCommit string
	BuildTime string
	GoVersion string
}

// Get returns the current build information.
func Get() Info {
	info := Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
	if info.GitCommit == "" {
		info.GitCommit = vcsRevision()
	}
	return info
}

// String formats the info as version[-commit][ (buildtime)].
func (i Info) String() string {
	v := i.Version
	if i.GitCommit != "" {
		v += "-" + i.GitCommit
	}
	if i.BuildTime != "" {
		v += " (" + i.BuildTime + ")"
	}
	return v
}

// Full returns the full version string.
func Full() string {
	return Get().String()
}

func vcsRevision() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			return s.Value[:7]
		}
	}
	return ""
}
