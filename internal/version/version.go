// Package version exposes the build identity of the planforge binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version is the release version. Release builds override it with ldflags;
// development builds report "dev" plus whatever VCS metadata the toolchain
// embedded.
var Version = "dev"

// Info is the resolved build identity
type Info struct {
	Version   string
	Commit    string
	Dirty     bool
	GoVersion string
	Platform  string
}

// GetInfo resolves the build identity, pulling the commit and dirty flag
// from the VCS metadata embedded at build time.
func GetInfo() Info {
	info := Info{
		Version:   Version,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	if build, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range build.Settings {
			switch setting.Key {
			case "vcs.revision":
				info.Commit = setting.Value
			case "vcs.modified":
				info.Dirty = setting.Value == "true"
			}
		}
	}
	return info
}

// String renders the identity on one line for the version command
func (i Info) String() string {
	out := "planforge " + i.Version
	if i.Commit != "" {
		commit := i.Commit
		if len(commit) > 8 {
			commit = commit[:8]
		}
		if i.Dirty {
			commit += "-dirty"
		}
		out += " (" + commit + ")"
	}
	return fmt.Sprintf("%s %s %s", out, i.GoVersion, i.Platform)
}

// Short returns just the version number
func (i Info) Short() string {
	return i.Version
}
