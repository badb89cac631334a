// Package version reports what build is running. The variables are set at
// link time:
//
//	go build -ldflags "-X github.com/bissquit/onestop-itsm/internal/version.Version=1.2.0"
package version

import (
	"fmt"
	"runtime/debug"
)

// Build identifiers, overridden with -ldflags -X.
var (
	Version   = "0.0.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info describes the running build.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// Get returns the build info. When the binary was built without ldflags the
// VCS stamp recorded by the Go toolchain fills the commit and date.
func Get() Info {
	info := Info{Version: Version, Commit: GitCommit, BuildDate: BuildDate}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		switch {
		case s.Key == "vcs.revision" && info.Commit == "unknown":
			info.Commit = s.Value
		case s.Key == "vcs.time" && info.BuildDate == "unknown":
			info.BuildDate = s.Value
		}
	}
	return info
}

func (i Info) String() string {
	return fmt.Sprintf("onestop %s (commit %s, built %s)", i.Version, i.Commit, i.BuildDate)
}
