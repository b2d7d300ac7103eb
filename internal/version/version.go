// Package version reports the build version
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
)

// set by the linker with -X
var (
	// GitVersion is the version tag, for example v0.1.3
	GitVersion = ""
	// GitCommit is the commit hash
	GitCommit = ""
)

// Info describes the build
type Info struct {
	Major   uint   `json:"major"`
	Minor   uint   `json:"minor"`
	Patch   uint   `json:"patch"`
	Commit  string `json:"commit,omitempty"`
	Runtime string `json:"runtime"`
}

// String returns version in major.minor.patch format
func (v Info) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Current returns the version of the build
func Current() Info {
	ver, commit := GitVersion, GitCommit
	if ver == "" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			ver = bi.Main.Version
			for _, s := range bi.Settings {
				if s.Key == "vcs.revision" && commit == "" {
					commit = s.Value
				}
			}
		}
	}
	v := parse(ver)
	v.Commit = commit
	v.Runtime = runtime.Version()
	return v
}

func parse(ver string) Info {
	var v Info
	ver = strings.TrimPrefix(ver, "v")
	if i := strings.IndexAny(ver, "-+"); i >= 0 {
		ver = ver[:i]
	}
	parts := strings.SplitN(ver, ".", 3)
	vals := []*uint{&v.Major, &v.Minor, &v.Patch}
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			break
		}
		*vals[i] = uint(n)
	}
	return v
}
