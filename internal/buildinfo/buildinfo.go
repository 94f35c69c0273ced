// Package buildinfo identifies the running build.
package buildinfo

import "runtime/debug"

// Set with -ldflags "-X alkyn/internal/buildinfo.Version=...".
var (
	Version = "dev"
	Commit  = ""
	Date    = ""
)

// Short is the version, or the commit for development builds.
func Short() string {
	if Version != "dev" && Version != "" {
		return Version
	}
	if c := commit(); c != "" {
		return c
	}
	return "dev"
}

// String is Short plus the build date when known.
func String() string {
	if Date == "" {
		return Short()
	}
	return Short() + " (" + Date + ")"
}

// commit falls back to the VCS stamp the go tool embeds.
func commit() string {
	if Commit != "" {
		return Commit
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 12 {
			return s.Value[:12]
		}
	}
	return ""
}
