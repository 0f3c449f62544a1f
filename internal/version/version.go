// File: internal/version/version.go (complete file)

package version

import "fmt"

const Name = "camlinkcheck"

// These values are intended to be set at build time using -ldflags.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func String() string {
	return fmt.Sprintf("%s %s (commit=%s build_date=%s)", Name, Version, Commit, BuildDate)
}

// UserAgent is sent on outbound HTTP requests.
func UserAgent() string {
	return Name + "/" + Version
}
