package buildconfig

import "fmt"

// Build-time variables injected via ldflags:
//
//	-X github.com/Harshitk-cp/reflex/internal/buildconfig.version=...
var (
	version = "dev"
	commit  = "unknown"
)

func Version() string {
	return version
}

func Commit() string {
	return commit
}

// VersionInfo returns version and commit for the health endpoint.
func VersionInfo() map[string]string {
	return map[string]string{
		"version": version,
		"commit":  commit,
	}
}

// UserAgent is sent on outbound provider requests and by reflexctl.
func UserAgent() string {
	return fmt.Sprintf("reflex/%s (%s)", version, commit)
}
