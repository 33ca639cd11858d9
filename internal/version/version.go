// Package version holds build metadata, set with -ldflags at release time:
//
//	-X github.com/mj1618/user-routine/internal/version.Version=v1.2.0
package version

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)
