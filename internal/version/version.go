// Package version holds build metadata injected via ldflags:
//
//	-X github.com/kailas-cloud/mongomap/internal/version.Version=v0.3.0
package version

import (
	"fmt"
	"runtime"

	"go.uber.org/zap"
)

//nolint:gochecknoglobals // set by the linker
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String formats the build metadata on one line.
func String() string {
	return fmt.Sprintf("mongomap %s (commit %s, built %s, %s)", Version, Commit, Date, runtime.Version())
}

// Fields returns the build metadata as log fields.
func Fields() []zap.Field {
	return []zap.Field{
		zap.String("version", Version),
		zap.String("commit", Commit),
		zap.String("go", runtime.Version()),
	}
}
