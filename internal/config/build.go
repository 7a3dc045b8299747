package config

import (
	"log/slog"
	"strings"
)

// Set with -ldflags "-X goldenbatch/internal/config.version=1.4.0 ...".
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo reads the linker-injected metadata.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}

// LogValue groups the build metadata under one log attribute.
func (b BuildInfo) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("version", b.Version),
		slog.String("commit", b.Commit),
		slog.String("build_time", b.BuildTime),
	)
}

// Dev reports whether the binary was built without release metadata.
func (b BuildInfo) Dev() bool {
	return b.Version == "" || strings.EqualFold(b.Version, "dev")
}
