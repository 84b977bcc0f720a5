package config

// Set at link time:
//
//	go build -ldflags "-X hubrelay/internal/config.version=1.4.0 \
//	    -X hubrelay/internal/config.commit=$(git rev-parse --short HEAD) \
//	    -X hubrelay/internal/config.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo returns the linker-injected metadata.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}
