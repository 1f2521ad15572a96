package main

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/FeelPulse/haven/internal/config"
)

// Build info - set via ldflags at build time:
//
//	go build -ldflags "-X main.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ) -X main.gitCommit=$(git rev-parse --short HEAD)"
var (
	buildTime = "unknown" // Set via -ldflags "-X main.buildTime=..."
	gitCommit = "unknown" // Set via -ldflags "-X main.gitCommit=..."
)

// VersionInfo contains version and build information
type VersionInfo struct {
	Version   string
	GoVersion string
	BuildTime string
	GitCommit string
	Platform  string
	Backend   string
	Features  []string
}

// GetVersionInfo returns the version information
func GetVersionInfo() *VersionInfo {
	info := &VersionInfo{
		Version:   version,
		GoVersion: runtime.Version(),
		BuildTime: buildTime,
		GitCommit: gitCommit,
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
	if cfg, err := config.Load(); err == nil {
		info.Backend = cfg.API.BaseURL
		info.Features = detectEnabledFeatures(cfg)
	}
	return info
}

// detectEnabledFeatures lists the optional behaviours cfg turns on
func detectEnabledFeatures(cfg *config.Config) []string {
	features := []string{}

	if cfg.Chat.RateLimit > 0 {
		features = append(features, fmt.Sprintf("rate-limit(%d/min)", cfg.Chat.RateLimit))
	}
	if cfg.Session.Ephemeral {
		features = append(features, "ephemeral-session")
	} else if cfg.Session.IdleHours > 0 {
		features = append(features, fmt.Sprintf("idle-expiry(%dh)", cfg.Session.IdleHours))
	}
	if cfg.Log.File != "" {
		features = append(features, "file-log")
	}

	return features
}

// String returns formatted version information
func (v *VersionInfo) String() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Haven v%s\n", v.Version))
	sb.WriteString(fmt.Sprintf("  Go:       %s\n", v.GoVersion))
	sb.WriteString(fmt.Sprintf("  Platform: %s\n", v.Platform))
	sb.WriteString(fmt.Sprintf("  Build:    %s\n", v.BuildTime))
	sb.WriteString(fmt.Sprintf("  Commit:   %s\n", v.GitCommit))
	if v.Backend != "" {
		sb.WriteString(fmt.Sprintf("  Backend:  %s\n", v.Backend))
	}

	if len(v.Features) > 0 {
		sb.WriteString(fmt.Sprintf("  Features: %s\n", strings.Join(v.Features, ", ")))
	} else {
		sb.WriteString("  Features: (none enabled)\n")
	}

	return sb.String()
}

// cmdVersion prints detailed version information
func cmdVersion() {
	info := GetVersionInfo()
	fmt.Print(info.String())
}
