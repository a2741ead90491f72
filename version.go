package main

import (
	"fmt"
	"os/exec"
	"strings"

	"harmony-kit/encoding"
)

var (
	// Set at build time via go build -ldflags
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// GetVersionInfo returns formatted version information
func GetVersionInfo() string {
	return fmt.Sprintf("harmony-kit v%s (commit: %s, built: %s)", Version, GitCommit, BuildTime)
}

// GetGitCommit gets the current git commit hash at runtime
func GetGitCommit() string {
	if GitCommit != "unknown" {
		return GitCommit
	}

	cmd := exec.Command("git", "rev-parse", "--short", "HEAD")
	output, err := cmd.Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(output))
}

// GetBuildInfo returns detailed build information
func GetBuildInfo() string {
	names := encoding.Names()
	list := make([]string, len(names))
	for i, name := range names {
		list[i] = string(name)
	}

	return fmt.Sprintf("harmony-kit v%s\nCommit: %s\nBuild Time: %s\nEncodings: %s",
		Version, GetGitCommit(), BuildTime, strings.Join(list, ", "))
}
