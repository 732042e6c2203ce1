package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Release metadata, injected by the release build:
//
//	go build -ldflags "-X main.version=v1.2.0 -X main.commit=abc1234 -X main.date=2026-05-01"
//
// Local builds leave them empty and fall back to the module build info.
var (
	version = ""
	commit  = ""
	date    = ""
)

// shortCommitLen is how much of the VCS revision the version command shows.
const shortCommitLen = 7

// getVersion returns the wikiexport release, the module version recorded
// by "go install", or "(devel)". It also names the service in traces.
func getVersion() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "(devel)"
}

// getCommit returns the abbreviated revision wikiexport was built from.
func getCommit() string {
	if commit != "" {
		return commit
	}
	if rev := vcsSetting("vcs.revision"); rev != "" {
		if len(rev) > shortCommitLen {
			return rev[:shortCommitLen]
		}
		return rev
	}
	return "unknown"
}

// getDate returns the commit time of the build.
func getDate() string {
	if date != "" {
		return date
	}
	if t := vcsSetting("vcs.time"); t != "" {
		return t
	}
	return "unknown"
}

func vcsSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print wikiexport build information",
		Long: `Print the wikiexport release, the commit it was built from, the build
date and the Go toolchain. Include this output when reporting export problems.`,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "wikiexport version %s\n", getVersion())
			fmt.Fprintf(out, "  commit: %s\n", getCommit())
			fmt.Fprintf(out, "  built:  %s\n", getDate())
			fmt.Fprintf(out, "  go:     %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
