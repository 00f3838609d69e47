package main

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// Overridden at build time via -ldflags.
var (
	version   = "dev"
	gitCommit = ""
	buildDate = ""
)

// GetVersion prefers the ldflags value, then the module version stamped by
// the Go toolchain.
func GetVersion() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if v := info.Main.Version; v != "" && v != "(devel)" {
			return v
		}
	}
	return "dev"
}

// GetVersionInfo renders the full version block for --version.
func GetVersionInfo() string {
	var b strings.Builder
	fmt.Fprintf(&b, "councilctl version %s", GetVersion())
	if gitCommit != "" {
		fmt.Fprintf(&b, "\ncommit: %s", gitCommit)
	}
	if buildDate != "" {
		fmt.Fprintf(&b, "\nbuilt: %s", buildDate)
	}
	return b.String()
}
