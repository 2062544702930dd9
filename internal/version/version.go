package version

import "fmt"

// Version is overridden at build time via -ldflags.
var Version = "dev"

// Commit is the short git commit hash, set at build time.
var Commit = ""

func GetInfo() string {
	if Commit == "" {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, Commit)
}
