// Package version holds the bridge build version.
package version

// Version is the current bridge version. Overridden at build time via
// -ldflags "-X github.com/salespulse/bridge/internal/version.Version=1.4.0".
var Version = "dev"
