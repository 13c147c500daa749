// Package version exposes build metadata for the switch binaries.
//
// Version, Commit and BuildTime are injected with ldflags. Local builds fall
// back to the VCS stamp the Go toolchain embeds.
package version
