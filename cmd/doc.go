// Package cmd implements the command-line interface for the relgate release
// publication coordinator. It provides a hierarchical command structure for
// publishing releases and for inspecting the locks and manifests involved.
//
// The package is organized into several subpackages:
//
//   - publish: The coordinated publish command (lock, merge, write, sync)
//   - lock: Commands for lock diagnostics (acquire, release, status)
//   - manifest: Commands for inspecting local manifest working copies
//   - perf: Contention benchmark for concurrent publishers
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See relgate -help for a list of all commands.
package cmd
