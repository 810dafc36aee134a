// Package model defines the domain types and value objects for the
// container-sync CLI.
//
// This package contains pure data structures with no external dependencies.
// A Config is produced by the config package (load, validate, normalize)
// and is read-only afterwards. SyncContainer values are transient views
// rebuilt from Docker labels at runtime; there are no state files.
//
// The package also defines exit codes (ExitCode), the CLIError type that
// carries them, and the typed errors of the configuration and
// orchestration phases.
package model
