// Package command provides CLI command definitions for snapback.
//
// This package defines all CLI commands using urfave/cli/v2:
//
//   - root.go: Root command, global flags, logger setup
//   - create.go: Take a new snapshot
//   - list.go: List stored snapshots
//   - restore.go: Materialize a snapshot into a directory
//   - verify.go: Check archive integrity
//   - prune.go: Apply retention policy
//   - watch.go: Scheduled backups with config reload
//
// Commands follow a consistent pattern of parsing flags, calling the
// backup engine, and formatting output.
package command
