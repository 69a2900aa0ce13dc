// Package metastore persists snapshot metadata for a backup destination.
//
// The store is an append-only log (snapshots.log, one JSON record per line)
// kept inside the destination directory, replayed into an in-memory index on
// open. Two record kinds exist: a full snapshot record appended after its
// archive is durably written, and a deletion marker appended by the retention
// manager. Snapshot records are never rewritten; soft-deletion preserves
// chain-resolution metadata for audits.
//
// The store assumes single-process, single-invocation access per destination.
// Concurrent writers are not supported; callers serialize access (the CLI
// uses an advisory lock file).
package metastore
