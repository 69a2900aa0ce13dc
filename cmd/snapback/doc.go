// Package main provides the entry point for snapback.
//
// snapback is an incremental file backup tool:
//
//   - Snapshot creation (full and incremental chains)
//   - Change detection by size, mtime and content hash
//   - Retention policies with chain-ancestor protection
//   - Restore of any snapshot in a chain
//   - Archive integrity verification
//
// Usage:
//
//	snapback create --source /data --dest /backups
//	snapback list --dest /backups --output json
//	snapback restore --dest /backups --target /tmp/recovered bk_...
//	snapback watch --config job.yaml
package main
