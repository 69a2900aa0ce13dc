// Package domain defines the core domain models for snapback.
//
// This package contains:
//
//   - snapshot.go: Snapshot records, backup types, compression types
//   - manifest.go: file manifests with tagged entry states
//   - policy.go: retention policy configuration
//   - errors.go: structured domain errors with error codes
//
// Domain types carry no behavior beyond validation and derivation; all
// orchestration lives in internal/core/service.
package domain
