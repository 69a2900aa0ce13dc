// Package verify recomputes archive checksums against recorded snapshot
// metadata to detect on-disk corruption. Verification is strictly read-only.
package verify
