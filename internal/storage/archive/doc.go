// Package archive builds and extracts backup containers.
//
// A container is a tar stream, optionally compressed (gzip for speed, zstd
// for ratio), written to a temporary path and renamed into place only after
// its SHA-256 digest is finalized. The digest is computed over the
// container's bytes as they are written, so no second read pass is needed.
//
// The builder aborts the whole container on any source read failure: a
// partial backup is worse than a missing one. Context cancellation aborts the
// build and removes the temporary file, keeping the destination clean.
package archive
