// Package detect decides what a new snapshot must contain.
//
// Given a source tree, an exclusion set and an optional baseline manifest,
// the detector produces the inclusion set (relative paths whose content goes
// into the new archive) and the new full-state manifest, including removed
// tombstones for paths that existed in the baseline but are gone from the
// source.
//
// Content hashing is bounded-parallel; entries are sorted by relative path
// after collection so two runs over an unchanged tree produce byte-identical
// manifests.
package detect
