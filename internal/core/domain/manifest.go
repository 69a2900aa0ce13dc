// Package domain defines the core domain models for snapback.
package domain

import (
	"fmt"
	"sort"
)

// EntryState tags how a manifest entry relates to the snapshot's parent.
//
// The state is a tagged variant rather than a boolean so replay logic stays
// exhaustive: present entries carry content stored in an earlier chain layer,
// changed entries carry content stored in this snapshot's archive, removed
// entries are tombstones for paths deleted since the parent snapshot.
type EntryState string

const (
	EntryPresent EntryState = "present"
	EntryChanged EntryState = "changed"
	EntryRemoved EntryState = "removed"
)

// EntryKind distinguishes regular files from symbolic links.
// Symbolic links are recorded with their target and never followed.
type EntryKind string

const (
	KindFile    EntryKind = "file"
	KindSymlink EntryKind = "symlink"
)

// ManifestEntry records one file's state at snapshot time.
//
// Paths are slash-separated and relative to the source root. An entry is
// owned exclusively by its snapshot and never shared.
type ManifestEntry struct {
	Path    string     `json:"path"`
	State   EntryState `json:"state"`
	Kind    EntryKind  `json:"kind,omitempty"`
	Size    int64      `json:"size,omitempty"`
	ModTime int64      `json:"mod_time,omitempty"` // Unix milliseconds
	Mode    uint32     `json:"mode,omitempty"`
	// Hash is the BLAKE2b-256 content hash, hex-encoded. Used only for
	// incremental change detection, not deduplication. Empty for symlinks
	// and tombstones.
	Hash string `json:"hash,omitempty"`
	// LinkTarget is the symlink target for KindSymlink entries.
	LinkTarget string `json:"link_target,omitempty"`
}

// SortManifest orders entries by relative path so that two runs over an
// unchanged tree produce byte-identical manifests.
func SortManifest(entries []ManifestEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})
}

// ManifestIndex builds a path-keyed lookup over a manifest.
func ManifestIndex(entries []ManifestEntry) map[string]ManifestEntry {
	idx := make(map[string]ManifestEntry, len(entries))
	for _, e := range entries {
		idx[e.Path] = e
	}
	return idx
}

// ValidateManifest checks per-entry invariants.
func ValidateManifest(entries []ManifestEntry) error {
	for _, e := range entries {
		if e.Path == "" {
			return ErrInvalidArgument.WithDetails("manifest entry with empty path")
		}
		switch e.State {
		case EntryPresent, EntryChanged, EntryRemoved:
		default:
			return ErrInvalidArgument.WithDetails(fmt.Sprintf("manifest entry %s: state %q", e.Path, e.State))
		}
		if e.State != EntryRemoved {
			switch e.Kind {
			case KindFile, KindSymlink:
			default:
				return ErrInvalidArgument.WithDetails(fmt.Sprintf("manifest entry %s: kind %q", e.Path, e.Kind))
			}
		}
		if e.Kind == KindSymlink && e.State != EntryRemoved && e.LinkTarget == "" {
			return ErrInvalidArgument.WithDetails(fmt.Sprintf("manifest entry %s: symlink without target", e.Path))
		}
	}
	return nil
}
