// Package domain defines the core domain models for snapback.
package domain

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// SnapshotIDPrefix is the prefix of every snapshot identifier.
const SnapshotIDPrefix = "bk_"

// BackupType identifies how a snapshot relates to its predecessors.
type BackupType string

const (
	// BackupFull is a self-contained snapshot holding every source file.
	BackupFull BackupType = "full"

	// BackupIncremental holds only files changed since its parent snapshot.
	BackupIncremental BackupType = "incremental"
)

// ParseBackupType parses a backup type string.
func ParseBackupType(s string) (BackupType, error) {
	switch BackupType(strings.ToLower(s)) {
	case BackupFull:
		return BackupFull, nil
	case BackupIncremental:
		return BackupIncremental, nil
	}
	return "", ErrInvalidArgument.WithDetails(fmt.Sprintf("unknown backup type %q", s))
}

// CompressionType selects the archive stream compressor.
type CompressionType string

const (
	CompressionNone CompressionType = "none"
	CompressionGzip CompressionType = "gzip"
	CompressionZstd CompressionType = "zstd"
)

// ParseCompressionType parses a compression type string.
func ParseCompressionType(s string) (CompressionType, error) {
	switch CompressionType(strings.ToLower(s)) {
	case CompressionNone:
		return CompressionNone, nil
	case CompressionGzip:
		return CompressionGzip, nil
	case CompressionZstd:
		return CompressionZstd, nil
	}
	return "", ErrInvalidArgument.WithDetails(fmt.Sprintf("unknown compression type %q", s))
}

// Extension returns the archive filename extension for the compression type.
func (c CompressionType) Extension() string {
	switch c {
	case CompressionGzip:
		return ".tar.gz"
	case CompressionZstd:
		return ".tar.zst"
	default:
		return ".tar"
	}
}

// Snapshot is the persisted record of one backup run.
//
// A snapshot is created atomically after its archive is durably written and
// is never mutated afterwards, except for the Deleted marker set by the
// retention manager. Records are never physically removed from the metadata
// store so chain resolution can report broken references precisely.
type Snapshot struct {
	ID         string          `json:"id"`
	Type       BackupType      `json:"type"`
	SourcePath string          `json:"source_path"`
	// ArchiveName is the archive filename inside the destination directory.
	ArchiveName string          `json:"archive_name"`
	CreatedAt   int64           `json:"created_at"` // Unix milliseconds
	ParentID    string          `json:"parent_id,omitempty"`
	Manifest    []ManifestEntry `json:"manifest"`
	// Digest is the SHA-256 of the archive file's bytes, hex-encoded.
	Digest           string          `json:"digest"`
	UncompressedSize int64           `json:"uncompressed_size"`
	Compression      CompressionType `json:"compression"`
	Deleted          bool            `json:"deleted,omitempty"`
}

// GenerateSnapshotID generates a new snapshot ID using ULID.
// Format: bk_{ulid_lowercase}, 29 characters total. ULIDs are
// timestamp-ordered, so lexical order matches creation order.
func GenerateSnapshotID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", ErrInvalidArgument.WithCause(err)
	}
	return SnapshotIDPrefix + strings.ToLower(id.String()), nil
}

// IsValidSnapshotID checks if a string is a valid snapshot ID format.
func IsValidSnapshotID(id string) bool {
	id = strings.ToLower(id)
	if !strings.HasPrefix(id, SnapshotIDPrefix) {
		return false
	}
	// bk_ (3) + ULID (26) = 29 characters
	if len(id) != 29 {
		return false
	}
	_, err := ulid.Parse(strings.ToUpper(id[len(SnapshotIDPrefix):]))
	return err == nil
}

// ArchiveFileName derives the deterministic archive filename for a snapshot.
func ArchiveFileName(id string, typ BackupType, compression CompressionType) string {
	return fmt.Sprintf("%s-%s%s", id, typ, compression.Extension())
}

// CreatedTime returns the creation timestamp as a time.Time.
func (s *Snapshot) CreatedTime() time.Time {
	return time.UnixMilli(s.CreatedAt)
}

// LiveManifest returns the manifest entries that describe files existing at
// snapshot time (i.e. everything except removed tombstones).
func (s *Snapshot) LiveManifest() []ManifestEntry {
	live := make([]ManifestEntry, 0, len(s.Manifest))
	for _, e := range s.Manifest {
		if e.State != EntryRemoved {
			live = append(live, e)
		}
	}
	return live
}

// Validate checks structural invariants of a snapshot record.
func (s *Snapshot) Validate() error {
	if s.ID == "" {
		return ErrMissingArgument.WithDetails("snapshot id")
	}
	if s.Type != BackupFull && s.Type != BackupIncremental {
		return ErrInvalidArgument.WithDetails(fmt.Sprintf("backup type %q", s.Type))
	}
	if s.Type == BackupFull && s.ParentID != "" {
		return ErrInvalidArgument.WithDetails("full snapshot must not have a parent")
	}
	if s.Type == BackupIncremental && s.ParentID == "" {
		return ErrInvalidArgument.WithDetails("incremental snapshot requires a parent")
	}
	if s.SourcePath == "" {
		return ErrMissingArgument.WithDetails("source path")
	}
	if s.ArchiveName == "" {
		return ErrMissingArgument.WithDetails("archive name")
	}
	return nil
}
