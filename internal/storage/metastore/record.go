package metastore

import (
	"encoding/json"

	"github.com/Shevanio/snapback/internal/core/domain"
)

// MetaFileName is the metadata log filename inside a destination directory.
const MetaFileName = "snapshots.log"

// recordKind tags one line of the metadata log.
type recordKind string

const (
	recordSnapshot recordKind = "snapshot"
	recordDeleted  recordKind = "deleted"
)

// record is one line of the append-only metadata log.
type record struct {
	Kind recordKind `json:"kind"`
	At   int64      `json:"at"` // Unix milliseconds

	// Snapshot is set for recordSnapshot lines.
	Snapshot *domain.Snapshot `json:"snapshot,omitempty"`

	// SnapshotID is set for recordDeleted lines.
	SnapshotID string `json:"snapshot_id,omitempty"`
}

func (r record) marshal() ([]byte, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
