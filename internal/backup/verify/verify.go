package verify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/Shevanio/snapback/internal/core/domain"
	"github.com/Shevanio/snapback/internal/storage/metastore"
	"github.com/Shevanio/snapback/internal/telemetry/logger"
)

// Status is the outcome of verifying a single snapshot.
type Status string

const (
	StatusOK       Status = "ok"
	StatusMismatch Status = "mismatch"
	StatusMissing  Status = "missing"
)

// Result reports the verification of one snapshot's archive.
type Result struct {
	SnapshotID string `json:"snapshot_id"`
	Archive    string `json:"archive"`
	Status     Status `json:"status"`

	// Expected and Actual are hex SHA-256 digests. Actual is empty when the
	// archive file is missing.
	Expected string `json:"expected"`
	Actual   string `json:"actual,omitempty"`
}

// OK reports whether the archive matched its recorded digest.
func (r *Result) OK() bool { return r.Status == StatusOK }

// Verifier recomputes archive digests against stored metadata. It never
// writes to the destination.
type Verifier struct {
	store *metastore.Store
	log   logger.Logger
}

func NewVerifier(store *metastore.Store, log logger.Logger) *Verifier {
	return &Verifier{store: store, log: log}
}

// Snapshot verifies a single snapshot by identifier.
func (v *Verifier) Snapshot(ctx context.Context, id string) (*Result, error) {
	snap, err := v.store.Find(id)
	if err != nil {
		return nil, err
	}
	if snap.Deleted {
		return nil, domain.ErrSnapshotNotFound.WithDetails(id + " (soft-deleted)")
	}
	return v.verifyOne(ctx, snap)
}

// All verifies every live snapshot for sourcePath (empty means all sources).
// A digest mismatch or missing archive is recorded in the result, not
// returned as an error; only I/O failures abort the run.
func (v *Verifier) All(ctx context.Context, sourcePath string) ([]*Result, error) {
	snaps, err := v.store.List(sourcePath)
	if err != nil {
		return nil, err
	}
	results := make([]*Result, 0, len(snaps))
	for _, snap := range snaps {
		if snap.Deleted {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := v.verifyOne(ctx, snap)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (v *Verifier) verifyOne(ctx context.Context, snap *domain.Snapshot) (*Result, error) {
	res := &Result{
		SnapshotID: snap.ID,
		Archive:    snap.ArchiveName,
		Expected:   snap.Digest,
	}

	path := v.store.ArchivePath(snap)
	actual, err := digestFile(ctx, path)
	switch {
	case os.IsNotExist(err):
		res.Status = StatusMissing
		v.log.Warn("archive file missing", "snapshot", snap.ID, "archive", snap.ArchiveName)
		return res, nil
	case err != nil:
		return nil, domain.ErrArchiveUnreadable.WithDetails(path).WithCause(err)
	}

	res.Actual = actual
	if actual == snap.Digest {
		res.Status = StatusOK
	} else {
		res.Status = StatusMismatch
		v.log.Warn("archive digest mismatch",
			"snapshot", snap.ID,
			"expected", snap.Digest,
			"actual", actual,
		)
	}
	return res, nil
}

// digestFile computes the hex SHA-256 of a file's raw bytes.
func digestFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, 256<<10)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
