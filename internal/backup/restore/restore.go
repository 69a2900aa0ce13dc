package restore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Shevanio/snapback/internal/core/domain"
	"github.com/Shevanio/snapback/internal/storage/archive"
	"github.com/Shevanio/snapback/internal/storage/metastore"
	"github.com/Shevanio/snapback/internal/telemetry/logger"
)

// Options controls a restore run.
type Options struct {
	// SnapshotID is the snapshot whose state is reconstructed.
	SnapshotID string

	// DestRoot is the directory the tree is materialized into. It is
	// created if absent.
	DestRoot string

	// Overwrite permits restoring into a non-empty destination. Without it
	// a non-empty DestRoot aborts before any layer is applied.
	Overwrite bool
}

// Report describes a completed restore.
type Report struct {
	SnapshotID string `json:"snapshot_id"`
	DestRoot   string `json:"dest_root"`

	// Layers are the snapshot identifiers applied, root first.
	Layers []string `json:"layers"`

	// Files and Removed count entries materialized and tombstones applied
	// across all layers.
	Files   int `json:"files"`
	Removed int `json:"removed"`
}

// Engine reconstructs source trees from snapshot chains.
type Engine struct {
	store *metastore.Store
	log   logger.Logger
}

func NewEngine(store *metastore.Store, log logger.Logger) *Engine {
	return &Engine{store: store, log: log}
}

// Run replays the snapshot's chain into the destination: each layer's
// archive is extracted root-first, then the layer's tombstones are applied.
// On a mid-chain failure the returned error names the last layer that was
// fully applied; the destination is left as of that layer.
func (e *Engine) Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.SnapshotID == "" {
		return nil, domain.ErrMissingArgument.WithDetails("snapshot id")
	}
	if opts.DestRoot == "" {
		return nil, domain.ErrMissingArgument.WithDetails("destination root")
	}

	chain, err := e.store.Chain(opts.SnapshotID)
	if err != nil {
		return nil, err
	}

	if err := prepareDest(opts.DestRoot, opts.Overwrite); err != nil {
		return nil, err
	}

	report := &Report{SnapshotID: opts.SnapshotID, DestRoot: opts.DestRoot}
	applied := ""
	for _, snap := range chain {
		if err := ctx.Err(); err != nil {
			return report, restoreFailure(applied, err)
		}
		if err := e.applyLayer(ctx, snap, opts, report); err != nil {
			return report, restoreFailure(applied, err)
		}
		applied = snap.ID
		report.Layers = append(report.Layers, snap.ID)
		e.log.Info("restore layer applied",
			"snapshot", snap.ID,
			"type", snap.Type,
		)
	}
	return report, nil
}

func (e *Engine) applyLayer(ctx context.Context, snap *domain.Snapshot, opts Options, report *Report) error {
	if err := archive.Extract(ctx, e.store.ArchivePath(snap), snap.Compression, opts.DestRoot); err != nil {
		return err
	}

	for _, entry := range snap.Manifest {
		if entry.State == domain.EntryChanged {
			report.Files++
			continue
		}
		if entry.State != domain.EntryRemoved {
			continue
		}
		target := filepath.Join(opts.DestRoot, filepath.FromSlash(entry.Path))
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			return domain.ErrWriteFailure.WithDetails(target).WithCause(err)
		}
		report.Removed++
	}
	return nil
}

// prepareDest creates the destination if absent and enforces the
// non-empty guard.
func prepareDest(destRoot string, overwrite bool) error {
	f, err := os.Open(destRoot)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(destRoot, 0750); err != nil {
			return domain.ErrWriteFailure.WithDetails(destRoot).WithCause(err)
		}
		return nil
	}
	if err != nil {
		return domain.ErrWriteFailure.WithDetails(destRoot).WithCause(err)
	}
	defer f.Close()

	if _, err := f.Readdirnames(1); err == io.EOF {
		return nil
	} else if err != nil {
		return domain.ErrWriteFailure.WithDetails(destRoot).WithCause(err)
	}
	if !overwrite {
		return domain.ErrDestinationNotEmpty.WithDetails(destRoot)
	}
	return nil
}

func restoreFailure(lastApplied string, cause error) error {
	detail := "no layers applied"
	if lastApplied != "" {
		detail = fmt.Sprintf("last applied layer %s", lastApplied)
	}
	return domain.ErrRestoreFailed.WithDetails(detail).WithCause(cause)
}
