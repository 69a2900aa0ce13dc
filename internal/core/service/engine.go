package service

import (
	"context"
	"time"

	"github.com/Shevanio/snapback/internal/backup/detect"
	"github.com/Shevanio/snapback/internal/backup/restore"
	"github.com/Shevanio/snapback/internal/backup/retain"
	"github.com/Shevanio/snapback/internal/backup/verify"
	"github.com/Shevanio/snapback/internal/core/domain"
	"github.com/Shevanio/snapback/internal/storage/archive"
	"github.com/Shevanio/snapback/internal/storage/metastore"
	"github.com/Shevanio/snapback/internal/telemetry/logger"
)

// Engine is the backup orchestrator: it ties change detection, archive
// building, metadata recording, retention and restore together over one
// destination directory.
type Engine struct {
	store    *metastore.Store
	log      logger.Logger
	sweeper  *retain.Sweeper
	restorer *restore.Engine
	verifier *verify.Verifier
}

// New builds an engine over an opened metadata store.
func New(store *metastore.Store, log logger.Logger) *Engine {
	return &Engine{
		store:    store,
		log:      log,
		sweeper:  retain.NewSweeper(store, log),
		restorer: restore.NewEngine(store, log),
		verifier: verify.NewVerifier(store, log),
	}
}

// CreateOptions configures one backup run.
type CreateOptions struct {
	// SourceRoot is the tree to back up.
	SourceRoot string

	// Type selects a full or incremental backup. An incremental run with no
	// prior live snapshot for the source degrades to a full backup.
	Type domain.BackupType

	// ParentID pins the baseline snapshot explicitly. Empty means the most
	// recent live snapshot for SourceRoot.
	ParentID string

	Compression domain.CompressionType

	// Exclusions are glob patterns matched against relative paths and path
	// segments.
	Exclusions []string

	// HashAll forces content hashing even when size and mtime match.
	HashAll bool

	// Concurrency bounds parallel hashing. Zero means GOMAXPROCS.
	Concurrency int

	// BandwidthLimit throttles archive writes, in bytes per second.
	BandwidthLimit int64

	// Retention, when non-nil, runs a retention sweep for the source after
	// the new snapshot is recorded.
	Retention *domain.RetentionPolicy
}

// CreateResult reports a completed backup.
type CreateResult struct {
	Snapshot *domain.Snapshot `json:"snapshot"`

	// Changed is the number of entries whose content went into the archive.
	Changed int `json:"changed"`

	// Removed is the number of tombstones recorded since the parent.
	Removed int `json:"removed"`

	Duration time.Duration `json:"duration"`

	// Prune is the retention sweep outcome, nil when no policy ran.
	Prune *retain.Report `json:"prune,omitempty"`
}

// Create takes a new snapshot of the source tree.
//
// The archive is fully written and renamed into place before the metadata
// record is appended, so a crash between the two leaves an orphaned archive
// but never a record without its archive.
func (e *Engine) Create(ctx context.Context, opts CreateOptions) (*CreateResult, error) {
	start := time.Now()

	if opts.Type == "" {
		opts.Type = domain.BackupIncremental
	}
	if opts.Compression == "" {
		opts.Compression = domain.CompressionGzip
	}

	excl, err := detect.NewExclusionSet(opts.Exclusions)
	if err != nil {
		return nil, err
	}

	parent, err := e.resolveParent(opts)
	if err != nil {
		return nil, err
	}
	typ := opts.Type
	if typ == domain.BackupIncremental && parent == nil {
		e.log.Info("no live baseline for source, taking full backup",
			"source", opts.SourceRoot,
		)
		typ = domain.BackupFull
	}
	if typ == domain.BackupFull {
		parent = nil
	}

	var baseline []domain.ManifestEntry
	if parent != nil {
		baseline = parent.Manifest
	}

	det, err := detect.Run(ctx, detect.Options{
		SourceRoot:  opts.SourceRoot,
		Exclusions:  excl,
		Baseline:    baseline,
		HashAll:     opts.HashAll,
		Concurrency: opts.Concurrency,
	})
	if err != nil {
		return nil, err
	}

	id, err := domain.GenerateSnapshotID()
	if err != nil {
		return nil, err
	}
	name := domain.ArchiveFileName(id, typ, opts.Compression)

	built, err := archive.Build(ctx, archive.BuildRequest{
		SourceRoot:     opts.SourceRoot,
		Paths:          det.Inclusion,
		DestDir:        e.store.Dir(),
		ArchiveName:    name,
		Compression:    opts.Compression,
		BandwidthLimit: opts.BandwidthLimit,
	})
	if err != nil {
		return nil, err
	}

	snap := &domain.Snapshot{
		ID:               id,
		Type:             typ,
		SourcePath:       opts.SourceRoot,
		ArchiveName:      name,
		CreatedAt:        time.Now().UnixMilli(),
		Manifest:         det.Manifest,
		Digest:           built.Digest,
		UncompressedSize: built.UncompressedSize,
		Compression:      opts.Compression,
	}
	if parent != nil {
		snap.ParentID = parent.ID
	}
	if err := e.store.Append(snap); err != nil {
		return nil, err
	}

	removed := 0
	for _, entry := range det.Manifest {
		if entry.State == domain.EntryRemoved {
			removed++
		}
	}
	res := &CreateResult{
		Snapshot: snap,
		Changed:  len(det.Inclusion),
		Removed:  removed,
		Duration: time.Since(start),
	}
	e.log.Info("snapshot created",
		"snapshot", id,
		"type", typ,
		"source", opts.SourceRoot,
		"changed", res.Changed,
		"removed", removed,
	)

	if opts.Retention != nil {
		prune, err := e.sweeper.Sweep(ctx, opts.SourceRoot, *opts.Retention)
		if err != nil {
			return res, err
		}
		res.Prune = prune
	}
	return res, nil
}

// resolveParent finds the baseline snapshot for an incremental run.
func (e *Engine) resolveParent(opts CreateOptions) (*domain.Snapshot, error) {
	if opts.ParentID != "" {
		parent, err := e.store.Find(opts.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.Deleted {
			return nil, domain.ErrSnapshotNotFound.WithDetails(opts.ParentID + " (soft-deleted)")
		}
		if parent.SourcePath != opts.SourceRoot {
			return nil, domain.ErrParentMismatch.WithDetails(opts.ParentID)
		}
		return parent, nil
	}

	snaps, err := e.store.List(opts.SourceRoot)
	if err != nil {
		return nil, err
	}
	for i := len(snaps) - 1; i >= 0; i-- {
		if !snaps[i].Deleted {
			return snaps[i], nil
		}
	}
	return nil, nil
}

// Restore materializes a snapshot's tree state into a destination directory.
func (e *Engine) Restore(ctx context.Context, opts restore.Options) (*restore.Report, error) {
	return e.restorer.Run(ctx, opts)
}

// Verify checks one snapshot's archive against its recorded digest.
func (e *Engine) Verify(ctx context.Context, snapshotID string) (*verify.Result, error) {
	return e.verifier.Snapshot(ctx, snapshotID)
}

// VerifyAll checks every live snapshot for sourcePath (empty means all).
func (e *Engine) VerifyAll(ctx context.Context, sourcePath string) ([]*verify.Result, error) {
	return e.verifier.All(ctx, sourcePath)
}

// List returns snapshots for sourcePath (empty means all), oldest first.
// Soft-deleted records are omitted unless includeDeleted is set.
func (e *Engine) List(sourcePath string, includeDeleted bool) ([]*domain.Snapshot, error) {
	snaps, err := e.store.List(sourcePath)
	if err != nil {
		return nil, err
	}
	if includeDeleted {
		return snaps, nil
	}
	live := make([]*domain.Snapshot, 0, len(snaps))
	for _, snap := range snaps {
		if !snap.Deleted {
			live = append(live, snap)
		}
	}
	return live, nil
}

// Prune applies a retention policy to the source's snapshots.
func (e *Engine) Prune(ctx context.Context, sourcePath string, policy domain.RetentionPolicy) (*retain.Report, error) {
	return e.sweeper.Sweep(ctx, sourcePath, policy)
}
