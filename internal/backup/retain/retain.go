package retain

import (
	"context"
	"os"
	"time"

	"github.com/Shevanio/snapback/internal/core/domain"
	"github.com/Shevanio/snapback/internal/storage/metastore"
	"github.com/Shevanio/snapback/internal/telemetry/logger"
)

// Report lists the outcome of one retention sweep.
type Report struct {
	// Deleted are identifiers whose archives were removed and records
	// soft-deleted, oldest first.
	Deleted []string `json:"deleted"`

	// Retained are policy candidates kept because a live snapshot depends
	// on them as a chain ancestor.
	Retained []string `json:"retained"`
}

// Sweeper deletes expired snapshots from one destination.
type Sweeper struct {
	store *metastore.Store
	log   logger.Logger
}

// NewSweeper creates a retention sweeper over the given store.
func NewSweeper(store *metastore.Store, log logger.Logger) *Sweeper {
	return &Sweeper{store: store, log: log}
}

// Sweep applies the policy to all live snapshots for sourcePath (empty means
// every source recorded in the destination) and deletes eligible ones.
func (s *Sweeper) Sweep(ctx context.Context, sourcePath string, policy domain.RetentionPolicy) (*Report, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	report := &Report{}
	if !policy.Enabled() {
		return report, nil
	}

	all, err := s.store.List(sourcePath)
	if err != nil {
		return nil, err
	}
	live := make([]*domain.Snapshot, 0, len(all))
	for _, snap := range all {
		if !snap.Deleted {
			live = append(live, snap)
		}
	}

	candidates := selectCandidates(live, policy, time.Now())
	if len(candidates) == 0 {
		return report, nil
	}

	keep := protectAncestors(live, candidates)

	for _, snap := range live {
		if !candidates[snap.ID] {
			continue
		}
		if keep[snap.ID] {
			report.Retained = append(report.Retained, snap.ID)
			s.log.Info("retention kept snapshot with live dependents",
				"snapshot", snap.ID,
			)
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := s.deleteSnapshot(snap); err != nil {
			return report, err
		}
		report.Deleted = append(report.Deleted, snap.ID)
		s.log.Info("retention deleted snapshot",
			"snapshot", snap.ID,
			"archive", snap.ArchiveName,
		)
	}
	return report, nil
}

// selectCandidates marks live snapshots matching either policy condition.
// The input is ordered oldest-first (store ordering).
func selectCandidates(live []*domain.Snapshot, policy domain.RetentionPolicy, now time.Time) map[string]bool {
	candidates := make(map[string]bool)

	if policy.MaxAge > 0 {
		cutoff := now.Add(-policy.MaxAge).UnixMilli()
		for _, snap := range live {
			if snap.CreatedAt < cutoff {
				candidates[snap.ID] = true
			}
		}
	}
	if policy.MaxCount > 0 && len(live) > policy.MaxCount {
		for _, snap := range live[:len(live)-policy.MaxCount] {
			candidates[snap.ID] = true
		}
	}
	return candidates
}

// protectAncestors returns the candidates that must survive because a kept
// snapshot depends on them. Protection is a fixpoint: a retained candidate's
// own ancestors are protected too.
func protectAncestors(live []*domain.Snapshot, candidates map[string]bool) map[string]bool {
	index := make(map[string]*domain.Snapshot, len(live))
	for _, snap := range live {
		index[snap.ID] = snap
	}

	keep := make(map[string]bool)
	kept := func(id string) bool {
		return !candidates[id] || keep[id]
	}

	for changed := true; changed; {
		changed = false
		for _, snap := range live {
			if !kept(snap.ID) {
				continue
			}
			for parent := snap.ParentID; parent != ""; {
				p, ok := index[parent]
				if !ok {
					break
				}
				if candidates[p.ID] && !keep[p.ID] {
					keep[p.ID] = true
					changed = true
				}
				parent = p.ParentID
			}
		}
	}
	return keep
}

// deleteSnapshot removes the archive file and soft-deletes the record. The
// archive goes first: a record pointing at a missing archive is detectable,
// an orphaned archive with a live record is a silent inconsistency.
func (s *Sweeper) deleteSnapshot(snap *domain.Snapshot) error {
	path := s.store.ArchivePath(snap)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return domain.ErrWriteFailure.WithDetails(path).WithCause(err)
	}
	return s.store.MarkDeleted(snap.ID)
}
