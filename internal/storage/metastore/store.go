package metastore

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/Shevanio/snapback/internal/core/domain"
)

// Store is the snapshot metadata store for one destination directory.
//
// The on-disk form is an append-only JSONL log; the in-memory form is an
// explicit identifier index so chain traversal never relies on object
// back-pointers.
type Store struct {
	dir  string
	path string

	mu    sync.Mutex
	index map[string]*domain.Snapshot
	order []string // identifiers in append order
}

// Open opens (or initializes) the metadata store for a destination directory.
// An absent log file is an empty history, not an error.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, domain.ErrMissingArgument.WithDetails("destination directory")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, domain.ErrWriteFailure.WithDetails(dir).WithCause(err)
	}

	s := &Store{
		dir:   dir,
		path:  filepath.Join(dir, MetaFileName),
		index: make(map[string]*domain.Snapshot),
	}
	if err := s.replay(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the destination directory the store belongs to.
func (s *Store) Dir() string {
	return s.dir
}

// replay rebuilds the in-memory index from the log file.
//
// Every acknowledged append ends in a newline, so a final line without one
// is a torn append whose caller already saw a failure. The fragment is
// truncated away; otherwise the next append would glue onto it and that
// record would be unparsable on every later replay.
func (s *Store) replay() error {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("metastore: open log: %w", err)
	}

	r := bufio.NewReaderSize(f, 1<<20)
	var clean int64 // offset just past the last newline-terminated line
	torn := false
	for {
		line, rerr := r.ReadBytes('\n')
		if rerr == io.EOF {
			torn = len(line) > 0
			break
		}
		if rerr != nil {
			f.Close()
			return fmt.Errorf("metastore: read log: %w", rerr)
		}
		clean += int64(len(line))
		line = bytes.TrimSuffix(line, []byte{'\n'})
		if len(line) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			f.Close()
			return fmt.Errorf("metastore: corrupt log record: %w", err)
		}
		s.apply(rec)
	}
	f.Close()

	if torn {
		if err := os.Truncate(s.path, clean); err != nil {
			return domain.ErrWriteFailure.WithDetails(s.path).WithCause(err)
		}
	}
	return nil
}

func (s *Store) apply(rec record) {
	switch rec.Kind {
	case recordSnapshot:
		if rec.Snapshot == nil {
			return
		}
		snap := *rec.Snapshot
		if _, ok := s.index[snap.ID]; !ok {
			s.order = append(s.order, snap.ID)
		}
		s.index[snap.ID] = &snap
	case recordDeleted:
		if snap, ok := s.index[rec.SnapshotID]; ok {
			snap.Deleted = true
		}
	}
}

// appendRecord writes one log line durably. A failed write is truncated back
// to the previous length so a partial record never precedes a later append.
func (s *Store) appendRecord(rec record) error {
	b, err := rec.marshal()
	if err != nil {
		return fmt.Errorf("metastore: marshal record: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return domain.ErrWriteFailure.WithDetails(s.path).WithCause(err)
	}
	var prev int64
	if st, err := f.Stat(); err == nil {
		prev = st.Size()
	}
	if _, err := f.Write(b); err != nil {
		f.Truncate(prev)
		f.Close()
		return domain.ErrWriteFailure.WithDetails(s.path).WithCause(err)
	}
	if err := f.Sync(); err != nil {
		f.Truncate(prev)
		f.Close()
		return domain.ErrWriteFailure.WithDetails(s.path).WithCause(err)
	}
	return f.Close()
}

// Append records a newly created snapshot.
//
// It fails with ErrDuplicateIdentifier if the identifier already exists. For
// incremental snapshots the parent must exist, must not be soft-deleted, and
// must cover the same source path.
func (s *Store) Append(snap *domain.Snapshot) error {
	if snap == nil {
		return domain.ErrMissingArgument.WithDetails("snapshot")
	}
	if err := snap.Validate(); err != nil {
		return err
	}
	if err := domain.ValidateManifest(snap.Manifest); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[snap.ID]; ok {
		return domain.ErrDuplicateIdentifier.WithDetails(snap.ID)
	}
	if snap.ParentID != "" {
		parent, ok := s.index[snap.ParentID]
		if !ok {
			return domain.ErrSnapshotNotFound.WithDetails("parent " + snap.ParentID)
		}
		if parent.Deleted {
			return domain.ErrBrokenChain.WithDetails("parent " + snap.ParentID + " is deleted")
		}
		if parent.SourcePath != snap.SourcePath {
			return domain.ErrParentMismatch.WithDetails(snap.ParentID)
		}
	}

	stored := *snap
	if err := s.appendRecord(record{
		Kind:     recordSnapshot,
		At:       time.Now().UnixMilli(),
		Snapshot: &stored,
	}); err != nil {
		return err
	}

	s.index[stored.ID] = &stored
	s.order = append(s.order, stored.ID)
	return nil
}

// Find returns the snapshot with the given identifier.
func (s *Store) Find(id string) (*domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.index[id]
	if !ok {
		return nil, domain.ErrSnapshotNotFound.WithDetails(id)
	}
	cp := *snap
	return &cp, nil
}

// Chain resolves the ordered sequence [root .. id] by following parent links.
//
// It fails with ErrSnapshotNotFound if the target is absent or soft-deleted,
// and with ErrBrokenChain if any ancestor is absent or soft-deleted.
func (s *Store) Chain(id string) ([]*domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.index[id]
	if !ok {
		return nil, domain.ErrSnapshotNotFound.WithDetails(id)
	}
	if target.Deleted {
		return nil, domain.ErrSnapshotNotFound.WithDetails(id + " (soft-deleted)")
	}

	var chain []*domain.Snapshot
	seen := make(map[string]bool)
	cur := target
	for {
		if seen[cur.ID] {
			return nil, domain.ErrBrokenChain.WithDetails("cycle at " + cur.ID)
		}
		seen[cur.ID] = true
		cp := *cur
		chain = append(chain, &cp)
		if cur.ParentID == "" {
			break
		}
		parent, ok := s.index[cur.ParentID]
		if !ok {
			return nil, domain.ErrBrokenChain.WithDetails("missing ancestor " + cur.ParentID)
		}
		if parent.Deleted {
			return nil, domain.ErrBrokenChain.WithDetails("deleted ancestor " + parent.ID)
		}
		cur = parent
	}

	// Reverse into root-first order.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// List returns snapshots ordered by creation timestamp ascending. When
// sourcePath is non-empty only snapshots for that source tree are returned.
// Soft-deleted records are included; callers filter on Deleted as needed.
func (s *Store) List(sourcePath string) ([]*domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.Snapshot, 0, len(s.order))
	for _, id := range s.order {
		snap := s.index[id]
		if sourcePath != "" && snap.SourcePath != sourcePath {
			continue
		}
		cp := *snap
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt < out[j].CreatedAt
	})
	return out, nil
}

// MarkDeleted records the soft-delete marker for a snapshot. Marking an
// already-deleted snapshot is a no-op.
func (s *Store) MarkDeleted(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.index[id]
	if !ok {
		return domain.ErrSnapshotNotFound.WithDetails(id)
	}
	if snap.Deleted {
		return nil
	}
	if err := s.appendRecord(record{
		Kind:       recordDeleted,
		At:         time.Now().UnixMilli(),
		SnapshotID: id,
	}); err != nil {
		return err
	}
	snap.Deleted = true
	return nil
}

// ArchivePath resolves the absolute archive path for a snapshot record.
func (s *Store) ArchivePath(snap *domain.Snapshot) string {
	return filepath.Join(s.dir, snap.ArchiveName)
}
