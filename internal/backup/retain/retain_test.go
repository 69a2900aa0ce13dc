package retain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Shevanio/snapback/internal/core/domain"
	"github.com/Shevanio/snapback/internal/storage/metastore"
	"github.com/Shevanio/snapback/internal/telemetry/logger"
)

type fixture struct {
	store *metastore.Store
	dir   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := metastore.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return &fixture{store: store, dir: dir}
}

// addSnapshot appends a snapshot with a real (empty) archive file on disk.
func (f *fixture) addSnapshot(t *testing.T, n int, parent string, age time.Duration) string {
	t.Helper()
	id := fmt.Sprintf("bk_%026d", n)
	typ := domain.BackupFull
	if parent != "" {
		typ = domain.BackupIncremental
	}
	name := domain.ArchiveFileName(id, typ, domain.CompressionNone)
	if err := os.WriteFile(filepath.Join(f.dir, name), nil, 0640); err != nil {
		t.Fatalf("write archive: %v", err)
	}
	snap := &domain.Snapshot{
		ID:          id,
		Type:        typ,
		SourcePath:  "/src",
		ArchiveName: name,
		CreatedAt:   time.Now().Add(-age).UnixMilli(),
		ParentID:    parent,
		Compression: domain.CompressionNone,
		Digest:      "d",
	}
	if err := f.store.Append(snap); err != nil {
		t.Fatalf("Append(%s): %v", id, err)
	}
	return id
}

func (f *fixture) archiveExists(id string, typ domain.BackupType) bool {
	name := domain.ArchiveFileName(id, typ, domain.CompressionNone)
	_, err := os.Stat(filepath.Join(f.dir, name))
	return err == nil
}

func sweep(t *testing.T, f *fixture, policy domain.RetentionPolicy) *Report {
	t.Helper()
	rep, err := NewSweeper(f.store, logger.Nop()).Sweep(context.Background(), "/src", policy)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	return rep
}

func TestSweep_MaxCount(t *testing.T) {
	f := newFixture(t)
	// Five independent full snapshots, oldest first.
	for i := 1; i <= 5; i++ {
		f.addSnapshot(t, i, "", time.Duration(6-i)*time.Hour)
	}

	rep := sweep(t, f, domain.RetentionPolicy{MaxCount: 3})

	if len(rep.Deleted) != 2 {
		t.Fatalf("Deleted = %v, want the oldest 2", rep.Deleted)
	}
	if rep.Deleted[0] != "bk_"+fmt.Sprintf("%026d", 1) || rep.Deleted[1] != "bk_"+fmt.Sprintf("%026d", 2) {
		t.Fatalf("Deleted = %v, want oldest-first", rep.Deleted)
	}

	live := 0
	all, _ := f.store.List("/src")
	for _, s := range all {
		if !s.Deleted {
			live++
		}
	}
	if live != 3 {
		t.Fatalf("live snapshots = %d, want 3", live)
	}
	if f.archiveExists(rep.Deleted[0], domain.BackupFull) {
		t.Fatal("deleted snapshot's archive still on disk")
	}
}

func TestSweep_MaxAge(t *testing.T) {
	f := newFixture(t)
	old := f.addSnapshot(t, 1, "", 72*time.Hour)
	recent := f.addSnapshot(t, 2, "", time.Hour)

	rep := sweep(t, f, domain.RetentionPolicy{MaxAge: 24 * time.Hour})

	if len(rep.Deleted) != 1 || rep.Deleted[0] != old {
		t.Fatalf("Deleted = %v, want [%s]", rep.Deleted, old)
	}
	if got, _ := f.store.Find(recent); got.Deleted {
		t.Fatal("recent snapshot was deleted")
	}
}

func TestSweep_UnionOfConditions(t *testing.T) {
	f := newFixture(t)
	// Old enough for max_age but within max_count: still a candidate,
	// because the policy is a union.
	f.addSnapshot(t, 1, "", 72*time.Hour)
	f.addSnapshot(t, 2, "", time.Hour)

	rep := sweep(t, f, domain.RetentionPolicy{MaxAge: 24 * time.Hour, MaxCount: 5})
	if len(rep.Deleted) != 1 {
		t.Fatalf("Deleted = %v, want 1 (union, not intersection)", rep.Deleted)
	}
}

func TestSweep_ProtectsChainAncestors(t *testing.T) {
	f := newFixture(t)
	root := f.addSnapshot(t, 1, "", 96*time.Hour)
	mid := f.addSnapshot(t, 2, root, 72*time.Hour)
	tip := f.addSnapshot(t, 3, mid, time.Hour)

	rep := sweep(t, f, domain.RetentionPolicy{MaxAge: 24 * time.Hour})

	if len(rep.Deleted) != 0 {
		t.Fatalf("Deleted = %v, want none (all are ancestors of the live tip)", rep.Deleted)
	}
	if len(rep.Retained) != 2 {
		t.Fatalf("Retained = %v, want root and mid", rep.Retained)
	}
	for _, id := range []string{root, mid} {
		if got, _ := f.store.Find(id); got.Deleted {
			t.Fatalf("ancestor %s was deleted", id)
		}
	}
	_ = tip
}

func TestSweep_DeletesWholeExpiredChain(t *testing.T) {
	f := newFixture(t)
	root := f.addSnapshot(t, 1, "", 96*time.Hour)
	tip := f.addSnapshot(t, 2, root, 90*time.Hour)
	f.addSnapshot(t, 3, "", time.Hour)

	rep := sweep(t, f, domain.RetentionPolicy{MaxAge: 24 * time.Hour})

	// Both chain members are expired and nothing live depends on them.
	if len(rep.Deleted) != 2 {
		t.Fatalf("Deleted = %v, want both chain members", rep.Deleted)
	}
	if rep.Deleted[0] != root || rep.Deleted[1] != tip {
		t.Fatalf("Deleted = %v, want oldest-first [%s %s]", rep.Deleted, root, tip)
	}
}

func TestSweep_DisabledPolicyIsNoop(t *testing.T) {
	f := newFixture(t)
	f.addSnapshot(t, 1, "", 500*time.Hour)

	rep := sweep(t, f, domain.RetentionPolicy{})
	if len(rep.Deleted) != 0 || len(rep.Retained) != 0 {
		t.Fatalf("disabled policy acted: %+v", rep)
	}
}

func TestSweep_IgnoresAlreadyDeleted(t *testing.T) {
	f := newFixture(t)
	old := f.addSnapshot(t, 1, "", 72*time.Hour)
	if err := f.store.MarkDeleted(old); err != nil {
		t.Fatalf("MarkDeleted: %v", err)
	}
	f.addSnapshot(t, 2, "", time.Hour)

	rep := sweep(t, f, domain.RetentionPolicy{MaxAge: 24 * time.Hour})
	if len(rep.Deleted) != 0 {
		t.Fatalf("Deleted = %v, want none", rep.Deleted)
	}
}

func TestSweep_MissingArchiveTolerated(t *testing.T) {
	f := newFixture(t)
	old := f.addSnapshot(t, 1, "", 72*time.Hour)
	f.addSnapshot(t, 2, "", time.Hour)

	// Archive already gone from disk; the sweep still soft-deletes.
	name := domain.ArchiveFileName(old, domain.BackupFull, domain.CompressionNone)
	if err := os.Remove(filepath.Join(f.dir, name)); err != nil {
		t.Fatalf("remove archive: %v", err)
	}

	rep := sweep(t, f, domain.RetentionPolicy{MaxAge: 24 * time.Hour})
	if len(rep.Deleted) != 1 {
		t.Fatalf("Deleted = %v, want 1", rep.Deleted)
	}
}
