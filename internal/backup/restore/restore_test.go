package restore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/Shevanio/snapback/internal/core/domain"
	"github.com/Shevanio/snapback/internal/storage/archive"
	"github.com/Shevanio/snapback/internal/storage/metastore"
	"github.com/Shevanio/snapback/internal/telemetry/logger"
)

// layer is one chain step: content changed in this snapshot plus paths
// removed since the parent.
type layer struct {
	changed map[string]string
	removed []string
}

type fixture struct {
	t     *testing.T
	store *metastore.Store
	dir   string
	seq   int
	last  string
	state map[string]string // live paths after the latest layer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := metastore.Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return &fixture{t: t, store: store, dir: dir, state: map[string]string{}}
}

// addLayer builds a real archive for the layer and appends its snapshot.
func (f *fixture) addLayer(l layer) string {
	f.t.Helper()
	f.seq++
	id := fmt.Sprintf("bk_%026d", f.seq)

	typ := domain.BackupFull
	if f.last != "" {
		typ = domain.BackupIncremental
	}
	name := domain.ArchiveFileName(id, typ, domain.CompressionGzip)

	// Stage the changed files and archive them.
	stage := f.t.TempDir()
	var paths []string
	for rel, content := range l.changed {
		abs := filepath.Join(stage, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0750); err != nil {
			f.t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(abs, []byte(content), 0640); err != nil {
			f.t.Fatalf("stage file: %v", err)
		}
		paths = append(paths, rel)
	}
	res, err := archive.Build(context.Background(), archive.BuildRequest{
		SourceRoot:  stage,
		Paths:       paths,
		DestDir:     f.dir,
		ArchiveName: name,
		Compression: domain.CompressionGzip,
	})
	if err != nil {
		f.t.Fatalf("Build: %v", err)
	}

	// Full-state manifest: carried-forward entries, this layer's changes,
	// and tombstones for the removals.
	for rel, content := range l.changed {
		f.state[rel] = content
	}
	var manifest []domain.ManifestEntry
	for rel := range f.state {
		state := domain.EntryPresent
		if _, ok := l.changed[rel]; ok {
			state = domain.EntryChanged
		}
		manifest = append(manifest, domain.ManifestEntry{
			Path: rel, State: state, Kind: domain.KindFile,
		})
	}
	for _, rel := range l.removed {
		delete(f.state, rel)
		manifest = append(manifest, domain.ManifestEntry{Path: rel, State: domain.EntryRemoved})
	}
	domain.SortManifest(manifest)

	snap := &domain.Snapshot{
		ID:          id,
		Type:        typ,
		SourcePath:  "/src",
		ArchiveName: name,
		CreatedAt:   time.Now().UnixMilli(),
		ParentID:    f.last,
		Manifest:    manifest,
		Digest:      res.Digest,
		Compression: domain.CompressionGzip,
	}
	if err := f.store.Append(snap); err != nil {
		f.t.Fatalf("Append: %v", err)
	}
	f.last = id
	return id
}

func (f *fixture) restore(id, dest string, overwrite bool) (*Report, error) {
	f.t.Helper()
	return NewEngine(f.store, logger.Nop()).Run(context.Background(), Options{
		SnapshotID: id,
		DestRoot:   dest,
		Overwrite:  overwrite,
	})
}

// treeContents reads every regular file under root keyed by slash path.
func treeContents(t *testing.T, root string) map[string]string {
	t.Helper()
	got := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		got[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	return got
}

func TestRun_FullSnapshot(t *testing.T) {
	f := newFixture(t)
	id := f.addLayer(layer{changed: map[string]string{
		"a.txt":     "alpha",
		"sub/b.txt": "beta",
	}})

	dest := filepath.Join(t.TempDir(), "out")
	rep, err := f.restore(id, dest, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := map[string]string{"a.txt": "alpha", "sub/b.txt": "beta"}
	got := treeContents(t, dest)
	if len(got) != len(want) {
		t.Fatalf("restored tree = %v, want %v", got, want)
	}
	for rel, content := range want {
		if got[rel] != content {
			t.Fatalf("%s = %q, want %q", rel, got[rel], content)
		}
	}
	if len(rep.Layers) != 1 || rep.Layers[0] != id {
		t.Fatalf("Layers = %v", rep.Layers)
	}
}

func TestRun_ChainReplay(t *testing.T) {
	f := newFixture(t)
	f.addLayer(layer{changed: map[string]string{"1.txt": "v1"}})
	f.addLayer(layer{changed: map[string]string{"1.txt": "v2", "2.txt": "two"}})
	tip := f.addLayer(layer{removed: []string{"1.txt"}})

	dest := filepath.Join(t.TempDir(), "out")
	rep, err := f.restore(tip, dest, false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := treeContents(t, dest)
	if len(got) != 1 || got["2.txt"] != "two" {
		t.Fatalf("restored tree = %v, want only 2.txt", got)
	}
	if len(rep.Layers) != 3 {
		t.Fatalf("Layers = %v, want the full chain", rep.Layers)
	}
	if rep.Removed != 1 {
		t.Fatalf("Removed = %d, want 1", rep.Removed)
	}
}

func TestRun_IntermediateSnapshot(t *testing.T) {
	f := newFixture(t)
	f.addLayer(layer{changed: map[string]string{"1.txt": "v1"}})
	mid := f.addLayer(layer{changed: map[string]string{"1.txt": "v2", "2.txt": "two"}})
	f.addLayer(layer{removed: []string{"1.txt"}})

	dest := filepath.Join(t.TempDir(), "out")
	if _, err := f.restore(mid, dest, false); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := treeContents(t, dest)
	if got["1.txt"] != "v2" || got["2.txt"] != "two" {
		t.Fatalf("restored tree = %v", got)
	}
}

func TestRun_NonEmptyDestinationRejected(t *testing.T) {
	f := newFixture(t)
	id := f.addLayer(layer{changed: map[string]string{"a.txt": "alpha"}})

	dest := t.TempDir()
	if err := os.WriteFile(filepath.Join(dest, "existing"), []byte("x"), 0640); err != nil {
		t.Fatalf("seed dest: %v", err)
	}
	_, err := f.restore(id, dest, false)
	if !errors.Is(err, domain.ErrDestinationNotEmpty) {
		t.Fatalf("err = %v, want ErrDestinationNotEmpty", err)
	}
	// Nothing must have been written.
	if got := treeContents(t, dest); len(got) != 1 {
		t.Fatalf("destination modified: %v", got)
	}
}

func TestRun_OverwriteOptIn(t *testing.T) {
	f := newFixture(t)
	id := f.addLayer(layer{changed: map[string]string{"a.txt": "alpha"}})

	dest := t.TempDir()
	if err := os.WriteFile(filepath.Join(dest, "a.txt"), []byte("stale"), 0640); err != nil {
		t.Fatalf("seed dest: %v", err)
	}
	if _, err := f.restore(id, dest, true); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := treeContents(t, dest)
	if got["a.txt"] != "alpha" {
		t.Fatalf("a.txt = %q, want overwritten", got["a.txt"])
	}
}

func TestRun_UnknownSnapshot(t *testing.T) {
	f := newFixture(t)
	_, err := f.restore("bk_00000000000000000000000000", t.TempDir(), false)
	if !errors.Is(err, domain.ErrSnapshotNotFound) {
		t.Fatalf("err = %v, want ErrSnapshotNotFound", err)
	}
}

func TestRun_BrokenChainFailsBeforeWriting(t *testing.T) {
	f := newFixture(t)
	root := f.addLayer(layer{changed: map[string]string{"1.txt": "v1"}})
	tip := f.addLayer(layer{changed: map[string]string{"2.txt": "two"}})
	if err := f.store.MarkDeleted(root); err != nil {
		t.Fatalf("MarkDeleted: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "out")
	_, err := f.restore(tip, dest, false)
	if !errors.Is(err, domain.ErrBrokenChain) {
		t.Fatalf("err = %v, want ErrBrokenChain", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatal("destination was created despite broken chain")
	}
}

func TestRun_MissingLayerArchiveReportsLastApplied(t *testing.T) {
	f := newFixture(t)
	f.addLayer(layer{changed: map[string]string{"1.txt": "v1"}})
	mid := f.addLayer(layer{changed: map[string]string{"2.txt": "two"}})
	tip := f.addLayer(layer{changed: map[string]string{"3.txt": "three"}})

	// Corrupt the chain on disk: the second layer's archive vanishes.
	name := domain.ArchiveFileName(mid, domain.BackupIncremental, domain.CompressionGzip)
	if err := os.Remove(filepath.Join(f.dir, name)); err != nil {
		t.Fatalf("remove archive: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "out")
	rep, err := f.restore(tip, dest, false)
	if !errors.Is(err, domain.ErrRestoreFailed) {
		t.Fatalf("err = %v, want ErrRestoreFailed", err)
	}
	if !errors.Is(err, domain.ErrArchiveMissing) {
		t.Fatalf("err = %v, want wrapped ErrArchiveMissing", err)
	}
	var derr *domain.DomainError
	if !errors.As(err, &derr) {
		t.Fatalf("err = %T, want DomainError", err)
	}
	if want := "last applied layer " + rep.Layers[0]; derr.Details != want {
		t.Fatalf("Details = %q, want %q", derr.Details, want)
	}
	// The first layer is on disk in the destination.
	sort.Strings(rep.Layers)
	if len(rep.Layers) != 1 {
		t.Fatalf("Layers = %v, want exactly the first layer", rep.Layers)
	}
}
