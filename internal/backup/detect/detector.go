package detect

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/Shevanio/snapback/internal/core/domain"
)

// Options configures one detection run.
type Options struct {
	// SourceRoot is the tree to scan.
	SourceRoot string

	// Exclusions is applied before any inclusion decision; a matching path
	// is skipped entirely (not recorded, not tombstoned).
	Exclusions *ExclusionSet

	// Baseline is the most recent snapshot's manifest. Nil means every
	// non-excluded file is included (first backup, or an explicit full).
	Baseline []domain.ManifestEntry

	// HashAll forces a content hash comparison even when size and mtime
	// match the baseline. Slower, but catches edits that preserve both.
	HashAll bool

	// Concurrency bounds parallel hashing. Zero means GOMAXPROCS.
	Concurrency int
}

// Result is the detector's output.
type Result struct {
	// Manifest is the new full-state manifest, sorted by relative path.
	Manifest []domain.ManifestEntry

	// Inclusion lists the relative paths whose content must go into the new
	// archive (state changed), sorted by relative path.
	Inclusion []string
}

// candidate is one source path awaiting a state decision.
type candidate struct {
	entry    domain.ManifestEntry
	baseline *domain.ManifestEntry
	needHash bool
}

// Run scans the source tree and produces the inclusion set and new manifest.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.SourceRoot == "" {
		return nil, domain.ErrMissingArgument.WithDetails("source root")
	}
	fi, err := os.Stat(opts.SourceRoot)
	if err != nil {
		return nil, domain.ErrSourceMissing.WithDetails(opts.SourceRoot).WithCause(err)
	}
	if !fi.IsDir() {
		return nil, domain.ErrInvalidArgument.WithDetails(opts.SourceRoot + " is not a directory")
	}
	excl := opts.Exclusions
	if excl == nil {
		excl = &ExclusionSet{}
	}

	baseline := make(map[string]domain.ManifestEntry)
	for _, e := range opts.Baseline {
		if e.State != domain.EntryRemoved {
			baseline[e.Path] = e
		}
	}

	candidates, err := scan(ctx, opts.SourceRoot, excl, baseline, opts.HashAll)
	if err != nil {
		return nil, err
	}
	if err := hashCandidates(ctx, opts, candidates); err != nil {
		return nil, err
	}

	var res Result
	seen := make(map[string]bool, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		seen[c.entry.Path] = true
		finalizeState(c)
		if c.entry.State == domain.EntryChanged {
			res.Inclusion = append(res.Inclusion, c.entry.Path)
		}
		res.Manifest = append(res.Manifest, c.entry)
	}

	// Tombstones: baseline paths gone from the source. Paths that now match
	// an exclusion pattern are skipped entirely rather than tombstoned.
	for p := range baseline {
		if !seen[p] && !excl.Match(p) {
			res.Manifest = append(res.Manifest, domain.ManifestEntry{
				Path:  p,
				State: domain.EntryRemoved,
			})
		}
	}

	domain.SortManifest(res.Manifest)
	// Inclusion inherits walk order; sort for deterministic archives.
	sort.Strings(res.Inclusion)
	return &res, nil
}

// scan walks the source tree collecting candidates. Symbolic links are
// recorded with their target and never followed, so cyclic links cannot
// recurse.
func scan(ctx context.Context, root string, excl *ExclusionSet, baseline map[string]domain.ManifestEntry, hashAll bool) ([]candidate, error) {
	var out []candidate
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return domain.ErrSourceUnreadable.WithDetails(p).WithCause(err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if p == root {
			return nil
		}
		relOS, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel := filepath.ToSlash(relOS)

		if d.IsDir() {
			if excl.Match(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if excl.Match(rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return domain.ErrSourceUnreadable.WithDetails(rel).WithCause(err)
		}

		if info.Mode()&os.ModeSymlink != 0 {
			target, err := os.Readlink(p)
			if err != nil {
				return domain.ErrSourceUnreadable.WithDetails(rel).WithCause(err)
			}
			c := candidate{entry: domain.ManifestEntry{
				Path:       rel,
				Kind:       domain.KindSymlink,
				ModTime:    info.ModTime().UnixMilli(),
				Mode:       uint32(info.Mode().Perm()),
				LinkTarget: target,
			}}
			if b, ok := baseline[rel]; ok {
				bc := b
				c.baseline = &bc
			}
			out = append(out, c)
			return nil
		}
		if !info.Mode().IsRegular() {
			// Sockets, fifos and devices are outside file-level backup scope.
			return nil
		}

		c := candidate{entry: domain.ManifestEntry{
			Path:    rel,
			Kind:    domain.KindFile,
			Size:    info.Size(),
			ModTime: info.ModTime().UnixMilli(),
			Mode:    uint32(info.Mode().Perm()),
		}}
		if b, ok := baseline[rel]; ok {
			bc := b
			c.baseline = &bc
		}
		c.needHash = needsHash(&c, hashAll)
		out = append(out, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// needsHash decides whether a regular file's content hash must be computed.
// Changed files are always hashed (the manifest stores their hash); baseline
// matches are hashed only in hash-all mode, as the tie-breaker.
func needsHash(c *candidate, hashAll bool) bool {
	if c.baseline == nil || c.baseline.Kind != domain.KindFile {
		return true
	}
	if c.entry.Size != c.baseline.Size || c.entry.ModTime != c.baseline.ModTime {
		return true
	}
	return hashAll
}

// hashCandidates computes content hashes with bounded parallelism. Entries
// keep their slice positions, so ordering stays deterministic regardless of
// completion order.
func hashCandidates(ctx context.Context, opts Options, candidates []candidate) error {
	limit := opts.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range candidates {
		c := &candidates[i]
		if !c.needHash || c.entry.Kind != domain.KindFile {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sum, err := hashFile(filepath.Join(opts.SourceRoot, filepath.FromSlash(c.entry.Path)))
			if err != nil {
				return err
			}
			c.entry.Hash = sum
			return nil
		})
	}
	return g.Wait()
}

// finalizeState resolves a candidate to present or changed.
func finalizeState(c *candidate) {
	b := c.baseline
	e := &c.entry

	switch {
	case b == nil:
		e.State = domain.EntryChanged
	case e.Kind != b.Kind:
		e.State = domain.EntryChanged
	case e.Kind == domain.KindSymlink:
		if e.LinkTarget != b.LinkTarget {
			e.State = domain.EntryChanged
		} else {
			e.State = domain.EntryPresent
		}
	case e.Size != b.Size || e.ModTime != b.ModTime:
		e.State = domain.EntryChanged
	case e.Hash != "" && b.Hash != "" && e.Hash != b.Hash:
		// Hash-all tie-breaker caught a content edit with matching metadata.
		e.State = domain.EntryChanged
	default:
		e.State = domain.EntryPresent
		if e.Hash == "" {
			// Carry the baseline hash so later incrementals can keep
			// comparing without re-reading the file.
			e.Hash = b.Hash
		}
	}
}
