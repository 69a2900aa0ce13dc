package archive

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/Shevanio/snapback/internal/core/domain"
)

// tempSuffix marks in-progress containers inside the destination directory.
const tempSuffix = ".tmp"

// BuildRequest describes one container build.
type BuildRequest struct {
	// SourceRoot is the backed-up tree's root directory.
	SourceRoot string

	// Paths are the slash-separated relative paths to include, in any order;
	// the builder archives them sorted for deterministic output.
	Paths []string

	// DestDir is the destination directory; the temporary file lives there
	// too so the final rename never crosses filesystems.
	DestDir string

	// ArchiveName is the final container filename inside DestDir.
	ArchiveName string

	Compression domain.CompressionType

	// BandwidthLimit throttles container writes, in bytes per second.
	// Zero means unlimited.
	BandwidthLimit int64
}

// BuildResult reports a finished container.
type BuildResult struct {
	ArchivePath      string
	Digest           string // SHA-256 over the container's bytes, hex
	UncompressedSize int64
}

// Build packages the requested paths into a compressed container.
//
// On any failure (or context cancellation) the temporary file is removed and
// no container appears at the final path.
func Build(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	if err := os.MkdirAll(req.DestDir, 0750); err != nil {
		return nil, domain.ErrWriteFailure.WithDetails(req.DestDir).WithCause(err)
	}

	paths := append([]string(nil), req.Paths...)
	sort.Strings(paths)

	tempPath := filepath.Join(req.DestDir, req.ArchiveName+tempSuffix)
	f, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0640)
	if err != nil {
		return nil, domain.ErrWriteFailure.WithDetails(tempPath).WithCause(err)
	}
	defer os.Remove(tempPath)

	hash := sha256.New()
	var sink io.Writer = io.MultiWriter(f, hash)
	if req.BandwidthLimit > 0 {
		sink = newLimitedWriter(ctx, sink, req.BandwidthLimit)
	}

	comp, err := newCompressor(sink, req.Compression)
	if err != nil {
		f.Close()
		return nil, err
	}
	tw := tar.NewWriter(comp)

	var uncompressed int64
	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			f.Close()
			return nil, err
		}
		n, err := addEntry(tw, req.SourceRoot, rel)
		if err != nil {
			f.Close()
			return nil, err
		}
		uncompressed += n
	}

	if err := tw.Close(); err != nil {
		f.Close()
		return nil, domain.ErrWriteFailure.WithDetails(tempPath).WithCause(err)
	}
	if err := comp.Close(); err != nil {
		f.Close()
		return nil, domain.ErrWriteFailure.WithDetails(tempPath).WithCause(err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return nil, domain.ErrWriteFailure.WithDetails(tempPath).WithCause(err)
	}
	if err := f.Close(); err != nil {
		return nil, domain.ErrWriteFailure.WithDetails(tempPath).WithCause(err)
	}

	finalPath := filepath.Join(req.DestDir, req.ArchiveName)
	if err := os.Rename(tempPath, finalPath); err != nil {
		return nil, domain.ErrWriteFailure.WithDetails(finalPath).WithCause(err)
	}

	return &BuildResult{
		ArchivePath:      finalPath,
		Digest:           hex.EncodeToString(hash.Sum(nil)),
		UncompressedSize: uncompressed,
	}, nil
}

// addEntry writes one source path into the tar stream and returns its
// uncompressed size contribution.
func addEntry(tw *tar.Writer, root, rel string) (int64, error) {
	abs := filepath.Join(root, filepath.FromSlash(rel))
	fi, err := os.Lstat(abs)
	if err != nil {
		return 0, domain.ErrSourceUnreadable.WithDetails(rel).WithCause(err)
	}

	if fi.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(abs)
		if err != nil {
			return 0, domain.ErrSourceUnreadable.WithDetails(rel).WithCause(err)
		}
		hdr := &tar.Header{
			Typeflag: tar.TypeSymlink,
			Name:     rel,
			Linkname: target,
			Mode:     int64(fi.Mode().Perm()),
			ModTime:  fi.ModTime(),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return 0, domain.ErrWriteFailure.WithDetails(rel).WithCause(err)
		}
		return 0, nil
	}

	if !fi.Mode().IsRegular() {
		return 0, domain.ErrSourceUnreadable.WithDetails(rel + ": not a regular file")
	}

	src, err := os.Open(abs)
	if err != nil {
		return 0, domain.ErrSourceUnreadable.WithDetails(rel).WithCause(err)
	}
	defer src.Close()

	return writeFileEntry(tw, rel, fi, src)
}

// writeFileEntry streams one regular file into the tar. A copy shorter than
// the stat size means the file shrank mid-build; the tar entry is short and
// unusable, so the failure is charged to the source, not the destination.
func writeFileEntry(tw *tar.Writer, rel string, fi os.FileInfo, src io.Reader) (int64, error) {
	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     rel,
		Size:     fi.Size(),
		Mode:     int64(fi.Mode().Perm()),
		ModTime:  fi.ModTime(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return 0, domain.ErrWriteFailure.WithDetails(rel).WithCause(err)
	}
	n, err := io.Copy(tw, src)
	if err != nil {
		return n, domain.ErrSourceUnreadable.WithDetails(rel).WithCause(err)
	}
	if n != hdr.Size {
		return n, domain.ErrSourceUnreadable.WithDetails(
			fmt.Sprintf("%s: read %d of %d bytes", rel, n, hdr.Size))
	}
	return n, nil
}
