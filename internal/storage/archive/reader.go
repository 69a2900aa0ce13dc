package archive

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Shevanio/snapback/internal/core/domain"
)

// Extract applies a container's members onto destRoot, overwriting any prior
// value at the same relative path. The decompressor is selected from the
// recorded compression algorithm, never re-detected.
func Extract(ctx context.Context, archivePath string, compression domain.CompressionType, destRoot string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ErrArchiveMissing.WithDetails(archivePath)
		}
		return err
	}
	defer f.Close()

	dec, err := newDecompressor(f, compression)
	if err != nil {
		return err
	}
	defer dec.Close()

	tr := tar.NewReader(dec)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := extractMember(tr, hdr, destRoot); err != nil {
			return err
		}
	}
}

// extractMember writes one tar member to disk, preserving mode and mtime.
func extractMember(tr *tar.Reader, hdr *tar.Header, destRoot string) error {
	rel, err := sanitizePath(hdr.Name)
	if err != nil {
		return err
	}
	abs := filepath.Join(destRoot, filepath.FromSlash(rel))

	if err := os.MkdirAll(filepath.Dir(abs), 0750); err != nil {
		return domain.ErrWriteFailure.WithDetails(abs).WithCause(err)
	}

	switch hdr.Typeflag {
	case tar.TypeSymlink:
		// A later chain layer may replace a file with a link or vice versa;
		// drop whatever is there first.
		if err := os.RemoveAll(abs); err != nil {
			return domain.ErrWriteFailure.WithDetails(abs).WithCause(err)
		}
		if err := os.Symlink(hdr.Linkname, abs); err != nil {
			return domain.ErrWriteFailure.WithDetails(abs).WithCause(err)
		}
		return nil

	case tar.TypeReg:
		if fi, err := os.Lstat(abs); err == nil && !fi.Mode().IsRegular() {
			if err := os.RemoveAll(abs); err != nil {
				return domain.ErrWriteFailure.WithDetails(abs).WithCause(err)
			}
		}
		out, err := os.OpenFile(abs, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode).Perm())
		if err != nil {
			return domain.ErrWriteFailure.WithDetails(abs).WithCause(err)
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return domain.ErrWriteFailure.WithDetails(abs).WithCause(err)
		}
		if err := out.Close(); err != nil {
			return domain.ErrWriteFailure.WithDetails(abs).WithCause(err)
		}
		if err := os.Chmod(abs, os.FileMode(hdr.Mode).Perm()); err != nil {
			return domain.ErrWriteFailure.WithDetails(abs).WithCause(err)
		}
		if err := os.Chtimes(abs, hdr.ModTime, hdr.ModTime); err != nil {
			return domain.ErrWriteFailure.WithDetails(abs).WithCause(err)
		}
		return nil

	default:
		// Containers built by this engine hold only files and symlinks.
		return domain.ErrInvalidArgument.WithDetails("unexpected tar entry type for " + rel)
	}
}

// sanitizePath rejects members that would escape the restore root.
func sanitizePath(name string) (string, error) {
	rel := filepath.ToSlash(filepath.Clean(filepath.FromSlash(name)))
	if rel == "." || rel == "" || strings.HasPrefix(rel, "../") || rel == ".." || filepath.IsAbs(name) {
		return "", domain.ErrInvalidArgument.WithDetails("unsafe archive member path " + name)
	}
	return rel, nil
}
