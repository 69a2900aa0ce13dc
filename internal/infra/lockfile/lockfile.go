// Package lockfile provides an advisory per-destination lock so two
// invocations never mutate the same backup destination concurrently.
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/Shevanio/snapback/internal/core/domain"
)

// LockFileName is the lock file created inside the destination directory.
const LockFileName = ".snapback.lock"

// Lock is a held destination lock.
type Lock struct {
	f    *os.File
	path string
}

// Acquire takes the destination's advisory lock.
//
// Exclusion is a kernel flock on the lock file, so a crashed holder releases
// it automatically and a file left behind by a dead process is never mistaken
// for a held lock. A lock held by a running process yields
// ErrDestinationLocked naming the holder's recorded pid.
func Acquire(destDir string) (*Lock, error) {
	if err := os.MkdirAll(destDir, 0750); err != nil {
		return nil, domain.ErrWriteFailure.WithDetails(destDir).WithCause(err)
	}
	path := filepath.Join(destDir, LockFileName)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0640)
	if err != nil {
		return nil, domain.ErrWriteFailure.WithDetails(path).WithCause(err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		if err == syscall.EWOULDBLOCK {
			detail := path
			if pid, rerr := readHolder(path); rerr == nil {
				detail = fmt.Sprintf("%s held by pid %d", path, pid)
			}
			return nil, domain.ErrDestinationLocked.WithDetails(detail)
		}
		return nil, domain.ErrWriteFailure.WithDetails(path).WithCause(err)
	}

	// The recorded pid is diagnostic only; the flock is what excludes
	// other holders.
	if err := f.Truncate(0); err == nil {
		fmt.Fprintf(f, "%d\n", os.Getpid())
	}
	return &Lock{f: f, path: path}, nil
}

// Release drops the lock. Safe to call once per acquired lock.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		l.f.Close()
		return domain.ErrWriteFailure.WithDetails(l.path).WithCause(err)
	}
	return l.f.Close()
}

func readHolder(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}
