package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Shevanio/snapback/internal/core/domain"
)

func TestAcquireRelease(t *testing.T) {
	dir := t.TempDir()

	lock, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, LockFileName)); err != nil {
		t.Fatalf("lock file missing: %v", err)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, LockFileName)); !os.IsNotExist(err) {
		t.Fatal("lock file still present after release")
	}
}

func TestAcquire_HeldLockRejected(t *testing.T) {
	dir := t.TempDir()

	lock, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lock.Release()

	// A second acquire conflicts on the flock, even within one process.
	_, err = Acquire(dir)
	if !errors.Is(err, domain.ErrDestinationLocked) {
		t.Fatalf("err = %v, want ErrDestinationLocked", err)
	}
	var derr *domain.DomainError
	if !errors.As(err, &derr) || !strings.Contains(derr.Details, fmt.Sprintf("pid %d", os.Getpid())) {
		t.Fatalf("details = %v, want holder pid", err)
	}
}

func TestAcquire_ReacquireAfterRelease(t *testing.T) {
	dir := t.TempDir()

	lock, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	again, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	again.Release()
}

func TestAcquire_LeftoverFileFromDeadHolder(t *testing.T) {
	dir := t.TempDir()

	// A leftover file carries no flock, so its content never blocks a new
	// acquire. Even a live pid inside is not authoritative.
	path := filepath.Join(dir, LockFileName)
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0640); err != nil {
		t.Fatalf("seed leftover lock: %v", err)
	}

	lock, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire over leftover file: %v", err)
	}
	defer lock.Release()
}

func TestAcquire_LeftoverGarbageFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, LockFileName)
	if err := os.WriteFile(path, []byte("not a pid"), 0640); err != nil {
		t.Fatalf("seed garbage lock: %v", err)
	}

	lock, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire over garbage file: %v", err)
	}
	defer lock.Release()
}

func TestAcquire_CreatesDestination(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "new", "dest")

	lock, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer lock.Release()

	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		t.Fatalf("destination not created: %v", err)
	}
}
