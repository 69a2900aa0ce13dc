package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	e := NewDomainError("BK-TEST-0001", "something failed")
	if got := e.Error(); got != "[BK-TEST-0001] something failed" {
		t.Fatalf("Error() = %q", got)
	}

	withDetails := e.WithDetails("extra context")
	if !strings.Contains(withDetails.Error(), "extra context") {
		t.Fatalf("Error() = %q, want details included", withDetails.Error())
	}
}

func TestDomainError_Is(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", ErrSnapshotNotFound.WithDetails("bk_x"))
	if !errors.Is(wrapped, ErrSnapshotNotFound) {
		t.Fatal("errors.Is should match by code through wrapping")
	}
	if errors.Is(wrapped, ErrBrokenChain) {
		t.Fatal("errors.Is matched a different code")
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	e := ErrWriteFailure.WithCause(cause)
	if !errors.Is(e, cause) {
		t.Fatal("cause should be reachable via errors.Is")
	}
}

func TestIsDomainError(t *testing.T) {
	if !IsDomainError(ErrDuplicateIdentifier, "BK-STOR-4090") {
		t.Fatal("IsDomainError with matching code")
	}
	if IsDomainError(ErrDuplicateIdentifier, "BK-STOR-4040") {
		t.Fatal("IsDomainError with non-matching code")
	}
	if !IsDomainError(ErrDuplicateIdentifier, "") {
		t.Fatal("IsDomainError with empty code should match any DomainError")
	}
	if IsDomainError(errors.New("plain"), "") {
		t.Fatal("plain error is not a DomainError")
	}
}

func TestGetErrorCode(t *testing.T) {
	if got := GetErrorCode(ErrArchiveMissing); got != "BK-ARCH-4040" {
		t.Fatalf("GetErrorCode = %q", got)
	}
	if got := GetErrorCode(errors.New("plain")); got != "" {
		t.Fatalf("GetErrorCode on plain error = %q, want empty", got)
	}
}
