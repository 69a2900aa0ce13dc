// Package domain defines the core domain models for snapback.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a backup engine error with a structured error code.
type DomainError struct {
	Code    string // Error code (e.g., "BK-STOR-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Metadata Store Errors (STOR)
// ============================================================================

var (
	// ErrSnapshotNotFound indicates the requested snapshot does not exist.
	ErrSnapshotNotFound = NewDomainError("BK-STOR-4040", "snapshot not found")

	// ErrBrokenChain indicates a chain ancestor is missing or soft-deleted.
	ErrBrokenChain = NewDomainError("BK-STOR-4041", "snapshot chain is broken")

	// ErrDuplicateIdentifier indicates the snapshot identifier already exists.
	ErrDuplicateIdentifier = NewDomainError("BK-STOR-4090", "duplicate snapshot identifier")

	// ErrParentMismatch indicates the parent belongs to another source tree.
	ErrParentMismatch = NewDomainError("BK-STOR-4091", "parent snapshot covers a different source")
)

// ============================================================================
// Source Errors (SRC)
// ============================================================================

var (
	// ErrSourceUnreadable indicates a source file vanished or became
	// unreadable while a backup was in progress.
	ErrSourceUnreadable = NewDomainError("BK-SRC-4030", "source unreadable")

	// ErrSourceMissing indicates the configured source path does not exist.
	ErrSourceMissing = NewDomainError("BK-SRC-4040", "source path does not exist")
)

// ============================================================================
// Destination Errors (DEST)
// ============================================================================

var (
	// ErrWriteFailure indicates the destination is unwritable or full.
	ErrWriteFailure = NewDomainError("BK-DEST-5000", "destination write failure")

	// ErrDestinationNotEmpty indicates a restore target already has content
	// and overwrite was not requested.
	ErrDestinationNotEmpty = NewDomainError("BK-DEST-4090", "restore destination not empty")

	// ErrDestinationLocked indicates another invocation holds the
	// destination's advisory lock.
	ErrDestinationLocked = NewDomainError("BK-DEST-4091", "destination is locked by another process")
)

// ============================================================================
// Archive Errors (ARCH)
// ============================================================================

var (
	// ErrArchiveMissing indicates the archive file is absent on disk.
	ErrArchiveMissing = NewDomainError("BK-ARCH-4040", "archive file missing")

	// ErrArchiveUnreadable indicates the archive file exists but could not
	// be read (permissions, I/O failure).
	ErrArchiveUnreadable = NewDomainError("BK-ARCH-4030", "archive file unreadable")

	// ErrRestoreFailed indicates extraction of a chain layer failed; Details
	// names the snapshot whose archive could not be applied.
	ErrRestoreFailed = NewDomainError("BK-ARCH-5000", "restore failed while applying chain layer")
)

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("BK-ARG-1001", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("BK-ARG-1002", "missing required argument")
)
