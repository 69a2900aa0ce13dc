// Package domain defines the core domain models for snapback.
package domain

import "time"

// RetentionPolicy selects snapshots eligible for deletion.
//
// The policy is a union: a snapshot matching either configured condition is a
// deletion candidate. A zero value in either field disables that condition.
// The policy is supplied per invocation and never persisted.
type RetentionPolicy struct {
	// MaxAge marks snapshots older than this duration as candidates.
	MaxAge time.Duration `json:"max_age"`

	// MaxCount marks snapshots beyond the most recent MaxCount as candidates.
	MaxCount int `json:"max_count"`
}

// Enabled reports whether at least one condition is configured.
// A disabled policy makes pruning a no-op.
func (p RetentionPolicy) Enabled() bool {
	return p.MaxAge > 0 || p.MaxCount > 0
}

// Validate rejects negative configuration values.
func (p RetentionPolicy) Validate() error {
	if p.MaxAge < 0 {
		return ErrInvalidArgument.WithDetails("max_age must not be negative")
	}
	if p.MaxCount < 0 {
		return ErrInvalidArgument.WithDetails("max_count must not be negative")
	}
	return nil
}
