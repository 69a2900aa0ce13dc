// Package config defines the backup job configuration structure.
package config

import (
	"time"

	"github.com/Shevanio/snapback/internal/core/domain"
)

// JobConfig is the configuration for one backup job.
type JobConfig struct {
	// Source is the directory tree to back up.
	Source string `koanf:"source" yaml:"source"`

	// Destination is the directory receiving archives and metadata.
	Destination string `koanf:"destination" yaml:"destination"`

	// Type selects full or incremental. Empty means incremental.
	Type string `koanf:"type" yaml:"type"`

	// Compression is none, gzip or zstd.
	Compression string `koanf:"compression" yaml:"compression"`

	// Exclusions are glob patterns matched against relative paths and
	// individual path segments.
	Exclusions []string `koanf:"exclusions" yaml:"exclusions"`

	// HashAll forces content hashing during change detection.
	HashAll bool `koanf:"hash_all" yaml:"hash_all"`

	// BandwidthLimit caps archive write throughput in bytes per second.
	BandwidthLimit int64 `koanf:"bandwidth_limit" yaml:"bandwidth_limit"`

	// Schedule is a cron expression for watch mode. Empty disables the
	// scheduler (the job only reacts to explicit runs).
	Schedule string `koanf:"schedule" yaml:"schedule"`

	Retention RetentionConfig `koanf:"retention" yaml:"retention"`
}

// RetentionConfig mirrors domain.RetentionPolicy in file-friendly form.
type RetentionConfig struct {
	// MaxAge is a Go duration string, e.g. "720h". Empty disables the
	// age condition.
	MaxAge string `koanf:"max_age" yaml:"max_age"`

	// MaxCount keeps at most this many live snapshots. Zero disables the
	// count condition.
	MaxCount int `koanf:"max_count" yaml:"max_count"`
}

// Default returns the default job configuration.
func Default() *JobConfig {
	return &JobConfig{
		Type:        string(domain.BackupIncremental),
		Compression: string(domain.CompressionGzip),
	}
}

// Validate checks that the job is runnable.
func (c *JobConfig) Validate() error {
	if c.Source == "" {
		return domain.ErrMissingArgument.WithDetails("source")
	}
	if c.Destination == "" {
		return domain.ErrMissingArgument.WithDetails("destination")
	}
	switch domain.BackupType(c.Type) {
	case domain.BackupFull, domain.BackupIncremental:
	default:
		return domain.ErrInvalidArgument.WithDetails("type " + c.Type)
	}
	switch domain.CompressionType(c.Compression) {
	case domain.CompressionNone, domain.CompressionGzip, domain.CompressionZstd:
	default:
		return domain.ErrInvalidArgument.WithDetails("compression " + c.Compression)
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	return nil
}

// Policy converts the retention section into a domain policy.
func (c *JobConfig) Policy() (domain.RetentionPolicy, error) {
	var p domain.RetentionPolicy
	if c.Retention.MaxAge != "" {
		d, err := time.ParseDuration(c.Retention.MaxAge)
		if err != nil {
			return p, domain.ErrInvalidArgument.WithDetails("retention.max_age " + c.Retention.MaxAge).WithCause(err)
		}
		p.MaxAge = d
	}
	p.MaxCount = c.Retention.MaxCount
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}
