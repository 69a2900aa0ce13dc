// Package config defines the backup job configuration structure.
package config

import (
	"github.com/Shevanio/snapback/internal/infra/confloader"
)

// Load reads a job file and applies environment overrides. An empty path
// loads from the environment alone.
func Load(path string) (*JobConfig, error) {
	cfg := Default()

	opts := []confloader.Option{}
	if path != "" {
		opts = append(opts, confloader.WithConfigFile(path))
	}
	loader := confloader.NewLoader(opts...)
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}

	// koanf leaves zero-value fields untouched; re-apply defaults the file
	// cleared explicitly to empty.
	if cfg.Type == "" {
		cfg.Type = Default().Type
	}
	if cfg.Compression == "" {
		cfg.Compression = Default().Compression
	}
	return cfg, nil
}
