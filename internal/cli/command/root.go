// Package command provides CLI command definitions for snapback.
package command

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/Shevanio/snapback/internal/cli/config"
	"github.com/Shevanio/snapback/internal/cli/output"
	"github.com/Shevanio/snapback/internal/core/service"
	"github.com/Shevanio/snapback/internal/infra/buildinfo"
	"github.com/Shevanio/snapback/internal/storage/metastore"
	"github.com/Shevanio/snapback/internal/telemetry/logger"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "snapback",
		Usage:   "incremental file backup with retention and verification",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			CreateCommand(),
			ListCommand(),
			RestoreCommand(),
			VerifyCommand(),
			PruneCommand(),
			WatchCommand(),
		},
		Before: func(c *cli.Context) error {
			log := logger.New(logger.Config{
				Level:  c.String("log-level"),
				Format: c.String("log-format"),
				Output: os.Stderr,
			})
			logger.SetDefault(log)
			return nil
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Job configuration file (YAML)",
			EnvVars: []string{"SNAPBACK_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level: debug, info, warn, error",
			EnvVars: []string{"SNAPBACK_LOG_LEVEL"},
			Value:   "info",
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format: text, json",
			EnvVars: []string{"SNAPBACK_LOG_FORMAT"},
			Value:   "text",
		},
	}
}

// formatterFor builds the output formatter selected by global flags.
func formatterFor(c *cli.Context) output.Formatter {
	return output.NewFormatter(output.Format(c.String("output")))
}

// loadJob resolves the job configuration: file first (when --config is
// given), then per-command flag overrides applied by the caller.
func loadJob(c *cli.Context) (*config.JobConfig, error) {
	return config.Load(c.String("config"))
}

// openEngine opens the destination's metadata store and wraps it in the
// backup engine.
func openEngine(destDir string) (*service.Engine, error) {
	store, err := metastore.Open(destDir)
	if err != nil {
		return nil, err
	}
	return service.New(store, logger.Default()), nil
}
