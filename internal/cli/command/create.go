// Package command provides CLI command definitions for snapback.
package command

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/Shevanio/snapback/internal/cli/config"
	"github.com/Shevanio/snapback/internal/cli/output"
	"github.com/Shevanio/snapback/internal/core/domain"
	"github.com/Shevanio/snapback/internal/core/service"
	"github.com/Shevanio/snapback/internal/infra/lockfile"
	"github.com/Shevanio/snapback/internal/infra/shutdown"
)

// CreateCommand returns the create command.
func CreateCommand() *cli.Command {
	return &cli.Command{
		Name:  "create",
		Usage: "Take a new snapshot of the source tree",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "source",
				Aliases: []string{"s"},
				Usage:   "Source directory to back up",
			},
			&cli.StringFlag{
				Name:    "dest",
				Aliases: []string{"d"},
				Usage:   "Destination directory for archives and metadata",
			},
			&cli.BoolFlag{
				Name:  "full",
				Usage: "Force a full backup instead of an incremental one",
			},
			&cli.StringFlag{
				Name:  "parent",
				Usage: "Base the incremental on this snapshot instead of the latest",
			},
			&cli.StringFlag{
				Name:  "compression",
				Usage: "Archive compression: none, gzip, zstd",
			},
			&cli.StringSliceFlag{
				Name:    "exclude",
				Aliases: []string{"e"},
				Usage:   "Glob pattern to exclude (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "hash-all",
				Usage: "Hash every file even when size and mtime match",
			},
			&cli.Int64Flag{
				Name:  "bandwidth",
				Usage: "Archive write limit in bytes per second (0 = unlimited)",
			},
			&cli.BoolFlag{
				Name:  "prune",
				Usage: "Apply the job's retention policy after the snapshot",
			},
		},
		Action: createAction,
	}
}

func createAction(c *cli.Context) error {
	job, err := loadJob(c)
	if err != nil {
		return err
	}
	applyCreateFlags(c, job)
	if err := job.Validate(); err != nil {
		return err
	}

	opts := service.CreateOptions{
		SourceRoot:     job.Source,
		Type:           domain.BackupType(job.Type),
		ParentID:       c.String("parent"),
		Compression:    domain.CompressionType(job.Compression),
		Exclusions:     job.Exclusions,
		HashAll:        job.HashAll,
		BandwidthLimit: job.BandwidthLimit,
	}
	if c.Bool("prune") {
		policy, err := job.Policy()
		if err != nil {
			return err
		}
		opts.Retention = &policy
	}

	lock, err := lockfile.Acquire(job.Destination)
	if err != nil {
		return err
	}
	defer lock.Release()

	engine, err := openEngine(job.Destination)
	if err != nil {
		return err
	}

	ctx, cancel := shutdown.WithSignals(c.Context)
	defer cancel()

	res, err := engine.Create(ctx, opts)
	if err != nil {
		return err
	}
	return formatterFor(c).Format(os.Stdout, output.CreateView{Result: res})
}

// applyCreateFlags layers explicit flags over the job file.
func applyCreateFlags(c *cli.Context, job *config.JobConfig) {
	if v := c.String("source"); v != "" {
		job.Source = v
	}
	if v := c.String("dest"); v != "" {
		job.Destination = v
	}
	if c.Bool("full") {
		job.Type = string(domain.BackupFull)
	}
	if v := c.String("compression"); v != "" {
		job.Compression = v
	}
	if v := c.StringSlice("exclude"); len(v) > 0 {
		job.Exclusions = append(job.Exclusions, v...)
	}
	if c.Bool("hash-all") {
		job.HashAll = true
	}
	if c.IsSet("bandwidth") {
		job.BandwidthLimit = c.Int64("bandwidth")
	}
}
