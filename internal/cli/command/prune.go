// Package command provides CLI command definitions for snapback.
package command

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/Shevanio/snapback/internal/cli/output"
	"github.com/Shevanio/snapback/internal/core/domain"
	"github.com/Shevanio/snapback/internal/infra/lockfile"
	"github.com/Shevanio/snapback/internal/infra/shutdown"
)

// PruneCommand returns the prune command.
func PruneCommand() *cli.Command {
	return &cli.Command{
		Name:  "prune",
		Usage: "Delete snapshots that exceed the retention policy",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dest",
				Aliases: []string{"d"},
				Usage:   "Destination directory",
			},
			&cli.StringFlag{
				Name:    "source",
				Aliases: []string{"s"},
				Usage:   "Only snapshots of this source tree",
			},
			&cli.DurationFlag{
				Name:  "max-age",
				Usage: "Delete snapshots older than this (e.g. 720h)",
			},
			&cli.IntFlag{
				Name:  "max-count",
				Usage: "Keep at most this many live snapshots",
			},
		},
		Action: pruneAction,
	}
}

func pruneAction(c *cli.Context) error {
	job, err := loadJob(c)
	if err != nil {
		return err
	}
	if v := c.String("dest"); v != "" {
		job.Destination = v
	}
	if job.Destination == "" {
		return domain.ErrMissingArgument.WithDetails("destination")
	}

	policy, err := job.Policy()
	if err != nil {
		return err
	}
	if c.IsSet("max-age") {
		policy.MaxAge = c.Duration("max-age")
	}
	if c.IsSet("max-count") {
		policy.MaxCount = c.Int("max-count")
	}
	if !policy.Enabled() {
		return domain.ErrMissingArgument.WithDetails("retention policy (set --max-age or --max-count)")
	}

	sourcePath := c.String("source")
	if sourcePath == "" {
		sourcePath = job.Source
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

	rep, err := engine.Prune(ctx, sourcePath, policy)
	if err != nil {
		return err
	}
	return formatterFor(c).Format(os.Stdout, output.PruneView{Report: rep})
}
