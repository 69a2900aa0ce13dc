// Package command provides CLI command definitions for snapback.
package command

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/Shevanio/snapback/internal/backup/restore"
	"github.com/Shevanio/snapback/internal/cli/output"
	"github.com/Shevanio/snapback/internal/core/domain"
	"github.com/Shevanio/snapback/internal/infra/shutdown"
)

// RestoreCommand returns the restore command.
func RestoreCommand() *cli.Command {
	return &cli.Command{
		Name:      "restore",
		Usage:     "Materialize a snapshot's tree into a directory",
		ArgsUsage: "SNAPSHOT_ID",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dest",
				Aliases: []string{"d"},
				Usage:   "Destination directory holding the backups",
			},
			&cli.StringFlag{
				Name:     "target",
				Aliases:  []string{"t"},
				Usage:    "Directory to restore into",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "overwrite",
				Usage: "Allow restoring into a non-empty target",
			},
		},
		Action: restoreAction,
	}
}

func restoreAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return domain.ErrMissingArgument.WithDetails("SNAPSHOT_ID")
	}
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

	engine, err := openEngine(job.Destination)
	if err != nil {
		return err
	}

	ctx, cancel := shutdown.WithSignals(c.Context)
	defer cancel()

	rep, err := engine.Restore(ctx, restore.Options{
		SnapshotID: c.Args().First(),
		DestRoot:   c.String("target"),
		Overwrite:  c.Bool("overwrite"),
	})
	if err != nil {
		return err
	}
	return formatterFor(c).Format(os.Stdout, output.RestoreView{Report: rep})
}
