// Package command provides CLI command definitions for snapback.
package command

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/Shevanio/snapback/internal/cli/output"
	"github.com/Shevanio/snapback/internal/core/domain"
)

// ListCommand returns the list command.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List snapshots stored in a destination",
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
			&cli.BoolFlag{
				Name:    "all",
				Aliases: []string{"a"},
				Usage:   "Include soft-deleted snapshots",
			},
		},
		Action: listAction,
	}
}

func listAction(c *cli.Context) error {
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

	snaps, err := engine.List(c.String("source"), c.Bool("all"))
	if err != nil {
		return err
	}
	return formatterFor(c).Format(os.Stdout, output.SnapshotList(snaps))
}
