// Package command provides CLI command definitions for snapback.
package command

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/Shevanio/snapback/internal/backup/verify"
	"github.com/Shevanio/snapback/internal/cli/output"
	"github.com/Shevanio/snapback/internal/core/domain"
	"github.com/Shevanio/snapback/internal/infra/shutdown"
)

// VerifyCommand returns the verify command.
func VerifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "Check stored archives against their recorded checksums",
		ArgsUsage: "[SNAPSHOT_ID]",
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
		},
		Action: verifyAction,
	}
}

func verifyAction(c *cli.Context) error {
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

	var results []*verify.Result
	if c.NArg() > 0 {
		res, err := engine.Verify(ctx, c.Args().First())
		if err != nil {
			return err
		}
		results = append(results, res)
	} else {
		results, err = engine.VerifyAll(ctx, c.String("source"))
		if err != nil {
			return err
		}
	}

	if err := formatterFor(c).Format(os.Stdout, output.VerifyList(results)); err != nil {
		return err
	}
	for _, r := range results {
		if !r.OK() {
			return cli.Exit("verification failed", 1)
		}
	}
	return nil
}
