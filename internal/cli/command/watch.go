// Package command provides CLI command definitions for snapback.
package command

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"

	"github.com/Shevanio/snapback/internal/cli/config"
	"github.com/Shevanio/snapback/internal/core/domain"
	"github.com/Shevanio/snapback/internal/core/service"
	"github.com/Shevanio/snapback/internal/infra/confloader"
	"github.com/Shevanio/snapback/internal/infra/lockfile"
	"github.com/Shevanio/snapback/internal/infra/shutdown"
	"github.com/Shevanio/snapback/internal/telemetry/logger"
)

// WatchCommand returns the watch command.
func WatchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Run scheduled backups from a job file until terminated",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "run-now",
				Usage: "Take one snapshot immediately before entering the schedule",
			},
		},
		Action: watchAction,
	}
}

// watcher runs one job on a cron schedule, reloading the job file when it
// changes on disk.
type watcher struct {
	configPath string
	log        logger.Logger

	mu  sync.Mutex
	job *config.JobConfig
}

func watchAction(c *cli.Context) error {
	path := c.String("config")
	if path == "" {
		return domain.ErrMissingArgument.WithDetails("--config (watch mode needs a job file)")
	}
	job, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := job.Validate(); err != nil {
		return err
	}
	if job.Schedule == "" {
		return domain.ErrMissingArgument.WithDetails("schedule (watch mode needs a cron expression)")
	}

	w := &watcher{
		configPath: path,
		log:        logger.Default().With("job", path),
		job:        job,
	}

	ctx, cancel := shutdown.WithSignals(c.Context)
	defer cancel()

	fsw, err := confloader.NewWatcher(confloader.WithWatcherLogger(w.log))
	if err != nil {
		return err
	}
	if err := fsw.Watch(path); err != nil {
		return err
	}
	fsw.OnChange(w.reload)
	fsw.StartAsync()
	defer fsw.Stop()

	sched := cron.New()
	if _, err := sched.AddFunc(job.Schedule, func() { w.run(ctx) }); err != nil {
		return domain.ErrInvalidArgument.WithDetails("schedule " + job.Schedule).WithCause(err)
	}

	if c.Bool("run-now") {
		w.run(ctx)
	}

	w.log.Info("watch mode started", "schedule", job.Schedule)
	sched.Start()
	<-ctx.Done()

	stop := sched.Stop()
	// Let an in-flight run finish before exiting.
	<-stop.Done()
	w.log.Info("watch mode stopped")
	return nil
}

// reload re-reads the job file after a change. Schedule changes need a
// restart; everything else takes effect on the next run.
func (w *watcher) reload(string) {
	job, err := config.Load(w.configPath)
	if err != nil {
		w.log.Error("job file reload failed", "error", err)
		return
	}
	if err := job.Validate(); err != nil {
		w.log.Error("job file invalid after change", "error", err)
		return
	}

	w.mu.Lock()
	if job.Schedule != w.job.Schedule {
		w.log.Warn("schedule change requires restart to take effect",
			"old", w.job.Schedule,
			"new", job.Schedule,
		)
		job.Schedule = w.job.Schedule
	}
	w.job = job
	w.mu.Unlock()
	w.log.Info("job configuration reloaded")
}

// run takes one snapshot with the current job settings.
func (w *watcher) run(ctx context.Context) {
	w.mu.Lock()
	job := w.job
	w.mu.Unlock()

	lock, err := lockfile.Acquire(job.Destination)
	if err != nil {
		w.log.Error("backup run skipped", "error", err)
		return
	}
	defer lock.Release()

	engine, err := openEngine(job.Destination)
	if err != nil {
		w.log.Error("backup run failed", "error", err)
		return
	}

	policy, err := job.Policy()
	if err != nil {
		w.log.Error("backup run failed", "error", err)
		return
	}
	opts := service.CreateOptions{
		SourceRoot:     job.Source,
		Type:           domain.BackupType(job.Type),
		Compression:    domain.CompressionType(job.Compression),
		Exclusions:     job.Exclusions,
		HashAll:        job.HashAll,
		BandwidthLimit: job.BandwidthLimit,
	}
	if policy.Enabled() {
		opts.Retention = &policy
	}

	res, err := engine.Create(ctx, opts)
	if err != nil {
		w.log.Error("backup run failed", "error", err)
		return
	}
	w.log.Info("scheduled backup complete",
		"snapshot", res.Snapshot.ID,
		"changed", res.Changed,
		"removed", res.Removed,
		"duration", res.Duration,
	)
}
