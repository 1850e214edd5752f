package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	reterrors "git.home.luguber.info/inful/retentiond/internal/errors"
	"git.home.luguber.info/inful/retentiond/internal/events"
	"git.home.luguber.info/inful/retentiond/internal/logfields"
	"git.home.luguber.info/inful/retentiond/internal/metrics"
	"git.home.luguber.info/inful/retentiond/internal/retention"
)

// EventSink receives pass-summary events. events.Publisher satisfies it;
// tests inject their own.
type EventSink interface {
	Publish(*events.PassEvent) error
}

// Options configures a Checkpointer.
type Options struct {
	// Interval between periodic checkpoint saves.
	Interval time.Duration

	// Reconcile runs the cleanup scan after the startup load. Leave off
	// when several scheduler instances share one store.
	Reconcile bool

	Logger *slog.Logger
	Events EventSink // optional
}

// Checkpointer drives retention passes at the scheduler's lifecycle
// points. It assumes passes never overlap: the periodic save runs on the
// gocron goroutine with the singleton mode enabled, and RunStartup is
// called before Start.
type Checkpointer struct {
	daemon    Daemon
	sync      *retention.Synchronizer
	scheduler gocron.Scheduler
	opts      Options
	logger    *slog.Logger
}

// NewCheckpointer creates a checkpointer for the given scheduler contract
// and synchronizer.
func NewCheckpointer(d Daemon, sync *retention.Synchronizer, opts Options) (*Checkpointer, error) {
	if d == nil || sync == nil {
		return nil, fmt.Errorf("daemon and synchronizer are required")
	}
	if opts.Interval <= 0 {
		opts.Interval = 15 * time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Checkpointer{
		daemon:    d,
		sync:      sync,
		scheduler: s,
		opts:      opts,
		logger:    logger,
	}, nil
}

// RunStartup performs the startup load and, when enabled, the
// reconciliation pass. Load failures propagate so the caller can decide
// between starting with empty retention and halting; reconciliation
// failures are logged only, since that pass is advisory cleanup.
func (c *Checkpointer) RunStartup(ctx context.Context) error {
	known, err := c.daemon.KnownIdentities()
	if err != nil {
		return reterrors.Wrap(err, reterrors.CategoryDaemon, reterrors.SeverityFatal, "enumerate identities")
	}

	passID := uuid.NewString()
	snap, stats, err := c.sync.Load(ctx, known)
	if err != nil {
		c.publish(&events.PassEvent{ID: passID, Pass: metrics.PassLoad, Outcome: "failed", Error: err.Error()})
		return err
	}
	if err := c.daemon.RestoreRetention(snap); err != nil {
		return reterrors.Wrap(err, reterrors.CategoryDaemon, reterrors.SeverityFatal, "restore retention")
	}
	c.publish(&events.PassEvent{ID: passID, Pass: metrics.PassLoad, Outcome: "success", Read: stats.Read()})

	if !c.opts.Reconcile {
		return nil
	}
	passID = uuid.NewString()
	rstats, err := c.sync.Reconcile(ctx, known)
	if err != nil {
		c.logger.Warn("Reconciliation pass failed; stale keys remain",
			logfields.PassID(passID), logfields.Error(err))
		c.publish(&events.PassEvent{ID: passID, Pass: metrics.PassReconcile, Outcome: "failed", Error: err.Error()})
		return nil
	}
	c.publish(&events.PassEvent{
		ID: passID, Pass: metrics.PassReconcile, Outcome: "success",
		Deleted: rstats.Deleted, Skipped: rstats.Skipped,
	})
	return nil
}

// Checkpoint performs one save pass from a fresh snapshot.
func (c *Checkpointer) Checkpoint(ctx context.Context) error {
	snap, err := c.daemon.RetentionSnapshot()
	if err != nil {
		return reterrors.Wrap(err, reterrors.CategoryDaemon, reterrors.SeverityFatal, "snapshot retention data")
	}

	passID := uuid.NewString()
	stats, err := c.sync.Save(ctx, snap)
	if err != nil {
		c.publish(&events.PassEvent{ID: passID, Pass: metrics.PassSave, Outcome: "failed", Error: err.Error()})
		return err
	}
	c.publish(&events.PassEvent{ID: passID, Pass: metrics.PassSave, Outcome: "success", Written: stats.Written()})
	return nil
}

// Start schedules periodic checkpoint saves and begins the scheduler.
func (c *Checkpointer) Start(ctx context.Context) error {
	_, err := c.scheduler.NewJob(
		gocron.DurationJob(c.opts.Interval),
		gocron.NewTask(func() {
			if err := c.Checkpoint(ctx); err != nil {
				c.logger.Error("Periodic checkpoint failed", logfields.Error(err))
			}
		}),
		gocron.WithName("retention-checkpoint"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint job: %w", err)
	}

	c.logger.Info("Starting checkpoint scheduler", slog.Duration("interval", c.opts.Interval))
	c.scheduler.Start()
	return nil
}

// Stop performs a final checkpoint save and shuts the scheduler down.
// The save error is returned after shutdown completes, so state loss is
// never silent.
func (c *Checkpointer) Stop(ctx context.Context) error {
	saveErr := c.Checkpoint(ctx)
	if err := c.scheduler.Shutdown(); err != nil {
		c.logger.Warn("Scheduler shutdown failed", logfields.Error(err))
	}
	return saveErr
}

func (c *Checkpointer) publish(ev *events.PassEvent) {
	if c.opts.Events == nil {
		return
	}
	if err := c.opts.Events.Publish(ev); err != nil {
		c.logger.Warn("Failed to publish pass event",
			logfields.Pass(ev.Pass), logfields.Error(err))
	}
}
