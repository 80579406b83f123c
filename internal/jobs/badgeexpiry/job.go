package badgeexpiry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/yungbote/certification-backend/internal/data/repos"
	"github.com/yungbote/certification-backend/internal/observability"
	"github.com/yungbote/certification-backend/internal/platform/dbctx"
	"github.com/yungbote/certification-backend/internal/platform/logger"
	"github.com/yungbote/certification-backend/internal/services"
)

const (
	jobName         = "badge_expiry"
	DefaultSchedule = "0 7 * * *"
	batchSize       = 200
	maxBatches      = 50
)

type Config struct {
	// Schedule is a standard five-field cron expression.
	Schedule   string
	NoticeDays int
	Timeout    time.Duration
}

// Job reminds holders whose time-limited badges expire within the notice
// window. Each badge is reminded once.
type Job struct {
	log      *logger.Logger
	badges   repos.BadgeRepo
	notifier services.Notifier
	metrics  *observability.Metrics
	cfg      Config
	clock    func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

func New(log *logger.Logger, badges repos.BadgeRepo, notifier services.Notifier, metrics *observability.Metrics, cfg Config) *Job {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.NoticeDays <= 0 {
		cfg.NoticeDays = 30
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &Job{
		log:      log.With("job", jobName),
		badges:   badges,
		notifier: notifier,
		metrics:  metrics,
		cfg:      cfg,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

// Start registers the job on its schedule. Overlapping runs are skipped.
func (j *Job) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cron != nil {
		return nil
	}
	cl := cronLogger{log: j.log}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	if _, err := c.AddFunc(j.cfg.Schedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, j.cfg.Timeout)
		defer cancel()
		if _, err := j.RunOnce(runCtx); err != nil {
			j.log.Warn("Badge expiry run failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule %s %q: %w", jobName, j.cfg.Schedule, err)
	}
	c.Start()
	j.cron = c
	j.log.Info("Badge expiry job scheduled", "schedule", j.cfg.Schedule, "notice_days", j.cfg.NoticeDays)
	return nil
}

// Stop waits for a running pass to finish or ctx to end.
func (j *Job) Stop(ctx context.Context) {
	j.mu.Lock()
	c := j.cron
	j.cron = nil
	j.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}

// RunOnce sends the reminders that are due and returns how many went out.
// A badge is claimed before its holder is notified, so concurrent runs never
// remind twice; a reminder the notifier drops is released for the next run.
func (j *Job) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	now := j.clock().Truncate(time.Microsecond)
	until := now.AddDate(0, 0, j.cfg.NoticeDays)
	dbc := dbctx.Context{Ctx: ctx}

	fail := func(err error) error {
		j.metrics.ObserveJob(jobName, "failure", time.Since(start))
		return err
	}

	sent, dropped := 0, 0
	for batch := 0; batch < maxBatches && dropped == 0; batch++ {
		rows, err := j.badges.ListExpiring(dbc, now, until, batchSize)
		if err != nil {
			return sent, fail(err)
		}
		if len(rows) == 0 {
			break
		}
		for _, b := range rows {
			claimed, err := j.badges.ClaimExpiryNotice(dbc, b.ID, now)
			if err != nil {
				return sent, fail(err)
			}
			if !claimed {
				continue
			}
			if j.notifier != nil && j.notifier.Notify(services.Notification{
				Kind:        services.NotifyBadgeExpiring,
				RecipientID: b.HolderID,
				RequestID:   b.RequestID,
				Badge:       b.Refresh(now),
				At:          now,
			}) {
				sent++
				continue
			}
			dropped++
			if err := j.badges.ReleaseExpiryNotice(dbc, b.ID, now); err != nil {
				return sent, fail(err)
			}
		}
		if len(rows) < batchSize {
			break
		}
	}
	j.metrics.AddExpiryReminders(sent)
	j.metrics.ObserveJob(jobName, "success", time.Since(start))
	if dropped > 0 {
		j.log.Warn("Badge expiry reminders deferred to next run", "dropped", dropped)
	}
	if sent > 0 {
		j.log.Info("Badge expiry reminders sent", "count", sent, "until", until)
	}
	return sent, nil
}

type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
