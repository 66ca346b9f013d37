package scheduler

import (
	"context"
	"fmt"
	"time"

	"community_content_bot/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// TickRunner is the delivery engine entry point driven by the poll loop.
type TickRunner interface {
	RunTick(ctx context.Context, now time.Time) app.TickReport
}

// FailureNotifier is told about ticks that ended with failed units.
type FailureNotifier func(report app.TickReport)

// PollScheduler fires the delivery engine on a fixed wall-clock cadence.
type PollScheduler struct {
	cronEngine  *cron.Cron
	runner      TickRunner
	logger      *logrus.Entry
	cronSpec    string
	tickTimeout time.Duration
	notify      FailureNotifier
	now         func() time.Time

	// base is cancelled by Stop so a running tick abandons its remaining units.
	base       context.Context
	cancelBase context.CancelFunc
}

func NewPollScheduler(
	runner TickRunner,
	logger *logrus.Entry,
	cronSpec string, // e.g., "0 * * * *" (every hour on the hour)
	tickTimeout time.Duration,
	notify FailureNotifier, // optional
) *PollScheduler {
	cronLogger := cron.VerbosePrintfLogger(logger.WithField("subsystem", "cron"))
	base, cancel := context.WithCancel(context.Background())
	return &PollScheduler{
		// Ticks are evaluated per tenant timezone, so the engine itself runs in UTC.
		cronEngine: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		runner:      runner,
		logger:      logger,
		cronSpec:    cronSpec,
		tickTimeout: tickTimeout,
		notify:      notify,
		now:         time.Now,
		base:        base,
		cancelBase:  cancel,
	}
}

// Start registers the poll job and starts the cron engine.
func (s *PollScheduler) Start() error {
	s.logger.WithField("cron_spec", s.cronSpec).Info("Starting poll scheduler")

	_, err := s.cronEngine.AddFunc(s.cronSpec, s.tick)
	if err != nil {
		return fmt.Errorf("could not add poll cron job %q: %w", s.cronSpec, err)
	}

	s.cronEngine.Start()
	s.logger.Info("Poll scheduler started")
	return nil
}

func (s *PollScheduler) tick() {
	now := s.now().UTC()
	ctx, cancel := context.WithTimeout(s.base, s.tickTimeout)
	defer cancel()

	start := time.Now()
	report := s.runner.RunTick(ctx, now)

	log := s.logger.WithFields(logrus.Fields{
		"tick_at":    now.Format(time.RFC3339),
		"tenants":    report.Tenants,
		"evaluated":  report.Evaluated,
		"fired":      report.Fired,
		"delivered":  report.Delivered,
		"suppressed": report.Suppressed,
		"failed":     report.Failed,
		"took":       time.Since(start).String(),
	})
	if report.Failed > 0 {
		log.Warn("Poll tick finished with failures")
		if s.notify != nil {
			s.notify(report)
		}
		return
	}
	log.Info("Poll tick finished")
}

// Stop stops scheduling new ticks and waits for a running tick to finish.
func (s *PollScheduler) Stop() {
	s.logger.Info("Stopping poll scheduler...")
	ctx := s.cronEngine.Stop()
	s.cancelBase()
	<-ctx.Done()
	s.logger.Info("Poll scheduler gracefully stopped")
}
