package cronjob

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const DefaultSchedule = "0 */5 * * * *"

// Refresher reruns the fetch cascade and signals completion
type Refresher interface {
	Refetch(ctx context.Context) <-chan error
}

// Scheduler periodically refreshes the project collection
type Scheduler struct {
	schedule  string
	refresher Refresher
	logger    *zap.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

func NewScheduler(schedule string, refresher Refresher, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		schedule:  schedule,
		refresher: refresher,
		logger:    logger.Named("cron"),
	}
}

// Start initializes cron tasks. An empty schedule disables the scheduler.
func (s *Scheduler) Start() error {
	if s.schedule == "" {
		s.logger.Info("refresh scheduler disabled")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	cl := cronLogger{s.logger.Sugar()}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc(s.schedule, s.runRefresh); err != nil {
		return fmt.Errorf("failed to create cron job: %w", err)
	}

	s.logger.Info("refresh scheduler started", zap.String("schedule", s.schedule))
	c.Start()
	s.cron = c
	return nil
}

// Stop stops the scheduler and waits for a running refresh to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.logger.Info("refresh scheduler stopped")
}

func (s *Scheduler) runRefresh() {
	start := time.Now()
	s.logger.Debug("scheduled refresh started")

	if err := <-s.refresher.Refetch(context.Background()); err != nil {
		s.logger.Warn("scheduled refresh failed", zap.Duration("took", time.Since(start)), zap.Error(err))
		return
	}
	s.logger.Info("scheduled refresh completed", zap.Duration("took", time.Since(start)))
}

// cronLogger routes cron's own logging through zap
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
