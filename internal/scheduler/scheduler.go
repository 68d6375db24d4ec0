// Package scheduler triggers scraping runs at fixed times of day.
package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Trigger starts a run without waiting for it and returns its id.
type Trigger func() string

// Scheduler wraps robfig/cron with one scraping job.
type Scheduler struct {
	cron    *cron.Cron
	spec    string
	trigger Trigger
	logger  *zap.Logger
}

// New parses spec in the given IANA timezone.
func New(spec, timezone string, trigger Trigger, logger *zap.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	c := cron.New(cron.WithLocation(loc), cron.WithLogger(cronLogger{logger.Sugar()}))
	s := &Scheduler{cron: c, spec: spec, trigger: trigger, logger: logger}
	if _, err := c.AddFunc(spec, s.fire); err != nil {
		return nil, fmt.Errorf("cron.AddFunc %q: %w", spec, err)
	}
	return s, nil
}

// Start begins firing in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.String("spec", s.spec),
		zap.String("timezone", s.cron.Location().String()),
		zap.Time("next", s.Next()),
	)
}

// Stop halts future firings. Runs already triggered keep going.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// Next returns the next firing time, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	if !entries[0].Next.IsZero() {
		return entries[0].Next
	}
	return entries[0].Schedule.Next(time.Now().In(s.cron.Location()))
}

func (s *Scheduler) fire() {
	id := s.trigger()
	s.logger.Info("scheduled scraping run triggered", zap.String("run_id", id))
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
