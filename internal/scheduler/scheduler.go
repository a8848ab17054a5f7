// Package scheduler runs the bot's periodic jobs
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"homework_bot/internal/logger"

	"github.com/go-co-op/gocron/v2"
)

const digestTimeout = time.Minute

// Digester sends the daily admin digest
type Digester interface {
	SendDigest(ctx context.Context) error
}

type Scheduler struct {
	cron gocron.Scheduler
	log  *slog.Logger
}

// New creates a scheduler working in UTC. Jobs start running after Start.
func New() (*Scheduler, error) {
	cron, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{cron: cron, log: logger.With("component", "scheduler")}, nil
}

// ScheduleDigest runs d once a day at hour:minute UTC
func (s *Scheduler) ScheduleDigest(hour, minute uint, d Digester) (gocron.Job, error) {
	job, err := s.cron.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(hour, minute, 0))),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), digestTimeout)
			defer cancel()
			if err := d.SendDigest(ctx); err != nil {
				s.log.Error("admin digest failed", "error", err)
				return
			}
			s.log.Info("admin digest sent")
		}),
		gocron.WithName("admin-digest"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("schedule digest at %02d:%02d: %w", hour, minute, err)
	}
	return job, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish
func (s *Scheduler) Stop() error {
	return s.cron.Shutdown()
}
