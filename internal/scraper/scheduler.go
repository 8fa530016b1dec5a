package scraper

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// Scheduler repeats a job at a fixed interval until its context is cancelled. The
// job runs in the calling goroutine so a browser session is never shared.
type Scheduler struct {
	interval time.Duration
	job      func(ctx context.Context) error
	runs     int
	failures int
}

func NewScheduler(interval time.Duration, job func(ctx context.Context) error) *Scheduler {
	return &Scheduler{
		interval: interval,
		job:      job,
	}
}

// Run executes the job immediately and then once per interval. Job errors are
// logged and do not stop the schedule; Run returns when ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.runOnce(ctx)
		if ctx.Err() != nil {
			break
		}

		select {
		case <-ctx.Done():
		case <-ticker.C:
			continue
		}
		break
	}

	log.WithFields(log.Fields{"runs": s.runs, "failures": s.failures}).Info("Scheduler stopped")
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	s.runs++
	if err := s.job(ctx); err != nil {
		s.failures++
		log.WithError(err).WithField("run", s.runs).Error("Scheduled run failed")
		return
	}
	log.WithFields(log.Fields{"run": s.runs, "next": time.Now().Add(s.interval).Format("15:04:05")}).Info("Scheduled run finished")
}

func (s *Scheduler) Runs() int {
	return s.runs
}

func (s *Scheduler) Failures() int {
	return s.failures
}
