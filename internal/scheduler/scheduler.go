// Package scheduler runs periodic maintenance jobs on cron schedules.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// FailureHandler is told about every failed run
type FailureHandler func(job string, err error)

// JobInfo describes a registered job
type JobInfo struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	Next     time.Time `json:"next"`
	Prev     time.Time `json:"prev,omitempty"`
}

// Scheduler manages background jobs
type Scheduler struct {
	cron      *cron.Cron
	log       zerolog.Logger
	onFailure FailureHandler

	mu   sync.Mutex
	jobs map[cron.EntryID]JobInfo
}

// New creates a new scheduler. Schedules take a leading seconds field.
// A run that is still going when its next tick fires is skipped.
func New(log zerolog.Logger, onFailure FailureHandler) *Scheduler {
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		log:       log.With().Str("component", "scheduler").Logger(),
		onFailure: onFailure,
		jobs:      make(map[cron.EntryID]JobInfo),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers job on a cron schedule, e.g. "0 0 3 * * *" or "@every 30s".
func (s *Scheduler) AddJob(schedule string, job Job) error {
	id, err := s.cron.AddFunc(schedule, func() {
		s.execute(job)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", job.Name(), err)
	}

	s.mu.Lock()
	s.jobs[id] = JobInfo{Name: job.Name(), Schedule: schedule}
	s.mu.Unlock()

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow executes a job immediately (outside schedule)
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("Running job immediately")
	return s.execute(job)
}

// Jobs returns registered jobs with their next and previous run times
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for _, entry := range s.cron.Entries() {
		info, ok := s.jobs[entry.ID]
		if !ok {
			continue
		}
		info.Next = entry.Next
		info.Prev = entry.Prev
		out = append(out, info)
	}
	return out
}

func (s *Scheduler) execute(job Job) error {
	start := time.Now()
	s.log.Debug().Str("job", job.Name()).Msg("Running job")

	err := job.Run()
	if err != nil {
		s.log.Error().Err(err).Str("job", job.Name()).Msg("Job failed")
		if s.onFailure != nil {
			s.onFailure(job.Name(), err)
		}
		return err
	}

	s.log.Debug().Str("job", job.Name()).Dur("took", time.Since(start)).Msg("Job completed")
	return nil
}
