package di

import (
	"fmt"

	"github.com/aristath/watchfolio/internal/clientdata"
	"github.com/aristath/watchfolio/internal/config"
	"github.com/aristath/watchfolio/internal/database"
	"github.com/aristath/watchfolio/internal/reliability"
	"github.com/aristath/watchfolio/internal/scheduler"
	"github.com/rs/zerolog"
)

// RegisterJobs creates the scheduler and registers maintenance jobs on it.
// The scheduler is not started.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.Scheduler = scheduler.New(log, func(job string, err error) {
		container.EventManager.EmitError("scheduler", err, map[string]interface{}{"job": job})
	})

	container.CleanupJob = clientdata.NewCleanupJob(container.ClientDataRepo, log)
	container.MaintenanceJob = reliability.NewMaintenanceJob(
		[]*database.DB{container.HoldingsDB, container.CacheDB},
		cfg.DataDir,
		log,
	)

	jobs := []struct {
		schedule string
		job      scheduler.Job
	}{
		{cfg.CleanupSchedule, container.CleanupJob},
		{cfg.MaintenanceSchedule, container.MaintenanceJob},
	}

	container.Jobs = make(map[string]scheduler.Job, len(jobs))
	for _, j := range jobs {
		if err := container.Scheduler.AddJob(j.schedule, j.job); err != nil {
			return fmt.Errorf("failed to register %s job: %w", j.job.Name(), err)
		}
		container.Jobs[j.job.Name()] = j.job
	}

	return nil
}
