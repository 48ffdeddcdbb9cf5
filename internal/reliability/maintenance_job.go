// Package reliability keeps the on-disk databases healthy.
package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/aristath/watchfolio/internal/database"
)

const (
	// Below this much free space on the data volume the job fails
	criticalFreeBytes = 500 * 1024 * 1024
	// Below this much free space the job warns
	lowFreeBytes = 5 * 1024 * 1024 * 1024

	checkTimeout = 30 * time.Second
)

// MaintenanceJob runs integrity checks, WAL checkpoints and incremental
// vacuums on every database, then checks free space on the data volume.
type MaintenanceJob struct {
	databases []*database.DB
	dataDir   string
	log       zerolog.Logger

	diskUsage func(path string) (*disk.UsageStat, error)
}

// NewMaintenanceJob creates a new database maintenance job
func NewMaintenanceJob(databases []*database.DB, dataDir string, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		databases: databases,
		dataDir:   dataDir,
		log:       log.With().Str("job", "database_maintenance").Logger(),
		diskUsage: disk.Usage,
	}
}

// Run executes the maintenance pass. A failed integrity check or a nearly
// full volume fails the run; checkpoint and vacuum problems are only logged.
func (j *MaintenanceJob) Run() error {
	j.log.Info().Msg("Starting database maintenance")
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	for _, db := range j.databases {
		if err := db.HealthCheck(ctx); err != nil {
			j.log.Error().Str("database", db.Name()).Err(err).Msg("Integrity check failed")
			return fmt.Errorf("integrity check failed for %s: %w", db.Name(), err)
		}

		if _, err := db.Conn().ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			j.log.Warn().Str("database", db.Name()).Err(err).Msg("WAL checkpoint failed")
		}

		if db.Profile() == database.ProfileStandard {
			if _, err := db.Conn().ExecContext(ctx, "PRAGMA incremental_vacuum"); err != nil {
				j.log.Warn().Str("database", db.Name()).Err(err).Msg("Incremental vacuum failed")
			}
		}
	}

	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Int("databases", len(j.databases)).
		Msg("Database maintenance completed")

	return nil
}

// Name returns the job name for scheduler
func (j *MaintenanceJob) Name() string {
	return "database_maintenance"
}

func (j *MaintenanceJob) checkDiskSpace() error {
	usage, err := j.diskUsage(j.dataDir)
	if err != nil {
		return fmt.Errorf("failed to stat data volume: %w", err)
	}

	free := usage.Free
	j.log.Debug().Uint64("free_bytes", free).Float64("used_percent", usage.UsedPercent).Msg("Disk space check")

	switch {
	case free < criticalFreeBytes:
		j.log.Error().Uint64("free_bytes", free).Msg("Insufficient disk space on data volume")
		return fmt.Errorf("only %d MB free on %s", free/(1024*1024), j.dataDir)
	case free < lowFreeBytes:
		j.log.Warn().Uint64("free_bytes", free).Msg("Disk space running low")
	}
	return nil
}
