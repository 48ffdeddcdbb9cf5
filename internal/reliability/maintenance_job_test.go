package reliability

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/watchfolio/internal/database"
	testingpkg "github.com/aristath/watchfolio/internal/testing"
)

func newJob(t *testing.T, free uint64) *MaintenanceJob {
	t.Helper()
	holdingsDB, _ := testingpkg.NewTestDB(t, "holdings")
	cacheDB, _ := testingpkg.NewTestDB(t, "cache")

	job := NewMaintenanceJob([]*database.DB{holdingsDB, cacheDB}, t.TempDir(), zerolog.Nop())
	job.diskUsage = func(path string) (*disk.UsageStat, error) {
		return &disk.UsageStat{Path: path, Free: free, UsedPercent: 42}, nil
	}
	return job
}

func TestMaintenanceJob_Run(t *testing.T) {
	job := newJob(t, 50*1024*1024*1024)

	assert.Equal(t, "database_maintenance", job.Name())
	require.NoError(t, job.Run())
}

func TestMaintenanceJob_LowDiskWarnsOnly(t *testing.T) {
	job := newJob(t, 1024*1024*1024)
	assert.NoError(t, job.Run())
}

func TestMaintenanceJob_CriticalDiskFails(t *testing.T) {
	job := newJob(t, 100*1024*1024)

	err := job.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "100 MB free")
}

func TestMaintenanceJob_DiskStatError(t *testing.T) {
	job := newJob(t, 0)
	job.diskUsage = func(string) (*disk.UsageStat, error) {
		return nil, errors.New("no such volume")
	}

	assert.Error(t, job.Run())
}

func TestMaintenanceJob_ClosedDatabaseFails(t *testing.T) {
	job := newJob(t, 50*1024*1024*1024)
	require.NoError(t, job.databases[0].Close())

	err := job.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "integrity check failed")
}
