package scheduler

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeJob struct {
	name string
	runs atomic.Int32
	err  error
}

func (j *fakeJob) Run() error {
	j.runs.Add(1)
	return j.err
}

func (j *fakeJob) Name() string { return j.name }

func TestScheduler_AddJobRejectsBadSchedule(t *testing.T) {
	s := New(zerolog.Nop(), nil)
	err := s.AddJob("not a schedule", &fakeJob{name: "bad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
	assert.Empty(t, s.Jobs())
}

func TestScheduler_RunsOnSchedule(t *testing.T) {
	s := New(zerolog.Nop(), nil)
	job := &fakeJob{name: "tick"}

	require.NoError(t, s.AddJob("@every 1s", job))
	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "tick", jobs[0].Name)
	assert.Equal(t, "@every 1s", jobs[0].Schedule)

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		return job.runs.Load() >= 1
	}, 3*time.Second, 10*time.Millisecond)
}

func TestScheduler_RunNowReportsFailure(t *testing.T) {
	var mu sync.Mutex
	var failures []string

	s := New(zerolog.Nop(), func(job string, err error) {
		mu.Lock()
		failures = append(failures, job+": "+err.Error())
		mu.Unlock()
	})

	job := &fakeJob{name: "cleanup", err: errors.New("disk full")}
	err := s.RunNow(job)
	require.Error(t, err)
	assert.Equal(t, int32(1), job.runs.Load())

	mu.Lock()
	assert.Equal(t, []string{"cleanup: disk full"}, failures)
	mu.Unlock()
}
