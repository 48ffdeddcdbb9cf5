package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/watchfolio/internal/database"
	"github.com/aristath/watchfolio/internal/di"
	"github.com/aristath/watchfolio/internal/modules/rotation"
	"github.com/aristath/watchfolio/internal/ratelimit"
	"github.com/aristath/watchfolio/internal/scheduler"
)

// SystemHandlers serves process and engine status
type SystemHandlers struct {
	container *di.Container
	log       zerolog.Logger
	startedAt time.Time
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(container *di.Container, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		container: container,
		log:       log.With().Str("handler", "system").Logger(),
		startedAt: time.Now(),
	}
}

// SystemStatusResponse is the body of GET /api/system/status
type SystemStatusResponse struct {
	Status        string              `json:"status"`
	UptimeSeconds int64               `json:"uptime_seconds"`
	CPUPercent    float64             `json:"cpu_percent"`
	MemoryPercent float64             `json:"memory_percent"`
	Goroutines    int                 `json:"goroutines"`
	Databases     map[string]string   `json:"databases"`
	Limiter       ratelimit.Stats     `json:"limiter"`
	Screens       []rotation.Status   `json:"screens"`
	Jobs          []scheduler.JobInfo `json:"jobs"`
	Subscribers   int                 `json:"event_subscribers"`
}

// JobsStatusResponse is the body of GET /api/system/jobs
type JobsStatusResponse struct {
	Jobs []scheduler.JobInfo `json:"jobs"`
}

// HandleSystemStatus returns process resource usage and engine state
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.getSystemStats()

	status := "healthy"
	databases := make(map[string]string, 2)
	for name, db := range map[string]*database.DB{
		"holdings": h.container.HoldingsDB,
		"cache":    h.container.CacheDB,
	} {
		if err := db.HealthCheck(r.Context()); err != nil {
			h.log.Warn().Err(err).Str("database", name).Msg("Database health check failed")
			databases[name] = err.Error()
			status = "degraded"
			continue
		}
		databases[name] = "ok"
	}

	writeJSON(w, h.log, http.StatusOK, SystemStatusResponse{
		Status:        status,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Goroutines:    runtime.NumGoroutine(),
		Databases:     databases,
		Limiter:       h.container.Limiter.Stats(),
		Screens:       h.container.RotationManager.Statuses(),
		Jobs:          h.container.Scheduler.Jobs(),
		Subscribers:   h.container.EventBus.SubscriberCount(),
	})
}

// HandleJobsStatus lists registered maintenance jobs
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.log, http.StatusOK, JobsStatusResponse{Jobs: h.container.Scheduler.Jobs()})
}

// HandleRunJob runs a maintenance job immediately
// POST /api/system/jobs/{job}/run
func (h *SystemHandlers) HandleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "job")

	job, ok := h.container.Jobs[name]
	if !ok {
		writeJSON(w, h.log, http.StatusNotFound, map[string]string{"error": "unknown job"})
		return
	}

	if err := h.container.Scheduler.RunNow(job); err != nil {
		writeJSON(w, h.log, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, h.log, http.StatusOK, map[string]string{"status": "completed", "job": name})
}

// getSystemStats returns CPU and RAM usage percentages. The CPU sample is
// short so the endpoint stays responsive.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(cpuPercent) == 0 {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return cpuPercent[0], 0
	}

	return cpuPercent[0], memStat.UsedPercent
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, log zerolog.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
