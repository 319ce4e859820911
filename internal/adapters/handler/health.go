// Package handler implements HTTP request handlers
package handler

import (
	"encoding/json"
	"math"
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// HealthHandler reports process and host health.
type HealthHandler struct{}

// NewHealthHandler creates a new health handler
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// healthResponse carries host resource usage alongside the liveness flag.
type healthResponse struct {
	Status          string  `json:"status"`
	CPUPercent      float64 `json:"cpu_percent"`
	RAMPercent      float64 `json:"ram_percent"`
	DiskPercent     float64 `json:"disk_percent"`
	GoroutinesCount int     `json:"goroutines_count"`
}

// HandleHealth returns liveness plus system metrics.
// GET /health
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp := healthResponse{
		Status:          "ok",
		GoroutinesCount: runtime.NumGoroutine(),
	}

	if cpuPercents, err := cpu.PercentWithContext(ctx, time.Second, false); err == nil && len(cpuPercents) > 0 {
		resp.CPUPercent = roundTo2Decimals(cpuPercents[0])
	}
	if memStat, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		resp.RAMPercent = roundTo2Decimals(memStat.UsedPercent)
	}
	if diskStat, err := disk.UsageWithContext(ctx, "/"); err == nil {
		resp.DiskPercent = roundTo2Decimals(diskStat.UsedPercent)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

func roundTo2Decimals(v float64) float64 {
	return math.Round(v*100) / 100
}
