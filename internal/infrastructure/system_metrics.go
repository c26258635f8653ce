package infrastructure

import (
	"context"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// SystemStats holds current runtime statistics
type SystemStats struct {
	GoRoutines      int       `json:"goroutines"`
	MemoryAllocated uint64    `json:"memory_allocated_bytes"`
	MemorySystem    uint64    `json:"memory_system_bytes"`
	GCCount         uint32    `json:"gc_count"`
	CPUCount        int       `json:"cpu_count"`
	UptimeSeconds   float64   `json:"uptime_seconds"`
	GoVersion       string    `json:"go_version"`
	Timestamp       time.Time `json:"timestamp"`
}

// SystemMetrics publishes runtime gauges through observable instruments and
// returns point-in-time snapshots for health reporting.
type SystemMetrics struct {
	startTime time.Time
}

// NewSystemMetrics registers runtime gauges on meter. A nil meter skips
// registration; snapshots still work.
func NewSystemMetrics(meter metric.Meter, startTime time.Time) (*SystemMetrics, error) {
	sm := &SystemMetrics{startTime: startTime}
	if meter == nil {
		return sm, nil
	}

	goRoutines, err := meter.Int64ObservableGauge(
		"system_goroutines",
		metric.WithDescription("Number of active goroutines"),
	)
	if err != nil {
		return nil, err
	}

	memoryAllocated, err := meter.Int64ObservableGauge(
		"system_memory_allocated_bytes",
		metric.WithDescription("Memory allocated by Go runtime in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	uptime, err := meter.Float64ObservableGauge(
		"system_process_uptime_seconds",
		metric.WithDescription("Process uptime in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := sm.Collect()
		o.ObserveInt64(goRoutines, int64(stats.GoRoutines))
		o.ObserveInt64(memoryAllocated, int64(stats.MemoryAllocated))
		o.ObserveFloat64(uptime, stats.UptimeSeconds)
		return nil
	}, goRoutines, memoryAllocated, uptime)
	if err != nil {
		return nil, err
	}

	return sm, nil
}

// Collect reads the current runtime statistics
func (sm *SystemMetrics) Collect() SystemStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return SystemStats{
		GoRoutines:      runtime.NumGoroutine(),
		MemoryAllocated: memStats.Alloc,
		MemorySystem:    memStats.Sys,
		GCCount:         memStats.NumGC,
		CPUCount:        runtime.NumCPU(),
		UptimeSeconds:   time.Since(sm.startTime).Seconds(),
		GoVersion:       runtime.Version(),
		Timestamp:       time.Now(),
	}
}
