package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"csvmapper/internal/infrastructure"
)

// SessionCounter reports the number of live sessions
type SessionCounter interface {
	ActiveSessions() int
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	repoURL   string
	buildTime string
	sessions  SessionCounter
	system    *infrastructure.SystemMetrics
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status         string                      `json:"status"`
	Timestamp      time.Time                   `json:"timestamp"`
	Version        string                      `json:"version"`
	UptimeSeconds  float64                     `json:"uptime_seconds"`
	ActiveSessions int                         `json:"active_sessions"`
	Runtime        *infrastructure.SystemStats `json:"runtime,omitempty"`
}

// NewHealthService creates a new health service
func NewHealthService(version, repoURL, buildTime string, sessions SessionCounter, system *infrastructure.SystemMetrics, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	startTime := time.Now()
	if system == nil {
		system, _ = infrastructure.NewSystemMetrics(nil, startTime)
	}

	logger.Info("HealthService initialized",
		slog.String("version", version),
		slog.String("repo_url", repoURL),
		slog.String("build_time", buildTime))

	return &HealthService{
		version:   version,
		repoURL:   repoURL,
		buildTime: buildTime,
		sessions:  sessions,
		system:    system,
		startTime: startTime,
		logger:    logger,
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:        "ok",
		Timestamp:     time.Now(),
		Version:       hs.version,
		UptimeSeconds: time.Since(hs.startTime).Seconds(),
	}
	if hs.sessions != nil {
		status.ActiveSessions = hs.sessions.ActiveSessions()
	}

	hs.logger.DebugContext(ctx, "HealthCheck: completed",
		slog.String("status", status.Status),
		slog.Int("active_sessions", status.ActiveSessions))

	return status
}

// LivenessCheck returns liveness status with runtime statistics
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	status := hs.HealthCheck(ctx)
	status.Status = "alive"
	stats := hs.system.Collect()
	status.Runtime = &stats
	return status
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	result := map[string]interface{}{
		"version":      hs.version,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"repo_url":     hs.repoURL,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}

	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}

	return result
}
