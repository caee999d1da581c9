package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Reloader refetches a cached table and reports its size.
type Reloader interface {
	Reload(ctx context.Context) (int, error)
}

// RefreshJob keeps the route table warm so plan runs rarely pay for the fetch.
type RefreshJob struct {
	config  RefreshConfig
	catalog Reloader
	logger  zerolog.Logger

	metrics *RefreshMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	TotalRefreshes  int64
	FailedRefreshes int64

	LastRefreshAt       time.Time
	LastRefreshDuration time.Duration
	LastRoutes          int
	LastError           string
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config  RefreshConfig
	Catalog Reloader
	Logger  zerolog.Logger
}

// NewRefreshJob creates a new refresh job.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	config := cfg.Config
	if config.Timeout <= 0 {
		config.Timeout = DefaultRefreshConfig().Timeout
	}

	return &RefreshJob{
		config:  config,
		catalog: cfg.Catalog,
		logger:  cfg.Logger,
		metrics: &RefreshMetrics{},
	}
}

// RefreshResult contains the result of one reload.
type RefreshResult struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Routes    int
	Err       error
}

// Run reloads the route table once.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	result := &RefreshResult{StartTime: time.Now()}

	runCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	result.Routes, result.Err = j.catalog.Reload(runCtx)
	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	j.updateMetrics(result)

	if result.Err != nil {
		j.logger.Warn().Err(result.Err).
			Dur("duration", result.Duration).
			Msg("route table refresh failed")
	} else {
		j.logger.Debug().
			Int("routes", result.Routes).
			Dur("duration", result.Duration).
			Msg("route table refresh completed")
	}
	return result
}

// Start runs the job immediately and then every interval until ctx is done.
// It returns at once when the interval is zero.
func (j *RefreshJob) Start(ctx context.Context) {
	if j.config.Interval <= 0 {
		return
	}

	j.logger.Info().
		Dur("interval", j.config.Interval).
		Msg("starting route table refresh job")

	j.Run(ctx)

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info().Msg("route table refresh job stopped")
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRefreshes++
	j.metrics.LastRefreshAt = result.EndTime
	j.metrics.LastRefreshDuration = result.Duration
	if result.Err != nil {
		j.metrics.FailedRefreshes++
		j.metrics.LastError = result.Err.Error()
		return
	}
	j.metrics.LastRoutes = result.Routes
	j.metrics.LastError = ""
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRefreshes:      j.metrics.TotalRefreshes,
		FailedRefreshes:     j.metrics.FailedRefreshes,
		LastRefreshAt:       j.metrics.LastRefreshAt,
		LastRefreshDuration: j.metrics.LastRefreshDuration,
		LastRoutes:          j.metrics.LastRoutes,
		LastError:           j.metrics.LastError,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *RefreshJob) MetricsSnapshot() map[string]any {
	m := j.GetMetrics()
	snapshot := map[string]any{
		"total_refreshes":       m.TotalRefreshes,
		"failed_refreshes":      m.FailedRefreshes,
		"last_refresh_duration": m.LastRefreshDuration.String(),
		"routes":                m.LastRoutes,
	}
	if !m.LastRefreshAt.IsZero() {
		snapshot["last_refresh_at"] = m.LastRefreshAt.Format(time.RFC3339)
	}
	if m.LastError != "" {
		snapshot["last_error"] = m.LastError
	}
	return snapshot
}
