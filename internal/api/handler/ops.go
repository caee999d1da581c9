// Package handler provides HTTP handlers for the commutekit API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/commutekit/commutekit/internal/api/models"
	"github.com/commutekit/commutekit/internal/api/response"
	"github.com/commutekit/commutekit/internal/provider/resilience"
)

const readinessTimeout = 2 * time.Second

// Pinger is a dependency the readiness check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusReporter exposes background job statistics.
type StatusReporter interface {
	MetricsSnapshot() map[string]any
}

// OpsConfig holds the dependencies reported by the ops endpoints. All but the build info are optional.
type OpsConfig struct {
	Version   string
	BuildTime string
	Registry  *resilience.Registry
	Pingers   map[string]Pinger
	Reporters map[string]StatusReporter
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
	pingers   map[string]Pinger
	reporters map[string]StatusReporter
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		registry:  cfg.Registry,
		pingers:   cfg.Pingers,
		reporters: cfg.Reporters,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	for name, reporter := range h.reporters {
		health.Details[name] = reporter.MetricsSnapshot()
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready - readiness check.
// Not ready when a dependency fails to answer a ping or every gateway breaker is open.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	details := make(map[string]any)
	status := models.HealthStatusOK

	for name, p := range h.pingers {
		if err := p.Ping(ctx); err != nil {
			details[name] = err.Error()
			status = models.HealthStatusFail
			continue
		}
		details[name] = string(models.HealthStatusOK)
	}

	if gateways := h.gatewayStatuses(); len(gateways) > 0 {
		overall := overallStatus(gateways)
		details["gateways"] = string(overall)
		if overall == models.HealthStatusFail {
			status = models.HealthStatusFail
		} else if overall == models.HealthStatusDegraded && status == models.HealthStatusOK {
			status = models.HealthStatusDegraded
		}
	}

	code := http.StatusOK
	if status == models.HealthStatusFail {
		code = http.StatusServiceUnavailable
	}

	health := models.Health{
		Status: status,
		Time:   models.Timestamp(time.Now()),
	}
	if len(details) > 0 {
		health.Details = details
	}
	response.JSON(w, r, code, health)
}

// GatewayStatus handles GET /v1/ops/gateways - circuit breaker state of each gateway.
func (h *OpsHandler) GatewayStatus(w http.ResponseWriter, r *http.Request) {
	gateways := h.gatewayStatuses()
	response.JSON(w, r, http.StatusOK, models.GatewaysStatus{
		Status:   overallStatus(gateways),
		Time:     models.Timestamp(time.Now()),
		Gateways: gateways,
	})
}

func (h *OpsHandler) gatewayStatuses() []models.GatewayStatus {
	if h.registry == nil {
		return []models.GatewayStatus{}
	}

	snapshot := h.registry.Snapshot()
	out := make([]models.GatewayStatus, 0, len(snapshot))
	for _, health := range snapshot {
		out = append(out, models.GatewayStatus{
			Gateway:             health.Name,
			Status:              healthStatus(health),
			CircuitState:        health.CircuitState.String(),
			Requests:            health.Counts.Requests,
			ConsecutiveFailures: health.Counts.ConsecutiveFailures,
			LastSuccessAt:       models.TimestampPtr(health.LastSuccessAt),
			LastFailureAt:       models.TimestampPtr(health.LastFailureAt),
			Message:             health.LastError,
		})
	}
	return out
}

func healthStatus(h *resilience.Health) models.HealthStatus {
	switch {
	case h.IsUnhealthy():
		return models.HealthStatusFail
	case h.IsDegraded():
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}

// overallStatus is FAIL when every gateway fails and DEGRADED when any is not OK.
func overallStatus(gateways []models.GatewayStatus) models.HealthStatus {
	if len(gateways) == 0 {
		return models.HealthStatusOK
	}

	failed := 0
	status := models.HealthStatusOK
	for _, g := range gateways {
		if g.Status == models.HealthStatusFail {
			failed++
		}
		if g.Status != models.HealthStatusOK {
			status = models.HealthStatusDegraded
		}
	}
	if failed == len(gateways) {
		return models.HealthStatusFail
	}
	return status
}
