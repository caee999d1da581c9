package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commutekit/commutekit/internal/api"
	"github.com/commutekit/commutekit/internal/api/handler"
	"github.com/commutekit/commutekit/internal/api/models"
	"github.com/commutekit/commutekit/internal/plan"
	"github.com/commutekit/commutekit/internal/provider/resilience"
)

// stubPlanner returns a fixed result and records the last query.
type stubPlanner struct {
	mu    sync.Mutex
	query *plan.Query
	res   *plan.Result
	err   error
}

func (p *stubPlanner) Plan(_ context.Context, q *plan.Query) (*plan.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.query = q
	return p.res, p.err
}

func (p *stubPlanner) lastQuery() *plan.Query {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.query
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type stubReporter map[string]any

func (r stubReporter) MetricsSnapshot() map[string]any { return r }

func successResult() *plan.Result {
	return &plan.Result{
		RunID:  "run-1",
		Status: plan.StatusSuccess,
		Options: []*plan.Option{
			{Summary: "Bus 45", Modes: []string{"WALK", "BUS"}, Time: 1800},
		},
		Journey: &plan.Journey{Patterns: []plan.JourneyPattern{}},
		Summary: &plan.Summary{AllModes: "WALK,BUS"},
	}
}

func newTestRouter(planner handler.Planner) http.Handler {
	return newTestRouterWithConfig(api.RouterConfig{Planner: planner})
}

func newTestRouterWithConfig(cfg api.RouterConfig) http.Handler {
	cfg.Version = "test"
	cfg.BuildTime = "2024-01-01T00:00:00Z"
	cfg.Logger = zerolog.New(io.Discard)
	if cfg.Planner == nil {
		cfg.Planner = &stubPlanner{res: successResult()}
	}
	return api.NewRouter(cfg)
}

func validPlanBody() []byte {
	body, _ := json.Marshal(models.PlanRequest{
		Origin:      &models.Endpoint{Lat: 38.8977, Lon: -77.0365},
		Destination: &models.Endpoint{Lat: 38.8719, Lon: -77.0563},
		Date:        "2024-03-04",
		StartHour:   7,
		EndHour:     9,
		Modes:       []string{"bus", "walk"},
	})
	return body
}

func postPlan(router http.Handler, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/plans", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	return problem
}

func TestRouter_HealthCheck(t *testing.T) {
	router := newTestRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))

	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])
}

func TestRouter_HealthCheck_IncludesReporters(t *testing.T) {
	router := newTestRouterWithConfig(api.RouterConfig{
		Reporters: map[string]handler.StatusReporter{
			"routeRefresh": stubReporter{"total_refreshes": 2},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))

	refresh, ok := health.Details["routeRefresh"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), refresh["total_refreshes"])
}

func TestRouter_ReadinessCheck(t *testing.T) {
	tests := []struct {
		name       string
		pingers    map[string]handler.Pinger
		wantCode   int
		wantStatus models.HealthStatus
	}{
		{"no dependencies", nil, http.StatusOK, models.HealthStatusOK},
		{"database up", map[string]handler.Pinger{"database": stubPinger{}}, http.StatusOK, models.HealthStatusOK},
		{"database down", map[string]handler.Pinger{"database": stubPinger{err: errors.New("connection refused")}}, http.StatusServiceUnavailable, models.HealthStatusFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouterWithConfig(api.RouterConfig{Pingers: tt.pingers})

			req := httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)

			var health models.Health
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
			assert.Equal(t, tt.wantStatus, health.Status)
		})
	}
}

func TestRouter_GatewayStatus(t *testing.T) {
	registry := resilience.NewRegistry()
	cfg := resilience.DefaultClientConfig("otp")
	cfg.Registry = registry
	resilience.NewClient(cfg)
	registry.RecordSuccess("otp")

	router := newTestRouterWithConfig(api.RouterConfig{Registry: registry})

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/gateways", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var status models.GatewaysStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))

	assert.Equal(t, models.HealthStatusOK, status.Status)
	require.Len(t, status.Gateways, 1)
	assert.Equal(t, "otp", status.Gateways[0].Gateway)
	assert.Equal(t, "closed", status.Gateways[0].CircuitState)
	assert.NotNil(t, status.Gateways[0].LastSuccessAt)
	assert.Nil(t, status.Gateways[0].LastFailureAt)
}

func TestRouter_GatewayStatus_NoRegistry(t *testing.T) {
	router := newTestRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/gateways", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"gateways":[]`)
}

func TestRouter_CreatePlan(t *testing.T) {
	planner := &stubPlanner{res: successResult()}
	router := newTestRouter(planner)

	w := postPlan(router, validPlanBody())

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp models.PlanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, plan.StatusSuccess, resp.Status)
	require.Len(t, resp.Options, 1)
	assert.Equal(t, "Bus 45", resp.Options[0].Summary)

	q := planner.lastQuery()
	require.NotNil(t, q)
	assert.Equal(t, "2024-03-04", q.Date)
	assert.Equal(t, plan.ModeSet{Bus: true, Walk: true}, q.Modes)
	require.NotNil(t, q.From)
	assert.Equal(t, 38.8977, q.From.Lat)
}

func TestRouter_CreatePlan_FailureStatuses(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		message  string
		wantCode int
	}{
		{"missing endpoint", plan.ErrInvalidQuery, plan.MsgSpecifyBoth, http.StatusOK},
		{"no itineraries", plan.ErrEmptyResult, plan.MsgWidenWindow, http.StatusOK},
		{"transport", &plan.Error{Op: "profile", Message: "status 500", Err: plan.ErrTransport}, plan.MsgNoResults, http.StatusBadGateway},
		{"decode", &plan.Error{Op: "profile", Message: "bad body", Err: plan.ErrDecode}, plan.MsgNoResults, http.StatusBadGateway},
		{"resolution", &plan.Error{Op: "resolve", Message: "unknown pattern", Err: plan.ErrResolution}, plan.MsgNoResults, http.StatusBadGateway},
		{"unexpected", errors.New("boom"), plan.MsgNoResults, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			planner := &stubPlanner{
				res: &plan.Result{RunID: "run-2", Status: plan.StatusFailure, Message: tt.message},
				err: tt.err,
			}
			router := newTestRouter(planner)

			w := postPlan(router, validPlanBody())

			assert.Equal(t, tt.wantCode, w.Code)
			switch tt.wantCode {
			case http.StatusOK:
				var resp models.PlanResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, plan.StatusFailure, resp.Status)
				assert.Equal(t, tt.message, resp.Message)
				assert.Empty(t, resp.Options)
			case http.StatusBadGateway:
				problem := decodeProblem(t, w)
				assert.Equal(t, models.ProblemTypeBadGateway, problem.Type)
				assert.Equal(t, "run-2", problem.RunID)
				assert.Equal(t, tt.message, problem.Detail)
			default:
				problem := decodeProblem(t, w)
				assert.Equal(t, models.ProblemTypeInternal, problem.Type)
				assert.NotContains(t, w.Body.String(), "boom")
			}
		})
	}
}

func TestRouter_CreatePlan_ValidationError(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
		wantCode  string
	}{
		{"missing date", `{"startHour":7,"endHour":9}`, "date", "REQUIRED"},
		{"malformed date", `{"date":"03/04/2024","startHour":7,"endHour":9}`, "date", "DATETIME"},
		{"window reversed", `{"date":"2024-03-04","startHour":9,"endHour":7}`, "endHour", "GTFIELD"},
		{"unknown mode", `{"date":"2024-03-04","startHour":7,"endHour":9,"modes":["ferry"]}`, "modes[0]", "ONEOF"},
		{"latitude out of range", `{"origin":{"lat":91,"lon":0},"date":"2024-03-04","startHour":7,"endHour":9}`, "origin.lat", "LTE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			planner := &stubPlanner{res: successResult()}
			router := newTestRouter(planner)

			w := postPlan(router, []byte(tt.body))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

			problem := decodeProblem(t, w)
			assert.Equal(t, models.ProblemTypeValidation, problem.Type)
			assert.NotEmpty(t, problem.TraceID)
			require.NotEmpty(t, problem.Errors)
			assert.Equal(t, tt.wantField, problem.Errors[0].Field)
			assert.Equal(t, tt.wantCode, problem.Errors[0].Code)
			assert.Nil(t, planner.lastQuery())
		})
	}
}

func TestRouter_CreatePlan_InvalidJSON(t *testing.T) {
	router := newTestRouter(nil)

	for _, body := range []string{`{"date":`, `{"date":"2024-03-04","endHour":9,"extra":true}`} {
		w := postPlan(router, []byte(body))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid JSON body", decodeProblem(t, w).Detail)
	}
}

func TestRouter_CreatePlan_BodyTooLarge(t *testing.T) {
	router := newTestRouter(nil)

	body := `{"date":"2024-03-04","origin":{"address":"` + strings.Repeat("a", 70<<10) + `"}}`
	w := postPlan(router, []byte(body))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "request body too large", decodeProblem(t, w).Detail)
}

func TestRouter_CreatePlan_UnsupportedMediaType(t *testing.T) {
	router := newTestRouter(nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/plans", strings.NewReader("date=2024-03-04"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Equal(t, models.ProblemTypeUnsupportedMedia, decodeProblem(t, w).Type)
}

func TestRouter_CreatePlan_RateLimited(t *testing.T) {
	router := newTestRouterWithConfig(api.RouterConfig{PlanRateLimit: 1})

	first := postPlan(router, validPlanBody())
	second := postPlan(router, validPlanBody())

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
}

func TestRouter_RequireTLS(t *testing.T) {
	router := newTestRouterWithConfig(api.RouterConfig{RequireTLS: true})

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	req.Header.Set("X-Forwarded-Proto", "http")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, models.ProblemTypeTLSRequired, decodeProblem(t, w).Type)
}

func TestRouter_RequestID_Generated(t *testing.T) {
	router := newTestRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	requestID := w.Header().Get("X-Request-Id")
	assert.NotEmpty(t, requestID)
	assert.True(t, strings.HasPrefix(requestID, "req_"))
}

func TestRouter_RequestID_Preserved(t *testing.T) {
	router := newTestRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	req.Header.Set("X-Request-Id", "client-provided-id")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, "client-provided-id", w.Header().Get("X-Request-Id"))
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/nonexistent", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, models.ProblemTypeNotFound, decodeProblem(t, w).Type)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router := newTestRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/plans", http.NoBody)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, models.ProblemTypeMethodNotAllowed, decodeProblem(t, w).Type)
}
