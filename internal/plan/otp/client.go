// Package otp provides a client for the OpenTripPlanner profile routing and index APIs.
package otp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/commutekit/commutekit/internal/plan"
	"github.com/commutekit/commutekit/internal/provider/resilience"
	"github.com/commutekit/commutekit/internal/telemetry"
)

const (
	// GatewayName identifies this gateway.
	GatewayName = "otp"

	// DefaultBaseURL is the default OpenTripPlanner router path.
	DefaultBaseURL = "http://localhost:8080/otp/routers/default"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultLimit is the default number of profile options requested.
	DefaultLimit = 10
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the OpenTripPlanner client.
type ClientConfig struct {
	// BaseURL is the router base URL (optional, defaults to a local OTP).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 30s).
	Timeout time.Duration

	// Limit is the number of profile options requested (optional, defaults to 10).
	Limit int

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Metrics records request metrics (optional).
	Metrics *telemetry.GatewayMetrics

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OpenTripPlanner API client. It implements plan.Gateway.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	limit      int
	metrics    *telemetry.GatewayMetrics
	logger     zerolog.Logger
}

var _ plan.Gateway = (*Client)(nil)

// NewClient creates a new OpenTripPlanner client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	limit := cfg.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(GatewayName)
		clientCfg.Timeout = timeout
		clientCfg.Registry = cfg.Registry
		clientCfg.Logger = cfg.Logger
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		limit:      limit,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}
}

// Name returns the gateway name.
func (c *Client) Name() string {
	return GatewayName
}

// Profile runs a profile routing query.
func (c *Client) Profile(ctx context.Context, q *plan.Query) (*plan.Profile, error) {
	var resp profileResponse
	if err := c.getJSON(ctx, "profile", "/profile?"+c.profileParams(q).Encode(), &resp); err != nil {
		return nil, err
	}

	profile := resp.toProfile()

	c.logger.Debug().
		Int("option_count", len(profile.Options)).
		Int("external_matches", profile.ExternalMatches).
		Msg("received profile from trip planner")

	return profile, nil
}

// Routes returns the full route table.
func (c *Client) Routes(ctx context.Context) ([]*plan.Route, error) {
	var resp []otpRoute
	if err := c.getJSON(ctx, "routes", "/index/routes", &resp); err != nil {
		return nil, err
	}

	routes := make([]*plan.Route, 0, len(resp))
	for i := range resp {
		routes = append(routes, resp[i].toRoute())
	}
	return routes, nil
}

// Pattern returns one pattern by id.
func (c *Client) Pattern(ctx context.Context, id string) (*plan.Pattern, error) {
	var resp otpPattern
	if err := c.getJSON(ctx, "pattern", "/index/patterns/"+url.PathEscape(id), &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		resp.ID = id
	}
	return resp.toPattern(), nil
}

// StopTimes returns the schedule of a stop on date (YYYYMMDD), grouped by pattern.
func (c *Client) StopTimes(ctx context.Context, stopID, date string) ([]*plan.PatternTimes, error) {
	var resp []otpStopTimes
	path := "/index/stops/" + url.PathEscape(stopID) + "/stoptimes/" + url.PathEscape(date)
	if err := c.getJSON(ctx, "stoptimes", path, &resp); err != nil {
		return nil, err
	}
	return toPatternTimes(resp), nil
}

// profileParams builds the profile routing query for q.
func (c *Client) profileParams(q *plan.Query) url.Values {
	v := url.Values{}
	v.Set("from", q.From.Coordinate().String())
	v.Set("to", q.To.Coordinate().String())
	v.Set("date", q.Date)
	v.Set("startTime", clock(q.StartHour))
	v.Set("endTime", clock(q.EndHour))

	access := []string{string(plan.ModeWalk)}
	if q.Modes.Bike {
		access = append(access, string(plan.ModeBicycle))
	}
	if q.Modes.Car {
		access = append(access, string(plan.ModeCar))
	}
	v.Set("accessModes", strings.Join(access, ","))
	v.Set("directModes", strings.Join(access, ","))
	v.Set("egressModes", string(plan.ModeWalk))

	var transit []string
	if q.Modes.Bus {
		transit = append(transit, string(plan.ModeBus))
	}
	if q.Modes.Train {
		transit = append(transit, "TRAINISH")
	}
	v.Set("transitModes", strings.Join(transit, ","))
	v.Set("limit", strconv.Itoa(c.limit))

	return v
}

func clock(hour int) string {
	return fmt.Sprintf("%02d:00", hour)
}

// getJSON fetches path and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, op, path string, out any) (err error) {
	start := time.Now()
	size := 0
	defer func() {
		c.metrics.RecordRequest(op, time.Since(start), size, err)
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("operation", op).
		Str("path", path).
		Msg("requesting trip planner")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &plan.Error{
			Op:      op,
			Code:    "REQUEST_FAILED",
			Message: "failed to reach trip planner",
			Err:     fmt.Errorf("%w: %w", plan.ErrTransport, err),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &plan.Error{
			Op:      op,
			Code:    "READ_FAILED",
			Message: "failed to read trip planner response",
			Err:     fmt.Errorf("%w: %w", plan.ErrTransport, err),
		}
	}
	size = len(body)

	if resp.StatusCode != http.StatusOK {
		c.logger.Error().
			Str("operation", op).
			Str("path", path).
			Int("status_code", resp.StatusCode).
			Str("body", string(body)).
			Msg("trip planner returned an error")
		return handleErrorResponse(op, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.logger.Error().Err(err).
			Str("operation", op).
			Str("path", path).
			Str("body", string(body)).
			Msg("failed to decode trip planner response")
		return &plan.Error{
			Op:      op,
			Code:    "INVALID_JSON",
			Message: "decoding response",
			Body:    string(body),
			Err:     fmt.Errorf("%w: %w", plan.ErrDecode, err),
		}
	}

	return nil
}

// handleErrorResponse maps non-200 responses to transport errors carrying the raw body.
func handleErrorResponse(op string, statusCode int, body []byte) error {
	code := fmt.Sprintf("HTTP_%d", statusCode)
	if bytes.Contains(body, []byte(plan.VertexNotFoundMarker)) {
		code = "VERTEX_NOT_FOUND"
	}
	return &plan.Error{
		Op:      op,
		Code:    code,
		Message: fmt.Sprintf("trip planner returned status %d", statusCode),
		Body:    string(body),
		Err:     plan.ErrTransport,
	}
}
