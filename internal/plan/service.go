package plan

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/commutekit/commutekit/pkg/geo"
)

const instrumentationName = "github.com/commutekit/commutekit/internal/plan"

// ServiceConfig holds configuration for the plan service.
type ServiceConfig struct {
	// Gateway is the trip planner backend.
	Gateway Gateway

	// Catalog caches the route table. Built from Gateway if nil.
	Catalog *RouteCatalog

	// Palette colors routes (default: DefaultPalette).
	Palette *Palette

	// Scorer ranks raw options (default: NewDurationScorer(4)).
	Scorer Scorer

	// IsDriving decides which options collapse onto the driving baseline (default: IsDirectCar).
	IsDriving DrivingPredicate

	// Formatter builds the journey summary (default: DefaultJourneyFormatter).
	Formatter JourneyFormatter

	// Tracker receives one event per run (default: NopTracker).
	Tracker Tracker

	// Logger for service operations.
	Logger zerolog.Logger

	// Location is the agency time zone (default: America/New_York).
	Location *time.Location

	// MaxConcurrency bounds each fetch fan-out. Zero means unbounded.
	MaxConcurrency int
}

// Service runs the enrichment and ranking pipeline for commute queries.
type Service struct {
	gateway    Gateway
	resolver   *Resolver
	departures *Departures
	scorer     Scorer
	isDriving  DrivingPredicate
	formatter  JourneyFormatter
	tracker    Tracker
	logger     zerolog.Logger

	tracer      trace.Tracer
	runTotal    metric.Int64Counter
	runDuration metric.Float64Histogram
}

// NewService creates a new plan service.
func NewService(cfg ServiceConfig) (*Service, error) {
	palette := cfg.Palette
	if palette == nil {
		palette = DefaultPalette()
	}

	catalog := cfg.Catalog
	if catalog == nil {
		catalog = NewRouteCatalog(CatalogConfig{Gateway: cfg.Gateway, Logger: cfg.Logger})
	}

	scorer := cfg.Scorer
	if scorer == nil {
		scorer = NewDurationScorer(4)
	}

	isDriving := cfg.IsDriving
	if isDriving == nil {
		isDriving = IsDirectCar
	}

	formatter := cfg.Formatter
	if formatter == nil {
		formatter = DefaultJourneyFormatter{Palette: palette}
	}

	tracker := cfg.Tracker
	if tracker == nil {
		tracker = NopTracker{}
	}

	meter := otel.Meter(instrumentationName)

	runTotal, err := meter.Int64Counter(
		"plan.run.total",
		metric.WithDescription("Total number of plan runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram(
		"plan.run.duration",
		metric.WithDescription("Duration of plan runs in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &Service{
		gateway: cfg.Gateway,
		resolver: NewResolver(ResolverConfig{
			Gateway:        cfg.Gateway,
			Catalog:        catalog,
			Palette:        palette,
			Logger:         cfg.Logger,
			MaxConcurrency: cfg.MaxConcurrency,
		}),
		departures: NewDepartures(DepartureConfig{
			Gateway:        cfg.Gateway,
			Logger:         cfg.Logger,
			Location:       cfg.Location,
			MaxConcurrency: cfg.MaxConcurrency,
		}),
		scorer:      scorer,
		isDriving:   isDriving,
		formatter:   formatter,
		tracker:     tracker,
		logger:      cfg.Logger,
		tracer:      otel.Tracer(instrumentationName),
		runTotal:    runTotal,
		runDuration: runDuration,
	}, nil
}

// Start runs the pipeline in the background. The returned completion resolves exactly once
// and callback, if not nil, is invoked once with the result.
// Cancelling ctx does not interrupt a run in progress.
func (s *Service) Start(ctx context.Context, q *Query, callback func(*Result)) *Completion {
	c := NewCompletion(callback)
	runCtx := context.WithoutCancel(ctx)
	go func() {
		res, _ := s.Plan(runCtx, q)
		c.Resolve(res)
	}()
	return c
}

// Plan runs the pipeline for q. The result is never nil. On failure it carries the classified
// message and the returned error wraps one of the package sentinels.
func (s *Service) Plan(ctx context.Context, q *Query) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	if q == nil {
		q = &Query{}
	}

	ctx, span := s.tracer.Start(ctx, "plan.run", trace.WithAttributes(
		attribute.String("plan.run_id", runID),
		attribute.String("plan.date", q.Date),
	))
	defer span.End()

	// Fetches complete or fail as a unit; callers abandon a run by discarding its result.
	fetchCtx := context.WithoutCancel(ctx)

	logger := s.logger.With().Str("run_id", runID).Logger()
	logger.Debug().
		Str("date", q.Date).
		Int("start_hour", q.StartHour).
		Int("end_hour", q.EndHour).
		Msg("plan run started")

	res, results, err := s.run(fetchCtx, runID, q)
	if err != nil {
		res = s.fail(fetchCtx, runID, q, results, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, res.Message)
		logger.Warn().Err(err).
			Str("message", res.Message).
			Dur("duration", time.Since(start)).
			Msg("plan run failed")
	} else {
		s.track(fetchCtx, &Event{
			Name:     EventFoundRoute,
			RunID:    runID,
			Query:    q,
			Distance: geo.Haversine(q.From.Coordinate(), q.To.Coordinate()),
			Results:  len(res.Options),
			Profile:  res.Summary,
		})
		span.SetAttributes(attribute.Int("plan.options", len(res.Options)))
		logger.Info().
			Int("options", len(res.Options)).
			Bool("baseline", res.Baseline != nil).
			Dur("duration", time.Since(start)).
			Msg("plan run succeeded")
	}

	attrs := metric.WithAttributes(attribute.String("outcome", string(res.Status)))
	s.runTotal.Add(fetchCtx, 1, attrs)
	s.runDuration.Record(fetchCtx, time.Since(start).Seconds(), attrs)

	return res, err
}

// run executes the pipeline stages. results is the number of itineraries the gateway returned.
func (s *Service) run(ctx context.Context, runID string, q *Query) (res *Result, results int, err error) {
	if !q.HasFrom() || !q.HasTo() || !q.ValidCoordinates() {
		return nil, 0, &Error{
			Op:      "validate",
			Code:    "INVALID_QUERY",
			Message: "query endpoints are missing or invalid",
			Err:     ErrInvalidQuery,
		}
	}

	profile, err := s.profile(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	if len(profile.Options) == 0 {
		return nil, 0, &Error{
			Op:      "profile",
			Code:    "NO_OPTIONS",
			Message: "trip planner returned no options",
			Err:     ErrEmptyResult,
		}
	}
	results = len(profile.Options)

	md, err := s.resolve(ctx, profile.Options)
	if err != nil {
		return nil, results, err
	}

	if err := s.populate(ctx, q, profile.Options); err != nil {
		return nil, results, err
	}

	ranked := s.scorer.Score(q, profile.Options)
	if len(ranked) == 0 {
		return nil, 0, &Error{
			Op:      "score",
			Code:    "NO_OPTIONS",
			Message: "no options match the enabled modes",
			Err:     ErrEmptyResult,
		}
	}

	baseline := InjectBaseline(q, ranked, profile, s.isDriving)

	return &Result{
		RunID:    runID,
		Status:   StatusSuccess,
		Options:  ranked,
		Baseline: baseline,
		Journey:  s.formatter.Journey(q, md, ranked),
		Summary:  Summarize(ranked),
		Matches:  profile.InternalMatches,
	}, results, nil
}

func (s *Service) profile(ctx context.Context, q *Query) (*Profile, error) {
	ctx, span := s.tracer.Start(ctx, "plan.profile")
	defer span.End()

	profile, err := s.gateway.Profile(ctx, q)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if profile == nil {
		profile = &Profile{}
	}
	span.SetAttributes(attribute.Int("plan.raw_options", len(profile.Options)))
	return profile, nil
}

func (s *Service) resolve(ctx context.Context, options []*Option) (*Metadata, error) {
	ctx, span := s.tracer.Start(ctx, "plan.resolve")
	defer span.End()

	md, err := s.resolver.Resolve(ctx, options)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("plan.patterns", len(md.PatternIDs)),
		attribute.Int("plan.routes", len(md.RouteIDs)),
	)
	return md, nil
}

func (s *Service) populate(ctx context.Context, q *Query, options []*Option) error {
	ctx, span := s.tracer.Start(ctx, "plan.departures")
	defer span.End()

	if err := s.departures.Populate(ctx, q, options); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// fail classifies err into a failure result. No partial batch is carried over.
func (s *Service) fail(ctx context.Context, runID string, q *Query, results int, err error) *Result {
	outcome := Outcome{
		Query:        q,
		Results:      results,
		ResponseText: ResponseText(err),
	}
	var planErr *Error
	if errors.As(err, &planErr) {
		outcome.Code = planErr.Code
	}

	res := &Result{
		RunID:       runID,
		Status:      StatusFailure,
		Message:     Classify(outcome),
		Err:         err,
		RawResponse: outcome.ResponseText,
	}

	s.track(ctx, &Event{
		Name:  EventFailedFindRoute,
		RunID: runID,
		Query: q,
		Error: res.Message,
	})
	return res
}

func (s *Service) track(ctx context.Context, e *Event) {
	e.Timestamp = time.Now().UTC()
	if err := s.tracker.Track(ctx, e); err != nil {
		s.logger.Error().Err(err).
			Str("run_id", e.RunID).
			Str("event", e.Name).
			Msg("failed to track plan event")
	}
}
