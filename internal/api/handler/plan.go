package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/commutekit/commutekit/internal/api/middleware"
	"github.com/commutekit/commutekit/internal/api/models"
	"github.com/commutekit/commutekit/internal/api/response"
	"github.com/commutekit/commutekit/internal/plan"
)

const maxPlanBodyBytes = 64 << 10

// Planner runs one planning query.
type Planner interface {
	Plan(ctx context.Context, q *plan.Query) (*plan.Result, error)
}

// PlanHandler handles plan runs.
type PlanHandler struct {
	planner  Planner
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewPlanHandler creates a new PlanHandler.
func NewPlanHandler(planner Planner, logger zerolog.Logger) *PlanHandler {
	validate := validator.New()
	validate.RegisterTagNameFunc(jsonFieldName)

	return &PlanHandler{
		planner:  planner,
		validate: validate,
		logger:   logger,
	}
}

// CreatePlan handles POST /v1/plans - run the enrichment and ranking pipeline for one query.
func (h *PlanHandler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPlanBodyBytes)

	var req models.PlanRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.BadRequest(w, r, "request body too large", nil)
			return
		}
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			response.BadRequest(w, r, "request validation failed", fieldErrors(verrs))
			return
		}
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	res, err := h.planner.Plan(r.Context(), req.Query())
	switch {
	case err == nil,
		errors.Is(err, plan.ErrInvalidQuery),
		errors.Is(err, plan.ErrEmptyResult):
		response.JSON(w, r, http.StatusOK, models.NewPlanResponse(res))
	case errors.Is(err, plan.ErrTransport),
		errors.Is(err, plan.ErrDecode),
		errors.Is(err, plan.ErrResolution):
		response.BadGateway(w, r, res.RunID, res.Message)
	default:
		h.logger.Error().Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Str("run_id", res.RunID).
			Msg("plan run failed unexpectedly")
		response.InternalError(w, r, "an unexpected error occurred")
	}
}

func fieldErrors(verrs validator.ValidationErrors) []models.FieldError {
	out := make([]models.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, models.FieldError{
			Field:   fieldPath(fe.Namespace()),
			Message: fieldMessage(fe),
			Code:    strings.ToUpper(fe.Tag()),
		})
	}
	return out
}

// fieldPath strips the root struct name: "PlanRequest.origin.lat" -> "origin.lat".
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "datetime":
		return "must be a YYYY-MM-DD date"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "gtfield":
		return "must be greater than " + lowerFirst(fe.Param())
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "is invalid"
	}
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return fld.Name
	}
	return name
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
