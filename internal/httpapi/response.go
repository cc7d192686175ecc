package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"ai-fitness-coach/internal/planner"
	"ai-fitness-coach/internal/profile"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, errorEnvelope{Error: apiError{Message: msg, Code: code}})
}

// respondServiceError maps a service error to a response. Generation failures
// only ever show the generic message; details go to the log.
func (s *Server) respondServiceError(c *gin.Context, err error) {
	var (
		exhausted  *planner.GenerationExhaustedError
		validation *planner.ValidationFailedError
		provider   *planner.ProviderConfigError
	)
	switch {
	case errors.Is(err, profile.ErrSubjectNotFound):
		respondError(c, http.StatusNotFound, "subject_not_found", "subject not found")
	case errors.Is(err, planner.ErrPlanNotFound):
		respondError(c, http.StatusNotFound, "plan_not_found", "no current plan")
	case errors.As(err, &exhausted), errors.As(err, &validation):
		s.log.Warn("plan generation failed", zap.String("path", c.FullPath()), zap.Error(err))
		respondError(c, http.StatusBadGateway, "generation_failed", planner.UserMessage)
	case errors.As(err, &provider):
		s.log.Error("plan provider rejected request", zap.String("path", c.FullPath()), zap.Error(err))
		respondError(c, http.StatusServiceUnavailable, "generation_unavailable", planner.UserMessage)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respondError(c, http.StatusGatewayTimeout, "timeout", planner.UserMessage)
	default:
		s.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "internal", "internal error")
	}
}

type planResponse struct {
	ID           string          `json:"id"`
	Kind         string          `json:"kind"`
	Language     string          `json:"language"`
	PeriodStart  string          `json:"periodStart"`
	PeriodEnd    string          `json:"periodEnd"`
	CreatedAt    time.Time       `json:"createdAt"`
	Current      bool            `json:"current"`
	Attempts     int             `json:"attempts"`
	Plan         json.RawMessage `json:"plan"`
	ShoppingList []string        `json:"shoppingList,omitempty"`
}

func toPlanResponse(rec *planner.PlanRecord) planResponse {
	return planResponse{
		ID:          rec.ID,
		Kind:        string(rec.Kind),
		Language:    rec.Language,
		PeriodStart: rec.PeriodStart.Format(time.DateOnly),
		PeriodEnd:   rec.PeriodEnd.Format(time.DateOnly),
		CreatedAt:   rec.CreatedAt,
		Current:     rec.Current(),
		Attempts:    rec.Attempts,
		Plan:        json.RawMessage(rec.PlanData),
	}
}
