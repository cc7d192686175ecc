// Package httpapi exposes plan generation and subject data over a JSON HTTP
// API.
package httpapi

import (
	"context"
	"net/http"

	"ai-fitness-coach/internal/app"
	"ai-fitness-coach/internal/plan"
	"ai-fitness-coach/internal/planner"
	"ai-fitness-coach/internal/profile"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Service is the application surface the API serves.
type Service interface {
	SaveSubject(ctx context.Context, s *profile.Subject) error
	AddCheckIn(ctx context.Context, c *profile.CheckIn) error
	GeneratePlan(ctx context.Context, r app.PlanRequest) (*app.GeneratedPlan, error)
	CurrentPlan(ctx context.Context, subjectID string, kind plan.Kind) (*planner.PlanRecord, error)
	PlanHistory(ctx context.Context, subjectID string, kind plan.Kind, limit int) ([]planner.PlanRecord, error)
}

// Server routes HTTP requests to the service.
type Server struct {
	svc      Service
	verifier TokenVerifier
	gatherer prometheus.Gatherer
	log      *zap.Logger
}

// NewServer creates a Server. A nil gatherer disables /metrics.
func NewServer(svc Service, verifier TokenVerifier, gatherer prometheus.Gatherer, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{svc: svc, verifier: verifier, gatherer: gatherer, log: log.Named("http")}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(s.log))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	subjects := router.Group("/v1/subjects/:id")
	subjects.Use(requireAuth(s.verifier), requireSubjectAccess())
	{
		subjects.PUT("/profile", s.putProfile)
		subjects.POST("/check-ins", s.postCheckIn)
		subjects.POST("/plans", s.postPlan)
		subjects.GET("/plans/current", s.getCurrentPlan)
		subjects.GET("/plans", s.listPlans)
	}

	return router
}
