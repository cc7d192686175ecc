package httpapi

import (
	"net/http"
	"strconv"

	"ai-fitness-coach/internal/app"
	"ai-fitness-coach/internal/plan"
	"ai-fitness-coach/internal/profile"
	"ai-fitness-coach/internal/prompt"

	"github.com/gin-gonic/gin"
)

func (s *Server) putProfile(c *gin.Context) {
	var body profile.Subject
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	body.Profile.SubjectID = c.Param("id")

	if err := s.svc.SaveSubject(c.Request.Context(), &body); err != nil {
		s.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) postCheckIn(c *gin.Context) {
	var body profile.CheckIn
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	body.ID = ""
	body.SubjectID = c.Param("id")

	if err := s.svc.AddCheckIn(c.Request.Context(), &body); err != nil {
		s.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, body)
}

type planRequestBody struct {
	Kind     string `json:"kind" binding:"required"`
	Language string `json:"language"`
	Days     int    `json:"days"`
}

func (s *Server) postPlan(c *gin.Context) {
	var body planRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	kind, err := plan.ParseKind(body.Kind)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_kind", err.Error())
		return
	}
	var lang prompt.Language
	if body.Language != "" {
		if lang, err = prompt.ParseLanguage(body.Language); err != nil {
			respondError(c, http.StatusBadRequest, "invalid_language", err.Error())
			return
		}
	}

	gen, err := s.svc.GeneratePlan(c.Request.Context(), app.PlanRequest{
		SubjectID: c.Param("id"),
		Kind:      kind,
		Language:  lang,
		Days:      body.Days,
	})
	if err != nil {
		s.respondServiceError(c, err)
		return
	}

	resp := toPlanResponse(gen.Record)
	resp.ShoppingList = gen.ShoppingList
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) getCurrentPlan(c *gin.Context) {
	kind, err := plan.ParseKind(c.Query("kind"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid_kind", err.Error())
		return
	}
	rec, err := s.svc.CurrentPlan(c.Request.Context(), c.Param("id"), kind)
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPlanResponse(rec))
}

func (s *Server) listPlans(c *gin.Context) {
	var kind plan.Kind
	if q := c.Query("kind"); q != "" {
		k, err := plan.ParseKind(q)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid_kind", err.Error())
			return
		}
		kind = k
	}
	limit := 10
	if q := c.Query("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 || n > 100 {
			respondError(c, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	recs, err := s.svc.PlanHistory(c.Request.Context(), c.Param("id"), kind, limit)
	if err != nil {
		s.respondServiceError(c, err)
		return
	}
	out := make([]planResponse, len(recs))
	for i := range recs {
		out[i] = toPlanResponse(&recs[i])
	}
	c.JSON(http.StatusOK, gin.H{"plans": out})
}
