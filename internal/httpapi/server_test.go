package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ai-fitness-coach/internal/app"
	"ai-fitness-coach/internal/auth"
	"ai-fitness-coach/internal/plan"
	"ai-fitness-coach/internal/planner"
	"ai-fitness-coach/internal/profile"
	"ai-fitness-coach/internal/prompt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	subjects  map[string]*profile.Subject
	checkIns  []profile.CheckIn
	requests  []app.PlanRequest
	genErr    error
	current   *planner.PlanRecord
	history   []planner.PlanRecord
	lastKind  plan.Kind
	lastLimit int
}

func newFakeService() *fakeService {
	return &fakeService{subjects: map[string]*profile.Subject{}}
}

func (f *fakeService) SaveSubject(_ context.Context, s *profile.Subject) error {
	f.subjects[s.Profile.SubjectID] = s
	return nil
}

func (f *fakeService) AddCheckIn(_ context.Context, c *profile.CheckIn) error {
	if _, ok := f.subjects[c.SubjectID]; !ok {
		return profile.ErrSubjectNotFound
	}
	c.ID = "ci-1"
	f.checkIns = append(f.checkIns, *c)
	return nil
}

func (f *fakeService) GeneratePlan(_ context.Context, r app.PlanRequest) (*app.GeneratedPlan, error) {
	f.requests = append(f.requests, r)
	if f.genErr != nil {
		return nil, f.genErr
	}
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	return &app.GeneratedPlan{
		Record: &planner.PlanRecord{
			ID: "plan-1", SubjectID: r.SubjectID, Kind: r.Kind, Language: "en",
			PeriodStart: start, PeriodEnd: start.AddDate(0, 0, 6),
			PlanData: []byte(`{"weeklyPlan":{}}`), Attempts: 2, CreatedAt: start,
		},
		ShoppingList: []string{"oats"},
	}, nil
}

func (f *fakeService) CurrentPlan(_ context.Context, _ string, kind plan.Kind) (*planner.PlanRecord, error) {
	f.lastKind = kind
	if f.current == nil {
		return nil, planner.ErrPlanNotFound
	}
	return f.current, nil
}

func (f *fakeService) PlanHistory(_ context.Context, _ string, kind plan.Kind, limit int) ([]planner.PlanRecord, error) {
	f.lastKind, f.lastLimit = kind, limit
	return f.history, nil
}

type testServer struct {
	handler http.Handler
	svc     *fakeService
	issuer  *auth.Issuer
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	issuer, err := auth.NewIssuer("secret", "ai-fitness-coach", time.Hour)
	require.NoError(t, err)
	svc := newFakeService()

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "coach_test_total", Help: "test"}))

	return &testServer{handler: NewServer(svc, issuer, reg, nil).Handler(), svc: svc, issuer: issuer}
}

func (ts *testServer) token(t *testing.T, subject string, role auth.Role) string {
	t.Helper()
	tok, err := ts.issuer.Issue(subject, role)
	require.NoError(t, err)
	return tok
}

func (ts *testServer) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error.Code
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "coach_test_total")
}

func TestAuthorization(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/v1/subjects/subj-1/plans", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodGet, "/v1/subjects/subj-1/plans", "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodGet, "/v1/subjects/subj-2/plans", ts.token(t, "subj-1", auth.RoleClient), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodGet, "/v1/subjects/subj-1/plans", ts.token(t, "subj-1", auth.RoleClient), "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/v1/subjects/subj-2/plans", ts.token(t, "", auth.RoleCoach), "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProfileAndCheckIn(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.token(t, "subj-1", auth.RoleClient)

	rec := ts.do(http.MethodPost, "/v1/subjects/subj-1/check-ins", tok, `{"energyLevel": 6}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "subject_not_found", errorCode(t, rec))

	rec = ts.do(http.MethodPut, "/v1/subjects/subj-1/profile", tok,
		`{"profile": {"subjectId": "someone-else", "name": "Lina", "age": 28, "goals": ["strength"]}, "assessment": {"allergies": ["nuts"]}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, ts.svc.subjects, "subj-1")
	assert.Equal(t, []string{"nuts"}, ts.svc.subjects["subj-1"].Assessment.Allergies)

	rec = ts.do(http.MethodPost, "/v1/subjects/subj-1/check-ins", tok, `{"energyLevel": 6, "notes": "good week"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, ts.svc.checkIns, 1)
	assert.Equal(t, 6, *ts.svc.checkIns[0].EnergyLevel)

	rec = ts.do(http.MethodPut, "/v1/subjects/subj-1/profile", tok, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostPlan(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.token(t, "subj-1", auth.RoleClient)

	rec := ts.do(http.MethodPost, "/v1/subjects/subj-1/plans", tok, `{"kind": "meal", "language": "ar", "days": 7}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp planResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "plan-1", resp.ID)
	assert.Equal(t, "2026-03-02", resp.PeriodStart)
	assert.Equal(t, "2026-03-08", resp.PeriodEnd)
	assert.JSONEq(t, `{"weeklyPlan":{}}`, string(resp.Plan))
	assert.Equal(t, []string{"oats"}, resp.ShoppingList)

	require.Len(t, ts.svc.requests, 1)
	assert.Equal(t, app.PlanRequest{SubjectID: "subj-1", Kind: plan.KindMeal, Language: prompt.Arabic, Days: 7}, ts.svc.requests[0])

	for _, body := range []string{`{"kind": "yoga"}`, `{"kind": "meal", "language": "fr"}`, `{}`} {
		rec = ts.do(http.MethodPost, "/v1/subjects/subj-1/plans", tok, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestPostPlan_FailuresShowGenericMessage(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{
			name:   "exhausted",
			err:    &planner.GenerationExhaustedError{Kind: plan.KindMeal, Attempts: 3, Last: errors.New("status 503: upstream overloaded")},
			status: http.StatusBadGateway,
		},
		{
			name:   "validation",
			err:    &planner.ValidationFailedError{Kind: plan.KindMeal, Issues: []plan.Issue{{Path: "weeklyPlan.monday.meals.0.calories", Message: "must be greater than 0"}}},
			status: http.StatusBadGateway,
		},
		{
			name:   "provider config",
			err:    &planner.ProviderConfigError{Err: errors.New("API key not valid")},
			status: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.svc.genErr = tt.err

			rec := ts.do(http.MethodPost, "/v1/subjects/subj-1/plans", ts.token(t, "subj-1", auth.RoleClient), `{"kind": "meal"}`)
			assert.Equal(t, tt.status, rec.Code)

			var env errorEnvelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			assert.Equal(t, planner.UserMessage, env.Error.Message)
			assert.NotContains(t, rec.Body.String(), "503")
			assert.NotContains(t, rec.Body.String(), "calories")
			assert.NotContains(t, rec.Body.String(), "API key")
		})
	}
}

func TestGetPlans(t *testing.T) {
	ts := newTestServer(t)
	tok := ts.token(t, "subj-1", auth.RoleClient)

	rec := ts.do(http.MethodGet, "/v1/subjects/subj-1/plans/current?kind=workout", tok, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, plan.KindWorkout, ts.svc.lastKind)

	rec = ts.do(http.MethodGet, "/v1/subjects/subj-1/plans/current", tok, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	superseded := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	ts.svc.current = &planner.PlanRecord{ID: "p2", Kind: plan.KindWorkout, PlanData: []byte(`{}`)}
	ts.svc.history = []planner.PlanRecord{*ts.svc.current, {ID: "p1", Kind: plan.KindWorkout, PlanData: []byte(`{}`), SupersededAt: &superseded}}

	rec = ts.do(http.MethodGet, "/v1/subjects/subj-1/plans/current?kind=workout", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var cur planResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cur))
	assert.Equal(t, "p2", cur.ID)
	assert.True(t, cur.Current)

	rec = ts.do(http.MethodGet, "/v1/subjects/subj-1/plans?kind=workout&limit=5", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Plans []planResponse `json:"plans"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Plans, 2)
	assert.False(t, list.Plans[1].Current)
	assert.Equal(t, 5, ts.svc.lastLimit)

	rec = ts.do(http.MethodGet, "/v1/subjects/subj-1/plans?limit=0", tok, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
