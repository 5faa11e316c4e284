package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/yecs/internal/database"
	"github.com/ZanzyTHEbar/yecs/internal/monitoring"
	"github.com/ZanzyTHEbar/yecs/internal/ratelimit"
	"github.com/ZanzyTHEbar/yecs/internal/scoring"
	"github.com/ZanzyTHEbar/yecs/internal/security"
	"github.com/ZanzyTHEbar/yecs/internal/service"
	"github.com/ZanzyTHEbar/yecs/internal/store"
)

type testServer struct {
	router  *gin.Engine
	history *store.Memory
	metrics *monitoring.Metrics
}

func newTestServer(t *testing.T, limiter *ratelimit.RateLimiter) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := database.DefaultConfig()
	cfg.DataDir = t.TempDir()
	db, err := database.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	history := store.NewMemory()
	metrics := monitoring.NewMetrics()
	svc, err := service.New(service.DefaultConfig(), history, service.WithMetrics(metrics))
	require.NoError(t, err)

	router := NewRouter(Deps{
		Service:        svc,
		Repository:     database.NewRepository(db),
		DB:             db,
		Redis:          database.WrapRedisClient(nil),
		Limiter:        limiter,
		Metrics:        metrics,
		RequestTimeout: 5 * time.Second,
		Version:        "test",
	})
	return &testServer{router: router, history: history, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var out map[string]interface{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func (s *testServer) createUser(t *testing.T, email string, age int) string {
	t.Helper()
	w, body := s.do(t, http.MethodPost, "/api/users", map[string]interface{}{
		"email": email, "first_name": "Ada", "last_name": "Osei", "age": age,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return body["user_id"].(string)
}

func businessProfile() map[string]interface{} {
	return map[string]interface{}{
		"business_name":         "Osei Foods",
		"industry":              "Food Service",
		"education_level":       "Bachelor's Degree",
		"business_plan_quality": 0.75,
		"revenue_projection":    120000,
		"years_of_experience":   3,
	}
}

func financialData() map[string]interface{} {
	return map[string]interface{}{
		"monthly_income":        5000,
		"monthly_expenses":      3500,
		"savings_amount":        9000,
		"debt_amount":           12000,
		"utility_payment_score": 0.9,
		"rent_payment_score":    0.8,
	}
}

func (s *testServer) onboard(t *testing.T, email string) string {
	t.Helper()
	id := s.createUser(t, email, 30)

	w, _ := s.do(t, http.MethodPost, "/api/users/"+id+"/business-profile", businessProfile())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w, _ = s.do(t, http.MethodPost, "/api/users/"+id+"/financial-data", financialData())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return id
}

func TestStatusEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	for _, path := range []string{"/", "/health"} {
		w, body := s.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, "YECS API", body["service"])
		assert.Equal(t, "test", body["version"])
	}
}

func TestCreateUser(t *testing.T) {
	s := newTestServer(t, nil)

	w, body := s.do(t, http.MethodPost, "/api/users", map[string]interface{}{
		"email": "Ada@Example.com", "first_name": "Ada", "last_name": "Osei", "age": 30,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, body["user_id"])
	assert.Equal(t, "ada@example.com", body["email"])
	assert.Equal(t, "User created successfully", body["message"])

	w, body = s.do(t, http.MethodPost, "/api/users", map[string]interface{}{
		"email": "ada@example.com", "first_name": "A", "last_name": "O", "age": 40,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "User with this email already exists", body["error"])
}

func TestCreateUser_ValidationNamesField(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name  string
		body  interface{}
		field string
	}{
		{"missing age", map[string]interface{}{"email": "a@b.co", "first_name": "A", "last_name": "B"}, "age"},
		{"bad email", map[string]interface{}{"email": "nope", "first_name": "A", "last_name": "B", "age": 30}, "email"},
		{"too young", map[string]interface{}{"email": "a@b.co", "first_name": "A", "last_name": "B", "age": 12}, "age"},
		{"first of several", map[string]interface{}{"last_name": "B"}, "email"},
		{"not json", "{", "body"},
		{"not an object", "[1,2]", "body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := s.do(t, http.MethodPost, "/api/users", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.field, body["field"])
			assert.True(t, strings.HasPrefix(body["error"].(string), tt.field+":"), body["error"])
		})
	}
}

func TestProfileEndpointsRequireUser(t *testing.T) {
	s := newTestServer(t, nil)

	for _, path := range []string{"business-profile", "financial-data", "calculate-score"} {
		w, body := s.do(t, http.MethodPost, "/api/users/missing/"+path, businessProfile())
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Equal(t, "User not found", body["error"])
	}
}

func TestFinancialDataValidation(t *testing.T) {
	s := newTestServer(t, nil)
	id := s.createUser(t, "fin@example.com", 30)

	payload := financialData()
	delete(payload, "monthly_income")
	w, body := s.do(t, http.MethodPost, "/api/users/"+id+"/financial-data", payload)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "monthly_income", body["field"])

	payload = financialData()
	payload["rent_payment_score"] = 1.5
	w, body = s.do(t, http.MethodPost, "/api/users/"+id+"/financial-data", payload)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "rent_payment_score", body["field"])
}

func TestCalculateScore_RequiresSubmissions(t *testing.T) {
	s := newTestServer(t, nil)
	id := s.createUser(t, "partial@example.com", 30)

	w, body := s.do(t, http.MethodPost, "/api/users/"+id+"/calculate-score", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Business profile not found", body["error"])

	w, _ = s.do(t, http.MethodPost, "/api/users/"+id+"/business-profile", businessProfile())
	require.Equal(t, http.StatusCreated, w.Code)

	w, body = s.do(t, http.MethodPost, "/api/users/"+id+"/calculate-score", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Financial data not found", body["error"])
	assert.Equal(t, 0, s.history.Len())
}

func TestCalculateScore_FullFlow(t *testing.T) {
	s := newTestServer(t, nil)
	id := s.onboard(t, "flow@example.com")

	w, body := s.do(t, http.MethodPost, "/api/users/"+id+"/calculate-score", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	score := int(body["yecs_score"].(float64))
	assert.GreaterOrEqual(t, score, scoring.MinScore)
	assert.LessOrEqual(t, score, scoring.MaxScore)
	assert.Equal(t, id, body["user_id"])
	assert.NotEmpty(t, body["score_id"])
	assert.Contains(t, []interface{}{"LOW", "MEDIUM", "HIGH", "VERY_HIGH"}, body["risk_level"])

	components := body["component_scores"].(map[string]interface{})
	for _, c := range scoring.Components() {
		v, ok := components[string(c)].(float64)
		require.True(t, ok, c)
		assert.InDelta(t, v, float64(int(v*10+0.5))/10, 1e-9, "%s has more than one decimal", c)
	}

	w, _ = s.do(t, http.MethodPost, "/api/users/"+id+"/calculate-score", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, body = s.do(t, http.MethodGet, "/api/users/"+id+"/scores", nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := body["score_history"].([]interface{})
	require.Len(t, history, 2)
	first := history[0].(map[string]interface{})
	second := history[1].(map[string]interface{})
	firstAt, err := time.Parse(time.RFC3339Nano, first["created_at"].(string))
	require.NoError(t, err)
	secondAt, err := time.Parse(time.RFC3339Nano, second["created_at"].(string))
	require.NoError(t, err)
	assert.False(t, firstAt.Before(secondAt))
	assert.Equal(t, "food_service", first["demographics"].(map[string]interface{})["industry"])
}

func TestScoreHistory_UnknownUserIsEmpty(t *testing.T) {
	s := newTestServer(t, nil)

	w, body := s.do(t, http.MethodGet, "/api/users/nobody/scores", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["score_history"])
	assert.NotNil(t, body["score_history"])
}

func TestBiasAnalysis_EmptyHistory(t *testing.T) {
	s := newTestServer(t, nil)

	w, body := s.do(t, http.MethodPost, "/api/bias-analysis", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["bias_detected"])
	assert.Contains(t, body["bias_report"], "# YECS Bias Detection Report")

	analysis := body["bias_analysis"].(map[string]interface{})
	for _, attr := range scoring.DemographicAttributes() {
		res := analysis[attr].(map[string]interface{})
		assert.Equal(t, true, res["insufficient_sample"])
		assert.Nil(t, res["disparity_ratio"])
	}
}

func TestBiasAnalysis_DetectsDisparity(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	for i := 0; i < 200; i++ {
		industry, favorable := "technology", i%10 < 9
		if i >= 100 {
			industry, favorable = "retail", i%2 == 0
		}
		risk := scoring.RiskHigh
		if favorable {
			risk = scoring.RiskMedium
		}
		require.NoError(t, s.history.Append(ctx, scoring.ScoreRecord{
			ScoreID:      fmt.Sprintf("s-%d", i),
			UserID:       fmt.Sprintf("u-%d", i),
			YECSScore:    600,
			RiskLevel:    risk,
			CreatedAt:    time.Now().UTC(),
			Demographics: scoring.DemographicSnapshot{AgeBracket: "25_34", EducationLevel: "bachelor", Industry: industry},
		}))
	}

	w, body := s.do(t, http.MethodPost, "/api/bias-analysis", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["bias_detected"])

	industry := body["bias_analysis"].(map[string]interface{})["industry"].(map[string]interface{})
	assert.Equal(t, true, industry["bias_detected"])
	assert.InDelta(t, 0.556, industry["disparity_ratio"].(float64), 0.001)
	assert.Contains(t, body["bias_report"], "**BIAS DETECTED**")
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	id := s.onboard(t, "metrics@example.com")
	w, _ := s.do(t, http.MethodPost, "/api/users/"+id+"/calculate-score", nil)
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "yecs_scores_total")
	assert.Contains(t, rec.Body.String(), `route="/api/users/:id/calculate-score"`)
}

func TestRateLimitedScoring(t *testing.T) {
	cfg := ratelimit.DefaultConfig()
	cfg.ScoringPerMinute = 1
	limiter := ratelimit.NewRateLimiter(database.WrapRedisClient(nil), cfg, nil, nil)
	t.Cleanup(limiter.Close)

	s := newTestServer(t, limiter)
	id := s.onboard(t, "limited@example.com")

	w, _ := s.do(t, http.MethodPost, "/api/users/"+id+"/calculate-score", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, body := s.do(t, http.MethodPost, "/api/users/"+id+"/calculate-score", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Rate limit exceeded", body["error"])
	assert.Equal(t, 1, s.history.Len())

	w, body = s.do(t, http.MethodGet, "/api/rate-limit/status", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "memory", body["backend"])
}

func TestSecurityHardening(t *testing.T) {
	s := newTestServer(t, nil)

	w, _ := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader("email=a@example.com"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestOversizedChunkedBodyIs413(t *testing.T) {
	s := newTestServer(t, nil)

	body := `{"email":"` + strings.Repeat("a", int(security.DefaultMaxBodyBytes)) + `@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = -1
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "body", resp["field"])
	assert.Contains(t, resp["error"], "byte limit")
}
