package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/agriassist/internal/domain"
	"github.com/liliang-cn/agriassist/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type chatStub struct {
	err  error
	last *domain.ChatRequest
}

func (s *chatStub) Chat(ctx context.Context, req *domain.ChatRequest) (*domain.ChatResponse, error) {
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return &domain.ChatResponse{SessionID: "s1", Answer: "hello", Source: domain.SourceOffline, Persisted: true}, nil
}

type recommenderStub struct {
	last domain.Location
}

func (s *recommenderStub) Recommend(ctx context.Context, loc domain.Location) (*domain.RecommendationResult, error) {
	s.last = loc
	if loc.Lat > 90 {
		return nil, fmt.Errorf("%w: latitude out of range", domain.ErrInvalidRequest)
	}
	return &domain.RecommendationResult{
		Recommendations: []domain.Recommendation{{PlanID: "life", Name: "Life", Priority: 3}},
	}, nil
}

type assessorStub struct{}

func (assessorStub) Assess(ctx context.Context, loc domain.Location) (*domain.RiskAssessment, error) {
	return &domain.RiskAssessment{
		Weather: domain.WeatherRisk{FloodRisk: domain.RiskLow, DroughtRisk: domain.RiskLow, HeatRisk: domain.RiskLow},
		Soil:    domain.SoilRisk{FertilityRisk: domain.RiskMedium, District: loc.District},
	}, nil
}

type adminStub struct{}

func (adminStub) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	if id != "s1" {
		return nil, domain.ErrNotFound
	}
	return &domain.Session{ID: "s1", UserID: "u1"}, nil
}

func (adminStub) GetUsageStats(ctx context.Context, userID string) (*domain.UsageStats, error) {
	if userID != "u1" {
		return nil, domain.ErrNotFound
	}
	return &domain.UsageStats{UserID: "u1", TotalSessions: 1, TotalMessages: 2}, nil
}

func (adminStub) ListSessions(ctx context.Context, userID string) ([]*domain.Session, error) {
	return []*domain.Session{{ID: "s1", UserID: userID}}, nil
}

func (adminStub) ImportKnowledge(ctx context.Context, entries []domain.KnowledgeEntry) (int, error) {
	return len(entries), nil
}

func (adminStub) SearchKnowledge(ctx context.Context, query string) (*domain.KnowledgeEntry, error) {
	if query == "insurance" {
		return &domain.KnowledgeEntry{Question: "What is insurance?", Category: "insurance"}, nil
	}
	return nil, domain.ErrNoKnowledgeMatch
}

type testServer struct {
	router      *gin.Engine
	chat        *chatStub
	recommender *recommenderStub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	chat := &chatStub{}
	rec := &recommenderStub{}
	r := SetupRouter(Services{
		Chat:        chat,
		Recommender: rec,
		Assessor:    assessorStub{},
		Sessions:    adminStub{},
		Admin:       adminStub{},
		Metrics:     metrics.New().Handler(),
	}, RouterConfig{APIKey: "secret", AllowOrigins: []string{"https://app.example"}, MetricsPath: "/metrics"}, zap.NewNop())

	return &testServer{router: r, chat: chat, recommender: rec}
}

func (s *testServer) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestChatEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/chat", `{"user_id":"u1","message":"What is insurance?","language":"hi"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "offline", body["source"])
	assert.Equal(t, "s1", body["session_id"])
	assert.Equal(t, "hi", s.chat.last.Language)

	w = s.do(http.MethodPost, "/api/chat", `{"user_id":"u1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	s.chat.err = fmt.Errorf("%w: message is blank", domain.ErrInvalidRequest)
	w = s.do(http.MethodPost, "/api/chat", `{"user_id":"u1","message":"  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecommendationsEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/recommendations", `{"lat":0,"lon":77.5,"district":"Anantapur"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.Location{Lat: 0, Lon: 77.5, District: "Anantapur"}, s.recommender.last)
	recs := decode(t, w)["recommendations"].([]any)
	assert.Len(t, recs, 1)

	w = s.do(http.MethodPost, "/api/recommendations", `{"lon":77.5}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/recommendations", `{"lat":95,"lon":77.5}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRiskEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/risk?lat=14.68&lon=77.6&district=Anantapur", "")
	require.Equal(t, http.StatusOK, w.Code)
	soil := decode(t, w)["soil"].(map[string]any)
	assert.Equal(t, "Anantapur", soil["district"])

	w = s.do(http.MethodGet, "/api/risk?lat=14.68", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/sessions/s1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", decode(t, w)["user_id"])

	w = s.do(http.MethodGet, "/api/sessions/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminAuth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/api/admin/users/u1/stats", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/api/admin/users/u1/stats", "", "X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodGet, "/api/admin/users/u1/stats", "", "X-API-Key", "secret")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["total_messages"])

	w = s.do(http.MethodGet, "/api/admin/users/u1/sessions", "", "Authorization", "Bearer secret")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/admin/users/nobody/stats", "", "X-API-Key", "secret")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminKnowledge(t *testing.T) {
	s := newTestServer(t)
	auth := []string{"X-API-Key", "secret"}

	w := s.do(http.MethodGet, "/api/admin/knowledge/search?q=insurance", "", auth...)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "insurance", decode(t, w)["category"])

	w = s.do(http.MethodGet, "/api/admin/knowledge/search?q=xyzzy", "", auth...)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/api/admin/knowledge", `{"entries":[{"question":"Q?","answer":"A."}]}`, auth...)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["imported"])

	w = s.do(http.MethodPost, "/api/admin/knowledge", `{"entries":[]}`, auth...)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodOptions, "/api/chat", "", "Origin", "https://app.example")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))

	w = s.do(http.MethodGet, "/health", "", "Origin", "https://evil.example")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
