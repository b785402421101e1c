package apihttp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"vodstream/searchservice/internal/domain"
	"vodstream/searchservice/internal/registry"
)

type fakeSearchService struct {
	lastQuery    string
	lastTier     domain.Tier
	lastIdentity string
	batch        domain.BatchResponse
	all          domain.AllResponse
	err          error
}

func (f *fakeSearchService) SearchBatch(_ context.Context, query string, tier domain.Tier, identity string) (domain.BatchResponse, error) {
	f.lastQuery, f.lastTier, f.lastIdentity = query, tier, identity
	if f.err != nil {
		return domain.BatchResponse{}, f.err
	}
	return f.batch, nil
}

func (f *fakeSearchService) SearchAll(_ context.Context, query, identity string) (domain.AllResponse, error) {
	f.lastQuery, f.lastIdentity = query, identity
	if f.err != nil {
		return domain.AllResponse{}, f.err
	}
	return f.all, nil
}

func (f *fakeSearchService) Providers() (domain.TieredSites, error) {
	return domain.TieredSites{
		High: []domain.Site{{Key: "high1", Name: "High One", API: "https://h.example/api.php", Tier: domain.TierHigh}},
	}, nil
}

func (f *fakeSearchService) Diagnostics() []domain.SiteDiagnostics {
	return []domain.SiteDiagnostics{{Key: "high1", Name: "High One", Tier: domain.TierHigh}}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(service SearchService) http.Handler {
	return NewServer(service, WithLogger(discardLogger())).Handler()
}

func TestBatchEndpoint(t *testing.T) {
	service := &fakeSearchService{
		batch: domain.BatchResponse{
			Results:       []domain.SearchResult{{ID: "1", Title: "Matrix", Episodes: []string{"u"}}},
			Tier:          domain.TierMedium,
			Completed:     true,
			SitesSearched: 2,
			TotalResults:  1,
		},
	}
	handler := newTestHandler(service)

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/search/batch?q=matrix&batch=medium&user=user-7", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if service.lastQuery != "matrix" || service.lastTier != domain.TierMedium || service.lastIdentity != "user-7" {
		t.Fatalf("unexpected call: query=%q tier=%q identity=%q", service.lastQuery, service.lastTier, service.lastIdentity)
	}

	var payload struct {
		Batch        string `json:"batch"`
		Completed    bool   `json:"completed"`
		TotalResults int    `json:"total_results"`
	}
	if err := json.NewDecoder(recorder.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Batch != "medium" || !payload.Completed || payload.TotalResults != 1 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestBatchEndpointEmptyQueryIsOK(t *testing.T) {
	service := &fakeSearchService{batch: domain.BatchResponse{Results: []domain.SearchResult{}, Completed: true}}
	handler := newTestHandler(service)

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/search/batch", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("empty query must not be rejected, got %d", recorder.Code)
	}
	if service.lastQuery != "" {
		t.Fatalf("expected empty query passthrough, got %q", service.lastQuery)
	}
}

func TestBatchEndpointUnknownTierDefaultsHigh(t *testing.T) {
	service := &fakeSearchService{batch: domain.BatchResponse{Completed: true}}
	handler := newTestHandler(service)

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/search/batch?q=x&batch=urgent", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if service.lastTier != domain.TierHigh {
		t.Fatalf("unknown tier must default to high, got %q", service.lastTier)
	}
}

func TestBatchEndpointQueryTooLong(t *testing.T) {
	handler := newTestHandler(&fakeSearchService{})

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/search/batch?q="+strings.Repeat("a", maxQueryLength+1), nil))

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
}

func TestBatchEndpointMethodNotAllowed(t *testing.T) {
	handler := newTestHandler(&fakeSearchService{})

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/api/search/batch?q=x", nil))

	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", recorder.Code)
	}
}

func TestIdentityFromBearerToken(t *testing.T) {
	service := &fakeSearchService{batch: domain.BatchResponse{Completed: true}}
	handler := newTestHandler(service)

	request := httptest.NewRequest(http.MethodGet, "/api/search/batch?q=x", nil)
	request.Header.Set("Authorization", "Bearer token-123")
	handler.ServeHTTP(httptest.NewRecorder(), request)

	if service.lastIdentity != "token-123" {
		t.Fatalf("expected bearer identity, got %q", service.lastIdentity)
	}
}

func TestUserParamWinsOverBearer(t *testing.T) {
	service := &fakeSearchService{batch: domain.BatchResponse{Completed: true}}
	handler := newTestHandler(service)

	request := httptest.NewRequest(http.MethodGet, "/api/search/batch?q=x&user=user-1", nil)
	request.Header.Set("Authorization", "Bearer token-123")
	handler.ServeHTTP(httptest.NewRecorder(), request)

	if service.lastIdentity != "user-1" {
		t.Fatalf("expected user param to win, got %q", service.lastIdentity)
	}
}

func TestSearchEndpoint(t *testing.T) {
	service := &fakeSearchService{
		all: domain.AllResponse{
			Query:        "matrix",
			Results:      []domain.SearchResult{{ID: "1", Title: "Matrix", Episodes: []string{"u"}}},
			Groups:       []domain.Group{{Key: "Matrix-1999-movie", Title: "Matrix"}},
			Sources:      []domain.SourceCount{{Key: "high1", Count: 1}},
			Stages:       []domain.StageStats{{Tier: domain.TierHigh, Results: 1}},
			ShortCircuit: true,
		},
	}
	handler := newTestHandler(service)

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/search?q=matrix", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var payload struct {
		Query        string `json:"query"`
		ShortCircuit bool   `json:"short_circuit"`
	}
	if err := json.NewDecoder(recorder.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Query != "matrix" || !payload.ShortCircuit {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestSearchEndpointRegistryUnavailable(t *testing.T) {
	handler := newTestHandler(&fakeSearchService{err: registry.ErrNoSites})

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/search?q=x", nil))

	if recorder.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", recorder.Code)
	}
}

func TestProvidersEndpoint(t *testing.T) {
	handler := newTestHandler(&fakeSearchService{})

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/search/providers", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	var payload struct {
		Total int `json:"total"`
	}
	if err := json.NewDecoder(recorder.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Total != 1 {
		t.Fatalf("expected total 1, got %d", payload.Total)
	}
}

func TestProvidersHealthEndpoint(t *testing.T) {
	handler := newTestHandler(&fakeSearchService{})

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/search/providers/health", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if !strings.Contains(recorder.Body.String(), "high1") {
		t.Fatalf("expected site diagnostics in body: %s", recorder.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestHandler(&fakeSearchService{})

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := newTestHandler(&fakeSearchService{})

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodOptions, "/api/search?q=x", nil))

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", recorder.Code)
	}
	if recorder.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("expected CORS headers on preflight response")
	}
}

func TestRecoveryMiddlewareCatchesPanic(t *testing.T) {
	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
	handler := recoveryMiddleware(discardLogger(), panicking)

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/search?q=x", nil))

	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", recorder.Code)
	}
}

func TestNormalizeRoute(t *testing.T) {
	cases := map[string]string{
		"/health":                      "/health",
		"/api/search":                  "/api/search",
		"/api/search/batch":            "/api/search/batch",
		"/api/search/providers":        "/api/search/providers",
		"/api/search/providers/health": "/api/search/providers",
		"/unknown":                     "/other",
	}
	for path, want := range cases {
		if got := normalizeRoute(path); got != want {
			t.Fatalf("normalizeRoute(%q) = %q, want %q", path, got, want)
		}
	}
}
