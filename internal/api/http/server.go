package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"vodstream/searchservice/internal/domain"
	"vodstream/searchservice/internal/registry"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type SearchService interface {
	SearchBatch(ctx context.Context, query string, tier domain.Tier, identity string) (domain.BatchResponse, error)
	SearchAll(ctx context.Context, query, identity string) (domain.AllResponse, error)
	Providers() (domain.TieredSites, error)
	Diagnostics() []domain.SiteDiagnostics
}

type Server struct {
	search SearchService
	logger *slog.Logger
}

const maxQueryLength = 500

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func NewServer(searchService SearchService, options ...ServerOption) *Server {
	server := &Server{
		search: searchService,
		logger: slog.Default(),
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/search/providers", s.handleProviders)
	mux.HandleFunc("/api/search/providers/health", s.handleProvidersHealth)
	mux.HandleFunc("/api/search/batch", s.handleSearchBatch)
	mux.HandleFunc("/api/search", s.handleSearch)
	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "vod-search",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	return recoveryMiddleware(s.logger, rateLimitMiddleware(50, 100, corsMiddleware(metricsMiddleware(traced))))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleSearchBatch(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/search/batch" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "search service is not configured")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if len(query) > maxQueryLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "query too long (max 500 characters)")
		return
	}
	tier := domain.NormalizeTier(strings.TrimSpace(r.URL.Query().Get("batch")))
	identity := requestIdentity(r)

	response, err := s.search.SearchBatch(r.Context(), query, tier, identity)
	if err != nil {
		s.logger.Warn("batch search failed",
			slog.String("query", truncate(query, 80)),
			slog.String("tier", string(tier)),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, registry.ErrNoSites) {
			writeError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "search failed")
		return
	}

	s.logger.Info("batch search completed",
		slog.String("query", truncate(query, 80)),
		slog.String("tier", string(tier)),
		slog.Bool("cached", response.Cached),
		slog.Int("totalResults", response.TotalResults),
		slog.Int64("elapsedMs", response.ElapsedMS),
	)
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/search" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "search service is not configured")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if len(query) > maxQueryLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "query too long (max 500 characters)")
		return
	}
	identity := requestIdentity(r)

	response, err := s.search.SearchAll(r.Context(), query, identity)
	if err != nil {
		s.logger.Warn("search failed",
			slog.String("query", truncate(query, 80)),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, registry.ErrNoSites) {
			writeError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "search failed")
		return
	}

	s.logger.Info("search completed",
		slog.String("query", truncate(query, 80)),
		slog.Int("results", len(response.Results)),
		slog.Int("groups", len(response.Groups)),
		slog.Bool("shortCircuit", response.ShortCircuit),
		slog.Int64("elapsedMs", response.ElapsedMS),
	)
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "search service is not configured")
		return
	}
	tiered, err := s.search.Providers()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sites": tiered,
		"total": tiered.Total(),
	})
}

func (s *Server) handleProvidersHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "search service is not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sites": s.search.Diagnostics(),
	})
}

// requestIdentity extracts the caller identity from the user query parameter
// or, failing that, a bearer token. Anonymous requests return "".
func requestIdentity(r *http.Request) string {
	if user := strings.TrimSpace(r.URL.Query().Get("user")); user != "" {
		return user
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
