package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"vodstream/searchservice/internal/domain"
)

// shortCircuitThreshold is the merged-result count past which a fully cached
// high tier makes the remaining tiers redundant.
const shortCircuitThreshold = 20

// SiteSource resolves the configured upstream sites, optionally filtering out
// adult sites.
type SiteSource interface {
	Sites(excludeAdult bool) (domain.TieredSites, error)
	All() []domain.Site
}

// Preferences resolves per-identity search settings.
type Preferences interface {
	AdultFilter(ctx context.Context, identity string) (bool, error)
}

// Service orchestrates tiered searches: cache, fan-out, aggregation. It is
// safe for concurrent use.
type Service struct {
	sites         SiteSource
	executor      *Executor
	health        *healthTracker
	cache         *Cache
	prefs         Preferences
	logger        *slog.Logger
	shortCircuit  int
	cacheDisabled bool
}

type ServiceOption func(*Service)

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPreferences wires a per-identity preference store. Without one, every
// request behaves as if the adult filter is on.
func WithPreferences(prefs Preferences) ServiceOption {
	return func(s *Service) {
		s.prefs = prefs
	}
}

func WithCache(cache *Cache) ServiceOption {
	return func(s *Service) {
		if cache != nil {
			s.cache = cache
		}
	}
}

// WithCacheDisabled turns the result cache off entirely. Mainly for tests and
// debugging; every request then fans out to upstream sites.
func WithCacheDisabled() ServiceOption {
	return func(s *Service) {
		s.cacheDisabled = true
	}
}

func WithShortCircuitThreshold(threshold int) ServiceOption {
	return func(s *Service) {
		if threshold > 0 {
			s.shortCircuit = threshold
		}
	}
}

func WithRetryConfig(cfg RetryConfig) ServiceOption {
	return func(s *Service) {
		s.executor.retry = cfg
	}
}

func NewService(sites SiteSource, adapter Querier, opts ...ServiceOption) *Service {
	health := newHealthTracker()
	svc := &Service{
		sites:        sites,
		health:       health,
		cache:        NewCache(),
		logger:       slog.Default(),
		shortCircuit: shortCircuitThreshold,
	}
	svc.executor = NewExecutor(adapter, health, svc.logger)
	for _, opt := range opts {
		opt(svc)
	}
	svc.executor.logger = svc.logger
	return svc
}

// SearchBatch runs one tier's search for the query. An empty query returns a
// completed empty batch without touching any upstream site. A registry
// failure is the only error path; upstream failures are absorbed into a
// smaller result set.
func (s *Service) SearchBatch(ctx context.Context, query string, tier domain.Tier, identity string) (domain.BatchResponse, error) {
	startedAt := time.Now()
	query = strings.TrimSpace(query)

	response := domain.BatchResponse{
		Results:   []domain.SearchResult{},
		Tier:      tier,
		Completed: true,
	}
	if query == "" {
		response.ElapsedMS = time.Since(startedAt).Milliseconds()
		return response, nil
	}

	tiered, err := s.sites.Sites(s.excludeAdult(ctx, identity))
	if err != nil {
		return domain.BatchResponse{}, err
	}
	sites := tiered.ForTier(tier)
	response.SitesSearched = len(sites)

	results, cached := s.searchStage(ctx, sites, query, tier, identity)
	response.Results = results
	response.Cached = cached
	response.TotalResults = len(results)
	response.ElapsedMS = time.Since(startedAt).Milliseconds()
	return response, nil
}

// SearchAll runs the full high, medium, low sequence and returns the merged,
// aggregated outcome. Tiers run strictly one after another; when the high
// tier is served from cache and already yields at least the short-circuit
// threshold of results, the remaining tiers are skipped.
func (s *Service) SearchAll(ctx context.Context, query, identity string) (domain.AllResponse, error) {
	startedAt := time.Now()
	query = strings.TrimSpace(query)

	response := domain.AllResponse{
		Query:   query,
		Results: []domain.SearchResult{},
		Groups:  []domain.Group{},
		Sources: []domain.SourceCount{},
		Stages:  []domain.StageStats{},
	}
	if query == "" {
		response.ElapsedMS = time.Since(startedAt).Milliseconds()
		return response, nil
	}

	tiered, err := s.sites.Sites(s.excludeAdult(ctx, identity))
	if err != nil {
		return domain.AllResponse{}, err
	}

	merged := make([]domain.SearchResult, 0)
	for _, tier := range domain.Tiers() {
		sites := tiered.ForTier(tier)
		stageStartedAt := time.Now()
		results, cached := s.searchStage(ctx, sites, query, tier, identity)
		merged = append(merged, results...)

		response.Stages = append(response.Stages, domain.StageStats{
			Tier:          tier,
			SitesSearched: len(sites),
			Results:       len(results),
			Cached:        cached,
			ElapsedMS:     time.Since(stageStartedAt).Milliseconds(),
		})

		if tier == domain.TierHigh && cached && len(merged) >= s.shortCircuit {
			response.ShortCircuit = true
			s.logger.Debug("short-circuiting remaining tiers",
				slog.String("query", query),
				slog.Int("results", len(merged)),
			)
			break
		}
	}

	response.Results = merged
	response.Groups = Aggregate(merged, query)
	response.Sources = CountBySource(merged)
	response.ElapsedMS = time.Since(startedAt).Milliseconds()
	return response, nil
}

// searchStage serves one tier from cache when possible, otherwise fans out
// and stores the completed batch.
func (s *Service) searchStage(ctx context.Context, sites []domain.Site, query string, tier domain.Tier, identity string) ([]domain.SearchResult, bool) {
	if !s.cacheDisabled {
		if results, ok := s.cache.Lookup(ctx, query, tier, identity); ok {
			return results, true
		}
	}

	results := s.executor.SearchTier(ctx, sites, query, tier.Timeout())
	if results == nil {
		results = []domain.SearchResult{}
	}
	if !s.cacheDisabled {
		s.cache.Store(ctx, query, results, tier, identity)
	}
	return results, false
}

// excludeAdult resolves the identity's adult-filter preference, falling back
// to filtering when the store is unavailable.
func (s *Service) excludeAdult(ctx context.Context, identity string) bool {
	if s.prefs == nil {
		return true
	}
	filter, err := s.prefs.AdultFilter(ctx, identity)
	if err != nil {
		s.logger.Warn("adult filter lookup failed, filtering by default",
			slog.String("identity", identity),
			slog.String("error", err.Error()),
		)
		return true
	}
	return filter
}

// Providers returns the full tiered site listing, including adult sites.
func (s *Service) Providers() (domain.TieredSites, error) {
	return s.sites.Sites(false)
}

// Diagnostics reports the health tracker's view of every configured site.
func (s *Service) Diagnostics() []domain.SiteDiagnostics {
	return s.health.diagnostics(s.sites.All())
}

// StartBackground launches the cache sweeper. It returns immediately.
func (s *Service) StartBackground(ctx context.Context) {
	if s.cacheDisabled {
		return
	}
	s.cache.StartBackground(ctx)
}
