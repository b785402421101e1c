package search

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"vodstream/searchservice/internal/domain"
	"vodstream/searchservice/internal/metrics"
)

// maxConcurrentSites limits how many site queries run simultaneously inside
// one tier fan-out, so a tier with dozens of configured sites does not open
// dozens of sockets at once.
const maxConcurrentSites = 10

// Querier performs one upstream search call against one site.
type Querier interface {
	Search(ctx context.Context, site domain.Site, query string) ([]domain.SearchResult, error)
}

// Executor fans a query out across the sites of one tier. It is stateless
// apart from the shared health tracker; SearchTier is safe for concurrent use.
type Executor struct {
	adapter Querier
	health  *healthTracker
	logger  *slog.Logger
	retry   RetryConfig
}

func NewExecutor(adapter Querier, health *healthTracker, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if health == nil {
		health = newHealthTracker()
	}
	return &Executor{
		adapter: adapter,
		health:  health,
		logger:  logger,
		retry:   DefaultRetryConfig(),
	}
}

// SearchTier queries every site concurrently under one shared deadline and
// returns the concatenation of all successful sites' results in site order.
// Site failures and timeouts are absorbed: a failing site contributes nothing
// and never disturbs its siblings. Cancelling ctx cancels all in-flight
// queries.
func (e *Executor) SearchTier(ctx context.Context, sites []domain.Site, query string, timeout time.Duration) []domain.SearchResult {
	if len(sites) == 0 {
		return nil
	}

	tierCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		tierCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	startedAt := time.Now()
	perSite := make([][]domain.SearchResult, len(sites))

	sem := semaphore.NewWeighted(maxConcurrentSites)
	var wg sync.WaitGroup
	for i, site := range sites {
		wg.Add(1)
		go func(index int, site domain.Site) {
			defer wg.Done()

			if err := sem.Acquire(tierCtx, 1); err != nil {
				// Deadline or caller cancellation before this site got a slot.
				return
			}
			defer sem.Release(1)

			now := time.Now()
			if blocked, until, lastErr := e.health.isBlocked(site.Key, now); blocked {
				e.logger.Debug("site skipped, temporarily blocked",
					slog.String("site", site.Key),
					slog.Time("until", until),
					slog.String("lastError", lastErr),
				)
				return
			}

			siteStartedAt := time.Now()
			var items []domain.SearchResult
			err := RetryWithBackoff(tierCtx, e.retry, func() error {
				var err error
				items, err = e.adapter.Search(tierCtx, site, query)
				return err
			})
			e.health.record(site.Key, query, err, time.Since(siteStartedAt), time.Now())

			if err != nil {
				e.logger.Warn("site search failed",
					slog.String("site", site.Key),
					slog.String("query", query),
					slog.Int64("elapsedMs", time.Since(siteStartedAt).Milliseconds()),
					slog.String("error", err.Error()),
				)
				return
			}
			perSite[index] = items
		}(i, site)
	}
	wg.Wait()

	total := 0
	for _, items := range perSite {
		total += len(items)
	}
	merged := make([]domain.SearchResult, 0, total)
	for _, items := range perSite {
		merged = append(merged, items...)
	}

	metrics.TierSearchDuration.WithLabelValues(tierLabel(sites)).Observe(time.Since(startedAt).Seconds())
	return merged
}

func tierLabel(sites []domain.Site) string {
	if len(sites) == 0 {
		return string(domain.TierHigh)
	}
	return string(sites[0].Tier)
}
