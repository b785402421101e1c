package search

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"vodstream/searchservice/internal/domain"
	"vodstream/searchservice/internal/metrics"
)

const (
	siteFailureThreshold = 3
	siteBlockBase        = 2 * time.Minute
	siteBlockMax         = 15 * time.Minute
)

type siteHealth struct {
	consecutiveFailures int
	blockedUntil        time.Time
	lastError           string
	lastSuccessAt       time.Time
	lastFailureAt       time.Time
	lastLatency         time.Duration
	lastTimeout         bool
	lastQuery           string
	totalRequests       int64
	totalFailures       int64
	timeoutCount        int64
}

// healthTracker records per-site outcomes and temporarily blocks sites that
// fail repeatedly. A blocked site is skipped by the fan-out until its block
// window passes.
type healthTracker struct {
	mu    sync.Mutex
	sites map[string]*siteHealth
}

func newHealthTracker() *healthTracker {
	return &healthTracker{sites: make(map[string]*siteHealth)}
}

func (h *healthTracker) isBlocked(siteKey string, now time.Time) (bool, time.Time, string) {
	key := strings.ToLower(strings.TrimSpace(siteKey))
	if key == "" {
		return false, time.Time{}, ""
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	state := h.sites[key]
	if state == nil {
		return false, time.Time{}, ""
	}
	if state.blockedUntil.IsZero() || now.After(state.blockedUntil) {
		return false, time.Time{}, ""
	}
	return true, state.blockedUntil, state.lastError
}

func (h *healthTracker) record(siteKey, query string, err error, latency time.Duration, now time.Time) {
	key := strings.ToLower(strings.TrimSpace(siteKey))
	if key == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	state := h.sites[key]
	if state == nil {
		state = &siteHealth{}
		h.sites[key] = state
	}
	state.totalRequests++
	state.lastQuery = strings.TrimSpace(query)
	if latency > 0 {
		state.lastLatency = latency
		metrics.SiteRequestDuration.WithLabelValues(key).Observe(latency.Seconds())
	}
	state.lastTimeout = isTimeoutLikeError(err)
	if state.lastTimeout {
		state.timeoutCount++
	}

	if err == nil {
		state.consecutiveFailures = 0
		state.blockedUntil = time.Time{}
		state.lastError = ""
		state.lastSuccessAt = now
		metrics.SiteRequestsTotal.WithLabelValues(key, "ok").Inc()
		metrics.SiteAvailable.WithLabelValues(key).Set(1)
		return
	}

	state.consecutiveFailures++
	state.totalFailures++
	state.lastFailureAt = now
	state.lastError = err.Error()

	status := "error"
	if state.lastTimeout {
		status = "timeout"
	}
	metrics.SiteRequestsTotal.WithLabelValues(key, status).Inc()

	if state.consecutiveFailures >= siteFailureThreshold {
		state.blockedUntil = now.Add(exponentialBlockDuration(state.consecutiveFailures))
		metrics.SiteAvailable.WithLabelValues(key).Set(0)
	}
}

// exponentialBlockDuration grows the block window with consecutive failures:
// base × 2^(failures - threshold), capped at siteBlockMax.
func exponentialBlockDuration(consecutiveFailures int) time.Duration {
	exponent := consecutiveFailures - siteFailureThreshold
	if exponent < 0 {
		exponent = 0
	}
	d := siteBlockBase
	for i := 0; i < exponent; i++ {
		d *= 2
		if d > siteBlockMax {
			return siteBlockMax
		}
	}
	return d
}

func isTimeoutLikeError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	value := strings.ToLower(err.Error())
	return strings.Contains(value, "timeout") || strings.Contains(value, "deadline exceeded")
}

func (h *healthTracker) diagnostics(sites []domain.Site) []domain.SiteDiagnostics {
	if len(sites) == 0 {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	items := make([]domain.SiteDiagnostics, 0, len(sites))
	for _, site := range sites {
		item := domain.SiteDiagnostics{
			Key:  site.Key,
			Name: site.Name,
			Tier: site.Tier,
		}
		if state := h.sites[site.Key]; state != nil {
			item.ConsecutiveFailures = state.consecutiveFailures
			if !state.blockedUntil.IsZero() {
				blockedUntil := state.blockedUntil
				item.BlockedUntil = &blockedUntil
			}
			item.LastError = state.lastError
			if !state.lastSuccessAt.IsZero() {
				lastSuccessAt := state.lastSuccessAt
				item.LastSuccessAt = &lastSuccessAt
			}
			if !state.lastFailureAt.IsZero() {
				lastFailureAt := state.lastFailureAt
				item.LastFailureAt = &lastFailureAt
			}
			item.LastLatencyMS = state.lastLatency.Milliseconds()
			item.LastTimeout = state.lastTimeout
			item.LastQuery = state.lastQuery
			item.TotalRequests = state.totalRequests
			item.TotalFailures = state.totalFailures
			item.TimeoutCount = state.timeoutCount
		}
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Key < items[j].Key
	})
	return items
}
