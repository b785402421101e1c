package domain

import "time"

// Tier is the priority class of an upstream site. It controls both the order
// in which sites are queried and the timeout budget for their fan-out.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

const (
	highTierTimeout   = 3 * time.Second
	mediumTierTimeout = 5 * time.Second
	lowTierTimeout    = 8 * time.Second
)

// YearUnknown is the sentinel used when an upstream site reports no usable year.
const YearUnknown = "unknown"

func NormalizeTier(raw string) Tier {
	switch Tier(raw) {
	case TierMedium:
		return TierMedium
	case TierLow:
		return TierLow
	default:
		return TierHigh
	}
}

// Timeout returns the fan-out budget for the tier. Unknown tiers get the
// high-tier budget, matching NormalizeTier's fallback.
func (t Tier) Timeout() time.Duration {
	switch t {
	case TierMedium:
		return mediumTierTimeout
	case TierLow:
		return lowTierTimeout
	default:
		return highTierTimeout
	}
}

// Tiers lists the tiers in orchestration order.
func Tiers() []Tier {
	return []Tier{TierHigh, TierMedium, TierLow}
}

// SearchResult is one item returned by one upstream site. A result belongs to
// exactly one site and is never mutated after the adapter produces it.
type SearchResult struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Year       string   `json:"year"`
	Episodes   []string `json:"episodes"`
	Poster     string   `json:"poster,omitempty"`
	DoubanID   string   `json:"douban_id,omitempty"`
	Source     string   `json:"source"`
	SourceName string   `json:"source_name"`
}

// IsMovie reports whether the result denotes a movie (exactly one episode)
// rather than a series.
func (r SearchResult) IsMovie() bool {
	return len(r.Episodes) == 1
}

// TypeKey returns the content-type component of the aggregation group key.
func (r SearchResult) TypeKey() string {
	if r.IsMovie() {
		return "movie"
	}
	return "tv"
}

// Site describes one upstream search provider. Sites are owned by the
// registry and read-only everywhere else.
type Site struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	API     string `json:"api"`
	Tier    Tier   `json:"tier"`
	IsAdult bool   `json:"is_adult,omitempty"`
	Charset string `json:"charset,omitempty"`
}

// TieredSites is the registry's partition of sites by priority tier.
type TieredSites struct {
	High   []Site `json:"high"`
	Medium []Site `json:"medium"`
	Low    []Site `json:"low"`
}

func (t TieredSites) ForTier(tier Tier) []Site {
	switch tier {
	case TierMedium:
		return t.Medium
	case TierLow:
		return t.Low
	default:
		return t.High
	}
}

func (t TieredSites) Total() int {
	return len(t.High) + len(t.Medium) + len(t.Low)
}

// BatchResponse is the outcome of one tier's search, mirroring the payload of
// the batch endpoint.
type BatchResponse struct {
	Results       []SearchResult `json:"results"`
	Tier          Tier           `json:"batch"`
	Completed     bool           `json:"completed"`
	Cached        bool           `json:"cached"`
	SitesSearched int            `json:"sites_searched"`
	TotalResults  int            `json:"total_results"`
	ElapsedMS     int64          `json:"elapsed_ms"`
}

// StageStats summarizes one tier stage of a full orchestrated search.
type StageStats struct {
	Tier          Tier  `json:"tier"`
	SitesSearched int   `json:"sites_searched"`
	Results       int   `json:"results"`
	Cached        bool  `json:"cached"`
	ElapsedMS     int64 `json:"elapsed_ms"`
}

// AllResponse is the merged outcome of the full high→medium→low sequence.
type AllResponse struct {
	Query        string         `json:"query"`
	Results      []SearchResult `json:"results"`
	Groups       []Group        `json:"groups"`
	Sources      []SourceCount  `json:"sources"`
	Stages       []StageStats   `json:"stages"`
	ShortCircuit bool           `json:"short_circuit"`
	ElapsedMS    int64          `json:"elapsed_ms"`
}

// Group is a cluster of results believed to denote the same logical title.
// Display metadata comes from the first member; members keep insertion order.
type Group struct {
	Key     string         `json:"key"`
	Title   string         `json:"title"`
	Year    string         `json:"year"`
	Type    string         `json:"type"`
	Members []SearchResult `json:"members"`
}

// SourceCount tallies how many results one site contributed to a result set.
type SourceCount struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// SiteDiagnostics exposes the health tracker's view of one site.
type SiteDiagnostics struct {
	Key                 string     `json:"key"`
	Name                string     `json:"name"`
	Tier                Tier       `json:"tier"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	BlockedUntil        *time.Time `json:"blockedUntil,omitempty"`
	LastError           string     `json:"lastError,omitempty"`
	LastSuccessAt       *time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *time.Time `json:"lastFailureAt,omitempty"`
	LastLatencyMS       int64      `json:"lastLatencyMs,omitempty"`
	LastTimeout         bool       `json:"lastTimeout,omitempty"`
	LastQuery           string     `json:"lastQuery,omitempty"`
	TotalRequests       int64      `json:"totalRequests,omitempty"`
	TotalFailures       int64      `json:"totalFailures,omitempty"`
	TimeoutCount        int64      `json:"timeoutCount,omitempty"`
}
