package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"vodstream/searchservice/internal/domain"
)

var (
	ErrNoSites       = errors.New("no upstream sites configured")
	ErrDuplicateSite = errors.New("duplicate site key")
)

// Registry holds the configured upstream sites. It is built once at startup
// and read-only afterwards, so concurrent reads need no locking.
type Registry struct {
	sites []domain.Site
}

type sitesFile struct {
	Sites []domain.Site `json:"sites"`
}

// Load reads the site list from a JSON config file. An empty path falls back
// to the built-in defaults.
func Load(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return New(defaultSites())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sites config: %w", err)
	}

	var file sitesFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse sites config: %w", err)
	}
	sites := file.Sites
	if len(sites) == 0 {
		// Allow a bare array as well as the {"sites": [...]} wrapper.
		if err := json.Unmarshal(data, &sites); err != nil {
			return nil, fmt.Errorf("parse sites config: %w", err)
		}
	}
	return New(sites)
}

// New validates the site list and builds a registry. Site keys must be
// non-empty and unique; tier values are normalized to high/medium/low.
func New(sites []domain.Site) (*Registry, error) {
	if len(sites) == 0 {
		return nil, ErrNoSites
	}

	seen := make(map[string]struct{}, len(sites))
	cleaned := make([]domain.Site, 0, len(sites))
	for _, site := range sites {
		key := strings.ToLower(strings.TrimSpace(site.Key))
		if key == "" {
			return nil, errors.New("site key is required")
		}
		if _, exists := seen[key]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSite, key)
		}
		seen[key] = struct{}{}

		site.Key = key
		site.Name = strings.TrimSpace(site.Name)
		if site.Name == "" {
			site.Name = key
		}
		site.API = strings.TrimSpace(site.API)
		if site.API == "" {
			return nil, fmt.Errorf("site %s: api endpoint is required", key)
		}
		site.Tier = domain.NormalizeTier(string(site.Tier))
		site.Charset = strings.ToLower(strings.TrimSpace(site.Charset))
		cleaned = append(cleaned, site)
	}
	return &Registry{sites: cleaned}, nil
}

// Sites partitions the configured sites by tier, dropping adult-flagged sites
// when excludeAdult is set. Slice order within a tier follows config order.
func (r *Registry) Sites(excludeAdult bool) (domain.TieredSites, error) {
	if r == nil || len(r.sites) == 0 {
		return domain.TieredSites{}, ErrNoSites
	}

	var tiered domain.TieredSites
	for _, site := range r.sites {
		if excludeAdult && site.IsAdult {
			continue
		}
		switch site.Tier {
		case domain.TierMedium:
			tiered.Medium = append(tiered.Medium, site)
		case domain.TierLow:
			tiered.Low = append(tiered.Low, site)
		default:
			tiered.High = append(tiered.High, site)
		}
	}
	return tiered, nil
}

// All returns every configured site regardless of tier or adult flag.
func (r *Registry) All() []domain.Site {
	if r == nil {
		return nil
	}
	return append([]domain.Site(nil), r.sites...)
}

func defaultSites() []domain.Site {
	return []domain.Site{
		{Key: "heimuer", Name: "黑木耳", API: "https://json.heimuer.xyz/api.php/provide/vod", Tier: domain.TierHigh},
		{Key: "ffzy", Name: "非凡影视", API: "http://ffzy5.tv/api.php/provide/vod", Tier: domain.TierHigh},
		{Key: "tyyszy", Name: "天涯资源", API: "https://tyyszy.com/api.php/provide/vod", Tier: domain.TierMedium},
		{Key: "zy360", Name: "360资源", API: "https://360zy.com/api.php/provide/vod", Tier: domain.TierMedium},
		{Key: "wolong", Name: "卧龙资源", API: "https://wolongzyw.com/api.php/provide/vod", Tier: domain.TierLow},
		{Key: "jisu", Name: "极速资源", API: "https://jszyapi.com/api.php/provide/vod", Tier: domain.TierLow},
	}
}
