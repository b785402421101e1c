// Package upstream implements the query adapter for Apple-CMS style VOD
// search APIs. One Search call performs one network request against one site
// and returns the normalized result records.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"vodstream/searchservice/internal/domain"
)

const (
	defaultUserAgent = "vod-stream-search/1.0"
	maxResponseBytes = 8 << 20
)

type Config struct {
	UserAgent string
	Client    *http.Client
}

type Client struct {
	client    *http.Client
	userAgent string
}

func NewClient(cfg Config) *Client {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{client: client, userAgent: userAgent}
}

type apiResponse struct {
	Code json.Number `json:"code"`
	List []apiItem   `json:"list"`
}

type apiItem struct {
	ID       json.Number `json:"vod_id"`
	Name     string      `json:"vod_name"`
	Pic      string      `json:"vod_pic"`
	Year     string      `json:"vod_year"`
	PlayURL  string      `json:"vod_play_url"`
	Remarks  string      `json:"vod_remarks"`
	DoubanID json.Number `json:"vod_douban_id"`
}

// Search queries one site for the given title. The caller bounds the call via
// ctx; a cancelled or expired context aborts the request.
func (c *Client) Search(ctx context.Context, site domain.Site, query string) ([]domain.SearchResult, error) {
	endpoint, err := buildSearchURL(site.API, query)
	if err != nil {
		return nil, fmt.Errorf("site %s: %w", site.Key, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("site %s: build request: %w", site.Key, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("site %s: %w", site.Key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("site %s: unexpected status %d", site.Key, resp.StatusCode)
	}

	var body io.Reader = io.LimitReader(resp.Body, maxResponseBytes)
	// Legacy mainland sites still serve GBK; declared per site in the registry.
	if site.Charset == "gbk" || site.Charset == "gb2312" {
		body = transform.NewReader(body, simplifiedchinese.GBK.NewDecoder())
	}

	payload, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("site %s: read response: %w", site.Key, err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("site %s: decode response: %w", site.Key, err)
	}

	results := make([]domain.SearchResult, 0, len(parsed.List))
	for _, item := range parsed.List {
		title := strings.TrimSpace(item.Name)
		if title == "" {
			continue
		}
		results = append(results, domain.SearchResult{
			ID:         item.ID.String(),
			Title:      title,
			Year:       normalizeYear(item.Year),
			Episodes:   parseEpisodes(item.PlayURL),
			Poster:     strings.TrimSpace(item.Pic),
			DoubanID:   doubanID(item.DoubanID),
			Source:     site.Key,
			SourceName: site.Name,
		})
	}
	return results, nil
}

func buildSearchURL(api, query string) (string, error) {
	base, err := url.Parse(strings.TrimSpace(api))
	if err != nil {
		return "", fmt.Errorf("invalid api endpoint: %w", err)
	}
	values := base.Query()
	values.Set("ac", "videolist")
	values.Set("wd", strings.TrimSpace(query))
	base.RawQuery = values.Encode()
	return base.String(), nil
}

// parseEpisodes extracts playable episode URLs from the CMS play-url field:
// play sources separated by "$$$", episodes by "#", each episode "name$url".
// The first play source wins. A record with no parsable URLs is treated as a
// single-episode title.
func parseEpisodes(raw string) []string {
	source := raw
	if idx := strings.Index(source, "$$$"); idx >= 0 {
		source = source[:idx]
	}

	var episodes []string
	for _, part := range strings.Split(source, "#") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if idx := strings.LastIndex(part, "$"); idx >= 0 {
			part = part[idx+1:]
		}
		if !strings.HasPrefix(part, "http://") && !strings.HasPrefix(part, "https://") {
			continue
		}
		episodes = append(episodes, part)
	}
	if len(episodes) == 0 {
		return []string{""}
	}
	return episodes
}

func normalizeYear(raw string) string {
	value := strings.TrimSpace(raw)
	if len(value) != 4 {
		return domain.YearUnknown
	}
	for _, c := range value {
		if c < '0' || c > '9' {
			return domain.YearUnknown
		}
	}
	return value
}

func doubanID(raw json.Number) string {
	value := raw.String()
	if value == "" || value == "0" {
		return ""
	}
	return value
}
