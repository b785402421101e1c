package search

import (
	"sort"
	"strconv"
	"strings"

	"vodstream/searchservice/internal/domain"
)

// Aggregate folds a merged result set into deduplicated groups keyed by
// normalized title, year and content type. Group order is deterministic:
// groups whose title contains the query come first, then newer years before
// older with unknown years last, then the group key as a tiebreaker. Members
// inside a group keep their merge order.
func Aggregate(results []domain.SearchResult, query string) []domain.Group {
	grouped := make(map[string]*domain.Group)
	order := make([]string, 0)

	for _, item := range results {
		key := groupKey(item)
		group, ok := grouped[key]
		if !ok {
			group = &domain.Group{
				Key:   key,
				Title: item.Title,
				Year:  yearOrUnknown(item.Year),
				Type:  item.TypeKey(),
			}
			grouped[key] = group
			order = append(order, key)
		}
		group.Members = append(group.Members, item)
	}

	groups := make([]domain.Group, 0, len(order))
	for _, key := range order {
		groups = append(groups, *grouped[key])
	}

	normalizedQuery := stripSpace(strings.ToLower(query))
	sort.SliceStable(groups, func(i, j int) bool {
		matchI := groupMatchesQuery(groups[i], normalizedQuery)
		matchJ := groupMatchesQuery(groups[j], normalizedQuery)
		if matchI != matchJ {
			return matchI
		}
		yearI, okI := parseYear(groups[i].Year)
		yearJ, okJ := parseYear(groups[j].Year)
		if okI != okJ {
			return okI
		}
		if okI && yearI != yearJ {
			return yearI > yearJ
		}
		return groups[i].Key < groups[j].Key
	})
	return groups
}

func groupMatchesQuery(group domain.Group, normalizedQuery string) bool {
	if normalizedQuery == "" {
		return false
	}
	return strings.Contains(stripSpace(strings.ToLower(group.Title)), normalizedQuery)
}

func parseYear(year string) (int, bool) {
	if year == "" || year == domain.YearUnknown {
		return 0, false
	}
	value, err := strconv.Atoi(year)
	if err != nil {
		return 0, false
	}
	return value, true
}

func yearOrUnknown(year string) string {
	if year == "" {
		return domain.YearUnknown
	}
	return year
}

// CountBySource tallies merged results per originating site, ordered by
// descending count with the site key breaking ties.
func CountBySource(results []domain.SearchResult) []domain.SourceCount {
	counts := make(map[string]*domain.SourceCount)
	keys := make([]string, 0)
	for _, item := range results {
		entry, ok := counts[item.Source]
		if !ok {
			entry = &domain.SourceCount{Key: item.Source, Name: item.SourceName}
			counts[item.Source] = entry
			keys = append(keys, item.Source)
		}
		entry.Count++
	}

	out := make([]domain.SourceCount, 0, len(keys))
	for _, key := range keys {
		out = append(out, *counts[key])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}
