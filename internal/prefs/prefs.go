// Package prefs resolves per-identity search settings. Today that is a single
// flag: whether adult sites are filtered out of a search.
package prefs

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Static returns the same adult-filter setting for every identity. Used when
// no preference store is configured.
type Static struct {
	Filter bool
}

func (s Static) AdultFilter(_ context.Context, _ string) (bool, error) {
	return s.Filter, nil
}

const redisPrefsKeyFormat = "vsearch:user:%s:filter_adult"

// RedisStore reads per-identity settings from Redis. A missing key means the
// identity never opted out, so the filter stays on.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) AdultFilter(ctx context.Context, identity string) (bool, error) {
	if identity == "" {
		return true, nil
	}
	value, err := s.client.Get(ctx, fmt.Sprintf(redisPrefsKeyFormat, identity)).Result()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return true, fmt.Errorf("read adult filter: %w", err)
	}
	filter, err := strconv.ParseBool(value)
	if err != nil {
		return true, fmt.Errorf("parse adult filter %q: %w", value, err)
	}
	return filter, nil
}

// SetAdultFilter persists the identity's filter setting with no expiry.
func (s *RedisStore) SetAdultFilter(ctx context.Context, identity string, filter bool) error {
	if identity == "" {
		return fmt.Errorf("identity required")
	}
	if err := s.client.Set(ctx, fmt.Sprintf(redisPrefsKeyFormat, identity), strconv.FormatBool(filter), 0).Err(); err != nil {
		return fmt.Errorf("write adult filter: %w", err)
	}
	return nil
}
