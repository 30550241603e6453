package oracle

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisSource reads quotes published to Redis by external price
// feeders. The feeder writes the 8-decimal integer price to
// "price:{feed}" and the unix-second update time to "price:{feed}:ts".
type RedisSource struct {
	rdb  *redis.Client
	feed string
}

// NewRedisSource creates a source reading the given feed ID.
func NewRedisSource(rdb *redis.Client, feed string) *RedisSource {
	return &RedisSource{rdb: rdb, feed: feed}
}

func (s *RedisSource) LatestQuote(ctx context.Context) (Quote, error) {
	raw, err := s.rdb.Get(ctx, priceKey(s.feed)).Result()
	if err != nil {
		return Quote{}, fmt.Errorf("feed %s: %w", s.feed, err)
	}
	price, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Quote{}, fmt.Errorf("feed %s: malformed price %q: %w", s.feed, raw, err)
	}

	q := Quote{Price: price}

	// Missing timestamp leaves UpdatedAt zero; the adapter's staleness
	// check then rejects the quote unless the check is disabled.
	if ts, err := s.rdb.Get(ctx, priceTSKey(s.feed)).Result(); err == nil {
		if sec, err := strconv.ParseInt(ts, 10, 64); err == nil {
			q.UpdatedAt = time.Unix(sec, 0)
		}
	}
	return q, nil
}

func priceKey(feed string) string   { return fmt.Sprintf("price:%s", feed) }
func priceTSKey(feed string) string { return fmt.Sprintf("price:%s:ts", feed) }
