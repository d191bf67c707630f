package stats

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "coupon:stats"
	defaultBucketTTL = 24 * time.Hour
)

// RedisStore keeps counters in Redis hashes so every instance reports the
// same numbers.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = defaultBucketTTL
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) Record(ctx context.Context, ev Event) error {
	minuteKey := s.minuteKey(ev.At)
	pipe := s.client.TxPipeline()
	pipe.HIncrBy(ctx, s.totalsKey(), string(ev.Outcome), 1)
	pipe.HIncrBy(ctx, minuteKey, string(ev.Outcome), 1)
	pipe.Expire(ctx, minuteKey, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record claim stats: %w", err)
	}
	return nil
}

func (s *RedisStore) Snapshot(ctx context.Context, now time.Time) (Snapshot, error) {
	pipe := s.client.Pipeline()
	totalsCmd := pipe.HGetAll(ctx, s.totalsKey())
	minuteCmd := pipe.HGetAll(ctx, s.minuteKey(now))
	if _, err := pipe.Exec(ctx); err != nil {
		return Snapshot{}, fmt.Errorf("read claim stats: %w", err)
	}

	totals, err := parseCounts(totalsCmd.Val())
	if err != nil {
		return Snapshot{}, err
	}
	lastMinute, err := parseCounts(minuteCmd.Val())
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Totals: totals, LastMinute: lastMinute, At: now}, nil
}

func (s *RedisStore) totalsKey() string {
	return s.prefix + ":totals"
}

func (s *RedisStore) minuteKey(t time.Time) string {
	return s.prefix + ":minute:" + strconv.FormatInt(minuteBucket(t), 10)
}

func parseCounts(raw map[string]string) (map[Outcome]int64, error) {
	out := make(map[Outcome]int64, len(raw))
	for k, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse counter %s: %w", k, err)
		}
		out[Outcome(k)] = n
	}
	return out, nil
}
