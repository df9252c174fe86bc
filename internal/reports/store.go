package reports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spendboard/spendboard/internal/aggregation"
)

const (
	keyPrefix = "month:"

	fieldTeamSummary     = "team_summary"
	fieldCategorySummary = "category_summary"
	fieldRawTransactions = "raw_transactions"
	fieldExchangeRate    = "exchange_rate"

	scanBatch = 100
)

// Store persists the latest aggregation result per period.
type Store interface {
	Save(ctx context.Context, period string, result *aggregation.Result) error
	// Load returns found=false, with a nil error, when the period was never stored.
	Load(ctx context.Context, period string) (*aggregation.Result, bool, error)
	Periods(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
}

// RedisStore keeps each period in a Redis hash with one field per result component.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStore wraps client. A zero ttl keeps entries until cleared.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func periodKey(period string) string {
	return keyPrefix + period
}

// Save writes the three result components and the exchange rate under the period key.
func (s *RedisStore) Save(ctx context.Context, period string, result *aggregation.Result) error {
	if result == nil {
		return errors.New("reports: nil result")
	}
	fields := make(map[string]any, 4)
	for name, value := range map[string]any{
		fieldTeamSummary:     result.TeamSummary,
		fieldCategorySummary: result.CategorySummary,
		fieldRawTransactions: result.RawTransactions,
	} {
		raw, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("reports: encode %s: %w", name, err)
		}
		fields[name] = raw
	}
	fields[fieldExchangeRate] = strconv.FormatFloat(result.ExchangeRate, 'f', -1, 64)

	key := periodKey(period)
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fields)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("reports: save %s: %w", key, err)
	}
	return nil
}

// Load reassembles a stored result.
func (s *RedisStore) Load(ctx context.Context, period string) (*aggregation.Result, bool, error) {
	key := periodKey(period)
	data, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, false, fmt.Errorf("reports: load %s: %w", key, err)
	}
	if len(data) == 0 {
		return nil, false, nil
	}

	var result aggregation.Result
	for name, dest := range map[string]any{
		fieldTeamSummary:     &result.TeamSummary,
		fieldCategorySummary: &result.CategorySummary,
		fieldRawTransactions: &result.RawTransactions,
	} {
		raw, ok := data[name]
		if !ok {
			return nil, false, fmt.Errorf("reports: load %s: missing field %s", key, name)
		}
		if err := json.Unmarshal([]byte(raw), dest); err != nil {
			return nil, false, fmt.Errorf("reports: decode %s.%s: %w", key, name, err)
		}
	}
	if raw, ok := data[fieldExchangeRate]; ok {
		if rate, err := strconv.ParseFloat(raw, 64); err == nil {
			result.ExchangeRate = rate
		}
	}
	return &result, true, nil
}

// Periods returns the stored period keys in ascending order.
func (s *RedisStore) Periods(ctx context.Context) ([]string, error) {
	keys, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}
	periods := make([]string, 0, len(keys))
	for _, key := range keys {
		periods = append(periods, strings.TrimPrefix(key, keyPrefix))
	}
	sort.Strings(periods)
	return periods, nil
}

// Clear removes every stored period.
func (s *RedisStore) Clear(ctx context.Context) error {
	keys, err := s.scan(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("reports: clear: %w", err)
	}
	return nil
}

func (s *RedisStore) scan(ctx context.Context) ([]string, error) {
	var keys []string
	seen := make(map[string]struct{})
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("reports: scan: %w", err)
	}
	return keys, nil
}
