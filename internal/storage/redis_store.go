package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkarcreative/pwa-australian-news/internal/model"

	"github.com/redis/go-redis/v9"
)

// RedisStore remembers summarizer outcomes per input text so a re-ingestion
// inside the TTL does not pay for the same model call twice.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func summaryKey(kind, text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("news:summary:%s:%s", kind, hex.EncodeToString(sum[:]))
}

// GetSummary returns a remembered outcome for text, if any.
func (s *RedisStore) GetSummary(ctx context.Context, kind, text string) (model.Summary, bool, error) {
	b, err := s.rdb.Get(ctx, summaryKey(kind, text)).Bytes()
	if err == redis.Nil {
		return model.Summary{}, false, nil
	}
	if err != nil {
		return model.Summary{}, false, err
	}
	var sum model.Summary
	if err := json.Unmarshal(b, &sum); err != nil {
		return model.Summary{}, false, err
	}
	return sum, true, nil
}

// PutSummary remembers an outcome. Unavailable outcomes are never stored so
// the next run retries the provider.
func (s *RedisStore) PutSummary(ctx context.Context, kind, text string, sum model.Summary) error {
	if sum.Outcome == model.OutcomeUnavailable || sum.Outcome == "" {
		return nil
	}
	b, err := json.Marshal(sum)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, summaryKey(kind, text), b, s.ttl).Err()
}
