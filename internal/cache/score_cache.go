package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/feyza/backend/internal/domain/trust"
	"github.com/redis/go-redis/v9"
)

// ScoreTTL bounds how long a cached score may outlive a missed invalidation.
const ScoreTTL = 2 * time.Minute

// ScoreCache is a redis cache-aside layer for trust score reads. A nil client
// disables it and every call becomes a no-op.
type ScoreCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewScoreCache connects to redisURL. An empty URL or a failed ping yields a
// disabled cache rather than an error.
func NewScoreCache(redisURL string, logger *slog.Logger) *ScoreCache {
	if redisURL == "" {
		logger.Info("redis: no URL configured, score cache disabled")
		return &ScoreCache{ttl: ScoreTTL}
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("redis: invalid URL, score cache disabled", "err", err)
		return &ScoreCache{ttl: ScoreTTL}
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("redis: connection failed, score cache disabled", "err", err)
		_ = rdb.Close()
		return &ScoreCache{ttl: ScoreTTL}
	}
	logger.Info("redis: connected, score cache enabled")
	return &ScoreCache{rdb: rdb, ttl: ScoreTTL}
}

// NewScoreCacheWithClient wraps an existing client; used by tests and tools.
func NewScoreCacheWithClient(rdb *redis.Client, ttl time.Duration) *ScoreCache {
	if ttl <= 0 {
		ttl = ScoreTTL
	}
	return &ScoreCache{rdb: rdb, ttl: ttl}
}

func (c *ScoreCache) Enabled() bool {
	return c.rdb != nil
}

// Ping reports redis health; a disabled cache is healthy.
func (c *ScoreCache) Ping(ctx context.Context) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

func (c *ScoreCache) GetScore(ctx context.Context, userID string) (*trust.Score, error) {
	if c.rdb == nil {
		return nil, nil
	}
	data, err := c.rdb.Get(ctx, scoreKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var score trust.Score
	if err := json.Unmarshal(data, &score); err != nil {
		return nil, fmt.Errorf("decode cached score: %w", err)
	}
	return &score, nil
}

func (c *ScoreCache) SetScore(ctx context.Context, score *trust.Score) error {
	if c.rdb == nil || score == nil {
		return nil
	}
	b, err := json.Marshal(score)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, scoreKey(score.UserID), b, c.ttl).Err()
}

func (c *ScoreCache) InvalidateScore(ctx context.Context, userID string) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, scoreKey(userID)).Err()
}

func (c *ScoreCache) Close() error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

func scoreKey(userID string) string {
	return fmt.Sprintf("trust:score:%s", userID)
}
