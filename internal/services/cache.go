package services

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"

	"spamcheck-backend/internal/models"
)

type cacheStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// CachedPredictor serves repeated submissions from Redis. Only successful
// classifications are cached, and keys hold a hash of the text.
type CachedPredictor struct {
	next  Predictor
	store cacheStore
	ttl   time.Duration
}

func NewCachedPredictor(next Predictor, store cacheStore, ttl time.Duration) *CachedPredictor {
	return &CachedPredictor{next: next, store: store, ttl: ttl}
}

func CacheKey(text string) string {
	sum := blake2b.Sum256([]byte(text))
	return "prediction:" + hex.EncodeToString(sum[:])
}

func (c *CachedPredictor) Predict(ctx context.Context, text string) (models.PredictionResult, error) {
	key := CacheKey(text)

	cached, err := c.store.Get(ctx, key).Result()
	switch {
	case err == nil:
		if label, ok := models.ParseLabel(cached); ok {
			return models.PredictionResult{Label: label}, nil
		}
		log.WithField("key", key).Warn("ignoring malformed cache entry")
	case errors.Is(err, redis.Nil):
	default:
		log.WithError(err).Warn("prediction cache read failed")
	}

	result, err := c.next.Predict(ctx, text)
	if err != nil || result.IsError() {
		return result, err
	}

	if err := c.store.Set(ctx, key, string(result.Label), c.ttl).Err(); err != nil {
		log.WithError(err).Warn("prediction cache write failed")
	}
	return result, nil
}
