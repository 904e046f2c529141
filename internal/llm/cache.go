package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ResponseCacheTTL bounds how long an identical prompt reuses a cached
// model response.
const ResponseCacheTTL = 30 * time.Minute

// CallWithCache wraps a model call with a content-hash-keyed redis cache.
// A nil redis client disables caching; cache read and write failures are
// logged and swallowed so they never affect the call itself.
func CallWithCache(ctx context.Context, client Client, prompt string, rdb *redis.Client) (string, error) {
	if rdb == nil {
		return client.CallModel(ctx, prompt)
	}

	hash := sha256.Sum256([]byte(prompt))
	cacheKey := "llm:response:" + hex.EncodeToString(hash[:])

	cached, err := rdb.Get(ctx, cacheKey).Result()
	if err == nil {
		slog.Debug("LLM cache hit", "key", cacheKey)
		return cached, nil
	}
	if err != redis.Nil {
		slog.Warn("LLM cache read failed", "error", err)
	}

	response, err := client.CallModel(ctx, prompt)
	if err != nil {
		return "", err
	}

	if err := rdb.Set(ctx, cacheKey, response, ResponseCacheTTL).Err(); err != nil {
		slog.Warn("LLM cache write failed", "error", err)
	}

	return response, nil
}
