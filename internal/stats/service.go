package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/steventanyang/deployable/internal/types"
)

// Redis keys for the cumulative counters and the broadcast channel.
const (
	KeyRepos           = "deployable:stats:repos"
	KeyFiles           = "deployable:stats:files"
	KeyRecommendations = "deployable:stats:recommendations"
	Channel            = "deployable:stats:updates"
)

// Service aggregates cumulative usage counters in redis and broadcasts
// every change on a pubsub channel. A nil redis client degrades to zero
// stats and no-op increments.
type Service struct {
	rdb *redis.Client
}

// NewService creates the aggregator. rdb may be nil.
func NewService(rdb *redis.Client) *Service {
	return &Service{rdb: rdb}
}

// Current reads the three counters, defaulting missing or unparseable
// values to 0. It never fails: redis errors degrade to zeros.
func (s *Service) Current(ctx context.Context) types.Stats {
	if s.rdb == nil {
		return types.Stats{}
	}

	pipe := s.rdb.Pipeline()
	repos := pipe.Get(ctx, KeyRepos)
	files := pipe.Get(ctx, KeyFiles)
	recs := pipe.Get(ctx, KeyRecommendations)

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		slog.Error("Failed to read stats counters", "error", err)
		return types.Stats{}
	}

	return types.Stats{
		Repos:           parseCounter(repos),
		Files:           parseCounter(files),
		Recommendations: parseCounter(recs),
	}
}

// IncrementAnalysis atomically bumps repos by 1, files and
// recommendations by the given amounts, then reads back the new totals
// and publishes them as one message on the broadcast channel.
func (s *Service) IncrementAnalysis(ctx context.Context, numFiles, numRecommendations int) error {
	if s.rdb == nil {
		slog.Debug("Stats disabled, skipping increment")
		return nil
	}

	pipe := s.rdb.Pipeline()
	pipe.Incr(ctx, KeyRepos)
	pipe.IncrBy(ctx, KeyFiles, int64(numFiles))
	pipe.IncrBy(ctx, KeyRecommendations, int64(numRecommendations))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("incrementing stats counters: %w", err)
	}

	return s.publish(ctx, s.Current(ctx))
}

// Subscribe returns a pubsub subscription to the stats channel. The
// caller owns closing it.
func (s *Service) Subscribe(ctx context.Context) (*redis.PubSub, error) {
	if s.rdb == nil {
		return nil, fmt.Errorf("stats broadcast unavailable: redis not configured")
	}
	return s.rdb.Subscribe(ctx, Channel), nil
}

func (s *Service) publish(ctx context.Context, snapshot types.Stats) error {
	message, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	if err := s.rdb.Publish(ctx, Channel, message).Err(); err != nil {
		return fmt.Errorf("publishing stats update: %w", err)
	}
	return nil
}

func parseCounter(cmd *redis.StringCmd) int64 {
	value, err := cmd.Result()
	if err != nil {
		return 0
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		slog.Warn("Unparseable stats counter", "value", value)
		return 0
	}
	return n
}
