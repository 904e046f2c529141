package analysis

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/steventanyang/deployable/internal/llm"
	"github.com/steventanyang/deployable/internal/types"
)

// AnalyzeBatch runs one chunk of files through a pooled model client and
// returns the parsed recommendations. It never fails the caller: pool,
// network and parse errors all degrade to an empty list (or, for parse
// errors in lenient mode, one synthetic error recommendation). The client
// is returned to the pool on every exit path.
func AnalyzeBatch(ctx context.Context, batch []types.FileContent, pool *llm.Pool, batchIndex int, mode ParseMode, rdb *redis.Client) (recs []types.Recommendation) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in batch analysis", "batch_index", batchIndex, "panic", r)
			recs = []types.Recommendation{}
		}
	}()

	client, err := pool.Get()
	if err != nil {
		slog.Error("Failed to acquire LLM client", "batch_index", batchIndex, "error", err)
		return []types.Recommendation{}
	}
	defer pool.Put(client)

	slog.Info("Analyzing batch", "batch_index", batchIndex, "files", len(batch))

	prompt := llm.AnalysisPrompt(batch)
	response, err := llm.CallWithCache(ctx, client, prompt, rdb)
	if err != nil {
		slog.Error("Batch model call failed", "batch_index", batchIndex, "error", err)
		return []types.Recommendation{}
	}

	recs = ParseRecommendations(response, mode)
	slog.Info("Batch analysis complete", "batch_index", batchIndex, "recommendations", len(recs))
	return recs
}
