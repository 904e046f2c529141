package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/steventanyang/deployable/internal/llm"
	"github.com/steventanyang/deployable/internal/stream"
	"github.com/steventanyang/deployable/internal/types"
)

// Fetcher is the repository-content collaborator the orchestrator needs.
type Fetcher interface {
	ListFilenames(ctx context.Context, repoURL string) ([]string, error)
	GetFileContentBatch(ctx context.Context, repoURL string, paths []string) []types.FileContent
}

// StatsRecorder receives best-effort usage counter updates.
type StatsRecorder interface {
	IncrementAnalysis(ctx context.Context, numFiles, numRecommendations int) error
}

// Result is one finished analysis.
type Result struct {
	Repository        string                 `json:"repository"`
	Recommendations   []types.Recommendation `json:"recommendations"`
	AnalysisTimestamp string                 `json:"analysis_timestamp"`
}

// Options configures a Service.
type Options struct {
	ChunkSize int
	WorkerCap int
	ParseMode ParseMode

	// EmitRecommendationEvents additionally streams one event per
	// individual finding next to the per-chunk progress events.
	EmitRecommendationEvents bool
}

// Service is the analysis orchestrator: it fetches file contents, chunks
// them, fans chunks out across bounded workers backed by a client pool,
// merges recommendations in completion order, and either returns the
// merged result or streams events to the registry.
type Service struct {
	fetcher  Fetcher
	registry *stream.Registry
	stats    StatsRecorder
	factory  func() (llm.Client, error)
	rdb      *redis.Client
	opts     Options

	// sem bounds model-call concurrency across all in-flight analyses.
	sem chan struct{}
}

// NewService wires an orchestrator. registry, stats and rdb may be nil
// (no streaming, no stats, no response cache respectively).
func NewService(fetcher Fetcher, registry *stream.Registry, stats StatsRecorder, factory func() (llm.Client, error), rdb *redis.Client, opts Options) *Service {
	if opts.ChunkSize < 1 {
		opts.ChunkSize = 3
	}
	if opts.WorkerCap < 1 {
		opts.WorkerCap = 8
	}

	return &Service{
		fetcher:  fetcher,
		registry: registry,
		stats:    stats,
		factory:  factory,
		rdb:      rdb,
		opts:     opts,
		sem:      make(chan struct{}, opts.WorkerCap),
	}
}

// Analyze runs one synchronous analysis and returns the merged result.
func (s *Service) Analyze(ctx context.Context, repoURL string, importantFiles types.KeyFiles) (Result, error) {
	return s.run(ctx, repoURL, importantFiles, "")
}

// AnalyzeStreaming runs one analysis in streaming mode, pushing progress
// and result events onto the registry queue for analysisID. It fails
// before doing any work when no stream is registered for the id. A fatal
// failure mid-run pushes a terminal error event so the connected consumer
// does not stall.
func (s *Service) AnalyzeStreaming(ctx context.Context, repoURL string, importantFiles types.KeyFiles, analysisID string) error {
	if s.registry == nil || !s.registry.Exists(analysisID) {
		return fmt.Errorf("%w: %s", stream.ErrNotFound, analysisID)
	}

	_, err := s.run(ctx, repoURL, importantFiles, analysisID)
	if err != nil {
		if pubErr := s.registry.Publish(analysisID, stream.NewErrorEvent("analysis failed")); pubErr != nil {
			slog.Warn("Failed to publish error event", "analysis_id", analysisID, "error", pubErr)
		}
	}
	return err
}

func (s *Service) run(ctx context.Context, repoURL string, importantFiles types.KeyFiles, analysisID string) (Result, error) {
	start := time.Now()
	streaming := analysisID != ""

	slog.Info("Starting analysis", "repo", repoURL, "streaming", streaming)

	paths := importantFiles.Flatten()
	if len(paths) == 0 {
		return Result{}, fmt.Errorf("no files to analyze for %s", repoURL)
	}

	contents := s.fetcher.GetFileContentBatch(ctx, repoURL, paths)
	if len(contents) == 0 {
		return Result{}, fmt.Errorf("no file contents could be fetched for %s", repoURL)
	}
	slog.Info("Fetched file contents", "requested", len(paths), "fetched", len(contents))

	chunks := ChunkFiles(contents, s.opts.ChunkSize)

	workers := len(chunks)
	if workers > s.opts.WorkerCap {
		workers = s.opts.WorkerCap
	}
	if workers < 1 {
		workers = 1
	}

	pool, err := llm.NewPool(workers, s.factory)
	if err != nil {
		return Result{}, fmt.Errorf("building client pool: %w", err)
	}

	var (
		mu     sync.Mutex
		merged []types.Recommendation
		wg     sync.WaitGroup
	)

	for i, chunk := range chunks {
		wg.Add(1)
		go func(index int, batch []types.FileContent) {
			defer wg.Done()

			s.sem <- struct{}{}
			defer func() { <-s.sem }()

			recs := AnalyzeBatch(ctx, batch, pool, index, s.opts.ParseMode, s.rdb)

			mu.Lock()
			merged = append(merged, recs...)
			mu.Unlock()

			if streaming {
				files := make([]string, len(batch))
				for j, f := range batch {
					files[j] = f.Path
				}
				s.publish(analysisID, stream.NewProgressEvent(index, files, len(recs)))

				if s.opts.EmitRecommendationEvents {
					for _, rec := range recs {
						s.publish(analysisID, stream.NewRecommendationEvent(rec))
					}
				}
			}
		}(i, chunk)
	}
	wg.Wait()

	timestamp := time.Now().UTC().Format(time.RFC3339)

	if streaming {
		s.publish(analysisID, stream.NewCompleteEvent(merged, timestamp))
	}

	// Stats are best-effort: a failed increment never fails the analysis.
	if s.stats != nil {
		if err := s.stats.IncrementAnalysis(ctx, len(contents), len(merged)); err != nil {
			slog.Warn("Failed to update analysis stats", "error", err)
		}
	}

	slog.Info("Analysis complete",
		"repo", repoURL,
		"files", len(contents),
		"chunks", len(chunks),
		"recommendations", len(merged),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return Result{
		Repository:        repoURL,
		Recommendations:   merged,
		AnalysisTimestamp: timestamp,
	}, nil
}

func (s *Service) publish(analysisID string, event stream.Event) {
	if err := s.registry.Publish(analysisID, event); err != nil {
		slog.Warn("Failed to publish stream event", "analysis_id", analysisID, "event_type", event.Type, "error", err)
	}
}
