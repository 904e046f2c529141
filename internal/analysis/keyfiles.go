package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/steventanyang/deployable/internal/llm"
	"github.com/steventanyang/deployable/internal/types"
)

// KeyFilesResult is the lighter-weight sibling flow: which files matter
// for deployment and what the repository is built with.
type KeyFilesResult struct {
	AllFiles  []string        `json:"all_files"`
	KeyFiles  types.KeyFiles  `json:"key_files"`
	TechStack types.TechStack `json:"tech_stack"`
}

// IdentifyKeyFiles lists the repository's files and asks the model to
// pick the critical deployment files and name the tech stack. A malformed
// model response for either question degrades to empty buckets rather
// than failing the flow.
func (s *Service) IdentifyKeyFiles(ctx context.Context, repoURL string) (KeyFilesResult, error) {
	allFiles, err := s.fetcher.ListFilenames(ctx, repoURL)
	if err != nil {
		return KeyFilesResult{}, fmt.Errorf("listing repository files: %w", err)
	}
	if len(allFiles) == 0 {
		return KeyFilesResult{}, fmt.Errorf("repository %s has no analyzable files", repoURL)
	}

	client, err := s.factory()
	if err != nil {
		return KeyFilesResult{}, fmt.Errorf("constructing model client: %w", err)
	}

	result := KeyFilesResult{AllFiles: allFiles}

	filesResponse, err := llm.CallWithCache(ctx, client, llm.IdentifyFilesPrompt(allFiles), s.rdb)
	if err != nil {
		return KeyFilesResult{}, fmt.Errorf("identifying key files: %w", err)
	}
	if err := json.Unmarshal([]byte(llm.ExtractJSONObject(filesResponse)), &result.KeyFiles); err != nil {
		slog.Error("Failed to parse key files response", "error", err)
	}

	stackResponse, err := llm.CallWithCache(ctx, client, llm.TechStackPrompt(allFiles), s.rdb)
	if err != nil {
		slog.Warn("Tech stack detection failed", "error", err)
		return result, nil
	}
	if err := json.Unmarshal([]byte(llm.ExtractJSONObject(stackResponse)), &result.TechStack); err != nil {
		slog.Warn("Failed to parse tech stack response", "error", err)
	}

	return result, nil
}
