package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/steventanyang/deployable/internal/adapters"
	"github.com/steventanyang/deployable/internal/errors"
	"github.com/steventanyang/deployable/internal/prompt"
	"github.com/steventanyang/deployable/internal/stream"
	"github.com/steventanyang/deployable/internal/types"
)

// AnalysisRequest starts an analysis. A non-empty AnalysisID switches to
// streaming mode against a previously started stream.
type AnalysisRequest struct {
	RepoURL    string `json:"repo_url" binding:"required"`
	AnalysisID string `json:"analysis_id"`
}

// AnalysisResponse is the synchronous analysis result.
type AnalysisResponse struct {
	Repository           string                 `json:"repository"`
	Recommendations      []types.Recommendation `json:"recommendations"`
	Summary              string                 `json:"summary"`
	DetectedTechnologies types.KeyFiles         `json:"detected_technologies"`
	AnalysisTimestamp    string                 `json:"analysis_timestamp"`
}

func (s *Server) handleAnalysis(c *gin.Context) {
	var req AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError("repo_url is required", err))
		return
	}

	if req.AnalysisID != "" {
		s.startStreamingAnalysis(c, req)
		return
	}

	start := time.Now()
	ctx := c.Request.Context()

	keyFiles, err := s.analyzer.IdentifyKeyFiles(ctx, req.RepoURL)
	if err != nil {
		c.Error(errors.NewExternalAPIError("GitHub", err))
		return
	}

	result, err := s.analyzer.Analyze(ctx, req.RepoURL, keyFiles.KeyFiles)
	if err != nil {
		c.Error(errors.NewInternalError("analysis failed", err))
		return
	}

	duration := time.Since(start).Seconds()
	c.JSON(http.StatusOK, AnalysisResponse{
		Repository:      result.Repository,
		Recommendations: result.Recommendations,
		Summary: fmt.Sprintf("Analysis completed in %.2f seconds. Found %d issues across %d files.",
			duration, len(result.Recommendations), len(keyFiles.KeyFiles.Flatten())),
		DetectedTechnologies: keyFiles.KeyFiles,
		AnalysisTimestamp:    result.AnalysisTimestamp,
	})
}

// startStreamingAnalysis validates the stream id, then runs the analysis
// in the background while the caller consumes events over SSE.
func (s *Server) startStreamingAnalysis(c *gin.Context, req AnalysisRequest) {
	if s.registry == nil || !s.registry.Exists(req.AnalysisID) {
		c.Error(errors.NewNotFoundError("no stream registered for analysis_id"))
		return
	}

	go func() {
		// Detached from the request: the response returns immediately
		// while events flow to the SSE consumer.
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
		defer cancel()

		keyFiles, err := s.analyzer.IdentifyKeyFiles(ctx, req.RepoURL)
		if err != nil {
			slog.Error("Key file identification failed", "repo", req.RepoURL, "error", err)
			if pubErr := s.registry.Publish(req.AnalysisID, stream.NewErrorEvent("analysis failed")); pubErr != nil {
				slog.Warn("Failed to publish error event", "analysis_id", req.AnalysisID, "error", pubErr)
			}
			return
		}

		if err := s.analyzer.AnalyzeStreaming(ctx, req.RepoURL, keyFiles.KeyFiles, req.AnalysisID); err != nil {
			slog.Error("Streaming analysis failed", "repo", req.RepoURL, "analysis_id", req.AnalysisID, "error", err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"analysis_id": req.AnalysisID,
		"status":      "started",
	})
}

// KeyFilesRequest asks which files matter for deployment.
type KeyFilesRequest struct {
	RepoURL string `json:"repo_url" binding:"required"`
}

func (s *Server) handleKeyFiles(c *gin.Context) {
	var req KeyFilesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError("repo_url is required", err))
		return
	}

	result, err := s.analyzer.IdentifyKeyFiles(c.Request.Context(), req.RepoURL)
	if err != nil {
		c.Error(errors.NewExternalAPIError("GitHub", err))
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.stats.Current(c.Request.Context()))
}

func (s *Server) handleCreateIssue(c *gin.Context) {
	var req IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError("owner, repo, title and body are required", err))
		return
	}

	ctx := c.Request.Context()

	login, err := s.issues.ValidateToken(ctx)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	slog.Info("Creating issue", "user", login, "repo", req.Owner+"/"+req.Repo)

	if !s.issues.RepositoryExists(ctx, req.Owner, req.Repo) {
		c.Error(errors.NewNotFoundError(
			fmt.Sprintf("Repository '%s/%s' does not exist or is not accessible with your token", req.Owner, req.Repo)))
		return
	}

	if !s.issues.IssuesEnabled(ctx, req.Owner, req.Repo) {
		c.Error(errors.NewValidationError(
			fmt.Sprintf("Issues are disabled for repository '%s/%s'", req.Owner, req.Repo), nil))
		return
	}

	issue, err := s.issues.CreateIssue(ctx, req)
	if err != nil {
		if stderrors.Is(err, adapters.ErrForbidden) {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		c.Error(errors.NewExternalAPIError("GitHub", err))
		return
	}

	c.JSON(http.StatusOK, issue)
}

// PromptResponse is a rendered fix prompt.
type PromptResponse struct {
	Prompt      string `json:"prompt"`
	GeneratedAt string `json:"generated_at"`
}

func (s *Server) handleGeneratePrompt(c *gin.Context) {
	var req prompt.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewValidationError("title, description, file_path, severity and category are required", err))
		return
	}

	slog.Info("Generating fix prompt", "title", req.Title, "file", req.FilePath)

	c.JSON(http.StatusOK, PromptResponse{
		Prompt:      prompt.Generate(req),
		GeneratedAt: prompt.Timestamp(),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	redisStatus := "disabled"
	if s.redis != nil && s.redis.IsEnabled() {
		if err := s.redis.HealthCheck(c.Request.Context()); err != nil {
			redisStatus = "unhealthy"
		} else {
			redisStatus = "healthy"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"redis":  redisStatus,
	})
}
