// Package server wires the HTTP surface: routing, middleware, and the
// handlers for analysis, streaming, stats, issues and prompts.
package server

import (
	"context"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/steventanyang/deployable/internal/adapters"
	"github.com/steventanyang/deployable/internal/analysis"
	"github.com/steventanyang/deployable/internal/config"
	"github.com/steventanyang/deployable/internal/errors"
	"github.com/steventanyang/deployable/internal/ratelimit"
	"github.com/steventanyang/deployable/internal/security"
	"github.com/steventanyang/deployable/internal/stream"
	"github.com/steventanyang/deployable/internal/types"
)

// Analyzer runs repository analyses.
type Analyzer interface {
	Analyze(ctx context.Context, repoURL string, importantFiles types.KeyFiles) (analysis.Result, error)
	AnalyzeStreaming(ctx context.Context, repoURL string, importantFiles types.KeyFiles, analysisID string) error
	IdentifyKeyFiles(ctx context.Context, repoURL string) (analysis.KeyFilesResult, error)
}

// StatsProvider reads usage counters and exposes the broadcast channel.
type StatsProvider interface {
	Current(ctx context.Context) types.Stats
	Subscribe(ctx context.Context) (*redis.PubSub, error)
}

// IssueRequest and Issue are the GitHub issue wire shapes.
type (
	IssueRequest = adapters.IssueRequest
	Issue        = adapters.Issue
)

// IssueCreator files GitHub issues for findings.
type IssueCreator interface {
	ValidateToken(ctx context.Context) (string, error)
	RepositoryExists(ctx context.Context, owner, repo string) bool
	IssuesEnabled(ctx context.Context, owner, repo string) bool
	CreateIssue(ctx context.Context, req IssueRequest) (Issue, error)
}

// Server holds the handler dependencies.
type Server struct {
	cfg      *config.Settings
	analyzer Analyzer
	registry *stream.Registry
	stats    StatsProvider
	issues   IssueCreator
	limiter  *ratelimit.Limiter
	redis    *ratelimit.RedisClient
}

// New assembles a server. limiter and redis may be nil in tests.
func New(cfg *config.Settings, analyzer Analyzer, registry *stream.Registry, stats StatsProvider, issues IssueCreator, limiter *ratelimit.Limiter, redisClient *ratelimit.RedisClient) *Server {
	return &Server{
		cfg:      cfg,
		analyzer: analyzer,
		registry: registry,
		stats:    stats,
		issues:   issues,
		limiter:  limiter,
		redis:    redisClient,
	}
}

// Router builds the gin engine with middleware and all routes.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(errors.RecoveryHandler())
	router.Use(errors.ErrorHandler())
	router.Use(security.HeadersMiddleware())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = s.cfg.CORSOrigins
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))

	router.GET("/health", s.handleHealth)

	v1 := router.Group("/api/v1")
	{
		analysisGroup := v1.Group("/analysis")
		if s.limiter != nil {
			analysisGroup.Use(s.limiter.Middleware("analysis", s.cfg.AnalysisRateLimit))
		}
		analysisGroup.POST("", s.handleAnalysis)

		keyFiles := v1.Group("/analysis/key-files")
		if s.limiter != nil {
			keyFiles.Use(s.limiter.Middleware("key-files", s.cfg.KeyFilesRateLimit))
		}
		keyFiles.POST("", s.handleKeyFiles)

		v1.POST("/stream/start", s.handleStreamStart)
		v1.GET("/stream/:analysis_id", s.handleStreamConnect)

		v1.GET("/stats", s.handleStats)
		v1.GET("/stats/stream", s.handleStatsStream)

		v1.POST("/github/issues", s.handleCreateIssue)
		v1.POST("/prompt/generate", s.handleGeneratePrompt)
	}

	return router
}
