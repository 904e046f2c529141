package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/steventanyang/deployable/internal/adapters"
	"github.com/steventanyang/deployable/internal/analysis"
	"github.com/steventanyang/deployable/internal/background"
	"github.com/steventanyang/deployable/internal/config"
	"github.com/steventanyang/deployable/internal/llm"
	"github.com/steventanyang/deployable/internal/ratelimit"
	"github.com/steventanyang/deployable/internal/server"
	"github.com/steventanyang/deployable/internal/stats"
	"github.com/steventanyang/deployable/internal/stream"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	manager := background.NewManager()

	var redisClient *ratelimit.RedisClient
	if cfg.UseRedis {
		redisClient, err = ratelimit.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			slog.Warn("Redis unavailable at startup, continuing degraded", "error", err)
		}
	} else {
		redisClient, _ = ratelimit.NewRedisClient("", "", 0)
	}
	manager.AddCloser("redis", redisClient)
	rdb := redisClient.GetClient()

	factory, err := clientFactory(cfg)
	if err != nil {
		slog.Error("Failed to configure model provider", "error", err)
		os.Exit(1)
	}

	githubAdapter := adapters.NewGitHubAdapter(cfg.GitHubPAT, rdb)
	manager.AddCloser("github adapter", githubAdapter)

	issuesAdapter := adapters.NewIssuesAdapter(cfg.GitHubPAT)
	manager.AddCloser("issues adapter", issuesAdapter)

	registry := stream.NewRegistry()
	manager.Go("stream janitor", func(ctx context.Context) {
		registry.RunJanitor(ctx, 5*time.Minute)
	})

	statsService := stats.NewService(rdb)
	manager.Go("stats poller", func(ctx context.Context) {
		statsService.RunPoller(ctx, stats.DefaultPollInterval)
	})

	analysisService := analysis.NewService(githubAdapter, registry, statsService, factory, rdb, analysis.Options{
		ChunkSize:                cfg.ChunkSize,
		WorkerCap:                cfg.WorkerCap,
		EmitRecommendationEvents: true,
	})

	limiter := ratelimit.NewLimiter(redisClient)

	srv := server.New(cfg, analysisService, registry, statsService, issuesAdapter, limiter, redisClient)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "provider", cfg.Provider)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}

	manager.Shutdown(10 * time.Second)

	slog.Info("Shutdown complete")
}

// clientFactory binds the configured provider and key into a model
// client constructor used by the analysis worker pool.
func clientFactory(cfg *config.Settings) (func() (llm.Client, error), error) {
	provider := llm.Provider(cfg.Provider)

	var apiKey string
	switch provider {
	case llm.ProviderDeepseek:
		apiKey = cfg.DeepseekAPIKey
	case llm.ProviderOpenAI:
		apiKey = cfg.OpenAIAPIKey
	case llm.ProviderGroq:
		apiKey = cfg.GroqAPIKey
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %s", cfg.Provider)
	}

	llmConfig := llm.Config{Provider: provider, APIKey: apiKey}
	return func() (llm.Client, error) {
		return llm.NewClient(llmConfig)
	}, nil
}
