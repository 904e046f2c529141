package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Settings holds all process configuration, read once at startup from the
// environment.
type Settings struct {
	Env  string
	Port string

	FrontendProdURL string
	CORSOrigins     []string

	// API keys
	GitHubPAT      string
	OpenAIAPIKey   string
	DeepseekAPIKey string
	GroqAPIKey     string

	// LLM settings
	Provider  string
	ChunkSize int
	WorkerCap int

	// Rate limiting (requests per minute, per IP)
	AnalysisRateLimit int
	KeyFilesRateLimit int

	// Redis
	UseRedis      bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Load reads settings from the environment and validates them.
func Load() (*Settings, error) {
	s := &Settings{
		Env:               getEnvOrDefault("ENV", "development"),
		Port:              getEnvOrDefault("PORT", "8080"),
		FrontendProdURL:   os.Getenv("FRONTEND_PROD_URL"),
		GitHubPAT:         os.Getenv("GITHUB_PAT"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		DeepseekAPIKey:    os.Getenv("DEEPSEEK_API_KEY"),
		GroqAPIKey:        os.Getenv("GROQ_API_KEY"),
		Provider:          getEnvOrDefault("LLM_PROVIDER", "deepseek"),
		ChunkSize:         getEnvIntOrDefault("CHUNK_SIZE", 3),
		WorkerCap:         getEnvIntOrDefault("WORKER_CAP", 8),
		AnalysisRateLimit: getEnvIntOrDefault("ANALYSIS_RATE_LIMIT", 60),
		KeyFilesRateLimit: getEnvIntOrDefault("KEY_FILES_RATE_LIMIT", 60),
		UseRedis:          strings.EqualFold(getEnvOrDefault("USE_REDIS", "false"), "true"),
		RedisAddr:         getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getEnvIntOrDefault("REDIS_DB", 0),
	}

	if err := s.validate(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Settings) validate() error {
	if s.ChunkSize < 1 {
		return fmt.Errorf("CHUNK_SIZE must be >= 1, got %d", s.ChunkSize)
	}
	if s.WorkerCap < 1 {
		return fmt.Errorf("WORKER_CAP must be >= 1, got %d", s.WorkerCap)
	}

	switch s.Provider {
	case "deepseek", "openai", "groq":
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q (want deepseek, openai or groq)", s.Provider)
	}

	if s.IsDevelopment() {
		s.CORSOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	} else {
		if s.FrontendProdURL == "" {
			return fmt.Errorf("FRONTEND_PROD_URL must be set when ENV=%s", s.Env)
		}
		s.CORSOrigins = []string{s.FrontendProdURL}
	}

	return nil
}

// IsDevelopment reports whether the process runs in development mode.
func (s *Settings) IsDevelopment() bool {
	return s.Env == "development"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
