package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", s.Env)
	assert.Equal(t, "8080", s.Port)
	assert.Equal(t, "deepseek", s.Provider)
	assert.Equal(t, 3, s.ChunkSize)
	assert.Equal(t, 8, s.WorkerCap)
	assert.False(t, s.UseRedis)
	assert.Contains(t, s.CORSOrigins, "http://localhost:3000")
}

func TestLoad_InvalidProvider(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "hunyuan")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "LLM_PROVIDER")
}

func TestLoad_ProductionRequiresFrontendURL(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("FRONTEND_PROD_URL", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_ProductionCORS(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("FRONTEND_PROD_URL", "https://deployable.dev")

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://deployable.dev"}, s.CORSOrigins)
}

func TestLoad_InvalidIntFallsBack(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "not-a-number")

	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, s.ChunkSize)
}

func TestLoad_ChunkSizeBounds(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "0")

	_, err := Load()
	assert.Error(t, err)
}
