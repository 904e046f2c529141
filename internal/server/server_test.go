package server

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steventanyang/deployable/internal/adapters"
	"github.com/steventanyang/deployable/internal/analysis"
	"github.com/steventanyang/deployable/internal/config"
	"github.com/steventanyang/deployable/internal/stream"
	"github.com/steventanyang/deployable/internal/types"
)

type fakeAnalyzer struct {
	keyFiles    analysis.KeyFilesResult
	result      analysis.Result
	identifyErr error
	analyzeErr  error
	registry    *stream.Registry

	streamed chan string
}

func (f *fakeAnalyzer) IdentifyKeyFiles(ctx context.Context, repoURL string) (analysis.KeyFilesResult, error) {
	if f.identifyErr != nil {
		return analysis.KeyFilesResult{}, f.identifyErr
	}
	return f.keyFiles, nil
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, repoURL string, importantFiles types.KeyFiles) (analysis.Result, error) {
	if f.analyzeErr != nil {
		return analysis.Result{}, f.analyzeErr
	}
	result := f.result
	result.Repository = repoURL
	return result, nil
}

func (f *fakeAnalyzer) AnalyzeStreaming(ctx context.Context, repoURL string, importantFiles types.KeyFiles, analysisID string) error {
	if f.registry != nil {
		f.registry.Publish(analysisID, stream.NewCompleteEvent(f.result.Recommendations, "2026-01-01T00:00:00Z"))
	}
	if f.streamed != nil {
		f.streamed <- analysisID
	}
	return nil
}

type fakeStats struct {
	current types.Stats
}

func (f *fakeStats) Current(ctx context.Context) types.Stats {
	return f.current
}

func (f *fakeStats) Subscribe(ctx context.Context) (*redis.PubSub, error) {
	return nil, stderrors.New("redis not configured")
}

type fakeIssues struct {
	tokenErr       error
	repoMissing    bool
	issuesDisabled bool
	createErr      error
	created        Issue
}

func (f *fakeIssues) ValidateToken(ctx context.Context) (string, error) {
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return "octocat", nil
}

func (f *fakeIssues) RepositoryExists(ctx context.Context, owner, repo string) bool {
	return !f.repoMissing
}

func (f *fakeIssues) IssuesEnabled(ctx context.Context, owner, repo string) bool {
	return !f.issuesDisabled
}

func (f *fakeIssues) CreateIssue(ctx context.Context, req IssueRequest) (Issue, error) {
	if f.createErr != nil {
		return Issue{}, f.createErr
	}
	return f.created, nil
}

func testSettings() *config.Settings {
	return &config.Settings{
		Env:               "development",
		Port:              "8080",
		CORSOrigins:       []string{"http://localhost:3000"},
		AnalysisRateLimit: 60,
		KeyFilesRateLimit: 60,
	}
}

func testServer(t *testing.T, analyzer Analyzer, registry *stream.Registry, issues IssueCreator) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	if analyzer == nil {
		analyzer = &fakeAnalyzer{}
	}
	if issues == nil {
		issues = &fakeIssues{}
	}

	srv := New(testSettings(), analyzer, registry, &fakeStats{current: types.Stats{Repos: 7, Files: 21, Recommendations: 42}}, issues, nil, nil)
	return srv.Router()
}

func postJSON(router *gin.Engine, path string, payload any) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	router := testServer(t, nil, nil, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.Contains(t, w.Body.String(), `"redis":"disabled"`)
}

func TestAnalysisRequiresRepoURL(t *testing.T) {
	router := testServer(t, nil, nil, nil)

	w := postJSON(router, "/api/v1/analysis", gin.H{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalysisSynchronous(t *testing.T) {
	analyzer := &fakeAnalyzer{
		keyFiles: analysis.KeyFilesResult{
			KeyFiles: types.KeyFiles{Backend: []string{"app/main.py", "app/db.py"}},
		},
		result: analysis.Result{
			Recommendations: []types.Recommendation{
				{Title: "Missing healthcheck", Severity: types.SeverityHigh, Category: types.CategoryInfrastructure},
			},
			AnalysisTimestamp: "2026-01-01T00:00:00Z",
		},
	}
	router := testServer(t, analyzer, nil, nil)

	w := postJSON(router, "/api/v1/analysis", gin.H{"repo_url": "https://github.com/acme/app"})

	require.Equal(t, http.StatusOK, w.Code)

	var resp AnalysisResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "https://github.com/acme/app", resp.Repository)
	assert.Len(t, resp.Recommendations, 1)
	assert.Contains(t, resp.Summary, "Found 1 issues across 2 files")
	assert.Equal(t, []string{"app/main.py", "app/db.py"}, resp.DetectedTechnologies.Backend)
}

func TestAnalysisFetchFailureMapsToBadGateway(t *testing.T) {
	analyzer := &fakeAnalyzer{identifyErr: stderrors.New("repo not reachable")}
	router := testServer(t, analyzer, nil, nil)

	w := postJSON(router, "/api/v1/analysis", gin.H{"repo_url": "https://github.com/acme/gone"})

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestStreamingAnalysisUnknownIDFails(t *testing.T) {
	registry := stream.NewRegistry()
	router := testServer(t, &fakeAnalyzer{registry: registry}, registry, nil)

	w := postJSON(router, "/api/v1/analysis", gin.H{
		"repo_url":    "https://github.com/acme/app",
		"analysis_id": "not-registered",
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStreamingAnalysisAccepted(t *testing.T) {
	registry := stream.NewRegistry()
	analyzer := &fakeAnalyzer{registry: registry, streamed: make(chan string, 1)}
	router := testServer(t, analyzer, registry, nil)

	analysisID := registry.Start()

	w := postJSON(router, "/api/v1/analysis", gin.H{
		"repo_url":    "https://github.com/acme/app",
		"analysis_id": analysisID,
	})

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), analysisID)

	select {
	case got := <-analyzer.streamed:
		assert.Equal(t, analysisID, got)
	case <-time.After(time.Second):
		t.Fatal("streaming analysis did not run")
	}
}

func TestKeyFiles(t *testing.T) {
	analyzer := &fakeAnalyzer{
		keyFiles: analysis.KeyFilesResult{
			AllFiles:  []string{"Dockerfile", "src/index.ts"},
			KeyFiles:  types.KeyFiles{Infra: []string{"Dockerfile"}},
			TechStack: types.TechStack{Frontend: []string{"react"}},
		},
	}
	router := testServer(t, analyzer, nil, nil)

	w := postJSON(router, "/api/v1/analysis/key-files", gin.H{"repo_url": "https://github.com/acme/app"})

	require.Equal(t, http.StatusOK, w.Code)

	var resp analysis.KeyFilesResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"Dockerfile"}, resp.KeyFiles.Infra)
	assert.Equal(t, []string{"react"}, resp.TechStack.Frontend)
}

func TestStatsSnapshot(t *testing.T) {
	router := testServer(t, nil, nil, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var snapshot types.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snapshot))
	assert.Equal(t, int64(7), snapshot.Repos)
	assert.Equal(t, int64(42), snapshot.Recommendations)
}

func TestStatsStreamSendsInitialSnapshot(t *testing.T) {
	router := testServer(t, nil, nil, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/stats/stream", nil))

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "event:stats")
	assert.Contains(t, w.Body.String(), `"repos":7`)
}

func TestStreamStart(t *testing.T) {
	registry := stream.NewRegistry()
	router := testServer(t, nil, registry, nil)

	w := postJSON(router, "/api/v1/stream/start", gin.H{"repo_url": "https://github.com/acme/app"})

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		AnalysisID string `json:"analysis_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AnalysisID)
	assert.True(t, registry.Exists(resp.AnalysisID))
}

func TestStreamConnectUnknownID(t *testing.T) {
	registry := stream.NewRegistry()
	router := testServer(t, nil, registry, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/stream/unknown", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStreamConnectDeliversEventsUntilComplete(t *testing.T) {
	registry := stream.NewRegistry()
	router := testServer(t, nil, registry, nil)

	analysisID := registry.Start()
	require.NoError(t, registry.Publish(analysisID, stream.NewProgressEvent(0, []string{"Dockerfile"}, 2)))
	require.NoError(t, registry.Publish(analysisID, stream.NewCompleteEvent(nil, "2026-01-01T00:00:00Z")))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/stream/"+analysisID, nil))

	body := w.Body.String()
	assert.Contains(t, body, "event:progress")
	assert.Contains(t, body, "event:complete")
	assert.False(t, registry.Exists(analysisID))
}

func TestCreateIssue(t *testing.T) {
	issues := &fakeIssues{created: Issue{Number: 12, Title: "Fix healthcheck", State: "open", HTMLURL: "https://github.com/acme/app/issues/12"}}
	router := testServer(t, nil, nil, issues)

	w := postJSON(router, "/api/v1/github/issues", gin.H{
		"owner": "acme", "repo": "app", "title": "Fix healthcheck", "body": "details",
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"number":12`)
}

func TestCreateIssueErrors(t *testing.T) {
	tests := []struct {
		name       string
		issues     *fakeIssues
		wantStatus int
	}{
		{"invalid token", &fakeIssues{tokenErr: stderrors.New("bad token")}, http.StatusUnauthorized},
		{"repo missing", &fakeIssues{repoMissing: true}, http.StatusNotFound},
		{"issues disabled", &fakeIssues{issuesDisabled: true}, http.StatusBadRequest},
		{"forbidden", &fakeIssues{createErr: adapters.ErrForbidden}, http.StatusForbidden},
		{"upstream failure", &fakeIssues{createErr: stderrors.New("boom")}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := testServer(t, nil, nil, tt.issues)

			w := postJSON(router, "/api/v1/github/issues", gin.H{
				"owner": "acme", "repo": "app", "title": "t", "body": "b",
			})

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestGeneratePrompt(t *testing.T) {
	router := testServer(t, nil, nil, nil)

	w := postJSON(router, "/api/v1/prompt/generate", gin.H{
		"title":       "Hardcoded secret",
		"description": "API key in source",
		"file_path":   "config/settings.py",
		"severity":    "CRITICAL",
		"category":    "SECURITY",
	})

	require.Equal(t, http.StatusOK, w.Code)

	var resp PromptResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Prompt, "**Issue**: Hardcoded secret")
	assert.NotEmpty(t, resp.GeneratedAt)
}

func TestGeneratePromptValidation(t *testing.T) {
	router := testServer(t, nil, nil, nil)

	w := postJSON(router, "/api/v1/prompt/generate", gin.H{"title": "only a title"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
