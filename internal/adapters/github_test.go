package adapters

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{name: "standard url", url: "https://github.com/steventanyang/market_loo", wantOwner: "steventanyang", wantRepo: "market_loo"},
		{name: "trailing slash", url: "https://github.com/owner/repo/", wantOwner: "owner", wantRepo: "repo"},
		{name: "dot git suffix", url: "https://github.com/owner/repo.git", wantOwner: "owner", wantRepo: "repo"},
		{name: "missing repo", url: "https://github.com/owner", wantErr: true},
		{name: "empty path", url: "https://github.com/", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, err := ParseRepoURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOwner, owner)
			assert.Equal(t, tt.wantRepo, repo)
		})
	}
}

func TestShouldExcludePath(t *testing.T) {
	tests := []struct {
		path     string
		excluded bool
	}{
		{"src/index.ts", false},
		{"node_modules/react/index.js", true},
		{"app/node_modules/lib/x.js", true},
		{"docs/guide.md", true},
		{"README.md", true},
		{"assets/logo.png", true},
		{"data/export.json", true},
		{"package.json", false},
		{"tsconfig.json", false},
		{"frontend/next.config.js", false},
		{".env.production", true},
		{"Dockerfile", false},
		{"scripts/deploy.sh", false},
		{".github/workflows/ci.yml", false},
		{"dist/bundle.js", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.excluded, shouldExcludePath(tt.path))
		})
	}
}

func newTestAdapter(t *testing.T, handler http.Handler) *GitHubAdapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	adapter := NewGitHubAdapter("test-token", nil)
	adapter.baseURL = server.URL
	return adapter
}

func TestListFilenames(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/o/r", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"default_branch": "main"}`)
	})
	mux.HandleFunc("/repos/o/r/commits/main", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"sha": "abc123"}`)
	})
	mux.HandleFunc("/repos/o/r/git/trees/abc123", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"tree": [
			{"path": "main.go", "type": "blob"},
			{"path": "src", "type": "tree"},
			{"path": "node_modules/x.js", "type": "blob"},
			{"path": "README.md", "type": "blob"},
			{"path": "Dockerfile", "type": "blob"}
		]}`)
	})

	adapter := newTestAdapter(t, mux)
	paths, err := adapter.ListFilenames(context.Background(), "https://github.com/o/r")
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go", "Dockerfile"}, paths)
}

func TestListFilenames_RepoNotFound(t *testing.T) {
	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	_, err := adapter.ListFilenames(context.Background(), "https://github.com/o/gone")
	assert.Error(t, err)
}

func TestGetFileContentBatch(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("package main\n"))

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/o/r/contents/main.go", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"encoding": "base64", "content": %q}`, encoded)
	})
	mux.HandleFunc("/repos/o/r/contents/missing.go", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	adapter := newTestAdapter(t, mux)
	contents := adapter.GetFileContentBatch(context.Background(), "https://github.com/o/r",
		[]string{"main.go", "missing.go"})

	// Unfetchable paths are silently omitted.
	require.Len(t, contents, 1)
	assert.Equal(t, "main.go", contents[0].Path)
	assert.Equal(t, "package main\n", contents[0].Content)
}

func TestGetFileContentBatch_BadURL(t *testing.T) {
	adapter := NewGitHubAdapter("", nil)
	contents := adapter.GetFileContentBatch(context.Background(), "https://github.com/broken", []string{"a"})
	assert.Empty(t, contents)
}
