package adapters

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/steventanyang/deployable/internal/resilience"
	"github.com/steventanyang/deployable/internal/types"
)

// ContentCacheTTL bounds how long fetched file contents are reused.
const ContentCacheTTL = 30 * time.Minute

// excludedDirs removes whole directory subtrees from repository listings.
var excludedDirs = map[string]bool{
	"node_modules":  true,
	".git":          true,
	"dist":          true,
	"build":         true,
	"coverage":      true,
	"__pycache__":   true,
	".pytest_cache": true,
	".next":         true,
	".venv":         true,
	"venv":          true,
	"env":           true,
	".idea":         true,
	".vscode":       true,
}

// excludedFiles removes individual filenames.
var excludedFiles = map[string]bool{
	"package-lock.json": true,
	"yarn.lock":         true,
	".DS_Store":         true,
	"Thumbs.db":         true,
	".gitignore":        true,
	".gitattributes":    true,
	"LICENSE":           true,
	"LICENCE":           true,
	"README.md":         true,
	".env":              true,
	".env.example":      true,
	".env.local":        true,
	".env.development":  true,
	".env.test":         true,
	".env.production":   true,
	".deployable":       true,
}

// excludedExtensions removes documentation, media, data and binary files.
var excludedExtensions = map[string]bool{
	".txt": true, ".md": true, ".rst": true, ".pdf": true, ".doc": true, ".docx": true,
	".log":  true,
	".png":  true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true, ".svg": true,
	".csv":  true, ".xls": true, ".xlsx": true, ".json": true,
	".pyc":  true, ".pyo": true, ".pyd": true, ".cache": true,
	".swp":  true, ".swo": true, ".swn": true, ".bak": true,
	".zip":  true, ".tar": true, ".gz": true, ".rar": true,
}

// importantConfigFiles are allowed through the extension exclusion: their
// extensions are excluded in general but these specific files matter for
// deployment analysis.
var importantConfigFiles = map[string]bool{
	"package.json":      true,
	"tsconfig.json":     true,
	"composer.json":     true,
	"angular.json":      true,
	"next.config.js":    true,
	"webpack.config.js": true,
	"babel.config.js":   true,
	"jest.config.js":    true,
}

// GitHubAdapter fetches repository listings and file contents from the
// GitHub REST API, with an optional redis content cache. A nil redis
// client disables caching. An empty token means unauthenticated requests
// (60/hr rate limit).
type GitHubAdapter struct {
	token   string
	api     *resilience.HTTPClient
	rdb     *redis.Client
	baseURL string
}

// NewGitHubAdapter creates an adapter with circuit breaker protection.
func NewGitHubAdapter(token string, rdb *redis.Client) *GitHubAdapter {
	if token == "" {
		slog.Warn("No GitHub token provided, using unauthenticated requests (60/hr)")
	}

	breaker := resilience.NewCircuitBreaker(resilience.BreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 3,
	})

	return &GitHubAdapter{
		token:   token,
		api:     resilience.NewHTTPClient(30*time.Second, breaker),
		rdb:     rdb,
		baseURL: "https://api.github.com",
	}
}

// ParseRepoURL extracts owner and repo name from a GitHub repository URL.
func ParseRepoURL(repoURL string) (owner, repo string, err error) {
	parsed, err := url.Parse(repoURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid GitHub repository URL %q: %w", repoURL, err)
	}

	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GitHub repository URL %q", repoURL)
	}

	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

// ListFilenames returns all file paths in the repository's default
// branch, minus excluded directories, filenames and extensions.
func (g *GitHubAdapter) ListFilenames(ctx context.Context, repoURL string) ([]string, error) {
	owner, repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}

	branch, err := g.defaultBranch(ctx, owner, repo)
	if err != nil {
		return nil, err
	}

	sha, err := g.latestCommit(ctx, owner, repo, branch)
	if err != nil {
		return nil, err
	}

	tree, err := g.fileTree(ctx, owner, repo, sha)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, item := range tree {
		if item.Type == "blob" && !shouldExcludePath(item.Path) {
			paths = append(paths, item.Path)
		}
	}

	slog.Info("Listed repository files", "repo", owner+"/"+repo, "files", len(paths))
	return paths, nil
}

// GetFileContentBatch fetches contents for the given paths. Paths that
// fail to fetch are silently omitted; the method itself never fails.
func (g *GitHubAdapter) GetFileContentBatch(ctx context.Context, repoURL string, paths []string) []types.FileContent {
	owner, repo, err := ParseRepoURL(repoURL)
	if err != nil {
		slog.Error("Cannot fetch file contents", "repo_url", repoURL, "error", err)
		return nil
	}

	contents := make([]types.FileContent, 0, len(paths))
	for _, path := range paths {
		content, err := g.fileContents(ctx, owner, repo, path)
		if err != nil {
			slog.Warn("Skipping unfetchable file", "repo", owner+"/"+repo, "path", path, "error", err)
			continue
		}
		contents = append(contents, types.FileContent{Path: path, Content: content})
	}
	return contents
}

type treeItem struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

func (g *GitHubAdapter) defaultBranch(ctx context.Context, owner, repo string) (string, error) {
	var info struct {
		DefaultBranch string `json:"default_branch"`
	}
	url := fmt.Sprintf("%s/repos/%s/%s", g.baseURL, owner, repo)
	if err := g.getJSON(ctx, url, &info); err != nil {
		return "", fmt.Errorf("repository %s/%s not accessible: %w", owner, repo, err)
	}
	if info.DefaultBranch == "" {
		return "", fmt.Errorf("repository %s/%s has no default branch", owner, repo)
	}
	return info.DefaultBranch, nil
}

func (g *GitHubAdapter) latestCommit(ctx context.Context, owner, repo, branch string) (string, error) {
	var commit struct {
		SHA string `json:"sha"`
	}
	url := fmt.Sprintf("%s/repos/%s/%s/commits/%s", g.baseURL, owner, repo, branch)
	if err := g.getJSON(ctx, url, &commit); err != nil {
		return "", fmt.Errorf("fetching latest commit for %s/%s@%s: %w", owner, repo, branch, err)
	}
	return commit.SHA, nil
}

func (g *GitHubAdapter) fileTree(ctx context.Context, owner, repo, sha string) ([]treeItem, error) {
	var tree struct {
		Tree []treeItem `json:"tree"`
	}
	url := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s?recursive=1", g.baseURL, owner, repo, sha)
	if err := g.getJSON(ctx, url, &tree); err != nil {
		return nil, fmt.Errorf("fetching file tree for %s/%s: %w", owner, repo, err)
	}
	return tree.Tree, nil
}

func (g *GitHubAdapter) fileContents(ctx context.Context, owner, repo, path string) (string, error) {
	cacheKey := fmt.Sprintf("github:content:%s:%s:%s", owner, repo, path)

	if g.rdb != nil {
		if cached, err := g.rdb.Get(ctx, cacheKey).Result(); err == nil {
			return cached, nil
		}
	}

	var file struct {
		Encoding string `json:"encoding"`
		Content  string `json:"content"`
	}
	url := fmt.Sprintf("%s/repos/%s/%s/contents/%s", g.baseURL, owner, repo, path)
	if err := g.getJSON(ctx, url, &file); err != nil {
		return "", err
	}

	if file.Encoding != "base64" {
		return "", fmt.Errorf("unexpected encoding %q for %s", file.Encoding, path)
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(file.Content, "\n", ""))
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", path, err)
	}
	content := string(decoded)

	if g.rdb != nil {
		if err := g.rdb.Set(ctx, cacheKey, content, ContentCacheTTL).Err(); err != nil {
			slog.Warn("Content cache write failed", "key", cacheKey, "error", err)
		}
	}

	return content, nil
}

func (g *GitHubAdapter) getJSON(ctx context.Context, url string, out any) error {
	resp, err := g.api.Do(ctx, http.MethodGet, url, g.headers(), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("github API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (g *GitHubAdapter) headers() map[string]string {
	headers := map[string]string{
		"Accept":     "application/vnd.github+json",
		"User-Agent": "deployable/1.0",
	}
	if g.token != "" {
		headers["Authorization"] = "Bearer " + g.token
	}
	return headers
}

// Close releases the adapter's HTTP resources.
func (g *GitHubAdapter) Close() error {
	return g.api.Close()
}

func shouldExcludePath(path string) bool {
	parts := strings.Split(path, "/")

	for _, part := range parts {
		if excludedDirs[part] {
			return true
		}
	}

	filename := parts[len(parts)-1]
	if excludedFiles[filename] {
		return true
	}

	if idx := strings.LastIndex(filename, "."); idx >= 0 {
		ext := strings.ToLower(filename[idx:])
		if excludedExtensions[ext] && !importantConfigFiles[filename] {
			return true
		}
	}

	return false
}
