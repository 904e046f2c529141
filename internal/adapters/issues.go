package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/steventanyang/deployable/internal/resilience"
)

// ErrNoToken is returned when issue creation is attempted without a
// configured GitHub token.
var ErrNoToken = fmt.Errorf("no GitHub token configured")

// ErrForbidden is returned when the token lacks permission to write to
// the target repository.
var ErrForbidden = fmt.Errorf("token lacks permission for repository")

// IssueRequest describes one issue to create.
type IssueRequest struct {
	Owner     string   `json:"owner" binding:"required"`
	Repo      string   `json:"repo" binding:"required"`
	Title     string   `json:"title" binding:"required"`
	Body      string   `json:"body" binding:"required"`
	Labels    []string `json:"labels,omitempty"`
	Assignees []string `json:"assignees,omitempty"`
}

// Issue is the created issue as reported by GitHub.
type Issue struct {
	URL     string `json:"url"`
	HTMLURL string `json:"html_url"`
	Number  int    `json:"number"`
	Title   string `json:"title"`
	State   string `json:"state"`
}

// IssuesAdapter writes issues to GitHub repositories on behalf of the
// configured token.
type IssuesAdapter struct {
	token   string
	api     *resilience.HTTPClient
	baseURL string
}

// NewIssuesAdapter creates an issue-writing adapter.
func NewIssuesAdapter(token string) *IssuesAdapter {
	breaker := resilience.NewCircuitBreaker(resilience.BreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 3,
	})

	return &IssuesAdapter{
		token:   token,
		api:     resilience.NewHTTPClient(30*time.Second, breaker),
		baseURL: "https://api.github.com",
	}
}

// ValidateToken checks the token against the authenticated-user endpoint
// and returns the login it belongs to.
func (a *IssuesAdapter) ValidateToken(ctx context.Context) (string, error) {
	if a.token == "" {
		return "", ErrNoToken
	}

	var user struct {
		Login string `json:"login"`
	}
	if err := a.getJSON(ctx, a.baseURL+"/user", &user); err != nil {
		return "", fmt.Errorf("token validation failed: %w", err)
	}
	return user.Login, nil
}

// RepositoryExists reports whether owner/repo is accessible with the
// configured token.
func (a *IssuesAdapter) RepositoryExists(ctx context.Context, owner, repo string) bool {
	var info struct {
		FullName string `json:"full_name"`
	}
	err := a.getJSON(ctx, fmt.Sprintf("%s/repos/%s/%s", a.baseURL, owner, repo), &info)
	return err == nil
}

// IssuesEnabled reports whether the repository accepts issues.
func (a *IssuesAdapter) IssuesEnabled(ctx context.Context, owner, repo string) bool {
	var info struct {
		HasIssues bool `json:"has_issues"`
	}
	if err := a.getJSON(ctx, fmt.Sprintf("%s/repos/%s/%s", a.baseURL, owner, repo), &info); err != nil {
		return false
	}
	return info.HasIssues
}

// CreateIssue creates the issue and returns GitHub's representation.
func (a *IssuesAdapter) CreateIssue(ctx context.Context, req IssueRequest) (Issue, error) {
	if a.token == "" {
		return Issue{}, ErrNoToken
	}

	payload, err := json.Marshal(map[string]any{
		"title":     req.Title,
		"body":      req.Body,
		"labels":    req.Labels,
		"assignees": req.Assignees,
	})
	if err != nil {
		return Issue{}, err
	}

	url := fmt.Sprintf("%s/repos/%s/%s/issues", a.baseURL, req.Owner, req.Repo)
	resp, err := a.api.Do(ctx, http.MethodPost, url, a.headers(), payload)
	if err != nil {
		return Issue{}, fmt.Errorf("creating issue: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
	case http.StatusForbidden:
		return Issue{}, ErrForbidden
	default:
		body, _ := io.ReadAll(resp.Body)
		return Issue{}, fmt.Errorf("github API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var issue Issue
	if err := json.NewDecoder(resp.Body).Decode(&issue); err != nil {
		return Issue{}, fmt.Errorf("decoding created issue: %w", err)
	}

	slog.Info("Created GitHub issue", "repo", req.Owner+"/"+req.Repo, "number", issue.Number)
	return issue, nil
}

func (a *IssuesAdapter) getJSON(ctx context.Context, url string, out any) error {
	resp, err := a.api.Do(ctx, http.MethodGet, url, a.headers(), nil)
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

func (a *IssuesAdapter) headers() map[string]string {
	headers := map[string]string{
		"Accept":     "application/vnd.github+json",
		"User-Agent": "deployable/1.0",
	}
	if a.token != "" {
		headers["Authorization"] = "Bearer " + a.token
	}
	return headers
}

// Close releases the adapter's HTTP resources.
func (a *IssuesAdapter) Close() error {
	return a.api.Close()
}
