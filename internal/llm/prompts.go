package llm

import (
	"fmt"
	"strings"

	"github.com/steventanyang/deployable/internal/types"
)

// AnalysisPrompt builds the deployment-readiness prompt for one batch of
// files, embedding every file's path and full content.
func AnalysisPrompt(files []types.FileContent) string {
	var b strings.Builder

	b.WriteString(`Analyze these files for deployment readiness issues in these categories:
SECURITY, PERFORMANCE, INFRASTRUCTURE, RELIABILITY, COMPLIANCE, COST

Return ONLY a JSON array of issues:
[
  {
    "title": "Brief issue title",
    "description": "Concise problem description",
    "file_path": "path/to/file",
    "severity": "CRITICAL|HIGH|MEDIUM|LOW|INFO",
    "category": "SECURITY|PERFORMANCE|INFRASTRUCTURE|RELIABILITY|COMPLIANCE|COST",
    "action_items": ["Action 1", "Action 2"]
  }
]

Focus ONLY on significant deployment issues. Ignore minor code style issues.

Files to analyze:

`)

	for _, file := range files {
		fmt.Fprintf(&b, "File: %s\n```\n%s\n```\n\n", file.Path, file.Content)
	}

	return b.String()
}

// IdentifyFilesPrompt asks the model to pick the most critical deployment
// files from a repository listing, bucketed by layer.
func IdentifyFilesPrompt(paths []string) string {
	return fmt.Sprintf(`Identify ONLY the 10-15 MOST CRITICAL deployment files from this list:
%s

Focus only on:
- Security files (auth, env)
- Files that may have important business logic
- Infrastructure (Docker, CI/CD)
- Config files
- Main app entry points

Ignore tests, docs, packages, and non-essential UI components. Absolutely do not add any comments, just list the files.

Return strictly JSON format:
{"frontend": [], "backend": [], "infra": []}
Maximum 15 files total.
`, strings.Join(paths, "\n"))
}

// TechStackPrompt asks the model to name the main technologies present in
// a repository listing.
func TechStackPrompt(paths []string) string {
	return fmt.Sprintf(`Analyze these files and identify the main technologies used:
%s

Return strictly in this JSON format:
{
    "frontend": [],
    "backend": [],
    "infra": []
}

Rules:
1. Include version numbers when clearly identifiable
2. Only include technologies that are definitively present in the files
3. List maximum 5 most important technologies per category
4. Focus on production dependencies, ignore dev dependencies
5. Provide ONLY THE JSON, no justifications
`, strings.Join(paths, "\n"))
}
