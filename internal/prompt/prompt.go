// Package prompt renders editor-ready fix prompts from recommendation
// data so a finding can be pasted straight into an AI coding assistant.
package prompt

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// CodeSnippets carries optional before/after code for a finding.
type CodeSnippets struct {
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`
}

// Request is the issue data a prompt is generated from.
type Request struct {
	Title        string        `json:"title" binding:"required"`
	Description  string        `json:"description" binding:"required"`
	FilePath     string        `json:"file_path" binding:"required"`
	Severity     string        `json:"severity" binding:"required"`
	Category     string        `json:"category" binding:"required"`
	ActionItems  []string      `json:"action_items,omitempty"`
	CodeSnippets *CodeSnippets `json:"code_snippets,omitempty"`
	References   []string      `json:"references,omitempty"`
}

var languageByExtension = map[string]string{
	".py":    "python",
	".js":    "javascript",
	".jsx":   "jsx",
	".ts":    "typescript",
	".tsx":   "tsx",
	".html":  "html",
	".css":   "css",
	".scss":  "scss",
	".sass":  "sass",
	".java":  "java",
	".cpp":   "cpp",
	".c":     "c",
	".cs":    "csharp",
	".php":   "php",
	".rb":    "ruby",
	".go":    "go",
	".rs":    "rust",
	".sh":    "bash",
	".yml":   "yaml",
	".yaml":  "yaml",
	".json":  "json",
	".xml":   "xml",
	".md":    "markdown",
	".sql":   "sql",
	".r":     "r",
	".swift": "swift",
	".kt":    "kotlin",
	".dart":  "dart",
	".vue":   "vue",
}

// languageFor maps a file path to a fenced-code language hint,
// defaulting to "text" for unknown extensions.
func languageFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := languageByExtension[ext]; ok {
		return lang
	}
	return "text"
}

func formatActionItems(items []string) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n**Action Items**:\n")
	for _, item := range items {
		fmt.Fprintf(&b, "- %s\n", item)
	}
	return b.String()
}

func formatCodeSnippets(snippets *CodeSnippets, path string) string {
	if snippets == nil || (snippets.Before == "" && snippets.After == "") {
		return ""
	}
	language := languageFor(path)
	var b strings.Builder
	if snippets.Before != "" {
		fmt.Fprintf(&b, "\n**Current Code**:\n```%s\n%s\n```\n", language, strings.TrimSpace(snippets.Before))
	}
	if snippets.After != "" {
		fmt.Fprintf(&b, "\n**Expected Code**:\n```%s\n%s\n```\n", language, strings.TrimSpace(snippets.After))
	}
	return b.String()
}

func formatReferences(refs []string) string {
	if len(refs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n**References**:\n")
	for _, ref := range refs {
		fmt.Fprintf(&b, "- %s\n", ref)
	}
	return b.String()
}

// Generate renders a complete fix prompt for the given finding.
func Generate(req Request) string {
	parts := []string{
		"Fix the following code quality issue:",
		"",
		fmt.Sprintf("**Issue**: %s", req.Title),
		fmt.Sprintf("**File**: %s", req.FilePath),
		fmt.Sprintf("**Severity**: %s", req.Severity),
		fmt.Sprintf("**Category**: %s", req.Category),
		"",
		"**Description**:",
		req.Description,
	}

	if section := formatActionItems(req.ActionItems); section != "" {
		parts = append(parts, section)
	}
	if section := formatCodeSnippets(req.CodeSnippets, req.FilePath); section != "" {
		parts = append(parts, section)
	}
	if section := formatReferences(req.References); section != "" {
		parts = append(parts, section)
	}

	parts = append(parts,
		"",
		"Please analyze the code and implement the necessary changes to resolve this issue. Make sure to:",
		fmt.Sprintf("1. Follow best practices for %s", strings.ToLower(req.Category)),
		"2. Maintain code readability and consistency",
		"3. Add appropriate comments where necessary",
		"4. Test the changes thoroughly",
	)

	return strings.Join(parts, "\n")
}

// Timestamp returns the generation time in ISO-8601 UTC.
func Timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
