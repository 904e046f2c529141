package llm

import (
	"regexp"
	"strings"
)

var fencedJSONPattern = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// ExtractJSON pulls candidate JSON out of a model response. Preference
// order: content of the first triple-backtick fence (optionally tagged
// json), then the trimmed text itself if it looks like a JSON array,
// otherwise the raw text unmodified so a downstream parse fails safely.
func ExtractJSON(text string) string {
	if matches := fencedJSONPattern.FindStringSubmatch(text); matches != nil {
		return strings.TrimSpace(matches[1])
	}

	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
		return trimmed
	}

	return text
}

// ExtractJSONObject is the object-shaped variant used by the key-files
// and tech-stack flows, whose responses are JSON objects rather than
// arrays.
func ExtractJSONObject(text string) string {
	if matches := fencedJSONPattern.FindStringSubmatch(text); matches != nil {
		return strings.TrimSpace(matches[1])
	}

	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return trimmed
	}

	return text
}
