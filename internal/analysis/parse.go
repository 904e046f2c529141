package analysis

import (
	"encoding/json"
	"strings"

	"github.com/steventanyang/deployable/internal/llm"
	"github.com/steventanyang/deployable/internal/types"
)

// ParseMode selects how a failed JSON parse of model output degrades.
type ParseMode int

const (
	// ParseLenient turns a parse failure into a single synthetic
	// "JSON Parsing Error" recommendation carrying the error message.
	// This is the default policy.
	ParseLenient ParseMode = iota

	// ParseStrict turns a parse failure into an empty list.
	ParseStrict
)

var knownSeverities = map[string]string{
	"critical": types.SeverityCritical,
	"high":     types.SeverityHigh,
	"medium":   types.SeverityMedium,
	"low":      types.SeverityLow,
	"info":     types.SeverityInfo,
}

var knownCategories = map[string]string{
	"security":       types.CategorySecurity,
	"performance":    types.CategoryPerformance,
	"infrastructure": types.CategoryInfrastructure,
	"reliability":    types.CategoryReliability,
	"compliance":     types.CategoryCompliance,
	"cost":           types.CategoryCost,
}

// ParseRecommendations extracts candidate JSON from raw model output and
// decodes it into recommendations. Severity and category values matching
// the known sets are case-normalized; unknown values pass through
// unchanged. The function never returns an error: malformed output
// degrades per mode.
func ParseRecommendations(raw string, mode ParseMode) []types.Recommendation {
	candidate := llm.ExtractJSON(raw)

	var recs []types.Recommendation
	if err := json.Unmarshal([]byte(candidate), &recs); err != nil {
		// Some models return a single object instead of an array.
		var single types.Recommendation
		if objErr := json.Unmarshal([]byte(candidate), &single); objErr == nil && single.Title != "" {
			recs = []types.Recommendation{single}
		} else if mode == ParseStrict {
			return []types.Recommendation{}
		} else {
			return []types.Recommendation{syntheticParseError(err, raw)}
		}
	}

	for i := range recs {
		recs[i].Severity = normalize(recs[i].Severity, knownSeverities)
		recs[i].Category = normalize(recs[i].Category, knownCategories)
	}
	return recs
}

func normalize(value string, known map[string]string) string {
	if canonical, ok := known[strings.ToLower(strings.TrimSpace(value))]; ok {
		return canonical
	}
	return value
}

func syntheticParseError(err error, raw string) types.Recommendation {
	preview := raw
	if len(preview) > 500 {
		preview = preview[:500]
	}

	return types.Recommendation{
		Title:       "JSON Parsing Error",
		Description: "Failed to parse model response: " + err.Error(),
		Severity:    types.SeverityInfo,
		Category:    types.CategoryReliability,
		ActionItems: []string{"Retry the analysis", "Raw response preview: " + preview},
	}
}
