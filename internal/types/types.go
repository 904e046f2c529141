package types

// FileContent is one fetched repository file. Paths that fail to fetch are
// omitted upstream, so a FileContent always carries real content.
type FileContent struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// KeyFiles is the caller-supplied categorization of files to analyze.
// Insertion order within each category is preserved and determines chunk order.
type KeyFiles struct {
	Frontend []string `json:"frontend"`
	Backend  []string `json:"backend"`
	Infra    []string `json:"infra"`
}

// Flatten returns all paths in category order: frontend, backend, infra.
func (k KeyFiles) Flatten() []string {
	paths := make([]string, 0, len(k.Frontend)+len(k.Backend)+len(k.Infra))
	paths = append(paths, k.Frontend...)
	paths = append(paths, k.Backend...)
	paths = append(paths, k.Infra...)
	return paths
}

// TechStack groups detected technologies by layer.
type TechStack struct {
	Frontend []string `json:"frontend"`
	Backend  []string `json:"backend"`
	Infra    []string `json:"infra"`
}

// Recommendation severity levels as the model is instructed to emit them.
const (
	SeverityCritical = "CRITICAL"
	SeverityHigh     = "HIGH"
	SeverityMedium   = "MEDIUM"
	SeverityLow      = "LOW"
	SeverityInfo     = "INFO"
)

// Recommendation categories.
const (
	CategorySecurity       = "SECURITY"
	CategoryPerformance    = "PERFORMANCE"
	CategoryInfrastructure = "INFRASTRUCTURE"
	CategoryReliability    = "RELIABILITY"
	CategoryCompliance     = "COMPLIANCE"
	CategoryCost           = "COST"
)

// Recommendation is one structured finding about a file. Severity and
// category come from the model as free-form strings; known values are
// case-normalized at the parse boundary, unknown values pass through.
type Recommendation struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	FilePath    string   `json:"file_path"`
	Severity    string   `json:"severity"`
	Category    string   `json:"category"`
	ActionItems []string `json:"action_items"`
}

// Stats holds the cumulative usage counters.
type Stats struct {
	Repos           int64 `json:"repos"`
	Files           int64 `json:"files"`
	Recommendations int64 `json:"recommendations"`
}
