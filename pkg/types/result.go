package types

import "time"

// SearchResult is one hit from a semantic query against the vector index.
type SearchResult struct {
	Path        string  `json:"path"`
	Title       string  `json:"title,omitempty"`
	Tags        string  `json:"tags,omitempty"`
	Excerpt     string  `json:"excerpt,omitempty"`
	Score       float64 `json:"score"`
	LastIndexed time.Time `json:"last_indexed,omitempty"`
}

// Summary aggregates the outcome of an indexing run. A nonzero Failed
// count is partial coverage, not a failed run; the offending paths are
// in the logs.
type Summary struct {
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Stats describes the current state of the index.
type Stats struct {
	TotalDocuments int        `json:"total_documents"`
	LastIndexed    *time.Time `json:"last_indexed,omitempty"`
	Model          string     `json:"model,omitempty"`
	Provider       string     `json:"provider,omitempty"`
}
