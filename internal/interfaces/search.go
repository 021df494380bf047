package interfaces

import "context"

// SearchResult is one hit from the site-restricted search API
type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// SearchClient - minimal contract with the external full-text search API.
// Implementations handle credential rotation and rate-limit retry internally;
// a failure after exhausting all credentials returns a descriptive error.
type SearchClient interface {
	Search(ctx context.Context, query string, numResults int) ([]SearchResult, error)
}
