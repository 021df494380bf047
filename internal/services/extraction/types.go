package extraction

import "context"

// ExtractedContent is the ephemeral output of one extraction pass. It is
// consumed immediately by the normalizer and never persisted on its own.
// Any field may be empty; Error carries the network/render failure when the
// pass could not produce content.
type ExtractedContent struct {
	Title       string
	Description string
	SalaryText  string
	JobType     string
	LogoURL     string
	Error       string
}

// HasError reports whether the pass failed at the network/render layer
func (c *ExtractedContent) HasError() bool {
	return c.Error != ""
}

// Extractor is one tier of the extraction ladder. Implementations return a
// content struct even on failure (with Error set); the error return is for
// logging only and never aborts the caller.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, url string) (*ExtractedContent, error)
}
