package extraction

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vacans/internal/common"
)

// Engine runs the extraction ladder: extractors are tried in order until one
// meets the success predicate (description length over the configured
// threshold). The engine never returns an error for a dead URL — the last
// tier's content, with its Error field set, is the result.
type Engine struct {
	extractors []Extractor
	minLength  int
	logger     arbor.ILogger
}

// NewEngine creates the two-tier extraction engine: static fetch first,
// headless render on shortfall.
func NewEngine(config *common.ExtractionConfig, logger arbor.ILogger) *Engine {
	return &Engine{
		extractors: []Extractor{
			NewStaticExtractor(config, logger),
			NewBrowserExtractor(config, logger),
		},
		minLength: config.MinDescriptionLength,
		logger:    logger,
	}
}

// NewEngineWithExtractors builds an engine over explicit tiers, used by
// tests and by render-required profiles.
func NewEngineWithExtractors(minLength int, logger arbor.ILogger, extractors ...Extractor) *Engine {
	return &Engine{
		extractors: extractors,
		minLength:  minLength,
		logger:     logger,
	}
}

// succeeded is the tier success predicate
func (e *Engine) succeeded(content *ExtractedContent) bool {
	return content != nil && !content.HasError() && len(content.Description) >= e.minLength
}

// Extract runs the ladder for one URL. When renderRequired is set the static
// tier is skipped entirely.
func (e *Engine) Extract(ctx context.Context, url string, renderRequired bool) *ExtractedContent {
	var last *ExtractedContent

	for _, extractor := range e.extractors {
		if renderRequired && extractor.Name() == "static" {
			continue
		}

		content, err := extractor.Extract(ctx, url)
		if err != nil {
			e.logger.Debug().
				Str("tier", extractor.Name()).
				Str("url", url).
				Err(err).
				Msg("Extraction tier failed")
		}

		if e.succeeded(content) {
			e.logger.Debug().
				Str("tier", extractor.Name()).
				Str("url", url).
				Int("description_length", len(content.Description)).
				Msg("Extraction succeeded")
			return content
		}

		// Keep the best partial result so far: prefer one with content over
		// one with only an error
		if last == nil || (last.HasError() && content != nil && !content.HasError()) {
			last = content
		}
	}

	if last == nil {
		last = &ExtractedContent{Error: "no extraction tiers available"}
	}
	return last
}
