package discovery

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vacans/internal/models"
)

// Engine dispatches discovery strategies for a company and unions their
// results. Discovery is best-effort: a failing strategy degrades to an empty
// contribution and is logged, never raised.
type Engine struct {
	strategies map[models.DiscoveryStrategy]Strategy
	logger     arbor.ILogger
}

// NewEngine creates a discovery engine from the available strategies
func NewEngine(logger arbor.ILogger, strategies ...Strategy) *Engine {
	byName := make(map[models.DiscoveryStrategy]Strategy, len(strategies))
	for _, s := range strategies {
		byName[s.Name()] = s
	}
	return &Engine{
		strategies: byName,
		logger:     logger,
	}
}

// Discover returns the deduplicated union of candidate URLs across the
// selected strategies, safety-filtered, and capped to limit (<=0 means no
// cap). Filtering always runs before truncation so the cap only discards,
// never admits, unsafe URLs.
func (e *Engine) Discover(ctx context.Context, company *models.Company, profile *models.ScrapeProfile, opts Options, limit int) []string {
	validator := NewValidator(company.Domain, profile.AllowedDomains)

	names := opts.Strategies
	if len(names) == 0 {
		names = []models.DiscoveryStrategy{profile.Strategy}
	}

	seen := make(map[string]bool)
	var union []string
	for _, name := range names {
		strategy, ok := e.strategies[name]
		if !ok {
			e.logger.Warn().Str("strategy", string(name)).Msg("Unknown discovery strategy, skipping")
			continue
		}

		urls, err := strategy.Discover(ctx, company, profile, validator, opts)
		if err != nil {
			e.logger.Warn().
				Str("strategy", string(name)).
				Str("company", company.Name).
				Err(err).
				Msg("Discovery strategy failed, continuing with remaining strategies")
			continue
		}

		for _, u := range urls {
			if !seen[u] {
				seen[u] = true
				union = append(union, u)
			}
		}
	}

	// Strategies validate as they go, but the final pass is the invariant:
	// nothing outside the boundary survives discovery.
	safe := validator.FilterSafe(union)

	if limit > 0 && len(safe) > limit {
		safe = safe[:limit]
	}

	e.logger.Info().
		Str("company", company.Name).
		Int("strategies", len(names)).
		Int("urls", len(safe)).
		Msg("Discovery complete")

	return safe
}
