package discovery

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vacans/internal/interfaces"
	"github.com/ternarybob/vacans/internal/models"
)

// SiteSearchStrategy discovers candidate URLs through a site-restricted
// search API query. Credential rotation and rate-limit retry live in the
// search client; this strategy only composes the query and collects links.
type SiteSearchStrategy struct {
	searchClient interfaces.SearchClient
	logger       arbor.ILogger
}

// NewSiteSearchStrategy creates the site-search strategy
func NewSiteSearchStrategy(searchClient interfaces.SearchClient, logger arbor.ILogger) *SiteSearchStrategy {
	return &SiteSearchStrategy{
		searchClient: searchClient,
		logger:       logger,
	}
}

func (s *SiteSearchStrategy) Name() models.DiscoveryStrategy {
	return models.StrategySiteSearch
}

func (s *SiteSearchStrategy) Discover(ctx context.Context, company *models.Company, profile *models.ScrapeProfile, validator *Validator, opts Options) ([]string, error) {
	if company.Domain == "" {
		return nil, fmt.Errorf("site_search strategy requires a company domain")
	}

	queryOpts := opts.Query
	if len(queryOpts.Roles) == 0 {
		queryOpts.Roles = opts.Roles
	}
	query := BuildSiteQuery(company.Domain, queryOpts)

	s.logger.Debug().
		Str("company", company.Name).
		Str("query", query).
		Msg("Issuing site-restricted search")

	results, err := s.searchClient.Search(ctx, query, 0)
	if err != nil {
		return nil, fmt.Errorf("site search failed: %w", err)
	}

	urls := make([]string, 0, len(results))
	for _, r := range results {
		if r.Link == "" {
			continue
		}
		if validator.IsSafe(r.Link) {
			urls = append(urls, r.Link)
		} else {
			s.logger.Warn().Str("url", r.Link).Msg("Search result outside domain boundary, dropping")
		}
	}
	return urls, nil
}
