package discovery

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vacans/internal/common"
	"github.com/ternarybob/vacans/internal/models"
)

// ATSDirectStrategy treats a configured ATS root URL as a single-hop crawl
// seed. It reuses the crawl mechanics with a different starting point.
type ATSDirectStrategy struct {
	config     *common.DiscoveryConfig
	httpClient *http.Client
	logger     arbor.ILogger
}

// NewATSDirectStrategy creates the known-ATS direct strategy
func NewATSDirectStrategy(config *common.DiscoveryConfig, logger arbor.ILogger) *ATSDirectStrategy {
	return &ATSDirectStrategy{
		config: config,
		httpClient: &http.Client{
			Timeout: config.RequestTimeout,
		},
		logger: logger,
	}
}

func (s *ATSDirectStrategy) Name() models.DiscoveryStrategy {
	return models.StrategyATSDirect
}

func (s *ATSDirectStrategy) Discover(ctx context.Context, company *models.Company, profile *models.ScrapeProfile, validator *Validator, opts Options) ([]string, error) {
	if profile.ATSRootURL == "" {
		return nil, fmt.Errorf("ats_direct strategy requires a configured ATS root URL for company %s", company.Name)
	}

	return crawlSeeds(ctx, s.httpClient, s.config.UserAgent, []string{profile.ATSRootURL}, validator, s.logger), nil
}
