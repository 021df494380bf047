package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vacans/internal/common"
	"github.com/ternarybob/vacans/internal/models"
)

// CareerCrawlStrategy performs a single-hop crawl of guessed or configured
// career pages: fetch each seed, collect its <a href> links, and stop.
// Depth never exceeds 1.
type CareerCrawlStrategy struct {
	config     *common.DiscoveryConfig
	httpClient *http.Client
	logger     arbor.ILogger
}

// NewCareerCrawlStrategy creates the career-page crawl strategy
func NewCareerCrawlStrategy(config *common.DiscoveryConfig, logger arbor.ILogger) *CareerCrawlStrategy {
	return &CareerCrawlStrategy{
		config: config,
		httpClient: &http.Client{
			Timeout: config.RequestTimeout,
		},
		logger: logger,
	}
}

func (s *CareerCrawlStrategy) Name() models.DiscoveryStrategy {
	return models.StrategyCareerCrawl
}

// Discover crawls the guessed seed paths on the company's site. A failing
// seed is logged and skipped; it never aborts the remaining seeds.
func (s *CareerCrawlStrategy) Discover(ctx context.Context, company *models.Company, profile *models.ScrapeProfile, validator *Validator, opts Options) ([]string, error) {
	seeds := s.seedURLs(company)
	if len(seeds) == 0 {
		return nil, fmt.Errorf("no crawl seeds for company %s", company.Name)
	}

	return crawlSeeds(ctx, s.httpClient, s.config.UserAgent, seeds, validator, s.logger), nil
}

// seedURLs builds the candidate career-page URLs from the company's website
// (or bare domain) plus the configured guess paths.
func (s *CareerCrawlStrategy) seedURLs(company *models.Company) []string {
	base := strings.TrimSuffix(company.Website, "/")
	if base == "" {
		if company.Domain == "" {
			return nil
		}
		base = "https://" + company.Domain
	}

	seeds := make([]string, 0, len(s.config.SeedPaths))
	for _, path := range s.config.SeedPaths {
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		seeds = append(seeds, base+path)
	}
	return seeds
}

// crawlSeeds fetches each safe seed once and collects the safe links found
// on it. Shared by the career-crawl and ATS-direct strategies.
func crawlSeeds(ctx context.Context, client *http.Client, userAgent string, seeds []string, validator *Validator, logger arbor.ILogger) []string {
	seen := make(map[string]bool)
	var found []string

	for _, seed := range seeds {
		if !validator.IsSafe(seed) {
			logger.Warn().Str("seed", seed).Msg("Crawl seed outside domain boundary, skipping")
			continue
		}

		links, err := fetchLinks(ctx, client, userAgent, seed)
		if err != nil {
			logger.Debug().Str("seed", seed).Err(err).Msg("Crawl seed failed, skipping")
			continue
		}

		for _, link := range links {
			if seen[link] {
				continue
			}
			seen[link] = true
			if validator.IsSafe(link) {
				found = append(found, link)
			}
		}
	}

	return found
}

// fetchLinks GETs a page and returns its absolute <a href> targets
func fetchLinks(ctx context.Context, client *http.Client, userAgent, pageURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL: %w", err)
	}

	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "javascript:") {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)
		resolved.Fragment = ""
		links = append(links, resolved.String())
	})

	return links, nil
}
