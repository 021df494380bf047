package models

import "time"

// DiscoveryStrategy identifies how candidate job URLs are discovered for a company
type DiscoveryStrategy string

const (
	// StrategySiteSearch issues site-restricted search API queries (site:domain.com)
	StrategySiteSearch DiscoveryStrategy = "site_search"
	// StrategyCareerCrawl performs a single-hop crawl of guessed or configured career pages
	StrategyCareerCrawl DiscoveryStrategy = "career_page_crawl"
	// StrategyATSDirect crawls a configured ATS root URL (single hop)
	StrategyATSDirect DiscoveryStrategy = "ats_direct"
)

// Company represents a target company whose own domain is scraped for postings
type Company struct {
	ID          string `json:"id"`
	Name        string `json:"name" badgerhold:"unique"`
	Domain      string `json:"domain"` // Primary domain, e.g. "acme.com"
	Website     string `json:"website,omitempty"`
	Description string `json:"description,omitempty"`

	// Logo fetching metadata
	LogoURL         string     `json:"logo_url,omitempty"`
	LogoLastFetched *time.Time `json:"logo_last_fetched,omitempty"`
	LogoFetchFailed bool       `json:"logo_fetch_failed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ScrapeProfile controls discovery and extraction behavior per company.
// It enforces the domain boundary: scraping never leaves the company's
// domain family, and AllowedDomains narrows (never widens) that rule.
type ScrapeProfile struct {
	CompanyID string `json:"company_id" badgerhold:"unique"`
	IsActive  bool   `json:"is_active"`

	// AllowedDomains is a strict allow-list of hosts/subdomains
	// (e.g. ["careers.airbnb.com"]). Empty means the base-domain rule alone applies.
	AllowedDomains []string `json:"allowed_domains"`

	Strategy   DiscoveryStrategy `json:"discovery_strategy"`
	ATSRootURL string            `json:"ats_root_url,omitempty"`

	// RenderRequired forces the headless-browser tier for this company's pages
	RenderRequired bool `json:"render_required"`

	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
	LastStatus string     `json:"last_status,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
