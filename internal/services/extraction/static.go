package extraction

import (
	"context"
	"fmt"
	"net/http"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vacans/internal/common"
)

// StaticExtractor is Tier 1: a plain HTTP GET with a realistic user agent
// and goquery parsing. Fast, but blind to client-rendered pages.
type StaticExtractor struct {
	config     *common.ExtractionConfig
	httpClient *http.Client
	logger     arbor.ILogger
}

// NewStaticExtractor creates the static-fetch extractor
func NewStaticExtractor(config *common.ExtractionConfig, logger arbor.ILogger) *StaticExtractor {
	return &StaticExtractor{
		config: config,
		httpClient: &http.Client{
			Timeout: config.RequestTimeout,
		},
		logger: logger,
	}
}

func (e *StaticExtractor) Name() string {
	return "static"
}

// Extract fetches and parses the page. Network failures populate the Error
// field rather than raising; the caller decides whether to escalate to the
// render tier.
func (e *StaticExtractor) Extract(ctx context.Context, pageURL string) (*ExtractedContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return &ExtractedContent{Error: err.Error()}, err
	}
	req.Header.Set("User-Agent", e.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		fetchErr := fmt.Errorf("static fetch failed: %w", err)
		return &ExtractedContent{Error: fetchErr.Error()}, fetchErr
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("static fetch returned status %d", resp.StatusCode)
		return &ExtractedContent{Error: statusErr.Error()}, statusErr
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		parseErr := fmt.Errorf("failed to parse page: %w", err)
		return &ExtractedContent{Error: parseErr.Error()}, parseErr
	}

	return parseContent(doc, pageURL), nil
}
