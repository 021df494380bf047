package extraction

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vacans/internal/common"
)

// BrowserExtractor is Tier 2: render the page in headless Chrome so
// client-side JavaScript runs, then apply the same content heuristics to the
// rendered DOM. The browser session is created per call and torn down on
// every exit path.
type BrowserExtractor struct {
	config *common.ExtractionConfig
	logger arbor.ILogger
}

// NewBrowserExtractor creates the headless-render extractor
func NewBrowserExtractor(config *common.ExtractionConfig, logger arbor.ILogger) *BrowserExtractor {
	return &BrowserExtractor{
		config: config,
		logger: logger,
	}
}

func (e *BrowserExtractor) Name() string {
	return "browser"
}

func (e *BrowserExtractor) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.UserAgent(e.config.UserAgent),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.WindowSize(1920, 1080),
	}

	if e.config.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	}
	if e.config.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}

	return opts
}

// Extract renders the page and parses the resulting DOM. The allocator and
// browser contexts are cancelled via defer, so teardown happens on success,
// parse failure, and render crash alike.
func (e *BrowserExtractor) Extract(ctx context.Context, pageURL string) (*ExtractedContent, error) {
	renderCtx, cancel := context.WithTimeout(ctx, e.config.RenderTimeout)
	defer cancel()

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(renderCtx, e.allocatorOptions()...)
	defer allocatorCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	defer browserCancel()

	// Short randomized settle delay after body presence, for late-loading
	// job boards
	settle := time.Duration(1000+rand.Intn(1000)) * time.Millisecond

	var html string
	err := chromedp.Run(browserCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{
			"Accept-Language": "en-US,en;q=0.9",
		}),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body"),
		chromedp.Sleep(settle),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		renderErr := fmt.Errorf("headless render failed: %w", err)
		return &ExtractedContent{Error: renderErr.Error()}, renderErr
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		parseErr := fmt.Errorf("failed to parse rendered page: %w", err)
		return &ExtractedContent{Error: parseErr.Error()}, parseErr
	}

	return parseContent(doc, pageURL), nil
}
