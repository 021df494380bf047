package extraction

import (
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// descriptionSelectors are tried in priority order; the candidate element
// with the most text wins. Falls back to the largest text block on the page.
var descriptionSelectors = []string{
	`div[class*="description"]`,
	`div[class*="job-detail"]`,
	`div[class*="job_detail"]`,
	`div[class*="posting"]`,
	`section[class*="description"]`,
	`div[id*="description"]`,
	"article",
	"main",
}

// minCandidateLength filters out noise blocks when scanning for the
// description container
const minCandidateLength = 50

// salaryRegex matches tokens like "$80,000 - $120,000/yr" or "$90k-$120k"
var salaryRegex = regexp.MustCompile(`(?i)\$[\d,]+(?:k)?\s*-\s*\$[\d,]+(?:k)?(?:\s*\/\s*(?:yr|mo|hr))?`)

// jobTypeKeywords maps page-text keywords to canonical employment types,
// checked in order so the more specific phrases win
var jobTypeKeywords = []struct {
	keyword string
	jobType string
}{
	{"full-time", "full_time"},
	{"full time", "full_time"},
	{"part-time", "part_time"},
	{"part time", "part_time"},
	{"internship", "internship"},
	{"intern ", "internship"},
	{"contract", "contract"},
	{"freelance", "contract"},
}

var whitespaceRegex = regexp.MustCompile(`\s+`)

// collapseWhitespace normalizes runs of whitespace to single spaces
func collapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}

// parseContent runs the shared content heuristics over a parsed document.
// Both tiers call this: Tier 1 on the raw response body, Tier 2 on the
// rendered DOM.
func parseContent(doc *goquery.Document, pageURL string) *ExtractedContent {
	// Strip non-content elements before any text measurement
	doc.Find("script, style, nav, header, footer, iframe, noscript").Remove()

	content := &ExtractedContent{
		Title:       pageTitle(doc),
		Description: extractDescription(doc),
		LogoURL:     extractLogoURL(doc, pageURL),
	}

	pageText := collapseWhitespace(doc.Find("body").Text())
	content.SalaryText = salaryRegex.FindString(pageText)
	content.JobType = detectJobType(pageText)

	return content
}

func pageTitle(doc *goquery.Document) string {
	if h1 := collapseWhitespace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return collapseWhitespace(doc.Find("title").First().Text())
}

// extractDescription selects the description container and renders it as
// markdown so structure (lists, headings) survives into the normalizer
// prompt.
func extractDescription(doc *goquery.Document) string {
	var best *goquery.Selection
	bestLen := 0

	for _, selector := range descriptionSelectors {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			textLen := len(collapseWhitespace(sel.Text()))
			if textLen > minCandidateLength && textLen > bestLen {
				best = sel
				bestLen = textLen
			}
		})
	}

	if best == nil {
		// Fallback: the body itself, as plain text
		return collapseWhitespace(doc.Find("body").Text())
	}

	html, err := best.Html()
	if err != nil {
		return collapseWhitespace(best.Text())
	}

	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(html)
	if err != nil {
		return collapseWhitespace(best.Text())
	}
	return strings.TrimSpace(markdown)
}

// detectJobType scans page text for employment-type keywords
func detectJobType(pageText string) string {
	lower := strings.ToLower(pageText)
	for _, entry := range jobTypeKeywords {
		if strings.Contains(lower, entry.keyword) {
			return entry.jobType
		}
	}
	return ""
}

// extractLogoURL looks for an Open Graph image first, then any <img> whose
// src or alt mentions "logo". Protocol-relative and root-relative sources
// are resolved against the page URL.
func extractLogoURL(doc *goquery.Document, pageURL string) string {
	if og, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok && og != "" {
		return resolveImageURL(og, pageURL)
	}

	var logo string
	doc.Find("img").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		src, _ := sel.Attr("src")
		alt, _ := sel.Attr("alt")
		if src == "" {
			return true
		}
		if strings.Contains(strings.ToLower(src), "logo") || strings.Contains(strings.ToLower(alt), "logo") {
			logo = resolveImageURL(src, pageURL)
			return false
		}
		return true
	})
	return logo
}

func resolveImageURL(src, pageURL string) string {
	src = strings.TrimSpace(src)
	if src == "" {
		return ""
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return src
	}

	if strings.HasPrefix(src, "//") {
		return base.Scheme + ":" + src
	}

	ref, err := url.Parse(src)
	if err != nil {
		return src
	}
	return base.ResolveReference(ref).String()
}
