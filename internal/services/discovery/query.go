package discovery

import (
	"fmt"
	"strings"
)

// BlockLogic controls how the role/location/experience term blocks are
// combined in a site-search query
type BlockLogic string

const (
	LogicAnd BlockLogic = "AND"
	LogicOr  BlockLogic = "OR"
)

// QueryOptions carries the advanced filter terms for the site-search
// strategy. Terms within a block are OR-joined; blocks are combined per the
// Logic flag (AND by default).
type QueryOptions struct {
	Roles          []string
	LocationTerms  []string
	ExperienceTerm string
	Exclusions     []string
	Logic          BlockLogic
}

// quoteTerms wraps each non-empty term in double quotes
func quoteTerms(terms []string) []string {
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		quoted = append(quoted, fmt.Sprintf("%q", t))
	}
	return quoted
}

// orBlock renders a parenthesized OR group, or the bare term for a single
// entry. Returns "" when no terms survive trimming.
func orBlock(terms []string) string {
	quoted := quoteTerms(terms)
	switch len(quoted) {
	case 0:
		return ""
	case 1:
		return quoted[0]
	default:
		return "(" + strings.Join(quoted, " OR ") + ")"
	}
}

// BuildSiteQuery composes the site-restricted search query for a domain.
// With no filter context at all it falls back to the generic
// `site:<domain> careers jobs` probe.
func BuildSiteQuery(domain string, opts QueryOptions) string {
	domain = normalizeHost(domain)

	blocks := make([]string, 0, 3)
	if b := orBlock(opts.Roles); b != "" {
		blocks = append(blocks, b)
	}
	if b := orBlock(opts.LocationTerms); b != "" {
		blocks = append(blocks, b)
	}
	if exp := strings.TrimSpace(opts.ExperienceTerm); exp != "" {
		blocks = append(blocks, fmt.Sprintf("%q", exp))
	}

	if len(blocks) == 0 {
		return fmt.Sprintf("site:%s careers jobs", domain)
	}

	var body string
	if opts.Logic == LogicOr && len(blocks) > 1 {
		body = "(" + strings.Join(blocks, " OR ") + ")"
	} else {
		body = strings.Join(blocks, " ")
	}

	parts := []string{fmt.Sprintf("site:%s", domain), body}
	for _, excl := range opts.Exclusions {
		excl = strings.TrimSpace(excl)
		if excl == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("-%q", excl))
	}

	return strings.Join(parts, " ")
}
