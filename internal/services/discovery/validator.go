package discovery

import (
	"net/url"
	"strings"
)

// Validator is the single safety gate every discovered and crawled link
// passes through before retention. It is pure and deterministic: no network,
// no side effects. Malformed input fails closed.
type Validator struct {
	baseDomain     string
	allowedDomains []string
}

// NewValidator creates a validator for a company's domain boundary.
// allowedDomains narrows the base-domain rule, it never widens it.
func NewValidator(baseDomain string, allowedDomains []string) *Validator {
	normalized := make([]string, 0, len(allowedDomains))
	for _, d := range allowedDomains {
		if nd := normalizeHost(d); nd != "" {
			normalized = append(normalized, nd)
		}
	}

	return &Validator{
		baseDomain:     normalizeHost(baseDomain),
		allowedDomains: normalized,
	}
}

// normalizeHost lowercases a host and strips a leading "www." prefix
func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	return strings.TrimPrefix(host, "www.")
}

// hostMatches reports whether host equals domain or is a subdomain of it
func hostMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// IsSafe reports whether a URL stays inside the company's domain boundary.
// The host must equal the base domain or be a subdomain of it; when an
// allow-list is configured, the host must additionally match one of its
// entries. Empty or malformed URLs are unsafe.
func (v *Validator) IsSafe(rawURL string) bool {
	if rawURL == "" || v.baseDomain == "" {
		return false
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false
	}

	host := normalizeHost(parsed.Hostname())
	if host == "" {
		return false
	}

	if !hostMatches(host, v.baseDomain) {
		return false
	}

	if len(v.allowedDomains) == 0 {
		return true
	}
	for _, allowed := range v.allowedDomains {
		if hostMatches(host, allowed) {
			return true
		}
	}
	return false
}

// FilterSafe returns only the URLs that pass the safety check, preserving
// input order and dropping duplicates.
func (v *Validator) FilterSafe(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	result := make([]string, 0, len(urls))
	for _, u := range urls {
		if seen[u] {
			continue
		}
		seen[u] = true
		if v.IsSafe(u) {
			result = append(result, u)
		}
	}
	return result
}
