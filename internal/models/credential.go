package models

import "time"

// SearchCredential holds one configured credential for the external
// site-restricted search API. Multiple credentials may be active; the search
// client rotates between them on auth failure (401) and retries with backoff
// on rate limiting (429).
type SearchCredential struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Service  string `json:"service" badgerhold:"index"` // e.g. "google_custom"
	APIKey   string `json:"api_key"`
	EngineID string `json:"engine_id,omitempty"` // Custom search engine id (cx)
	IsActive bool   `json:"is_active"`

	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Usable reports whether the credential is active and not expired
func (c *SearchCredential) Usable(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return false
	}
	return true
}

// JobRole is one entry of the role taxonomy used to constrain the
// normalizer's vocabulary and to target site-search queries
type JobRole struct {
	ID   string `json:"id"`
	Name string `json:"name" badgerhold:"unique"`
}
