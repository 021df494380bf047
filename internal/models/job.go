package models

import (
	"fmt"
	"time"
)

// JobStatus is the business-facing publish state of a job record.
// It is distinct from ScrapeStatus, which tracks the ingestion lifecycle.
type JobStatus string

const (
	JobStatusNew      JobStatus = "new"
	JobStatusApproved JobStatus = "approved"
	JobStatusRejected JobStatus = "rejected"
	JobStatusExpired  JobStatus = "expired"
)

// ScrapeStatus is the internal lifecycle stage of a job candidate
type ScrapeStatus string

const (
	ScrapeStatusDiscovered    ScrapeStatus = "discovered"
	ScrapeStatusFetched       ScrapeStatus = "fetched"
	ScrapeStatusParsedPartial ScrapeStatus = "parsed_partial"
	ScrapeStatusParsedFailed  ScrapeStatus = "parsed_failed"
	ScrapeStatusApproved      ScrapeStatus = "approved"
	ScrapeStatusRejected      ScrapeStatus = "rejected"
)

// scrapeTransitions defines the linear, monotonic lifecycle:
// discovered -> fetched -> {parsed_partial | parsed_failed} -> {approved | rejected}.
// A discovered record that never fetched successfully moves straight to
// parsed_failed; records awaiting review (fetched or parsed_*) take the
// approve/reject branch. Skipping from discovered to a review outcome is
// not allowed.
var scrapeTransitions = map[ScrapeStatus][]ScrapeStatus{
	ScrapeStatusDiscovered:    {ScrapeStatusFetched, ScrapeStatusParsedFailed},
	ScrapeStatusFetched:       {ScrapeStatusParsedPartial, ScrapeStatusParsedFailed, ScrapeStatusApproved, ScrapeStatusRejected},
	ScrapeStatusParsedPartial: {ScrapeStatusApproved, ScrapeStatusRejected},
	ScrapeStatusParsedFailed:  {ScrapeStatusApproved, ScrapeStatusRejected},
	ScrapeStatusApproved:      {},
	ScrapeStatusRejected:      {},
}

// CanTransition reports whether moving from one scrape status to another is
// allowed by the lifecycle state machine. Same-status writes are allowed.
func (s ScrapeStatus) CanTransition(to ScrapeStatus) bool {
	if s == to {
		return true
	}
	for _, next := range scrapeTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// JobRecord is the persisted outcome of the ingestion pipeline, consumed by
// the external admin/API layer. URL is unique across the corpus; DedupHash is
// unique when present (the same posting can surface at two URLs).
type JobRecord struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id" badgerhold:"index"`

	Title       string `json:"title"`
	Location    string `json:"location"`
	URL         string `json:"url" badgerhold:"unique"`
	ApplyURL    string `json:"apply_url,omitempty"`
	Description string `json:"description"`
	SalaryRange string `json:"salary_range,omitempty"`
	JobType     string `json:"job_type,omitempty"`
	Experience  string `json:"experience,omitempty"`
	IsRemote    bool   `json:"is_remote"`
	LogoURL     string `json:"logo_url,omitempty"`

	// RoleName links the record to the role taxonomy when the normalizer
	// produced a match (case-insensitive against the configured role list)
	RoleName string `json:"role_name,omitempty"`

	Status       JobStatus    `json:"status" badgerhold:"index"`
	ScrapeStatus ScrapeStatus `json:"scrape_status" badgerhold:"index"`

	// DedupHash is hash(companyID + normalized title + normalized location),
	// empty when not yet computed
	DedupHash string `json:"dedup_hash,omitempty" badgerhold:"index"`

	RetryCount    int        `json:"retry_count"`
	FailureReason string     `json:"failure_reason,omitempty"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SetScrapeStatus applies a lifecycle transition, rejecting moves the state
// machine does not allow.
func (j *JobRecord) SetScrapeStatus(to ScrapeStatus) error {
	if !j.ScrapeStatus.CanTransition(to) {
		return fmt.Errorf("invalid scrape status transition %s -> %s", j.ScrapeStatus, to)
	}
	j.ScrapeStatus = to
	return nil
}

// NormalizedJob is the structured result of the language-model pass over raw
// extracted content. Any field may be empty, signaling the orchestrator to
// fall back to extraction-tier data.
type NormalizedJob struct {
	Title       string `json:"title"`
	RoleName    string `json:"job_role"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Experience  string `json:"experience_required"`
	SalaryRange string `json:"salary_range"`
	JobType     string `json:"job_type"`
	IsRemote    bool   `json:"is_remote"`
	ApplyURL    string `json:"direct_apply_link"`
}
