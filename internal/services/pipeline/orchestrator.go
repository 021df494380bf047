package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vacans/internal/common"
	"github.com/ternarybob/vacans/internal/interfaces"
	"github.com/ternarybob/vacans/internal/models"
	"github.com/ternarybob/vacans/internal/services/discovery"
	"github.com/ternarybob/vacans/internal/services/extraction"
	"github.com/ternarybob/vacans/internal/services/normalizer"
)

// Discoverer produces safety-filtered candidate URLs for a company
type Discoverer interface {
	Discover(ctx context.Context, company *models.Company, profile *models.ScrapeProfile, opts discovery.Options, limit int) []string
}

// Extractor runs the tiered content extraction for one URL
type Extractor interface {
	Extract(ctx context.Context, url string, renderRequired bool) *extraction.ExtractedContent
}

// JobNormalizer turns raw extracted text into a structured job, nil meaning
// "fall back to extraction data"
type JobNormalizer interface {
	Normalize(ctx context.Context, rawText, companyName, sourceURL string) (*models.NormalizedJob, error)
}

// RunOptions carries the caller-supplied inputs for one run
type RunOptions struct {
	Roles      []string
	Query      discovery.QueryOptions
	Strategies []models.DiscoveryStrategy
	// Limit caps discovered URLs; <=0 uses the configured default
	Limit int
}

// RunResult is the per-run summary returned to the caller
type RunResult struct {
	RunID     string
	JobsFound int
	Processed int
	Errors    []string
}

// Orchestrator composes discovery, extraction, normalization, and the
// dedup/lifecycle store into one sequential run per company. Runs for
// different companies may execute concurrently; a company never has two
// concurrent runs.
type Orchestrator struct {
	config     *common.Config
	storage    interfaces.StorageManager
	discovery  Discoverer
	extractor  Extractor
	normalizer JobNormalizer
	logger     arbor.ILogger

	mu     sync.Mutex
	active map[string]bool
}

// NewOrchestrator creates the pipeline orchestrator
func NewOrchestrator(
	config *common.Config,
	storage interfaces.StorageManager,
	discoveryEngine Discoverer,
	extractor Extractor,
	jobNormalizer JobNormalizer,
	logger arbor.ILogger,
) *Orchestrator {
	return &Orchestrator{
		config:     config,
		storage:    storage,
		discovery:  discoveryEngine,
		extractor:  extractor,
		normalizer: jobNormalizer,
		logger:     logger,
		active:     make(map[string]bool),
	}
}

// acquire marks a company as running; false when a run is already in flight
func (o *Orchestrator) acquire(companyID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active[companyID] {
		return false
	}
	o.active[companyID] = true
	return true
}

func (o *Orchestrator) release(companyID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, companyID)
}

// Run executes a full pipeline run synchronously and returns its summary
func (o *Orchestrator) Run(ctx context.Context, companyID string, opts RunOptions) (*RunResult, error) {
	company, profile, run, err := o.prepare(ctx, companyID)
	if err != nil {
		return nil, err
	}
	defer o.release(companyID)

	return o.execute(ctx, company, profile, run, opts), nil
}

// RunAsync starts a run in its own goroutine and returns the run ID
// immediately, for trigger callers that poll the run log for progress.
func (o *Orchestrator) RunAsync(ctx context.Context, companyID string, opts RunOptions) (string, error) {
	company, profile, run, err := o.prepare(ctx, companyID)
	if err != nil {
		return "", err
	}

	go func() {
		defer o.release(companyID)
		o.execute(context.WithoutCancel(ctx), company, profile, run, opts)
	}()

	return run.ID, nil
}

// prepare resolves the company and profile, enforces single-flight, and
// persists the initial run record. The caller owns releasing the company
// slot.
func (o *Orchestrator) prepare(ctx context.Context, companyID string) (*models.Company, *models.ScrapeProfile, *models.RunLog, error) {
	if !o.acquire(companyID) {
		return nil, nil, nil, fmt.Errorf("a run is already in progress for company %s", companyID)
	}

	company, err := o.storage.CompanyStorage().GetCompany(ctx, companyID)
	if err != nil {
		o.release(companyID)
		return nil, nil, nil, err
	}

	profile, err := o.storage.CompanyStorage().GetOrCreateProfile(ctx, companyID)
	if err != nil {
		o.release(companyID)
		return nil, nil, nil, err
	}

	run := &models.RunLog{
		ID:        common.NewRunID(),
		CompanyID: companyID,
		Status:    models.RunStatusRunning,
		StartTime: time.Now(),
	}
	if err := o.storage.RunLogStorage().SaveRunLog(ctx, run); err != nil {
		o.release(companyID)
		return nil, nil, nil, fmt.Errorf("failed to create run log: %w", err)
	}

	return company, profile, run, nil
}

// execute is the sequential run loop. It always leaves the run record in a
// terminal status and preserves partial progress on every path.
func (o *Orchestrator) execute(ctx context.Context, company *models.Company, profile *models.ScrapeProfile, run *models.RunLog, opts RunOptions) *RunResult {
	result := &RunResult{RunID: run.ID}

	limit := opts.Limit
	if limit <= 0 {
		limit = o.config.Pipeline.DefaultLimit
	}

	discoveryOpts := discovery.Options{
		Roles:      opts.Roles,
		Query:      opts.Query,
		Strategies: opts.Strategies,
	}
	urls := o.discovery.Discover(ctx, company, profile, discoveryOpts, limit)

	run.TotalTarget = len(urls)
	run.Message = fmt.Sprintf("discovered %d candidate URLs", len(urls))
	o.saveRun(ctx, run)

	// Defense in depth: strategies already filter, but nothing outside the
	// boundary may reach extraction even if a strategy misbehaves
	validator := discovery.NewValidator(company.Domain, profile.AllowedDomains)

	stopped := false
	for i, url := range urls {
		if ctx.Err() != nil {
			o.finish(ctx, run, models.RunStatusFailed, fmt.Sprintf("run aborted: %v", ctx.Err()))
			result.Errors = append(result.Errors, ctx.Err().Error())
			return result
		}

		// Cooperative stop, observed between URLs only
		if o.stopRequested(ctx, run.ID) {
			stopped = true
			break
		}

		// Politeness delay between per-URL network operations
		if i > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(o.config.Pipeline.PolitenessDelay):
			}
		}

		run.CurrentTarget = url
		o.saveRun(ctx, run)

		if err := o.processURL(ctx, company, profile, validator, url, result); err != nil {
			// A single bad URL never aborts the run
			msg := fmt.Sprintf("%s: %v", url, err)
			result.Errors = append(result.Errors, msg)
			run.Message = msg
			o.logger.Warn().Str("url", url).Err(err).Msg("URL processing failed, continuing")
		}

		result.Processed++
		run.Processed = result.Processed
		run.JobsFound = result.JobsFound
		o.saveRun(ctx, run)
	}

	if stopped {
		o.finish(ctx, run, models.RunStatusStopped, fmt.Sprintf("stopped after %d of %d URLs", result.Processed, len(urls)))
		return result
	}

	message := fmt.Sprintf("completed: %d jobs from %d URLs", result.JobsFound, result.Processed)
	if len(result.Errors) > 0 {
		message = fmt.Sprintf("%s (%d errors)", message, len(result.Errors))
	}
	o.finish(ctx, run, models.RunStatusCompleted, message)

	if err := o.storage.CompanyStorage().MarkProfileRun(ctx, company.ID, time.Now(), string(models.RunStatusCompleted)); err != nil {
		o.logger.Warn().Err(err).Msg("Failed to update profile last-run")
	}

	return result
}

// maxExtractionRetries bounds re-attempts of a parsed_failed URL across runs
const maxExtractionRetries = 3

// processURL runs one URL through extract -> normalize -> dedup -> persist.
// Skips (known URL, duplicate hash, non-job content, safety violation) are
// nil returns; only genuine failures surface as errors.
func (o *Orchestrator) processURL(ctx context.Context, company *models.Company, profile *models.ScrapeProfile, validator *discovery.Validator, url string, result *RunResult) error {
	if !validator.IsSafe(url) {
		o.logger.Warn().Str("url", url).Msg("URL outside domain boundary, dropping")
		return nil
	}

	existing, err := o.storage.JobStorage().GetJobByURL(ctx, url)
	if err != nil {
		return fmt.Errorf("URL lookup failed: %w", err)
	}
	if existing != nil && !retryable(existing) {
		o.logger.Debug().Str("url", url).Msg("URL already persisted, skipping")
		return nil
	}

	content := o.extractor.Extract(ctx, url, profile.RenderRequired)
	if content.HasError() && content.Description == "" {
		o.recordFailure(ctx, company, url, existing, content.Error)
		return fmt.Errorf("extraction failed: %s", content.Error)
	}

	o.captureCompanyLogo(ctx, company, content.LogoURL)

	normalized, err := o.normalizer.Normalize(ctx, content.Description, company.Name, url)
	if errors.Is(err, normalizer.ErrNotJobPosting) {
		o.logger.Debug().Str("url", url).Msg("Not a job posting, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("normalization failed: %w", err)
	}

	record := o.buildRecord(ctx, company, url, content, normalized)
	if existing != nil {
		// A retried URL keeps its identity and retry history
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
		record.RetryCount = existing.RetryCount
	}

	if record.DedupHash != "" {
		duplicate, err := o.storage.JobStorage().DedupHashExists(ctx, record.DedupHash)
		if err != nil {
			return fmt.Errorf("dedup lookup failed: %w", err)
		}
		if duplicate {
			o.logger.Debug().Str("url", url).Str("title", record.Title).Msg("Duplicate posting, skipping")
			return nil
		}
	}

	if err := o.storage.JobStorage().SaveJob(ctx, record); err != nil {
		return fmt.Errorf("persist failed: %w", err)
	}

	result.JobsFound++
	return nil
}

// retryable reports whether a previously failed URL still has retry budget
func retryable(job *models.JobRecord) bool {
	return job.ScrapeStatus == models.ScrapeStatusParsedFailed && job.RetryCount < maxExtractionRetries
}

// recordFailure persists (or re-marks) a parsed_failed record so the URL's
// failure history and remaining retry budget survive across runs.
func (o *Orchestrator) recordFailure(ctx context.Context, company *models.Company, url string, existing *models.JobRecord, reason string) {
	record := existing
	if record == nil {
		record = &models.JobRecord{
			ID:           common.NewJobID(),
			CompanyID:    company.ID,
			URL:          url,
			Status:       models.JobStatusNew,
			ScrapeStatus: models.ScrapeStatusParsedFailed,
		}
	} else {
		record.RetryCount++
		record.ScrapeStatus = models.ScrapeStatusParsedFailed
	}

	record.FailureReason = reason
	now := time.Now()
	record.LastAttemptAt = &now

	if err := o.storage.JobStorage().SaveJob(ctx, record); err != nil {
		o.logger.Warn().Str("url", url).Err(err).Msg("Failed to persist extraction failure")
	}
}

// captureCompanyLogo stores the first logo surfaced by extraction on the
// company record. A company whose pages never yield a logo is marked
// logo-fetch-failed so operators can see the gap; a later hit clears it.
func (o *Orchestrator) captureCompanyLogo(ctx context.Context, company *models.Company, logoURL string) {
	now := time.Now()
	switch {
	case logoURL != "" && company.LogoURL == "":
		company.LogoURL = logoURL
		company.LogoLastFetched = &now
		company.LogoFetchFailed = false
	case logoURL == "" && company.LogoURL == "" && !company.LogoFetchFailed:
		company.LogoLastFetched = &now
		company.LogoFetchFailed = true
	default:
		return
	}

	if err := o.storage.CompanyStorage().SaveCompany(ctx, company); err != nil {
		o.logger.Warn().Str("company", company.Name).Err(err).Msg("Failed to update company logo metadata")
	}
}

// buildRecord merges normalizer output with extraction-tier fallbacks into
// the persisted record. A nil normalized job keeps extraction data and marks
// the record parsed_partial.
func (o *Orchestrator) buildRecord(ctx context.Context, company *models.Company, url string, content *extraction.ExtractedContent, normalized *models.NormalizedJob) *models.JobRecord {
	record := &models.JobRecord{
		ID:           common.NewJobID(),
		CompanyID:    company.ID,
		URL:          url,
		Status:       models.JobStatusNew,
		ScrapeStatus: models.ScrapeStatusDiscovered,
		Title:        content.Title,
		Description:  content.Description,
		SalaryRange:  content.SalaryText,
		JobType:      content.JobType,
		LogoURL:      content.LogoURL,
	}

	if normalized == nil {
		record.ScrapeStatus = models.ScrapeStatusParsedPartial
		// Fallback records carry the marketplace's remote assumption
		record.IsRemote = true
	} else {
		record.ScrapeStatus = models.ScrapeStatusFetched
		if normalized.Title != "" {
			record.Title = normalized.Title
		}
		if normalized.Description != "" {
			record.Description = normalized.Description
		}
		if normalized.SalaryRange != "" && !strings.EqualFold(normalized.SalaryRange, "null") {
			record.SalaryRange = normalized.SalaryRange
		}
		if normalized.JobType != "" {
			record.JobType = normalized.JobType
		}
		record.Location = normalized.Location
		record.Experience = normalized.Experience
		record.IsRemote = normalized.IsRemote
		record.ApplyURL = normalized.ApplyURL
		record.RoleName = o.canonicalRole(ctx, normalized.RoleName)
	}

	if record.Location == "" {
		record.Location = "Remote"
	}

	if record.LogoURL == "" {
		record.LogoURL = company.LogoURL
	}

	record.DedupHash = ContentHash(company.ID, record.Title, record.Location)

	now := time.Now()
	record.LastAttemptAt = &now
	return record
}

// canonicalRole resolves the model's role guess against the taxonomy,
// case-insensitively. Unmatched guesses are kept verbatim.
func (o *Orchestrator) canonicalRole(ctx context.Context, name string) string {
	if name == "" {
		return ""
	}

	role, err := o.storage.CredentialStorage().FindRoleByName(ctx, name)
	if err != nil {
		o.logger.Debug().Str("role", name).Err(err).Msg("Role taxonomy lookup failed")
		return name
	}
	if role != nil {
		return role.Name
	}
	return name
}

// stopRequested re-reads the run record's externally-mutable stop flag
func (o *Orchestrator) stopRequested(ctx context.Context, runID string) bool {
	run, err := o.storage.RunLogStorage().GetRunLog(ctx, runID)
	if err != nil {
		o.logger.Warn().Str("run_id", runID).Err(err).Msg("Failed to read run log for stop check")
		return false
	}
	return run.StopRequested
}

// finish writes the terminal status, preserving counters accumulated so far
func (o *Orchestrator) finish(ctx context.Context, run *models.RunLog, status models.RunStatus, message string) {
	now := time.Now()
	run.Status = status
	run.Message = message
	run.EndTime = &now
	run.CurrentTarget = ""
	o.saveRun(ctx, run)

	o.logger.Info().
		Str("run_id", run.ID).
		Str("status", string(status)).
		Int("processed", run.Processed).
		Int("jobs_found", run.JobsFound).
		Msg("Run finished")
}

func (o *Orchestrator) saveRun(ctx context.Context, run *models.RunLog) {
	// SaveRunLog merges atomically with any externally-set stop flag, so
	// progress overwrites cannot clobber a concurrent RequestStop
	if err := o.storage.RunLogStorage().SaveRunLog(ctx, run); err != nil {
		o.logger.Warn().Str("run_id", run.ID).Err(err).Msg("Failed to save run progress")
	}
}
