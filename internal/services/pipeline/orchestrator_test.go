package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vacans/internal/common"
	"github.com/ternarybob/vacans/internal/interfaces"
	"github.com/ternarybob/vacans/internal/models"
	"github.com/ternarybob/vacans/internal/services/discovery"
	"github.com/ternarybob/vacans/internal/services/extraction"
	"github.com/ternarybob/vacans/internal/services/normalizer"
	badgerstore "github.com/ternarybob/vacans/internal/storage/badger"
)

// stubDiscoverer returns a fixed URL list
type stubDiscoverer struct {
	urls []string
}

func (s *stubDiscoverer) Discover(ctx context.Context, company *models.Company, profile *models.ScrapeProfile, opts discovery.Options, limit int) []string {
	if limit > 0 && len(s.urls) > limit {
		return s.urls[:limit]
	}
	return s.urls
}

// stubExtractor returns canned content per URL and tracks calls
type stubExtractor struct {
	content  map[string]*extraction.ExtractedContent
	calls    []string
	onCall   func(n int)
	fallback *extraction.ExtractedContent
}

func (s *stubExtractor) Extract(ctx context.Context, url string, renderRequired bool) *extraction.ExtractedContent {
	s.calls = append(s.calls, url)
	if s.onCall != nil {
		s.onCall(len(s.calls))
	}
	if c, ok := s.content[url]; ok {
		return c
	}
	if s.fallback != nil {
		return s.fallback
	}
	return &extraction.ExtractedContent{Description: "A long enough description of the role for testing purposes."}
}

// stubNormalizer returns canned normalized jobs per URL
type stubNormalizer struct {
	jobs map[string]*models.NormalizedJob
	errs map[string]error
}

func (s *stubNormalizer) Normalize(ctx context.Context, rawText, companyName, sourceURL string) (*models.NormalizedJob, error) {
	if err, ok := s.errs[sourceURL]; ok {
		return nil, err
	}
	return s.jobs[sourceURL], nil
}

func testConfig() *common.Config {
	config := common.NewDefaultConfig()
	config.Pipeline.PolitenessDelay = time.Millisecond
	config.Pipeline.DefaultLimit = 10
	return config
}

func newTestStorage(t *testing.T) interfaces.StorageManager {
	t.Helper()
	manager, err := badgerstore.NewManager(arbor.NewLogger(), &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return manager
}

func seedCompany(t *testing.T, storage interfaces.StorageManager) *models.Company {
	t.Helper()
	company := &models.Company{ID: "co-1", Name: "Acme", Domain: "acme.com"}
	require.NoError(t, storage.CompanyStorage().SaveCompany(context.Background(), company))
	return company
}

func newOrchestrator(storage interfaces.StorageManager, d Discoverer, e Extractor, n JobNormalizer) *Orchestrator {
	return NewOrchestrator(testConfig(), storage, d, e, n, arbor.NewLogger())
}

func TestRunPersistsJobs(t *testing.T) {
	storage := newTestStorage(t)
	company := seedCompany(t, storage)

	urls := []string{"https://acme.com/careers/1", "https://acme.com/careers/2"}
	o := newOrchestrator(storage,
		&stubDiscoverer{urls: urls},
		&stubExtractor{},
		&stubNormalizer{jobs: map[string]*models.NormalizedJob{
			urls[0]: {Title: "Backend Engineer", Location: "Remote", IsRemote: true},
			urls[1]: {Title: "Data Engineer", Location: "Berlin"},
		}},
	)

	result, err := o.Run(context.Background(), company.ID, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.JobsFound)
	assert.Equal(t, 2, result.Processed)
	assert.Empty(t, result.Errors)

	jobs, err := storage.JobStorage().ListJobsByCompany(context.Background(), company.ID)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
	for _, job := range jobs {
		assert.Equal(t, models.ScrapeStatusFetched, job.ScrapeStatus)
		assert.Equal(t, models.JobStatusNew, job.Status)
	}

	run, err := storage.RunLogStorage().GetRunLog(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.NotNil(t, run.EndTime)

	// Completed runs stamp the profile
	profile, err := storage.CompanyStorage().GetOrCreateProfile(context.Background(), company.ID)
	require.NoError(t, err)
	assert.NotNil(t, profile.LastRunAt)
}

func TestRunStopObservedBetweenURLs(t *testing.T) {
	storage := newTestStorage(t)
	company := seedCompany(t, storage)

	urls := make([]string, 5)
	jobs := make(map[string]*models.NormalizedJob, 5)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://acme.com/careers/%d", i+1)
		jobs[urls[i]] = &models.NormalizedJob{Title: fmt.Sprintf("Role %d", i+1), Location: "Remote"}
	}

	extractor := &stubExtractor{}
	// Request the stop while the second URL is in flight; the orchestrator
	// must finish it and observe the flag before the third
	extractor.onCall = func(n int) {
		if n == 2 {
			runs, err := storage.RunLogStorage().ListRecentRuns(context.Background(), 1)
			require.NoError(t, err)
			require.Len(t, runs, 1)
			require.NoError(t, storage.RunLogStorage().RequestStop(context.Background(), runs[0].ID))
		}
	}

	o := newOrchestrator(storage, &stubDiscoverer{urls: urls}, extractor, &stubNormalizer{jobs: jobs})

	result, err := o.Run(context.Background(), company.ID, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 2, result.JobsFound)

	run, err := storage.RunLogStorage().GetRunLog(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusStopped, run.Status)
	assert.Equal(t, 2, run.Processed)

	persisted, err := storage.JobStorage().ListJobsByCompany(context.Background(), company.ID)
	require.NoError(t, err)
	assert.Len(t, persisted, 2)
}

func TestRunNotJobPostingIsNotAnError(t *testing.T) {
	storage := newTestStorage(t)
	company := seedCompany(t, storage)

	url := "https://acme.com/login"
	o := newOrchestrator(storage,
		&stubDiscoverer{urls: []string{url}},
		&stubExtractor{},
		&stubNormalizer{errs: map[string]error{url: normalizer.ErrNotJobPosting}},
	)

	result, err := o.Run(context.Background(), company.ID, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 0, result.JobsFound)
	assert.Empty(t, result.Errors, "filtered content is not a failure")

	jobs, err := storage.JobStorage().ListJobsByCompany(context.Background(), company.ID)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	run, err := storage.RunLogStorage().GetRunLog(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
}

func TestRunDuplicateHashAcrossURLs(t *testing.T) {
	storage := newTestStorage(t)
	company := seedCompany(t, storage)

	urls := []string{"https://acme.com/careers/1", "https://careers.acme.com/backend-engineer"}
	same := &models.NormalizedJob{Title: "Backend Engineer", Location: "Remote"}
	o := newOrchestrator(storage,
		&stubDiscoverer{urls: urls},
		&stubExtractor{},
		&stubNormalizer{jobs: map[string]*models.NormalizedJob{urls[0]: same, urls[1]: same}},
	)

	result, err := o.Run(context.Background(), company.ID, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.JobsFound, "same posting at a second URL must be rejected")
	assert.Empty(t, result.Errors)

	jobs, err := storage.JobStorage().ListJobsByCompany(context.Background(), company.ID)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestRunUnsafeURLNeverPersisted(t *testing.T) {
	storage := newTestStorage(t)
	company := seedCompany(t, storage)

	// A buggy strategy returned an out-of-boundary URL; the orchestrator's
	// own validation must drop it before any network call
	extractor := &stubExtractor{}
	o := newOrchestrator(storage,
		&stubDiscoverer{urls: []string{"https://evil.example.com/ad"}},
		extractor,
		&stubNormalizer{},
	)

	result, err := o.Run(context.Background(), company.ID, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 0, result.JobsFound)
	assert.Empty(t, extractor.calls, "unsafe URL must never be fetched")

	jobs, err := storage.JobStorage().ListJobsByCompany(context.Background(), company.ID)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestRunKnownURLSkipped(t *testing.T) {
	storage := newTestStorage(t)
	company := seedCompany(t, storage)

	url := "https://acme.com/careers/1"
	require.NoError(t, storage.JobStorage().SaveJob(context.Background(), &models.JobRecord{
		ID: "job-existing", CompanyID: company.ID, URL: url,
		Status: models.JobStatusNew, ScrapeStatus: models.ScrapeStatusDiscovered,
	}))

	extractor := &stubExtractor{}
	o := newOrchestrator(storage, &stubDiscoverer{urls: []string{url}}, extractor, &stubNormalizer{})

	result, err := o.Run(context.Background(), company.ID, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 0, result.JobsFound)
	assert.Empty(t, extractor.calls, "known URL is a cheap early exit before any network call")
}

func TestRunExtractionFailureContinues(t *testing.T) {
	storage := newTestStorage(t)
	company := seedCompany(t, storage)

	urls := []string{"https://acme.com/careers/dead", "https://acme.com/careers/2"}
	o := newOrchestrator(storage,
		&stubDiscoverer{urls: urls},
		&stubExtractor{content: map[string]*extraction.ExtractedContent{
			urls[0]: {Error: "connection refused"},
		}},
		&stubNormalizer{jobs: map[string]*models.NormalizedJob{
			urls[1]: {Title: "Data Engineer", Location: "Berlin"},
		}},
	)

	result, err := o.Run(context.Background(), company.ID, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.JobsFound)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "connection refused")

	run, err := storage.RunLogStorage().GetRunLog(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status, "per-URL failures do not fail the run")

	// The failed URL leaves a parsed_failed record carrying the reason
	failed, err := storage.JobStorage().GetJobByURL(context.Background(), urls[0])
	require.NoError(t, err)
	require.NotNil(t, failed)
	assert.Equal(t, models.ScrapeStatusParsedFailed, failed.ScrapeStatus)
	assert.Equal(t, "connection refused", failed.FailureReason)
	assert.Equal(t, 0, failed.RetryCount)
	assert.NotNil(t, failed.LastAttemptAt)
}

func TestRunRetriesFailedURL(t *testing.T) {
	storage := newTestStorage(t)
	company := seedCompany(t, storage)

	url := "https://acme.com/careers/flaky"
	require.NoError(t, storage.JobStorage().SaveJob(context.Background(), &models.JobRecord{
		ID: "job-flaky", CompanyID: company.ID, URL: url,
		Status: models.JobStatusNew, ScrapeStatus: models.ScrapeStatusParsedFailed,
		FailureReason: "connection refused", RetryCount: 1,
	}))

	extractor := &stubExtractor{}
	o := newOrchestrator(storage, &stubDiscoverer{urls: []string{url}}, extractor,
		&stubNormalizer{jobs: map[string]*models.NormalizedJob{
			url: {Title: "Site Reliability Engineer", Location: "Remote"},
		}},
	)

	result, err := o.Run(context.Background(), company.ID, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.JobsFound)
	assert.Len(t, extractor.calls, 1, "a failed URL with retry budget is re-fetched")

	// The record keeps its identity and retry history
	got, err := storage.JobStorage().GetJobByURL(context.Background(), url)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "job-flaky", got.ID)
	assert.Equal(t, models.ScrapeStatusFetched, got.ScrapeStatus)
	assert.Equal(t, "Site Reliability Engineer", got.Title)
	assert.Equal(t, 1, got.RetryCount)
	assert.Empty(t, got.FailureReason)
}

func TestRunFailedURLIncrementsRetryCount(t *testing.T) {
	storage := newTestStorage(t)
	company := seedCompany(t, storage)

	url := "https://acme.com/careers/flaky"
	require.NoError(t, storage.JobStorage().SaveJob(context.Background(), &models.JobRecord{
		ID: "job-flaky", CompanyID: company.ID, URL: url,
		Status: models.JobStatusNew, ScrapeStatus: models.ScrapeStatusParsedFailed,
		FailureReason: "connection refused", RetryCount: 1,
	}))

	o := newOrchestrator(storage,
		&stubDiscoverer{urls: []string{url}},
		&stubExtractor{content: map[string]*extraction.ExtractedContent{
			url: {Error: "timeout"},
		}},
		&stubNormalizer{},
	)

	result, err := o.Run(context.Background(), company.ID, RunOptions{})
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)

	got, err := storage.JobStorage().GetJobByURL(context.Background(), url)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.RetryCount)
	assert.Equal(t, "timeout", got.FailureReason)
	assert.Equal(t, models.ScrapeStatusParsedFailed, got.ScrapeStatus)
}

func TestRunExhaustedRetryBudgetSkipped(t *testing.T) {
	storage := newTestStorage(t)
	company := seedCompany(t, storage)

	url := "https://acme.com/careers/dead"
	require.NoError(t, storage.JobStorage().SaveJob(context.Background(), &models.JobRecord{
		ID: "job-dead", CompanyID: company.ID, URL: url,
		Status: models.JobStatusNew, ScrapeStatus: models.ScrapeStatusParsedFailed,
		FailureReason: "connection refused", RetryCount: maxExtractionRetries,
	}))

	extractor := &stubExtractor{}
	o := newOrchestrator(storage, &stubDiscoverer{urls: []string{url}}, extractor, &stubNormalizer{})

	result, err := o.Run(context.Background(), company.ID, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.JobsFound)
	assert.Empty(t, result.Errors)
	assert.Empty(t, extractor.calls, "a URL past its retry budget is not re-fetched")
}

func TestRunNormalizerNilFallsBackToExtraction(t *testing.T) {
	storage := newTestStorage(t)
	company := seedCompany(t, storage)

	url := "https://acme.com/careers/1"
	o := newOrchestrator(storage,
		&stubDiscoverer{urls: []string{url}},
		&stubExtractor{content: map[string]*extraction.ExtractedContent{
			url: {
				Title:       "Platform Engineer",
				Description: "Long extracted description of the platform role at Acme.",
				SalaryText:  "$90k-$120k",
				JobType:     "full_time",
			},
		}},
		&stubNormalizer{}, // returns nil: model unavailable
	)

	result, err := o.Run(context.Background(), company.ID, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.JobsFound)

	jobs, err := storage.JobStorage().ListJobsByCompany(context.Background(), company.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	job := jobs[0]
	assert.Equal(t, models.ScrapeStatusParsedPartial, job.ScrapeStatus)
	assert.Equal(t, "Platform Engineer", job.Title)
	assert.Equal(t, "$90k-$120k", job.SalaryRange)
	assert.Equal(t, "full_time", job.JobType)
	assert.Equal(t, models.JobStatusNew, job.Status)

	// Fallback records default to the marketplace's remote assumption
	assert.Equal(t, "Remote", job.Location)
	assert.True(t, job.IsRemote)
}

func TestRunRoleNameCanonicalizedAgainstTaxonomy(t *testing.T) {
	storage := newTestStorage(t)
	company := seedCompany(t, storage)

	require.NoError(t, storage.CredentialStorage().SaveRole(context.Background(),
		&models.JobRole{ID: "role-1", Name: "Backend Engineer"}))

	url := "https://acme.com/careers/1"
	o := newOrchestrator(storage,
		&stubDiscoverer{urls: []string{url}},
		&stubExtractor{},
		&stubNormalizer{jobs: map[string]*models.NormalizedJob{
			url: {Title: "Senior Backend Engineer", RoleName: "backend engineer", Location: "Remote"},
		}},
	)

	result, err := o.Run(context.Background(), company.ID, RunOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, result.JobsFound)

	jobs, err := storage.JobStorage().ListJobsByCompany(context.Background(), company.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "Backend Engineer", jobs[0].RoleName,
		"role name is stored as the canonical taxonomy entry")
}

func TestRunRoleNameUnmatchedKeptVerbatim(t *testing.T) {
	storage := newTestStorage(t)
	company := seedCompany(t, storage)

	url := "https://acme.com/careers/1"
	o := newOrchestrator(storage,
		&stubDiscoverer{urls: []string{url}},
		&stubExtractor{},
		&stubNormalizer{jobs: map[string]*models.NormalizedJob{
			url: {Title: "Chief Vibes Officer", RoleName: "Vibes Officer", Location: "Remote"},
		}},
	)

	_, err := o.Run(context.Background(), company.ID, RunOptions{})
	require.NoError(t, err)

	jobs, err := storage.JobStorage().ListJobsByCompany(context.Background(), company.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "Vibes Officer", jobs[0].RoleName)
}

func TestRunCapturesCompanyLogo(t *testing.T) {
	storage := newTestStorage(t)
	company := seedCompany(t, storage)

	urls := []string{"https://acme.com/careers/1", "https://acme.com/careers/2"}
	o := newOrchestrator(storage,
		&stubDiscoverer{urls: urls},
		&stubExtractor{content: map[string]*extraction.ExtractedContent{
			urls[1]: {
				Description: "A long enough description of the second role for testing.",
				LogoURL:     "https://acme.com/assets/logo.png",
			},
		}},
		&stubNormalizer{jobs: map[string]*models.NormalizedJob{
			urls[0]: {Title: "Backend Engineer", Location: "Remote"},
			urls[1]: {Title: "Data Engineer", Location: "Berlin"},
		}},
	)

	_, err := o.Run(context.Background(), company.ID, RunOptions{})
	require.NoError(t, err)

	got, err := storage.CompanyStorage().GetCompany(context.Background(), company.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://acme.com/assets/logo.png", got.LogoURL)
	assert.False(t, got.LogoFetchFailed, "a later hit clears the failed flag")
	assert.NotNil(t, got.LogoLastFetched)
}

func TestRunMarksLogoFetchFailed(t *testing.T) {
	storage := newTestStorage(t)
	company := seedCompany(t, storage)

	url := "https://acme.com/careers/1"
	o := newOrchestrator(storage,
		&stubDiscoverer{urls: []string{url}},
		&stubExtractor{},
		&stubNormalizer{jobs: map[string]*models.NormalizedJob{
			url: {Title: "Backend Engineer", Location: "Remote"},
		}},
	)

	_, err := o.Run(context.Background(), company.ID, RunOptions{})
	require.NoError(t, err)

	got, err := storage.CompanyStorage().GetCompany(context.Background(), company.ID)
	require.NoError(t, err)
	assert.Empty(t, got.LogoURL)
	assert.True(t, got.LogoFetchFailed)
	assert.NotNil(t, got.LogoLastFetched)
}

func TestRunSingleFlightPerCompany(t *testing.T) {
	storage := newTestStorage(t)
	company := seedCompany(t, storage)

	o := newOrchestrator(storage, &stubDiscoverer{}, &stubExtractor{}, &stubNormalizer{})

	require.True(t, o.acquire(company.ID))
	defer o.release(company.ID)

	_, err := o.Run(context.Background(), company.ID, RunOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already in progress")
}

func TestRunUnknownCompany(t *testing.T) {
	storage := newTestStorage(t)
	o := newOrchestrator(storage, &stubDiscoverer{}, &stubExtractor{}, &stubNormalizer{})

	_, err := o.Run(context.Background(), "co-missing", RunOptions{})
	require.Error(t, err)

	// The slot is released on failure: a later run for the same ID is not
	// blocked by the failed one
	_, err = o.Run(context.Background(), "co-missing", RunOptions{})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "already in progress")
}
