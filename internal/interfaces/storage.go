package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/vacans/internal/models"
)

// ErrKeyNotFound is returned when a key/value lookup misses
var ErrKeyNotFound = errors.New("key not found")

// KeyValuePair is a generic stored setting (API keys, feature flags)
type KeyValuePair struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CompanyStorage - interface for company and scrape profile persistence
type CompanyStorage interface {
	SaveCompany(ctx context.Context, company *models.Company) error
	GetCompany(ctx context.Context, id string) (*models.Company, error)
	GetCompanyByName(ctx context.Context, name string) (*models.Company, error)
	ListActiveCompanies(ctx context.Context) ([]*models.Company, error)

	// Profile operations. GetOrCreateProfile returns an existing profile or
	// persists a default one (active, base-domain rule, site-search strategy).
	GetOrCreateProfile(ctx context.Context, companyID string) (*models.ScrapeProfile, error)
	SaveProfile(ctx context.Context, profile *models.ScrapeProfile) error
	MarkProfileRun(ctx context.Context, companyID string, at time.Time, status string) error
}

// JobStorage - interface for job record persistence and deduplication checks
type JobStorage interface {
	SaveJob(ctx context.Context, job *models.JobRecord) error
	GetJob(ctx context.Context, id string) (*models.JobRecord, error)

	// URLExists is the cheap early exit before any network call
	URLExists(ctx context.Context, url string) (bool, error)
	// GetJobByURL returns the record holding a URL, nil when none exists
	GetJobByURL(ctx context.Context, url string) (*models.JobRecord, error)
	// DedupHashExists suppresses re-ingestion of the same posting at a new URL
	DedupHashExists(ctx context.Context, hash string) (bool, error)

	// UpdateScrapeStatus enforces the lifecycle state machine
	UpdateScrapeStatus(ctx context.Context, id string, status models.ScrapeStatus) error
	// UpdateStatus applies the business approve/reject transition
	UpdateStatus(ctx context.Context, id string, status models.JobStatus) error

	ListJobsByCompany(ctx context.Context, companyID string) ([]*models.JobRecord, error)
	CountJobs(ctx context.Context) (int, error)
}

// RunLogStorage - interface for run progress records
type RunLogStorage interface {
	SaveRunLog(ctx context.Context, run *models.RunLog) error
	GetRunLog(ctx context.Context, id string) (*models.RunLog, error)
	// RequestStop sets the cooperative stop flag; the owning worker observes
	// it between loop iterations
	RequestStop(ctx context.Context, id string) error
	ListRecentRuns(ctx context.Context, limit int) ([]*models.RunLog, error)
}

// CredentialStorage - interface for external search API credentials
type CredentialStorage interface {
	SaveCredential(ctx context.Context, cred *models.SearchCredential) error
	// ListUsableCredentials returns active, non-expired credentials for a service
	ListUsableCredentials(ctx context.Context, service string) ([]*models.SearchCredential, error)

	// Role taxonomy (read by the normalizer and the site-search strategy)
	SaveRole(ctx context.Context, role *models.JobRole) error
	ListRoles(ctx context.Context) ([]*models.JobRole, error)
	FindRoleByName(ctx context.Context, name string) (*models.JobRole, error)
}

// KeyValueStorage - interface for generic key/value settings (API keys etc.)
type KeyValueStorage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// StorageManager aggregates the storage interfaces behind one handle
type StorageManager interface {
	CompanyStorage() CompanyStorage
	JobStorage() JobStorage
	RunLogStorage() RunLogStorage
	CredentialStorage() CredentialStorage
	KeyValueStorage() KeyValueStorage
	Close() error
}
