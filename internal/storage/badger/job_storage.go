package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vacans/internal/interfaces"
	"github.com/ternarybob/vacans/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// JobStorage implements the JobStorage interface for Badger
type JobStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewJobStorage creates a new JobStorage instance
func NewJobStorage(db *BadgerDB, logger arbor.ILogger) interfaces.JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

func (s *JobStorage) SaveJob(ctx context.Context, job *models.JobRecord) error {
	if job.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	if job.URL == "" {
		return fmt.Errorf("job URL is required")
	}

	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	if err := s.db.Store().Upsert(job.ID, job); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

func (s *JobStorage) GetJob(ctx context.Context, id string) (*models.JobRecord, error) {
	var job models.JobRecord
	if err := s.db.Store().Get(id, &job); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("job not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// URLExists is the cheap pre-network dedup check
func (s *JobStorage) URLExists(ctx context.Context, url string) (bool, error) {
	count, err := s.db.Store().Count(&models.JobRecord{}, badgerhold.Where("URL").Eq(url))
	if err != nil {
		return false, fmt.Errorf("failed to check URL existence: %w", err)
	}
	return count > 0, nil
}

// GetJobByURL returns the record holding a URL, nil when none exists
func (s *JobStorage) GetJobByURL(ctx context.Context, url string) (*models.JobRecord, error) {
	var jobs []models.JobRecord
	if err := s.db.Store().Find(&jobs, badgerhold.Where("URL").Eq(url)); err != nil {
		return nil, fmt.Errorf("failed to find job by URL: %w", err)
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	return &jobs[0], nil
}

// DedupHashExists reports whether a content hash is already recorded
func (s *JobStorage) DedupHashExists(ctx context.Context, hash string) (bool, error) {
	if hash == "" {
		return false, nil
	}
	count, err := s.db.Store().Count(&models.JobRecord{}, badgerhold.Where("DedupHash").Eq(hash))
	if err != nil {
		return false, fmt.Errorf("failed to check dedup hash: %w", err)
	}
	return count > 0, nil
}

// UpdateScrapeStatus applies a lifecycle transition, rejecting moves the
// state machine does not allow.
func (s *JobStorage) UpdateScrapeStatus(ctx context.Context, id string, status models.ScrapeStatus) error {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}

	if err := job.SetScrapeStatus(status); err != nil {
		return err
	}
	job.UpdatedAt = time.Now()

	if err := s.db.Store().Upsert(job.ID, job); err != nil {
		return fmt.Errorf("failed to update scrape status: %w", err)
	}
	return nil
}

// UpdateStatus applies the business approve/reject transition, keeping the
// scrape lifecycle in step.
func (s *JobStorage) UpdateStatus(ctx context.Context, id string, status models.JobStatus) error {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}

	job.Status = status
	switch status {
	case models.JobStatusApproved:
		if err := job.SetScrapeStatus(models.ScrapeStatusApproved); err != nil {
			return err
		}
	case models.JobStatusRejected:
		if err := job.SetScrapeStatus(models.ScrapeStatusRejected); err != nil {
			return err
		}
	}
	job.UpdatedAt = time.Now()

	if err := s.db.Store().Upsert(job.ID, job); err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	return nil
}

func (s *JobStorage) ListJobsByCompany(ctx context.Context, companyID string) ([]*models.JobRecord, error) {
	var jobs []models.JobRecord
	if err := s.db.Store().Find(&jobs, badgerhold.Where("CompanyID").Eq(companyID).SortBy("CreatedAt").Reverse()); err != nil {
		return nil, fmt.Errorf("failed to list jobs by company: %w", err)
	}

	result := make([]*models.JobRecord, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

func (s *JobStorage) CountJobs(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.JobRecord{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return int(count), nil
}
