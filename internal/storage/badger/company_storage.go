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

// CompanyStorage implements the CompanyStorage interface for Badger
type CompanyStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCompanyStorage creates a new CompanyStorage instance
func NewCompanyStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CompanyStorage {
	return &CompanyStorage{
		db:     db,
		logger: logger,
	}
}

func (s *CompanyStorage) SaveCompany(ctx context.Context, company *models.Company) error {
	if company.ID == "" {
		return fmt.Errorf("company ID is required")
	}
	if company.Name == "" {
		return fmt.Errorf("company name is required")
	}

	now := time.Now()
	if company.CreatedAt.IsZero() {
		company.CreatedAt = now
	}
	company.UpdatedAt = now

	if err := s.db.Store().Upsert(company.ID, company); err != nil {
		return fmt.Errorf("failed to save company: %w", err)
	}
	return nil
}

func (s *CompanyStorage) GetCompany(ctx context.Context, id string) (*models.Company, error) {
	var company models.Company
	if err := s.db.Store().Get(id, &company); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("company not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return &company, nil
}

func (s *CompanyStorage) GetCompanyByName(ctx context.Context, name string) (*models.Company, error) {
	var companies []models.Company
	if err := s.db.Store().Find(&companies, badgerhold.Where("Name").Eq(name)); err != nil {
		return nil, fmt.Errorf("failed to find company by name: %w", err)
	}
	if len(companies) == 0 {
		return nil, fmt.Errorf("company not found: %s", name)
	}
	return &companies[0], nil
}

// ListActiveCompanies returns companies whose scrape profile is active,
// ordered by name for stable batch iteration.
func (s *CompanyStorage) ListActiveCompanies(ctx context.Context) ([]*models.Company, error) {
	var profiles []models.ScrapeProfile
	if err := s.db.Store().Find(&profiles, badgerhold.Where("IsActive").Eq(true)); err != nil {
		return nil, fmt.Errorf("failed to list active profiles: %w", err)
	}

	active := make(map[string]bool, len(profiles))
	for _, p := range profiles {
		active[p.CompanyID] = true
	}

	var companies []models.Company
	if err := s.db.Store().Find(&companies, badgerhold.Where("ID").Ne("").SortBy("Name")); err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}

	result := make([]*models.Company, 0, len(companies))
	for i := range companies {
		if active[companies[i].ID] {
			result = append(result, &companies[i])
		}
	}
	return result, nil
}

// GetOrCreateProfile returns the company's scrape profile, persisting a
// default one (active, site-search strategy, base-domain rule only) on first
// access.
func (s *CompanyStorage) GetOrCreateProfile(ctx context.Context, companyID string) (*models.ScrapeProfile, error) {
	var profiles []models.ScrapeProfile
	if err := s.db.Store().Find(&profiles, badgerhold.Where("CompanyID").Eq(companyID)); err != nil {
		return nil, fmt.Errorf("failed to find scrape profile: %w", err)
	}
	if len(profiles) > 0 {
		return &profiles[0], nil
	}

	now := time.Now()
	profile := &models.ScrapeProfile{
		CompanyID: companyID,
		IsActive:  true,
		Strategy:  models.StrategySiteSearch,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.Store().Upsert(companyID, profile); err != nil {
		return nil, fmt.Errorf("failed to create default scrape profile: %w", err)
	}

	s.logger.Debug().Str("company_id", companyID).Msg("Created default scrape profile")
	return profile, nil
}

func (s *CompanyStorage) SaveProfile(ctx context.Context, profile *models.ScrapeProfile) error {
	if profile.CompanyID == "" {
		return fmt.Errorf("profile company ID is required")
	}

	now := time.Now()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	if err := s.db.Store().Upsert(profile.CompanyID, profile); err != nil {
		return fmt.Errorf("failed to save scrape profile: %w", err)
	}
	return nil
}

// MarkProfileRun records the outcome of the latest run on the profile
func (s *CompanyStorage) MarkProfileRun(ctx context.Context, companyID string, at time.Time, status string) error {
	profile, err := s.GetOrCreateProfile(ctx, companyID)
	if err != nil {
		return err
	}

	profile.LastRunAt = &at
	profile.LastStatus = status
	return s.SaveProfile(ctx, profile)
}
