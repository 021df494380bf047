package badger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vacans/internal/interfaces"
	"github.com/ternarybob/vacans/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// CredentialStorage implements the CredentialStorage interface for Badger.
// It also holds the job role taxonomy, which shares the credential store's
// admin-managed, read-mostly access pattern.
type CredentialStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewCredentialStorage creates a new CredentialStorage instance
func NewCredentialStorage(db *BadgerDB, logger arbor.ILogger) interfaces.CredentialStorage {
	return &CredentialStorage{
		db:     db,
		logger: logger,
	}
}

func (s *CredentialStorage) SaveCredential(ctx context.Context, cred *models.SearchCredential) error {
	if cred.ID == "" {
		return fmt.Errorf("credential ID is required")
	}
	if cred.APIKey == "" {
		return fmt.Errorf("credential API key is required")
	}

	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = time.Now()
	}

	if err := s.db.Store().Upsert(cred.ID, cred); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// ListUsableCredentials returns active, non-expired credentials for a
// service, oldest first so rotation order is stable.
func (s *CredentialStorage) ListUsableCredentials(ctx context.Context, service string) ([]*models.SearchCredential, error) {
	var creds []models.SearchCredential
	if err := s.db.Store().Find(&creds, badgerhold.Where("Service").Eq(service).SortBy("CreatedAt")); err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	now := time.Now()
	result := make([]*models.SearchCredential, 0, len(creds))
	for i := range creds {
		if creds[i].Usable(now) {
			result = append(result, &creds[i])
		}
	}
	return result, nil
}

func (s *CredentialStorage) SaveRole(ctx context.Context, role *models.JobRole) error {
	if role.ID == "" {
		return fmt.Errorf("role ID is required")
	}
	if role.Name == "" {
		return fmt.Errorf("role name is required")
	}

	if err := s.db.Store().Upsert(role.ID, role); err != nil {
		return fmt.Errorf("failed to save role: %w", err)
	}
	return nil
}

func (s *CredentialStorage) ListRoles(ctx context.Context) ([]*models.JobRole, error) {
	var roles []models.JobRole
	if err := s.db.Store().Find(&roles, badgerhold.Where("ID").Ne("").SortBy("Name")); err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}

	result := make([]*models.JobRole, len(roles))
	for i := range roles {
		result[i] = &roles[i]
	}
	return result, nil
}

// FindRoleByName matches a role case-insensitively, returning nil when the
// taxonomy has no entry.
func (s *CredentialStorage) FindRoleByName(ctx context.Context, name string) (*models.JobRole, error) {
	roles, err := s.ListRoles(ctx)
	if err != nil {
		return nil, err
	}

	target := strings.ToLower(strings.TrimSpace(name))
	for _, role := range roles {
		if strings.ToLower(role.Name) == target {
			return role, nil
		}
	}
	return nil, nil
}
