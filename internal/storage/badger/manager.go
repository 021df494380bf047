package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vacans/internal/common"
	"github.com/ternarybob/vacans/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db         *BadgerDB
	company    interfaces.CompanyStorage
	job        interfaces.JobStorage
	runLog     interfaces.RunLogStorage
	credential interfaces.CredentialStorage
	kv         interfaces.KeyValueStorage
	logger     arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:         db,
		company:    NewCompanyStorage(db, logger),
		job:        NewJobStorage(db, logger),
		runLog:     NewRunLogStorage(db, logger),
		credential: NewCredentialStorage(db, logger),
		kv:         NewKVStorage(db, logger),
		logger:     logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// CompanyStorage returns the Company storage interface
func (m *Manager) CompanyStorage() interfaces.CompanyStorage {
	return m.company
}

// JobStorage returns the Job storage interface
func (m *Manager) JobStorage() interfaces.JobStorage {
	return m.job
}

// RunLogStorage returns the RunLog storage interface
func (m *Manager) RunLogStorage() interfaces.RunLogStorage {
	return m.runLog
}

// CredentialStorage returns the Credential storage interface
func (m *Manager) CredentialStorage() interfaces.CredentialStorage {
	return m.credential
}

// KeyValueStorage returns the KeyValue storage interface
func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage {
	return m.kv
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
