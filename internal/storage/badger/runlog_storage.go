package badger

import (
	"context"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vacans/internal/interfaces"
	"github.com/ternarybob/vacans/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// RunLogStorage implements the RunLogStorage interface for Badger
type RunLogStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewRunLogStorage creates a new RunLogStorage instance
func NewRunLogStorage(db *BadgerDB, logger arbor.ILogger) interfaces.RunLogStorage {
	return &RunLogStorage{
		db:     db,
		logger: logger,
	}
}

// SaveRunLog writes a run record. The read-merge-write runs in a single
// transaction so a concurrent RequestStop cannot be clobbered by the owning
// worker's progress overwrites; the stop flag is sticky once set.
func (s *RunLogStorage) SaveRunLog(ctx context.Context, run *models.RunLog) error {
	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}

	err := s.db.Store().Badger().Update(func(tx *badgerdb.Txn) error {
		var current models.RunLog
		err := s.db.Store().TxGet(tx, run.ID, &current)
		if err != nil && err != badgerhold.ErrNotFound {
			return err
		}
		if err == nil && current.StopRequested {
			run.StopRequested = true
		}
		return s.db.Store().TxUpsert(tx, run.ID, run)
	})
	if err != nil {
		return fmt.Errorf("failed to save run log: %w", err)
	}
	return nil
}

func (s *RunLogStorage) GetRunLog(ctx context.Context, id string) (*models.RunLog, error) {
	var run models.RunLog
	if err := s.db.Store().Get(id, &run); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("run log not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get run log: %w", err)
	}
	return &run, nil
}

// RequestStop sets the cooperative stop flag. The owning worker observes it
// between URLs; a run that already reached a terminal status is left alone.
func (s *RunLogStorage) RequestStop(ctx context.Context, id string) error {
	run, err := s.GetRunLog(ctx, id)
	if err != nil {
		return err
	}

	if run.IsTerminal() {
		s.logger.Debug().Str("run_id", id).Str("status", string(run.Status)).Msg("Stop requested on terminal run, ignoring")
		return nil
	}

	run.StopRequested = true
	if err := s.db.Store().Upsert(run.ID, run); err != nil {
		return fmt.Errorf("failed to request stop: %w", err)
	}

	s.logger.Info().Str("run_id", id).Msg("Stop requested")
	return nil
}

func (s *RunLogStorage) ListRecentRuns(ctx context.Context, limit int) ([]*models.RunLog, error) {
	query := badgerhold.Where("ID").Ne("").SortBy("StartTime").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var runs []models.RunLog
	if err := s.db.Store().Find(&runs, query); err != nil {
		return nil, fmt.Errorf("failed to list recent runs: %w", err)
	}

	result := make([]*models.RunLog, len(runs))
	for i := range runs {
		result[i] = &runs[i]
	}
	return result, nil
}
