package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vacans/internal/common"
	"github.com/ternarybob/vacans/internal/interfaces"
	"github.com/ternarybob/vacans/internal/services/pipeline"
)

// Service runs periodic company-batch scrapes. Each tick processes up to the
// configured number of active companies sequentially; a tick that fires
// while the previous batch is still running is skipped.
type Service struct {
	config       *common.SchedulerConfig
	orchestrator *pipeline.Orchestrator
	storage      interfaces.StorageManager
	cron         *cron.Cron
	logger       arbor.ILogger

	mu           sync.Mutex
	isProcessing bool
	running      bool
}

// NewService creates a new scheduler service
func NewService(config *common.SchedulerConfig, orchestrator *pipeline.Orchestrator, storage interfaces.StorageManager, logger arbor.ILogger) *Service {
	return &Service{
		config:       config,
		orchestrator: orchestrator,
		storage:      storage,
		cron:         cron.New(),
		logger:       logger,
	}
}

// Start begins the scheduler with the configured cron expression
func (s *Service) Start() error {
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	schedule := s.config.Schedule
	if schedule == "" {
		schedule = "0 */6 * * *"
	}

	if _, err := s.cron.AddFunc(schedule, s.runBatch); err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().Str("schedule", schedule).Msg("Scheduler started")
	return nil
}

// Stop halts the scheduler, waiting for an in-flight batch tick to return
func (s *Service) Stop() {
	if !s.running {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	s.logger.Info().Msg("Scheduler stopped")
}

// TriggerNow runs a batch immediately, outside the cron schedule
func (s *Service) TriggerNow() {
	go s.runBatch()
}

// runBatch processes the active companies sequentially. Skipped entirely if
// the previous batch is still in flight.
func (s *Service) runBatch() {
	s.mu.Lock()
	if s.isProcessing {
		s.mu.Unlock()
		s.logger.Warn().Msg("Previous batch still running, skipping tick")
		return
	}
	s.isProcessing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isProcessing = false
		s.mu.Unlock()
	}()

	ctx := context.Background()
	start := time.Now()

	companies, err := s.storage.CompanyStorage().ListActiveCompanies(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list active companies for batch")
		return
	}

	limit := s.config.CompanyLimit
	if limit > 0 && len(companies) > limit {
		companies = companies[:limit]
	}

	s.logger.Info().Int("companies", len(companies)).Msg("Batch run starting")

	var jobsFound, failures int
	for _, company := range companies {
		result, err := s.orchestrator.Run(ctx, company.ID, pipeline.RunOptions{})
		if err != nil {
			failures++
			s.logger.Warn().
				Str("company", company.Name).
				Err(err).
				Msg("Batch company run failed, continuing")
			continue
		}
		jobsFound += result.JobsFound
	}

	s.logger.Info().
		Int("companies", len(companies)).
		Int("jobs_found", jobsFound).
		Int("failures", failures).
		Dur("elapsed", time.Since(start)).
		Msg("Batch run complete")
}
