// -----------------------------------------------------------------------
// Last Modified: Monday, 31st August 2026 10:00:00 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vacans/internal/common"
	"github.com/ternarybob/vacans/internal/interfaces"
	"github.com/ternarybob/vacans/internal/services/discovery"
	"github.com/ternarybob/vacans/internal/services/extraction"
	"github.com/ternarybob/vacans/internal/services/llm"
	"github.com/ternarybob/vacans/internal/services/normalizer"
	"github.com/ternarybob/vacans/internal/services/pipeline"
	"github.com/ternarybob/vacans/internal/services/scheduler"
	"github.com/ternarybob/vacans/internal/services/websearch"
	badgerstore "github.com/ternarybob/vacans/internal/storage/badger"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	// Command-line flags
	configFiles  configPaths // Multiple -config flags supported
	companyName  = flag.String("company", "", "Run the pipeline once for this company, then exit")
	roleList     = flag.String("roles", "", "Comma-separated roles for a one-shot run (requires -company)")
	runLimit     = flag.Int("limit", 0, "URL limit for a one-shot run (0 = configured default)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")

	// Global state
	config *common.Config
	logger arbor.ILogger
)

func init() {
	// Register custom flag for multiple config files
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	// Parse command-line flags
	flag.Parse()

	// Handle version flag
	if *showVersion || *showVersionV {
		fmt.Printf("Vacans version %s\n", common.GetVersion())
		os.Exit(0)
	}

	// Startup sequence (REQUIRED ORDER):
	// 1. Load config (defaults -> file1 -> file2 -> ... -> env)
	// 2. Initialize logger
	// 3. Print banner
	var err error

	// Auto-discover config file if not specified
	if len(configFiles) == 0 {
		if _, err := os.Stat("vacans.toml"); err == nil {
			configFiles = append(configFiles, "vacans.toml")
		}
	}

	// 1. Load configuration (default -> file1 -> file2 -> ... -> env)
	// Later config files override earlier ones
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		// Use temporary logger for startup errors
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	// 2. Initialize logger with final configuration
	logger = common.InitLogger(config)

	// 3. Print banner
	common.PrintBanner(common.GetVersion())

	logger.Info().
		Strs("config_files", configFiles).
		Str("environment", config.Environment).
		Str("badger_path", config.Storage.Badger.Path).
		Str("log_level", config.Logging.Level).
		Msg("Application configuration loaded")

	// Storage first; everything else hangs off it
	storage, err := badgerstore.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize storage")
		os.Exit(1)
	}
	defer storage.Close()

	// Search, discovery, extraction
	searchClient := websearch.NewClient(&config.Search, storage.CredentialStorage(), logger)
	discoveryEngine := discovery.NewEngine(logger,
		discovery.NewSiteSearchStrategy(searchClient, logger),
		discovery.NewCareerCrawlStrategy(&config.Discovery, logger),
		discovery.NewATSDirectStrategy(&config.Discovery, logger),
	)
	extractionEngine := extraction.NewEngine(&config.Extraction, logger)

	// LLM-backed normalization
	llmService := llm.NewService(config, storage.KeyValueStorage(), logger)
	defer llmService.Close()
	jobNormalizer := normalizer.NewNormalizer(llmService, storage.CredentialStorage(), logger)

	orchestrator := pipeline.NewOrchestrator(config, storage, discoveryEngine, extractionEngine, jobNormalizer, logger)

	// One-shot mode: run a single company and exit
	if *companyName != "" {
		code := runOnce(orchestrator, storage, *companyName)
		llmService.Close()
		storage.Close()
		os.Exit(code)
	}

	// Daemon mode: scheduled batch runs until signalled
	sched := scheduler.NewService(&config.Scheduler, orchestrator, storage, logger)
	if config.Scheduler.Enabled {
		if err := sched.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start scheduler")
			os.Exit(1)
		}
	} else {
		logger.Warn().Msg("Scheduler disabled; nothing to do without -company (enable [scheduler] in config)")
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	sched.Stop()
	logger.Info().Msg("Shutdown complete")
}

// runOnce executes a single pipeline run for the named company
func runOnce(orchestrator *pipeline.Orchestrator, storage interfaces.StorageManager, name string) int {
	ctx := context.Background()

	company, err := storage.CompanyStorage().GetCompanyByName(ctx, name)
	if err != nil {
		logger.Error().Str("company", name).Err(err).Msg("Company not found")
		return 1
	}

	opts := pipeline.RunOptions{Limit: *runLimit}
	for _, role := range strings.Split(*roleList, ",") {
		if trimmed := strings.TrimSpace(role); trimmed != "" {
			opts.Roles = append(opts.Roles, trimmed)
		}
	}

	result, err := orchestrator.Run(ctx, company.ID, opts)
	if err != nil {
		logger.Error().Str("company", name).Err(err).Msg("Pipeline run failed")
		return 1
	}

	logger.Info().
		Str("run_id", result.RunID).
		Int("jobs_found", result.JobsFound).
		Int("processed", result.Processed).
		Int("errors", len(result.Errors)).
		Msg("Pipeline run finished")
	for _, msg := range result.Errors {
		logger.Warn().Str("run_id", result.RunID).Msg(msg)
	}
	if len(result.Errors) > 0 {
		return 2
	}
	return 0
}
