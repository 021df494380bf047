package common

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/vacans/internal/interfaces"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Storage     StorageConfig    `toml:"storage"`
	Extraction  ExtractionConfig `toml:"extraction"`
	Discovery   DiscoveryConfig  `toml:"discovery"`
	Search      SearchConfig     `toml:"search"`
	Gemini      GeminiConfig     `toml:"gemini"`
	Claude      ClaudeConfig     `toml:"claude"`
	LLM         LLMConfig        `toml:"llm"`
	Pipeline    PipelineConfig   `toml:"pipeline"`
	Scheduler   SchedulerConfig  `toml:"scheduler"`
	Logging     LoggingConfig    `toml:"logging"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" validate:"required"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`         // Delete database on startup for clean test runs
}

// ExtractionConfig controls the two-tier content extraction engine
type ExtractionConfig struct {
	UserAgent      string        `toml:"user_agent"`
	RequestTimeout time.Duration `toml:"request_timeout"` // Tier-1 HTTP fetch timeout
	RenderTimeout  time.Duration `toml:"render_timeout"`  // Tier-2 headless render timeout
	// MinDescriptionLength is the Tier-1 success threshold; shorter
	// descriptions trigger the headless-browser fallback
	MinDescriptionLength int  `toml:"min_description_length" validate:"gt=0"`
	Headless             bool `toml:"headless"`
	NoSandbox            bool `toml:"no_sandbox"`
}

// DiscoveryConfig controls URL discovery behavior
type DiscoveryConfig struct {
	RequestTimeout time.Duration `toml:"request_timeout"` // Crawl seed fetch timeout
	UserAgent      string        `toml:"user_agent"`
	// SeedPaths are the guessed career-page paths tried when no ATS root is configured
	SeedPaths []string `toml:"seed_paths"`
}

// SearchConfig contains configuration for the external site-restricted search API
type SearchConfig struct {
	Service        string        `toml:"service"`  // Credential service name (default: "google_custom")
	BaseURL        string        `toml:"base_url"` // Search API endpoint
	APIKey         string        `toml:"api_key"`  // Fallback credential when none are stored
	EngineID       string        `toml:"engine_id"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	// RequestsPerSecond bounds outbound query rate per credential
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`   // Default: "gemini-2.5-flash"
	Timeout     string  `toml:"timeout"` // Operation timeout as duration string
	Temperature float32 `toml:"temperature"`
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`      // Default: "claude-haiku-3-5-20241022"
	MaxTokens   int     `toml:"max_tokens"` // Default: 4096
	Timeout     string  `toml:"timeout"`
	Temperature float32 `toml:"temperature"`
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	LLMProviderGemini LLMProvider = "gemini"
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains unified configuration for AI providers
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"` // "gemini" or "claude"
}

// PipelineConfig controls per-run orchestrator behavior
type PipelineConfig struct {
	// PolitenessDelay is inserted between per-URL network operations
	PolitenessDelay time.Duration `toml:"politeness_delay"`
	// DefaultLimit caps discovered URLs per run when the caller supplies none
	DefaultLimit int `toml:"default_limit" validate:"gt=0"`
}

// SchedulerConfig controls the batch-run loop
type SchedulerConfig struct {
	Enabled  bool   `toml:"enabled"`
	Schedule string `toml:"schedule"` // Cron expression, e.g. "*/30 * * * *"
	// CompanyLimit caps companies processed per scheduled batch
	CompanyLimit int `toml:"company_limit"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability; only
// user-facing settings belong in vacans.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Extraction: ExtractionConfig{
			UserAgent:            "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			RequestTimeout:       10 * time.Second,
			RenderTimeout:        30 * time.Second,
			MinDescriptionLength: 200,
			Headless:             true,
			NoSandbox:            true,
		},
		Discovery: DiscoveryConfig{
			RequestTimeout: 10 * time.Second,
			UserAgent:      "Vacans-Bot/1.0",
			SeedPaths:      []string{"/careers", "/jobs", "/about/careers"},
		},
		Search: SearchConfig{
			Service:           "google_custom",
			BaseURL:           "https://www.googleapis.com/customsearch/v1",
			RequestTimeout:    15 * time.Second,
			RequestsPerSecond: 1,
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.5-flash",
			Timeout:     "2m",
			Temperature: 0.2,
		},
		Claude: ClaudeConfig{
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   4096,
			Timeout:     "2m",
			Temperature: 0.2,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
		},
		Pipeline: PipelineConfig{
			PolitenessDelay: 2 * time.Second,
			DefaultLimit:    10,
		},
		Scheduler: SchedulerConfig{
			Enabled:      false,
			Schedule:     "0 */6 * * *", // Every 6 hours
			CompanyLimit: 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
	}
}

// LoadFromFiles loads configuration from TOML files in order (later files
// override earlier ones), then applies environment variable overrides and
// validates the result.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("VACANS_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if badgerPath := os.Getenv("VACANS_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if key := os.Getenv("VACANS_SEARCH_API_KEY"); key != "" {
		config.Search.APIKey = key
	}
	if cx := os.Getenv("VACANS_SEARCH_ENGINE_ID"); cx != "" {
		config.Search.EngineID = cx
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		config.Claude.APIKey = key
	}
	if provider := os.Getenv("VACANS_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}

	if limit := os.Getenv("VACANS_PIPELINE_LIMIT"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			config.Pipeline.DefaultLimit = n
		}
	}

	if level := os.Getenv("VACANS_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("VACANS_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// IsProduction returns true when running in production mode
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// ResolveAPIKey resolves an API key by name with the priority:
// environment variable > KV store > config fallback.
func ResolveAPIKey(ctx context.Context, kvStorage interfaces.KeyValueStorage, name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key":    {"GEMINI_API_KEY", "VACANS_GEMINI_API_KEY"},
		"anthropic_api_key": {"ANTHROPIC_API_KEY", "VACANS_CLAUDE_API_KEY"},
		"search_api_key":    {"VACANS_SEARCH_API_KEY"},
		"search_engine_id":  {"VACANS_SEARCH_ENGINE_ID"},
	}

	if envVarNames, hasMappedEnv := keyToEnvMapping[name]; hasMappedEnv {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if kvStorage != nil {
		apiKey, err := kvStorage.Get(ctx, name)
		if err == nil && apiKey != "" {
			return apiKey, nil
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key %q not found in environment, storage, or config", name)
}
