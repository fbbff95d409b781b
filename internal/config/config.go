package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/numatrix/numatrix/internal/models"
)

// Config represents the complete application configuration
type Config struct {
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// AnalysisConfig holds hypothesis test parameters
type AnalysisConfig struct {
	ReferenceDate     string  `mapstructure:"reference_date"`
	TargetCode        int     `mapstructure:"target_code"`
	SignificanceLevel float64 `mapstructure:"significance_level"`
	MinGroupSize      int     `mapstructure:"min_group_size"`
}

// Reference parses ReferenceDate. Call after Validate.
func (a AnalysisConfig) Reference() models.Date {
	d, err := models.ParseDate(a.ReferenceDate)
	if err != nil {
		return models.Date{}
	}
	return d
}

// SourcesConfig holds event source configuration
type SourcesConfig struct {
	WikidataURL    string        `mapstructure:"wikidata_url"`
	OWIDURL        string        `mapstructure:"owid_url"`
	Limit          int           `mapstructure:"limit"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
	UserAgent      string        `mapstructure:"user_agent"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"` // 0 disables caching
	DedupeDistance int           `mapstructure:"dedupe_distance"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	DBPath  string `mapstructure:"db_path"`
	MaxRuns int    `mapstructure:"max_runs"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// ScheduleConfig holds the periodic analysis schedule used by serve
type ScheduleConfig struct {
	Cron     string   `mapstructure:"cron"`
	Timezone string   `mapstructure:"timezone"`
	Sources  []string `mapstructure:"sources"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
// An empty path skips the file and uses defaults plus environment.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// NUMATRIX_TELEGRAM_BOT_TOKEN overrides telegram.bot_token
	v.SetEnvPrefix("NUMATRIX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Analysis defaults
	v.SetDefault("analysis.reference_date", "2000-01-01")
	v.SetDefault("analysis.target_code", 9)
	v.SetDefault("analysis.significance_level", 0.05)
	v.SetDefault("analysis.min_group_size", 20)

	// Source defaults
	v.SetDefault("sources.wikidata_url", "https://query.wikidata.org/sparql")
	v.SetDefault("sources.owid_url", "https://raw.githubusercontent.com/owid/owid-datasets/master/datasets/Number%20of%20ongoing%20conflicts%20by%20type%20(UCDP)/Number%20of%20ongoing%20conflicts%20by%20type%20(UCDP).csv")
	v.SetDefault("sources.limit", 1000)
	v.SetDefault("sources.timeout", "30s")
	v.SetDefault("sources.max_retries", 3)
	v.SetDefault("sources.retry_delay_base", "1s")
	v.SetDefault("sources.user_agent", "numatrix/1.0 (event distribution research)")
	v.SetDefault("sources.cache_ttl", "24h")
	v.SetDefault("sources.dedupe_distance", 2)

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/numatrix.db")
	v.SetDefault("storage.max_runs", 500)

	// Telegram defaults
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Schedule defaults
	v.SetDefault("schedule.cron", "0 6 * * *")
	v.SetDefault("schedule.timezone", "UTC")
	v.SetDefault("schedule.sources", []string{"wikidata"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Analysis config
	if _, err := models.ParseDate(c.Analysis.ReferenceDate); err != nil {
		return fmt.Errorf("analysis.reference_date is invalid: %w", err)
	}
	if c.Analysis.TargetCode < 1 || c.Analysis.TargetCode > 9 {
		return fmt.Errorf("analysis.target_code must be between 1 and 9")
	}
	if c.Analysis.SignificanceLevel <= 0 || c.Analysis.SignificanceLevel >= 1 {
		return fmt.Errorf("analysis.significance_level must be between 0 and 1 (exclusive)")
	}
	if c.Analysis.MinGroupSize < 1 {
		return fmt.Errorf("analysis.min_group_size must be at least 1")
	}

	// Validate Sources config
	if c.Sources.WikidataURL == "" {
		return fmt.Errorf("sources.wikidata_url is required")
	}
	if c.Sources.OWIDURL == "" {
		return fmt.Errorf("sources.owid_url is required")
	}
	if c.Sources.Limit < 1 || c.Sources.Limit > 10000 {
		return fmt.Errorf("sources.limit must be between 1 and 10000")
	}
	if c.Sources.Timeout < time.Second {
		return fmt.Errorf("sources.timeout must be at least 1 second")
	}
	if c.Sources.MaxRetries < 0 {
		return fmt.Errorf("sources.max_retries must not be negative")
	}
	if c.Sources.RetryDelayBase < 0 {
		return fmt.Errorf("sources.retry_delay_base must not be negative")
	}
	if c.Sources.CacheTTL < 0 {
		return fmt.Errorf("sources.cache_ttl must not be negative")
	}
	if c.Sources.DedupeDistance < 0 {
		return fmt.Errorf("sources.dedupe_distance must not be negative")
	}

	// Validate Storage config
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.MaxRuns < 1 {
		return fmt.Errorf("storage.max_runs must be at least 1")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}
	if c.Telegram.MaxRetries < 0 {
		return fmt.Errorf("telegram.max_retries must not be negative")
	}

	// Validate Schedule config
	if c.Schedule.Cron == "" {
		return fmt.Errorf("schedule.cron is required")
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("schedule.timezone is invalid: %w", err)
	}
	if len(c.Schedule.Sources) == 0 {
		return fmt.Errorf("schedule.sources must contain at least one source")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
