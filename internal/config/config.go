package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Badges  []BadgeConfig `mapstructure:"badges"`
	Output  OutputConfig  `mapstructure:"output"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type APIConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	Key        string `mapstructure:"key"`
	PageSize   int    `mapstructure:"page_size"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
	RetryCount int    `mapstructure:"retry_count"`
	RetryDelay int    `mapstructure:"retry_delay_sec"`
}

type FetchConfig struct {
	RatePerSecond    int `mapstructure:"rate_per_second"`
	BackoffBudgetSec int `mapstructure:"backoff_budget_sec"`
	IntervalSec      int `mapstructure:"interval_sec"`
}

// BadgeConfig names one badge under observation. Role ties constituent and
// caucus badges to the election charts; "other" badges are tracked and
// persisted but not charted.
type BadgeConfig struct {
	Site string `mapstructure:"site"`
	Name string `mapstructure:"name"`
	ID   int    `mapstructure:"id"`
	Role string `mapstructure:"role"`
}

type OutputConfig struct {
	DataDirectory  string `mapstructure:"data_directory"`
	ImageDirectory string `mapstructure:"image_directory"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type LoggingConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
	Level     string `mapstructure:"level"`
}

func (f FetchConfig) Interval() time.Duration {
	return time.Duration(f.IntervalSec) * time.Second
}

func (f FetchConfig) BackoffBudget() time.Duration {
	return time.Duration(f.BackoffBudgetSec) * time.Second
}

// DefaultBadges is the original observation list: the Stack Overflow and
// Math.SE moderator election badges.
func DefaultBadges() []BadgeConfig {
	return []BadgeConfig{
		{Site: "stackoverflow.com", Name: "sheriff", ID: 3109, Role: RoleOther},
		{Site: "stackoverflow.com", Name: "constituent", ID: 1974, Role: RoleConstituent},
		{Site: "stackoverflow.com", Name: "caucus", ID: 1973, Role: RoleCaucus},
		{Site: "math.stackexchange.com", Name: "constituent", ID: 208, Role: RoleConstituent},
		{Site: "math.stackexchange.com", Name: "caucus", ID: 207, Role: RoleCaucus},
	}
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("api.base_url", "https://api.stackexchange.com")
	v.SetDefault("api.page_size", 100)
	v.SetDefault("api.timeout_sec", 30)
	v.SetDefault("api.retry_count", 3)
	v.SetDefault("api.retry_delay_sec", 5)
	v.SetDefault("fetch.rate_per_second", 2)
	v.SetDefault("fetch.backoff_budget_sec", 300)
	v.SetDefault("fetch.interval_sec", 300)
	v.SetDefault("output.data_directory", "data")
	v.SetDefault("output.image_directory", "images")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9190")
	v.SetDefault("logging.enabled", true)
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.level", "info")

	// Environment variable support
	v.SetEnvPrefix("ELECTION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Explicitly bind nested keys to env vars
	_ = v.BindEnv("api.key", "ELECTION_API_KEY")

	// Load config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("default")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if len(cfg.Badges) == 0 {
		cfg.Badges = DefaultBadges()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.API.PageSize < 1 || c.API.PageSize > 100 {
		return fmt.Errorf("api.page_size must be between 1 and 100")
	}
	if c.Fetch.RatePerSecond < 1 {
		return fmt.Errorf("fetch.rate_per_second must be >= 1")
	}
	if c.Fetch.IntervalSec < 1 {
		return fmt.Errorf("fetch.interval_sec must be >= 1")
	}
	return ValidateBadges(c.Badges)
}
