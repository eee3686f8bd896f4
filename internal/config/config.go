package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Data       DataConfig       `mapstructure:"data"`
	LLM        LLMConfig        `mapstructure:"llm"`
	ImageGen   ImageGenConfig   `mapstructure:"imagegen"`
	Campaign   CampaignConfig   `mapstructure:"campaign"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Security   SecurityConfig   `mapstructure:"security"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DataConfig struct {
	UsersFile  string `mapstructure:"users_file"`
	TrendsFile string `mapstructure:"trends_file"`
}

type LLMConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	FastModel    string        `mapstructure:"fast_model"`
	QualityModel string        `mapstructure:"quality_model"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type ImageGenConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	SafetyTolerance int           `mapstructure:"safety_tolerance"`
	Timeout         time.Duration `mapstructure:"timeout"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	MaxPollAttempts int           `mapstructure:"max_poll_attempts"`
}

type CampaignConfig struct {
	TrendFilterEnabled bool     `mapstructure:"trend_filter_enabled"`
	SafeCategories     []string `mapstructure:"safe_categories"`
	CompanyValues      []string `mapstructure:"company_values"`
	MaxConcurrency     int      `mapstructure:"max_concurrency"`
	ImageWidth         int      `mapstructure:"image_width"`
	ImageHeight        int      `mapstructure:"image_height"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MonitoringConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	MetricsPath string `mapstructure:"metrics_path"`
}

type SecurityConfig struct {
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

func Load() (*Config, error) {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	// Set defaults
	setDefaults()

	// Environment variable overrides
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional, continue with env vars and defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "development")

	// Static data defaults
	viper.SetDefault("data.users_file", "data/users.json")
	viper.SetDefault("data.trends_file", "data/trends.json")

	// LLM defaults; an empty api_key leaves the capability disabled
	viper.SetDefault("llm.api_key", "")
	viper.SetDefault("llm.base_url", "https://api.openai.com")
	viper.SetDefault("llm.fast_model", "gpt-4o-mini")
	viper.SetDefault("llm.quality_model", "gpt-4o")
	viper.SetDefault("llm.timeout", "60s")

	// Image generation defaults
	viper.SetDefault("imagegen.api_key", "")
	viper.SetDefault("imagegen.base_url", "https://api.bfl.ml")
	viper.SetDefault("imagegen.safety_tolerance", 2)
	viper.SetDefault("imagegen.timeout", "60s")
	viper.SetDefault("imagegen.poll_interval", "1s")
	viper.SetDefault("imagegen.max_poll_attempts", 60)

	// Campaign defaults
	viper.SetDefault("campaign.trend_filter_enabled", true)
	viper.SetDefault("campaign.safe_categories", []string{"Technology", "Food", "Sports"})
	viper.SetDefault("campaign.company_values", []string{"family-friendly", "positive", "inclusive", "safe"})
	viper.SetDefault("campaign.max_concurrency", 8)
	viper.SetDefault("campaign.image_width", 1024)
	viper.SetDefault("campaign.image_height", 768)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	// Monitoring defaults
	viper.SetDefault("monitoring.enabled", true)
	viper.SetDefault("monitoring.metrics_path", "/metrics")

	// Security defaults
	viper.SetDefault("security.cors.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	viper.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	viper.SetDefault("security.cors.allowed_headers", []string{"*"})
}
