package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Report providers supported by the report requester.
const (
	ReportProviderGemini    = "gemini"
	ReportProviderAnthropic = "anthropic"
)

// Config holds all application configuration.
// It is built once at startup and passed by value or pointer into constructors;
// no component reads the environment on its own.
type Config struct {
	Server    ServerConfig
	CORS      CORSConfig
	Geocoder  GeocoderConfig
	Registry  RegistryConfig
	Feature   FeatureConfig
	Report    ReportConfig
	History   HistoryConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string
	Env  string
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// GeocoderConfig holds Kakao Local address search configuration.
type GeocoderConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// RegistryConfig holds data.go.kr land and building ledger configuration.
// LandKey and BuildingKey fall back to DataGoKrKey when unset.
type RegistryConfig struct {
	DataGoKrKey string
	LandKey     string
	BuildingKey string
	LandURL     string
	BuildingURL string
	Timeout     time.Duration
}

// FeatureConfig holds V-World parcel feature service configuration.
type FeatureConfig struct {
	BaseURL string
	APIKey  string
	Domain  string
	Dataset string
	Timeout time.Duration
}

// ReportConfig holds generative report configuration.
type ReportConfig struct {
	Provider        string
	GeminiAPIKey    string
	AnthropicAPIKey string
	Model           string
	Timeout         time.Duration
	MaxTokens       int
}

// HistoryConfig toggles the optional analysis history store.
type HistoryConfig struct {
	Enabled bool
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	PoolMin  int
	PoolMax  int
}

// RedisConfig holds Redis connection configuration. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RateLimitConfig holds the per-client request limit for analysis endpoints.
// PerMinute of zero disables limiting.
type RateLimitConfig struct {
	PerMinute int
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	// Missing .env is normal outside local development
	_ = godotenv.Load()

	v := viper.New()

	// Set defaults for development
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:8501")

	v.SetDefault("KAKAO_BASE_URL", "https://dapi.kakao.com")
	v.SetDefault("GEOCODE_TIMEOUT", "3s")

	v.SetDefault("LAND_LEDGER_URL", "http://apis.data.go.kr/1613000/LandInfoService/getLandInfo")
	v.SetDefault("BUILDING_LEDGER_URL", "http://apis.data.go.kr/1613000/BldRgstHubService/getBrTitleInfo")
	v.SetDefault("REGISTRY_TIMEOUT", "7s")

	v.SetDefault("VWORLD_URL", "http://api.vworld.kr/req/data")
	v.SetDefault("VWORLD_DOMAIN", "")
	v.SetDefault("VWORLD_DATASET", "LP_PA_CBND_BU_INFO")
	v.SetDefault("FEATURE_TIMEOUT", "7s")

	v.SetDefault("REPORT_PROVIDER", ReportProviderGemini)
	v.SetDefault("REPORT_MODEL", "")
	v.SetDefault("REPORT_TIMEOUT", "10s")
	v.SetDefault("REPORT_MAX_TOKENS", 2048)

	v.SetDefault("HISTORY_ENABLED", false)
	v.SetDefault("DB_HOST", "host.docker.internal")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "parcelbrief")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 0)

	// Bind environment variables
	v.AutomaticEnv()

	dataGoKrKey := strings.TrimSpace(v.GetString("DATA_GO_KR_KEY"))

	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("PORT"),
			Env:  v.GetString("ENV"),
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ORIGINS")),
		},
		Geocoder: GeocoderConfig{
			BaseURL: strings.TrimRight(v.GetString("KAKAO_BASE_URL"), "/"),
			APIKey:  strings.TrimSpace(v.GetString("KAKAO_REST_API_KEY")),
			Timeout: v.GetDuration("GEOCODE_TIMEOUT"),
		},
		Registry: RegistryConfig{
			DataGoKrKey: dataGoKrKey,
			LandKey:     firstNonEmpty(v.GetString("LAND_LEDGER_KEY"), dataGoKrKey),
			BuildingKey: firstNonEmpty(v.GetString("BUILDING_LEDGER_KEY"), dataGoKrKey),
			LandURL:     v.GetString("LAND_LEDGER_URL"),
			BuildingURL: v.GetString("BUILDING_LEDGER_URL"),
			Timeout:     v.GetDuration("REGISTRY_TIMEOUT"),
		},
		Feature: FeatureConfig{
			BaseURL: v.GetString("VWORLD_URL"),
			APIKey:  strings.TrimSpace(v.GetString("VWORLD_KEY")),
			Domain:  v.GetString("VWORLD_DOMAIN"),
			Dataset: v.GetString("VWORLD_DATASET"),
			Timeout: v.GetDuration("FEATURE_TIMEOUT"),
		},
		Report: ReportConfig{
			Provider:        strings.ToLower(strings.TrimSpace(v.GetString("REPORT_PROVIDER"))),
			GeminiAPIKey:    strings.TrimSpace(v.GetString("GEMINI_API_KEY")),
			AnthropicAPIKey: strings.TrimSpace(v.GetString("ANTHROPIC_API_KEY")),
			Model:           v.GetString("REPORT_MODEL"),
			Timeout:         v.GetDuration("REPORT_TIMEOUT"),
			MaxTokens:       v.GetInt("REPORT_MAX_TOKENS"),
		},
		History: HistoryConfig{
			Enabled: v.GetBool("HISTORY_ENABLED"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		RateLimit: RateLimitConfig{
			PerMinute: v.GetInt("RATE_LIMIT_PER_MINUTE"),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
// Missing API keys are not errors: the affected source degrades at runtime.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Geocoder.BaseURL == "" {
		return fmt.Errorf("KAKAO_BASE_URL is required")
	}
	if c.Registry.LandURL == "" {
		return fmt.Errorf("LAND_LEDGER_URL is required")
	}
	if c.Registry.BuildingURL == "" {
		return fmt.Errorf("BUILDING_LEDGER_URL is required")
	}
	if c.Feature.BaseURL == "" {
		return fmt.Errorf("VWORLD_URL is required")
	}

	for name, d := range map[string]time.Duration{
		"GEOCODE_TIMEOUT":  c.Geocoder.Timeout,
		"REGISTRY_TIMEOUT": c.Registry.Timeout,
		"FEATURE_TIMEOUT":  c.Feature.Timeout,
		"REPORT_TIMEOUT":   c.Report.Timeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be a positive duration", name)
		}
	}

	switch c.Report.Provider {
	case ReportProviderGemini, ReportProviderAnthropic:
	default:
		return fmt.Errorf("REPORT_PROVIDER must be %q or %q, got %q",
			ReportProviderGemini, ReportProviderAnthropic, c.Report.Provider)
	}
	if c.Report.MaxTokens < 1 {
		return fmt.Errorf("REPORT_MAX_TOKENS must be at least 1")
	}

	if c.History.Enabled {
		if err := c.Database.Validate(); err != nil {
			return err
		}
	}

	if c.RateLimit.PerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be non-negative")
	}
	if c.RateLimit.PerMinute > 0 && c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required when RATE_LIMIT_PER_MINUTE is set")
	}

	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	return nil
}

// Validate checks the database settings used by the analysis history store.
func (d DatabaseConfig) Validate() error {
	if d.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if d.Port == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	if d.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if d.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if d.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if d.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if d.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if d.PoolMin > d.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}
	return nil
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
