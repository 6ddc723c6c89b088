package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"curiesuite/internal/errors"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NCBI     NCBIConfig     `yaml:"ncbi"`
	EBI      EBIConfig      `yaml:"ebi"`
	Curve    CurveConfig    `yaml:"curve"`
	Limits   LimitsConfig   `yaml:"limits"`
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string `yaml:"port" validate:"required,numeric"`
	APIPort string `yaml:"api_port" validate:"required,numeric"`
	GinMode string `yaml:"gin_mode" validate:"oneof=debug release test"`

	// AllowedOrigins may call the JSON API from a browser
	AllowedOrigins []string `yaml:"allowed_origins" validate:"dive,url"`
}

// DatabaseConfig selects where tool runs are recorded. Driver "memory" keeps
// runs in process and needs no URL.
type DatabaseConfig struct {
	Driver string `yaml:"driver" validate:"oneof=memory sqlite3 postgres"`
	URL    string `yaml:"url" validate:"required_unless=Driver memory"`
}

// NCBIConfig holds BLAST URL API settings
type NCBIConfig struct {
	BaseURL      string        `yaml:"base_url" validate:"required,url"`
	Program      string        `yaml:"program" validate:"required"`
	Database     string        `yaml:"database" validate:"required"`
	Email        string        `yaml:"email" validate:"omitempty,email"`
	Tool         string        `yaml:"tool" validate:"required"`
	PollInterval time.Duration `yaml:"poll_interval" validate:"gte=1s"`
	Timeout      time.Duration `yaml:"timeout" validate:"gtfield=PollInterval"`
	MaxPolls     int           `yaml:"max_polls" validate:"gte=1"`
	HTTPTimeout  time.Duration `yaml:"http_timeout" validate:"gt=0"`

	// RequestsPerMinute spaces calls to the shared NCBI servers, 0 disables
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"gte=0"`
}

// EBIConfig holds Job Dispatcher settings shared by the Clustal Omega and
// MUSCLE clients
type EBIConfig struct {
	BaseURL      string        `yaml:"base_url" validate:"required,url"`
	Email        string        `yaml:"email" validate:"required,email"`
	ResultType   string        `yaml:"result_type" validate:"required"`
	PollInterval time.Duration `yaml:"poll_interval" validate:"gte=1s"`
	Timeout      time.Duration `yaml:"timeout" validate:"gtfield=PollInterval"`
	MaxPolls     int           `yaml:"max_polls" validate:"gte=1"`
	HTTPTimeout  time.Duration `yaml:"http_timeout" validate:"gt=0"`
}

// CurveConfig holds curve fitting defaults
type CurveConfig struct {
	DefaultMinValue float64 `yaml:"default_min_value"`
}

// LimitsConfig bounds request sizes and remote work
type LimitsConfig struct {
	MaxInFlightSearches int64 `yaml:"max_in_flight_searches" validate:"gte=1"`
	MaxUploadBytes      int64 `yaml:"max_upload_bytes" validate:"gte=1024"`
	MaxHits             int   `yaml:"max_hits" validate:"gte=1,lte=5000"`
}

// Load reads configuration from environment variables, applies the optional
// CONFIG_FILE YAML overlay and validates the result
func Load() (*Config, error) {
	cfg := &Config{
		Server:   loadServerConfig(),
		Database: loadDatabaseConfig(),
		NCBI:     loadNCBIConfig(),
		EBI:      loadEBIConfig(),
		Curve: CurveConfig{
			DefaultMinValue: getEnvFloatOrDefault("CURVE_MIN_VALUE", 0),
		},
		Limits: LimitsConfig{
			MaxInFlightSearches: int64(getEnvIntOrDefault("MAX_IN_FLIGHT_SEARCHES", 2)),
			MaxUploadBytes:      int64(getEnvIntOrDefault("MAX_UPLOAD_BYTES", 32<<20)),
			MaxHits:             getEnvIntOrDefault("MAX_HITS", 5000),
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

// Validate checks struct tags on the whole configuration
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return errors.New(errors.CodeConfigInvalid, err.Error())
	}
	return nil
}

// applyFile overlays values present in a YAML file onto cfg
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(errors.ConfigInvalid("unreadable config file"), "read %s: %v", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.Wrapf(errors.ConfigInvalid("malformed config file"), "parse %s: %v", path, err)
	}
	return nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port:    getEnvOrDefault("PORT", "8080"),
		APIPort: getEnvOrDefault("API_PORT", "8081"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),

		AllowedOrigins: getEnvListOrDefault("API_ALLOWED_ORIGINS", nil),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	url := os.Getenv("DATABASE_URL")
	driver := getEnvOrDefault("DB_DRIVER", "")
	if driver == "" {
		driver = "memory"
		if url != "" {
			driver = "postgres"
		}
	}
	return DatabaseConfig{Driver: driver, URL: url}
}

func loadNCBIConfig() NCBIConfig {
	return NCBIConfig{
		BaseURL:      getEnvOrDefault("NCBI_BLAST_URL", "https://blast.ncbi.nlm.nih.gov/Blast.cgi"),
		Program:      getEnvOrDefault("NCBI_PROGRAM", "blastp"),
		Database:     getEnvOrDefault("NCBI_DATABASE", "nr"),
		Email:        getEnvOrDefault("NCBI_EMAIL", ""),
		Tool:         getEnvOrDefault("NCBI_TOOL", "curiesuite"),
		PollInterval: getEnvDurationOrDefault("NCBI_POLL_INTERVAL", 10*time.Second),
		Timeout:      getEnvDurationOrDefault("NCBI_TIMEOUT", 15*time.Minute),
		MaxPolls:     getEnvIntOrDefault("NCBI_MAX_POLLS", 120),
		HTTPTimeout:  getEnvDurationOrDefault("NCBI_HTTP_TIMEOUT", 2*time.Minute),

		RequestsPerMinute: getEnvIntOrDefault("NCBI_REQUESTS_PER_MINUTE", 20),
	}
}

func loadEBIConfig() EBIConfig {
	return EBIConfig{
		BaseURL:      getEnvOrDefault("EBI_BASE_URL", "https://www.ebi.ac.uk/Tools/services/rest"),
		Email:        getEnvOrDefault("EBI_EMAIL", "alignments@curieco.com"),
		ResultType:   getEnvOrDefault("EBI_RESULT_TYPE", "aln-fasta"),
		PollInterval: getEnvDurationOrDefault("EBI_POLL_INTERVAL", 5*time.Second),
		Timeout:      getEnvDurationOrDefault("EBI_TIMEOUT", 10*time.Minute),
		MaxPolls:     getEnvIntOrDefault("EBI_MAX_POLLS", 200),
		HTTPTimeout:  getEnvDurationOrDefault("EBI_HTTP_TIMEOUT", 60*time.Second),
	}
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
