package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// ConfigFileEnv names the optional yaml/json/toml file read before the environment.
const ConfigFileEnv = "CONFIG_FILE"

// Config aggregates application configuration values.
type Config struct {
	HTTP          HTTPConfig          `yaml:"http" json:"http" toml:"http"`
	Graph         GraphConfig         `yaml:"graph" json:"graph" toml:"graph"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging" toml:"logging"`
	Detection     DetectionConfig     `yaml:"detection" json:"detection" toml:"detection"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability" toml:"observability"`
	Export        ExportConfig        `yaml:"export" json:"export" toml:"export"`
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host              string        `yaml:"host" json:"host" toml:"host" env:"SERVER_HOST" env-default:"0.0.0.0"`
	Port              int           `yaml:"port" json:"port" toml:"port" env:"SERVER_PORT" env-default:"8080"`
	ReadTimeout       time.Duration `yaml:"read_timeout" json:"read_timeout" toml:"read_timeout" env:"SERVER_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout      time.Duration `yaml:"write_timeout" json:"write_timeout" toml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" env-default:"60s"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" json:"idle_timeout" toml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" toml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
	MetricsEnabled    bool          `yaml:"metrics_enabled" json:"metrics_enabled" toml:"metrics_enabled" env:"SERVER_METRICS_ENABLED" env-default:"true"`
	AllowedOriginsCSV string        `yaml:"allowed_origins" json:"allowed_origins" toml:"allowed_origins" env:"SERVER_ALLOWED_ORIGINS"`
	MaxUploadBytes    int64         `yaml:"max_upload_bytes" json:"max_upload_bytes" toml:"max_upload_bytes" env:"SERVER_MAX_UPLOAD_BYTES" env-default:"33554432"`
}

// GraphConfig describes connectivity to the graph database used for exports.
// An empty URI disables exporting.
type GraphConfig struct {
	URI            string `yaml:"uri" json:"uri" toml:"uri" env:"GRAPH_URI"`
	Database       string `yaml:"database" json:"database" toml:"database" env:"GRAPH_DATABASE"`
	Username       string `yaml:"username" json:"username" toml:"username" env:"GRAPH_USERNAME"`
	Password       string `yaml:"password" json:"password" toml:"password" env:"GRAPH_PASSWORD"`
	MaxConnections int    `yaml:"max_connections" json:"max_connections" toml:"max_connections" env:"GRAPH_MAX_CONNECTIONS" env-default:"10"`
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string `yaml:"level" json:"level" toml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format        string `yaml:"format" json:"format" toml:"format" env:"LOG_FORMAT" env-default:"text"` // text|json
	IncludeCaller bool   `yaml:"include_caller" json:"include_caller" toml:"include_caller" env:"LOG_INCLUDE_CALLER" env-default:"false"`
}

// DetectionConfig carries the detector thresholds and scoring weights.
type DetectionConfig struct {
	CycleMinLength             int     `yaml:"cycle_min_length" json:"cycle_min_length" toml:"cycle_min_length" env:"DETECT_CYCLE_MIN_LENGTH" env-default:"3"`
	CycleMaxLength             int     `yaml:"cycle_max_length" json:"cycle_max_length" toml:"cycle_max_length" env:"DETECT_CYCLE_MAX_LENGTH" env-default:"5"`
	SmurfingThreshold          int     `yaml:"smurfing_threshold" json:"smurfing_threshold" toml:"smurfing_threshold" env:"DETECT_SMURFING_THRESHOLD" env-default:"10"`
	SmurfingWindowHours        int     `yaml:"smurfing_window_hours" json:"smurfing_window_hours" toml:"smurfing_window_hours" env:"DETECT_SMURFING_WINDOW_HOURS" env-default:"72"`
	ShellMinChainLength        int     `yaml:"shell_min_chain_length" json:"shell_min_chain_length" toml:"shell_min_chain_length" env:"DETECT_SHELL_MIN_CHAIN_LENGTH" env-default:"3"`
	ShellMaxIntermediateDegree int     `yaml:"shell_max_intermediate_degree" json:"shell_max_intermediate_degree" toml:"shell_max_intermediate_degree" env:"DETECT_SHELL_MAX_INTERMEDIATE_DEGREE" env-default:"3"`
	Grouping                   string  `yaml:"grouping" json:"grouping" toml:"grouping" env:"DETECT_GROUPING" env-default:"union_find"`
	Parallel                   bool    `yaml:"parallel" json:"parallel" toml:"parallel" env:"DETECT_PARALLEL" env-default:"false"`
	MaxAccounts                int     `yaml:"max_accounts" json:"max_accounts" toml:"max_accounts" env:"DETECT_MAX_ACCOUNTS" env-default:"10000"`
	CycleWeight                float64 `yaml:"cycle_weight" json:"cycle_weight" toml:"cycle_weight" env:"SCORE_CYCLE_WEIGHT" env-default:"40"`
	ShellWeight                float64 `yaml:"shell_weight" json:"shell_weight" toml:"shell_weight" env:"SCORE_SHELL_WEIGHT" env-default:"25"`
	SmurfingWeight             float64 `yaml:"smurfing_weight" json:"smurfing_weight" toml:"smurfing_weight" env:"SCORE_SMURFING_WEIGHT" env-default:"30"`
	VelocityWeight             float64 `yaml:"velocity_weight" json:"velocity_weight" toml:"velocity_weight" env:"SCORE_VELOCITY_WEIGHT" env-default:"15"`
}

// ObservabilityConfig selects where traces go. Tracing stays off without an endpoint.
type ObservabilityConfig struct {
	ServiceName  string `yaml:"service_name" json:"service_name" toml:"service_name" env:"OTEL_SERVICE_NAME" env-default:"ringtrace"`
	OTLPEndpoint string `yaml:"otlp_endpoint" json:"otlp_endpoint" toml:"otlp_endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `yaml:"otlp_insecure" json:"otlp_insecure" toml:"otlp_insecure" env:"OTEL_EXPORTER_OTLP_INSECURE" env-default:"true"`
}

// ExportConfig tunes graph exports of detection runs.
type ExportConfig struct {
	Workers         int           `yaml:"workers" json:"workers" toml:"workers" env:"EXPORT_WORKERS" env-default:"4"`
	BatchSize       int           `yaml:"batch_size" json:"batch_size" toml:"batch_size" env:"EXPORT_BATCH_SIZE" env-default:"500"`
	BreakerFailures uint32        `yaml:"breaker_failures" json:"breaker_failures" toml:"breaker_failures" env:"EXPORT_BREAKER_FAILURES" env-default:"5"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout" json:"breaker_timeout" toml:"breaker_timeout" env:"EXPORT_BREAKER_TIMEOUT" env-default:"30s"`
}

// Load reads configuration from the file named by CONFIG_FILE, when set, and
// then from environment variables, applying defaults.
func Load() (Config, error) {
	var cfg Config

	if path := strings.TrimSpace(os.Getenv(ConfigFileEnv)); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values cleanenv cannot express as tags.
func (c Config) Validate() error {
	var errs []error
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d is out of range", c.HTTP.Port))
	}
	if c.HTTP.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("max upload bytes must be positive, got %d", c.HTTP.MaxUploadBytes))
	}
	if c.Detection.MaxAccounts < 0 {
		errs = append(errs, fmt.Errorf("max accounts must not be negative, got %d", c.Detection.MaxAccounts))
	}
	if c.Export.Workers <= 0 || c.Export.BatchSize <= 0 {
		errs = append(errs, errors.New("export workers and batch size must be positive"))
	}
	return errors.Join(errs...)
}

// AllowedOrigins splits the configured CORS allow-list.
func (c HTTPConfig) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.AllowedOriginsCSV, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
