package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Upload    UploadConfig    `yaml:"upload" envconfig:"UPLOAD"`
	Session   SessionConfig   `yaml:"session" envconfig:"SESSION"`
	Export    ExportConfig    `yaml:"export" envconfig:"EXPORT"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"HOST"`
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"2m"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS" default:"true"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"50"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"100"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/csvmap.log"`
}

// UploadConfig limits and decodes uploaded files
type UploadConfig struct {
	MaxBytes          int64    `yaml:"max_bytes" envconfig:"MAX_BYTES" default:"33554432"`
	Encodings         []string `yaml:"encodings" envconfig:"ENCODINGS" default:"utf-8,windows-1252,iso-8859-1"`
	AllowedExtensions []string `yaml:"allowed_extensions" envconfig:"ALLOWED_EXTENSIONS" default:".csv,.txt,.xlsx"`
}

// SessionConfig bounds the in-memory session store
type SessionConfig struct {
	TTL         time.Duration `yaml:"ttl" envconfig:"TTL" default:"2h"`
	MaxSessions int           `yaml:"max_sessions" envconfig:"MAX_SESSIONS" default:"256"`
}

// ExportConfig configures downloads
type ExportConfig struct {
	CSVBOM bool `yaml:"csv_bom" envconfig:"CSV_BOM" default:"false"`
}

// TelemetryConfig selects OpenTelemetry exporters
type TelemetryConfig struct {
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT" default:"development"`
	EnableTracing  bool    `yaml:"enable_tracing" envconfig:"ENABLE_TRACING" default:"false"`
	EnableMetrics  bool    `yaml:"enable_metrics" envconfig:"ENABLE_METRICS" default:"true"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" default:"stdout"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER" default:"prometheus"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" default:"1"`
}

// Load loads configuration from environment variables and an optional YAML
// file. An empty path searches the usual locations. Environment variables that
// differ from their defaults take precedence over the file.
func Load(path string) (*Config, error) {
	var cfg Config

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if path == "" {
		path = getConfigFilePath()
	}
	if path != "" {
		fileConfig, err := loadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileConfig, cfg, *Default())
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// pick keeps the environment value unless it is still the default and the file sets one
func pick[T comparable](env, file, def T) T {
	var zero T
	if env == def && file != zero {
		return file
	}
	return env
}

func pickSlice(env, file, def []string) []string {
	if slices.Equal(env, def) && len(file) > 0 {
		return file
	}
	return env
}

// mergeConfigs merges file config with env config (env takes precedence)
func mergeConfigs(file, env, def Config) Config {
	out := env

	out.Server.Host = pick(env.Server.Host, file.Server.Host, def.Server.Host)
	out.Server.Port = pick(env.Server.Port, file.Server.Port, def.Server.Port)
	out.Server.ReadTimeout = pick(env.Server.ReadTimeout, file.Server.ReadTimeout, def.Server.ReadTimeout)
	out.Server.WriteTimeout = pick(env.Server.WriteTimeout, file.Server.WriteTimeout, def.Server.WriteTimeout)
	out.Server.IdleTimeout = pick(env.Server.IdleTimeout, file.Server.IdleTimeout, def.Server.IdleTimeout)
	out.Server.MaxHeaderBytes = pick(env.Server.MaxHeaderBytes, file.Server.MaxHeaderBytes, def.Server.MaxHeaderBytes)
	out.Server.ShutdownTimeout = pick(env.Server.ShutdownTimeout, file.Server.ShutdownTimeout, def.Server.ShutdownTimeout)
	out.Server.RequestTimeout = pick(env.Server.RequestTimeout, file.Server.RequestTimeout, def.Server.RequestTimeout)

	out.Security.AllowedOrigins = pickSlice(env.Security.AllowedOrigins, file.Security.AllowedOrigins, def.Security.AllowedOrigins)
	out.Security.RateLimit.RPS = pick(env.Security.RateLimit.RPS, file.Security.RateLimit.RPS, def.Security.RateLimit.RPS)
	out.Security.RateLimit.Burst = pick(env.Security.RateLimit.Burst, file.Security.RateLimit.Burst, def.Security.RateLimit.Burst)

	out.Logging.Level = pick(env.Logging.Level, file.Logging.Level, def.Logging.Level)
	out.Logging.Output = pick(env.Logging.Output, file.Logging.Output, def.Logging.Output)
	out.Logging.FilePath = pick(env.Logging.FilePath, file.Logging.FilePath, def.Logging.FilePath)

	out.Upload.MaxBytes = pick(env.Upload.MaxBytes, file.Upload.MaxBytes, def.Upload.MaxBytes)
	out.Upload.Encodings = pickSlice(env.Upload.Encodings, file.Upload.Encodings, def.Upload.Encodings)
	out.Upload.AllowedExtensions = pickSlice(env.Upload.AllowedExtensions, file.Upload.AllowedExtensions, def.Upload.AllowedExtensions)

	out.Session.TTL = pick(env.Session.TTL, file.Session.TTL, def.Session.TTL)
	out.Session.MaxSessions = pick(env.Session.MaxSessions, file.Session.MaxSessions, def.Session.MaxSessions)

	out.Export.CSVBOM = pick(env.Export.CSVBOM, file.Export.CSVBOM, def.Export.CSVBOM)

	out.Telemetry.Environment = pick(env.Telemetry.Environment, file.Telemetry.Environment, def.Telemetry.Environment)
	out.Telemetry.EnableTracing = pick(env.Telemetry.EnableTracing, file.Telemetry.EnableTracing, def.Telemetry.EnableTracing)
	out.Telemetry.TraceExporter = pick(env.Telemetry.TraceExporter, file.Telemetry.TraceExporter, def.Telemetry.TraceExporter)
	out.Telemetry.MetricExporter = pick(env.Telemetry.MetricExporter, file.Telemetry.MetricExporter, def.Telemetry.MetricExporter)
	out.Telemetry.SampleRatio = pick(env.Telemetry.SampleRatio, file.Telemetry.SampleRatio, def.Telemetry.SampleRatio)

	return out
}

// Validate checks ranges and enumerations and normalises logging settings
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}
	if c.Security.EnableCORS && len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}
	if c.Security.RateLimit.Enabled && (c.Security.RateLimit.RPS <= 0 || c.Security.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit rps and burst must be positive")
	}

	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload max bytes must be positive")
	}
	if len(c.Upload.Encodings) == 0 {
		return fmt.Errorf("at least one upload encoding must be specified")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	if c.Session.MaxSessions <= 0 {
		return fmt.Errorf("session max must be positive")
	}

	if !slices.Contains([]string{"stdout", "none"}, c.Telemetry.TraceExporter) {
		return fmt.Errorf("unsupported trace exporter: %s", c.Telemetry.TraceExporter)
	}
	if !slices.Contains([]string{"prometheus", "none"}, c.Telemetry.MetricExporter) {
		return fmt.Errorf("unsupported metric exporter: %s", c.Telemetry.MetricExporter)
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry sample ratio must be between 0 and 1")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	c.Logging.Format = "json"
	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		c.Logging.Output = "console"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = DefaultLogFile
	}

	return nil
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG_FILE"); p != "" {
		return p
	}

	locations := []string{
		"csvmap.yaml",
		"configs/csvmap.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  2 * time.Minute,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     50,
				Burst:   100,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: DefaultLogFile,
		},
		Upload: UploadConfig{
			MaxBytes:          DefaultMaxUploadBytes,
			Encodings:         []string{"utf-8", "windows-1252", "iso-8859-1"},
			AllowedExtensions: []string{".csv", ".txt", ".xlsx"},
		},
		Session: SessionConfig{
			TTL:         DefaultSessionTTL,
			MaxSessions: DefaultMaxSessions,
		},
		Export: ExportConfig{},
		Telemetry: TelemetryConfig{
			Environment:    "development",
			EnableMetrics:  true,
			TraceExporter:  "stdout",
			MetricExporter: "prometheus",
			SampleRatio:    1,
		},
	}
}
