// Package config provides configuration for the minuted service. Settings are
// loaded from a YAML file and overlaid with environment variables, with a
// .env file honored for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultHTTPAddr        = ":8080"
	DefaultWorkerCount     = 4
	DefaultJobTimeout      = 15 * time.Minute
	DefaultQueueName       = "minuted:process"
	DefaultQueueRetries    = 3
	DefaultInsightModel    = "gemini-2.0-flash"
	DefaultCalendarID      = "primary"
	DefaultTimezone        = "UTC"
	DefaultShutdownTimeout = 30 * time.Second
)

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// Addr is the listen address (host:port).
	Addr string `yaml:"addr"`

	// ShutdownTimeout bounds the graceful drain on exit.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// UnmarshalYAML decodes durations from strings like "30s" and leaves fields
// the file omits at their prior values.
func (s *ServerConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Addr            string `yaml:"addr"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Addr != "" {
		s.Addr = raw.Addr
	}
	if raw.ShutdownTimeout != "" {
		d, err := time.ParseDuration(raw.ShutdownTimeout)
		if err != nil {
			return fmt.Errorf("invalid shutdown_timeout: %w", err)
		}
		s.ShutdownTimeout = d
	}
	return nil
}

// DatabaseConfig holds the Postgres connection settings. URL, when set, wins
// over the individual fields.
type DatabaseConfig struct {
	URL      string `yaml:"url,omitempty"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password,omitempty"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisConfig holds the optional Redis queue backend settings. When disabled
// the service uses its in-process queue.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
}

// TranscriptionConfig selects and configures the speech-to-text provider.
type TranscriptionConfig struct {
	// Provider is "multipart" or "polling".
	Provider string `yaml:"provider"`

	// Endpoint is the multipart provider's transcription URL.
	Endpoint string `yaml:"endpoint,omitempty"`

	// BaseURL is the polling provider's API root.
	BaseURL string `yaml:"base_url,omitempty"`

	APIKey   string `yaml:"api_key,omitempty"`
	APIHost  string `yaml:"api_host,omitempty"`
	Language string `yaml:"language,omitempty"`
}

// InsightConfig configures the extraction model.
type InsightConfig struct {
	APIKey string `yaml:"api_key,omitempty"`
	Model  string `yaml:"model"`
}

// CalendarConfig configures the optional scheduling stage.
type CalendarConfig struct {
	Enabled     bool     `yaml:"enabled"`
	AccessToken string   `yaml:"access_token,omitempty"`
	CalendarID  string   `yaml:"calendar_id"`
	Timezone    string   `yaml:"timezone"`
	Attendees   []string `yaml:"attendees,omitempty"`
}

// WorkersConfig sizes the processing pool.
type WorkersConfig struct {
	Count      int           `yaml:"count"`
	JobTimeout time.Duration `yaml:"job_timeout"`
}

// UnmarshalYAML decodes job_timeout from strings like "15m".
func (w *WorkersConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Count      int    `yaml:"count"`
		JobTimeout string `yaml:"job_timeout"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Count != 0 {
		w.Count = raw.Count
	}
	if raw.JobTimeout != "" {
		d, err := time.ParseDuration(raw.JobTimeout)
		if err != nil {
			return fmt.Errorf("invalid job_timeout: %w", err)
		}
		w.JobTimeout = d
	}
	return nil
}

// QueueConfig names and bounds the job queue.
type QueueConfig struct {
	Name       string `yaml:"name"`
	MaxRetries int    `yaml:"max_retries"`
}

// Config is the full service configuration.
type Config struct {
	// Environment tags log output ("development", "production").
	Environment string `yaml:"environment"`

	// LogLevel is debug, info, warn, or error.
	LogLevel string `yaml:"log_level"`

	// LogJSON switches between JSON and console log output.
	LogJSON bool `yaml:"log_json"`

	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Insight       InsightConfig       `yaml:"insight"`
	Calendar      CalendarConfig      `yaml:"calendar"`
	Workers       WorkersConfig       `yaml:"workers"`
	Queue         QueueConfig         `yaml:"queue"`
}

// Default returns a Config with development defaults.
func Default() *Config {
	return &Config{
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Addr:            DefaultHTTPAddr,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			Name:    "minuted",
			User:    "minuted",
			SSLMode: "disable",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Transcription: TranscriptionConfig{
			Provider: "multipart",
			Language: "en",
		},
		Insight: InsightConfig{
			Model: DefaultInsightModel,
		},
		Calendar: CalendarConfig{
			CalendarID: DefaultCalendarID,
			Timezone:   DefaultTimezone,
		},
		Workers: WorkersConfig{
			Count:      DefaultWorkerCount,
			JobTimeout: DefaultJobTimeout,
		},
		Queue: QueueConfig{
			Name:       DefaultQueueName,
			MaxRetries: DefaultQueueRetries,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (when
// it exists), then environment variables. An empty path skips the file step.
func Load(path string) (*Config, error) {
	// Local development convenience; absence is not an error.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// loadFromEnv overlays MINUTED_* environment variables.
func (c *Config) loadFromEnv() {
	setString(&c.Environment, "MINUTED_ENVIRONMENT")
	setString(&c.LogLevel, "MINUTED_LOG_LEVEL")
	setBool(&c.LogJSON, "MINUTED_LOG_JSON")

	setString(&c.Server.Addr, "MINUTED_HTTP_ADDR")

	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Database.Host, "MINUTED_DB_HOST")
	setInt(&c.Database.Port, "MINUTED_DB_PORT")
	setString(&c.Database.Name, "MINUTED_DB_NAME")
	setString(&c.Database.User, "MINUTED_DB_USER")
	setString(&c.Database.Password, "MINUTED_DB_PASSWORD")
	setString(&c.Database.SSLMode, "MINUTED_DB_SSLMODE")

	setBool(&c.Redis.Enabled, "MINUTED_REDIS_ENABLED")
	setString(&c.Redis.Addr, "MINUTED_REDIS_ADDR")
	setString(&c.Redis.Password, "MINUTED_REDIS_PASSWORD")
	setInt(&c.Redis.DB, "MINUTED_REDIS_DB")

	setString(&c.Transcription.Provider, "MINUTED_TRANSCRIPTION_PROVIDER")
	setString(&c.Transcription.Endpoint, "MINUTED_TRANSCRIPTION_ENDPOINT")
	setString(&c.Transcription.BaseURL, "MINUTED_TRANSCRIPTION_BASE_URL")
	setString(&c.Transcription.APIKey, "MINUTED_TRANSCRIPTION_API_KEY")
	setString(&c.Transcription.APIHost, "MINUTED_TRANSCRIPTION_API_HOST")
	setString(&c.Transcription.Language, "MINUTED_TRANSCRIPTION_LANGUAGE")

	setString(&c.Insight.APIKey, "MINUTED_GEMINI_API_KEY")
	setString(&c.Insight.Model, "MINUTED_GEMINI_MODEL")

	setBool(&c.Calendar.Enabled, "MINUTED_CALENDAR_ENABLED")
	setString(&c.Calendar.AccessToken, "MINUTED_CALENDAR_TOKEN")
	setString(&c.Calendar.CalendarID, "MINUTED_CALENDAR_ID")
	setString(&c.Calendar.Timezone, "MINUTED_CALENDAR_TIMEZONE")
	if v := os.Getenv("MINUTED_CALENDAR_ATTENDEES"); v != "" {
		c.Calendar.Attendees = splitAndTrim(v)
	}

	setInt(&c.Workers.Count, "MINUTED_WORKER_COUNT")
	setString(&c.Queue.Name, "MINUTED_QUEUE_NAME")
	setInt(&c.Queue.MaxRetries, "MINUTED_QUEUE_MAX_RETRIES")
}

// Validate checks for settings that would fail at runtime.
func (c *Config) Validate() error {
	switch c.Transcription.Provider {
	case "multipart", "polling":
	default:
		return fmt.Errorf("unknown transcription provider %q", c.Transcription.Provider)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}

	if c.Workers.Count <= 0 {
		return fmt.Errorf("worker count must be positive, got %d", c.Workers.Count)
	}

	if c.Calendar.Enabled {
		for _, a := range c.Calendar.Attendees {
			at := strings.Index(a, "@")
			if at <= 0 || !strings.Contains(a[at:], ".") {
				return fmt.Errorf("calendar attendee %q is not a valid email", a)
			}
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func splitAndTrim(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
