// Package config centralises configuration parsing for the sync tool.
//
// Values come from the process environment, then from an optional dotenv file, then from
// defaults suited to a local ActivityWatch install.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

const (
	SourceGarmin  = "garmin"
	SourceFixture = "fixture"

	SinkActivityWatch = "activitywatch"
	SinkKafka         = "kafka"
	SinkPostgres      = "postgres"

	StateFile     = "file"
	StatePostgres = "postgres"
)

// Config captures runtime configuration values.
type Config struct {
	GarminEmail     string
	GarminPassword  string
	GarminBaseURL   string
	GarminAuthURL   string
	GarminRateLimit float64 // requests per second, <= 0 disables limiting

	Source     string
	FixtureDir string

	Sink           string
	AWHost         string
	AWPort         int
	AWClientName   string
	BucketName     string
	BucketCategory string

	DaysBack     int
	StateBackend string
	StateFile    string

	PostgresURL       string
	KafkaBrokers      []string
	KafkaTopicPrefix  string
	SchemaRegistryURL string // empty disables Confluent framing

	HTTPTimeout  time.Duration
	SyncInterval time.Duration
	HTTPAddress  string
	JWTSecret    string
	JWTIssuer    string

	LogLevel string
	LogFile  string

	// malformed values seen by Load; each fell back to its default.
	invalid []error
}

// DefaultStateFile returns sync_state.json next to the running executable,
// or in the working directory when the executable path is unknown.
func DefaultStateFile() string {
	return besideExecutable("sync_state.json")
}

// DefaultEnvFile returns .env next to the running executable.
func DefaultEnvFile() string {
	return besideExecutable(".env")
}

func besideExecutable(name string) string {
	exe, err := os.Executable()
	if err != nil {
		return name
	}
	return filepath.Join(filepath.Dir(exe), name)
}

// Load reads the environment and the optional dotenv file at envFile. A missing file is not an error.
func Load(envFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("read %s: %w", envFile, err)
			}
		}
	}

	var invalid []error
	cfg := Config{
		GarminEmail:     getEnv(v, "GARMIN_EMAIL"),
		GarminPassword:  getEnv(v, "GARMIN_PASSWORD"),
		GarminBaseURL:   getEnv(v, "GARMIN_BASE_URL"),
		GarminAuthURL:   getEnv(v, "GARMIN_AUTH_URL"),
		GarminRateLimit: getFloatEnv(v, "GARMIN_RATE_LIMIT", &invalid),

		Source:     strings.ToLower(getEnv(v, "SOURCE")),
		FixtureDir: getEnv(v, "FIXTURE_DIR"),

		Sink:           strings.ToLower(getEnv(v, "SINK")),
		AWHost:         getEnv(v, "AW_HOST"),
		AWPort:         getIntEnv(v, "AW_PORT", &invalid),
		AWClientName:   getEnv(v, "AW_CLIENT_NAME"),
		BucketName:     getEnv(v, "BUCKET_NAME"),
		BucketCategory: getEnv(v, "BUCKET_CATEGORY"),

		DaysBack:     getIntEnv(v, "DAYS_BACK", &invalid),
		StateBackend: strings.ToLower(getEnv(v, "STATE_BACKEND")),
		StateFile:    getEnv(v, "STATE_FILE"),

		PostgresURL:       getEnv(v, "POSTGRES_URL"),
		KafkaBrokers:      splitAndTrim(getEnv(v, "KAFKA_BROKERS")),
		KafkaTopicPrefix:  getEnv(v, "KAFKA_TOPIC_PREFIX"),
		SchemaRegistryURL: getEnv(v, "SCHEMA_REGISTRY_URL"),

		HTTPTimeout:  getDurationEnv(v, "HTTP_TIMEOUT", &invalid),
		SyncInterval: getDurationEnv(v, "SYNC_INTERVAL", &invalid),
		HTTPAddress:  getEnv(v, "HTTP_ADDRESS"),
		JWTSecret:    getEnv(v, "JWT_SECRET"),
		JWTIssuer:    getEnv(v, "JWT_ISSUER"),

		LogLevel: getEnv(v, "LOG_LEVEL"),
		LogFile:  getEnv(v, "LOG_FILE"),
	}
	cfg.invalid = invalid
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetDefault("SOURCE", SourceGarmin)
	v.SetDefault("SINK", SinkActivityWatch)
	v.SetDefault("AW_HOST", "localhost")
	v.SetDefault("AW_CLIENT_NAME", "aw-garmin")
	v.SetDefault("BUCKET_NAME", "garmin-health")
	v.SetDefault("BUCKET_CATEGORY", "health")
	v.SetDefault("STATE_BACKEND", StateFile)
	v.SetDefault("STATE_FILE", DefaultStateFile())
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_TOPIC_PREFIX", "aw.")
	v.SetDefault("HTTP_ADDRESS", ":8089")
	v.SetDefault("JWT_SECRET", "dev-secret-change-me")
	v.SetDefault("JWT_ISSUER", "aw-garmin")
	v.SetDefault("LOG_LEVEL", "info")
}

func getEnv(v *viper.Viper, key string) string {
	return strings.TrimSpace(v.GetString(key))
}

// defaults holds the typed fallbacks for numeric keys; setDefaults registers them with viper.
var defaults = map[string]any{
	"GARMIN_RATE_LIMIT": 2.0,
	"AW_PORT":           5600,
	"DAYS_BACK":         2,
	"HTTP_TIMEOUT":      30 * time.Second,
	"SYNC_INTERVAL":     15 * time.Minute,
}

func getIntEnv(v *viper.Viper, key string, invalid *[]error) int {
	value, err := cast.ToIntE(v.Get(key))
	if err != nil {
		*invalid = append(*invalid, fmt.Errorf("%s=%q is not an integer", key, v.GetString(key)))
		return defaults[key].(int)
	}
	return value
}

func getFloatEnv(v *viper.Viper, key string, invalid *[]error) float64 {
	value, err := cast.ToFloat64E(v.Get(key))
	if err != nil {
		*invalid = append(*invalid, fmt.Errorf("%s=%q is not a number", key, v.GetString(key)))
		return defaults[key].(float64)
	}
	return value
}

func getDurationEnv(v *viper.Viper, key string, invalid *[]error) time.Duration {
	value, err := cast.ToDurationE(v.Get(key))
	if err != nil {
		*invalid = append(*invalid, fmt.Errorf("%s=%q is not a duration", key, v.GetString(key)))
		return defaults[key].(time.Duration)
	}
	return value
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Validate reports every missing credential and invalid combination at once.
func (c Config) Validate() error {
	errs := append([]error(nil), c.invalid...)
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	switch c.Source {
	case SourceGarmin:
		if c.GarminEmail == "" || c.GarminPassword == "" {
			add("GARMIN_EMAIL and GARMIN_PASSWORD must be set")
		}
	case SourceFixture:
		if c.FixtureDir == "" {
			add("FIXTURE_DIR must be set for the fixture source")
		}
	default:
		add("unknown SOURCE %q", c.Source)
	}

	switch c.Sink {
	case SinkActivityWatch:
		if c.AWHost == "" {
			add("AW_HOST must be set")
		}
		if c.AWPort <= 0 || c.AWPort > 65535 {
			add("AW_PORT %d out of range", c.AWPort)
		}
	case SinkKafka:
		if len(c.KafkaBrokers) == 0 {
			add("KAFKA_BROKERS must be set for the kafka sink")
		}
	case SinkPostgres:
		if c.PostgresURL == "" {
			add("POSTGRES_URL must be set for the postgres sink")
		}
	default:
		add("unknown SINK %q", c.Sink)
	}

	switch c.StateBackend {
	case StateFile:
		if c.StateFile == "" {
			add("STATE_FILE must be set")
		}
	case StatePostgres:
		if c.PostgresURL == "" {
			add("POSTGRES_URL must be set for the postgres state backend")
		}
	default:
		add("unknown STATE_BACKEND %q", c.StateBackend)
	}

	if c.BucketName == "" {
		add("BUCKET_NAME must be set")
	}
	if c.DaysBack < 0 {
		add("DAYS_BACK must be >= 0, got %d", c.DaysBack)
	}
	if c.HTTPTimeout <= 0 {
		add("HTTP_TIMEOUT must be positive")
	}
	if c.SyncInterval <= 0 {
		add("SYNC_INTERVAL must be positive")
	}
	return errors.Join(errs...)
}
