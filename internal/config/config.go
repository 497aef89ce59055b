package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port     string         `mapstructure:"port" validate:"required,numeric"`
	GinMode  string         `mapstructure:"gin_mode" validate:"required,oneof=debug release test"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	TestMode bool           `mapstructure:"test_mode"`
}

type DatabaseConfig struct {
	// URL is a postgres DSN, "sqlite:<path>" or empty for in-memory sqlite.
	URL         string        `mapstructure:"url"`
	MaxOpen     int           `mapstructure:"max_open" validate:"min=1"`
	MaxIdle     int           `mapstructure:"max_idle" validate:"min=0"`
	MaxLifetime time.Duration `mapstructure:"max_lifetime"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load reads configuration from the environment (FIELDOPS_ prefix), an
// optional config.yaml and defaults, in that order of priority.
func Load() (*Config, error) {
	return LoadFrom("")
}

func LoadFrom(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/fieldops")
	}

	v.SetEnvPrefix("FIELDOPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// DATABASE_URL and PORT are honoured without prefix for container platforms
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		v.Set("database.url", dbURL)
	}
	if port := os.Getenv("PORT"); port != "" {
		v.Set("port", port)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	SetDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// AutomaticEnv only resolves keys viper already knows about.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"port", "gin_mode", "test_mode",
		"database.url", "database.max_open", "database.max_idle", "database.max_lifetime",
		"jwt.secret",
		"logging.level", "logging.format",
		"tracing.enabled", "tracing.service_name",
		"metrics.enabled",
	} {
		_ = v.BindEnv(key)
	}
}

func SetDefaults(cfg *Config) {
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.GinMode == "" {
		cfg.GinMode = "debug"
	}
	if cfg.Database.MaxOpen == 0 {
		cfg.Database.MaxOpen = 25
	}
	if cfg.Database.MaxIdle == 0 {
		cfg.Database.MaxIdle = 5
	}
	if cfg.Database.MaxLifetime == 0 {
		cfg.Database.MaxLifetime = 5 * time.Minute
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "fieldops"
	}
}

func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		if validationErrs, ok := err.(validator.ValidationErrors); ok {
			var messages []string
			for _, e := range validationErrs {
				messages = append(messages, fmt.Sprintf("field '%s' failed validation: %s (value: '%v')", e.Namespace(), e.Tag(), e.Value()))
			}
			return fmt.Errorf("%s", strings.Join(messages, "; "))
		}
		return err
	}
	if !cfg.TestMode && cfg.JWT.Secret == "" {
		return fmt.Errorf("field 'Config.JWT.Secret' is required unless test mode is enabled")
	}
	return nil
}
