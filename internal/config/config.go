package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Coverage CoverageConfig `yaml:"coverage" mapstructure:"coverage"`
	Provider ProviderConfig `yaml:"provider" mapstructure:"provider"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// CoverageConfig configures the coverage analysis pipeline.
type CoverageConfig struct {
	RadiusMeters  float64 `yaml:"radius_meters" mapstructure:"radius_meters"`
	Threshold     int     `yaml:"threshold" mapstructure:"threshold"`
	Workers       int     `yaml:"workers" mapstructure:"workers"`
	ScratchDir    string  `yaml:"scratch_dir" mapstructure:"scratch_dir"`
	CategoryField string  `yaml:"category_field" mapstructure:"category_field"`
}

// ProviderConfig selects and configures the geometry backend.
type ProviderConfig struct {
	Backend     string `yaml:"backend" mapstructure:"backend"` // "geos" or "postgis"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// StoreConfig configures the run/diagnostics database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the read-only HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("COVERAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("coverage.radius_meters", 500.0)
	v.SetDefault("coverage.threshold", 3)
	v.SetDefault("coverage.workers", 0)
	v.SetDefault("coverage.scratch_dir", "/tmp/coverage-scratch")
	v.SetDefault("coverage.category_field", "dataset")
	v.SetDefault("provider.backend", "geos")
	v.SetDefault("store.path", "coverage.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
