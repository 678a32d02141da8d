// Package config loads application settings from config.yaml and BOQ_*
// environment variables.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"boqimport/services"
)

// Config holds the full application configuration.
type Config struct {
	Parser ParserConfig `yaml:"parser" mapstructure:"parser"`
	Import ImportConfig `yaml:"import" mapstructure:"import"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// ParserConfig tunes header detection and item checks.
type ParserConfig struct {
	HeaderScanLimit       int     `yaml:"header_scan_limit" mapstructure:"header_scan_limit"`
	MinHeaderConfidence   float64 `yaml:"min_header_confidence" mapstructure:"min_header_confidence"`
	ManualReviewThreshold float64 `yaml:"manual_review_threshold" mapstructure:"manual_review_threshold"`
	AmountTolerance       float64 `yaml:"amount_tolerance" mapstructure:"amount_tolerance"`
	DefaultCurrency       string  `yaml:"default_currency" mapstructure:"default_currency"`
}

// ImportConfig configures the upload endpoint and the import store.
type ImportConfig struct {
	MaxUploadMB int `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
	BatchSize   int `yaml:"batch_size" mapstructure:"batch_size"`
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
	v.SetEnvPrefix("BOQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("parser.header_scan_limit", services.DefaultHeaderScanLimit)
	v.SetDefault("parser.min_header_confidence", services.DefaultMinHeaderConfidence)
	v.SetDefault("parser.manual_review_threshold", services.DefaultManualReviewThreshold)
	v.SetDefault("parser.amount_tolerance", services.DefaultAmountTolerance)
	v.SetDefault("parser.default_currency", services.DefaultCurrency)
	v.SetDefault("import.max_upload_mb", 10)
	v.SetDefault("import.batch_size", 100)
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

// Validate rejects settings the parser cannot work with.
func (c *Config) Validate() error {
	p := c.Parser
	if p.HeaderScanLimit < 1 {
		return eris.Errorf("config: parser.header_scan_limit must be at least 1, got %d", p.HeaderScanLimit)
	}
	if p.MinHeaderConfidence <= 0 || p.MinHeaderConfidence > 1 {
		return eris.Errorf("config: parser.min_header_confidence must be in (0, 1], got %v", p.MinHeaderConfidence)
	}
	if p.ManualReviewThreshold <= 0 || p.ManualReviewThreshold > 1 {
		return eris.Errorf("config: parser.manual_review_threshold must be in (0, 1], got %v", p.ManualReviewThreshold)
	}
	if p.AmountTolerance <= 0 || p.AmountTolerance >= 1 {
		return eris.Errorf("config: parser.amount_tolerance must be in (0, 1), got %v", p.AmountTolerance)
	}
	if len(strings.TrimSpace(p.DefaultCurrency)) != 3 {
		return eris.Errorf("config: parser.default_currency must be an ISO 4217 code, got %q", p.DefaultCurrency)
	}
	if c.Import.MaxUploadMB < 1 {
		return eris.Errorf("config: import.max_upload_mb must be at least 1, got %d", c.Import.MaxUploadMB)
	}
	if c.Import.BatchSize < 1 {
		return eris.Errorf("config: import.batch_size must be at least 1, got %d", c.Import.BatchSize)
	}
	return nil
}

// Options converts the parser settings into services.Options.
func (p ParserConfig) Options() services.Options {
	return services.Options{
		HeaderScanLimit:       p.HeaderScanLimit,
		MinHeaderConfidence:   p.MinHeaderConfidence,
		ManualReviewThreshold: p.ManualReviewThreshold,
		AmountTolerance:       p.AmountTolerance,
		DefaultCurrency:       strings.ToUpper(strings.TrimSpace(p.DefaultCurrency)),
	}
}

// MaxUploadBytes is the upload limit in bytes.
func (c ImportConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
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
