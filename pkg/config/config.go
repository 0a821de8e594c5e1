package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pyhub-apps/pdftext-golang/pkg/logging"
)

// Loader engines
const (
	LoaderNative = "native"
	LoaderPDFCPU = "pdfcpu"
	LoaderAuto   = "auto"
)

// Fallback engines
const (
	FallbackNone       = "none"
	FallbackLedongthuc = "ledongthuc"
	FallbackDslipak    = "dslipak"
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid configuration")

// Config represents the main configuration
type Config struct {
	Extract ExtractConfig `yaml:"extract"`
	Loader  LoaderConfig  `yaml:"loader"`
	Log     LogConfig     `yaml:"log"`
	S3      S3Config      `yaml:"s3"`
}

// ExtractConfig contains the page extraction settings
type ExtractConfig struct {
	Workers           int           `yaml:"workers"`             // 0 means one per CPU
	PageTimeout       time.Duration `yaml:"page_timeout"`        // 0 disables the deadline
	Fallback          string        `yaml:"fallback"`            // "none", "ledongthuc" or "dslipak"
	Separator         string        `yaml:"separator"`           // joins lines and pages
	MaxReportedErrors int           `yaml:"max_reported_errors"` // page errors logged in full
}

// LoaderConfig selects how the object graph is built
type LoaderConfig struct {
	Engine   string `yaml:"engine"` // "native", "pdfcpu" or "auto"
	Password string `yaml:"password"`
}

// LogConfig contains logger configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// S3Config configures s3:// sources and destinations
type S3Config struct {
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// Load loads configuration from a YAML file. An empty path yields the
// defaults. Environment variables override the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Extract: ExtractConfig{
			Fallback:          FallbackNone,
			Separator:         " ",
			MaxReportedErrors: 10,
		},
		Loader: LoaderConfig{Engine: LoaderAuto},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("PDFTEXT_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: PDFTEXT_WORKERS=%q: %v", ErrInvalid, v, err)
		}
		cfg.Extract.Workers = n
	}
	if v := os.Getenv("PDFTEXT_PAGE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: PDFTEXT_PAGE_TIMEOUT=%q: %v", ErrInvalid, v, err)
		}
		cfg.Extract.PageTimeout = d
	}
	if v := os.Getenv("PDFTEXT_FALLBACK"); v != "" {
		cfg.Extract.Fallback = v
	}
	if v := os.Getenv("PDFTEXT_LOADER"); v != "" {
		cfg.Loader.Engine = v
	}
	if v := os.Getenv("PDFTEXT_PASSWORD"); v != "" {
		cfg.Loader.Password = v
	}
	if v := os.Getenv("PDFTEXT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("PDFTEXT_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("PDFTEXT_S3_REGION"); v != "" {
		cfg.S3.Region = v
	}
	if v := os.Getenv("PDFTEXT_S3_ENDPOINT"); v != "" {
		cfg.S3.Endpoint = v
	}
	return nil
}

// applyDefaults fills settings a config file left empty
func applyDefaults(cfg *Config) {
	if cfg.Extract.Fallback == "" {
		cfg.Extract.Fallback = FallbackNone
	}
	if cfg.Loader.Engine == "" {
		cfg.Loader.Engine = LoaderAuto
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// Validate reports the first setting that cannot be used
func (c *Config) Validate() error {
	if c.Extract.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalid, c.Extract.Workers)
	}
	if c.Extract.PageTimeout < 0 {
		return fmt.Errorf("%w: page_timeout must not be negative, got %s", ErrInvalid, c.Extract.PageTimeout)
	}
	if c.Extract.MaxReportedErrors < 0 {
		return fmt.Errorf("%w: max_reported_errors must not be negative, got %d", ErrInvalid, c.Extract.MaxReportedErrors)
	}

	switch c.Extract.Fallback {
	case FallbackNone, FallbackLedongthuc, FallbackDslipak:
	default:
		return fmt.Errorf("%w: unknown fallback %q", ErrInvalid, c.Extract.Fallback)
	}

	switch c.Loader.Engine {
	case LoaderNative, LoaderPDFCPU, LoaderAuto:
	default:
		return fmt.Errorf("%w: unknown loader %q", ErrInvalid, c.Loader.Engine)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("%w: unknown log format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}
