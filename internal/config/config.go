package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	yaml "gopkg.in/yaml.v3"

	"github.com/park285/fumen-sieve/internal/records"
	"github.com/park285/fumen-sieve/internal/sieve"
)

const DefaultReferencePrefix = "http://fumen.zui.jp/?"

type AppConfig struct {
	Source string `yaml:"source"`

	Before string `yaml:"before"`
	After  string `yaml:"after"`
	Pivot  string `yaml:"pivot"`

	// MaxMetric < 0 means unset.
	MaxMetric       int    `yaml:"max_metric"`
	ReferencePrefix string `yaml:"reference_prefix"`
	ReferenceColumn int    `yaml:"reference_column"`
	MetricColumn    int    `yaml:"metric_column"`

	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`
	RenderDir   string `yaml:"render_dir"`
	HTTPAddr    string `yaml:"http_addr"`
}

func Default() *AppConfig {
	return &AppConfig{
		Pivot:           "T",
		MaxMetric:       -1,
		ReferencePrefix: DefaultReferencePrefix,
		ReferenceColumn: records.DefaultReferenceColumn,
		MetricColumn:    records.DefaultMetricColumn,
		HTTPAddr:        ":8080",
	}
}

// Load applies defaults, then the YAML file at path (if any), then FUMEN_* environment
// variables. Flags are applied by the caller afterwards.
func Load(path string) (*AppConfig, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *AppConfig) {
	setString(&cfg.Source, "FUMEN_SOURCE")
	setString(&cfg.Before, "FUMEN_BEFORE")
	setString(&cfg.After, "FUMEN_AFTER")
	setString(&cfg.Pivot, "FUMEN_PIVOT")
	setString(&cfg.ReferencePrefix, "FUMEN_REFERENCE_PREFIX")
	setString(&cfg.RedisURL, "REDIS_URL")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.RenderDir, "FUMEN_RENDER_DIR")
	setString(&cfg.HTTPAddr, "FUMEN_HTTP_ADDR")

	if v := strings.TrimSpace(os.Getenv("FUMEN_MAX_METRIC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MaxMetric = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("FUMEN_METRIC_COLUMN")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MetricColumn = n
		}
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// Groups parses the configured letter groups.
func (c *AppConfig) Groups() (sieve.Groups, error) {
	return sieve.ParseGroups(c.Before, c.After, c.Pivot)
}

// ValidateFilter checks what the batch filter needs.
func (c *AppConfig) ValidateFilter() error {
	if strings.TrimSpace(c.Source) == "" {
		return errors.New("source is required")
	}
	if c.MaxMetric < 0 {
		return errors.New("max metric is required")
	}
	if c.ReferenceColumn < 0 || c.MetricColumn < 0 {
		return errors.New("column indexes must be non-negative")
	}
	if _, err := c.Groups(); err != nil {
		return err
	}
	return nil
}

// ValidateServe checks what the HTTP service needs.
func (c *AppConfig) ValidateServe() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return errors.New("http addr is required")
	}
	if _, err := sieve.ParseGroups("", "", c.Pivot); err != nil {
		return err
	}
	return nil
}
