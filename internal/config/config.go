package config

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/gyeh/hccscore/internal/model"
	"github.com/gyeh/hccscore/internal/normalize"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override, e.g. HCC_MODEL_VERSION.
const EnvPrefix = "HCC_"

// Config holds all runtime configuration for an hccrun invocation.
type Config struct {
	DSN       string `koanf:"dsn"`
	LogFormat string `koanf:"log_format"` // "text" or "json"
	LogLevel  string `koanf:"log_level"`

	ModelVersion string `koanf:"model_version"`
	BundleDir    string `koanf:"bundle_dir"`
	AgeBasisDate string `koanf:"age_basis_date"` // YYYY-MM-DD; empty means model-year end

	GroupingPolicy  string `koanf:"grouping_replacement_policy"` // empty defers to the bundle
	UnmappedPolicy  string `koanf:"unmapped_diagnosis_policy"`
	AmbiguityPolicy string `koanf:"ambiguous_grouping_policy"`
	PrefixFallback  bool   `koanf:"diagnosis_prefix_fallback"`

	InvalidSexPolicy string `koanf:"invalid_sex_policy"`
	CoerceSex        string `koanf:"coerce_sex"`

	PopulationMode      string  `koanf:"population_mode"`
	DecompositionMethod string  `koanf:"decomposition_method"`
	Metric              string  `koanf:"metric"`
	Tolerance           float64 `koanf:"cross_validation_tolerance"`

	Workers     int    `koanf:"workers"`
	MetricsFile string `koanf:"metrics_file"` // Prometheus textfile written after a run
	Progress    bool   `koanf:"progress"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogFormat:           "text",
		LogLevel:            "info",
		BundleDir:           "bundles",
		UnmappedPolicy:      string(model.UnmappedFlag),
		AmbiguityPolicy:     string(model.AmbiguityFatal),
		InvalidSexPolicy:    string(model.SexSkip),
		PopulationMode:      string(model.PopulationIntersection),
		DecompositionMethod: string(model.MethodSequential),
		Metric:              string(model.MetricMean),
		Tolerance:           0.01,
		Workers:             runtime.NumCPU(),
	}
}

// Load builds a Config by layering defaults, an optional YAML file and
// HCC_* environment variables, lowest precedence first. Command-line flags
// are applied on top by the caller.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks required fields and policy names.
func (c *Config) Validate() error {
	if c.ModelVersion == "" {
		return fmt.Errorf("--model-version is required")
	}
	if _, err := model.ParseGroupingPolicy(c.GroupingPolicy); err != nil {
		return err
	}
	if _, err := model.ParseUnmappedPolicy(c.UnmappedPolicy); err != nil {
		return err
	}
	if _, err := model.ParseAmbiguityPolicy(c.AmbiguityPolicy); err != nil {
		return err
	}
	sp, err := model.ParseSexPolicy(c.InvalidSexPolicy)
	if err != nil {
		return err
	}
	if sp == model.SexCoerce {
		cs := c.CoerceSex
		if _, ok := normalize.Sex(&cs); !ok {
			return fmt.Errorf("coerce_sex must be M or F, got %q", c.CoerceSex)
		}
	}
	if _, err := c.BasisDate(); err != nil {
		return err
	}
	if math.IsNaN(c.Tolerance) || math.IsInf(c.Tolerance, 0) || c.Tolerance < 0 {
		return fmt.Errorf("cross_validation_tolerance must be a finite number >= 0, got %v", c.Tolerance)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}
	if c.BundleDir != "" {
		if _, err := os.Stat(c.BundleDir); err != nil {
			return fmt.Errorf("bundle dir not accessible: %w", err)
		}
	}
	return nil
}

// ValidateWithDSN checks Validate plus the database DSN.
func (c *Config) ValidateWithDSN() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.DSN == "" {
		return fmt.Errorf("--dsn or HCC_DSN is required")
	}
	return nil
}

// ValidateAnalysis checks the comparison and decomposition settings.
func (c *Config) ValidateAnalysis() error {
	if _, err := model.ParsePopulationMode(c.PopulationMode); err != nil {
		return err
	}
	if _, err := model.ParseDecompositionMethod(c.DecompositionMethod); err != nil {
		return err
	}
	if _, err := model.ParseMetric(c.Metric); err != nil {
		return err
	}
	if c.DSN == "" {
		return fmt.Errorf("--dsn or HCC_DSN is required")
	}
	return nil
}

// BasisDate parses AgeBasisDate. A zero time means "use the model-year end".
func (c *Config) BasisDate() (time.Time, error) {
	if c.AgeBasisDate == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, c.AgeBasisDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("age_basis_date: %w", err)
	}
	return t, nil
}

// Redacted returns the settings recorded in the run registry; the DSN is left out.
func (c *Config) Redacted() map[string]any {
	return map[string]any{
		"model_version":               c.ModelVersion,
		"age_basis_date":              c.AgeBasisDate,
		"grouping_replacement_policy": c.GroupingPolicy,
		"unmapped_diagnosis_policy":   c.UnmappedPolicy,
		"ambiguous_grouping_policy":   c.AmbiguityPolicy,
		"diagnosis_prefix_fallback":   c.PrefixFallback,
		"invalid_sex_policy":          c.InvalidSexPolicy,
		"population_mode":             c.PopulationMode,
		"decomposition_method":        c.DecompositionMethod,
		"metric":                      c.Metric,
		"cross_validation_tolerance":  c.Tolerance,
		"workers":                     c.Workers,
	}
}
