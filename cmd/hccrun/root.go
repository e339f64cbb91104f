package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/hccscore/internal/config"
	"github.com/gyeh/hccscore/internal/exitcode"
)

// cfg is the effective configuration: defaults, then --config file, then
// HCC_* env, then explicitly set flags.
var cfg = config.New()

var (
	configPath string
	flagVals   = config.New()
)

var rootCmd = &cobra.Command{
	Use:   "hccrun",
	Short: "HHS-HCC risk scoring, comparison and decomposition",
	Long: "Scores member populations against versioned HHS-HCC reference bundles, persists " +
		"auditable per-member results to Postgres, and compares or decomposes runs.",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "YAML config file")
	pf.StringVar(&flagVals.DSN, "dsn", "", "Postgres connection string (or set HCC_DSN)")
	pf.StringVar(&flagVals.LogFormat, "log-format", flagVals.LogFormat, "Log format: text or json")
	pf.StringVar(&flagVals.LogLevel, "log-level", flagVals.LogLevel, "Log level: debug, info, warn, error")
	pf.StringVar(&flagVals.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile after the command")
	pf.BoolVar(&flagVals.Progress, "progress", false, "Show progress bars instead of periodic log lines")
}

// scoringFlags registers the flags shared by commands that score members.
func scoringFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&flagVals.ModelVersion, "model-version", "", "Reference bundle version (required)")
	f.StringVar(&flagVals.BundleDir, "bundle-dir", flagVals.BundleDir, "Directory holding one bundle per model version")
	f.StringVar(&flagVals.AgeBasisDate, "age-basis-date", "", "Date ages are computed at (YYYY-MM-DD); default is the model-year end")
	f.StringVar(&flagVals.GroupingPolicy, "grouping-policy", "", "replace or additive; default is the bundle's policy")
	f.StringVar(&flagVals.UnmappedPolicy, "unmapped-policy", flagVals.UnmappedPolicy, "ignore or flag")
	f.StringVar(&flagVals.AmbiguityPolicy, "ambiguity-policy", flagVals.AmbiguityPolicy, "fatal or flag")
	f.BoolVar(&flagVals.PrefixFallback, "prefix-fallback", false, "Map unknown diagnoses by their longest known prefix")
	f.StringVar(&flagVals.InvalidSexPolicy, "invalid-sex", flagVals.InvalidSexPolicy, "skip or coerce")
	f.StringVar(&flagVals.CoerceSex, "coerce-sex", "", "Sex assigned under --invalid-sex=coerce (M or F)")
	f.IntVar(&flagVals.Workers, "workers", flagVals.Workers, "Concurrent scoring workers")
}

// analysisFlags registers the decomposition settings.
func analysisFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&flagVals.PopulationMode, "population", flagVals.PopulationMode, "intersection, baseline_population or scenario_population")
	f.StringVar(&flagVals.DecompositionMethod, "method", flagVals.DecompositionMethod, "sequential or marginal")
	f.StringVar(&flagVals.Metric, "metric", flagVals.Metric, "mean, sum or member_month_mean")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(exitcode.UsageError)
	}

	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			apply()
		}
	}
	set("dsn", func() { loaded.DSN = flagVals.DSN })
	set("log-format", func() { loaded.LogFormat = flagVals.LogFormat })
	set("log-level", func() { loaded.LogLevel = flagVals.LogLevel })
	set("metrics-file", func() { loaded.MetricsFile = flagVals.MetricsFile })
	set("progress", func() { loaded.Progress = flagVals.Progress })
	set("model-version", func() { loaded.ModelVersion = flagVals.ModelVersion })
	set("bundle-dir", func() { loaded.BundleDir = flagVals.BundleDir })
	set("age-basis-date", func() { loaded.AgeBasisDate = flagVals.AgeBasisDate })
	set("grouping-policy", func() { loaded.GroupingPolicy = flagVals.GroupingPolicy })
	set("unmapped-policy", func() { loaded.UnmappedPolicy = flagVals.UnmappedPolicy })
	set("ambiguity-policy", func() { loaded.AmbiguityPolicy = flagVals.AmbiguityPolicy })
	set("prefix-fallback", func() { loaded.PrefixFallback = flagVals.PrefixFallback })
	set("invalid-sex", func() { loaded.InvalidSexPolicy = flagVals.InvalidSexPolicy })
	set("coerce-sex", func() { loaded.CoerceSex = flagVals.CoerceSex })
	set("workers", func() { loaded.Workers = flagVals.Workers })
	set("population", func() { loaded.PopulationMode = flagVals.PopulationMode })
	set("method", func() { loaded.DecompositionMethod = flagVals.DecompositionMethod })
	set("metric", func() { loaded.Metric = flagVals.Metric })
	set("tolerance", func() { loaded.Tolerance = flagVals.Tolerance })

	cfg = loaded
	return nil
}
