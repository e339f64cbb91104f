package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gyeh/hccscore/internal/exitcode"
	"github.com/gyeh/hccscore/internal/model"
	"github.com/gyeh/hccscore/internal/output"
	"github.com/gyeh/hccscore/internal/parquetio"
)

var (
	exportRun string
	exportOut string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a run's rows to NDJSON or Parquet",
	Long: "Writes the persisted rows of a run: member scores for a scoring run, member " +
		"comparisons for a comparison batch, drivers for a decomposition batch. The format " +
		"follows --out: .ndjson, .ndjson.gz, or .parquet (scoring runs only).",
	RunE: runExport,
}

func init() {
	f := exportCmd.Flags()
	f.StringVar(&exportRun, "run", "", "Run or batch id (required)")
	f.StringVar(&exportOut, "out", "", "Output path (required)")
	_ = exportCmd.MarkFlagRequired("run")
	_ = exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if cfg.DSN == "" {
		usageFail("--dsn or HCC_DSN is required", nil)
	}
	e := newEnv(ctx, true)
	defer e.close()
	log := e.log.With().Str("run_id", exportRun).Logger()
	st := e.deps.Store

	run, err := st.GetRun(ctx, exportRun)
	if err != nil {
		log.Error().Err(err).Msg("run lookup failed")
		e.close()
		os.Exit(exitcode.AnalysisError)
	}
	parquetOut := strings.EqualFold(filepath.Ext(exportOut), ".parquet")
	if parquetOut && run.AnalysisType != model.AnalysisScoring {
		log.Error().Str("analysis_type", string(run.AnalysisType)).Msg("parquet export is only available for scoring runs")
		e.close()
		os.Exit(exitcode.UsageError)
	}

	var n int64
	switch run.AnalysisType {
	case model.AnalysisScoring:
		recs, lerr := st.LoadScores(ctx, exportRun)
		if err = lerr; err == nil {
			if parquetOut {
				err = parquetio.WriteScores(exportOut, recs)
				n = int64(len(recs))
			} else {
				n, err = output.WriteFile(exportOut, recs)
			}
		}
	case model.AnalysisComparison:
		var recs []model.ComparisonRecord
		if recs, err = st.LoadComparison(ctx, exportRun); err == nil {
			n, err = output.WriteFile(exportOut, recs)
		}
	case model.AnalysisDecomposition:
		var drivers []model.DecompositionDriver
		if drivers, err = st.LoadDrivers(ctx, exportRun); err == nil {
			n, err = output.WriteFile(exportOut, drivers)
		}
	default:
		err = fmt.Errorf("unknown analysis type %q", run.AnalysisType)
	}
	if err != nil {
		log.Error().Err(err).Msg("export failed")
		e.close()
		os.Exit(exitcode.CopyError)
	}

	log.Info().
		Str("analysis_type", string(run.AnalysisType)).
		Str("path", exportOut).
		Int64("rows", n).
		Msg("export complete")
	return nil
}
