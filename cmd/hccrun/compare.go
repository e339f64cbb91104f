package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/hccscore/internal/batch"
	"github.com/gyeh/hccscore/internal/exitcode"
	"github.com/gyeh/hccscore/internal/output"
)

var (
	compareJob batch.CompareJob
	compareOut string
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare two scoring runs member by member",
	RunE:  runCompare,
}

func init() {
	f := compareCmd.Flags()
	f.StringVar(&compareJob.RunA, "run-a", "", "Reference run id (required)")
	f.StringVar(&compareJob.RunB, "run-b", "", "Comparison run id (required)")
	f.Int64Var(&compareJob.GroupID, "group-id", 0, "Group for the comparison batch (default: run A's group)")
	f.StringVar(&compareJob.RunDescription, "description", "", "Batch description")
	f.StringVar(&compareJob.TriggerSource, "trigger", "cli", "Trigger source recorded with the batch")
	f.StringVar(&compareOut, "out", "", "Also write the comparison as NDJSON (.gz to compress)")
	_ = compareCmd.MarkFlagRequired("run-a")
	_ = compareCmd.MarkFlagRequired("run-b")
	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if cfg.DSN == "" {
		usageFail("--dsn or HCC_DSN is required", nil)
	}
	e := newEnv(ctx, true)
	defer e.close()

	res, err := batch.CompareRuns(ctx, e.deps, cfg, compareJob)
	if err != nil {
		e.close()
		fail(e.log, "comparison", err)
	}

	if compareOut != "" {
		if _, err := output.WriteFile(compareOut, res.Records); err != nil {
			e.log.Error().Err(err).Str("path", compareOut).Msg("export failed")
			e.close()
			os.Exit(exitcode.CopyError)
		}
	}

	s := res.Summary
	fmt.Printf("Comparison %s: %d matched (%d changed), %d only in A, %d only in B, mean delta %+.4f\n",
		res.BatchID, s.Matched, s.Changed, s.AOnly, s.BOnly, s.MeanDelta)
	return nil
}
