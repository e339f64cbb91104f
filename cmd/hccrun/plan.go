package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/gyeh/hccscore/internal/batch"
	"github.com/gyeh/hccscore/internal/exitcode"
	"github.com/gyeh/hccscore/internal/parquetio"
	"github.com/gyeh/hccscore/internal/scoring"
)

var planFile string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Dry-run validation and stats (no writes)",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planFile, "file", "", "Path to member Parquet file (required)")
	_ = planCmd.MarkFlagRequired("file")
	scoringFlags(planCmd)
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	e := newEnv(ctx, false)
	defer e.close()
	log := e.log

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	if err := parquetio.CheckMembers(planFile); err != nil {
		log.Error().Err(err).Msg("member file validation failed")
		os.Exit(exitcode.ValidationError)
	}

	pf, err := batch.Preflight(ctx, e.deps, cfg, batch.ScoreJob{InputPath: planFile})
	if err != nil {
		fail(log, "plan", &batch.PipelineError{Phase: "preflight", Err: err})
	}

	opts, err := batch.ScoringOptions(cfg)
	if err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}
	basis := opts.BasisDate
	if basis.IsZero() {
		basis = scoring.ModelYearEnd(pf.TableSet.Manifest().ModelYear)
	}

	subModels := make(map[string]int)
	tiers := make(map[string]int)
	var diagnoses int
	for _, m := range pf.Members {
		sm, ok := pf.TableSet.SubModelFor(scoring.AgeAt(m.DateOfBirth, basis))
		if !ok {
			sm = "(none)"
		}
		subModels[sm]++
		tiers[m.Tier]++
		diagnoses += len(m.Diagnoses)
	}

	fmt.Println("=== hccrun plan ===")
	fmt.Printf("File:          %s\n", planFile)
	fmt.Printf("SHA-256:       %s\n", pf.InputSHA256)
	fmt.Printf("Model version: %s (benefit year %d)\n", pf.TableSet.Version(), pf.TableSet.Manifest().ModelYear)
	fmt.Printf("Age basis:     %s\n", basis.Format("2006-01-02"))
	fmt.Printf("Rows:          %d\n", pf.RowsRead)
	fmt.Printf("Scoreable:     %d\n", len(pf.Members))
	fmt.Printf("Rejected:      %d\n", len(pf.Skips))
	fmt.Printf("Diagnoses:     %d\n", diagnoses)
	fmt.Println()
	printCounts("Sub-models:", subModels)
	printCounts("Tiers:", tiers)
	for _, s := range pf.Skips {
		fmt.Printf("  rejected %-16s %s\n", s.MemberID, s.Reason)
	}
	fmt.Println("Schema validation: OK")
	return nil
}

func printCounts(title string, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Println(title)
	for _, k := range keys {
		fmt.Printf("  %-14s %6d\n", k, counts[k])
	}
}
