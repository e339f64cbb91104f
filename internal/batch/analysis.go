package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gyeh/hccscore/internal/compare"
	"github.com/gyeh/hccscore/internal/config"
	"github.com/gyeh/hccscore/internal/decompose"
	"github.com/gyeh/hccscore/internal/model"
	"github.com/gyeh/hccscore/internal/store"
)

// CompareJob compares two persisted scoring runs.
type CompareJob struct {
	RunA, RunB     string
	GroupID        int64 // zero means the group of RunA
	RunDescription string
	TriggerSource  string
}

// CompareResult is the outcome of a persisted comparison.
type CompareResult struct {
	BatchID string
	Summary compare.Summary
	Written int64
	Records []model.ComparisonRecord
}

// CompareRuns loads both runs, registers a comparison batch, computes the
// member-level comparison and persists it.
func CompareRuns(ctx context.Context, d Deps, cfg *config.Config, job CompareJob) (*CompareResult, error) {
	start := time.Now()
	log := d.Log

	runA, recsA, err := loadRun(ctx, d.Store, job.RunA)
	if err != nil {
		return nil, &PipelineError{Phase: "load", Err: err}
	}
	_, recsB, err := loadRun(ctx, d.Store, job.RunB)
	if err != nil {
		return nil, &PipelineError{Phase: "load", Err: err}
	}

	groupID := job.GroupID
	if groupID == 0 {
		groupID = runA.GroupID
	}
	batch := &model.RunRecord{
		GroupID:        groupID,
		RunDescription: job.RunDescription,
		AnalysisType:   model.AnalysisComparison,
		ModelVersion:   runA.ModelVersion,
		BenefitYear:    runA.BenefitYear,
		TriggerSource:  job.TriggerSource,
		Config:         map[string]any{"run_id_a": job.RunA, "run_id_b": job.RunB},
	}
	if err := d.Store.RegisterRun(ctx, batch); err != nil {
		return nil, &PipelineError{Phase: "register", Err: err}
	}

	recs, sum, err := compare.Compare(
		compare.Run{RunID: job.RunA, Records: recsA},
		compare.Run{RunID: job.RunB, Records: recsB},
	)
	if err != nil {
		markFailed(ctx, d, batch.RunID, model.AnalysisComparison)
		return nil, &PipelineError{Phase: "compare", Err: err}
	}

	n, err := d.Store.WriteComparison(ctx, batch.RunID, recs)
	if err != nil {
		markFailed(ctx, d, batch.RunID, model.AnalysisComparison)
		return nil, &PipelineError{Phase: "persist", Err: err}
	}
	if err := d.Store.UpdateRunStatus(ctx, batch.RunID, model.RunSuccess); err != nil {
		return nil, &PipelineError{Phase: "finalize", Err: err}
	}
	d.Metrics.RecordRun(string(model.AnalysisComparison), string(model.RunSuccess))

	log.Info().
		Str("batch_id", batch.RunID).
		Str("run_a", job.RunA).
		Str("run_b", job.RunB).
		Int("matched", sum.Matched).
		Int("a_only", sum.AOnly).
		Int("b_only", sum.BOnly).
		Int("changed", sum.Changed).
		Float64("mean_delta", sum.MeanDelta).
		Str("duration", time.Since(start).String()).
		Msg("comparison complete")

	return &CompareResult{BatchID: batch.RunID, Summary: sum, Written: n, Records: recs}, nil
}

// DecomposeJob attributes the change from Baseline to Actual to the ordered
// Steps. All three name scoring runs by id.
type DecomposeJob struct {
	Baseline        string
	Actual          string
	Steps           []decompose.Component
	InteractionName string
	GroupID         int64 // zero means the group of Baseline
	RunDescription  string
	TriggerSource   string
}

// DecomposeResult is the outcome of a persisted decomposition.
type DecomposeResult struct {
	BatchID string
	Result  *decompose.Result
}

// DecomposeRuns loads every referenced run, registers a decomposition batch,
// computes the drivers and persists them.
func DecomposeRuns(ctx context.Context, d Deps, cfg *config.Config, job DecomposeJob) (*DecomposeResult, error) {
	start := time.Now()

	method, err := model.ParseDecompositionMethod(cfg.DecompositionMethod)
	if err != nil {
		return nil, &PipelineError{Phase: "load", Err: err}
	}
	metric, err := model.ParseMetric(cfg.Metric)
	if err != nil {
		return nil, &PipelineError{Phase: "load", Err: err}
	}
	mode, err := model.ParsePopulationMode(cfg.PopulationMode)
	if err != nil {
		return nil, &PipelineError{Phase: "load", Err: err}
	}

	ids := []string{job.Baseline, job.Actual}
	for _, s := range job.Steps {
		ids = append(ids, s.Scenario)
	}
	scenarios := make(map[string][]model.RiskScoreRecord, len(ids))
	var baseRun *model.RunRecord
	for _, id := range ids {
		if _, ok := scenarios[id]; ok {
			continue
		}
		run, recs, err := loadRun(ctx, d.Store, id)
		if errors.Is(err, store.ErrRunNotFound) || errors.Is(err, store.ErrRunIncomplete) {
			err = fmt.Errorf("%w: %w", decompose.ErrScenarioAlignment, err)
		}
		if err != nil {
			return nil, &PipelineError{Phase: "load", Err: err}
		}
		if id == job.Baseline {
			baseRun = run
		}
		scenarios[id] = recs
	}

	groupID := job.GroupID
	if groupID == 0 {
		groupID = baseRun.GroupID
	}
	steps := make([]map[string]string, len(job.Steps))
	for i, s := range job.Steps {
		steps[i] = map[string]string{"name": s.Name, "run_id": s.Scenario}
	}
	batch := &model.RunRecord{
		GroupID:        groupID,
		RunDescription: job.RunDescription,
		AnalysisType:   model.AnalysisDecomposition,
		ModelVersion:   baseRun.ModelVersion,
		BenefitYear:    baseRun.BenefitYear,
		TriggerSource:  job.TriggerSource,
		Config: map[string]any{
			"baseline":             job.Baseline,
			"actual":               job.Actual,
			"steps":                steps,
			"decomposition_method": string(method),
			"metric":               string(metric),
			"population_mode":      string(mode),
		},
	}
	if err := d.Store.RegisterRun(ctx, batch); err != nil {
		return nil, &PipelineError{Phase: "register", Err: err}
	}

	res, err := decompose.Decompose(decompose.Request{
		Scenarios:       scenarios,
		Baseline:        job.Baseline,
		Actual:          job.Actual,
		Components:      job.Steps,
		Method:          method,
		Metric:          metric,
		Population:      mode,
		InteractionName: job.InteractionName,
	})
	if err != nil {
		markFailed(ctx, d, batch.RunID, model.AnalysisDecomposition)
		return nil, &PipelineError{Phase: "decompose", Err: err}
	}

	if _, err := d.Store.WriteDrivers(ctx, batch.RunID, res.Drivers); err != nil {
		markFailed(ctx, d, batch.RunID, model.AnalysisDecomposition)
		return nil, &PipelineError{Phase: "persist", Err: err}
	}
	if err := d.Store.UpdateRunStatus(ctx, batch.RunID, model.RunSuccess); err != nil {
		return nil, &PipelineError{Phase: "finalize", Err: err}
	}
	d.Metrics.RecordRun(string(model.AnalysisDecomposition), string(model.RunSuccess))

	for _, drv := range res.Drivers {
		d.Log.Info().Int("step", drv.StepIndex).Str("driver", drv.Name).Float64("impact", drv.Impact).Msg("driver")
	}
	d.Log.Info().
		Str("batch_id", batch.RunID).
		Float64("baseline", res.BaselineValue).
		Float64("actual", res.ActualValue).
		Float64("total", res.Total).
		Str("duration", time.Since(start).String()).
		Msg("decomposition complete")

	return &DecomposeResult{BatchID: batch.RunID, Result: res}, nil
}

// loadRun fetches a successful scoring run and its records.
func loadRun(ctx context.Context, st store.Store, runID string) (*model.RunRecord, []model.RiskScoreRecord, error) {
	run, err := st.GetRun(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	if run.AnalysisType != model.AnalysisScoring {
		return nil, nil, fmt.Errorf("run %s is a %s run, not a scoring run", runID, run.AnalysisType)
	}
	recs, err := st.LoadScores(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	return run, recs, nil
}
