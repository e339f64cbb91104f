package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/gyeh/hccscore/internal/config"
	"github.com/gyeh/hccscore/internal/model"
	"github.com/gyeh/hccscore/internal/progress"
	"github.com/gyeh/hccscore/internal/store"
)

const persistBuffer = 1024

// Run executes a scoring run: preflight → register → score → persist → finalize.
// Once the run is registered any failure marks it failed; records are only
// visible if persist commits.
func Run(ctx context.Context, d Deps, cfg *config.Config, job ScoreJob) (*model.ScoringSummary, error) {
	totalStart := time.Now()
	log := d.Log

	// Phase 1: Preflight
	log.Info().Str("model_version", cfg.ModelVersion).Msg("starting preflight")
	pf, err := Preflight(ctx, d, cfg, job)
	if err != nil {
		return nil, &PipelineError{Phase: "preflight", Err: err}
	}
	readDur := time.Since(totalStart)
	d.Metrics.ObservePhase("preflight", readDur)

	runCfg := cfg.Redacted()
	if pf.InputSHA256 != "" {
		runCfg["input_sha256"] = pf.InputSHA256
	}
	if job.InputSet != "" {
		runCfg["input_set"] = job.InputSet
	}
	run := &model.RunRecord{
		GroupID:          job.GroupID,
		GroupDescription: job.GroupDescription,
		RunDescription:   job.RunDescription,
		AnalysisType:     model.AnalysisScoring,
		Calculator:       pf.Scorer.Name(),
		ModelVersion:     pf.TableSet.Version(),
		BenefitYear:      pf.TableSet.Manifest().ModelYear,
		TriggerSource:    job.TriggerSource,
		Config:           runCfg,
	}
	if err := d.Store.RegisterRun(ctx, run); err != nil {
		return nil, &PipelineError{Phase: "preflight", Err: err}
	}
	log = log.With().Str("run_id", run.RunID).Logger()

	// Phase 2: Score
	log.Info().Int("members", len(pf.Members)).Int("workers", workers(cfg)).Msg("starting scoring")
	scoreStart := time.Now()
	tr := d.tracker("score", len(pf.Members))
	out, err := ScoreMembers(ctx, pf.Scorer, pf.Members, workers(cfg), tr, d.Metrics)
	tr.Done()
	if err != nil {
		markFailed(ctx, d, run.RunID, model.AnalysisScoring)
		return nil, &PipelineError{Phase: "score", Err: err}
	}
	for _, rec := range out.Records {
		rec.RunID = run.RunID
		rec.CreatedAt = run.RunTimestamp
	}
	for _, s := range out.Skips {
		log.Warn().Str("member_id", s.MemberID).Str("reason", s.Reason).Msg("member skipped")
	}
	scoreDur := time.Since(scoreStart)
	d.Metrics.ObservePhase("score", scoreDur)
	log.Info().
		Int("scored", len(out.Records)).
		Int("skipped", len(out.Skips)).
		Int("findings", len(out.Findings)).
		Str("duration", scoreDur.String()).
		Msg("scoring complete")

	// Phase 3: Persist
	persistStart := time.Now()
	skips := append(append([]model.MemberSkip(nil), pf.Skips...), out.Skips...)
	ptr := d.tracker("persist", len(out.Records))
	written, err := Persist(ctx, d.Store, run.RunID, out.Records, store.Audit{Findings: out.Findings, Skips: skips}, ptr)
	ptr.Done()
	if err != nil {
		markFailed(ctx, d, run.RunID, model.AnalysisScoring)
		return nil, &PipelineError{Phase: "persist", Err: err}
	}
	if written != int64(len(out.Records)) {
		markFailed(ctx, d, run.RunID, model.AnalysisScoring)
		return nil, &PipelineError{Phase: "persist", Err: fmt.Errorf("wrote %d of %d records", written, len(out.Records))}
	}
	d.Metrics.RecordWritten(written)
	persistDur := time.Since(persistStart)
	d.Metrics.ObservePhase("persist", persistDur)

	// Phase 4: Finalize
	if err := d.Store.UpdateRunStatus(ctx, run.RunID, model.RunSuccess); err != nil {
		return nil, &PipelineError{Phase: "finalize", Err: err}
	}
	d.Metrics.RecordRun(string(model.AnalysisScoring), string(model.RunSuccess))

	summary := &model.ScoringSummary{
		RunID:           run.RunID,
		GroupID:         run.GroupID,
		ModelVersion:    run.ModelVersion,
		Calculator:      run.Calculator,
		MembersRead:     pf.RowsRead,
		MembersScored:   int64(len(out.Records)),
		MembersSkipped:  int64(len(skips)),
		RecordsWritten:  written,
		Findings:        make(map[model.FindingKind]int64),
		SubModels:       out.SubModels,
		Skips:           skips,
		DurationRead:    readDur,
		DurationScore:   scoreDur,
		DurationPersist: persistDur,
		DurationTotal:   time.Since(totalStart),
	}
	for _, f := range out.Findings {
		summary.Findings[f.Kind]++
	}

	log.Info().
		Int64("members_read", summary.MembersRead).
		Int64("members_scored", summary.MembersScored).
		Int64("members_skipped", summary.MembersSkipped).
		Int64("records_written", summary.RecordsWritten).
		Str("total_duration", summary.DurationTotal.String()).
		Msg("scoring run complete")

	return summary, nil
}

// Persist streams recs into the store through a channel so COPY applies
// backpressure to the producer.
func Persist(ctx context.Context, st store.Store, runID string, recs []*model.RiskScoreRecord, audit store.Audit, tr progress.Tracker) (int64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan *model.RiskScoreRecord, persistBuffer)
	go func() {
		defer close(ch)
		for _, r := range recs {
			select {
			case ch <- r:
				tr.Increment(1)
			case <-ctx.Done():
				return
			}
		}
	}()

	return st.WriteScores(ctx, runID, ch, audit)
}
