package batch

import (
	"context"
	"time"

	"github.com/gyeh/hccscore/internal/config"
	"github.com/gyeh/hccscore/internal/crossval"
	"github.com/gyeh/hccscore/internal/scoring"
)

// CrossValidate scores the job's members with the calculator and the mask
// scorer and reports where they disagree by more than the configured
// tolerance. Nothing is persisted.
func CrossValidate(ctx context.Context, d Deps, cfg *config.Config, job ScoreJob) (*crossval.Report, error) {
	start := time.Now()

	pf, err := Preflight(ctx, d, cfg, job)
	if err != nil {
		return nil, &PipelineError{Phase: "preflight", Err: err}
	}
	opts, err := ScoringOptions(cfg)
	if err != nil {
		return nil, &PipelineError{Phase: "preflight", Err: err}
	}
	scorers := []scoring.Scorer{
		scoring.NewCalculator(pf.TableSet, opts),
		scoring.NewMaskScorer(pf.TableSet, opts),
	}

	sides := make([]crossval.Side, len(scorers))
	for i, s := range scorers {
		tr := d.tracker(s.Name(), len(pf.Members))
		out, err := ScoreMembers(ctx, s, pf.Members, workers(cfg), tr, nil)
		tr.Done()
		if err != nil {
			return nil, &PipelineError{Phase: "score", Err: err}
		}
		sides[i] = crossval.Side{Name: s.Name(), Records: out.Records, Skipped: out.Skips}
	}

	rep := crossval.Compare(sides[0], sides[1], cfg.Tolerance)
	byID := make(map[string]float64, len(sides[1].Records))
	for _, r := range sides[1].Records {
		byID[r.MemberID] = r.TotalScore
	}
	for _, r := range sides[0].Records {
		if other, ok := byID[r.MemberID]; ok {
			d.Metrics.ObserveCrossValDelta(r.TotalScore - other)
		}
	}
	for _, f := range rep.Findings {
		d.Metrics.RecordFinding(string(f.Kind))
		d.Log.Warn().Str("member_id", f.MemberID).Str("check", f.Code).Str("detail", f.Detail).Msg("tolerance violation")
	}

	d.Log.Info().
		Int("compared", rep.Compared).
		Int("violations", rep.Violations).
		Float64("max_abs_delta", rep.MaxAbsDelta).
		Float64("tolerance", rep.Tolerance).
		Str("duration", time.Since(start).String()).
		Msg("cross-validation complete")
	return rep, nil
}
