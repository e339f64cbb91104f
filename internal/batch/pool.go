package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gyeh/hccscore/internal/metrics"
	"github.com/gyeh/hccscore/internal/model"
	"github.com/gyeh/hccscore/internal/progress"
	"github.com/gyeh/hccscore/internal/scoring"
)

// Outcome is the result of scoring a member list.
type Outcome struct {
	// Records are in input order; skipped members are left out.
	Records   []*model.RiskScoreRecord
	Findings  []model.Finding
	Skips     []model.MemberSkip
	SubModels map[string]int64
}

type memberResult struct {
	rec      *model.RiskScoreRecord
	findings []model.Finding
	skip     *model.MemberSkip
}

// ScoreMembers scores members on a bounded worker pool. Each worker writes
// only its own slot of a pre-sized result slice, so the merged output keeps
// input order without locking. Invalid members become skips; any other error
// stops the pool and is returned.
func ScoreMembers(ctx context.Context, scorer scoring.Scorer, members []*model.MemberInput, workers int, tr progress.Tracker, m *metrics.Manager) (*Outcome, error) {
	if tr == nil {
		tr = progress.NoopManager{}.NewTracker("", 0)
	}
	results := make([]memberResult, len(members))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, mem := range members {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			defer tr.Increment(1)
			start := time.Now()
			rec, findings, err := scorer.Score(gctx, mem)
			if err != nil {
				if errors.Is(err, scoring.ErrInvalidMemberInput) {
					reason := err.Error()
					var me *scoring.MemberError
					if errors.As(err, &me) {
						reason = me.Reason
					}
					results[i].skip = &model.MemberSkip{MemberID: mem.MemberID, Reason: reason}
					m.RecordSkipped()
					return nil
				}
				return fmt.Errorf("member %s: %w", mem.MemberID, err)
			}
			results[i] = memberResult{rec: rec, findings: findings}
			m.RecordScored(rec.SubModel, rec.TotalScore, time.Since(start))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &Outcome{
		Records:   make([]*model.RiskScoreRecord, 0, len(members)),
		SubModels: make(map[string]int64),
	}
	for _, r := range results {
		if r.skip != nil {
			out.Skips = append(out.Skips, *r.skip)
			continue
		}
		out.Records = append(out.Records, r.rec)
		out.SubModels[r.rec.SubModel]++
		for _, f := range r.findings {
			m.RecordFinding(string(f.Kind))
		}
		out.Findings = append(out.Findings, r.findings...)
	}
	return out, nil
}
