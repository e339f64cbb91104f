package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gyeh/hccscore/internal/config"
	"github.com/gyeh/hccscore/internal/model"
	"github.com/gyeh/hccscore/internal/normalize"
	"github.com/gyeh/hccscore/internal/parquetio"
	"github.com/gyeh/hccscore/internal/refdata"
	"github.com/gyeh/hccscore/internal/scoring"
)

// ScoreJob describes one scoring run. Exactly one of InputPath and InputSet is set.
type ScoreJob struct {
	// InputPath is a member Parquet file.
	InputPath string
	// InputSet names rows previously loaded into hcc.member_inputs.
	InputSet string
	// Scorer is "calculator" (default) or "mask".
	Scorer           string
	GroupID          int64
	GroupDescription string
	RunDescription   string
	TriggerSource    string
}

// PreflightResult holds everything resolved before scoring starts.
type PreflightResult struct {
	TableSet *refdata.TableSet
	Scorer   scoring.Scorer
	Members  []*model.MemberInput
	// Skips are rows rejected during normalisation.
	Skips    []model.MemberSkip
	RowsRead int64
	// InputSHA256 is set for file inputs.
	InputSHA256 string
}

// Preflight loads the reference tables, builds the scorer and reads and
// normalises the member input. It does not touch the run registry.
func Preflight(ctx context.Context, d Deps, cfg *config.Config, job ScoreJob) (*PreflightResult, error) {
	start := time.Now()

	if (job.InputPath == "") == (job.InputSet == "") {
		return nil, errors.New("exactly one of an input file or an input set is required")
	}

	ts, err := d.Catalog.Load(ctx, cfg.ModelVersion)
	if err != nil {
		return nil, fmt.Errorf("load reference tables: %w", err)
	}
	opts, err := ScoringOptions(cfg)
	if err != nil {
		return nil, err
	}
	scorer, err := scoring.NewScorer(job.Scorer, ts, opts)
	if err != nil {
		return nil, err
	}

	pf := &PreflightResult{TableSet: ts, Scorer: scorer}

	var rows []model.MemberRow
	source := job.InputSet
	if job.InputPath != "" {
		source = filepath.Base(job.InputPath)
		if pf.InputSHA256, err = normalize.FileHash(job.InputPath); err != nil {
			return nil, fmt.Errorf("preflight hash: %w", err)
		}
		if rows, err = parquetio.ReadMembers(job.InputPath); err != nil {
			return nil, fmt.Errorf("preflight read: %w", err)
		}
	} else {
		if rows, err = d.Store.LoadMemberInputs(ctx, job.InputSet); err != nil {
			return nil, fmt.Errorf("preflight read: %w", err)
		}
		if len(rows) == 0 {
			return nil, fmt.Errorf("input set %q is empty", job.InputSet)
		}
	}
	pf.RowsRead = int64(len(rows))

	nopts := normalize.Options{InvalidSex: model.SexPolicy(cfg.InvalidSexPolicy), CoerceSex: cfg.CoerceSex}
	seen := make(map[string]bool, len(rows))
	pf.Members = make([]*model.MemberInput, 0, len(rows))
	for i := range rows {
		mem, err := normalize.ToMemberInput(&rows[i], nopts)
		if err == nil && seen[mem.MemberID] {
			err = fmt.Errorf("%w: duplicate member_id %s", normalize.ErrInvalidRow, mem.MemberID)
		}
		if err != nil {
			pf.Skips = append(pf.Skips, model.MemberSkip{MemberID: rows[i].MemberID, Reason: err.Error()})
			d.Metrics.RecordSkipped()
			d.Log.Warn().Err(err).Int("row", i+1).Msg("member row rejected")
			continue
		}
		seen[mem.MemberID] = true
		pf.Members = append(pf.Members, mem)
	}

	d.Log.Info().
		Str("source", source).
		Str("model_version", ts.Version()).
		Str("scorer", scorer.Name()).
		Int64("rows", pf.RowsRead).
		Int("members", len(pf.Members)).
		Int("rejected", len(pf.Skips)).
		Str("duration", time.Since(start).String()).
		Msg("preflight complete")

	return pf, nil
}
