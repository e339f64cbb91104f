package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/hccscore/internal/model"
	embedsql "github.com/gyeh/hccscore/internal/sql"
)

// PGStore is a Store backed by the hcc schema in Postgres.
type PGStore struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewPGStore wraps an open pool. Migrations must already be applied.
func NewPGStore(pool *pgxpool.Pool, log zerolog.Logger) *PGStore {
	return &PGStore{pool: pool, log: log}
}

func (s *PGStore) RegisterRun(ctx context.Context, run *model.RunRecord) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.TriggerSource == "" {
		run.TriggerSource = "cli"
	}
	cfg := run.Config
	if cfg == nil {
		cfg = map[string]any{}
	}

	var status string
	err := s.pool.QueryRow(ctx, embedsql.RegisterRun,
		run.RunID,
		run.GroupID,
		run.GroupDescription,
		run.RunDescription,
		string(run.AnalysisType),
		run.Calculator,
		run.ModelVersion,
		int32(run.BenefitYear),
		run.TriggerSource,
		cfg,
	).Scan(&run.GroupID, &run.RunTimestamp, &status, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return fmt.Errorf("register run: %w", err)
	}
	run.Status = model.RunStatus(status)

	s.log.Info().
		Str("run_id", run.RunID).
		Int64("group_id", run.GroupID).
		Str("analysis_type", string(run.AnalysisType)).
		Msg("run registered")
	return nil
}

func (s *PGStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	if status != model.RunSuccess && status != model.RunFailed {
		return fmt.Errorf("update run %s: invalid target status %q", runID, status)
	}
	tag, err := s.pool.Exec(ctx, embedsql.UpdateRunStatus, runID, string(status))
	if err != nil {
		return fmt.Errorf("update run %s: %w", runID, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := s.GetRun(ctx, runID); err != nil {
		return err
	}
	return fmt.Errorf("%w: run %s already finished", ErrRunImmutable, runID)
}

func (s *PGStore) GetRun(ctx context.Context, runID string) (*model.RunRecord, error) {
	var (
		r                model.RunRecord
		analysis, status string
		benefitYear      int32
	)
	err := s.pool.QueryRow(ctx, embedsql.GetRun, runID).Scan(
		&r.RunID, &r.RunTimestamp, &r.GroupID,
		&r.GroupDescription, &r.RunDescription,
		&analysis, &r.Calculator, &r.ModelVersion, &benefitYear, &status,
		&r.TriggerSource, &r.Config, &r.CreatedAt, &r.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	r.AnalysisType = model.AnalysisType(analysis)
	r.Status = model.RunStatus(status)
	r.BenefitYear = int(benefitYear)
	return &r, nil
}

// appendToRun locks the run row, checks that it may still receive rows in
// table, runs fn inside the transaction and commits.
func (s *PGStore) appendToRun(ctx context.Context, runID, table, keyCol string, fn func(tx pgx.Tx) (int64, error)) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status string
	err = tx.QueryRow(ctx, "SELECT status FROM hcc.run_registry WHERE run_id = $1 FOR UPDATE", runID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return 0, fmt.Errorf("lock run %s: %w", runID, err)
	}
	if model.RunStatus(status) != model.RunStarted {
		return 0, fmt.Errorf("%w: run %s is %s", ErrRunImmutable, runID, status)
	}

	var exists bool
	q := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM hcc.%s WHERE %s = $1)", table, keyCol)
	if err := tx.QueryRow(ctx, q, runID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("check %s: %w", table, err)
	}
	if exists {
		return 0, fmt.Errorf("%w: run %s already has %s rows", ErrRunImmutable, runID, table)
	}

	n, err := fn(tx)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// WriteScores COPYs records from recs into hcc.risk_scores together with the
// run's findings and skips. Nothing is visible unless every row is written.
func (s *PGStore) WriteScores(ctx context.Context, runID string, recs <-chan *model.RiskScoreRecord, audit Audit) (int64, error) {
	start := time.Now()
	n, err := s.appendToRun(ctx, runID, "risk_scores", "run_id", func(tx pgx.Tx) (int64, error) {
		n, err := tx.CopyFrom(ctx, pgx.Identifier{"hcc", "risk_scores"}, model.ScoreColumns(), NewChannelSource(recs))
		if err != nil {
			return 0, fmt.Errorf("copy scores: %w", err)
		}

		findings := make([]*findingRow, len(audit.Findings))
		for i := range audit.Findings {
			findings[i] = &findingRow{runID: runID, f: audit.Findings[i]}
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"hcc", "run_findings"},
			[]string{"run_id", "member_id", "kind", "code", "detail"}, sliceSource(findings)); err != nil {
			return 0, fmt.Errorf("copy findings: %w", err)
		}

		skips := make([]*skipRow, len(audit.Skips))
		for i := range audit.Skips {
			skips[i] = &skipRow{runID: runID, s: audit.Skips[i]}
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"hcc", "member_skips"},
			[]string{"run_id", "member_id", "reason"}, sliceSource(skips)); err != nil {
			return 0, fmt.Errorf("copy skips: %w", err)
		}
		return n, nil
	})
	if err != nil {
		return 0, err
	}

	dur := time.Since(start)
	s.log.Info().
		Str("run_id", runID).
		Int64("records", n).
		Int("findings", len(audit.Findings)).
		Int("skips", len(audit.Skips)).
		Str("duration", dur.String()).
		Msg("scores written")
	return n, nil
}

func (s *PGStore) LoadScores(ctx context.Context, runID string) ([]model.RiskScoreRecord, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != model.RunSuccess {
		return nil, fmt.Errorf("%w: run %s is %s", ErrRunIncomplete, runID, run.Status)
	}

	rows, err := s.pool.Query(ctx, embedsql.LoadScores, runID)
	if err != nil {
		return nil, fmt.Errorf("load scores %s: %w", runID, err)
	}
	defer rows.Close()

	var out []model.RiskScoreRecord
	for rows.Next() {
		var (
			r           model.RiskScoreRecord
			age, months int32
		)
		if err := rows.Scan(
			&r.RunID, &r.MemberID, &r.ModelVersion, &r.SubModel, &r.Tier, &age, &r.Sex,
			&months, &r.TotalScore, &r.DemographicFactor, &r.CategorySubtotal,
			&r.DemographicVariable, &r.Variables, &r.Components, &r.Unmapped, &r.PharmacyCodes,
			&r.InputHash, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		r.Age, r.EnrollmentMonths = int(age), int(months)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load scores %s: %w", runID, err)
	}
	return out, nil
}

func (s *PGStore) WriteComparison(ctx context.Context, batchID string, recs []model.ComparisonRecord) (int64, error) {
	rows := make([]*model.ComparisonRecord, len(recs))
	for i := range recs {
		recs[i].BatchID = batchID
		rows[i] = &recs[i]
	}
	return s.appendToRun(ctx, batchID, "run_comparison", "batch_id", func(tx pgx.Tx) (int64, error) {
		n, err := tx.CopyFrom(ctx, pgx.Identifier{"hcc", "run_comparison"}, model.ComparisonColumns(), sliceSource(rows))
		if err != nil {
			return 0, fmt.Errorf("copy comparison: %w", err)
		}
		return n, nil
	})
}

func (s *PGStore) LoadComparison(ctx context.Context, batchID string) ([]model.ComparisonRecord, error) {
	if _, err := s.GetRun(ctx, batchID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, embedsql.LoadComparison, batchID)
	if err != nil {
		return nil, fmt.Errorf("load comparison %s: %w", batchID, err)
	}
	defer rows.Close()

	var out []model.ComparisonRecord
	for rows.Next() {
		var (
			r      model.ComparisonRecord
			status string
		)
		if err := rows.Scan(&r.BatchID, &r.RunIDA, &r.RunIDB, &r.MemberID, &status,
			&r.ScoreA, &r.ScoreB, &r.Delta, &r.Added, &r.Removed); err != nil {
			return nil, fmt.Errorf("scan comparison: %w", err)
		}
		r.Status = model.MatchStatus(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PGStore) WriteDrivers(ctx context.Context, batchID string, drivers []model.DecompositionDriver) (int64, error) {
	rows := make([]*model.DecompositionDriver, len(drivers))
	for i := range drivers {
		drivers[i].BatchID = batchID
		rows[i] = &drivers[i]
	}
	return s.appendToRun(ctx, batchID, "decomposition_drivers", "batch_id", func(tx pgx.Tx) (int64, error) {
		n, err := tx.CopyFrom(ctx, pgx.Identifier{"hcc", "decomposition_drivers"}, model.DriverColumns(), sliceSource(rows))
		if err != nil {
			return 0, fmt.Errorf("copy drivers: %w", err)
		}
		return n, nil
	})
}

func (s *PGStore) LoadDrivers(ctx context.Context, batchID string) ([]model.DecompositionDriver, error) {
	if _, err := s.GetRun(ctx, batchID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, embedsql.LoadDrivers, batchID)
	if err != nil {
		return nil, fmt.Errorf("load drivers %s: %w", batchID, err)
	}
	defer rows.Close()

	var out []model.DecompositionDriver
	for rows.Next() {
		var (
			d    model.DecompositionDriver
			step int32
		)
		if err := rows.Scan(&d.BatchID, &step, &d.Name, &d.Impact, &d.RunID, &d.Scenario); err != nil {
			return nil, fmt.Errorf("scan driver: %w", err)
		}
		d.StepIndex = int(step)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PGStore) WriteMemberInputs(ctx context.Context, inputSet string, rows []model.MemberRow) (int64, error) {
	src := make([]*memberInputRow, len(rows))
	for i := range rows {
		src[i] = &memberInputRow{inputSet: inputSet, row: &rows[i]}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "DELETE FROM hcc.member_inputs WHERE input_set = $1", inputSet); err != nil {
		return 0, fmt.Errorf("clear input set %s: %w", inputSet, err)
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{"hcc", "member_inputs"},
		[]string{"input_set", "member_id", "date_of_birth", "sex", "tier", "enrollment_months", "diagnoses", "pharmacy_codes"},
		sliceSource(src))
	if err != nil {
		return 0, fmt.Errorf("copy member inputs: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	s.log.Info().Str("input_set", inputSet).Int64("members", n).Msg("member inputs loaded")
	return n, nil
}

func (s *PGStore) LoadMemberInputs(ctx context.Context, inputSet string) ([]model.MemberRow, error) {
	rows, err := s.pool.Query(ctx, embedsql.LoadMemberInputs, inputSet)
	if err != nil {
		return nil, fmt.Errorf("load member inputs %s: %w", inputSet, err)
	}
	defer rows.Close()

	var out []model.MemberRow
	for rows.Next() {
		var r model.MemberRow
		if err := rows.Scan(&r.MemberID, &r.DateOfBirth, &r.Sex, &r.Tier, &r.EnrollmentMonths,
			&r.Diagnoses, &r.PharmacyCodes); err != nil {
			return nil, fmt.Errorf("scan member input: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

var _ Store = (*PGStore)(nil)
