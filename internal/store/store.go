// Package store persists run registry entries, score records, comparisons and
// decomposition drivers. PGStore is the Postgres implementation; MemoryStore
// backs tests and dry runs.
package store

import (
	"context"
	"errors"

	"github.com/gyeh/hccscore/internal/model"
)

var (
	ErrRunNotFound   = errors.New("run not found")
	ErrRunImmutable  = errors.New("run is immutable")
	ErrRunIncomplete = errors.New("run has not completed successfully")
)

// Audit is the per-member side output of a scoring run, written in the same
// transaction as its score records.
type Audit struct {
	Findings []model.Finding
	Skips    []model.MemberSkip
}

// Store is the persistence surface used by batch jobs.
//
// Score, comparison and driver writes are append-once: they succeed only while
// the owning run is started and has no rows yet, and they are all-or-nothing.
type Store interface {
	// RegisterRun fills in RunID (when empty), GroupID (when zero), status and
	// timestamps, then records the run as started.
	RegisterRun(ctx context.Context, run *model.RunRecord) error
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	GetRun(ctx context.Context, runID string) (*model.RunRecord, error)

	WriteScores(ctx context.Context, runID string, recs <-chan *model.RiskScoreRecord, audit Audit) (int64, error)
	// LoadScores returns the records of a successful run ordered by member id.
	LoadScores(ctx context.Context, runID string) ([]model.RiskScoreRecord, error)

	WriteComparison(ctx context.Context, batchID string, recs []model.ComparisonRecord) (int64, error)
	LoadComparison(ctx context.Context, batchID string) ([]model.ComparisonRecord, error)

	WriteDrivers(ctx context.Context, batchID string, drivers []model.DecompositionDriver) (int64, error)
	LoadDrivers(ctx context.Context, batchID string) ([]model.DecompositionDriver, error)

	// WriteMemberInputs replaces the named input set.
	WriteMemberInputs(ctx context.Context, inputSet string, rows []model.MemberRow) (int64, error)
	LoadMemberInputs(ctx context.Context, inputSet string) ([]model.MemberRow, error)
}

type findingRow struct {
	runID string
	f     model.Finding
}

func (r *findingRow) CopyValues() []any {
	return []any{r.runID, r.f.MemberID, string(r.f.Kind), r.f.Code, r.f.Detail}
}

type skipRow struct {
	runID string
	s     model.MemberSkip
}

func (r *skipRow) CopyValues() []any {
	return []any{r.runID, r.s.MemberID, r.s.Reason}
}

type memberInputRow struct {
	inputSet string
	row      *model.MemberRow
}

func (r *memberInputRow) CopyValues() []any {
	var months *int32
	if r.row.EnrollmentMonths != nil {
		m := *r.row.EnrollmentMonths
		months = &m
	}
	return []any{
		r.inputSet,
		r.row.MemberID,
		r.row.DateOfBirth,
		r.row.Sex,
		r.row.Tier,
		months,
		nonNil(r.row.Diagnoses),
		nonNil(r.row.PharmacyCodes),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
