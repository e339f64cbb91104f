package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gyeh/hccscore/internal/model"
)

func scoreRec(runID, member string, total float64) *model.RiskScoreRecord {
	return &model.RiskScoreRecord{
		RunID:               runID,
		MemberID:            member,
		ModelVersion:        "2025-sample",
		SubModel:            "Adult",
		Tier:                "silver",
		Age:                 42,
		Sex:                 "F",
		EnrollmentMonths:    12,
		TotalScore:          total,
		DemographicFactor:   0.246,
		CategorySubtotal:    total - 0.246,
		DemographicVariable: "FAGE_LAST_40_44",
		Variables:           []string{"FAGE_LAST_40_44", "HHS_HCC130"},
		Components: []model.ScoreComponent{
			{Type: model.ComponentDemographic, Code: "FAGE_LAST_40_44", Coefficient: 0.246},
			{Type: model.ComponentCategory, Code: "HHS_HCC130", Coefficient: total - 0.246, SourceDiagnoses: []string{"I509"}},
		},
		InputHash: "h-" + member,
		CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func feed(recs ...*model.RiskScoreRecord) <-chan *model.RiskScoreRecord {
	ch := make(chan *model.RiskScoreRecord, len(recs))
	for _, r := range recs {
		ch <- r
	}
	close(ch)
	return ch
}

func registerScoring(t *testing.T, s Store) *model.RunRecord {
	t.Helper()
	run := &model.RunRecord{
		AnalysisType: model.AnalysisScoring,
		Calculator:   "calculator",
		ModelVersion: "2025-sample",
		BenefitYear:  2025,
		Config:       map[string]any{"metric": "mean"},
	}
	if err := s.RegisterRun(context.Background(), run); err != nil {
		t.Fatalf("RegisterRun: %v", err)
	}
	return run
}

// runStoreSuite exercises the Store contract; both implementations run it.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("register assigns ids and groups", func(t *testing.T) {
		s := newStore(t)
		a := registerScoring(t, s)
		b := registerScoring(t, s)
		if a.RunID == "" || a.RunID == b.RunID {
			t.Fatalf("run ids %q %q", a.RunID, b.RunID)
		}
		if a.GroupID == 0 || b.GroupID <= a.GroupID {
			t.Errorf("group ids should increase: %d then %d", a.GroupID, b.GroupID)
		}
		if a.Status != model.RunStarted {
			t.Errorf("status = %s", a.Status)
		}

		c := &model.RunRecord{AnalysisType: model.AnalysisComparison, GroupID: a.GroupID}
		if err := s.RegisterRun(ctx, c); err != nil {
			t.Fatal(err)
		}
		if c.GroupID != a.GroupID {
			t.Errorf("explicit group id replaced: %d", c.GroupID)
		}

		got, err := s.GetRun(ctx, a.RunID)
		if err != nil {
			t.Fatal(err)
		}
		if got.ModelVersion != "2025-sample" || got.BenefitYear != 2025 || got.Config["metric"] != "mean" {
			t.Errorf("round trip = %+v", got)
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.GetRun(ctx, "nope"); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("GetRun: %v", err)
		}
		if err := s.UpdateRunStatus(ctx, "nope", model.RunSuccess); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("UpdateRunStatus: %v", err)
		}
		if _, err := s.WriteScores(ctx, "nope", feed(), Audit{}); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("WriteScores: %v", err)
		}
	})

	t.Run("scores are written once and readable after success", func(t *testing.T) {
		s := newStore(t)
		run := registerScoring(t, s)
		audit := Audit{
			Findings: []model.Finding{{MemberID: "M2", Kind: model.FindingUnmappedDiagnosis, Code: "Z0000"}},
			Skips:    []model.MemberSkip{{MemberID: "M9", Reason: "invalid sex"}},
		}
		n, err := s.WriteScores(ctx, run.RunID, feed(scoreRec(run.RunID, "M2", 2.066), scoreRec(run.RunID, "M1", 0.246)), audit)
		if err != nil {
			t.Fatalf("WriteScores: %v", err)
		}
		if n != 2 {
			t.Errorf("wrote %d", n)
		}

		if _, err := s.LoadScores(ctx, run.RunID); !errors.Is(err, ErrRunIncomplete) {
			t.Errorf("started run should not be loadable: %v", err)
		}
		if _, err := s.WriteScores(ctx, run.RunID, feed(scoreRec(run.RunID, "M3", 1)), Audit{}); !errors.Is(err, ErrRunImmutable) {
			t.Errorf("second write: %v", err)
		}

		if err := s.UpdateRunStatus(ctx, run.RunID, model.RunSuccess); err != nil {
			t.Fatal(err)
		}
		if err := s.UpdateRunStatus(ctx, run.RunID, model.RunFailed); !errors.Is(err, ErrRunImmutable) {
			t.Errorf("terminal status changed: %v", err)
		}

		recs, err := s.LoadScores(ctx, run.RunID)
		if err != nil {
			t.Fatalf("LoadScores: %v", err)
		}
		if len(recs) != 2 || recs[0].MemberID != "M1" || recs[1].MemberID != "M2" {
			t.Fatalf("records = %+v", recs)
		}
		r := recs[1]
		if r.TotalScore != 2.066 || r.Age != 42 || len(r.Components) != 2 || r.Components[1].SourceDiagnoses[0] != "I509" {
			t.Errorf("record round trip = %+v", r)
		}
		if !r.CreatedAt.Equal(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)) {
			t.Errorf("created_at = %v", r.CreatedAt)
		}
	})

	t.Run("failed write leaves nothing", func(t *testing.T) {
		s := newStore(t)
		run := registerScoring(t, s)
		_, err := s.WriteScores(ctx, run.RunID, feed(scoreRec(run.RunID, "M1", 1), scoreRec(run.RunID, "M1", 2)), Audit{})
		if err == nil {
			t.Fatal("expected duplicate member error")
		}
		if _, err := s.WriteScores(ctx, run.RunID, feed(scoreRec(run.RunID, "M1", 1)), Audit{}); err != nil {
			t.Errorf("retry after failed write: %v", err)
		}
	})

	t.Run("comparison and drivers", func(t *testing.T) {
		s := newStore(t)
		batch := &model.RunRecord{AnalysisType: model.AnalysisComparison}
		if err := s.RegisterRun(ctx, batch); err != nil {
			t.Fatal(err)
		}
		a, b, d := 1.0, 1.5, 0.5
		cmp := []model.ComparisonRecord{
			{RunIDA: "A", RunIDB: "B", MemberID: "1", Status: model.MatchBoth, ScoreA: &a, ScoreB: &b, Delta: &d, Added: []string{"G01"}},
			{RunIDA: "A", RunIDB: "B", MemberID: "2", Status: model.MatchAOnly, ScoreA: &a},
		}
		if n, err := s.WriteComparison(ctx, batch.RunID, cmp); err != nil || n != 2 {
			t.Fatalf("WriteComparison: %d, %v", n, err)
		}
		got, err := s.LoadComparison(ctx, batch.RunID)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 2 || got[0].BatchID != batch.RunID || *got[0].Delta != 0.5 || got[1].ScoreB != nil {
			t.Errorf("comparison round trip = %+v", got)
		}

		dec := &model.RunRecord{AnalysisType: model.AnalysisDecomposition}
		if err := s.RegisterRun(ctx, dec); err != nil {
			t.Fatal(err)
		}
		drivers := []model.DecompositionDriver{
			{StepIndex: 1, Name: "Model Change", Impact: -0.6564, RunID: "R1", Scenario: "model"},
			{StepIndex: 2, Name: "Interaction", Impact: 0.1},
		}
		if _, err := s.WriteDrivers(ctx, dec.RunID, drivers); err != nil {
			t.Fatalf("WriteDrivers: %v", err)
		}
		gotD, err := s.LoadDrivers(ctx, dec.RunID)
		if err != nil {
			t.Fatal(err)
		}
		if len(gotD) != 2 || gotD[0].Scenario != "model" || gotD[1].RunID != "" || gotD[1].BatchID != dec.RunID {
			t.Errorf("drivers round trip = %+v", gotD)
		}
		if _, err := s.WriteDrivers(ctx, dec.RunID, drivers); !errors.Is(err, ErrRunImmutable) {
			t.Errorf("second driver write: %v", err)
		}
	})

	t.Run("member inputs replace the set", func(t *testing.T) {
		s := newStore(t)
		sex, months := "F", int32(6)
		rows := []model.MemberRow{
			{MemberID: "2", DateOfBirth: "1990-01-01", Diagnoses: []string{"E119"}},
			{MemberID: "1", DateOfBirth: "1983-06-15", Sex: &sex, EnrollmentMonths: &months, Diagnoses: []string{"I509"}},
		}
		if _, err := s.WriteMemberInputs(ctx, "q1", rows); err != nil {
			t.Fatal(err)
		}
		if _, err := s.WriteMemberInputs(ctx, "q1", rows[1:]); err != nil {
			t.Fatal(err)
		}
		got, err := s.LoadMemberInputs(ctx, "q1")
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 || got[0].MemberID != "1" || *got[0].Sex != "F" || *got[0].EnrollmentMonths != 6 {
			t.Errorf("inputs = %+v", got)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(*testing.T) Store { return NewMemoryStore() })
}

func TestMemoryStore_AuditKept(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	run := registerScoring(t, s)
	audit := Audit{Skips: []model.MemberSkip{{MemberID: "M9", Reason: "bad dob"}}}
	if _, err := s.WriteScores(ctx, run.RunID, feed(), audit); err != nil {
		t.Fatal(err)
	}
	if got := s.Audit(run.RunID); len(got.Skips) != 1 {
		t.Errorf("audit = %+v", got)
	}
}

func TestMemoryStore_CancelledWrite(t *testing.T) {
	s := NewMemoryStore()
	run := registerScoring(t, s)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.WriteScores(ctx, run.RunID, make(chan *model.RiskScoreRecord), Audit{}); !errors.Is(err, context.Canceled) {
		t.Errorf("WriteScores: %v", err)
	}
}
