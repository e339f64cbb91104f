package scoring

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"testing"

	"github.com/gyeh/hccscore/internal/model"
	"github.com/gyeh/hccscore/internal/refdata"
)

func TestCalculator_DiabetesHeartFailureDepression(t *testing.T) {
	calc := NewCalculator(sampleSet(t), DefaultOptions())
	rec, findings, err := calc.Score(context.Background(), adultF("m1", "E1165", "I509", "F329"))
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if len(findings) != 0 {
		t.Errorf("unexpected findings: %v", findings)
	}

	if !approx(rec.TotalScore, 2.894, 1e-9) {
		t.Errorf("total = %.6f, want 2.894", rec.TotalScore)
	}
	if !approx(rec.DemographicFactor, 0.246, 1e-9) {
		t.Errorf("demographic = %.6f, want 0.246", rec.DemographicFactor)
	}
	if !approx(rec.CategorySubtotal, 2.648, 1e-9) {
		t.Errorf("subtotal = %.6f, want 2.648", rec.CategorySubtotal)
	}
	if rec.SubModel != "Adult" || rec.Age != 42 {
		t.Errorf("sub-model/age = %s/%d", rec.SubModel, rec.Age)
	}

	want := []string{"FAGE_LAST_40_44", "HHS_HCC088", "HHS_HCC130", "G01"}
	if !reflect.DeepEqual(rec.Variables, want) {
		t.Errorf("variables = %v, want %v", rec.Variables, want)
	}
	if slices.Contains(rec.Variables, "HHS_HCC021") {
		t.Error("grouped constituent HHS_HCC021 should not be scored under replace")
	}

	g := rec.Components[len(rec.Components)-1]
	if g.Type != model.ComponentGroup || !reflect.DeepEqual(g.GroupedFrom, []string{"HHS_HCC021"}) ||
		!reflect.DeepEqual(g.SourceDiagnoses, []string{"E1165"}) {
		t.Errorf("group component = %+v", g)
	}
	if err := CheckInvariant(rec); err != nil {
		t.Error(err)
	}
}

func TestCalculator_EmptyDiagnoses(t *testing.T) {
	calc := NewCalculator(sampleSet(t), DefaultOptions())
	rec, _, err := calc.Score(context.Background(), adultF("m1"))
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if !reflect.DeepEqual(rec.Variables, []string{"FAGE_LAST_40_44"}) {
		t.Errorf("variables = %v", rec.Variables)
	}
	if rec.TotalScore != rec.DemographicFactor {
		t.Errorf("total %.6f != demographic %.6f", rec.TotalScore, rec.DemographicFactor)
	}
	if len(rec.PaymentVariables()) != 0 {
		t.Errorf("payment variables = %v", rec.PaymentVariables())
	}
}

func TestCalculator_HierarchyInsideGroup(t *testing.T) {
	calc := NewCalculator(sampleSet(t), DefaultOptions())
	rec, _, err := calc.Score(context.Background(), adultF("m1", "E1110", "E1165"))
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if !reflect.DeepEqual(rec.PaymentVariables(), []string{"G01"}) {
		t.Fatalf("payment variables = %v", rec.PaymentVariables())
	}
	g := rec.Components[1]
	if !reflect.DeepEqual(g.GroupedFrom, []string{"HHS_HCC019"}) {
		t.Errorf("grouped from = %v", g.GroupedFrom)
	}
	if !reflect.DeepEqual(g.Superseded, []string{"HHS_HCC021"}) {
		t.Errorf("superseded = %v", g.Superseded)
	}
}

func TestCalculator_AdditiveGrouping(t *testing.T) {
	opts := DefaultOptions()
	opts.GroupingPolicy = model.GroupingAdditive
	calc := NewCalculator(sampleSet(t), opts)

	rec, _, err := calc.Score(context.Background(), adultF("m1", "E1165"))
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if !reflect.DeepEqual(rec.PaymentVariables(), []string{"HHS_HCC021", "G01"}) {
		t.Errorf("payment variables = %v", rec.PaymentVariables())
	}
	if rec.Components[1].GroupedInto != "G01" {
		t.Errorf("category should record its group: %+v", rec.Components[1])
	}
	if !approx(rec.TotalScore, 0.246+0.423+0.423, 1e-9) {
		t.Errorf("total = %.6f", rec.TotalScore)
	}
}

func TestCalculator_EnrollmentDuration(t *testing.T) {
	calc := NewCalculator(sampleSet(t), DefaultOptions())
	ctx := context.Background()

	m := adultF("m1", "I509")
	m.EnrollmentMonths = 3
	rec, _, err := calc.Score(ctx, m)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	last := rec.Components[len(rec.Components)-1]
	if last.Type != model.ComponentEnrollment || last.Code != "HCC_ED3" || !approx(last.Coefficient, 0.300, 1e-12) {
		t.Errorf("enrollment component = %+v", last)
	}
	if !approx(rec.TotalScore, 0.246+1.820+0.300, 1e-9) {
		t.Errorf("total = %.6f", rec.TotalScore)
	}

	tests := []struct {
		name string
		m    *model.MemberInput
	}{
		{"no payment variable", func() *model.MemberInput { m := adultF("m2"); m.EnrollmentMonths = 3; return m }()},
		{"seven months", func() *model.MemberInput { m := adultF("m3", "I509"); m.EnrollmentMonths = 7; return m }()},
		{"child", func() *model.MemberInput {
			m := adultF("m4", "I509")
			m.DateOfBirth = date("2015-01-01")
			m.EnrollmentMonths = 3
			return m
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _, err := calc.Score(ctx, tt.m)
			if err != nil {
				t.Fatalf("Score: %v", err)
			}
			for _, c := range rec.Components {
				if c.Type == model.ComponentEnrollment {
					t.Errorf("unexpected enrollment component %s", c.Code)
				}
			}
		})
	}
}

func TestCalculator_Idempotent(t *testing.T) {
	calc := NewCalculator(sampleSet(t), DefaultOptions())
	m := adultF("m1", "E1122", "I509", "C509", "F319", "BOGUS1")

	a, _, err := calc.Score(context.Background(), m)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	b, _, err := calc.Score(context.Background(), m)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("records differ:\n%+v\n%+v", a, b)
	}
	if a.InputHash == "" || a.InputHash != b.InputHash {
		t.Errorf("input hash %q / %q", a.InputHash, b.InputHash)
	}
}

func TestCalculator_MissingCoefficient(t *testing.T) {
	tables := refdata.SampleTables()
	kept := tables.Coefficients[:0]
	for _, c := range tables.Coefficients {
		if c.SubModel == "Adult" && c.Variable == "HHS_HCC130" && c.Tier == "silver" {
			continue
		}
		kept = append(kept, c)
	}
	tables.Coefficients = kept

	calc := NewCalculator(mustTableSet(t, tables), DefaultOptions())
	_, _, err := calc.Score(context.Background(), adultF("m1", "I509"))
	if !errors.Is(err, ErrMissingCoefficient) {
		t.Fatalf("expected ErrMissingCoefficient, got %v", err)
	}
	if errors.Is(err, ErrInvalidMemberInput) {
		t.Error("missing coefficient must not look like a member problem")
	}
}

func TestCalculator_BasisDateOverride(t *testing.T) {
	opts := DefaultOptions()
	opts.BasisDate = date("2025-06-14")
	calc := NewCalculator(sampleSet(t), opts)

	rec, _, err := calc.Score(context.Background(), adultF("m1"))
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if rec.Age != 41 || rec.DemographicVariable != "FAGE_LAST_40_44" {
		t.Errorf("age/variable = %d/%s", rec.Age, rec.DemographicVariable)
	}
}
