package scoring

import (
	"errors"
	"reflect"
	"testing"

	"github.com/gyeh/hccscore/internal/model"
)

func TestClassify_InvalidMembers(t *testing.T) {
	ts := sampleSet(t)
	basis := ModelYearEnd(2025)

	tests := []struct {
		name   string
		mutate func(*model.MemberInput)
	}{
		{"unknown sex", func(m *model.MemberInput) { m.Sex = "U" }},
		{"born after basis", func(m *model.MemberInput) { m.DateOfBirth = date("2026-02-01") }},
		{"missing dob", func(m *model.MemberInput) { m.DateOfBirth = date("0001-01-01") }},
		{"unknown tier", func(m *model.MemberInput) { m.Tier = "tin" }},
		{"enrollment over a year", func(m *model.MemberInput) { m.EnrollmentMonths = 13 }},
		{"empty id", func(m *model.MemberInput) { m.MemberID = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := adultF("m1", "I509")
			tt.mutate(m)
			_, _, err := Classify(m, ts, basis, DefaultOptions())
			if !errors.Is(err, ErrInvalidMemberInput) {
				t.Fatalf("expected ErrInvalidMemberInput, got %v", err)
			}
			var me *MemberError
			if !errors.As(err, &me) || me.Reason == "" {
				t.Errorf("expected *MemberError with a reason, got %#v", err)
			}
		})
	}
}

func TestClassify_UnmatchedBucket(t *testing.T) {
	tables := sampleSet(t)
	m := adultF("m1")
	m.DateOfBirth = date("1800-01-01") // age 225, beyond the last bucket
	_, _, err := Classify(m, tables, ModelYearEnd(2025), DefaultOptions())
	if !errors.Is(err, ErrInvalidMemberInput) {
		t.Fatalf("expected ErrInvalidMemberInput, got %v", err)
	}
}

func TestClassify_SubModels(t *testing.T) {
	ts := sampleSet(t)
	tests := []struct {
		dob, sex string
		wantSub  string
		wantDemo string
	}{
		{"1983-06-15", "F", "Adult", "FAGE_LAST_40_44"},
		{"1960-01-01", "M", "Adult", "MAGE_LAST_60_GT"},
		{"2015-01-01", "M", "Child", "MAGE_LAST_10_14"},
		{"2025-03-01", "F", "Infant", "FAGE_LAST_0_0"},
	}
	for _, tt := range tests {
		m := adultF("m1")
		m.DateOfBirth, m.Sex = date(tt.dob), tt.sex
		c, _, err := Classify(m, ts, ModelYearEnd(2025), DefaultOptions())
		if err != nil {
			t.Fatalf("%s: %v", tt.dob, err)
		}
		if c.SubModel != tt.wantSub || c.DemographicVariable != tt.wantDemo {
			t.Errorf("%s %s: got %s/%s, want %s/%s", tt.dob, tt.sex, c.SubModel, c.DemographicVariable, tt.wantSub, tt.wantDemo)
		}
	}
}

func TestClassify_UnmappedPolicy(t *testing.T) {
	ts := sampleSet(t)
	m := adultF("m1", "I509", "z99.99", "Q000")

	opts := DefaultOptions()
	opts.UnmappedPolicy = model.UnmappedFlag
	c, findings, err := Classify(m, ts, ModelYearEnd(2025), opts)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !reflect.DeepEqual(c.Unmapped, []string{"Q000", "Z9999"}) {
		t.Errorf("unmapped = %v", c.Unmapped)
	}
	if len(findings) != 2 || findings[0].Kind != model.FindingUnmappedDiagnosis {
		t.Errorf("findings = %v", findings)
	}

	opts.UnmappedPolicy = model.UnmappedIgnore
	c, findings, err = Classify(m, ts, ModelYearEnd(2025), opts)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(findings) != 0 || len(c.Unmapped) != 2 {
		t.Errorf("ignore: findings=%v unmapped=%v", findings, c.Unmapped)
	}
}

func TestClassify_PrefixFallback(t *testing.T) {
	ts := sampleSet(t)
	m := adultF("m1", "E11659")

	c, _, err := Classify(m, ts, ModelYearEnd(2025), DefaultOptions())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(c.Candidates) != 0 {
		t.Errorf("exact mapping should not match, got %v", c.Candidates)
	}

	opts := DefaultOptions()
	opts.PrefixFallback = true
	c, _, err = Classify(m, ts, ModelYearEnd(2025), opts)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !reflect.DeepEqual(c.Candidates, []string{"HHS_HCC021"}) {
		t.Errorf("candidates = %v", c.Candidates)
	}
	if !reflect.DeepEqual(c.Lineage["HHS_HCC021"], []string{"E11659"}) {
		t.Errorf("lineage = %v", c.Lineage)
	}
}

func TestClassify_Exclusions(t *testing.T) {
	ts := sampleSet(t)
	m := adultF("m1", "F329", "I509")
	m.DateOfBirth = date("2025-03-01")

	c, _, err := Classify(m, ts, ModelYearEnd(2025), DefaultOptions())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if !reflect.DeepEqual(c.Excluded, []string{"HHS_HCC088"}) {
		t.Errorf("excluded = %v", c.Excluded)
	}
	if !reflect.DeepEqual(c.Candidates, []string{"HHS_HCC130"}) {
		t.Errorf("candidates = %v", c.Candidates)
	}
}

func TestAgeAt(t *testing.T) {
	tests := []struct {
		dob, basis string
		want       int
	}{
		{"1983-06-15", "2025-12-31", 42},
		{"1983-12-31", "2025-12-31", 42},
		{"1984-01-01", "2025-12-31", 41},
		{"2000-02-29", "2025-02-28", 24},
		{"2025-12-31", "2025-12-31", 0},
		{"2026-01-01", "2025-12-31", -1},
	}
	for _, tt := range tests {
		if got := AgeAt(date(tt.dob), date(tt.basis)); got != tt.want {
			t.Errorf("AgeAt(%s, %s) = %d, want %d", tt.dob, tt.basis, got, tt.want)
		}
	}
}
