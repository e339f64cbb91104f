package model

import (
	"sort"
	"time"
)

// ComponentType classifies a contribution to a member's score.
type ComponentType string

const (
	ComponentDemographic ComponentType = "demographic"
	ComponentCategory    ComponentType = "category"
	ComponentGroup       ComponentType = "group"
	ComponentEnrollment  ComponentType = "enrollment"
)

// ScoreComponent is one line of a member's audit trail: a variable that
// contributed a coefficient, plus where it came from.
type ScoreComponent struct {
	Type            ComponentType `json:"type"`
	Code            string        `json:"code"`
	Label           string        `json:"label,omitempty"`
	Coefficient     float64       `json:"coefficient"`
	SourceDiagnoses []string      `json:"source_diagnoses,omitempty"`
	Superseded      []string      `json:"superseded,omitempty"`
	GroupedFrom     []string      `json:"grouped_from,omitempty"`
	GroupedInto     string        `json:"grouped_into,omitempty"`
}

// RiskScoreRecord is the persisted result of scoring one member in one run.
// Records are append-only per RunID.
type RiskScoreRecord struct {
	RunID               string           `json:"run_id"`
	MemberID            string           `json:"member_id"`
	ModelVersion        string           `json:"model_version"`
	SubModel            string           `json:"sub_model"`
	Tier                string           `json:"tier"`
	Age                 int              `json:"age"`
	Sex                 string           `json:"sex"`
	EnrollmentMonths    int              `json:"enrollment_months"`
	TotalScore          float64          `json:"total_score"`
	DemographicFactor   float64          `json:"demographic_factor"`
	CategorySubtotal    float64          `json:"category_subtotal"`
	DemographicVariable string           `json:"demographic_variable"`
	Variables           []string         `json:"variables"`
	Components          []ScoreComponent `json:"components"`
	Unmapped            []string         `json:"unmapped,omitempty"`
	PharmacyCodes       []string         `json:"pharmacy_codes,omitempty"`
	InputHash           string           `json:"input_hash"`
	CreatedAt           time.Time        `json:"created_at"`
}

// PaymentVariables returns the category and group variables of the record,
// i.e. Variables without the demographic and enrollment-duration entries.
func (r *RiskScoreRecord) PaymentVariables() []string {
	out := make([]string, 0, len(r.Components))
	for _, c := range r.Components {
		if c.Type == ComponentCategory || c.Type == ComponentGroup {
			out = append(out, c.Code)
		}
	}
	return out
}

// SurvivingCategories returns the sorted categories left after hierarchy
// resolution. Constituents folded into a group are recovered from the group's
// GroupedFrom, so the set does not depend on the grouping policy.
func (r *RiskScoreRecord) SurvivingCategories() []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(r.Components))
	add := func(c string) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	for _, c := range r.Components {
		switch c.Type {
		case ComponentCategory:
			add(c.Code)
		case ComponentGroup:
			for _, g := range c.GroupedFrom {
				add(g)
			}
		}
	}
	sort.Strings(out)
	return out
}

// ScoreColumns returns the ordered column names for COPY into hcc.risk_scores.
func ScoreColumns() []string {
	return []string{
		"run_id",
		"member_id",
		"model_version",
		"sub_model",
		"tier",
		"age",
		"sex",
		"enrollment_months",
		"total_score",
		"demographic_factor",
		"category_subtotal",
		"demographic_variable",
		"variables",
		"components",
		"unmapped",
		"pharmacy_codes",
		"input_hash",
		"created_at",
	}
}

// CopyValues returns the record values in the same order as ScoreColumns(),
// suitable for pgx CopyFromSource.
func (r *RiskScoreRecord) CopyValues() []any {
	return []any{
		r.RunID,
		r.MemberID,
		r.ModelVersion,
		r.SubModel,
		r.Tier,
		int32(r.Age),
		r.Sex,
		int32(r.EnrollmentMonths),
		r.TotalScore,
		r.DemographicFactor,
		r.CategorySubtotal,
		r.DemographicVariable,
		nonNil(r.Variables),
		r.Components,
		nonNil(r.Unmapped),
		nonNil(r.PharmacyCodes),
		r.InputHash,
		r.CreatedAt,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
