package model

// FindingKind classifies a non-fatal observation made while scoring or
// cross-validating.
type FindingKind string

const (
	FindingUnmappedDiagnosis  FindingKind = "unmapped_diagnosis"
	FindingAmbiguousGrouping  FindingKind = "ambiguous_grouping"
	FindingToleranceViolation FindingKind = "tolerance_violation"
)

// Finding is a non-fatal observation about one member.
type Finding struct {
	MemberID string      `json:"member_id"`
	Kind     FindingKind `json:"kind"`
	Code     string      `json:"code,omitempty"`
	Detail   string      `json:"detail,omitempty"`
}
