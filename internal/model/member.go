package model

import "time"

// MemberInput is one member as seen by the scorer. Diagnoses are expected to be
// normalised and deduplicated by the caller (see normalize.ToMemberInput).
type MemberInput struct {
	MemberID         string
	DateOfBirth      time.Time
	Sex              string // "M" or "F"
	Tier             string // metal tier, e.g. "silver"
	EnrollmentMonths int
	Diagnoses        []string
	PharmacyCodes    []string // carried and persisted, never scored
}

// MemberSkip records a member that was left out of a run because its input
// could not be scored.
type MemberSkip struct {
	MemberID string `json:"member_id"`
	Reason   string `json:"reason"`
}
