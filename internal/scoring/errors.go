package scoring

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMemberInput is per-member: the batch skips the member and
	// carries on.
	ErrInvalidMemberInput = errors.New("invalid member input")

	// The remaining errors mean the reference data or configuration is
	// unusable and abort the batch.
	ErrMissingCoefficient = errors.New("missing coefficient")
	ErrAmbiguousGrouping  = errors.New("ambiguous grouping")
	ErrScoreInvariant     = errors.New("score invariant violated")
)

// MemberError ties an ErrInvalidMemberInput to the member and reason.
type MemberError struct {
	MemberID string
	Reason   string
}

func (e *MemberError) Error() string {
	return fmt.Sprintf("member %s: %s", e.MemberID, e.Reason)
}

func (e *MemberError) Unwrap() error {
	return ErrInvalidMemberInput
}

func invalidMember(id, format string, args ...any) error {
	return &MemberError{MemberID: id, Reason: fmt.Sprintf(format, args...)}
}
