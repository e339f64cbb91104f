package normalize

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gyeh/hccscore/internal/model"
)

// ErrInvalidRow marks a member row that cannot be turned into a MemberInput.
// Callers skip such rows and report them instead of failing the batch.
var ErrInvalidRow = errors.New("invalid member row")

const (
	defaultTier             = "silver"
	defaultEnrollmentMonths = 12
)

// Options controls row conversion.
type Options struct {
	InvalidSex model.SexPolicy
	CoerceSex  string // "M" or "F", used when InvalidSex is coerce
}

// ToMemberInput converts a Parquet- or table-read MemberRow into a MemberInput.
// A missing tier defaults to silver and missing enrollment to a full year.
func ToMemberInput(row *model.MemberRow, opts Options) (*model.MemberInput, error) {
	id := strings.TrimSpace(row.MemberID)
	if id == "" {
		return nil, fmt.Errorf("%w: empty member_id", ErrInvalidRow)
	}

	dob := ParseDate(row.DateOfBirth)
	if dob == nil {
		return nil, fmt.Errorf("%w: member %s: unparseable date_of_birth %q", ErrInvalidRow, id, row.DateOfBirth)
	}

	sex, ok := Sex(row.Sex)
	if !ok {
		if opts.InvalidSex != model.SexCoerce {
			return nil, fmt.Errorf("%w: member %s: invalid sex %q", ErrInvalidRow, id, derefStr(row.Sex))
		}
		sex = opts.CoerceSex
	}

	tier := defaultTier
	if row.Tier != nil && strings.TrimSpace(*row.Tier) != "" {
		tier = strings.ToLower(strings.TrimSpace(*row.Tier))
	}

	months := defaultEnrollmentMonths
	if row.EnrollmentMonths != nil {
		months = int(*row.EnrollmentMonths)
	}

	return &model.MemberInput{
		MemberID:         id,
		DateOfBirth:      *dob,
		Sex:              sex,
		Tier:             tier,
		EnrollmentMonths: months,
		Diagnoses:        DiagnosisCodes(row.Diagnoses),
		PharmacyCodes:    DiagnosisCodes(row.PharmacyCodes),
	}, nil
}

func derefStr(s *string) string {
	if s == nil {
		return "<NULL>"
	}
	return *s
}
