package scoring

import (
	"sort"
	"time"

	"github.com/gyeh/hccscore/internal/model"
	"github.com/gyeh/hccscore/internal/refdata"
)

// Classification is everything decided about a member before the hierarchy
// runs.
type Classification struct {
	Age                 int
	SubModel            string
	DemographicVariable string
	// Candidates are the mapped categories left after sub-model exclusions, sorted.
	Candidates []string
	Excluded   []string
	Lineage    map[string][]string
	Unmapped   []string
}

// Classify selects the sub-model and demographic variable for m as of basis,
// then maps its diagnoses to candidate categories. Problems with the member
// itself are returned as *MemberError.
func Classify(m *model.MemberInput, ts *refdata.TableSet, basis time.Time, opts Options) (*Classification, []model.Finding, error) {
	if m.MemberID == "" {
		return nil, nil, invalidMember("", "empty member id")
	}
	if m.Sex != "M" && m.Sex != "F" {
		return nil, nil, invalidMember(m.MemberID, "sex %q is not M or F", m.Sex)
	}
	if m.DateOfBirth.IsZero() {
		return nil, nil, invalidMember(m.MemberID, "missing date of birth")
	}
	if m.EnrollmentMonths < 0 || m.EnrollmentMonths > 12 {
		return nil, nil, invalidMember(m.MemberID, "enrollment months %d outside 0..12", m.EnrollmentMonths)
	}
	if !ts.HasTier(m.Tier) {
		return nil, nil, invalidMember(m.MemberID, "tier %q is not priced by model %s", m.Tier, ts.Version())
	}

	age := AgeAt(m.DateOfBirth, basis)
	if age < 0 {
		return nil, nil, invalidMember(m.MemberID, "born after basis date %s", basis.Format("2006-01-02"))
	}
	sub, ok := ts.SubModelFor(age)
	if !ok {
		return nil, nil, invalidMember(m.MemberID, "no sub-model for age %d", age)
	}
	demo, ok := ts.DemographicVariable(sub, m.Sex, age)
	if !ok {
		return nil, nil, invalidMember(m.MemberID, "no %s demographic bucket for sex %s age %d", sub, m.Sex, age)
	}

	lineage, unmapped := MapDiagnoses(m.Diagnoses, ts, opts.PrefixFallback)

	c := &Classification{
		Age:                 age,
		SubModel:            sub,
		DemographicVariable: demo,
		Lineage:             lineage,
		Unmapped:            unmapped,
	}
	for cat := range lineage {
		if ts.Excluded(sub, cat) {
			c.Excluded = append(c.Excluded, cat)
			continue
		}
		c.Candidates = append(c.Candidates, cat)
	}
	sort.Strings(c.Candidates)
	sort.Strings(c.Excluded)

	var findings []model.Finding
	if opts.UnmappedPolicy == model.UnmappedFlag {
		for _, dx := range unmapped {
			findings = append(findings, model.Finding{
				MemberID: m.MemberID,
				Kind:     model.FindingUnmappedDiagnosis,
				Code:     dx,
				Detail:   "diagnosis not in model " + ts.Version(),
			})
		}
	}
	return c, findings, nil
}

// AgeAt returns completed years between dob and basis. Negative when dob is
// after basis.
func AgeAt(dob, basis time.Time) int {
	age := basis.Year() - dob.Year()
	if basis.Month() < dob.Month() || (basis.Month() == dob.Month() && basis.Day() < dob.Day()) {
		age--
	}
	return age
}
