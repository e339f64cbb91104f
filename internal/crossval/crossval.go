// Package crossval compares the output of two scorers over the same members.
// Disagreements beyond the tolerance become tolerance_violation findings;
// they are reported, never rounded away and never fatal.
package crossval

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/gyeh/hccscore/internal/model"
)

// Report summarises one cross-validation.
type Report struct {
	ScorerA     string
	ScorerB     string
	Tolerance   float64
	Compared    int
	Violations  int
	MaxAbsDelta float64
	Findings    []model.Finding
}

// Side is the output of one scorer: its records plus the members it skipped.
type Side struct {
	Name    string
	Records []*model.RiskScoreRecord
	Skipped []model.MemberSkip
}

// Compare aligns a and b by member id. A member scored by only one side, a
// score difference above tol, or a different set of payment variables each
// raise a finding.
func Compare(a, b Side, tol float64) *Report {
	rep := &Report{ScorerA: a.Name, ScorerB: b.Name, Tolerance: tol}

	ib := make(map[string]*model.RiskScoreRecord, len(b.Records))
	for _, r := range b.Records {
		ib[r.MemberID] = r
	}
	skippedA := skipSet(a.Skipped)
	skippedB := skipSet(b.Skipped)

	for _, ra := range a.Records {
		rb, ok := ib[ra.MemberID]
		if !ok {
			rep.add(ra.MemberID, "coverage", fmt.Sprintf("%s scored the member, %s %s", a.Name, b.Name, missing(skippedB, ra.MemberID)))
			continue
		}
		delete(ib, ra.MemberID)
		rep.Compared++

		d := math.Abs(ra.TotalScore - rb.TotalScore)
		if d > rep.MaxAbsDelta {
			rep.MaxAbsDelta = d
		}
		if d > tol {
			rep.add(ra.MemberID, "total_score",
				fmt.Sprintf("%s=%v %s=%v |delta|=%v tolerance=%v", a.Name, ra.TotalScore, b.Name, rb.TotalScore, d, tol))
		}
		va, vb := sorted(ra.PaymentVariables()), sorted(rb.PaymentVariables())
		if !slices.Equal(va, vb) {
			rep.add(ra.MemberID, "variables", fmt.Sprintf("%s=%v %s=%v", a.Name, va, b.Name, vb))
		}
	}

	rest := make([]string, 0, len(ib))
	for id := range ib {
		rest = append(rest, id)
	}
	sort.Strings(rest)
	for _, id := range rest {
		rep.add(id, "coverage", fmt.Sprintf("%s scored the member, %s %s", b.Name, a.Name, missing(skippedA, id)))
	}
	return rep
}

func (r *Report) add(memberID, code, detail string) {
	r.Violations++
	r.Findings = append(r.Findings, model.Finding{
		MemberID: memberID,
		Kind:     model.FindingToleranceViolation,
		Code:     code,
		Detail:   detail,
	})
}

func skipSet(skips []model.MemberSkip) map[string]string {
	m := make(map[string]string, len(skips))
	for _, s := range skips {
		m[s.MemberID] = s.Reason
	}
	return m
}

func missing(skipped map[string]string, id string) string {
	if reason, ok := skipped[id]; ok {
		return "skipped it: " + reason
	}
	return "has no record"
}

func sorted(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}
