// Package compare aligns two persisted scoring runs member by member.
package compare

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/gyeh/hccscore/internal/model"
)

// ErrMalformedRun fails the whole comparison.
var ErrMalformedRun = errors.New("malformed run")

// Run is one side of a comparison.
type Run struct {
	RunID   string
	Records []model.RiskScoreRecord
}

// Summary counts the outcome of a comparison.
type Summary struct {
	Matched   int
	AOnly     int
	BOnly     int
	Changed   int // matched members whose score moved
	MeanDelta float64
}

// Compare performs a full outer join of a and b on member id. Records come
// back sorted by member id. Delta is b - a and is set only for matched
// members; Added and Removed compare the surviving categories of b against a.
func Compare(a, b Run) ([]model.ComparisonRecord, Summary, error) {
	ia, err := index(a)
	if err != nil {
		return nil, Summary{}, err
	}
	ib, err := index(b)
	if err != nil {
		return nil, Summary{}, err
	}

	ids := make([]string, 0, len(ia)+len(ib))
	for id := range ia {
		ids = append(ids, id)
	}
	for id := range ib {
		if _, ok := ia[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var sum Summary
	var deltaTotal float64
	out := make([]model.ComparisonRecord, 0, len(ids))
	for _, id := range ids {
		ra, inA := ia[id]
		rb, inB := ib[id]
		rec := model.ComparisonRecord{RunIDA: a.RunID, RunIDB: b.RunID, MemberID: id}

		switch {
		case inA && inB:
			rec.Status = model.MatchBoth
			sa, sb := ra.TotalScore, rb.TotalScore
			d := sb - sa
			rec.ScoreA, rec.ScoreB, rec.Delta = &sa, &sb, &d
			va, vb := ra.SurvivingCategories(), rb.SurvivingCategories()
			rec.Added = difference(vb, va)
			rec.Removed = difference(va, vb)
			sum.Matched++
			deltaTotal += d
			if d != 0 {
				sum.Changed++
			}
		case inA:
			rec.Status = model.MatchAOnly
			sa := ra.TotalScore
			rec.ScoreA = &sa
			sum.AOnly++
		default:
			rec.Status = model.MatchBOnly
			sb := rb.TotalScore
			rec.ScoreB = &sb
			sum.BOnly++
		}
		rec.Added, rec.Removed = nonNil(rec.Added), nonNil(rec.Removed)
		out = append(out, rec)
	}
	if sum.Matched > 0 {
		sum.MeanDelta = deltaTotal / float64(sum.Matched)
	}
	return out, sum, nil
}

func index(r Run) (map[string]*model.RiskScoreRecord, error) {
	if r.RunID == "" {
		return nil, fmt.Errorf("%w: empty run id", ErrMalformedRun)
	}
	idx := make(map[string]*model.RiskScoreRecord, len(r.Records))
	for i := range r.Records {
		rec := &r.Records[i]
		switch {
		case rec.MemberID == "":
			return nil, fmt.Errorf("%w: run %s record %d has no member id", ErrMalformedRun, r.RunID, i)
		case rec.RunID != "" && rec.RunID != r.RunID:
			return nil, fmt.Errorf("%w: run %s contains a record from run %s", ErrMalformedRun, r.RunID, rec.RunID)
		case math.IsNaN(rec.TotalScore) || math.IsInf(rec.TotalScore, 0):
			return nil, fmt.Errorf("%w: run %s member %s has non-finite score", ErrMalformedRun, r.RunID, rec.MemberID)
		}
		if _, dup := idx[rec.MemberID]; dup {
			return nil, fmt.Errorf("%w: run %s has member %s twice", ErrMalformedRun, r.RunID, rec.MemberID)
		}
		idx[rec.MemberID] = rec
	}
	return idx, nil
}

// difference returns the sorted members of x not in y.
func difference(x, y []string) []string {
	in := make(map[string]bool, len(y))
	for _, v := range y {
		in[v] = true
	}
	var out []string
	for _, v := range x {
		if !in[v] {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
