package scoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gyeh/hccscore/internal/model"
	"github.com/gyeh/hccscore/internal/normalize"
	"github.com/gyeh/hccscore/internal/refdata"
)

type maskGroup struct {
	name    string
	members bitset
}

type priceKey struct {
	subModel, variable, tier string
}

// MaskScorer is a second scoring backend. Hierarchy closure and group
// membership are precomputed as bitsets and coefficients as float64, so a
// member is resolved with a few word operations. It shares classification
// with Calculator and exists to cross-check it.
type MaskScorer struct {
	ts     *refdata.TableSet
	opts   Options
	policy model.GroupingPolicy

	codes  []string
	index  map[string]int
	reach  []bitset
	groups map[string][]maskGroup
	prices map[priceKey]float64
}

// NewMaskScorer precomputes the bitsets for ts.
func NewMaskScorer(ts *refdata.TableSet, opts Options) *MaskScorer {
	opts.BasisDate = basisDate(ts, opts)
	policy := opts.GroupingPolicy
	if policy == "" {
		policy = ts.GroupingPolicy()
	}

	s := &MaskScorer{
		ts:     ts,
		opts:   opts,
		policy: policy,
		codes:  ts.Categories(),
		index:  make(map[string]int),
		groups: make(map[string][]maskGroup),
		prices: make(map[priceKey]float64),
	}
	for i, c := range s.codes {
		s.index[c] = i
	}

	s.reach = make([]bitset, len(s.codes))
	for i, c := range s.codes {
		b := newBitset(len(s.codes))
		for _, d := range ts.Dominated(c) {
			b.set(s.index[d])
		}
		s.reach[i] = b
	}

	for _, sm := range ts.Manifest().SubModels {
		defs := ts.Groups(sm.Name)
		for _, name := range ts.GroupNames(sm.Name) {
			b := newBitset(len(s.codes))
			for _, c := range defs[name] {
				b.set(s.index[c])
			}
			s.groups[sm.Name] = append(s.groups[sm.Name], maskGroup{name: name, members: b})
		}
	}

	ts.EachCoefficient(func(subModel, variable, tier string, c decimal.Decimal) {
		s.prices[priceKey{subModel, variable, tier}] = c.InexactFloat64()
	})
	return s
}

// groupsContaining lists, in claim order, the groups of sub whose members
// include category index i.
func (s *MaskScorer) groupsContaining(sub string, i int) []string {
	var names []string
	for _, g := range s.groups[sub] {
		if g.members.has(i) {
			names = append(names, g.name)
		}
	}
	return names
}

// Name identifies the implementation in run records.
func (s *MaskScorer) Name() string { return "mask" }

// Score resolves and prices one member using the precomputed sets.
func (s *MaskScorer) Score(ctx context.Context, m *model.MemberInput) (*model.RiskScoreRecord, []model.Finding, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	cl, findings, err := Classify(m, s.ts, s.opts.BasisDate, s.opts)
	if err != nil {
		return nil, nil, err
	}
	sub, tier := cl.SubModel, m.Tier

	price := func(variable string) (float64, error) {
		p, ok := s.prices[priceKey{sub, variable, tier}]
		if !ok {
			return 0, fmt.Errorf("%w: %s/%s/%s in model %s", ErrMissingCoefficient, sub, variable, tier, s.ts.Version())
		}
		return p, nil
	}

	present := newBitset(len(s.codes))
	for _, c := range cl.Candidates {
		present.set(s.index[c])
	}
	dominated := newBitset(len(s.codes))
	present.each(func(i int) { dominated.or(s.reach[i]) })
	surviving := present.clone()
	surviving.andNot(dominated)

	claimed := newBitset(len(s.codes))
	flagged := newBitset(len(s.codes))
	var triggered []string
	for _, g := range s.groups[sub] {
		hits := surviving.clone()
		hits.and(g.members)
		overlap := hits.clone()
		overlap.and(claimed)
		if !overlap.empty() {
			if s.opts.AmbiguityPolicy != model.AmbiguityFlag {
				first := -1
				overlap.each(func(i int) {
					if first < 0 {
						first = i
					}
				})
				return nil, nil, fmt.Errorf("%w: %s belongs to %s in %s", ErrAmbiguousGrouping,
					s.codes[first], strings.Join(s.groupsContaining(sub, first), ", "), sub)
			}
			overlap.andNot(flagged)
			overlap.each(func(i int) {
				groups := s.groupsContaining(sub, i)
				findings = append(findings, model.Finding{
					MemberID: m.MemberID,
					Kind:     model.FindingAmbiguousGrouping,
					Code:     s.codes[i],
					Detail:   fmt.Sprintf("in groups %s; attributed to %s", strings.Join(groups, ", "), groups[0]),
				})
			})
			flagged.or(overlap)
		}
		hits.andNot(claimed)
		if hits.empty() {
			continue
		}
		claimed.or(hits)
		triggered = append(triggered, g.name)
	}

	scored := surviving.clone()
	if s.policy != model.GroupingAdditive {
		scored.andNot(claimed)
	}

	demo, err := price(cl.DemographicVariable)
	if err != nil {
		return nil, nil, err
	}
	components := []model.ScoreComponent{{Type: model.ComponentDemographic, Code: cl.DemographicVariable, Coefficient: demo}}
	subtotal := 0.0

	var priceErr error
	scored.each(func(i int) {
		if priceErr != nil {
			return
		}
		p, err := price(s.codes[i])
		if err != nil {
			priceErr = err
			return
		}
		subtotal += p
		components = append(components, model.ScoreComponent{Type: model.ComponentCategory, Code: s.codes[i], Label: s.ts.Label(s.codes[i]), Coefficient: p})
	})
	if priceErr != nil {
		return nil, nil, priceErr
	}
	for _, g := range triggered {
		p, err := price(g)
		if err != nil {
			return nil, nil, err
		}
		subtotal += p
		components = append(components, model.ScoreComponent{Type: model.ComponentGroup, Code: g, Coefficient: p})
	}
	if v, ok := enrollmentVariable(s.ts.EnrollmentRule(), sub, m.EnrollmentMonths, len(components)-1); ok {
		p, err := price(v)
		if err != nil {
			return nil, nil, err
		}
		subtotal += p
		components = append(components, model.ScoreComponent{Type: model.ComponentEnrollment, Code: v, Coefficient: p})
	}

	rec := &model.RiskScoreRecord{
		MemberID:            m.MemberID,
		ModelVersion:        s.ts.Version(),
		SubModel:            sub,
		Tier:                tier,
		Age:                 cl.Age,
		Sex:                 m.Sex,
		EnrollmentMonths:    m.EnrollmentMonths,
		TotalScore:          demo + subtotal,
		DemographicFactor:   demo,
		CategorySubtotal:    subtotal,
		DemographicVariable: cl.DemographicVariable,
		Components:          components,
		Unmapped:            cl.Unmapped,
		PharmacyCodes:       m.PharmacyCodes,
		InputHash:           normalize.MemberHash(m),
	}
	rec.Variables = make([]string, len(components))
	for i, c := range components {
		rec.Variables[i] = c.Code
	}
	return rec, findings, nil
}
