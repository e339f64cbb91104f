package scoring

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/gyeh/hccscore/internal/model"
	"github.com/gyeh/hccscore/internal/normalize"
	"github.com/gyeh/hccscore/internal/refdata"
)

const invariantTolerance = 1e-9

// AssembleInput collects the outputs of the earlier stages for one member.
type AssembleInput struct {
	Member         *model.MemberInput
	Classification *Classification
	Resolution     Resolution
	Grouping       *Grouping
}

// Assemble prices every final variable for the member's tier and builds the
// record. Coefficients are summed as decimals in component order. A variable
// without a coefficient is ErrMissingCoefficient.
func Assemble(in AssembleInput, ts *refdata.TableSet) (*model.RiskScoreRecord, error) {
	m, cl, gr := in.Member, in.Classification, in.Grouping
	sub, tier := cl.SubModel, m.Tier

	price := func(variable string) (decimal.Decimal, error) {
		c, ok := ts.Coefficient(sub, variable, tier)
		if !ok {
			return decimal.Zero, fmt.Errorf("%w: %s/%s/%s in model %s", ErrMissingCoefficient, sub, variable, tier, ts.Version())
		}
		return c, nil
	}

	demo, err := price(cl.DemographicVariable)
	if err != nil {
		return nil, err
	}
	components := []model.ScoreComponent{{
		Type:        model.ComponentDemographic,
		Code:        cl.DemographicVariable,
		Coefficient: demo.InexactFloat64(),
	}}
	subtotal := decimal.Zero

	for _, c := range gr.Categories {
		coef, err := price(c)
		if err != nil {
			return nil, err
		}
		subtotal = subtotal.Add(coef)
		components = append(components, model.ScoreComponent{
			Type:            model.ComponentCategory,
			Code:            c,
			Label:           ts.Label(c),
			Coefficient:     coef.InexactFloat64(),
			SourceDiagnoses: cl.Lineage[c],
			Superseded:      in.Resolution.SupersededBy[c],
			GroupedInto:     gr.GroupedInto[c],
		})
	}

	for _, g := range gr.Groups {
		coef, err := price(g)
		if err != nil {
			return nil, err
		}
		subtotal = subtotal.Add(coef)
		var sources, superseded []string
		for _, c := range gr.GroupedFrom[g] {
			sources = append(sources, cl.Lineage[c]...)
			superseded = append(superseded, in.Resolution.SupersededBy[c]...)
		}
		components = append(components, model.ScoreComponent{
			Type:            model.ComponentGroup,
			Code:            g,
			Coefficient:     coef.InexactFloat64(),
			SourceDiagnoses: sortedSet(sources),
			Superseded:      sortedSet(superseded),
			GroupedFrom:     gr.GroupedFrom[g],
		})
	}

	payment := len(gr.Categories) + len(gr.Groups)
	if v, ok := enrollmentVariable(ts.EnrollmentRule(), sub, m.EnrollmentMonths, payment); ok {
		coef, err := price(v)
		if err != nil {
			return nil, err
		}
		subtotal = subtotal.Add(coef)
		components = append(components, model.ScoreComponent{
			Type:        model.ComponentEnrollment,
			Code:        v,
			Coefficient: coef.InexactFloat64(),
		})
	}

	total := demo.Add(subtotal)
	rec := &model.RiskScoreRecord{
		MemberID:            m.MemberID,
		ModelVersion:        ts.Version(),
		SubModel:            sub,
		Tier:                tier,
		Age:                 cl.Age,
		Sex:                 m.Sex,
		EnrollmentMonths:    m.EnrollmentMonths,
		TotalScore:          total.InexactFloat64(),
		DemographicFactor:   demo.InexactFloat64(),
		CategorySubtotal:    subtotal.InexactFloat64(),
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

	if err := CheckInvariant(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// CheckInvariant verifies total = demographic factor + every other component
// coefficient, within 1e-9.
func CheckInvariant(rec *model.RiskScoreRecord) error {
	sum := rec.DemographicFactor
	for _, c := range rec.Components {
		if c.Type != model.ComponentDemographic {
			sum += c.Coefficient
		}
	}
	if d := math.Abs(rec.TotalScore - sum); d > invariantTolerance {
		return fmt.Errorf("%w: member %s total %.12f differs from component sum %.12f",
			ErrScoreInvariant, rec.MemberID, rec.TotalScore, sum)
	}
	return nil
}

// enrollmentVariable returns the duration variable for partial-year members
// of a covered sub-model who have at least one payment variable.
func enrollmentVariable(rule *refdata.EnrollmentRule, subModel string, months, payment int) (string, bool) {
	if rule == nil || payment == 0 || months < 1 || months > rule.MaxMonths {
		return "", false
	}
	if !slices.Contains(rule.SubModels, subModel) {
		return "", false
	}
	return fmt.Sprintf("%s%d", rule.Prefix, months), true
}

func sortedSet(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	out := append([]string(nil), s...)
	sort.Strings(out)
	return slices.Compact(out)
}
