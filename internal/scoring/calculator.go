// Package scoring turns a member's demographics and diagnoses into an HCC
// risk score with a component-level audit trail.
package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/gyeh/hccscore/internal/model"
	"github.com/gyeh/hccscore/internal/refdata"
)

// Scorer scores one member against a fixed table set. Implementations must be
// safe for concurrent use.
type Scorer interface {
	Name() string
	Score(ctx context.Context, m *model.MemberInput) (*model.RiskScoreRecord, []model.Finding, error)
}

// Calculator is the staged scorer: classify, resolve, group, assemble.
type Calculator struct {
	ts     *refdata.TableSet
	opts   Options
	policy model.GroupingPolicy
}

// NewCalculator binds a calculator to a table set.
func NewCalculator(ts *refdata.TableSet, opts Options) *Calculator {
	opts.BasisDate = basisDate(ts, opts)
	policy := opts.GroupingPolicy
	if policy == "" {
		policy = ts.GroupingPolicy()
	}
	return &Calculator{ts: ts, opts: opts, policy: policy}
}

// Name identifies the implementation in run records.
func (c *Calculator) Name() string { return "calculator" }

// Options returns the effective options, with the basis date resolved.
func (c *Calculator) Options() Options { return c.opts }

// Score runs the full pipeline for one member.
func (c *Calculator) Score(ctx context.Context, m *model.MemberInput) (*model.RiskScoreRecord, []model.Finding, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	cl, findings, err := Classify(m, c.ts, c.opts.BasisDate, c.opts)
	if err != nil {
		return nil, nil, err
	}

	res := Resolve(cl.Candidates, c.ts)

	gr, groupFindings, err := Group(m.MemberID, res.Surviving, c.ts, cl.SubModel, c.policy, c.opts.AmbiguityPolicy)
	if err != nil {
		return nil, nil, err
	}
	findings = append(findings, groupFindings...)

	rec, err := Assemble(AssembleInput{Member: m, Classification: cl, Resolution: res, Grouping: gr}, c.ts)
	if err != nil {
		return nil, nil, err
	}
	return rec, findings, nil
}

func basisDate(ts *refdata.TableSet, opts Options) time.Time {
	if !opts.BasisDate.IsZero() {
		return opts.BasisDate
	}
	return ModelYearEnd(ts.Manifest().ModelYear)
}

// NewScorer returns the scorer registered under name: "calculator" (the
// default when name is empty) or "mask".
func NewScorer(name string, ts *refdata.TableSet, opts Options) (Scorer, error) {
	switch name {
	case "", "calculator":
		return NewCalculator(ts, opts), nil
	case "mask":
		return NewMaskScorer(ts, opts), nil
	}
	return nil, fmt.Errorf("unknown scorer %q (want calculator or mask)", name)
}
