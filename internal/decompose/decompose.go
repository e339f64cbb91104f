// Package decompose attributes the change in a population metric between a
// baseline run and an actual run to an ordered list of named drivers.
//
// Every step compares two runs under a population mode. Named drivers are
// measured either as a waterfall (sequential) or each against the baseline
// (marginal); a final interaction driver takes whatever the named drivers do
// not explain, so the impacts always sum to metric(actual) - metric(baseline).
package decompose

import (
	"errors"
	"fmt"
	"math"

	"github.com/gyeh/hccscore/internal/model"
)

var (
	ErrScenarioAlignment = errors.New("scenario alignment")
	ErrEmptyPopulation   = errors.New("empty population")
)

// DefaultInteractionName labels the residual driver.
const DefaultInteractionName = "Interaction"

// Component is a named driver measured by one scenario run.
type Component struct {
	Name     string
	Scenario string
}

// Request describes one decomposition. Scenarios holds the score records of
// every run referenced by Baseline, Actual and Components.
type Request struct {
	Scenarios       map[string][]model.RiskScoreRecord
	Baseline        string
	Actual          string
	Components      []Component
	Method          model.DecompositionMethod
	Metric          model.Metric
	Population      model.PopulationMode
	InteractionName string
}

// Result holds the drivers in step order plus the reconciled total.
type Result struct {
	Drivers       []model.DecompositionDriver
	Total         float64
	BaselineValue float64
	ActualValue   float64
}

// Decompose computes the drivers for req. BatchID is left for the caller.
func Decompose(req Request) (*Result, error) {
	if req.Method == "" {
		req.Method = model.MethodSequential
	}
	if req.Metric == "" {
		req.Metric = model.MetricMean
	}
	if req.Population == "" {
		req.Population = model.PopulationIntersection
	}
	if req.InteractionName == "" {
		req.InteractionName = DefaultInteractionName
	}
	if _, err := model.ParseDecompositionMethod(string(req.Method)); err != nil {
		return nil, err
	}

	runs := make(map[string]*run, len(req.Components)+2)
	lookup := func(name string) (*run, error) {
		if r, ok := runs[name]; ok {
			return r, nil
		}
		recs, ok := req.Scenarios[name]
		if !ok {
			return nil, fmt.Errorf("%w: scenario %q not provided", ErrScenarioAlignment, name)
		}
		r, err := indexRun(name, recs)
		if err != nil {
			return nil, err
		}
		runs[name] = r
		return r, nil
	}

	base, err := lookup(req.Baseline)
	if err != nil {
		return nil, err
	}
	actual, err := lookup(req.Actual)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	res.BaselineValue, res.ActualValue, err = measure(base, actual, req.Metric, req.Population)
	if err != nil {
		return nil, fmt.Errorf("%s -> %s: %w", base.name, actual.name, err)
	}
	res.Total = res.ActualValue - res.BaselineValue

	var explained float64
	prev := base
	for i, c := range req.Components {
		scen, err := lookup(c.Scenario)
		if err != nil {
			return nil, err
		}
		from := base
		if req.Method == model.MethodSequential {
			from = prev
		}
		mFrom, mTo, err := measure(from, scen, req.Metric, req.Population)
		if err != nil {
			return nil, fmt.Errorf("driver %q (%s -> %s): %w", c.Name, from.name, scen.name, err)
		}
		impact := mTo - mFrom
		explained += impact
		res.Drivers = append(res.Drivers, model.DecompositionDriver{
			StepIndex: i + 1,
			Name:      c.Name,
			Impact:    impact,
			RunID:     scen.runID,
			Scenario:  scen.name,
		})
		prev = scen
	}

	res.Drivers = append(res.Drivers, model.DecompositionDriver{
		StepIndex: len(req.Components) + 1,
		Name:      req.InteractionName,
		Impact:    res.Total - explained,
		RunID:     actual.runID,
		Scenario:  actual.name,
	})
	return res, nil
}

type run struct {
	name   string
	runID  string
	scores map[string]entry
	order  []string
}

type entry struct {
	score  float64
	months int
}

func indexRun(name string, recs []model.RiskScoreRecord) (*run, error) {
	r := &run{name: name, scores: make(map[string]entry, len(recs)), order: make([]string, 0, len(recs))}
	for i := range recs {
		rec := &recs[i]
		if rec.MemberID == "" {
			return nil, fmt.Errorf("%w: scenario %q record %d has no member id", ErrScenarioAlignment, name, i)
		}
		if math.IsNaN(rec.TotalScore) || math.IsInf(rec.TotalScore, 0) {
			return nil, fmt.Errorf("%w: scenario %q member %s has non-finite score", ErrScenarioAlignment, name, rec.MemberID)
		}
		if _, dup := r.scores[rec.MemberID]; dup {
			return nil, fmt.Errorf("%w: scenario %q has member %s twice", ErrScenarioAlignment, name, rec.MemberID)
		}
		if r.runID == "" {
			r.runID = rec.RunID
		}
		r.scores[rec.MemberID] = entry{score: rec.TotalScore, months: rec.EnrollmentMonths}
		r.order = append(r.order, rec.MemberID)
	}
	return r, nil
}
