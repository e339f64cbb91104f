package decompose

import (
	"github.com/gyeh/hccscore/internal/model"
)

// measure evaluates the metric on both sides of a step over the population
// selected by mode.
func measure(from, to *run, metric model.Metric, mode model.PopulationMode) (float64, float64, error) {
	pairs, err := align(from, to, mode)
	if err != nil {
		return 0, 0, err
	}
	if len(pairs) == 0 {
		return 0, 0, ErrEmptyPopulation
	}
	a, err := aggregate(pairs, metric, func(p pair) entry { return p.from })
	if err != nil {
		return 0, 0, err
	}
	b, err := aggregate(pairs, metric, func(p pair) entry { return p.to })
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

type pair struct {
	from, to entry
}

// align joins two runs. A member missing from the non-anchoring side scores
// zero but keeps the enrollment months of the side it was found on.
func align(from, to *run, mode model.PopulationMode) ([]pair, error) {
	var out []pair
	switch mode {
	case model.PopulationIntersection:
		for _, id := range from.order {
			if t, ok := to.scores[id]; ok {
				out = append(out, pair{from: from.scores[id], to: t})
			}
		}
	case model.PopulationBaseline:
		for _, id := range from.order {
			f := from.scores[id]
			t, ok := to.scores[id]
			if !ok {
				t = entry{months: f.months}
			}
			out = append(out, pair{from: f, to: t})
		}
	case model.PopulationScenario:
		for _, id := range to.order {
			t := to.scores[id]
			f, ok := from.scores[id]
			if !ok {
				f = entry{months: t.months}
			}
			out = append(out, pair{from: f, to: t})
		}
	default:
		_, err := model.ParsePopulationMode(string(mode))
		return nil, err
	}
	return out, nil
}

func aggregate(pairs []pair, metric model.Metric, side func(pair) entry) (float64, error) {
	var sum, weight float64
	for _, p := range pairs {
		e := side(p)
		switch metric {
		case model.MetricMemberMonthMean:
			sum += e.score * float64(e.months)
			weight += float64(e.months)
		default:
			sum += e.score
			weight++
		}
	}
	switch metric {
	case model.MetricSum:
		return sum, nil
	case model.MetricMean, model.MetricMemberMonthMean:
		if weight == 0 {
			return 0, ErrEmptyPopulation
		}
		return sum / weight, nil
	default:
		_, err := model.ParseMetric(string(metric))
		return 0, err
	}
}
