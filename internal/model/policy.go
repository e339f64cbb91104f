package model

import "fmt"

// GroupingPolicy decides whether a triggered group replaces its constituent
// categories or is added alongside them.
type GroupingPolicy string

const (
	GroupingReplace  GroupingPolicy = "replace"
	GroupingAdditive GroupingPolicy = "additive"
)

// UnmappedPolicy controls whether unmapped diagnoses produce findings.
type UnmappedPolicy string

const (
	UnmappedIgnore UnmappedPolicy = "ignore"
	UnmappedFlag   UnmappedPolicy = "flag"
)

// AmbiguityPolicy controls what happens when a category belongs to more than
// one triggered group.
type AmbiguityPolicy string

const (
	AmbiguityFatal AmbiguityPolicy = "fatal"
	AmbiguityFlag  AmbiguityPolicy = "flag"
)

// PopulationMode selects which members a decomposition step is measured over.
type PopulationMode string

const (
	PopulationIntersection PopulationMode = "intersection"
	PopulationBaseline     PopulationMode = "baseline_population"
	PopulationScenario     PopulationMode = "scenario_population"
)

// DecompositionMethod selects how named drivers are measured.
type DecompositionMethod string

const (
	MethodSequential DecompositionMethod = "sequential"
	MethodMarginal   DecompositionMethod = "marginal"
)

// Metric is the population summary a decomposition attributes.
type Metric string

const (
	MetricMean            Metric = "mean"
	MetricSum             Metric = "sum"
	MetricMemberMonthMean Metric = "member_month_mean"
)

// SexPolicy controls how member rows with an unrecognised sex are handled.
type SexPolicy string

const (
	SexSkip   SexPolicy = "skip"
	SexCoerce SexPolicy = "coerce"
)

// ParseGroupingPolicy validates a grouping policy name. The empty string is
// accepted and means "use the reference bundle's default".
func ParseGroupingPolicy(s string) (GroupingPolicy, error) {
	switch p := GroupingPolicy(s); p {
	case "", GroupingReplace, GroupingAdditive:
		return p, nil
	}
	return "", fmt.Errorf("unknown grouping policy %q", s)
}

// ParseUnmappedPolicy validates an unmapped-diagnosis policy name.
func ParseUnmappedPolicy(s string) (UnmappedPolicy, error) {
	switch p := UnmappedPolicy(s); p {
	case UnmappedIgnore, UnmappedFlag:
		return p, nil
	}
	return "", fmt.Errorf("unknown unmapped diagnosis policy %q", s)
}

// ParseAmbiguityPolicy validates an ambiguous-grouping policy name.
func ParseAmbiguityPolicy(s string) (AmbiguityPolicy, error) {
	switch p := AmbiguityPolicy(s); p {
	case AmbiguityFatal, AmbiguityFlag:
		return p, nil
	}
	return "", fmt.Errorf("unknown ambiguous grouping policy %q", s)
}

// ParsePopulationMode validates a population mode name.
func ParsePopulationMode(s string) (PopulationMode, error) {
	switch p := PopulationMode(s); p {
	case PopulationIntersection, PopulationBaseline, PopulationScenario:
		return p, nil
	}
	return "", fmt.Errorf("unknown population mode %q", s)
}

// ParseDecompositionMethod validates a decomposition method name.
func ParseDecompositionMethod(s string) (DecompositionMethod, error) {
	switch m := DecompositionMethod(s); m {
	case MethodSequential, MethodMarginal:
		return m, nil
	}
	return "", fmt.Errorf("unknown decomposition method %q", s)
}

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(s); m {
	case MetricMean, MetricSum, MetricMemberMonthMean:
		return m, nil
	}
	return "", fmt.Errorf("unknown metric %q", s)
}

// ParseSexPolicy validates an invalid-sex policy name.
func ParseSexPolicy(s string) (SexPolicy, error) {
	switch p := SexPolicy(s); p {
	case SexSkip, SexCoerce:
		return p, nil
	}
	return "", fmt.Errorf("unknown invalid sex policy %q", s)
}
