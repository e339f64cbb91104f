package refdata

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/gyeh/hccscore/internal/model"
)

// node is one category in the supersession graph.
type node struct {
	code  string
	label string
	out   []int    // direct inferiors, by index
	rank  int      // longest supersession path reaching this node
	reach []string // every category this node transitively supersedes, sorted
}

type coefKey struct {
	subModel string
	variable string
	tier     string
}

// TableSet is a validated, indexed reference bundle. It is immutable once
// built and safe to share between goroutines.
type TableSet struct {
	manifest Manifest
	policy   model.GroupingPolicy

	nodes []node
	index map[string]int

	dx map[string][]string

	// sub-model -> group -> sorted member categories
	groups map[string]map[string][]string
	// sub-model -> category -> sorted groups containing it
	groupsOf map[string]map[string][]string

	demographics map[string][]DemographicRow
	coefficients map[coefKey]decimal.Decimal
	exclusions   map[string]map[string]struct{}
}

// Manifest returns the bundle manifest.
func (ts *TableSet) Manifest() Manifest { return ts.manifest }

// Version is the model version key the set was loaded under.
func (ts *TableSet) Version() string { return ts.manifest.Version }

// GroupingPolicy is the bundle's default grouping policy.
func (ts *TableSet) GroupingPolicy() model.GroupingPolicy { return ts.policy }

// CategoriesFor returns the categories a normalised diagnosis code maps to.
func (ts *TableSet) CategoriesFor(dx string) ([]string, bool) {
	cats, ok := ts.dx[dx]
	return cats, ok
}

// IsCategory reports whether code is a known category.
func (ts *TableSet) IsCategory(code string) bool {
	_, ok := ts.index[code]
	return ok
}

// Categories returns every known category code, sorted.
func (ts *TableSet) Categories() []string {
	out := make([]string, len(ts.nodes))
	for i := range ts.nodes {
		out[i] = ts.nodes[i].code
	}
	return out
}

// Label returns the human-readable label of a category.
func (ts *TableSet) Label(code string) string {
	if i, ok := ts.index[code]; ok {
		return ts.nodes[i].label
	}
	return ""
}

// Dominated returns every category that code transitively supersedes.
func (ts *TableSet) Dominated(code string) []string {
	if i, ok := ts.index[code]; ok {
		return ts.nodes[i].reach
	}
	return nil
}

// Rank is the length of the longest supersession chain above code; roots are 0.
func (ts *TableSet) Rank(code string) int {
	if i, ok := ts.index[code]; ok {
		return ts.nodes[i].rank
	}
	return 0
}

// Groups returns the group definitions for a sub-model, keyed by group name.
func (ts *TableSet) Groups(subModel string) map[string][]string {
	return ts.groups[subModel]
}

// GroupNames returns the sub-model's group names, sorted.
func (ts *TableSet) GroupNames(subModel string) []string {
	names := make([]string, 0, len(ts.groups[subModel]))
	for g := range ts.groups[subModel] {
		names = append(names, g)
	}
	sort.Strings(names)
	return names
}

// GroupsOf returns the groups of subModel that contain category, sorted.
func (ts *TableSet) GroupsOf(subModel, category string) []string {
	return ts.groupsOf[subModel][category]
}

// Excluded reports whether category is removed for subModel.
func (ts *TableSet) Excluded(subModel, category string) bool {
	_, ok := ts.exclusions[subModel][category]
	return ok
}

// SubModelFor picks the sub-model whose age band contains age.
func (ts *TableSet) SubModelFor(age int) (string, bool) {
	for _, sm := range ts.manifest.SubModels {
		if sm.Contains(age) {
			return sm.Name, true
		}
	}
	return "", false
}

// DemographicVariable finds the exact age/sex bucket for a member.
func (ts *TableSet) DemographicVariable(subModel, sex string, age int) (string, bool) {
	for _, row := range ts.demographics[subModel] {
		if row.Sex == sex && age >= int(row.AgeMin) && age <= int(row.AgeMax) {
			return row.Variable, true
		}
	}
	return "", false
}

// Coefficient looks up a variable's coefficient for a sub-model and tier.
func (ts *TableSet) Coefficient(subModel, variable, tier string) (decimal.Decimal, bool) {
	c, ok := ts.coefficients[coefKey{subModel, variable, tier}]
	return c, ok
}

// HasTier reports whether the bundle prices the given tier.
func (ts *TableSet) HasTier(tier string) bool {
	for _, t := range ts.manifest.Tiers {
		if t == tier {
			return true
		}
	}
	return false
}

// EnrollmentRule returns the duration rule, or nil when the bundle has none.
func (ts *TableSet) EnrollmentRule() *EnrollmentRule { return ts.manifest.Enrollment }

// EachCoefficient calls fn for every coefficient in the set, in no particular order.
func (ts *TableSet) EachCoefficient(fn func(subModel, variable, tier string, c decimal.Decimal)) {
	for k, c := range ts.coefficients {
		fn(k.subModel, k.variable, k.tier, c)
	}
}
