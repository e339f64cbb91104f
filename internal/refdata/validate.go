package refdata

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gyeh/hccscore/internal/model"
	"github.com/gyeh/hccscore/internal/normalize"
)

// NewTableSet validates raw tables and builds the immutable, indexed set.
// Hierarchy cycles fail with ErrInvalidHierarchy, groups that reference
// unknown categories with ErrInvalidGrouping, anything else structurally
// wrong with ErrInvalidReference.
func NewTableSet(t *Tables) (*TableSet, error) {
	if err := validateManifest(&t.Manifest); err != nil {
		return nil, err
	}
	policy, _ := model.ParseGroupingPolicy(t.Manifest.GroupingPolicy)
	if policy == "" {
		policy = model.GroupingReplace
	}

	ts := &TableSet{
		manifest:     t.Manifest,
		policy:       policy,
		index:        make(map[string]int, len(t.Categories)),
		dx:           make(map[string][]string, len(t.Diagnoses)),
		groups:       make(map[string]map[string][]string),
		groupsOf:     make(map[string]map[string][]string),
		demographics: make(map[string][]DemographicRow),
		coefficients: make(map[coefKey]decimal.Decimal, len(t.Coefficients)),
		exclusions:   make(map[string]map[string]struct{}),
	}

	if err := ts.buildCategories(t.Categories); err != nil {
		return nil, err
	}
	if err := ts.buildHierarchy(t.Hierarchy); err != nil {
		return nil, err
	}
	if err := ts.buildDiagnoses(t.Diagnoses); err != nil {
		return nil, err
	}
	if err := ts.buildGroups(t.Groups); err != nil {
		return nil, err
	}
	if err := ts.buildDemographics(t.Demographics); err != nil {
		return nil, err
	}
	if err := ts.buildCoefficients(t.Coefficients); err != nil {
		return nil, err
	}
	if err := ts.buildExclusions(t.Exclusions); err != nil {
		return nil, err
	}
	return ts, nil
}

func validateManifest(m *Manifest) error {
	if m.Version == "" {
		return fmt.Errorf("%w: manifest has no version", ErrInvalidReference)
	}
	if len(m.Tiers) == 0 {
		return fmt.Errorf("%w: manifest %s lists no tiers", ErrInvalidReference, m.Version)
	}
	if len(m.SubModels) == 0 {
		return fmt.Errorf("%w: manifest %s lists no sub-models", ErrInvalidReference, m.Version)
	}
	if _, err := model.ParseGroupingPolicy(m.GroupingPolicy); err != nil {
		return fmt.Errorf("%w: manifest %s: %v", ErrInvalidReference, m.Version, err)
	}
	seen := make(map[string]bool, len(m.SubModels))
	for _, sm := range m.SubModels {
		if sm.Name == "" || seen[sm.Name] {
			return fmt.Errorf("%w: sub-model name %q empty or repeated", ErrInvalidReference, sm.Name)
		}
		seen[sm.Name] = true
		if sm.MaxAge >= 0 && sm.MaxAge < sm.MinAge {
			return fmt.Errorf("%w: sub-model %s has max_age < min_age", ErrInvalidReference, sm.Name)
		}
	}
	if r := m.Enrollment; r != nil {
		if r.Prefix == "" || r.MaxMonths <= 0 {
			return fmt.Errorf("%w: enrollment_duration needs variable_prefix and max_months", ErrInvalidReference)
		}
		for _, name := range r.SubModels {
			if !seen[name] {
				return fmt.Errorf("%w: enrollment_duration names unknown sub-model %s", ErrInvalidReference, name)
			}
		}
	}
	return nil
}

func (ts *TableSet) knownSubModel(name string) bool {
	for _, sm := range ts.manifest.SubModels {
		if sm.Name == name {
			return true
		}
	}
	return false
}

func (ts *TableSet) buildCategories(rows []CategoryRow) error {
	if len(rows) == 0 {
		return fmt.Errorf("%w: category table is empty", ErrInvalidReference)
	}
	sorted := append([]CategoryRow(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Category < sorted[j].Category })

	ts.nodes = make([]node, 0, len(sorted))
	for _, r := range sorted {
		code := strings.TrimSpace(r.Category)
		if code == "" {
			return fmt.Errorf("%w: empty category code", ErrInvalidReference)
		}
		if _, dup := ts.index[code]; dup {
			return fmt.Errorf("%w: category %s declared twice", ErrInvalidReference, code)
		}
		ts.index[code] = len(ts.nodes)
		ts.nodes = append(ts.nodes, node{code: code, label: r.Label})
	}
	return nil
}

// buildHierarchy wires edges into the node arena, rejects cycles, then
// computes ranks and transitive reach sets.
func (ts *TableSet) buildHierarchy(rows []HierarchyRow) error {
	for _, e := range rows {
		from, ok := ts.index[e.Superior]
		if !ok {
			return fmt.Errorf("%w: edge %s -> %s references unknown category %s", ErrInvalidHierarchy, e.Superior, e.Inferior, e.Superior)
		}
		to, ok := ts.index[e.Inferior]
		if !ok {
			return fmt.Errorf("%w: edge %s -> %s references unknown category %s", ErrInvalidHierarchy, e.Superior, e.Inferior, e.Inferior)
		}
		if !slices.Contains(ts.nodes[from].out, to) {
			ts.nodes[from].out = append(ts.nodes[from].out, to)
		}
	}
	for i := range ts.nodes {
		sort.Ints(ts.nodes[i].out)
	}

	order, err := ts.topoOrder()
	if err != nil {
		return err
	}

	for _, i := range order {
		for _, j := range ts.nodes[i].out {
			if r := ts.nodes[i].rank + 1; r > ts.nodes[j].rank {
				ts.nodes[j].rank = r
			}
		}
	}

	// Reverse topological order: every inferior's reach is final before its
	// superiors read it.
	reach := make([]map[int]struct{}, len(ts.nodes))
	for k := len(order) - 1; k >= 0; k-- {
		i := order[k]
		set := make(map[int]struct{})
		for _, j := range ts.nodes[i].out {
			set[j] = struct{}{}
			for d := range reach[j] {
				set[d] = struct{}{}
			}
		}
		reach[i] = set
		codes := make([]string, 0, len(set))
		for d := range set {
			codes = append(codes, ts.nodes[d].code)
		}
		sort.Strings(codes)
		ts.nodes[i].reach = codes
	}
	return nil
}

// topoOrder returns node indexes with every superior before its inferiors,
// or a *CycleError naming the first cycle found.
func (ts *TableSet) topoOrder() ([]int, error) {
	const (
		white = iota
		grey
		black
	)
	color := make([]int, len(ts.nodes))
	path := make([]int, 0, len(ts.nodes))
	post := make([]int, 0, len(ts.nodes))

	var visit func(i int) error
	visit = func(i int) error {
		color[i] = grey
		path = append(path, i)
		for _, j := range ts.nodes[i].out {
			switch color[j] {
			case white:
				if err := visit(j); err != nil {
					return err
				}
			case grey:
				start := 0
				for k, n := range path {
					if n == j {
						start = k
						break
					}
				}
				cycle := make([]string, 0, len(path)-start+1)
				for _, n := range path[start:] {
					cycle = append(cycle, ts.nodes[n].code)
				}
				cycle = append(cycle, ts.nodes[j].code)
				return &CycleError{Path: cycle}
			}
		}
		path = path[:len(path)-1]
		color[i] = black
		post = append(post, i)
		return nil
	}

	for i := range ts.nodes {
		if color[i] == white {
			if err := visit(i); err != nil {
				return nil, err
			}
		}
	}

	order := make([]int, len(post))
	for k, i := range post {
		order[len(post)-1-k] = i
	}
	return order, nil
}

func (ts *TableSet) buildDiagnoses(rows []DiagnosisRow) error {
	for _, r := range rows {
		dx := normalize.DiagnosisCode(r.Diagnosis)
		if dx == "" {
			return fmt.Errorf("%w: empty diagnosis code mapped to %s", ErrInvalidReference, r.Category)
		}
		if !ts.IsCategory(r.Category) {
			return fmt.Errorf("%w: diagnosis %s maps to unknown category %s", ErrInvalidReference, dx, r.Category)
		}
		if !slices.Contains(ts.dx[dx], r.Category) {
			ts.dx[dx] = append(ts.dx[dx], r.Category)
		}
	}
	for dx := range ts.dx {
		sort.Strings(ts.dx[dx])
	}
	return nil
}

func (ts *TableSet) buildGroups(rows []GroupRow) error {
	for _, r := range rows {
		if !ts.knownSubModel(r.SubModel) {
			return fmt.Errorf("%w: group %s uses unknown sub-model %s", ErrInvalidGrouping, r.Group, r.SubModel)
		}
		if r.Group == "" {
			return fmt.Errorf("%w: empty group name", ErrInvalidGrouping)
		}
		if ts.IsCategory(r.Group) {
			return fmt.Errorf("%w: group %s collides with a category code", ErrInvalidGrouping, r.Group)
		}
		if !ts.IsCategory(r.Category) {
			return fmt.Errorf("%w: group %s references unknown category %s", ErrInvalidGrouping, r.Group, r.Category)
		}
		if ts.groups[r.SubModel] == nil {
			ts.groups[r.SubModel] = make(map[string][]string)
			ts.groupsOf[r.SubModel] = make(map[string][]string)
		}
		if !slices.Contains(ts.groups[r.SubModel][r.Group], r.Category) {
			ts.groups[r.SubModel][r.Group] = append(ts.groups[r.SubModel][r.Group], r.Category)
			ts.groupsOf[r.SubModel][r.Category] = append(ts.groupsOf[r.SubModel][r.Category], r.Group)
		}
	}
	for sm := range ts.groups {
		for g := range ts.groups[sm] {
			sort.Strings(ts.groups[sm][g])
		}
		for c := range ts.groupsOf[sm] {
			sort.Strings(ts.groupsOf[sm][c])
		}
	}
	return nil
}

func (ts *TableSet) buildDemographics(rows []DemographicRow) error {
	for _, r := range rows {
		if !ts.knownSubModel(r.SubModel) {
			return fmt.Errorf("%w: demographic %s uses unknown sub-model %s", ErrInvalidReference, r.Variable, r.SubModel)
		}
		if r.Sex != "M" && r.Sex != "F" {
			return fmt.Errorf("%w: demographic %s has sex %q", ErrInvalidReference, r.Variable, r.Sex)
		}
		if r.AgeMax < r.AgeMin || r.Variable == "" {
			return fmt.Errorf("%w: demographic bucket %q is malformed", ErrInvalidReference, r.Variable)
		}
		for _, o := range ts.demographics[r.SubModel] {
			if o.Sex == r.Sex && r.AgeMin <= o.AgeMax && o.AgeMin <= r.AgeMax {
				return fmt.Errorf("%w: demographic buckets %s and %s overlap", ErrInvalidReference, o.Variable, r.Variable)
			}
		}
		ts.demographics[r.SubModel] = append(ts.demographics[r.SubModel], r)
	}
	return nil
}

func (ts *TableSet) buildCoefficients(rows []CoefficientRow) error {
	for _, r := range rows {
		if !ts.knownSubModel(r.SubModel) {
			return fmt.Errorf("%w: coefficient %s uses unknown sub-model %s", ErrInvalidReference, r.Variable, r.SubModel)
		}
		if !ts.HasTier(r.Tier) {
			return fmt.Errorf("%w: coefficient %s uses unknown tier %s", ErrInvalidReference, r.Variable, r.Tier)
		}
		v, err := decimal.NewFromString(strings.TrimSpace(r.Coefficient))
		if err != nil {
			return fmt.Errorf("%w: coefficient %s/%s/%s: %v", ErrInvalidReference, r.SubModel, r.Variable, r.Tier, err)
		}
		k := coefKey{r.SubModel, r.Variable, r.Tier}
		if _, dup := ts.coefficients[k]; dup {
			return fmt.Errorf("%w: coefficient %s/%s/%s declared twice", ErrInvalidReference, r.SubModel, r.Variable, r.Tier)
		}
		ts.coefficients[k] = v
	}
	return nil
}

func (ts *TableSet) buildExclusions(rows []ExclusionRow) error {
	for _, r := range rows {
		if !ts.knownSubModel(r.SubModel) {
			return fmt.Errorf("%w: exclusion uses unknown sub-model %s", ErrInvalidReference, r.SubModel)
		}
		if !ts.IsCategory(r.Category) {
			return fmt.Errorf("%w: exclusion references unknown category %s", ErrInvalidReference, r.Category)
		}
		if ts.exclusions[r.SubModel] == nil {
			ts.exclusions[r.SubModel] = make(map[string]struct{})
		}
		ts.exclusions[r.SubModel][r.Category] = struct{}{}
	}
	return nil
}
