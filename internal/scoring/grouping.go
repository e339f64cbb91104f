package scoring

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gyeh/hccscore/internal/model"
	"github.com/gyeh/hccscore/internal/refdata"
)

// Grouping is the outcome of folding surviving categories into groups.
type Grouping struct {
	// Categories are the categories scored individually, sorted.
	Categories []string
	// Groups are the triggered group variables, sorted.
	Groups []string
	// GroupedFrom maps each triggered group to its surviving constituents.
	GroupedFrom map[string][]string
	// GroupedInto maps each constituent to the group that claimed it.
	GroupedInto map[string]string
}

// Group triggers a group variable for every group with a surviving
// constituent. Under replace the constituents are dropped from Categories;
// under additive they stay. A category that belongs to several groups is an
// ErrAmbiguousGrouping, or with AmbiguityFlag a finding plus attribution to
// the lexically first group.
func Group(memberID string, surviving []string, ts *refdata.TableSet, subModel string,
	policy model.GroupingPolicy, ambiguity model.AmbiguityPolicy) (*Grouping, []model.Finding, error) {
	g := &Grouping{
		GroupedFrom: make(map[string][]string),
		GroupedInto: make(map[string]string),
	}
	var findings []model.Finding

	sorted := append([]string(nil), surviving...)
	sort.Strings(sorted)
	for _, c := range sorted {
		groups := ts.GroupsOf(subModel, c)
		if len(groups) == 0 {
			g.Categories = append(g.Categories, c)
			continue
		}
		if len(groups) > 1 {
			if ambiguity != model.AmbiguityFlag {
				return nil, nil, fmt.Errorf("%w: %s belongs to %s in %s", ErrAmbiguousGrouping, c, strings.Join(groups, ", "), subModel)
			}
			findings = append(findings, model.Finding{
				MemberID: memberID,
				Kind:     model.FindingAmbiguousGrouping,
				Code:     c,
				Detail:   fmt.Sprintf("in groups %s; attributed to %s", strings.Join(groups, ", "), groups[0]),
			})
		}
		grp := groups[0]
		g.GroupedInto[c] = grp
		g.GroupedFrom[grp] = append(g.GroupedFrom[grp], c)
		if policy == model.GroupingAdditive {
			g.Categories = append(g.Categories, c)
		}
	}

	for grp := range g.GroupedFrom {
		g.Groups = append(g.Groups, grp)
	}
	sort.Strings(g.Groups)
	return g, findings, nil
}
