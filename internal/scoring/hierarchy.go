package scoring

import (
	"sort"

	"github.com/gyeh/hccscore/internal/refdata"
)

// Resolution is the outcome of applying the supersession graph.
type Resolution struct {
	Surviving []string
	// SupersededBy maps each survivor to the present categories it suppressed.
	SupersededBy map[string][]string
}

// Resolve removes every candidate that another present candidate reaches in
// the supersession graph, however many hops away. The result does not depend
// on input order and an empty input is valid.
func Resolve(candidates []string, ts *refdata.TableSet) Resolution {
	present := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		present[c] = true
	}

	removed := make(map[string]bool)
	for c := range present {
		for _, d := range ts.Dominated(c) {
			if present[d] {
				removed[d] = true
			}
		}
	}

	res := Resolution{SupersededBy: make(map[string][]string)}
	for c := range present {
		if removed[c] {
			continue
		}
		res.Surviving = append(res.Surviving, c)
		for _, d := range ts.Dominated(c) {
			if present[d] {
				res.SupersededBy[c] = append(res.SupersededBy[c], d)
			}
		}
	}
	sort.Strings(res.Surviving)
	return res
}
