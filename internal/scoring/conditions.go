package scoring

import (
	"sort"

	"github.com/gyeh/hccscore/internal/normalize"
	"github.com/gyeh/hccscore/internal/refdata"
)

// prefixLengths are tried, longest first, when a code has no exact match and
// prefix fallback is on.
var prefixLengths = []int{6, 5, 4, 3}

// MapDiagnoses maps diagnosis codes to categories. lineage holds, per
// category, the sorted source codes that produced it. Codes with no mapping
// land in unmapped (sorted, deduplicated).
func MapDiagnoses(dxs []string, ts *refdata.TableSet, prefixFallback bool) (lineage map[string][]string, unmapped []string) {
	lineage = make(map[string][]string)
	for _, dx := range normalize.DiagnosisCodes(dxs) {
		cats, ok := ts.CategoriesFor(dx)
		if !ok && prefixFallback {
			cats, ok = lookupPrefix(dx, ts)
		}
		if !ok {
			unmapped = append(unmapped, dx)
			continue
		}
		for _, c := range cats {
			lineage[c] = append(lineage[c], dx)
		}
	}
	for c := range lineage {
		sort.Strings(lineage[c])
	}
	return lineage, unmapped
}

func lookupPrefix(dx string, ts *refdata.TableSet) ([]string, bool) {
	for _, n := range prefixLengths {
		if n >= len(dx) {
			continue
		}
		if cats, ok := ts.CategoriesFor(dx[:n]); ok {
			return cats, true
		}
	}
	return nil, false
}
