package refdata

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func chainTables() *Tables {
	t := SampleTables()
	t.Categories = append(t.Categories,
		CategoryRow{Category: "A"}, CategoryRow{Category: "B"},
		CategoryRow{Category: "C"}, CategoryRow{Category: "D"},
	)
	t.Hierarchy = append(t.Hierarchy,
		HierarchyRow{Superior: "A", Inferior: "B"},
		HierarchyRow{Superior: "B", Inferior: "C"},
		HierarchyRow{Superior: "C", Inferior: "D"},
	)
	return t
}

func TestNewTableSet_Sample(t *testing.T) {
	ts, err := NewTableSet(SampleTables())
	if err != nil {
		t.Fatalf("NewTableSet: %v", err)
	}
	if ts.Version() != SampleVersion {
		t.Errorf("version = %q", ts.Version())
	}
	if ts.GroupingPolicy() != "replace" {
		t.Errorf("policy = %q", ts.GroupingPolicy())
	}

	cats, ok := ts.CategoriesFor("E1165")
	if !ok || !reflect.DeepEqual(cats, []string{"HHS_HCC021"}) {
		t.Errorf("E1165 -> %v, %v", cats, ok)
	}
	if got := ts.GroupsOf("Adult", "HHS_HCC020"); !reflect.DeepEqual(got, []string{"G01"}) {
		t.Errorf("GroupsOf(HHS_HCC020) = %v", got)
	}
	if got := ts.GroupsOf("Infant", "HHS_HCC020"); got != nil {
		t.Errorf("Infant has no groups, got %v", got)
	}
	if !ts.Excluded("Infant", "HHS_HCC088") || ts.Excluded("Adult", "HHS_HCC088") {
		t.Error("exclusion of HHS_HCC088 should apply to Infant only")
	}

	c, ok := ts.Coefficient("Adult", "FAGE_LAST_40_44", "silver")
	if !ok || c.String() != "0.246" {
		t.Errorf("silver FAGE_LAST_40_44 = %v, %v", c, ok)
	}
	c, ok = ts.Coefficient("Adult", "HHS_HCC130", "gold")
	if !ok || c.String() != "1.911" {
		t.Errorf("gold HHS_HCC130 = %v, %v", c, ok)
	}
}

func TestNewTableSet_ReachAndRank(t *testing.T) {
	ts, err := NewTableSet(chainTables())
	if err != nil {
		t.Fatalf("NewTableSet: %v", err)
	}
	if got := ts.Dominated("A"); !reflect.DeepEqual(got, []string{"B", "C", "D"}) {
		t.Errorf("Dominated(A) = %v", got)
	}
	if got := ts.Dominated("D"); len(got) != 0 {
		t.Errorf("Dominated(D) = %v, want empty", got)
	}
	for code, want := range map[string]int{"A": 0, "B": 1, "C": 2, "D": 3} {
		if got := ts.Rank(code); got != want {
			t.Errorf("Rank(%s) = %d, want %d", code, got, want)
		}
	}
}

func TestNewTableSet_Cycle(t *testing.T) {
	tables := chainTables()
	tables.Hierarchy = append(tables.Hierarchy, HierarchyRow{Superior: "D", Inferior: "B"})

	_, err := NewTableSet(tables)
	if !errors.Is(err, ErrInvalidHierarchy) {
		t.Fatalf("expected ErrInvalidHierarchy, got %v", err)
	}
	var ce *CycleError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CycleError, got %T", err)
	}
	if ce.Path[0] != ce.Path[len(ce.Path)-1] {
		t.Errorf("cycle path should be closed: %v", ce.Path)
	}
	for _, code := range []string{"B", "C", "D"} {
		if !strings.Contains(err.Error(), code) {
			t.Errorf("error %q should name %s", err, code)
		}
	}
}

func TestNewTableSet_SelfLoop(t *testing.T) {
	tables := chainTables()
	tables.Hierarchy = append(tables.Hierarchy, HierarchyRow{Superior: "C", Inferior: "C"})
	if _, err := NewTableSet(tables); !errors.Is(err, ErrInvalidHierarchy) {
		t.Fatalf("expected ErrInvalidHierarchy, got %v", err)
	}
}

func TestNewTableSet_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Tables)
		want   error
	}{
		{"edge to unknown category", func(t *Tables) {
			t.Hierarchy = append(t.Hierarchy, HierarchyRow{Superior: "HHS_HCC008", Inferior: "NOPE"})
		}, ErrInvalidHierarchy},
		{"group with unknown category", func(t *Tables) {
			t.Groups = append(t.Groups, GroupRow{SubModel: "Adult", Group: "G02", Category: "NOPE"})
		}, ErrInvalidGrouping},
		{"group with unknown sub-model", func(t *Tables) {
			t.Groups = append(t.Groups, GroupRow{SubModel: "Senior", Group: "G02", Category: "HHS_HCC130"})
		}, ErrInvalidGrouping},
		{"group named like a category", func(t *Tables) {
			t.Groups = append(t.Groups, GroupRow{SubModel: "Adult", Group: "HHS_HCC008", Category: "HHS_HCC130"})
		}, ErrInvalidGrouping},
		{"diagnosis to unknown category", func(t *Tables) {
			t.Diagnoses = append(t.Diagnoses, DiagnosisRow{Diagnosis: "Z000", Category: "NOPE"})
		}, ErrInvalidReference},
		{"bad coefficient", func(t *Tables) {
			t.Coefficients = append(t.Coefficients, CoefficientRow{SubModel: "Adult", Variable: "X", Tier: "silver", Coefficient: "abc"})
		}, ErrInvalidReference},
		{"unknown tier", func(t *Tables) {
			t.Coefficients = append(t.Coefficients, CoefficientRow{SubModel: "Adult", Variable: "X", Tier: "tin", Coefficient: "1"})
		}, ErrInvalidReference},
		{"overlapping buckets", func(t *Tables) {
			t.Demographics = append(t.Demographics, DemographicRow{SubModel: "Adult", Sex: "F", AgeMin: 44, AgeMax: 46, Variable: "FAGE_X"})
		}, ErrInvalidReference},
		{"no tiers", func(t *Tables) { t.Manifest.Tiers = nil }, ErrInvalidReference},
		{"bad grouping policy", func(t *Tables) { t.Manifest.GroupingPolicy = "merge" }, ErrInvalidReference},
		{"empty categories", func(t *Tables) { t.Categories = nil }, ErrInvalidReference},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tables := SampleTables()
			tt.mutate(tables)
			_, err := NewTableSet(tables)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSubModelFor(t *testing.T) {
	ts, err := NewTableSet(SampleTables())
	if err != nil {
		t.Fatalf("NewTableSet: %v", err)
	}
	tests := []struct {
		age  int
		want string
	}{
		{0, "Infant"}, {1, "Infant"}, {2, "Child"}, {20, "Child"}, {21, "Adult"}, {97, "Adult"},
	}
	for _, tt := range tests {
		got, ok := ts.SubModelFor(tt.age)
		if !ok || got != tt.want {
			t.Errorf("SubModelFor(%d) = %q, %v; want %q", tt.age, got, ok, tt.want)
		}
	}
	if _, ok := ts.SubModelFor(-1); ok {
		t.Error("negative age should not match a sub-model")
	}
}
