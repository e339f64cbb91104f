// Package refdata loads, validates and caches versioned HCC reference tables.
package refdata

// Manifest describes one reference bundle. It lives next to the Parquet
// tables as manifest.yaml.
type Manifest struct {
	Version        string          `yaml:"version"`
	ModelYear      int             `yaml:"model_year"`
	GroupingPolicy string          `yaml:"grouping_policy"`
	Tiers          []string        `yaml:"tiers"`
	SubModels      []SubModel      `yaml:"sub_models"`
	Enrollment     *EnrollmentRule `yaml:"enrollment_duration,omitempty"`
}

// SubModel is an age band with its own demographic and coefficient tables.
// MaxAge < 0 means unbounded.
type SubModel struct {
	Name   string `yaml:"name"`
	MinAge int    `yaml:"min_age"`
	MaxAge int    `yaml:"max_age"`
}

// Contains reports whether age falls in the band.
func (s SubModel) Contains(age int) bool {
	return age >= s.MinAge && (s.MaxAge < 0 || age <= s.MaxAge)
}

// EnrollmentRule adds a duration variable (Prefix + months) for partial-year
// enrollees of the listed sub-models who have at least one payment variable.
type EnrollmentRule struct {
	SubModels []string `yaml:"sub_models"`
	MaxMonths int      `yaml:"max_months"`
	Prefix    string   `yaml:"variable_prefix"`
}

// DiagnosisRow maps one diagnosis code to one category.
type DiagnosisRow struct {
	Diagnosis string `parquet:"diagnosis"`
	Category  string `parquet:"category"`
}

// CategoryRow declares a condition category.
type CategoryRow struct {
	Category string `parquet:"category"`
	Label    string `parquet:"label"`
}

// HierarchyRow is one supersession edge: Superior suppresses Inferior.
type HierarchyRow struct {
	Superior string `parquet:"superior"`
	Inferior string `parquet:"inferior"`
}

// GroupRow places a category in a named group for one sub-model.
type GroupRow struct {
	SubModel string `parquet:"sub_model"`
	Group    string `parquet:"group"`
	Category string `parquet:"category"`
}

// DemographicRow is one age/sex bucket. AgeMax is inclusive.
type DemographicRow struct {
	SubModel string `parquet:"sub_model"`
	Sex      string `parquet:"sex"`
	AgeMin   int32  `parquet:"age_min"`
	AgeMax   int32  `parquet:"age_max"`
	Variable string `parquet:"variable"`
}

// CoefficientRow carries one coefficient as a decimal string so that sums
// stay exact.
type CoefficientRow struct {
	SubModel    string `parquet:"sub_model"`
	Variable    string `parquet:"variable"`
	Tier        string `parquet:"tier"`
	Coefficient string `parquet:"coefficient"`
}

// ExclusionRow removes a category from one sub-model.
type ExclusionRow struct {
	SubModel string `parquet:"sub_model"`
	Category string `parquet:"category"`
}

// Tables is a raw, unvalidated bundle as read from disk or built in memory.
type Tables struct {
	Manifest     Manifest
	Diagnoses    []DiagnosisRow
	Categories   []CategoryRow
	Hierarchy    []HierarchyRow
	Groups       []GroupRow
	Demographics []DemographicRow
	Coefficients []CoefficientRow
	Exclusions   []ExclusionRow
}
