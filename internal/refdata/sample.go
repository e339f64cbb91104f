package refdata

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// SampleVersion is the key of the small built-in bundle.
const SampleVersion = "2025-sample"

var sampleTierFactors = map[string]string{
	"platinum":     "1.10",
	"gold":         "1.05",
	"silver":       "1.00",
	"bronze":       "0.90",
	"catastrophic": "0.88",
}

// Silver-tier coefficients; other tiers scale from these.
var (
	sampleAdultDemographics = map[string]string{
		"FAGE_LAST_21_24": "0.176", "FAGE_LAST_25_29": "0.182", "FAGE_LAST_30_34": "0.212",
		"FAGE_LAST_35_39": "0.228", "FAGE_LAST_40_44": "0.246", "FAGE_LAST_45_49": "0.273",
		"FAGE_LAST_50_54": "0.338", "FAGE_LAST_55_59": "0.371", "FAGE_LAST_60_GT": "0.416",
		"MAGE_LAST_21_24": "0.135", "MAGE_LAST_25_29": "0.129", "MAGE_LAST_30_34": "0.153",
		"MAGE_LAST_35_39": "0.172", "MAGE_LAST_40_44": "0.196", "MAGE_LAST_45_49": "0.232",
		"MAGE_LAST_50_54": "0.306", "MAGE_LAST_55_59": "0.359", "MAGE_LAST_60_GT": "0.404",
	}
	sampleChildDemographics = map[string]string{
		"FAGE_LAST_2_4": "0.089", "FAGE_LAST_5_9": "0.065", "FAGE_LAST_10_14": "0.094", "FAGE_LAST_15_20": "0.148",
		"MAGE_LAST_2_4": "0.103", "MAGE_LAST_5_9": "0.083", "MAGE_LAST_10_14": "0.101", "MAGE_LAST_15_20": "0.121",
	}
	sampleInfantDemographics = map[string]string{
		"FAGE_LAST_0_0": "0.300", "FAGE_LAST_1_1": "0.240",
		"MAGE_LAST_0_0": "0.330", "MAGE_LAST_1_1": "0.260",
	}
	samplePaymentCoefficients = map[string]string{
		"HHS_HCC008": "7.924", "HHS_HCC009": "3.744", "HHS_HCC010": "1.702",
		"HHS_HCC019": "0.423", "HHS_HCC020": "0.423", "HHS_HCC021": "0.423", "G01": "0.423",
		"HHS_HCC088": "0.405", "HHS_HCC128": "9.118", "HHS_HCC130": "1.820",
	}
	sampleEnrollmentCoefficients = map[string]string{
		"HCC_ED1": "0.395", "HCC_ED2": "0.352", "HCC_ED3": "0.300",
		"HCC_ED4": "0.249", "HCC_ED5": "0.203", "HCC_ED6": "0.150",
	}
)

// SampleTables returns a small but complete bundle: three sub-models, a
// diabetes group, two supersession chains and an enrollment-duration rule.
func SampleTables() *Tables {
	t := &Tables{
		Manifest: Manifest{
			Version:        SampleVersion,
			ModelYear:      2025,
			GroupingPolicy: "replace",
			Tiers:          []string{"platinum", "gold", "silver", "bronze", "catastrophic"},
			SubModels: []SubModel{
				{Name: "Adult", MinAge: 21, MaxAge: -1},
				{Name: "Child", MinAge: 2, MaxAge: 20},
				{Name: "Infant", MinAge: 0, MaxAge: 1},
			},
			Enrollment: &EnrollmentRule{SubModels: []string{"Adult"}, MaxMonths: 6, Prefix: "HCC_ED"},
		},
		Categories: []CategoryRow{
			{Category: "HHS_HCC008", Label: "Metastatic Cancer"},
			{Category: "HHS_HCC009", Label: "Lung, Brain, and Other Severe Cancers"},
			{Category: "HHS_HCC010", Label: "Breast, Prostate, and Other Cancers"},
			{Category: "HHS_HCC019", Label: "Diabetes with Acute Complications"},
			{Category: "HHS_HCC020", Label: "Diabetes with Chronic Complications"},
			{Category: "HHS_HCC021", Label: "Diabetes without Complication"},
			{Category: "HHS_HCC088", Label: "Major Depressive and Bipolar Disorders"},
			{Category: "HHS_HCC128", Label: "Heart Assistive Device/Artificial Heart"},
			{Category: "HHS_HCC130", Label: "Congestive Heart Failure"},
		},
		Diagnoses: []DiagnosisRow{
			{Diagnosis: "C787", Category: "HHS_HCC008"},
			{Diagnosis: "C3490", Category: "HHS_HCC009"},
			{Diagnosis: "C509", Category: "HHS_HCC010"},
			{Diagnosis: "E1110", Category: "HHS_HCC019"},
			{Diagnosis: "E1122", Category: "HHS_HCC020"},
			{Diagnosis: "E1165", Category: "HHS_HCC021"},
			{Diagnosis: "E119", Category: "HHS_HCC021"},
			{Diagnosis: "F329", Category: "HHS_HCC088"},
			{Diagnosis: "F319", Category: "HHS_HCC088"},
			{Diagnosis: "Z95811", Category: "HHS_HCC128"},
			{Diagnosis: "I509", Category: "HHS_HCC130"},
			{Diagnosis: "I5022", Category: "HHS_HCC130"},
		},
		Hierarchy: []HierarchyRow{
			{Superior: "HHS_HCC008", Inferior: "HHS_HCC009"},
			{Superior: "HHS_HCC009", Inferior: "HHS_HCC010"},
			{Superior: "HHS_HCC019", Inferior: "HHS_HCC020"},
			{Superior: "HHS_HCC020", Inferior: "HHS_HCC021"},
			{Superior: "HHS_HCC128", Inferior: "HHS_HCC130"},
		},
		Exclusions: []ExclusionRow{
			{SubModel: "Infant", Category: "HHS_HCC088"},
		},
	}

	for _, sm := range []string{"Adult", "Child"} {
		for _, c := range []string{"HHS_HCC019", "HHS_HCC020", "HHS_HCC021"} {
			t.Groups = append(t.Groups, GroupRow{SubModel: sm, Group: "G01", Category: c})
		}
	}

	t.Demographics = append(t.Demographics, sampleBuckets("Adult", []ageBand{
		{21, 24, "21_24"}, {25, 29, "25_29"}, {30, 34, "30_34"}, {35, 39, "35_39"}, {40, 44, "40_44"},
		{45, 49, "45_49"}, {50, 54, "50_54"}, {55, 59, "55_59"}, {60, 200, "60_GT"},
	})...)
	t.Demographics = append(t.Demographics, sampleBuckets("Child", []ageBand{
		{2, 4, "2_4"}, {5, 9, "5_9"}, {10, 14, "10_14"}, {15, 20, "15_20"},
	})...)
	t.Demographics = append(t.Demographics, sampleBuckets("Infant", []ageBand{
		{0, 0, "0_0"}, {1, 1, "1_1"},
	})...)

	t.Coefficients = append(t.Coefficients, sampleCoefficients("Adult", sampleAdultDemographics, samplePaymentCoefficients, sampleEnrollmentCoefficients)...)
	t.Coefficients = append(t.Coefficients, sampleCoefficients("Child", sampleChildDemographics, samplePaymentCoefficients)...)
	t.Coefficients = append(t.Coefficients, sampleCoefficients("Infant", sampleInfantDemographics, samplePaymentCoefficients)...)
	return t
}

type ageBand struct {
	min, max int32
	suffix   string
}

func sampleBuckets(subModel string, bands []ageBand) []DemographicRow {
	rows := make([]DemographicRow, 0, 2*len(bands))
	for _, sex := range []string{"F", "M"} {
		for _, b := range bands {
			rows = append(rows, DemographicRow{
				SubModel: subModel,
				Sex:      sex,
				AgeMin:   b.min,
				AgeMax:   b.max,
				Variable: fmt.Sprintf("%sAGE_LAST_%s", sex, b.suffix),
			})
		}
	}
	return rows
}

func sampleCoefficients(subModel string, tables ...map[string]string) []CoefficientRow {
	tiers := make([]string, 0, len(sampleTierFactors))
	for tier := range sampleTierFactors {
		tiers = append(tiers, tier)
	}
	sort.Strings(tiers)

	var rows []CoefficientRow
	for _, table := range tables {
		vars := make([]string, 0, len(table))
		for v := range table {
			vars = append(vars, v)
		}
		sort.Strings(vars)
		for _, v := range vars {
			base := decimal.RequireFromString(table[v])
			for _, tier := range tiers {
				c := base.Mul(decimal.RequireFromString(sampleTierFactors[tier])).Round(3)
				rows = append(rows, CoefficientRow{SubModel: subModel, Variable: v, Tier: tier, Coefficient: c.String()})
			}
		}
	}
	return rows
}
