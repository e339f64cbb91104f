package model

// MemberRow mirrors the Parquet schema of a member input file and the
// hcc.member_inputs table. Dates arrive as strings and are parsed during
// normalisation.
type MemberRow struct {
	MemberID         string   `parquet:"member_id"`
	DateOfBirth      string   `parquet:"date_of_birth"`
	Sex              *string  `parquet:"sex,optional"`
	Tier             *string  `parquet:"tier,optional"`
	EnrollmentMonths *int32   `parquet:"enrollment_months,optional"`
	Diagnoses        []string `parquet:"diagnoses,list"`
	PharmacyCodes    []string `parquet:"pharmacy_codes,list"`
}

// MemberRowColumns lists the columns a member input file must carry.
func MemberRowColumns() []string {
	return []string{"member_id", "date_of_birth", "diagnoses"}
}

// ScoreRow is the flat Parquet export shape of a RiskScoreRecord.
type ScoreRow struct {
	RunID               string   `parquet:"run_id"`
	MemberID            string   `parquet:"member_id"`
	ModelVersion        string   `parquet:"model_version"`
	SubModel            string   `parquet:"sub_model"`
	Tier                string   `parquet:"tier"`
	Age                 int32    `parquet:"age"`
	Sex                 string   `parquet:"sex"`
	EnrollmentMonths    int32    `parquet:"enrollment_months"`
	TotalScore          float64  `parquet:"total_score"`
	DemographicFactor   float64  `parquet:"demographic_factor"`
	CategorySubtotal    float64  `parquet:"category_subtotal"`
	DemographicVariable string   `parquet:"demographic_variable"`
	Variables           []string `parquet:"variables,list"`
	Unmapped            []string `parquet:"unmapped,list"`
	InputHash           string   `parquet:"input_hash"`
}

// ToScoreRow flattens a record for Parquet export. Component detail stays in
// the database and the NDJSON export.
func (r *RiskScoreRecord) ToScoreRow() ScoreRow {
	return ScoreRow{
		RunID:               r.RunID,
		MemberID:            r.MemberID,
		ModelVersion:        r.ModelVersion,
		SubModel:            r.SubModel,
		Tier:                r.Tier,
		Age:                 int32(r.Age),
		Sex:                 r.Sex,
		EnrollmentMonths:    int32(r.EnrollmentMonths),
		TotalScore:          r.TotalScore,
		DemographicFactor:   r.DemographicFactor,
		CategorySubtotal:    r.CategorySubtotal,
		DemographicVariable: r.DemographicVariable,
		Variables:           r.Variables,
		Unmapped:            r.Unmapped,
		InputHash:           r.InputHash,
	}
}
