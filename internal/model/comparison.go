package model

// MatchStatus says which side(s) of a comparison a member appeared on.
type MatchStatus string

const (
	MatchBoth  MatchStatus = "matched"
	MatchAOnly MatchStatus = "a_only"
	MatchBOnly MatchStatus = "b_only"
)

// ComparisonRecord is one row of a member-level run comparison.
type ComparisonRecord struct {
	BatchID  string      `json:"batch_id"`
	RunIDA   string      `json:"run_id_a"`
	RunIDB   string      `json:"run_id_b"`
	MemberID string      `json:"member_id"`
	Status   MatchStatus `json:"match_status"`
	ScoreA   *float64    `json:"score_a"`
	ScoreB   *float64    `json:"score_b"`
	Delta    *float64    `json:"score_diff"`
	Added    []string    `json:"added"`
	Removed  []string    `json:"removed"`
}

// ComparisonColumns returns the ordered column names for COPY into hcc.run_comparison.
func ComparisonColumns() []string {
	return []string{
		"batch_id",
		"run_id_a",
		"run_id_b",
		"member_id",
		"match_status",
		"score_a",
		"score_b",
		"score_diff",
		"added",
		"removed",
	}
}

// CopyValues returns the record values in the same order as ComparisonColumns().
func (r *ComparisonRecord) CopyValues() []any {
	return []any{
		r.BatchID,
		r.RunIDA,
		r.RunIDB,
		r.MemberID,
		string(r.Status),
		r.ScoreA,
		r.ScoreB,
		r.Delta,
		nonNil(r.Added),
		nonNil(r.Removed),
	}
}
