package model

import "time"

// ScoringSummary captures metrics from a single scoring run.
type ScoringSummary struct {
	RunID           string
	GroupID         int64
	ModelVersion    string
	Calculator      string
	MembersRead     int64
	MembersScored   int64
	MembersSkipped  int64
	RecordsWritten  int64
	Findings        map[FindingKind]int64
	SubModels       map[string]int64
	Skips           []MemberSkip
	DurationRead    time.Duration
	DurationScore   time.Duration
	DurationPersist time.Duration
	DurationTotal   time.Duration
}
