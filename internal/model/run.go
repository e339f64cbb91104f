package model

import "time"

// AnalysisType identifies what kind of job produced a run.
type AnalysisType string

const (
	AnalysisScoring       AnalysisType = "scoring"
	AnalysisComparison    AnalysisType = "comparison"
	AnalysisDecomposition AnalysisType = "decomposition"
)

// RunStatus is the lifecycle state of a registered run.
type RunStatus string

const (
	RunStarted RunStatus = "started"
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

// RunRecord is one row of hcc.run_registry. A run moves from started to
// exactly one of success or failed.
type RunRecord struct {
	RunID            string         `json:"run_id"`
	RunTimestamp     time.Time      `json:"run_timestamp"`
	GroupID          int64          `json:"group_id"`
	GroupDescription string         `json:"group_description,omitempty"`
	RunDescription   string         `json:"run_description,omitempty"`
	AnalysisType     AnalysisType   `json:"analysis_type"`
	Calculator       string         `json:"calculator"`
	ModelVersion     string         `json:"model_version"`
	BenefitYear      int            `json:"benefit_year"`
	Status           RunStatus      `json:"status"`
	TriggerSource    string         `json:"trigger_source"`
	Config           map[string]any `json:"config,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Terminal reports whether the run has finished, successfully or not.
func (r *RunRecord) Terminal() bool {
	return r.Status == RunSuccess || r.Status == RunFailed
}
