package model

// DecompositionDriver attributes part of a run-over-run change to a named step.
// The impacts of one batch sum to metric(actual) - metric(baseline).
type DecompositionDriver struct {
	BatchID   string  `json:"batch_id"`
	StepIndex int     `json:"step_index"`
	Name      string  `json:"driver_name"`
	Impact    float64 `json:"impact_value"`
	RunID     string  `json:"run_id,omitempty"`
	Scenario  string  `json:"scenario,omitempty"`
}

// DriverColumns returns the ordered column names for COPY into hcc.decomposition_drivers.
func DriverColumns() []string {
	return []string{"batch_id", "step_index", "driver_name", "impact_value", "run_id", "scenario"}
}

// CopyValues returns the driver values in the same order as DriverColumns().
func (d *DecompositionDriver) CopyValues() []any {
	var runID, scenario *string
	if d.RunID != "" {
		runID = &d.RunID
	}
	if d.Scenario != "" {
		scenario = &d.Scenario
	}
	return []any{d.BatchID, int32(d.StepIndex), d.Name, d.Impact, runID, scenario}
}
