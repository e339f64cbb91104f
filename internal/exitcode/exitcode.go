package exitcode

const (
	Success         = 0
	UsageError      = 1
	ValidationError = 2
	DBConnError     = 3
	CopyError       = 4
	ScoringError    = 5 // reference-data or scoring failure that aborted the batch
	PartialSuccess  = 6 // run succeeded but members were skipped or findings raised
	AnalysisError   = 7 // comparison or decomposition could not be computed
)
