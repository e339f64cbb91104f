package sql

import (
	"embed"
)

//go:embed migrations/*.sql
var Migrations embed.FS

//go:embed queries/register_run.sql
var RegisterRun string

//go:embed queries/update_run_status.sql
var UpdateRunStatus string

//go:embed queries/get_run.sql
var GetRun string

//go:embed queries/load_scores.sql
var LoadScores string

//go:embed queries/load_member_inputs.sql
var LoadMemberInputs string

//go:embed queries/load_comparison.sql
var LoadComparison string

//go:embed queries/load_drivers.sql
var LoadDrivers string

//go:embed queries/migration_ledger.sql
var MigrationLedger string
