package batch_test

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/hccscore/internal/batch"
	"github.com/gyeh/hccscore/internal/decompose"
	"github.com/gyeh/hccscore/internal/model"
	"github.com/gyeh/hccscore/internal/store"
)

const (
	testPort     = 15433
	testDB       = "hccbatch"
	testUser     = "postgres"
	testPassword = "postgres"
)

var testDSN string

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	testDSN = fmt.Sprintf("postgresql://%s:%s@localhost:%d/%s?sslmode=disable",
		testUser, testPassword, testPort, testDB)

	pg := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(uint32(testPort)).
			Database(testDB).
			Username(testUser).
			Password(testPassword).
			Version(embeddedpostgres.V16).
			RuntimePath(filepath.Join(os.TempDir(), "hcc-batch-pg")).
			StartTimeout(30 * time.Second),
	)

	if err := pg.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start embedded postgres: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	if err := pg.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to stop embedded postgres: %v\n", err)
	}

	os.Exit(code)
}

func setupDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testDSN == "" {
		t.Skip("embedded postgres disabled in -short mode")
	}
	ctx := context.Background()

	pool, err := store.NewPool(ctx, testDSN)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := pool.Exec(ctx, "DROP SCHEMA IF EXISTS hcc CASCADE"); err != nil {
		t.Fatalf("drop schema: %v", err)
	}
	if err := store.ApplyMigrations(ctx, pool, zerolog.Nop()); err != nil {
		pool.Close()
		t.Fatalf("migrations: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool
}

func countRows(t *testing.T, pool *pgxpool.Pool, query string, args ...any) int64 {
	t.Helper()
	var n int64
	if err := pool.QueryRow(context.Background(), query, args...).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestEndToEnd_Postgres(t *testing.T) {
	pool := setupDB(t)
	ctx := context.Background()
	st := store.NewPGStore(pool, zerolog.Nop())
	d := testDeps(st)
	cfg := testConfig()

	base := scoreFile(t, d, cfg, baseMembers())

	coded := baseMembers()
	coded[1].Diagnoses = append(coded[1].Diagnoses, "I509")
	next := scoreFile(t, d, cfg, coded)

	t.Run("scores_and_audit", func(t *testing.T) {
		if got := countRows(t, pool, "SELECT count(*) FROM hcc.risk_scores WHERE run_id = $1", base.RunID); got != 3 {
			t.Errorf("risk_scores: got %d, want 3", got)
		}
		if got := countRows(t, pool, "SELECT count(*) FROM hcc.member_skips WHERE run_id = $1", base.RunID); got != 2 {
			t.Errorf("member_skips: got %d, want 2", got)
		}
		run, err := st.GetRun(ctx, base.RunID)
		if err != nil {
			t.Fatalf("GetRun: %v", err)
		}
		if run.Status != model.RunSuccess || run.Calculator != "calculator" {
			t.Errorf("run: %s/%s", run.Status, run.Calculator)
		}
	})

	t.Run("records_round_trip", func(t *testing.T) {
		recs, err := st.LoadScores(ctx, base.RunID)
		if err != nil {
			t.Fatalf("LoadScores: %v", err)
		}
		if len(recs) != 3 || recs[0].MemberID != "m1" {
			t.Fatalf("records: got %d starting %q", len(recs), recs[0].MemberID)
		}
		m1 := recs[0]
		if len(m1.Components) == 0 || m1.DemographicVariable == "" {
			t.Errorf("m1 lost its audit trail: %+v", m1)
		}
	})

	t.Run("comparison", func(t *testing.T) {
		res, err := batch.CompareRuns(ctx, d, cfg, batch.CompareJob{RunA: base.RunID, RunB: next.RunID})
		if err != nil {
			t.Fatalf("CompareRuns: %v", err)
		}
		if res.Summary.Matched != 3 || res.Summary.Changed != 1 {
			t.Errorf("summary: %+v", res.Summary)
		}
		if got := countRows(t, pool, "SELECT count(*) FROM hcc.run_comparison WHERE batch_id = $1", res.BatchID); got != 3 {
			t.Errorf("run_comparison rows: got %d, want 3", got)
		}
	})

	t.Run("decomposition", func(t *testing.T) {
		res, err := batch.DecomposeRuns(ctx, d, cfg, batch.DecomposeJob{
			Baseline: base.RunID,
			Actual:   next.RunID,
			Steps:    []decompose.Component{{Name: "Coding", Scenario: next.RunID}},
		})
		if err != nil {
			t.Fatalf("DecomposeRuns: %v", err)
		}
		drivers, err := st.LoadDrivers(ctx, res.BatchID)
		if err != nil {
			t.Fatalf("LoadDrivers: %v", err)
		}
		if len(drivers) != 2 {
			t.Fatalf("drivers: got %d, want 2", len(drivers))
		}
		if drivers[1].Impact > 1e-9 || drivers[1].Impact < -1e-9 {
			t.Errorf("interaction should be zero when the step is the actual run, got %v", drivers[1].Impact)
		}
	})
}
