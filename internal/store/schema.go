package store

import (
	"context"
	"fmt"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	embedsql "github.com/gyeh/hccscore/internal/sql"
)

// NewPool connects to dsn and pings the server. Sessions run without a
// statement timeout so long score COPYs are not cut off.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	params := cfg.ConnConfig.RuntimeParams
	params["statement_timeout"] = "0"
	params["application_name"] = "hccrun"

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// AppliedMigrations lists the migrations recorded in hcc.schema_migrations.
func AppliedMigrations(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	rows, err := pool.Query(ctx, "SELECT name FROM hcc.schema_migrations ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("query migration ledger: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan migration ledger: %w", err)
	}
	return names, nil
}

// ApplyMigrations runs the embedded migrations that the ledger does not yet
// record, in filename order. Each migration commits together with its ledger
// row, so a failed migration is retried on the next call.
func ApplyMigrations(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger) error {
	if _, err := pool.Exec(ctx, embedsql.MigrationLedger); err != nil {
		return fmt.Errorf("create migration ledger: %w", err)
	}
	done, err := AppliedMigrations(ctx, pool)
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(done))
	for _, n := range done {
		seen[n] = true
	}

	entries, err := fs.ReadDir(embedsql.Migrations, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var applied, skipped int
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			continue
		}
		if seen[name] {
			skipped++
			continue
		}
		if err := applyOne(ctx, pool, name); err != nil {
			return err
		}
		log.Info().Str("migration", name).Msg("migration applied")
		applied++
	}

	log.Info().Int("applied", applied).Int("already_applied", skipped).Msg("schema up to date")
	return nil
}

func applyOne(ctx context.Context, pool *pgxpool.Pool, name string) error {
	data, err := fs.ReadFile(embedsql.Migrations, "migrations/"+name)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", name, err)
	}
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("execute migration %s: %w", name, err)
		}
		if _, err := tx.Exec(ctx, "INSERT INTO hcc.schema_migrations (name) VALUES ($1)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		return nil
	})
}
