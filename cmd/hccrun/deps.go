package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/gyeh/hccscore/internal/batch"
	"github.com/gyeh/hccscore/internal/exitcode"
	"github.com/gyeh/hccscore/internal/logging"
	"github.com/gyeh/hccscore/internal/metrics"
	"github.com/gyeh/hccscore/internal/progress"
	"github.com/gyeh/hccscore/internal/refdata"
	"github.com/gyeh/hccscore/internal/scoring"
	"github.com/gyeh/hccscore/internal/store"
)

const progressLogInterval = 10 * time.Second

func setupLog() zerolog.Logger {
	return logging.Setup(cfg.LogFormat, cfg.LogLevel)
}

// usageFail logs a configuration problem and exits with the usage code.
func usageFail(msg string, err error) {
	log := setupLog()
	log.Error().Err(err).Msg(msg)
	os.Exit(exitcode.UsageError)
}

// env bundles what one command invocation needs. Store is nil unless a
// database was requested.
type env struct {
	log  zerolog.Logger
	deps batch.Deps
	pool *pgxpool.Pool
}

// newEnv builds logging, metrics, progress and the reference catalog, and
// connects to Postgres when withDB is set. It exits the process on failure.
func newEnv(ctx context.Context, withDB bool) *env {
	log := setupLog()
	e := &env{log: log}

	var pm progress.Manager = progress.NewLogManager(log, progressLogInterval)
	if cfg.Progress {
		pm = progress.NewMPBManager()
	}
	e.deps = batch.Deps{
		Catalog:  refdata.NewCatalog(refdata.BundleLoader{Root: cfg.BundleDir}, log),
		Log:      log,
		Metrics:  metrics.NewManager(metrics.WithMetricsEnabled(cfg.MetricsFile != "")),
		Progress: pm,
	}

	if withDB {
		pool, err := store.NewPool(ctx, cfg.DSN)
		if err != nil {
			log.Error().Err(err).Msg("database connection failed")
			os.Exit(exitcode.DBConnError)
		}
		e.pool = pool
		e.deps.Store = store.NewPGStore(pool, log)
	}
	return e
}

// close waits for progress output, writes the metrics textfile and releases
// the pool.
func (e *env) close() {
	if e.deps.Progress != nil {
		e.deps.Progress.Wait()
	}
	if cfg.MetricsFile != "" {
		if err := e.deps.Metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			e.log.Warn().Err(err).Str("path", cfg.MetricsFile).Msg("could not write metrics textfile")
		}
	}
	if e.pool != nil {
		e.pool.Close()
	}
}

// exitFor maps a pipeline error to a process exit code.
func exitFor(err error) int {
	var pe *batch.PipelineError
	if !errors.As(err, &pe) {
		return exitcode.ScoringError
	}
	switch pe.Phase {
	case "preflight":
		if errors.Is(err, refdata.ErrUnsupportedModelVersion) || errors.Is(err, refdata.ErrInvalidReference) ||
			errors.Is(err, refdata.ErrInvalidHierarchy) || errors.Is(err, refdata.ErrInvalidGrouping) {
			return exitcode.ScoringError
		}
		return exitcode.ValidationError
	case "score":
		if errors.Is(err, scoring.ErrInvalidMemberInput) {
			return exitcode.ValidationError
		}
		return exitcode.ScoringError
	case "persist", "register", "finalize":
		return exitcode.CopyError
	case "load", "compare", "decompose":
		return exitcode.AnalysisError
	}
	return exitcode.ScoringError
}

// fail logs err with its phase and exits with the matching code.
func fail(log zerolog.Logger, what string, err error) {
	ev := log.Error().Err(err)
	var pe *batch.PipelineError
	if errors.As(err, &pe) {
		ev = log.Error().Err(pe.Err).Str("phase", pe.Phase)
	}
	ev.Msg(what + " failed")
	os.Exit(exitFor(err))
}
