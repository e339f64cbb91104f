// Package batch runs scoring, comparison, decomposition and cross-validation
// jobs end to end: load inputs, compute, persist, and keep the run registry
// in step.
package batch

import (
	"context"
	"runtime"

	"github.com/rs/zerolog"

	"github.com/gyeh/hccscore/internal/config"
	"github.com/gyeh/hccscore/internal/metrics"
	"github.com/gyeh/hccscore/internal/model"
	"github.com/gyeh/hccscore/internal/progress"
	"github.com/gyeh/hccscore/internal/refdata"
	"github.com/gyeh/hccscore/internal/scoring"
	"github.com/gyeh/hccscore/internal/store"
)

// Deps are the collaborators shared by every job. Metrics and Progress may be nil.
type Deps struct {
	Store    store.Store
	Catalog  *refdata.Catalog
	Log      zerolog.Logger
	Metrics  *metrics.Manager
	Progress progress.Manager
}

func (d Deps) tracker(name string, total int) progress.Tracker {
	if d.Progress == nil {
		return progress.NoopManager{}.NewTracker(name, int64(total))
	}
	return d.Progress.NewTracker(name, int64(total))
}

// ScoringOptions translates config into scorer options.
func ScoringOptions(cfg *config.Config) (scoring.Options, error) {
	opts := scoring.DefaultOptions()

	basis, err := cfg.BasisDate()
	if err != nil {
		return opts, err
	}
	opts.BasisDate = basis

	if opts.GroupingPolicy, err = model.ParseGroupingPolicy(cfg.GroupingPolicy); err != nil {
		return opts, err
	}
	if cfg.UnmappedPolicy != "" {
		if opts.UnmappedPolicy, err = model.ParseUnmappedPolicy(cfg.UnmappedPolicy); err != nil {
			return opts, err
		}
	}
	if cfg.AmbiguityPolicy != "" {
		if opts.AmbiguityPolicy, err = model.ParseAmbiguityPolicy(cfg.AmbiguityPolicy); err != nil {
			return opts, err
		}
	}
	opts.PrefixFallback = cfg.PrefixFallback
	return opts, nil
}

func workers(cfg *config.Config) int {
	if cfg.Workers > 0 {
		return cfg.Workers
	}
	return runtime.NumCPU()
}

// markFailed records a terminal failure. It runs even when ctx is cancelled.
func markFailed(ctx context.Context, d Deps, runID string, analysis model.AnalysisType) {
	if err := d.Store.UpdateRunStatus(context.WithoutCancel(ctx), runID, model.RunFailed); err != nil {
		d.Log.Warn().Err(err).Str("run_id", runID).Msg("could not mark run failed")
	}
	d.Metrics.RecordRun(string(analysis), string(model.RunFailed))
}
