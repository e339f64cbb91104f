package scoring

import (
	"time"

	"github.com/gyeh/hccscore/internal/model"
)

// Options carries the scoring knobs that are not part of the reference data.
type Options struct {
	// BasisDate is the date ages are computed at. Zero means December 31 of
	// the bundle's model year.
	BasisDate time.Time
	// GroupingPolicy overrides the bundle default when non-empty.
	GroupingPolicy  model.GroupingPolicy
	UnmappedPolicy  model.UnmappedPolicy
	AmbiguityPolicy model.AmbiguityPolicy
	// PrefixFallback retries unmapped codes on their 6..3 character prefixes.
	PrefixFallback bool
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		UnmappedPolicy:  model.UnmappedFlag,
		AmbiguityPolicy: model.AmbiguityFatal,
	}
}

// ModelYearEnd returns December 31 of year, UTC.
func ModelYearEnd(year int) time.Time {
	return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
}
