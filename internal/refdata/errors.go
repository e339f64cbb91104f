package refdata

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for reference data problems. All of them are fatal for any
// batch that needs the affected version.
var (
	ErrUnsupportedModelVersion = errors.New("unsupported model version")
	ErrInvalidHierarchy        = errors.New("invalid hierarchy")
	ErrInvalidGrouping         = errors.New("invalid grouping")
	ErrInvalidReference        = errors.New("invalid reference data")
)

// CycleError reports a supersession cycle. Path starts and ends on the same
// category.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("hierarchy cycle: %s", strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error {
	return ErrInvalidHierarchy
}
