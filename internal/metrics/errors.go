package metrics

import (
	"errors"
)

// ErrWriteFailed wraps failures to persist the metrics textfile.
var ErrWriteFailed = errors.New("metrics write failed")
