package store

import (
	"github.com/jackc/pgx/v5"
)

// CopyRow is a record that knows its COPY column values.
type CopyRow interface {
	CopyValues() []any
}

// ChannelSource implements pgx.CopyFromSource by reading rows from a channel.
// This provides natural backpressure between the scorer and the COPY writer.
type ChannelSource[T CopyRow] struct {
	ch      <-chan T
	current T
	n       int64
}

// NewChannelSource creates a CopyFromSource backed by a channel.
func NewChannelSource[T CopyRow](ch <-chan T) *ChannelSource[T] {
	return &ChannelSource[T]{ch: ch}
}

// Next advances to the next row. Returns false when the channel is closed.
func (s *ChannelSource[T]) Next() bool {
	row, ok := <-s.ch
	if !ok {
		return false
	}
	s.current = row
	s.n++
	return true
}

// Values returns the current row's values in COPY column order.
func (s *ChannelSource[T]) Values() ([]any, error) {
	return s.current.CopyValues(), nil
}

// Err returns any error encountered during iteration.
func (s *ChannelSource[T]) Err() error {
	return nil
}

// Count is the number of rows handed to COPY so far.
func (s *ChannelSource[T]) Count() int64 {
	return s.n
}

// sliceSource adapts a slice of CopyRows for pgx.CopyFromSlice.
func sliceSource[T CopyRow](rows []T) pgx.CopyFromSource {
	return pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
		return rows[i].CopyValues(), nil
	})
}

var _ pgx.CopyFromSource = (*ChannelSource[*findingRow])(nil)
