package parquetio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/gyeh/hccscore/internal/model"
)

const readBatchSize = 1024

// table is an open Parquet file decoded as rows of T.
type table[T any] struct {
	path string
	file *os.File
	rows *parquet.GenericReader[T]
}

func openTable[T any](path string) (*table[T], error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet file: %w", err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat parquet file: %w", err)
	}
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}
	return &table[T]{path: path, file: f, rows: parquet.NewGenericReader[T](pf)}, nil
}

func (t *table[T]) schema() *parquet.Schema { return t.rows.Schema() }

// all drains the table in batches of readBatchSize.
func (t *table[T]) all() ([]T, error) {
	out := make([]T, 0, t.rows.NumRows())
	for {
		// The reader reuses nested slices of the rows it fills.
		buf := make([]T, readBatchSize)
		n, err := t.rows.Read(buf)
		out = append(out, buf[:n]...)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read parquet %s at row %d: %w", t.path, len(out), err)
		}
	}
}

func (t *table[T]) close() error {
	err := t.rows.Close()
	if cerr := t.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// ReadAll reads every row of a Parquet table into memory.
func ReadAll[T any](path string) ([]T, error) {
	t, err := openTable[T](path)
	if err != nil {
		return nil, err
	}
	defer t.close()
	return t.all()
}

// WriteAll writes rows to a new Parquet file at path, replacing any existing file.
func WriteAll[T any](path string, rows []T) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create parquet file: %w", err)
	}

	w := parquet.NewGenericWriter[T](f)
	if _, err := w.Write(rows); err != nil {
		f.Close()
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := w.Close(); err != nil {
		f.Close()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return f.Close()
}

// WriteScores exports score records as flat ScoreRows.
func WriteScores(path string, recs []model.RiskScoreRecord) error {
	rows := make([]model.ScoreRow, len(recs))
	for i := range recs {
		rows[i] = recs[i].ToScoreRow()
	}
	return WriteAll(path, rows)
}
