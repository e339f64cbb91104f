// Package output writes run exports as newline-delimited JSON, gzip
// compressed with pgzip when the path ends in .gz.
package output

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/pgzip"
)

// Writer streams values as NDJSON.
type Writer struct {
	f   *os.File
	gz  *pgzip.Writer
	bw  *bufio.Writer
	enc *json.Encoder
	n   int64
}

// Create opens path for writing, truncating any existing file.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create export: %w", err)
	}
	w := &Writer{f: f}
	var dst io.Writer = f
	if isGzip(path) {
		w.gz = pgzip.NewWriter(f)
		dst = w.gz
	}
	w.bw = bufio.NewWriterSize(dst, 1<<16)
	w.enc = json.NewEncoder(w.bw)
	w.enc.SetEscapeHTML(false)
	return w, nil
}

// Write appends one value as a line.
func (w *Writer) Write(v any) error {
	if err := w.enc.Encode(v); err != nil {
		return fmt.Errorf("encode line %d: %w", w.n+1, err)
	}
	w.n++
	return nil
}

// Count is the number of lines written.
func (w *Writer) Count() int64 { return w.n }

// Close flushes buffers, finishes the gzip stream and closes the file.
func (w *Writer) Close() error {
	var errs []error
	if err := w.bw.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("flush: %w", err))
	}
	if w.gz != nil {
		if err := w.gz.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close gzip: %w", err))
		}
	}
	if err := w.f.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close file: %w", err))
	}
	return errors.Join(errs...)
}

// WriteFile writes every row to path and returns the line count.
func WriteFile[T any](path string, rows []T) (int64, error) {
	w, err := Create(path)
	if err != nil {
		return 0, err
	}
	for i := range rows {
		if err := w.Write(&rows[i]); err != nil {
			w.Close()
			return 0, err
		}
	}
	return w.Count(), w.Close()
}

// ReadFile decodes an NDJSON export written by WriteFile.
func ReadFile[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()

	var src io.Reader = f
	if isGzip(path) {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip: %w", err)
		}
		defer gz.Close()
		src = gz
	}

	dec := json.NewDecoder(bufio.NewReader(src))
	var out []T
	for {
		var v T
		err := dec.Decode(&v)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("decode line %d: %w", len(out)+1, err)
		}
		out = append(out, v)
	}
}

func isGzip(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".gz")
}
