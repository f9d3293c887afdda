// Package records reads candidate rows from solution-finder CSV output.
package records

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const (
	DefaultReferenceColumn = 0
	DefaultMetricColumn    = 7 // cleared lines in `spin` output
)

var ErrMalformedRecord = errf("malformed record")

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error { return staticErr(s) }

// Record is one candidate board. Line is the 1-based CSV line number. The metric stays
// raw until a caller needs it, so rows without a reference never fail on it.
type Record struct {
	Line      int
	Reference string
	RawMetric string
}

// Metric parses the metric column.
func (r Record) Metric() (int, error) {
	m, err := strconv.Atoi(strings.TrimSpace(r.RawMetric))
	if err != nil {
		return 0, fmt.Errorf("%w: line %d metric %q: %w", ErrMalformedRecord, r.Line, r.RawMetric, err)
	}
	return m, nil
}

type Reader struct {
	csv        *csv.Reader
	refCol     int
	metricCol  int
	skipHeader bool
	line       int
}

type Option func(*Reader)

func WithColumns(reference, metric int) Option {
	return func(r *Reader) { r.refCol, r.metricCol = reference, metric }
}

// WithHeader controls whether the first row is skipped. Default true.
func WithHeader(has bool) Option {
	return func(r *Reader) { r.skipHeader = has }
}

func NewReader(src io.Reader, opts ...Option) *Reader {
	cr := csv.NewReader(src)
	// every row must match the header's column count
	cr.FieldsPerRecord = 0
	cr.ReuseRecord = true
	r := &Reader{
		csv:        cr,
		refCol:     DefaultReferenceColumn,
		metricCol:  DefaultMetricColumn,
		skipHeader: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open opens a CSV file. The caller closes the returned file.
func Open(path string, opts ...Option) (*Reader, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open records: %w", err)
	}
	return NewReader(f, opts...), f, nil
}

// Next returns the next record, or io.EOF when the input is exhausted.
func (r *Reader) Next() (Record, error) {
	if r.skipHeader {
		r.skipHeader = false
		if _, err := r.read(); err != nil {
			return Record{}, err
		}
	}
	row, err := r.read()
	if err != nil {
		return Record{}, err
	}
	need := r.refCol
	if r.metricCol > need {
		need = r.metricCol
	}
	if len(row) <= need {
		return Record{}, fmt.Errorf("%w: line %d has %d columns, need %d", ErrMalformedRecord, r.line, len(row), need+1)
	}
	return Record{
		Line:      r.line,
		Reference: strings.TrimSpace(row[r.refCol]),
		RawMetric: row[r.metricCol],
	}, nil
}

func (r *Reader) read() ([]string, error) {
	row, err := r.csv.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	var perr *csv.ParseError
	if errors.As(err, &perr) {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	r.line, _ = r.csv.FieldPos(0)
	return row, nil
}
