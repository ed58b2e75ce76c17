package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/mchmarny/fairaudit/pkg/fairness"
)

var (
	// ErrColumnNotFound is returned when a configured column is missing from the header.
	ErrColumnNotFound = errors.New("column not found")

	// ErrNoRecords is returned when no usable rows remain after cleaning.
	ErrNoRecords = errors.New("no usable records")

	missingValues = []string{"", "na", "nan", "null", "none"}
)

// Binarizer maps a raw protected attribute value to 1 (privileged) or 0.
type Binarizer func(raw string) int

// MatchAny returns a Binarizer that maps any of the values to 1.
func MatchAny(values ...string) Binarizer {
	return func(raw string) int {
		if slices.Contains(values, raw) {
			return 1
		}
		return 0
	}
}

// Schema selects the columns used for the audit.
type Schema struct {
	Protected  string
	Label      string
	Prediction string // optional, defaults to the label column
	Score      string // optional
	Binarize   Binarizer
}

// Dataset is the cleaned audit input.
type Dataset struct {
	Columns []string          `json:"columns" yaml:"columns"`
	Records []fairness.Record `json:"-" yaml:"-"`
	Rows    int               `json:"rows" yaml:"rows"`
	Missing int               `json:"missing" yaml:"missing"`
	Invalid int               `json:"invalid" yaml:"invalid"`
}

// SharedLabel reports whether the recorded outcome stands in for the prediction.
func (s Schema) SharedLabel() bool {
	return s.Prediction == "" || s.Prediction == s.Label
}

// Columns reads only the CSV header.
func Columns(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	return trimAll(header), nil
}

// LoadFile opens path and loads it with the schema.
func LoadFile(path string, s Schema) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dataset %s: %w", path, err)
	}
	defer f.Close()

	d, err := Load(f, s)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return d, nil
}

// Load reads CSV rows, keeps the schema columns, drops rows with missing
// or non-binary values and converts the rest into records.
func Load(r io.Reader, s Schema) (*Dataset, error) {
	if s.Protected == "" || s.Label == "" {
		return nil, errors.New("protected and label columns are required")
	}
	if s.Binarize == nil {
		return nil, errors.New("binarization rule is required")
	}

	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	// short rows count as missing instead of failing the load
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	header = trimAll(header)

	idx, err := s.indexes(header)
	if err != nil {
		return nil, err
	}

	d := &Dataset{Columns: header}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", d.Rows+1, err)
		}
		d.Rows++

		rec, ok, err := idx.record(row, s.Binarize)
		if err != nil {
			slog.Debug("skipping invalid row", "row", d.Rows, "error", err)
			d.Invalid++
			continue
		}
		if !ok {
			d.Missing++
			continue
		}
		d.Records = append(d.Records, rec)
	}

	slog.Debug("dataset loaded",
		"rows", d.Rows,
		"records", len(d.Records),
		"missing", d.Missing,
		"invalid", d.Invalid)

	if len(d.Records) == 0 {
		return nil, ErrNoRecords
	}
	return d, nil
}

type columnIndex struct {
	protected  int
	label      int
	prediction int
	score      int
}

func (s Schema) indexes(header []string) (*columnIndex, error) {
	find := func(name string) (int, error) {
		i := slices.Index(header, name)
		if i < 0 {
			return -1, fmt.Errorf("%s: %w", name, ErrColumnNotFound)
		}
		return i, nil
	}

	var err error
	idx := &columnIndex{prediction: -1, score: -1}
	if idx.protected, err = find(s.Protected); err != nil {
		return nil, err
	}
	if idx.label, err = find(s.Label); err != nil {
		return nil, err
	}
	if !s.SharedLabel() {
		if idx.prediction, err = find(s.Prediction); err != nil {
			return nil, err
		}
	}
	if s.Score != "" {
		if idx.score, err = find(s.Score); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// record returns false when a selected column has a missing value.
func (c *columnIndex) record(row []string, binarize Binarizer) (fairness.Record, bool, error) {
	var rec fairness.Record

	cols := []int{c.protected, c.label, c.prediction, c.score}
	for _, i := range cols {
		if i < 0 {
			continue
		}
		if i >= len(row) || isMissing(row[i]) {
			return rec, false, nil
		}
	}

	var err error
	rec.Protected = binarize(strings.TrimSpace(row[c.protected]))
	if rec.Truth, err = parseBinary(row[c.label]); err != nil {
		return rec, false, fmt.Errorf("label: %w", err)
	}
	rec.Predicted = rec.Truth
	if c.prediction >= 0 {
		if rec.Predicted, err = parseBinary(row[c.prediction]); err != nil {
			return rec, false, fmt.Errorf("prediction: %w", err)
		}
	}
	if c.score >= 0 {
		if rec.Score, err = strconv.ParseFloat(strings.TrimSpace(row[c.score]), 64); err != nil {
			return rec, false, fmt.Errorf("score: %w", err)
		}
		rec.HasScore = true
	}
	return rec, true, nil
}

func parseBinary(raw string) (int, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %q: %w", raw, err)
	}
	switch v {
	case 0:
		return 0, nil
	case 1:
		return 1, nil
	default:
		return 0, fmt.Errorf("value %q: %w", raw, fairness.ErrInvalidAttributeValue)
	}
}

func isMissing(v string) bool {
	return slices.Contains(missingValues, strings.ToLower(strings.TrimSpace(v)))
}

func trimAll(vals []string) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = strings.TrimSpace(v)
	}
	return out
}
