package reference

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	apperrors "surveyflow/pkg/errors"
)

var (
	ErrNotFound         = errors.New("reference file not found")
	ErrMissingKeyColumn = errors.New("reference file has no join key column")
)

func notFound(path string) error {
	return apperrors.Wrap(fmt.Errorf("%w: %s", ErrNotFound, path), apperrors.ErrNotFound)
}

type ColumnKind int

const (
	ColumnNumeric ColumnKind = iota
	ColumnText
)

func (k ColumnKind) String() string {
	if k == ColumnText {
		return "text"
	}
	return "numeric"
}

type Column struct {
	Name string
	Kind ColumnKind
}

// Row holds the raw cells of one reference line, aligned with Table.Columns.
type Row struct {
	Key   int64
	Cells []string
}

// Table is read-only once built and safe to share between goroutines.
type Table struct {
	Path     string
	Columns  []Column
	KeyIndex int
	// Skipped counts rows dropped because their key was not an integer.
	Skipped int

	rows  []Row
	index map[int64][]int
}

func (t *Table) Lookup(key int64) []Row {
	positions := t.index[key]
	if len(positions) == 0 {
		return nil
	}
	out := make([]Row, len(positions))
	for i, p := range positions {
		out[i] = t.rows[p]
	}
	return out
}

func (t *Table) Len() int {
	return len(t.rows)
}

func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// missingTokens are the cell spellings read as a missing value.
var missingTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

func IsMissing(cell string) bool {
	_, ok := missingTokens[strings.TrimSpace(cell)]
	return ok
}

// ParseKey coerces a cell to an integer key. Integral decimals such as "7.0" are accepted.
func ParseKey(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return IntegralFloat(f)
}

// IntegralFloat converts f when it holds an exact integer in the int64 range.
func IntegralFloat(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// ParseNumber parses a numeric cell; missing tokens and text report false.
func ParseNumber(s string) (float64, bool) {
	if IsMissing(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
