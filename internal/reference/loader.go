package reference

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"surveyflow/internal/constants"
	"surveyflow/internal/logger"
	"surveyflow/pkg/metrics"
)

type Loader interface {
	Load(ctx context.Context, path string) (*Table, error)
}

// CSVLoader reads the reference file from disk on every call.
type CSVLoader struct {
	delimiter rune
	keyColumn string
	logger    logger.Logger
	metrics   *metrics.Metrics
}

func NewCSVLoader(delimiter string, log logger.Logger, m *metrics.Metrics) *CSVLoader {
	d := ','
	if delimiter != "" {
		d = []rune(delimiter)[0]
	}
	return &CSVLoader{
		delimiter: d,
		keyColumn: constants.JoinKeyColumn,
		logger:    log,
		metrics:   m,
	}
}

func (l *CSVLoader) Load(ctx context.Context, path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			l.metrics.IncReferenceLoad("not_found")
			return nil, notFound(path)
		}
		l.metrics.IncReferenceLoad("error")
		return nil, fmt.Errorf("failed to open reference file %s: %w", path, err)
	}
	defer f.Close()

	table, err := l.parse(ctx, f)
	if err != nil {
		l.metrics.IncReferenceLoad("error")
		return nil, fmt.Errorf("failed to load reference file %s: %w", path, err)
	}
	table.Path = path

	if table.Skipped > 0 {
		l.logger.Debugw("Excluded reference rows with non-integer key",
			"path", path,
			"skipped", table.Skipped,
			"key_column", l.keyColumn,
		)
	}
	l.metrics.IncReferenceLoad("loaded")

	return table, nil
}

func (l *CSVLoader) parse(ctx context.Context, r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = l.delimiter
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: file is empty", ErrMissingKeyColumn)
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var records [][]string
	for line := 2; ; line++ {
		if line%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read line %d: %w", line, err)
		}
		if len(record) > len(header) {
			return nil, fmt.Errorf("line %d has %d fields, header has %d", line, len(record), len(header))
		}
		records = append(records, record)
	}

	return NewTable(header, l.keyColumn, records)
}

// NewTable keys records on keyColumn. Short records are padded with empty cells and
// rows whose key is not an integer are counted in Skipped.
func NewTable(header []string, keyColumn string, records [][]string) (*Table, error) {
	names := dedupeHeader(header)

	keyIndex := -1
	for i, name := range names {
		if name == keyColumn {
			keyIndex = i
			break
		}
	}
	if keyIndex < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingKeyColumn, keyColumn)
	}

	table := &Table{
		KeyIndex: keyIndex,
		index:    make(map[int64][]int),
	}

	for _, record := range records {
		if len(record) > len(names) {
			return nil, fmt.Errorf("record has %d fields, header has %d", len(record), len(names))
		}
		cells := make([]string, len(names))
		copy(cells, record)

		key, ok := ParseKey(cells[keyIndex])
		if !ok {
			table.Skipped++
			continue
		}

		table.index[key] = append(table.index[key], len(table.rows))
		table.rows = append(table.rows, Row{Key: key, Cells: cells})
	}

	table.Columns = inferColumns(names, table.rows)
	return table, nil
}

// inferColumns marks a column numeric when every present cell parses as a number.
func inferColumns(names []string, rows []Row) []Column {
	columns := make([]Column, len(names))
	for i, name := range names {
		kind := ColumnNumeric
		for _, row := range rows {
			cell := row.Cells[i]
			if IsMissing(cell) {
				continue
			}
			if _, ok := ParseNumber(cell); !ok {
				kind = ColumnText
				break
			}
		}
		columns[i] = Column{Name: name, Kind: kind}
	}
	return columns
}

// dedupeHeader renames repeated names to name.1, name.2 and strips a leading BOM.
func dedupeHeader(header []string) []string {
	names := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		name := h
		if n, ok := seen[h]; ok {
			for {
				name = h + "." + strconv.Itoa(n)
				n++
				if _, taken := seen[name]; !taken {
					break
				}
			}
			seen[h] = n
		} else {
			seen[h] = 1
		}
		seen[name] = 1
		names[i] = name
	}
	return names
}
