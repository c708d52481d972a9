package enrichment

import (
	"encoding/json"
	"sort"
	"strconv"

	"surveyflow/internal/constants"
	"surveyflow/internal/reference"
	"surveyflow/pkg/models"
)

const (
	leftSuffix  = "_x"
	rightSuffix = "_y"
)

// Enricher inner-joins one message with the reference table on Id == aggregate_income_Id.
// It has no side effects.
type Enricher struct {
	idColumn string
}

func NewEnricher() *Enricher {
	return &Enricher{idColumn: constants.IdentifierColumn}
}

// Enrich returns one normalized record per matching reference row. No match yields an
// empty result and a nil error; an unusable Id yields ErrInvalidIdentifier.
func (e *Enricher) Enrich(raw models.RawMessage, table *reference.Table) ([]EnrichedRecord, error) {
	value, ok := raw.Field(e.idColumn)
	if !ok {
		return nil, invalidIdentifier(nil, "field "+e.idColumn+" is absent")
	}
	id, err := CoerceIdentifier(value)
	if err != nil {
		return nil, err
	}

	if table == nil {
		return []EnrichedRecord{}, nil
	}
	matches := table.Lookup(id)
	if len(matches) == 0 {
		return []EnrichedRecord{}, nil
	}

	left := e.messageColumns(raw, id)
	rightNames := table.ColumnNames()
	leftNames, rightOut := mergedNames(left.names, rightNames)

	// the identifier is always the first message column, possibly suffixed
	idOut := leftNames[0]

	columns := make([]string, 0, len(leftNames)+len(rightOut))
	columns = append(columns, leftNames...)
	columns = append(columns, rightOut...)

	records := make([]EnrichedRecord, 0, len(matches))
	for _, row := range matches {
		rec := EnrichedRecord{
			Columns: columns,
			Kinds:   make(map[string]Kind, len(columns)),
			Values:  make(map[string]Value, len(columns)),
		}
		for i, name := range leftNames {
			rec.Kinds[name] = left.kinds[i]
			rec.Values[name] = left.values[i]
		}
		for i, col := range table.Columns {
			name := rightOut[i]
			if i == table.KeyIndex {
				rec.Kinds[name] = KindInteger
				rec.Values[name] = Integer(row.Key)
				continue
			}
			kind, val := cellValue(col.Kind, row.Cells[i])
			rec.Kinds[name] = kind
			rec.Values[name] = val
		}

		rec = Normalize(rec)
		if rec.Get(idOut).IsMissing() {
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

type messageColumns struct {
	names  []string
	kinds  []Kind
	values []Value
}

// messageColumns orders the message fields with the identifier first, then by name.
func (e *Enricher) messageColumns(raw models.RawMessage, id int64) messageColumns {
	names := make([]string, 0, len(raw.Fields))
	for k := range raw.Fields {
		if k != e.idColumn {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	names = append([]string{e.idColumn}, names...)

	mc := messageColumns{
		names:  names,
		kinds:  make([]Kind, len(names)),
		values: make([]Value, len(names)),
	}
	for i, name := range names {
		if name == e.idColumn {
			mc.kinds[i] = KindInteger
			mc.values[i] = Integer(id)
			continue
		}
		mc.kinds[i], mc.values[i] = jsonValue(raw.Fields[name])
	}
	return mc
}

// mergedNames suffixes every name present on both sides.
func mergedNames(left, right []string) ([]string, []string) {
	inRight := make(map[string]bool, len(right))
	for _, n := range right {
		inRight[n] = true
	}
	inLeft := make(map[string]bool, len(left))
	for _, n := range left {
		inLeft[n] = true
	}

	leftOut := make([]string, len(left))
	for i, n := range left {
		if inRight[n] {
			n += leftSuffix
		}
		leftOut[i] = n
	}
	rightOut := make([]string, len(right))
	for i, n := range right {
		if inLeft[n] {
			n += rightSuffix
		}
		rightOut[i] = n
	}
	return leftOut, rightOut
}

func cellValue(kind reference.ColumnKind, cell string) (Kind, Value) {
	if kind == reference.ColumnText {
		if reference.IsMissing(cell) {
			return KindText, Missing()
		}
		return KindText, Text(cell)
	}
	f, ok := reference.ParseNumber(cell)
	if !ok {
		return KindNumber, Missing()
	}
	return KindNumber, Number(f)
}

// jsonValue maps a decoded JSON value: null is missing, booleans are 1/0,
// objects and arrays keep their JSON text.
func jsonValue(v interface{}) (Kind, Value) {
	switch t := v.(type) {
	case nil:
		return KindText, Missing()
	case string:
		return KindText, Text(t)
	case json.Number:
		f, err := strconv.ParseFloat(t.String(), 64)
		if err != nil {
			return KindNumber, Missing()
		}
		return KindNumber, Number(f)
	case float64:
		return KindNumber, Number(t)
	case float32:
		return KindNumber, Number(float64(t))
	case int:
		return KindNumber, Number(float64(t))
	case int64:
		return KindNumber, Number(float64(t))
	case int32:
		return KindNumber, Number(float64(t))
	case bool:
		if t {
			return KindNumber, Number(1)
		}
		return KindNumber, Number(0)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return KindText, Missing()
		}
		return KindText, Text(string(b))
	}
}

// CoerceIdentifier accepts integers, integral floats, json.Number and numeric strings.
func CoerceIdentifier(v interface{}) (int64, error) {
	switch t := v.(type) {
	case nil:
		return 0, invalidIdentifier(v, "identifier is null")
	case bool:
		return 0, invalidIdentifier(v, "identifier is a boolean")
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case uint32:
		return int64(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		f, err := t.Float64()
		if err != nil {
			return 0, invalidIdentifier(v, "identifier is out of range")
		}
		return integral(v, f)
	case float64:
		return integral(v, t)
	case float32:
		return integral(v, float64(t))
	case string:
		id, ok := reference.ParseKey(t)
		if !ok {
			return 0, invalidIdentifier(v, "identifier is not an integer")
		}
		return id, nil
	default:
		return 0, invalidIdentifier(v, "identifier has unsupported type")
	}
}

func integral(orig interface{}, f float64) (int64, error) {
	id, ok := reference.IntegralFloat(f)
	if !ok {
		return 0, invalidIdentifier(orig, "identifier is not an integer")
	}
	return id, nil
}
