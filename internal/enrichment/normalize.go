package enrichment

import (
	"strconv"
	"strings"

	"surveyflow/internal/reference"
)

// Normalize coerces every value to its column's declared kind. Text columns hold
// strings, numeric columns hold numbers, and numeric cells that do not parse become
// missing. Applying it to an already normalized record returns an equal record.
func Normalize(r EnrichedRecord) EnrichedRecord {
	out := EnrichedRecord{
		Columns: append([]string(nil), r.Columns...),
		Kinds:   make(map[string]Kind, len(r.Columns)),
		Values:  make(map[string]Value, len(r.Columns)),
	}

	for _, col := range r.Columns {
		kind := r.Kind(col)
		out.Kinds[col] = kind
		out.Values[col] = coerce(r.Get(col), kind)
	}

	return out
}

func coerce(v Value, kind Kind) Value {
	if v.IsMissing() {
		return v
	}

	switch kind {
	case KindInteger:
		return coerceInteger(v)
	case KindNumber:
		if v.Kind == KindNumber {
			return Number(v.Number)
		}
		if v.Kind == KindInteger {
			return Number(float64(v.Integer))
		}
		s := strings.TrimSpace(v.Text)
		if reference.IsMissing(s) {
			return Missing()
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Missing()
		}
		return Number(f)
	default:
		if v.Kind == KindText {
			return v
		}
		return Text(v.String())
	}
}

func coerceInteger(v Value) Value {
	switch v.Kind {
	case KindInteger:
		return v
	case KindNumber:
		if i, ok := reference.IntegralFloat(v.Number); ok {
			return Integer(i)
		}
		return Missing()
	default:
		if i, ok := reference.ParseKey(strings.TrimSpace(v.Text)); ok {
			return Integer(i)
		}
		return Missing()
	}
}
