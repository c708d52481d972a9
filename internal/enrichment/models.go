package enrichment

import (
	"math"
	"strconv"
)

type Kind int

const (
	KindMissing Kind = iota
	KindText
	KindNumber
	// KindInteger holds join identifiers, which must round-trip exactly.
	KindInteger
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumber:
		return "number"
	case KindInteger:
		return "integer"
	default:
		return "missing"
	}
}

type Value struct {
	Kind    Kind
	Text    string
	Number  float64
	Integer int64
}

func Text(s string) Value {
	return Value{Kind: KindText, Text: s}
}

// Number returns a numeric value; NaN and infinities are missing.
func Number(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Missing()
	}
	return Value{Kind: KindNumber, Number: f}
}

func Integer(i int64) Value {
	return Value{Kind: KindInteger, Integer: i}
}

func Missing() Value {
	return Value{Kind: KindMissing}
}

func (v Value) IsMissing() bool {
	return v.Kind == KindMissing
}

// Interface returns the value as a database/sql argument: string, float64, int64 or nil.
func (v Value) Interface() interface{} {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindNumber:
		return v.Number
	case KindInteger:
		return v.Integer
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case KindInteger:
		return strconv.FormatInt(v.Integer, 10)
	default:
		return ""
	}
}

// EnrichedRecord is one joined row. Columns fixes the output order; Kinds holds the
// declared type of each column (KindText, KindNumber or KindInteger) independent of its value.
type EnrichedRecord struct {
	Columns []string
	Kinds   map[string]Kind
	Values  map[string]Value
}

func (r EnrichedRecord) Get(column string) Value {
	v, ok := r.Values[column]
	if !ok {
		return Missing()
	}
	return v
}

// Kind reports the declared column type, falling back to the value's own kind.
func (r EnrichedRecord) Kind(column string) Kind {
	if k, ok := r.Kinds[column]; ok && k != KindMissing {
		return k
	}
	if v := r.Get(column); !v.IsMissing() {
		return v.Kind
	}
	return KindText
}
