package enrichment

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveyflow/internal/constants"
	"surveyflow/internal/reference"
	apperrors "surveyflow/pkg/errors"
	"surveyflow/pkg/models"
)

func newTable(t *testing.T, header []string, rows ...[]string) *reference.Table {
	t.Helper()
	table, err := reference.NewTable(header, constants.JoinKeyColumn, rows)
	require.NoError(t, err)
	return table
}

func message(fields map[string]interface{}) models.RawMessage {
	return models.RawMessage{Topic: "population_data", Fields: fields}
}

func TestEnrich_SingleMatch(t *testing.T) {
	table := newTable(t, []string{"aggregate_income_Id", "income"}, []string{"7", "42000"})

	records, err := NewEnricher().Enrich(message(map[string]interface{}{"Id": json.Number("7")}), table)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, []string{"Id", "aggregate_income_Id", "income"}, rec.Columns)
	assert.Equal(t, Integer(7), rec.Get("Id"))
	assert.Equal(t, Integer(7), rec.Get("aggregate_income_Id"))
	assert.Equal(t, Number(42000), rec.Get("income"))
	assert.Equal(t, KindInteger, rec.Kind("Id"))
}

func TestEnrich_LargeIdentifierIsExact(t *testing.T) {
	table := newTable(t, []string{"aggregate_income_Id", "income"},
		[]string{"9007199254740993", "1"},
		[]string{"9007199254740992", "2"},
	)

	records, err := NewEnricher().Enrich(message(map[string]interface{}{"Id": json.Number("9007199254740993")}), table)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, Integer(9007199254740993), records[0].Get("Id"))
	assert.Equal(t, Integer(9007199254740993), records[0].Get("aggregate_income_Id"))
	assert.Equal(t, Number(1), records[0].Get("income"))
}

func TestEnrich_NoMatch(t *testing.T) {
	table := newTable(t, []string{"aggregate_income_Id", "income"}, []string{"7", "42000"})

	records, err := NewEnricher().Enrich(message(map[string]interface{}{"Id": json.Number("99")}), table)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestEnrich_MultipleMatches(t *testing.T) {
	table := newTable(t, []string{"aggregate_income_Id", "year"},
		[]string{"3", "2019"},
		[]string{"4", "2019"},
		[]string{"3", "2020"},
		[]string{"3", "2021"},
	)

	records, err := NewEnricher().Enrich(message(map[string]interface{}{"Id": 3}), table)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, Number(2019), records[0].Get("year"))
	assert.Equal(t, Number(2021), records[2].Get("year"))
}

func TestEnrich_InvalidIdentifier(t *testing.T) {
	table := newTable(t, []string{"aggregate_income_Id"}, []string{"1"})

	tests := []struct {
		name   string
		fields map[string]interface{}
	}{
		{name: "absent", fields: map[string]interface{}{"other": 1}},
		{name: "null", fields: map[string]interface{}{"Id": nil}},
		{name: "bool", fields: map[string]interface{}{"Id": true}},
		{name: "fraction", fields: map[string]interface{}{"Id": json.Number("1.5")}},
		{name: "text", fields: map[string]interface{}{"Id": "one"}},
		{name: "object", fields: map[string]interface{}{"Id": map[string]interface{}{"v": 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := NewEnricher().Enrich(message(tt.fields), table)
			assert.ErrorIs(t, err, ErrInvalidIdentifier)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
			assert.Empty(t, records)
		})
	}
}

func TestEnrich_ColumnCollisions(t *testing.T) {
	table := newTable(t, []string{"aggregate_income_Id", "region", "income"}, []string{"5", "north", "10"})

	records, err := NewEnricher().Enrich(message(map[string]interface{}{
		"Id":     json.Number("5"),
		"region": "south",
		"age":    json.Number("31"),
	}), table)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, []string{"Id", "age", "region_x", "aggregate_income_Id", "region_y", "income"}, rec.Columns)
	assert.Equal(t, Text("south"), rec.Get("region_x"))
	assert.Equal(t, Text("north"), rec.Get("region_y"))
	assert.Equal(t, Number(31), rec.Get("age"))
}

func TestEnrich_IdentifierCollision(t *testing.T) {
	table := newTable(t, []string{"aggregate_income_Id", "Id"}, []string{"5", "500"})

	records, err := NewEnricher().Enrich(message(map[string]interface{}{"Id": "5"}), table)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, Integer(5), records[0].Get("Id_x"))
	assert.Equal(t, Number(500), records[0].Get("Id_y"))
}

func TestEnrich_MessageValueTypes(t *testing.T) {
	table := newTable(t, []string{"aggregate_income_Id"}, []string{"1"})

	records, err := NewEnricher().Enrich(message(map[string]interface{}{
		"Id":      json.Number("1.0"),
		"active":  true,
		"missing": nil,
		"tags":    []interface{}{"a", "b"},
		"score":   json.Number("2.5"),
	}), table)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, Number(1), rec.Get("active"))
	assert.True(t, rec.Get("missing").IsMissing())
	assert.Equal(t, Text(`["a","b"]`), rec.Get("tags"))
	assert.Equal(t, Number(2.5), rec.Get("score"))
}

func TestEnrich_ReferenceMissingCells(t *testing.T) {
	table := newTable(t, []string{"aggregate_income_Id", "income", "label"},
		[]string{"2", "", "NA"},
		[]string{"3", "12.5", "x"},
	)

	records, err := NewEnricher().Enrich(message(map[string]interface{}{"Id": 2}), table)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Get("income").IsMissing())
	assert.True(t, records[0].Get("label").IsMissing())
	assert.Equal(t, KindNumber, records[0].Kind("income"))
	assert.Equal(t, KindText, records[0].Kind("label"))
}

func TestEnrich_NilTable(t *testing.T) {
	records, err := NewEnricher().Enrich(message(map[string]interface{}{"Id": 1}), nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCoerceIdentifier(t *testing.T) {
	tests := []struct {
		in      interface{}
		want    int64
		wantErr bool
	}{
		{in: 7, want: 7},
		{in: int64(-2), want: -2},
		{in: 7.0, want: 7},
		{in: json.Number("12"), want: 12},
		{in: json.Number("12.0"), want: 12},
		{in: " 8 ", want: 8},
		{in: 7.9, wantErr: true},
		{in: json.Number("1e400"), wantErr: true},
		{in: false, wantErr: true},
		{in: nil, wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := CoerceIdentifier(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidIdentifier, "%v", tt.in)
			continue
		}
		require.NoError(t, err, "%v", tt.in)
		assert.Equal(t, tt.want, got)
	}
}
