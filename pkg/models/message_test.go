package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "surveyflow/pkg/errors"
)

func TestRawMessage_Field(t *testing.T) {
	msg := RawMessage{Fields: map[string]interface{}{"Id": 7}}

	v, ok := msg.Field("Id")
	assert.True(t, ok)
	assert.Equal(t, 7, v)

	_, ok = msg.Field("missing")
	assert.False(t, ok)

	_, ok = RawMessage{}.Field("Id")
	assert.False(t, ok)
}

func TestRawMessage_IdempotencyKey(t *testing.T) {
	msg := RawMessage{Topic: "population_data", Partition: 3, Offset: 1024}
	assert.Equal(t, "population_data/3/1024", msg.IdempotencyKey())
}

func TestValidateRawMessage(t *testing.T) {
	assert.Error(t, ValidateRawMessage(nil))
	assert.ErrorContains(t, ValidateRawMessage(&RawMessage{Fields: map[string]interface{}{}}), "'topic'")
	assert.ErrorContains(t, ValidateRawMessage(&RawMessage{Topic: "t"}), "'fields'")
	assert.NoError(t, ValidateRawMessage(&RawMessage{Topic: "t", Fields: map[string]interface{}{}}))
	assert.ErrorIs(t, ValidateRawMessage(&RawMessage{Topic: "t"}), apperrors.ErrValidation)
}
