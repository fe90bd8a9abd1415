package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepQuery_UnmarshalStructured(t *testing.T) {
	var query StepQuery

	err := json.Unmarshal([]byte(`{"logic":"OR","filters":[{"field":"status","operator":"equals","value":"open"}]}`), &query)
	require.NoError(t, err)

	require.NotNil(t, query.Structured)
	assert.Equal(t, QueryLogicOr, query.Structured.Logic)
	require.Len(t, query.Structured.Filters, 1)
	assert.Equal(t, "status", query.Structured.Filters[0].Field)
	assert.Equal(t, OperatorEquals, query.Structured.Filters[0].Operator)
}

func TestStepQuery_UnmarshalDefaultsLogicToAnd(t *testing.T) {
	var query StepQuery

	err := json.Unmarshal([]byte(`{"filters":[{"field":"a","operator":"isEmpty"}]}`), &query)
	require.NoError(t, err)

	require.NotNil(t, query.Structured)
	assert.Equal(t, QueryLogicAnd, query.Structured.Logic)
}

func TestStepQuery_UnmarshalLegacyText(t *testing.T) {
	var query StepQuery

	err := json.Unmarshal([]byte(`"pending invoice"`), &query)
	require.NoError(t, err)

	assert.Nil(t, query.Structured)
	assert.Equal(t, "pending invoice", query.Text)
}

func TestStepQuery_UnmarshalEmpty(t *testing.T) {
	for _, raw := range []string{`null`, `""`} {
		var query StepQuery

		err := json.Unmarshal([]byte(raw), &query)
		require.NoError(t, err)
		assert.True(t, query.IsZero())
	}
}

func TestStepQuery_MarshalRoundTrip(t *testing.T) {
	structured := StepQuery{Structured: &StructuredQuery{
		Logic:   QueryLogicAnd,
		Filters: []QueryFilter{{Field: "count", Operator: OperatorGreaterThan, Value: 2}},
	}}

	data, err := json.Marshal(structured)
	require.NoError(t, err)

	var back StepQuery

	require.NoError(t, json.Unmarshal(data, &back))
	require.NotNil(t, back.Structured)
	assert.Equal(t, "count", back.Structured.Filters[0].Field)

	text := StepQuery{Text: "overdue"}

	data, err = json.Marshal(text)
	require.NoError(t, err)
	assert.Equal(t, `"overdue"`, string(data))

	data, err = json.Marshal(StepQuery{})
	require.NoError(t, err)
	assert.Equal(t, `null`, string(data))
}
