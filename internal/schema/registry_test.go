package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Zebra string `json:"zebra"`
	Alpha int    `json:"alpha"`
}

func TestMarshalDeterministicSortsKeys(t *testing.T) {
	data, err := MarshalDeterministic(sample{Zebra: "z", Alpha: 1})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":1,"zebra":"z"}`, string(data))
}

func TestMarshalDeterministicIsStableAcrossCalls(t *testing.T) {
	v := map[string]any{"b": 1, "a": 2, "c": []any{3, 2, 1}}
	d1, err := MarshalDeterministic(v)
	require.NoError(t, err)
	d2, err := MarshalDeterministic(v)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
}

func TestAcceptsExactAndSubversion(t *testing.T) {
	assert.True(t, Accepts(ErrorV1, ErrorV1))
	assert.True(t, Accepts(ErrorV1+".1", ErrorV1))
	assert.False(t, Accepts("extrt.error/v2", ErrorV1))
}

func TestFormatJSONCompactAndPretty(t *testing.T) {
	data := []byte(`{"a":1,"b":2}`)
	compact, err := FormatJSONCompact(data, true)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2}`, string(compact))

	pretty, err := FormatJSONCompact(data, false)
	require.NoError(t, err)
	assert.Contains(t, string(pretty), "\n")
}

func TestMustValidateRejectsMismatchedSchema(t *testing.T) {
	v := map[string]any{"schema": "extrt.error/v2"}
	err := MustValidate(ErrorV1, v)
	require.Error(t, err)
}

func TestMustValidateAcceptsMatchingSchema(t *testing.T) {
	v := map[string]any{"schema": ErrorV1}
	require.NoError(t, MustValidate(ErrorV1, v))
}
