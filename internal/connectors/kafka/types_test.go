package kafka

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsync/dbsync/internal/types"
)

func TestValueConverterInfersIntFromWholeNumberFloat(t *testing.T) {
	var vc ValueConverter
	cv, err := vc.ToCanonical(float64(42), types.Null())
	require.NoError(t, err)
	assert.Equal(t, types.KindBigInt, cv.Kind)
	assert.EqualValues(t, 42, cv.Int64)
}

func TestValueConverterInfersFloatFromFractionalFloat(t *testing.T) {
	var vc ValueConverter
	cv, err := vc.ToCanonical(float64(3.14), types.Null())
	require.NoError(t, err)
	assert.Equal(t, types.KindDouble, cv.Kind)
	assert.Equal(t, 3.14, cv.Float64)
}

func TestValueConverterInfersStringAndBool(t *testing.T) {
	var vc ValueConverter
	s, err := vc.ToCanonical("hello", types.Null())
	require.NoError(t, err)
	assert.Equal(t, types.KindText, s.Kind)
	assert.Equal(t, "hello", s.Str)

	b, err := vc.ToCanonical(true, types.Null())
	require.NoError(t, err)
	assert.Equal(t, types.KindBoolean, b.Kind)
	assert.True(t, b.Bool)
}

func TestValueConverterNestedObjectBecomesJsonText(t *testing.T) {
	var vc ValueConverter
	cv, err := vc.ToCanonical(map[string]any{"nested": "value"}, types.Null())
	require.NoError(t, err)
	assert.Equal(t, types.KindJson, cv.Kind, "expected a nested object to become KindJson")
	assert.NotEmpty(t, cv.Str, "expected non-empty serialized json text for a nested object")
}

func TestRecordJSONRoundTrip(t *testing.T) {
	rec := types.Record{
		"id":     {Name: "id", Value: types.IntValue(7), Type: types.BigInt()},
		"name":   {Name: "name", Value: types.StringValue("widget"), Type: types.Text()},
		"active": {Name: "active", Value: types.BoolValue(true), Type: types.Boolean()},
	}

	payload, err := recordToJSON(rec)
	require.NoError(t, err)

	got, err := jsonToRecord(payload)
	require.NoError(t, err)
	require.Len(t, got, len(rec), "round trip should preserve field count")

	idField, ok := got["id"]
	require.True(t, ok, "expected field \"id\" to survive round trip")
	// jsonToRecord decodes numbers with json.Decoder.UseNumber, so a
	// number that started as an int comes back as a KindDecimal value
	// rather than KindBigInt; the numeric value itself must still match.
	assert.Equal(t, types.KindDecimal, idField.Value.Kind)
	assert.True(t, idField.Value.DecimalVal.Equal(decimal.NewFromInt(7)), "id field = %+v, want a decimal value of 7", idField.Value)

	assert.Equal(t, "widget", got["name"].Value.Str)
	assert.True(t, got["active"].Value.Bool, "active field should round-trip as true")
}
