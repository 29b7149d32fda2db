package types

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWireRoundTripInt(t *testing.T) {
	v := IntValue(-42)
	wire, err := ToWire(v)
	require.NoError(t, err)
	got, err := FromWire(wire)
	require.NoError(t, err)
	assert.True(t, got.Equal(v), "round trip changed value: got %+v, want %+v", got, v)
}

func TestWireRoundTripDecimalIsExact(t *testing.T) {
	d := decimal.RequireFromString("19.990000000000000001")
	v := DecimalValue(d)
	wire, err := ToWire(v)
	require.NoError(t, err)
	got, err := FromWire(wire)
	require.NoError(t, err)
	assert.True(t, got.DecimalVal.Equal(d), "decimal lost precision across wire round trip: got %s, want %s", got.DecimalVal, d)
}

func TestWireRoundTripString(t *testing.T) {
	v := StringValue("hello, world")
	wire, err := ToWire(v)
	require.NoError(t, err)
	got, err := FromWire(wire)
	require.NoError(t, err)
	assert.True(t, got.Equal(v))
}

func TestWireRoundTripNull(t *testing.T) {
	wire, err := ToWire(NullValue())
	require.NoError(t, err)
	got, err := FromWire(wire)
	require.NoError(t, err)
	assert.True(t, got.IsNull, "expected null to survive round trip, got %+v", got)
}

func TestWireRoundTripBinary(t *testing.T) {
	v := BinaryValue([]byte{0x00, 0x01, 0xFF, 0x10})
	wire, err := ToWire(v)
	require.NoError(t, err)
	got, err := FromWire(wire)
	require.NoError(t, err)
	assert.True(t, got.Equal(v), "round trip changed binary value: got %+v, want %+v", got, v)
}

func TestEqualTreatsNullAsOnlyEqualToNull(t *testing.T) {
	assert.True(t, NullValue().Equal(NullValue()), "two nulls should be equal")
	assert.False(t, NullValue().Equal(IntValue(0)), "null should not equal a zero value")
}

func TestEqualComparesDecimalsNumericallyNotTextually(t *testing.T) {
	a := DecimalValue(decimal.RequireFromString("1.50"))
	b := DecimalValue(decimal.RequireFromString("1.5"))
	assert.True(t, a.Equal(b), "1.50 and 1.5 should be equal as decimals despite differing text")
}

func TestCompareOrdersDecimalsNumerically(t *testing.T) {
	a := DecimalValue(decimal.RequireFromString("2"))
	b := DecimalValue(decimal.RequireFromString("10"))
	cmp, err := a.Compare(b)
	require.NoError(t, err)
	assert.Negative(t, cmp, "expected 2 < 10 as decimals")
}

func TestCompareRejectsMismatchedKinds(t *testing.T) {
	_, err := IntValue(1).Compare(StringValue("1"))
	assert.Error(t, err, "expected error comparing an int value to a string value")
}

func TestParseBoolAcceptsNumericAndStringForms(t *testing.T) {
	cases := []struct {
		in   any
		want bool
	}{
		{true, true},
		{false, false},
		{int64(1), true},
		{int64(0), false},
		{1, true},
		{0, false},
		{"true", true},
		{"FALSE", false},
		{"1", true},
		{"0", false},
	}
	for _, c := range cases {
		got, err := ParseBool(c.in)
		if assert.NoError(t, err, "ParseBool(%v)", c.in) {
			assert.Equal(t, c.want, got, "ParseBool(%v)", c.in)
		}
	}
}

func TestParseBoolRejectsUnrecognizedValue(t *testing.T) {
	_, err := ParseBool("maybe")
	assert.Error(t, err, "expected error for unrecognized boolean string")
	_, err = ParseBool(int64(2))
	assert.Error(t, err, "expected error for out-of-range integer")
}

func TestCanonicalTypeStringIncludesParameters(t *testing.T) {
	assert.Equal(t, "Decimal(10,2)", Decimal(10, 2).String())
	assert.Equal(t, "VarChar(255)", VarChar(255).String())
	assert.Equal(t, "Int", Int().String())
}
