package mysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsync/dbsync/internal/types"
)

func TestTypeMapperRoundTripsCommonTypes(t *testing.T) {
	var tm TypeMapper
	cases := []string{
		"INT", "BIGINT", "SMALLINT", "VARCHAR(255)", "CHAR(10)",
		"DECIMAL(10,2)", "TEXT", "DATETIME", "TIMESTAMP", "DATE", "TIME",
		"BLOB", "JSON",
	}
	for _, native := range cases {
		canonical, err := tm.ToCanonical(native)
		if !assert.NoError(t, err, "ToCanonical(%q)", native) {
			continue
		}
		_, err = tm.ToNative(canonical)
		assert.NoError(t, err, "ToNative(%v) for %q", canonical, native)
	}
}

func TestTypeMapperTinyIntOneIsBoolean(t *testing.T) {
	var tm TypeMapper
	ct, err := tm.ToCanonical("TINYINT(1)")
	require.NoError(t, err)
	assert.Equal(t, types.KindBoolean, ct.Kind, "TINYINT(1) should map to Boolean")
}

func TestTypeMapperRejectsUnknownType(t *testing.T) {
	var tm TypeMapper
	_, err := tm.ToCanonical("GEOMETRY")
	assert.Error(t, err, "expected an error for an unsupported native type")
}

func TestTypeMapperDecimalDefaultsWhenParamsMissing(t *testing.T) {
	var tm TypeMapper
	ct, err := tm.ToCanonical("DECIMAL")
	require.NoError(t, err)
	assert.NotZero(t, ct.Precision, "expected a default precision when DECIMAL has no parameters")
}

func TestValueConverterRoundTripsInt(t *testing.T) {
	var vc ValueConverter
	ct := types.BigInt()
	canonical, err := vc.ToCanonical(int64(12345), ct)
	require.NoError(t, err)
	native, err := vc.FromCanonical(canonical, ct)
	require.NoError(t, err)
	assert.Equal(t, int64(12345), native)
}

func TestValueConverterAcceptsDriverByteSliceForNumerics(t *testing.T) {
	// database/sql's MySQL driver often returns DECIMAL/BIGINT columns
	// as []byte when scanned into *any; both forms must convert cleanly.
	var vc ValueConverter
	ct := types.BigInt()
	canonical, err := vc.ToCanonical([]byte("98765"), ct)
	require.NoError(t, err)
	assert.EqualValues(t, 98765, canonical.Int64)
}

func TestValueConverterNullPropagates(t *testing.T) {
	var vc ValueConverter
	canonical, err := vc.ToCanonical(nil, types.Int())
	require.NoError(t, err)
	assert.True(t, canonical.IsNull, "expected nil native value to convert to a null canonical value")

	native, err := vc.FromCanonical(canonical, types.Int())
	require.NoError(t, err)
	assert.Nil(t, native, "expected null canonical value to convert back to nil")
}

func TestValueConverterDecimalRoundTripIsExact(t *testing.T) {
	var vc ValueConverter
	ct := types.Decimal(10, 2)
	canonical, err := vc.ToCanonical([]byte("1999.99"), ct)
	require.NoError(t, err)
	native, err := vc.FromCanonical(canonical, ct)
	require.NoError(t, err)
	assert.Equal(t, "1999.99", native)
}

func TestValueConverterBoolFromTinyInt(t *testing.T) {
	var vc ValueConverter
	canonical, err := vc.ToCanonical(int64(1), types.Boolean())
	require.NoError(t, err)
	assert.True(t, canonical.Bool, "expected tinyint value 1 to convert to boolean true")
}

func TestSplitParams(t *testing.T) {
	base, params := splitParams("DECIMAL(10,2)")
	assert.Equal(t, "DECIMAL", base)
	assert.Equal(t, "10,2", params)

	base, params = splitParams("TEXT")
	assert.Equal(t, "TEXT", base)
	assert.Empty(t, params)
}
