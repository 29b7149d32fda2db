package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsync/dbsync/internal/types"
)

func TestTypeMapperRoundTripsCommonTypes(t *testing.T) {
	var tm TypeMapper
	cases := []string{
		"INTEGER", "BIGINT", "SMALLINT", "VARCHAR(255)", "CHARACTER VARYING(64)",
		"NUMERIC(10,2)", "TEXT", "TIMESTAMP", "TIMESTAMPTZ", "DATE", "TIME",
		"BYTEA", "JSONB",
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

func TestTypeMapperAliasesMapToSameCanonicalType(t *testing.T) {
	var tm TypeMapper
	a, err := tm.ToCanonical("INT4")
	require.NoError(t, err)
	b, err := tm.ToCanonical("INTEGER")
	require.NoError(t, err)
	assert.Equal(t, b.Kind, a.Kind, "INT4 and INTEGER should map to the same kind")
}

func TestTypeMapperRejectsUnknownType(t *testing.T) {
	var tm TypeMapper
	_, err := tm.ToCanonical("POINT")
	assert.Error(t, err, "expected an error for an unsupported native type")
}

func TestValueConverterRoundTripsInt(t *testing.T) {
	var vc ValueConverter
	ct := types.BigInt()
	canonical, err := vc.ToCanonical(int64(55), ct)
	require.NoError(t, err)
	native, err := vc.FromCanonical(canonical, ct)
	require.NoError(t, err)
	assert.Equal(t, int64(55), native)
}

func TestValueConverterNullPropagates(t *testing.T) {
	var vc ValueConverter
	canonical, err := vc.ToCanonical(nil, types.Text())
	require.NoError(t, err)
	assert.True(t, canonical.IsNull, "expected nil native value to convert to a null canonical value")

	native, err := vc.FromCanonical(canonical, types.Text())
	require.NoError(t, err)
	assert.Nil(t, native, "expected null canonical value to convert back to nil")
}

func TestValueConverterBoolIsNativeBool(t *testing.T) {
	// Unlike MySQL (which stores booleans as TINYINT(1)), pgx returns
	// native Go bool values directly for PostgreSQL's BOOLEAN type.
	var vc ValueConverter
	canonical, err := vc.ToCanonical(true, types.Boolean())
	require.NoError(t, err)
	native, err := vc.FromCanonical(canonical, types.Boolean())
	require.NoError(t, err)
	assert.Equal(t, true, native)
}

func TestValueConverterBinaryRequiresByteSlice(t *testing.T) {
	var vc ValueConverter
	_, err := vc.ToCanonical("not bytes", types.Blob())
	assert.Error(t, err, "expected an error converting a non-[]byte value to BYTEA")
}

func TestValueConverterDatetimeFromTimeTime(t *testing.T) {
	var vc ValueConverter
	ts, err := time.Parse(time.RFC3339, "2024-03-15T10:30:00Z")
	require.NoError(t, err, "parsing test fixture time")
	canonical, err := vc.ToCanonical(ts, types.Timestamp())
	require.NoError(t, err)
	assert.NotZero(t, canonical.EpochSeconds, "expected a non-zero epoch seconds value")
}
