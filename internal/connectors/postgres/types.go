// Package postgres implements the PostgreSQL Source, Sink, TypeMapper
// and ValueConverter.
package postgres

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/dbsync/dbsync/internal/dbsyncerr"
	"github.com/dbsync/dbsync/internal/types"
)

// TypeMapper implements connector.TypeMapper for PostgreSQL.
type TypeMapper struct{}

// ToCanonical maps a PostgreSQL native column type name to a
// CanonicalType.
func (TypeMapper) ToCanonical(nativeType string) (types.CanonicalType, error) {
	upper := strings.ToUpper(strings.TrimSpace(nativeType))
	base, params := splitParams(upper)

	switch base {
	case "SMALLINT", "INT2":
		return types.SmallInt(), nil
	case "INTEGER", "INT", "INT4":
		return types.Int(), nil
	case "BIGINT", "INT8":
		return types.BigInt(), nil
	case "REAL", "FLOAT4":
		return types.Float(), nil
	case "DOUBLE PRECISION", "FLOAT8":
		return types.Double(), nil
	case "NUMERIC", "DECIMAL":
		p, s, ok := splitPrecisionScale(params)
		if !ok {
			p, s = 20, 6
		}
		return types.Decimal(p, s), nil
	case "VARCHAR", "CHARACTER VARYING":
		n, ok := parseInt(params)
		if !ok {
			n = 255
		}
		return types.VarChar(n), nil
	case "CHAR", "CHARACTER", "BPCHAR":
		n, ok := parseInt(params)
		if !ok {
			n = 255
		}
		return types.Char(n), nil
	case "TEXT":
		return types.Text(), nil
	case "DATE":
		return types.Date(), nil
	case "TIME", "TIME WITHOUT TIME ZONE", "TIME WITH TIME ZONE":
		return types.Time(), nil
	case "TIMESTAMP", "TIMESTAMP WITHOUT TIME ZONE":
		return types.DateTime(), nil
	case "TIMESTAMPTZ", "TIMESTAMP WITH TIME ZONE":
		return types.Timestamp(), nil
	case "BOOLEAN", "BOOL":
		return types.Boolean(), nil
	case "BYTEA":
		return types.Blob(), nil
	case "JSON", "JSONB":
		return types.Json(), nil
	default:
		return types.CanonicalType{}, dbsyncerr.New(dbsyncerr.Type, "unknown postgres type %q", nativeType)
	}
}

// ToNative maps a CanonicalType back to a PostgreSQL column type
// declaration.
func (TypeMapper) ToNative(t types.CanonicalType) (string, error) {
	switch t.Kind {
	case types.KindTinyInt, types.KindSmallInt:
		return "SMALLINT", nil
	case types.KindInt:
		return "INTEGER", nil
	case types.KindBigInt:
		return "BIGINT", nil
	case types.KindFloat:
		return "REAL", nil
	case types.KindDouble:
		return "DOUBLE PRECISION", nil
	case types.KindDecimal:
		return fmt.Sprintf("NUMERIC(%d,%d)", t.Precision, t.Scale), nil
	case types.KindChar:
		return fmt.Sprintf("CHAR(%d)", t.Length), nil
	case types.KindVarChar:
		return fmt.Sprintf("VARCHAR(%d)", t.Length), nil
	case types.KindText:
		return "TEXT", nil
	case types.KindDate:
		return "DATE", nil
	case types.KindTime:
		return "TIME", nil
	case types.KindDateTime:
		return "TIMESTAMP", nil
	case types.KindTimestamp:
		return "TIMESTAMPTZ", nil
	case types.KindBoolean:
		return "BOOLEAN", nil
	case types.KindBinary, types.KindBlob:
		return "BYTEA", nil
	case types.KindJson:
		return "JSONB", nil
	default:
		return "", dbsyncerr.New(dbsyncerr.Type, "cannot map canonical type %s to postgres", t)
	}
}

func splitParams(nativeType string) (base, params string) {
	open := strings.IndexByte(nativeType, '(')
	if open < 0 {
		return nativeType, ""
	}
	closeIdx := strings.IndexByte(nativeType, ')')
	if closeIdx < open {
		return nativeType, ""
	}
	return strings.TrimSpace(nativeType[:open]), nativeType[open+1 : closeIdx]
}

func parseInt(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return n, true
}

func splitPrecisionScale(s string) (precision, scale int, ok bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	p, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	sc, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return p, sc, true
}

// ValueConverter implements connector.ValueConverter for PostgreSQL.
// pgx decodes rows into native Go types directly (int64, float64,
// string, time.Time, []byte, bool), so this converter is narrower than
// the MySQL one, which must also handle driver-returned []byte for
// numeric text values.
type ValueConverter struct{}

// ToCanonical converts a value scanned from pgx into its canonical
// representation under t.
func (ValueConverter) ToCanonical(native any, t types.CanonicalType) (types.CanonicalValue, error) {
	if native == nil {
		return types.NullValue(), nil
	}

	switch t.Kind {
	case types.KindTinyInt, types.KindSmallInt, types.KindInt, types.KindBigInt:
		n, err := toInt64(native)
		if err != nil {
			return types.CanonicalValue{}, dbsyncerr.Wrap(dbsyncerr.Type, err, "converting %v to %s", native, t)
		}
		return types.CanonicalValue{Kind: t.Kind, Int64: n}, nil

	case types.KindFloat, types.KindDouble:
		f, err := toFloat64(native)
		if err != nil {
			return types.CanonicalValue{}, dbsyncerr.Wrap(dbsyncerr.Type, err, "converting %v to %s", native, t)
		}
		return types.CanonicalValue{Kind: t.Kind, Float64: f}, nil

	case types.KindDecimal:
		d, err := toDecimal(native)
		if err != nil {
			return types.CanonicalValue{}, dbsyncerr.Wrap(dbsyncerr.Type, err, "converting %v to %s", native, t)
		}
		return types.CanonicalValue{Kind: types.KindDecimal, DecimalVal: d}, nil

	case types.KindChar, types.KindVarChar, types.KindText, types.KindJson:
		s, err := toString(native)
		if err != nil {
			return types.CanonicalValue{}, dbsyncerr.Wrap(dbsyncerr.Type, err, "converting %v to %s", native, t)
		}
		return types.CanonicalValue{Kind: t.Kind, Str: s}, nil

	case types.KindDate, types.KindTime, types.KindDateTime, types.KindTimestamp:
		sec, err := toEpochSeconds(native)
		if err != nil {
			return types.CanonicalValue{}, dbsyncerr.Wrap(dbsyncerr.Type, err, "converting %v to %s", native, t)
		}
		return types.CanonicalValue{Kind: t.Kind, EpochSeconds: sec}, nil

	case types.KindBoolean:
		b, err := types.ParseBool(native)
		if err != nil {
			return types.CanonicalValue{}, dbsyncerr.Wrap(dbsyncerr.Type, err, "converting %v to %s", native, t)
		}
		return types.CanonicalValue{Kind: types.KindBoolean, Bool: b}, nil

	case types.KindBinary, types.KindBlob:
		b, ok := native.([]byte)
		if !ok {
			return types.CanonicalValue{}, dbsyncerr.New(dbsyncerr.Type, "not bytea: %v (%T)", native, native)
		}
		return types.CanonicalValue{Kind: t.Kind, Bytes: b}, nil

	default:
		return types.CanonicalValue{}, dbsyncerr.New(dbsyncerr.Type, "unsupported target type %s", t)
	}
}

// FromCanonical converts a canonical value to a bind value suitable for
// pgx against PostgreSQL.
func (ValueConverter) FromCanonical(v types.CanonicalValue, t types.CanonicalType) (any, error) {
	if v.IsNull {
		return nil, nil
	}
	switch t.Kind {
	case types.KindTinyInt, types.KindSmallInt, types.KindInt, types.KindBigInt:
		return v.Int64, nil
	case types.KindFloat, types.KindDouble:
		return v.Float64, nil
	case types.KindDecimal:
		return v.DecimalVal.String(), nil
	case types.KindChar, types.KindVarChar, types.KindText, types.KindJson:
		return v.Str, nil
	case types.KindDate, types.KindTime, types.KindDateTime, types.KindTimestamp:
		return time.Unix(v.EpochSeconds, 0).UTC(), nil
	case types.KindBoolean:
		return v.Bool, nil
	case types.KindBinary, types.KindBlob:
		return v.Bytes, nil
	default:
		return nil, dbsyncerr.New(dbsyncerr.Type, "unsupported target type %s", t)
	}
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, errors.Errorf("not an integer: %v (%T)", v, v)
	}
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, errors.Errorf("not a float: %v (%T)", v, v)
	}
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case string:
		return decimal.NewFromString(n)
	case float64:
		return decimal.NewFromFloat(n), nil
	case []byte:
		return decimal.NewFromString(string(n))
	default:
		return decimal.Decimal{}, errors.Errorf("not a decimal: %v (%T)", v, v)
	}
}

func toString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	default:
		return fmt.Sprintf("%v", s), nil
	}
}

func toEpochSeconds(v any) (int64, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Unix(), nil
	case string:
		return parseTimeString(t)
	default:
		return 0, errors.Errorf("not a datetime: %v (%T)", v, v)
	}
}

func parseTimeString(s string) (int64, error) {
	layouts := []string{
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02",
		"15:04:05",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC().Unix(), nil
		}
	}
	return 0, errors.Errorf("cannot parse time %q", s)
}
