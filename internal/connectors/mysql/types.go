// Package mysql implements the MySQL Source, Sink, TypeMapper and
// ValueConverter.
package mysql

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

// TypeMapper implements connector.TypeMapper for MySQL.
type TypeMapper struct{}

// ToCanonical maps a MySQL native column type name to a CanonicalType.
// An unknown source type fails with a Type error; it is never silently
// coerced.
func (TypeMapper) ToCanonical(nativeType string) (types.CanonicalType, error) {
	upper := strings.ToUpper(strings.TrimSpace(nativeType))
	base, params := splitParams(upper)

	switch base {
	case "TINYINT":
		if params == "1" {
			return types.Boolean(), nil
		}
		return types.TinyInt(), nil
	case "BOOLEAN", "BOOL":
		return types.Boolean(), nil
	case "SMALLINT":
		return types.SmallInt(), nil
	case "INT", "INTEGER":
		return types.Int(), nil
	case "BIGINT":
		return types.BigInt(), nil
	case "FLOAT":
		return types.Float(), nil
	case "DOUBLE":
		return types.Double(), nil
	case "DECIMAL", "NUMERIC":
		p, s, ok := splitPrecisionScale(params)
		if !ok {
			p, s = 20, 6
		}
		return types.Decimal(p, s), nil
	case "VARCHAR":
		n, ok := parseInt(params)
		if !ok {
			n = 255
		}
		return types.VarChar(n), nil
	case "CHAR":
		n, ok := parseInt(params)
		if !ok {
			n = 255
		}
		return types.Char(n), nil
	case "TEXT", "MEDIUMTEXT", "LONGTEXT", "TINYTEXT":
		return types.Text(), nil
	case "DATETIME":
		return types.DateTime(), nil
	case "TIMESTAMP":
		return types.Timestamp(), nil
	case "DATE":
		return types.Date(), nil
	case "TIME":
		return types.Time(), nil
	case "BINARY":
		n, ok := parseInt(params)
		if !ok {
			n = 255
		}
		return types.Binary(n), nil
	case "VARBINARY":
		n, ok := parseInt(params)
		if !ok {
			n = 255
		}
		return types.Binary(n), nil
	case "BLOB", "MEDIUMBLOB", "LONGBLOB", "TINYBLOB":
		return types.Blob(), nil
	case "JSON":
		return types.Json(), nil
	default:
		return types.CanonicalType{}, dbsyncerr.New(dbsyncerr.Type, "unknown mysql type %q", nativeType)
	}
}

// ToNative maps a CanonicalType back to a MySQL column type
// declaration.
func (TypeMapper) ToNative(t types.CanonicalType) (string, error) {
	switch t.Kind {
	case types.KindTinyInt:
		return "TINYINT", nil
	case types.KindSmallInt:
		return "SMALLINT", nil
	case types.KindInt:
		return "INT", nil
	case types.KindBigInt:
		return "BIGINT", nil
	case types.KindFloat:
		return "FLOAT", nil
	case types.KindDouble:
		return "DOUBLE", nil
	case types.KindDecimal:
		return fmt.Sprintf("DECIMAL(%d,%d)", t.Precision, t.Scale), nil
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
		return "DATETIME", nil
	case types.KindTimestamp:
		return "TIMESTAMP", nil
	case types.KindBoolean:
		return "TINYINT(1)", nil
	case types.KindBinary:
		return fmt.Sprintf("VARBINARY(%d)", t.Length), nil
	case types.KindBlob:
		return "BLOB", nil
	case types.KindJson:
		return "JSON", nil
	default:
		return "", dbsyncerr.New(dbsyncerr.Type, "cannot map canonical type %s to mysql", t)
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

// ValueConverter implements connector.ValueConverter for MySQL.
type ValueConverter struct{}

// ToCanonical converts a value scanned from a MySQL driver row into its
// canonical representation under t. Null propagates; type-mismatched
// combinations fail with a Type error.
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
		b, err := toBytes(native)
		if err != nil {
			return types.CanonicalValue{}, dbsyncerr.Wrap(dbsyncerr.Type, err, "converting %v to %s", native, t)
		}
		return types.CanonicalValue{Kind: t.Kind, Bytes: b}, nil

	default:
		return types.CanonicalValue{}, dbsyncerr.New(dbsyncerr.Type, "unsupported target type %s", t)
	}
}

// FromCanonical converts a canonical value to a bind value suitable for
// database/sql against MySQL.
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
		if v.Bool {
			return int64(1), nil
		}
		return int64(0), nil
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
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
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
	case []byte:
		return strconv.ParseFloat(string(n), 64)
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, errors.Errorf("not a float: %v (%T)", v, v)
	}
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case []byte:
		return decimal.NewFromString(string(n))
	case string:
		return decimal.NewFromString(n)
	case float64:
		return decimal.NewFromFloat(n), nil
	default:
		return decimal.Decimal{}, errors.Errorf("not a decimal: %v (%T)", v, v)
	}
}

func toString(v any) (string, error) {
	switch s := v.(type) {
	case []byte:
		return string(s), nil
	case string:
		return s, nil
	default:
		return fmt.Sprintf("%v", s), nil
	}
}

func toBytes(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		return nil, errors.Errorf("not bytes: %v (%T)", v, v)
	}
}

func toEpochSeconds(v any) (int64, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Unix(), nil
	case []byte:
		return parseTimeString(string(t))
	case string:
		return parseTimeString(t)
	default:
		return 0, errors.Errorf("not a datetime: %v (%T)", v, v)
	}
}

func parseTimeString(s string) (int64, error) {
	layouts := []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05Z07:00",
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
