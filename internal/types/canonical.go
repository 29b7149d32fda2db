// Package types contains the canonical type system and data model
// shared by every connector: CanonicalType, CanonicalValue, Field,
// Record and Batch. Every connector converts its native rows and
// column types to and from this intermediate representation so that
// transforms and the job engine never need to know which database a
// batch came from.
package types

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Kind discriminates the variants of CanonicalType and CanonicalValue.
type Kind int

// Recognized canonical kinds.
const (
	KindNull Kind = iota
	KindTinyInt
	KindSmallInt
	KindInt
	KindBigInt
	KindFloat
	KindDouble
	KindDecimal
	KindChar
	KindVarChar
	KindText
	KindDate
	KindTime
	KindDateTime
	KindTimestamp
	KindBoolean
	KindBinary
	KindBlob
	KindJson
)

func (k Kind) String() string {
	names := [...]string{
		"Null", "TinyInt", "SmallInt", "Int", "BigInt", "Float", "Double",
		"Decimal", "Char", "VarChar", "Text", "Date", "Time", "DateTime",
		"Timestamp", "Boolean", "Binary", "Blob", "Json",
	}
	if int(k) < 0 || int(k) >= len(names) {
		return "Unknown"
	}
	return names[k]
}

// CanonicalType is a tagged variant over the engine's intermediate
// column types. Every instance carries its parameters (Length,
// Precision, Scale) inline, regardless of Kind.
type CanonicalType struct {
	Kind      Kind
	Length    int // Char, VarChar, Binary
	Precision int // Decimal
	Scale     int // Decimal
}

// Convenience constructors matching the names used in spec tables.
func TinyInt() CanonicalType   { return CanonicalType{Kind: KindTinyInt} }
func SmallInt() CanonicalType  { return CanonicalType{Kind: KindSmallInt} }
func Int() CanonicalType       { return CanonicalType{Kind: KindInt} }
func BigInt() CanonicalType    { return CanonicalType{Kind: KindBigInt} }
func Float() CanonicalType     { return CanonicalType{Kind: KindFloat} }
func Double() CanonicalType    { return CanonicalType{Kind: KindDouble} }
func Text() CanonicalType      { return CanonicalType{Kind: KindText} }
func Date() CanonicalType      { return CanonicalType{Kind: KindDate} }
func Time() CanonicalType      { return CanonicalType{Kind: KindTime} }
func DateTime() CanonicalType  { return CanonicalType{Kind: KindDateTime} }
func Timestamp() CanonicalType { return CanonicalType{Kind: KindTimestamp} }
func Boolean() CanonicalType   { return CanonicalType{Kind: KindBoolean} }
func Blob() CanonicalType      { return CanonicalType{Kind: KindBlob} }
func Json() CanonicalType      { return CanonicalType{Kind: KindJson} }
func Null() CanonicalType      { return CanonicalType{Kind: KindNull} }

func Decimal(precision, scale int) CanonicalType {
	return CanonicalType{Kind: KindDecimal, Precision: precision, Scale: scale}
}
func Char(length int) CanonicalType    { return CanonicalType{Kind: KindChar, Length: length} }
func VarChar(length int) CanonicalType { return CanonicalType{Kind: KindVarChar, Length: length} }
func Binary(length int) CanonicalType  { return CanonicalType{Kind: KindBinary, Length: length} }

// String renders the type for diagnostics and schema descriptions.
func (t CanonicalType) String() string {
	switch t.Kind {
	case KindDecimal:
		return fmt.Sprintf("Decimal(%d,%d)", t.Precision, t.Scale)
	case KindChar, KindVarChar, KindBinary:
		return fmt.Sprintf("%s(%d)", t.Kind, t.Length)
	default:
		return t.Kind.String()
	}
}

// CanonicalValue is a tagged variant over the engine's runtime values.
// A null value (IsNull==true) is compatible with every CanonicalType.
type CanonicalValue struct {
	IsNull bool

	Kind Kind // which field below is populated, ignored when IsNull

	Int64        int64
	Float64      float64
	DecimalVal   decimal.Decimal
	Str          string
	EpochSeconds int64 // seconds since epoch, for DateTime/Timestamp/Date/Time
	Bool         bool
	Bytes        []byte
}

// NullValue returns the canonical null, assignable to any type.
func NullValue() CanonicalValue { return CanonicalValue{IsNull: true} }

func IntValue(v int64) CanonicalValue {
	return CanonicalValue{Kind: KindBigInt, Int64: v}
}

func FloatValue(v float64) CanonicalValue {
	return CanonicalValue{Kind: KindDouble, Float64: v}
}

func DecimalValue(v decimal.Decimal) CanonicalValue {
	return CanonicalValue{Kind: KindDecimal, DecimalVal: v}
}

func StringValue(v string) CanonicalValue {
	return CanonicalValue{Kind: KindText, Str: v}
}

func DateTimeValue(epochSeconds int64) CanonicalValue {
	return CanonicalValue{Kind: KindDateTime, EpochSeconds: epochSeconds}
}

func BoolValue(v bool) CanonicalValue {
	return CanonicalValue{Kind: KindBoolean, Bool: v}
}

func BinaryValue(v []byte) CanonicalValue {
	return CanonicalValue{Kind: KindBinary, Bytes: v}
}

// ParseBool accepts {0,1}/{"true","false"} case-insensitive, per the
// boolean conversion rule for numeric and string source rows.
func ParseBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case int64:
		switch v {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
	case int:
		switch v {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
	case string:
		switch strings.ToLower(v) {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
	}
	return false, errors.Errorf("cannot interpret %v (%T) as boolean", raw, raw)
}

// Equal reports whether two values are the same, comparing decimals as
// decimals rather than as strings.
func (v CanonicalValue) Equal(o CanonicalValue) bool {
	if v.IsNull || o.IsNull {
		return v.IsNull == o.IsNull
	}
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindDecimal:
		return v.DecimalVal.Equal(o.DecimalVal)
	case KindBinary, KindBlob:
		return bytes.Equal(v.Bytes, o.Bytes)
	case KindBoolean:
		return v.Bool == o.Bool
	case KindDouble, KindFloat:
		return v.Float64 == o.Float64
	case KindDateTime, KindTimestamp, KindDate, KindTime:
		return v.EpochSeconds == o.EpochSeconds
	case KindBigInt, KindInt, KindSmallInt, KindTinyInt:
		return v.Int64 == o.Int64
	default:
		return v.Str == o.Str
	}
}

// Compare orders two values of the same kind. Decimal comparison uses
// decimal.Decimal.Cmp, never string comparison.
func (v CanonicalValue) Compare(o CanonicalValue) (int, error) {
	if v.Kind != o.Kind {
		return 0, errors.Errorf("cannot compare %s with %s", v.Kind, o.Kind)
	}
	switch v.Kind {
	case KindDecimal:
		return v.DecimalVal.Cmp(o.DecimalVal), nil
	case KindDouble, KindFloat:
		switch {
		case v.Float64 < o.Float64:
			return -1, nil
		case v.Float64 > o.Float64:
			return 1, nil
		default:
			return 0, nil
		}
	case KindBigInt, KindInt, KindSmallInt, KindTinyInt, KindDateTime, KindTimestamp, KindDate, KindTime:
		switch {
		case v.Int64 < o.Int64 || v.EpochSeconds < o.EpochSeconds:
			return -1, nil
		case v.Int64 > o.Int64 || v.EpochSeconds > o.EpochSeconds:
			return 1, nil
		default:
			return 0, nil
		}
	case KindChar, KindVarChar, KindText:
		return strings.Compare(v.Str, o.Str), nil
	default:
		return 0, errors.Errorf("%s is not ordered", v.Kind)
	}
}

// ToWire serializes a value to a compact, self-describing binary form
// for serialization checkpoints (tests, logging).
func ToWire(v CanonicalValue) ([]byte, error) {
	var buf bytes.Buffer
	if v.IsNull {
		buf.WriteByte(0xFF)
		return buf.Bytes(), nil
	}
	buf.WriteByte(byte(v.Kind))
	switch v.Kind {
	case KindBigInt, KindInt, KindSmallInt, KindTinyInt:
		_ = binary.Write(&buf, binary.BigEndian, v.Int64)
	case KindDouble, KindFloat:
		_ = binary.Write(&buf, binary.BigEndian, v.Float64)
	case KindDecimal:
		writeLenPrefixed(&buf, []byte(v.DecimalVal.String()))
	case KindChar, KindVarChar, KindText:
		writeLenPrefixed(&buf, []byte(v.Str))
	case KindDateTime, KindTimestamp, KindDate, KindTime:
		_ = binary.Write(&buf, binary.BigEndian, v.EpochSeconds)
	case KindBoolean:
		if v.Bool {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case KindBinary, KindBlob:
		writeLenPrefixed(&buf, v.Bytes)
	case KindJson:
		writeLenPrefixed(&buf, []byte(v.Str))
	default:
		return nil, errors.Errorf("cannot serialize kind %s", v.Kind)
	}
	return buf.Bytes(), nil
}

func writeLenPrefixed(buf *bytes.Buffer, b []byte) {
	_ = binary.Write(buf, binary.BigEndian, uint32(len(b)))
	buf.Write(b)
}

func readLenPrefixed(r *bytes.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, errors.WithStack(err)
	}
	b := make([]byte, n)
	if _, err := r.Read(b); err != nil {
		return nil, errors.WithStack(err)
	}
	return b, nil
}

// FromWire is the inverse of ToWire.
func FromWire(data []byte) (CanonicalValue, error) {
	r := bytes.NewReader(data)
	tag, err := r.ReadByte()
	if err != nil {
		return CanonicalValue{}, errors.WithStack(err)
	}
	if tag == 0xFF {
		return NullValue(), nil
	}
	k := Kind(tag)
	switch k {
	case KindBigInt, KindInt, KindSmallInt, KindTinyInt:
		var v int64
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return CanonicalValue{}, errors.WithStack(err)
		}
		return CanonicalValue{Kind: k, Int64: v}, nil
	case KindDouble, KindFloat:
		var v float64
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return CanonicalValue{}, errors.WithStack(err)
		}
		return CanonicalValue{Kind: k, Float64: v}, nil
	case KindDecimal:
		b, err := readLenPrefixed(r)
		if err != nil {
			return CanonicalValue{}, err
		}
		d, err := decimal.NewFromString(string(b))
		if err != nil {
			return CanonicalValue{}, errors.WithStack(err)
		}
		return CanonicalValue{Kind: k, DecimalVal: d}, nil
	case KindChar, KindVarChar, KindText, KindJson:
		b, err := readLenPrefixed(r)
		if err != nil {
			return CanonicalValue{}, err
		}
		return CanonicalValue{Kind: k, Str: string(b)}, nil
	case KindDateTime, KindTimestamp, KindDate, KindTime:
		var v int64
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return CanonicalValue{}, errors.WithStack(err)
		}
		return CanonicalValue{Kind: k, EpochSeconds: v}, nil
	case KindBoolean:
		b, err := r.ReadByte()
		if err != nil {
			return CanonicalValue{}, errors.WithStack(err)
		}
		return CanonicalValue{Kind: k, Bool: b == 1}, nil
	case KindBinary, KindBlob:
		b, err := readLenPrefixed(r)
		if err != nil {
			return CanonicalValue{}, err
		}
		return CanonicalValue{Kind: k, Bytes: b}, nil
	default:
		return CanonicalValue{}, errors.Errorf("cannot deserialize kind %s", k)
	}
}
