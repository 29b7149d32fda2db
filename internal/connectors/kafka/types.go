// Package kafka implements the Kafka Source and Sink: a topic consumer
// that decodes each message's JSON payload into a Record, and a
// producer that serializes each Record back to a JSON message value.
// Kafka carries no column schema, so unlike the mysql and postgres
// connectors there is no static type catalog -- every field's
// canonical kind is inferred from the shape of its JSON value.
package kafka

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dbsync/dbsync/internal/dbsyncerr"
	"github.com/dbsync/dbsync/internal/types"
)

// ValueConverter translates between Go's generic JSON decoding
// (map[string]any field values) and CanonicalValue, inferring a kind
// from the JSON value's runtime shape rather than a declared column
// type.
type ValueConverter struct{}

// ToCanonical converts a JSON-decoded field value to its canonical
// representation. t is not consulted: the kind is always inferred from
// native's Go type.
func (ValueConverter) ToCanonical(native any, t types.CanonicalType) (types.CanonicalValue, error) {
	if native == nil {
		return types.NullValue(), nil
	}
	switch v := native.(type) {
	case bool:
		return types.BoolValue(v), nil
	case float64:
		if v == float64(int64(v)) {
			return types.IntValue(int64(v)), nil
		}
		return types.FloatValue(v), nil
	case string:
		return types.StringValue(v), nil
	case json.Number:
		if d, err := decimal.NewFromString(v.String()); err == nil {
			return types.DecimalValue(d), nil
		}
		return types.StringValue(v.String()), nil
	default:
		// Nested objects/arrays serialize back out as opaque JSON text.
		raw, err := json.Marshal(v)
		if err != nil {
			return types.CanonicalValue{}, dbsyncerr.Wrap(dbsyncerr.Type, err, "encoding nested json value")
		}
		return types.CanonicalValue{Kind: types.KindJson, Str: string(raw)}, nil
	}
}

// FromCanonical converts a canonical value back to a value that
// encoding/json can serialize into a message payload.
func (ValueConverter) FromCanonical(v types.CanonicalValue, t types.CanonicalType) (any, error) {
	if v.IsNull {
		return nil, nil
	}
	switch v.Kind {
	case types.KindBigInt, types.KindInt, types.KindSmallInt, types.KindTinyInt:
		return v.Int64, nil
	case types.KindFloat, types.KindDouble:
		return v.Float64, nil
	case types.KindDecimal:
		return v.DecimalVal.String(), nil
	case types.KindBoolean:
		return v.Bool, nil
	case types.KindBinary, types.KindBlob:
		return v.Bytes, nil
	case types.KindJson:
		var raw any
		if err := json.Unmarshal([]byte(v.Str), &raw); err != nil {
			return nil, dbsyncerr.Wrap(dbsyncerr.Type, err, "decoding nested json value")
		}
		return raw, nil
	case types.KindDateTime, types.KindTimestamp, types.KindDate, types.KindTime:
		return v.EpochSeconds, nil
	default:
		return v.Str, nil
	}
}

// TypeMapper is a thin adapter for interface symmetry with the other
// connectors. Kafka has no declared column types, so every native type
// name maps to the catch-all Json kind, and every canonical kind maps
// back to a "json:<kind>" tag used only for diagnostics.
type TypeMapper struct{}

func (TypeMapper) ToCanonical(nativeType string) (types.CanonicalType, error) {
	return types.Json(), nil
}

func (TypeMapper) ToNative(t types.CanonicalType) (string, error) {
	return fmt.Sprintf("json:%s", t.Kind), nil
}

func recordToJSON(rec types.Record) ([]byte, error) {
	var converter ValueConverter
	out := make(map[string]any, len(rec))
	for name, f := range rec {
		v, err := converter.FromCanonical(f.Value, f.Type)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return json.Marshal(out)
}

func jsonToRecord(payload []byte) (types.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, dbsyncerr.Wrap(dbsyncerr.Read, err, "decoding message payload as json object")
	}

	var converter ValueConverter
	rec := make(types.Record, len(raw))
	for name, v := range raw {
		cv, err := converter.ToCanonical(v, types.Null())
		if err != nil {
			return nil, err
		}
		rec[name] = types.Field{Name: name, Value: cv, Type: types.CanonicalType{Kind: cv.Kind}}
	}
	return rec, nil
}
