// Package connector defines the abstract Source, ShardedSource, Sink,
// PooledSink and Transform contracts that every concrete connector
// implements, plus the TypeMapper/ValueConverter split that keeps a
// connector's type vocabulary separate from its row-level value
// coercion. The job engine depends only on these interfaces, never on
// a concrete driver.
package connector

import (
	"context"

	"github.com/dbsync/dbsync/internal/jobctx"
	"github.com/dbsync/dbsync/internal/types"
)

// Source reads batches of records from an external system.
type Source interface {
	// Init opens connections, discovers schema, and writes the schema
	// description into jc via jc.SetSchema.
	Init(ctx context.Context, jc *jobctx.Context) error

	// ReadBatch returns the next batch of up to maxSize records. ok is
	// false once the source is exhausted.
	ReadBatch(ctx context.Context, maxSize int) (batch types.Batch, ok bool, err error)

	// Close releases resources. It is idempotent: safe to call more
	// than once, and safe to call before Init.
	Close() error

	// AsSharded returns the ShardedSource capability, if supported.
	AsSharded() (ShardedSource, bool)

	// Clone returns an independent handle to the same logical source,
	// suitable for handing to a separate worker. The clone is not yet
	// initialized.
	Clone() Source
}

// ShardedSource is the optional capability by which a source exposes
// its keyspace for parallel range reads.
type ShardedSource interface {
	Source

	// CountRecords returns the total number of rows in scope.
	CountRecords(ctx context.Context) (int64, error)

	// KeyRange returns the inclusive-inclusive bounds of the source's
	// primary ordering column.
	KeyRange(ctx context.Context) (min, max int64, err error)

	// ReadBatchRange returns the next batch within the half-open
	// [start, end) key range. ok is false once the range is exhausted.
	ReadBatchRange(ctx context.Context, start, end int64) (batch types.Batch, ok bool, err error)

	// DescribeSchema returns the opaque schema description used by the
	// sink to create or recreate the target table. Every occurrence of
	// the source's own table name is replaced with the literal
	// "target_table".
	DescribeSchema(ctx context.Context) (string, error)
}

// SaveMode controls how a sink's target table is created.
type SaveMode int

// Recognized save modes. Only Overwrite is required by the job engine
// today; the others are reserved for connectors that choose to support
// them.
const (
	Overwrite SaveMode = iota
	Append
	ErrorIfExists
	Ignore
)

func (m SaveMode) String() string {
	switch m {
	case Overwrite:
		return "Overwrite"
	case Append:
		return "Append"
	case ErrorIfExists:
		return "ErrorIfExists"
	case Ignore:
		return "Ignore"
	default:
		return "Unknown"
	}
}

// Sink writes batches of records to an external system.
type Sink interface {
	// Init opens connections. If jc.Schema() is non-empty, the sink
	// substitutes its own table name for the "target_table" placeholder
	// and creates the target table under SaveMode Overwrite.
	Init(ctx context.Context, jc *jobctx.Context) error

	// WriteBatch applies an entire batch as one transactional unit:
	// either every record becomes durable, or the call returns an error
	// and none of the batch is left half-applied.
	WriteBatch(ctx context.Context, batch types.Batch) error

	// Commit performs any final flush. It may be a no-op.
	Commit(ctx context.Context) error

	// Close releases resources. It is idempotent.
	Close() error

	// AsPooled returns the PooledSink capability, if supported.
	AsPooled() (PooledSink, bool)

	// Clone returns an independent handle to the same logical sink.
	Clone() Sink
}

// PoolStats summarizes a PooledSink's connection pool.
type PoolStats struct {
	MaxConnections       int
	InUseConnections     int
	AvailableConnections int
}

// PooledSink is the optional capability by which a sink exposes its
// connection-pool controls.
type PooledSink interface {
	Sink

	PoolStats() PoolStats
	ResizePool(ctx context.Context, n int) error
	AvailableConnections() int
	WriteBatchPooled(ctx context.Context, batch types.Batch, connID int) error
	CreateTable(ctx context.Context, schema string, mode SaveMode) error
}

// Transform is a pure batch-in, batch-out operator. Implementations
// must not retain state that would make behavior order-dependent
// across parallel workers -- each worker holds an independent Clone.
type Transform interface {
	Transform(ctx context.Context, batch types.Batch) (types.Batch, error)
	Clone() Transform
}

// TypeMapper translates between a connector's native type names and
// canonical types.
type TypeMapper interface {
	ToCanonical(nativeType string) (types.CanonicalType, error)
	ToNative(t types.CanonicalType) (string, error)
}

// ValueConverter translates row values between a connector's native
// representation and canonical values.
type ValueConverter interface {
	// ToCanonical converts a native value (as scanned from a driver row)
	// to its canonical representation under the given target type.
	ToCanonical(native any, t types.CanonicalType) (types.CanonicalValue, error)

	// FromCanonical converts a canonical value to a native bind value
	// suitable for the connector's driver, under the given target type.
	FromCanonical(v types.CanonicalValue, t types.CanonicalType) (any, error)
}
