// Package jobctx defines Context, the small owned record passed by
// reference into source and sink Init calls. It carries the
// source-discovered schema description, a shared cancellation flag,
// and the job's metrics handle. It is never retained by a connector
// past Init.
package jobctx

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dbsync/dbsync/internal/metrics"
)

// TargetTablePlaceholder is the substring within a schema description
// that a sink replaces with its own configured table name.
const TargetTablePlaceholder = "target_table"

// Context carries per-job state shared between a source and a sink
// across their Init calls, and the shared cancellation flag workers
// poll between batches.
type Context struct {
	Metrics *metrics.Handle

	schemaOnce sync.Once
	schema     string

	shutdown atomic.Bool
}

// New returns a fresh Context for jobName.
func New(jobName string) *Context {
	return &Context{Metrics: metrics.New(jobName)}
}

// SetSchema records the source's schema description. Only the first
// call has any effect; the field is write-once.
func (c *Context) SetSchema(schema string) {
	c.schemaOnce.Do(func() {
		c.schema = schema
	})
}

// Schema returns the schema description set by the source, or "" if
// none was set (e.g. the source declined schema discovery).
func (c *Context) Schema() string {
	return c.schema
}

// ResolveSchema substitutes every occurrence of the target-table
// placeholder in the source's schema description with targetTable,
// returning "" unchanged when no schema was recorded.
func (c *Context) ResolveSchema(targetTable string) string {
	if c.schema == "" {
		return ""
	}
	return strings.ReplaceAll(c.schema, TargetTablePlaceholder, targetTable)
}

// RequestShutdown sets the shared cancellation flag. Workers observe it
// between batches and drain gracefully.
func (c *Context) RequestShutdown() {
	c.shutdown.Store(true)
}

// ShuttingDown reports whether RequestShutdown has been called.
func (c *Context) ShuttingDown() bool {
	return c.shutdown.Load()
}
