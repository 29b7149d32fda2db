// Package registry implements the name-indexed factory tables that
// turn a parsed ConnectorConfig into a live Source, Sink, or Transform.
// Connector packages self-register a factory from an init() function,
// mirroring database/sql.Register; lookups happen once, at job
// construction time, never per-batch.
package registry

import (
	"fmt"
	"sync"

	"github.com/dbsync/dbsync/internal/config"
	"github.com/dbsync/dbsync/internal/connector"
	"github.com/dbsync/dbsync/internal/dbsyncerr"
)

// SourceFactory builds a Source from a parsed connector configuration.
type SourceFactory func(cfg config.ConnectorConfig) (connector.Source, error)

// SinkFactory builds a Sink from a parsed connector configuration.
type SinkFactory func(cfg config.ConnectorConfig) (connector.Sink, error)

// TransformFactory builds a Transform from a parsed transform
// configuration's properties.
type TransformFactory func(properties map[string]any) (connector.Transform, error)

var (
	mu                 sync.RWMutex
	sourceFactories    = map[string]SourceFactory{}
	sinkFactories      = map[string]SinkFactory{}
	transformFactories = map[string]TransformFactory{}
)

// RegisterSource registers a source factory under name. It panics on a
// duplicate registration, matching database/sql.Register's contract for
// self-registering drivers -- a duplicate indicates a programming
// error, not a runtime condition callers should recover from.
func RegisterSource(name string, f SourceFactory) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := sourceFactories[name]; dup {
		panic(fmt.Sprintf("registry: source connector %q registered twice", name))
	}
	sourceFactories[name] = f
}

// RegisterSink registers a sink factory under name. See RegisterSource
// for the duplicate-registration contract.
func RegisterSink(name string, f SinkFactory) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := sinkFactories[name]; dup {
		panic(fmt.Sprintf("registry: sink connector %q registered twice", name))
	}
	sinkFactories[name] = f
}

// RegisterTransform registers a transform factory under name. See
// RegisterSource for the duplicate-registration contract.
func RegisterTransform(name string, f TransformFactory) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := transformFactories[name]; dup {
		panic(fmt.Sprintf("registry: transform %q registered twice", name))
	}
	transformFactories[name] = f
}

// NewSource looks up cfg.ConnectorType and constructs a Source. Unknown
// connector types fail with a Config error at job construction, not at
// run time.
func NewSource(cfg config.ConnectorConfig) (connector.Source, error) {
	mu.RLock()
	f, ok := sourceFactories[cfg.ConnectorType]
	mu.RUnlock()
	if !ok {
		return nil, dbsyncerr.New(dbsyncerr.Config, "unknown source connector type %q", cfg.ConnectorType)
	}
	return f(cfg)
}

// NewSink looks up cfg.ConnectorType and constructs a Sink.
func NewSink(cfg config.ConnectorConfig) (connector.Sink, error) {
	mu.RLock()
	f, ok := sinkFactories[cfg.ConnectorType]
	mu.RUnlock()
	if !ok {
		return nil, dbsyncerr.New(dbsyncerr.Config, "unknown sink connector type %q", cfg.ConnectorType)
	}
	return f(cfg)
}

// NewTransform looks up transformType and constructs a Transform.
func NewTransform(transformType string, properties map[string]any) (connector.Transform, error) {
	mu.RLock()
	f, ok := transformFactories[transformType]
	mu.RUnlock()
	if !ok {
		return nil, dbsyncerr.New(dbsyncerr.Config, "unknown transform type %q", transformType)
	}
	return f(properties)
}

// KnownSources returns the registered source connector type names, for
// diagnostics.
func KnownSources() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(sourceFactories))
	for n := range sourceFactories {
		names = append(names, n)
	}
	return names
}

// KnownSinks returns the registered sink connector type names, for
// diagnostics.
func KnownSinks() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(sinkFactories))
	for n := range sinkFactories {
		names = append(names, n)
	}
	return names
}
