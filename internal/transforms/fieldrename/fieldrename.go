// Package fieldrename implements the field_rename transform: renaming
// record fields per a static old-name to new-name mapping, leaving
// unmapped fields and all values untouched.
package fieldrename

import (
	"context"

	"github.com/dbsync/dbsync/internal/connector"
	"github.com/dbsync/dbsync/internal/dbsyncerr"
	"github.com/dbsync/dbsync/internal/registry"
	"github.com/dbsync/dbsync/internal/types"
)

func init() {
	registry.RegisterTransform("field_rename", New)
}

// Transform renames fields according to Mappings. A record's output
// key set equals { Mappings[k] if present else k : k in input keys }.
// Record count is always preserved exactly.
type Transform struct {
	Mappings map[string]string
}

var _ connector.Transform = (*Transform)(nil)

// New builds a field_rename Transform from its JSON properties:
// { "mappings": { "<old>": "<new>", ... } }.
func New(properties map[string]any) (connector.Transform, error) {
	raw, ok := properties["mappings"]
	if !ok {
		return nil, dbsyncerr.New(dbsyncerr.Config, "field_rename: missing required property \"mappings\"")
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, dbsyncerr.New(dbsyncerr.Config, "field_rename: \"mappings\" must be an object")
	}
	mappings := make(map[string]string, len(m))
	for k, v := range m {
		s, ok := v.(string)
		if !ok {
			return nil, dbsyncerr.New(dbsyncerr.Config, "field_rename: mapping for %q must be a string", k)
		}
		mappings[k] = s
	}
	return &Transform{Mappings: mappings}, nil
}

// Transform implements connector.Transform.
func (t *Transform) Transform(_ context.Context, batch types.Batch) (types.Batch, error) {
	out := make(types.Batch, len(batch))
	for i, rec := range batch {
		renamed := make(types.Record, len(rec))
		for name, field := range rec {
			newName := name
			if mapped, ok := t.Mappings[name]; ok {
				newName = mapped
			}
			field.Name = newName
			renamed[newName] = field
		}
		out[i] = renamed
	}
	return out, nil
}

// Clone returns an independent handle since Transform holds no mutable
// state beyond its immutable Mappings map, it is already safe to share
// across workers, but Clone still returns a fresh value to honor the
// contract that every worker holds its own clone.
func (t *Transform) Clone() connector.Transform {
	mappings := make(map[string]string, len(t.Mappings))
	for k, v := range t.Mappings {
		mappings[k] = v
	}
	return &Transform{Mappings: mappings}
}
