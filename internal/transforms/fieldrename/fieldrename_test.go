package fieldrename

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsync/dbsync/internal/types"
)

func TestNewRequiresMappings(t *testing.T) {
	_, err := New(map[string]any{})
	assert.Error(t, err, "expected error for missing mappings property")
}

func TestNewRejectsNonStringMapping(t *testing.T) {
	_, err := New(map[string]any{
		"mappings": map[string]any{"old": 5},
	})
	assert.Error(t, err, "expected error for non-string mapping value")
}

func TestTransformRenamesMappedFieldsOnly(t *testing.T) {
	tr, err := New(map[string]any{
		"mappings": map[string]any{"old_name": "new_name"},
	})
	require.NoError(t, err)

	rec := types.Record{
		"old_name":  {Name: "old_name", Value: types.StringValue("hello"), Type: types.Text()},
		"untouched": {Name: "untouched", Value: types.IntValue(7), Type: types.BigInt()},
	}
	batch := types.Batch{rec}

	out, err := tr.Transform(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, out, len(batch), "record count should not change")

	result := out[0]
	require.Len(t, result, 2, "expected 2 fields in renamed record")

	renamed, ok := result["new_name"]
	require.True(t, ok, "expected field \"new_name\" in renamed record")
	assert.Equal(t, "new_name", renamed.Name)
	assert.True(t, renamed.Value.Equal(types.StringValue("hello")), "renamed field lost its value")

	_, stillPresent := result["old_name"]
	assert.False(t, stillPresent, "old field name should not survive the rename")

	passthrough, ok := result["untouched"]
	require.True(t, ok, "expected unmapped field \"untouched\" to pass through")
	assert.True(t, passthrough.Value.Equal(types.IntValue(7)), "unmapped field's value changed")
}

func TestTransformPreservesBatchSize(t *testing.T) {
	tr, err := New(map[string]any{"mappings": map[string]any{}})
	require.NoError(t, err)
	batch := types.Batch{
		{"a": {Name: "a", Value: types.IntValue(1), Type: types.Int()}},
		{"a": {Name: "a", Value: types.IntValue(2), Type: types.Int()}},
		{"a": {Name: "a", Value: types.IntValue(3), Type: types.Int()}},
	}
	out, err := tr.Transform(context.Background(), batch)
	require.NoError(t, err)
	assert.Len(t, out, 3)
}

func TestCloneIsIndependent(t *testing.T) {
	tr, err := New(map[string]any{
		"mappings": map[string]any{"a": "b"},
	})
	require.NoError(t, err)
	original := tr.(*Transform)
	cloned := original.Clone().(*Transform)

	cloned.Mappings["a"] = "c"
	assert.Equal(t, "b", original.Mappings["a"], "mutating the clone's mappings should not affect the original")
}
