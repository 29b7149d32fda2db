package job

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsync/dbsync/internal/config"
	"github.com/dbsync/dbsync/internal/connector"
	"github.com/dbsync/dbsync/internal/registry"
	"github.com/dbsync/dbsync/internal/types"
)

func init() {
	registry.RegisterSource("build_test_source", func(cfg config.ConnectorConfig) (connector.Source, error) {
		return newMemSource(1), nil
	})
	registry.RegisterSink("build_test_sink", func(cfg config.ConnectorConfig) (connector.Sink, error) {
		return &memSink{}, nil
	})
	registry.RegisterTransform("build_test_transform", func(properties map[string]any) (connector.Transform, error) {
		return passthroughTransform{}, nil
	})
}

type passthroughTransform struct{}

func (passthroughTransform) Transform(ctx context.Context, batch types.Batch) (types.Batch, error) {
	return batch, nil
}
func (passthroughTransform) Clone() connector.Transform { return passthroughTransform{} }

func TestBuildResolvesSourceSinkAndTransforms(t *testing.T) {
	doc := &config.Job{
		JobName: "built-job",
		Source:  config.ConnectorConfig{ConnectorType: "build_test_source"},
		Sink:    config.ConnectorConfig{ConnectorType: "build_test_sink"},
	}
	j, err := Build(doc)
	require.NoError(t, err)
	assert.Equal(t, "built-job", j.Name)
	assert.NotNil(t, j.Source, "expected Source to be resolved")
	assert.NotNil(t, j.Sink, "expected Sink to be resolved")
}

func TestBuildFailsOnUnknownSourceType(t *testing.T) {
	doc := &config.Job{
		JobName: "x",
		Source:  config.ConnectorConfig{ConnectorType: "build_test_does_not_exist"},
		Sink:    config.ConnectorConfig{ConnectorType: "build_test_sink"},
	}
	_, err := Build(doc)
	assert.Error(t, err, "expected an error for an unregistered source connector type")
}
