package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeValidJob(t *testing.T) {
	doc := `{
		"job_name": "orders-sync",
		"source": {"name": "src", "connector_type": "mysql", "properties": {"url": "mysql://x", "table": "orders"}},
		"sink": {"name": "snk", "connector_type": "postgres", "properties": {"url": "postgres://y", "table": "orders"}},
		"transforms": [{"transform_type": "field_rename", "properties": {"mappings": {"a": "b"}}}]
	}`
	job, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, "orders-sync", job.JobName)
	assert.Equal(t, "mysql", job.Source.ConnectorType)
	assert.Len(t, job.Transforms, 1)
}

func TestDecodeRejectsMissingJobName(t *testing.T) {
	doc := `{"source": {"connector_type": "mysql"}, "sink": {"connector_type": "postgres"}}`
	_, err := Decode(strings.NewReader(doc))
	assert.Error(t, err, "expected an error for a missing job_name")
}

func TestDecodeRejectsMissingConnectorType(t *testing.T) {
	doc := `{"job_name": "x", "source": {}, "sink": {"connector_type": "postgres"}}`
	_, err := Decode(strings.NewReader(doc))
	assert.Error(t, err, "expected an error for a missing source.connector_type")
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	_, err := Decode(strings.NewReader("{not json"))
	assert.Error(t, err, "expected an error for malformed JSON")
}

func TestConnectorConfigStringDefault(t *testing.T) {
	c := ConnectorConfig{Properties: map[string]any{"foo": "bar"}}
	assert.Equal(t, "bar", c.StringDefault("foo", "fallback"))
	assert.Equal(t, "fallback", c.StringDefault("missing", "fallback"))
}

func TestConnectorConfigIntDefault(t *testing.T) {
	c := ConnectorConfig{Properties: map[string]any{"n": float64(42)}}
	assert.Equal(t, 42, c.IntDefault("n", 1))
	assert.Equal(t, 7, c.IntDefault("missing", 7))
}

func TestConnectorConfigRequireStringsReportsFirstMissing(t *testing.T) {
	c := ConnectorConfig{
		Name:          "mine",
		ConnectorType: "mysql",
		Properties:    map[string]any{"url": "mysql://x"},
	}
	err := c.RequireStrings("url", "table")
	require.Error(t, err, "expected an error for the missing \"table\" property")
	assert.Contains(t, err.Error(), "table", "error should name the missing property")
}

func TestConnectorConfigRequireStringsPassesWhenAllPresent(t *testing.T) {
	c := ConnectorConfig{Properties: map[string]any{"url": "mysql://x", "table": "orders"}}
	assert.NoError(t, c.RequireStrings("url", "table"))
}
