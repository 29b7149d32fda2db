// Package config decodes and validates the job configuration document.
// Full JSON Schema validation of the document is an out-of-scope
// external collaborator; this package performs only the
// required-property and type checks a connector factory needs before
// construction.
package config

import (
	"encoding/json"
	"io"
	"os"

	"github.com/dbsync/dbsync/internal/dbsyncerr"
)

// ConnectorConfig is a logical name, a factory lookup key, and a
// free-form property bag already parsed from JSON.
type ConnectorConfig struct {
	Name          string         `json:"name"`
	ConnectorType string         `json:"connector_type"`
	Properties    map[string]any `json:"properties"`
}

// String returns a named string property, or "" if absent or not a string.
func (c ConnectorConfig) String(key string) string {
	v, _ := c.Properties[key].(string)
	return v
}

// StringDefault returns a named string property, or def if absent.
func (c ConnectorConfig) StringDefault(key, def string) string {
	if v, ok := c.Properties[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Int returns a named numeric property as an int. JSON numbers decode
// as float64, so this converts accordingly. ok is false if the
// property is absent or not numeric.
func (c ConnectorConfig) Int(key string) (int, bool) {
	v, ok := c.Properties[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}

// IntDefault returns a named numeric property as an int, or def.
func (c ConnectorConfig) IntDefault(key string, def int) int {
	if v, ok := c.Int(key); ok {
		return v
	}
	return def
}

// RequireStrings validates that every named property is present and
// non-empty, returning a Config error naming the first missing one.
func (c ConnectorConfig) RequireStrings(keys ...string) error {
	for _, k := range keys {
		if c.String(k) == "" {
			return dbsyncerr.New(dbsyncerr.Config,
				"connector %q (%s): missing required property %q", c.Name, c.ConnectorType, k)
		}
	}
	return nil
}

// TransformConfig configures one stage of the transform pipeline.
type TransformConfig struct {
	TransformType string         `json:"transform_type"`
	Properties    map[string]any `json:"properties"`
}

// Job is the top-level job configuration document.
type Job struct {
	JobName    string            `json:"job_name"`
	Source     ConnectorConfig   `json:"source"`
	Sink       ConnectorConfig   `json:"sink"`
	Transforms []TransformConfig `json:"transforms"`
}

// Load reads and decodes the job configuration document at path.
func Load(path string) (*Job, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, dbsyncerr.Wrap(dbsyncerr.Config, err, "opening config file %q", path)
	}
	defer f.Close()
	return Decode(f)
}

// Decode decodes a job configuration document from r.
func Decode(r io.Reader) (*Job, error) {
	var j Job
	dec := json.NewDecoder(r)
	if err := dec.Decode(&j); err != nil {
		return nil, dbsyncerr.Wrap(dbsyncerr.Config, err, "decoding job configuration")
	}
	if err := j.Validate(); err != nil {
		return nil, err
	}
	return &j, nil
}

// Validate performs the structural checks that do not require a
// connector factory: a job name, and a connector_type on both the
// source and the sink.
func (j *Job) Validate() error {
	if j.JobName == "" {
		return dbsyncerr.New(dbsyncerr.Config, "job_name is required")
	}
	if j.Source.ConnectorType == "" {
		return dbsyncerr.New(dbsyncerr.Config, "source.connector_type is required")
	}
	if j.Sink.ConnectorType == "" {
		return dbsyncerr.New(dbsyncerr.Config, "sink.connector_type is required")
	}
	return nil
}
