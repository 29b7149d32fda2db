package job

import (
	"github.com/dbsync/dbsync/internal/config"
	"github.com/dbsync/dbsync/internal/connector"
	"github.com/dbsync/dbsync/internal/dbsyncerr"
	"github.com/dbsync/dbsync/internal/registry"
)

// Build constructs a Job from a parsed job configuration document,
// resolving source, sink, and transform factories through the plugin
// registry: explicit, ordered construction with no build-time code
// generation involved.
func Build(doc *config.Job) (*Job, error) {
	src, err := registry.NewSource(doc.Source)
	if err != nil {
		return nil, err
	}

	sink, err := registry.NewSink(doc.Sink)
	if err != nil {
		return nil, err
	}

	transforms := make([]connector.Transform, 0, len(doc.Transforms))
	for _, tc := range doc.Transforms {
		t, err := registry.NewTransform(tc.TransformType, tc.Properties)
		if err != nil {
			return nil, err
		}
		transforms = append(transforms, t)
	}

	if doc.JobName == "" {
		return nil, dbsyncerr.New(dbsyncerr.Config, "job_name is required")
	}

	return &Job{
		Name:       doc.JobName,
		Source:     src,
		Transforms: transforms,
		Sink:       sink,
	}, nil
}
