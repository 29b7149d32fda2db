// Package plugins blank-imports every connector and transform package
// for their registration side effects, so that a single import gives
// cmd/dbsync the full set of known connector_type and transform_type
// names, the same way database/sql callers import a driver package
// purely for its init().
package plugins

import (
	_ "github.com/dbsync/dbsync/internal/connectors/kafka"
	_ "github.com/dbsync/dbsync/internal/connectors/mysql"
	_ "github.com/dbsync/dbsync/internal/connectors/postgres"
	_ "github.com/dbsync/dbsync/internal/transforms/fieldrename"
)
