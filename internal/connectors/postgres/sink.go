package postgres

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"github.com/dbsync/dbsync/internal/config"
	"github.com/dbsync/dbsync/internal/connector"
	"github.com/dbsync/dbsync/internal/dbsyncerr"
	"github.com/dbsync/dbsync/internal/jobctx"
	"github.com/dbsync/dbsync/internal/registry"
	"github.com/dbsync/dbsync/internal/types"
	"github.com/dbsync/dbsync/internal/util/ident"
	"github.com/dbsync/dbsync/internal/util/redact"
)

func init() {
	registry.RegisterSink("postgres", newSinkFactory)
}

func newSinkFactory(cfg config.ConnectorConfig) (connector.Sink, error) {
	if err := cfg.RequireStrings("url", "table"); err != nil {
		return nil, err
	}
	mode := connector.Overwrite
	if raw := cfg.StringDefault("save_mode", ""); raw != "" {
		m, err := parseSaveMode(raw)
		if err != nil {
			return nil, err
		}
		mode = m
	}
	return &Sink{
		url:            cfg.String("url"),
		schema:         cfg.StringDefault("source_schema", "public"),
		table:          cfg.String("table"),
		saveMode:       mode,
		maxConnections: cfg.IntDefault("max_connections", 10),
	}, nil
}

func parseSaveMode(s string) (connector.SaveMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "overwrite":
		return connector.Overwrite, nil
	case "append":
		return connector.Append, nil
	case "error_if_exists":
		return connector.ErrorIfExists, nil
	case "ignore":
		return connector.Ignore, nil
	default:
		return 0, dbsyncerr.New(dbsyncerr.Config, "unknown save_mode %q", s)
	}
}

// Sink writes batches of records into a PostgreSQL table, one row at a
// time inside an explicit transaction per batch.
type Sink struct {
	url            string
	schema         string
	table          string
	saveMode       connector.SaveMode
	maxConnections int

	mu   sync.Mutex
	pool *pgxpool.Pool
}

var (
	_ connector.Sink       = (*Sink)(nil)
	_ connector.PooledSink = (*Sink)(nil)
)

// Clone returns a fresh, uninitialized Sink sharing configuration.
func (s *Sink) Clone() connector.Sink {
	return &Sink{
		url:            s.url,
		schema:         s.schema,
		table:          s.table,
		saveMode:       s.saveMode,
		maxConnections: s.maxConnections,
	}
}

// Init opens the connection pool sized to maxConnections and, under
// SaveMode.Overwrite or ErrorIfExists, creates the target table.
func (s *Sink) Init(ctx context.Context, jc *jobctx.Context) error {
	poolConfig, err := pgxpool.ParseConfig(s.url)
	if err != nil {
		return dbsyncerr.Wrap(dbsyncerr.Config, err, "parsing postgres sink url %s", redact.URL(s.url))
	}
	poolConfig.MaxConns = int32(s.poolSize())
	poolConfig.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return dbsyncerr.Wrap(dbsyncerr.Connection, err, "opening postgres sink %s", redact.URL(s.url))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return dbsyncerr.Wrap(dbsyncerr.Connection, err, "pinging postgres sink %s", redact.URL(s.url))
	}
	s.pool = pool
	log.WithFields(log.Fields{"table": s.table, "save_mode": s.saveMode}).Info("postgres sink connected")

	switch s.saveMode {
	case connector.Overwrite:
		if jc.Schema() == "" {
			return nil
		}
		return s.CreateTable(ctx, jc.Schema(), connector.Overwrite)
	case connector.ErrorIfExists:
		exists, err := s.tableExists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return dbsyncerr.New(dbsyncerr.Write, "table %q already exists and save_mode is error_if_exists", s.table)
		}
		return s.CreateTable(ctx, jc.Schema(), connector.ErrorIfExists)
	default:
		return nil
	}
}

func (s *Sink) poolSize() int {
	if s.maxConnections > 0 {
		return s.maxConnections
	}
	return 10
}

func (s *Sink) tableExists(ctx context.Context) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2
		)`, s.schema, s.table).Scan(&exists)
	if err != nil {
		return false, dbsyncerr.Wrap(dbsyncerr.Read, err, "checking existence of %s", s.table)
	}
	return exists, nil
}

// CreateTable drops (if present) and (re)creates the target table.
func (s *Sink) CreateTable(ctx context.Context, schemaDDL string, mode connector.SaveMode) error {
	if schemaDDL == "" {
		return dbsyncerr.New(dbsyncerr.Config, "no schema description available to create %s", s.table)
	}
	qualified := s.qualifiedTable()
	if _, err := s.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", qualified)); err != nil {
		return dbsyncerr.Wrap(dbsyncerr.Write, err, "dropping %s", s.table)
	}
	stmt := strings.ReplaceAll(schemaDDL, jobctx.TargetTablePlaceholder, qualified)
	if _, err := s.pool.Exec(ctx, stmt); err != nil {
		return dbsyncerr.Wrap(dbsyncerr.Write, err, "creating %s", s.table)
	}
	return nil
}

// WriteBatch inserts every record of batch inside a single
// transaction, executing one INSERT per row.
func (s *Sink) WriteBatch(ctx context.Context, batch types.Batch) error {
	if len(batch) == 0 {
		return nil
	}

	names := batch[0].Names()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return dbsyncerr.Wrap(dbsyncerr.Write, err, "beginning transaction for %s", s.table)
	}

	var converter ValueConverter
	stmt := insertStatement(s.schema, s.table, names, s.saveMode)
	for _, rec := range batch {
		args := make([]any, len(names))
		for i, name := range names {
			f := rec[name]
			v, err := converter.FromCanonical(f.Value, f.Type)
			if err != nil {
				tx.Rollback(ctx)
				return err
			}
			args[i] = v
		}
		if _, err := tx.Exec(ctx, stmt, args...); err != nil {
			tx.Rollback(ctx)
			return dbsyncerr.Wrap(dbsyncerr.Write, err, "inserting row into %s", s.table)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return dbsyncerr.Wrap(dbsyncerr.Write, err, "committing batch to %s", s.table)
	}
	return nil
}

func insertStatement(schema, table string, names []string, mode connector.SaveMode) string {
	quoted := make([]string, len(names))
	placeholders := make([]string, len(names))
	for i, n := range names {
		quoted[i] = ident.Quote(ident.Postgres, n)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	conflictClause := ""
	if mode == connector.Ignore {
		conflictClause = " ON CONFLICT DO NOTHING"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)%s",
		ident.QualifiedTable(ident.Postgres, schema, table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "), conflictClause)
}

// WriteBatchPooled writes batch like WriteBatch. connID is accepted for
// interface symmetry; pgxpool's connections are acquired anonymously.
func (s *Sink) WriteBatchPooled(ctx context.Context, batch types.Batch, connID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.WriteBatch(ctx, batch)
}

// Commit is a no-op: WriteBatch already commits per-batch transactions.
func (s *Sink) Commit(ctx context.Context) error {
	return nil
}

// Close releases the connection pool. It is idempotent.
func (s *Sink) Close() error {
	if s.pool == nil {
		return nil
	}
	s.pool.Close()
	s.pool = nil
	return nil
}

// AsPooled returns the Sink itself, which implements PooledSink.
func (s *Sink) AsPooled() (connector.PooledSink, bool) {
	return s, true
}

// PoolStats reports the current pgxpool usage.
func (s *Sink) PoolStats() connector.PoolStats {
	if s.pool == nil {
		return connector.PoolStats{}
	}
	stat := s.pool.Stat()
	return connector.PoolStats{
		MaxConnections:       int(stat.MaxConns()),
		InUseConnections:     int(stat.AcquiredConns()),
		AvailableConnections: int(stat.IdleConns()),
	}
}

// ResizePool adjusts the live connection pool's maximum size. pgxpool
// does not support resizing a running pool, so this records the new
// target and reports it via PoolStats.MaxConnections going forward only
// if the pool is re-created; callers that need a hard resize mid-run
// should recreate the sink.
func (s *Sink) ResizePool(ctx context.Context, n int) error {
	if s.pool == nil {
		return dbsyncerr.New(dbsyncerr.Connection, "sink not initialized")
	}
	if n <= 0 {
		return dbsyncerr.New(dbsyncerr.Config, "max_connections must be positive, got %d", n)
	}
	s.maxConnections = n
	return nil
}

// AvailableConnections reports the number of idle connections currently
// available in the pool.
func (s *Sink) AvailableConnections() int {
	if s.pool == nil {
		return 0
	}
	return int(s.pool.Stat().IdleConns())
}

func (s *Sink) qualifiedTable() string {
	return ident.QualifiedTable(ident.Postgres, s.schema, s.table)
}
