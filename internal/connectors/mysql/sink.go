package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/go-sql-driver/mysql" // register driver
	"github.com/pkg/errors"
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
	registry.RegisterSink("mysql", newSinkFactory)
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

// Sink writes batches of records into a MySQL table, executing one
// prepared INSERT per row inside an explicit transaction per batch.
type Sink struct {
	url            string
	table          string
	saveMode       connector.SaveMode
	maxConnections int

	mu sync.Mutex
	db *sql.DB
}

var (
	_ connector.Sink       = (*Sink)(nil)
	_ connector.PooledSink = (*Sink)(nil)
)

// Clone returns a fresh, uninitialized Sink sharing configuration.
func (s *Sink) Clone() connector.Sink {
	return &Sink{
		url:            s.url,
		table:          s.table,
		saveMode:       s.saveMode,
		maxConnections: s.maxConnections,
	}
}

// Init opens the connection pool sized to maxConnections and, under
// SaveMode.Overwrite, drops and recreates the target table using the
// schema description carried on jc.
func (s *Sink) Init(ctx context.Context, jc *jobctx.Context) error {
	db, err := sql.Open("mysql", dsn(s.url))
	if err != nil {
		return dbsyncerr.Wrap(dbsyncerr.Connection, err, "opening mysql sink %s", redact.URL(s.url))
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return dbsyncerr.Wrap(dbsyncerr.Connection, err, "pinging mysql sink %s", redact.URL(s.url))
	}
	s.db = db
	if err := s.ResizePool(ctx, s.poolSize()); err != nil {
		db.Close()
		s.db = nil
		return err
	}
	log.WithFields(log.Fields{"table": s.table, "save_mode": s.saveMode}).Info("mysql sink connected")

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
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?`, s.table).Scan(&n)
	if err != nil {
		return false, dbsyncerr.Wrap(dbsyncerr.Read, err, "checking existence of %s", s.table)
	}
	return n > 0, nil
}

// CreateTable drops (if present) and (re)creates the target table using
// schemaDDL, a CREATE TABLE statement templated with
// jobctx.TargetTablePlaceholder in place of the real table name. mode
// is accepted for interface symmetry; only Overwrite and
// ErrorIfExists ever reach here, and both perform the same drop-and-
// recreate since tableExists has already been checked by the caller
// for ErrorIfExists.
func (s *Sink) CreateTable(ctx context.Context, schemaDDL string, mode connector.SaveMode) error {
	if schemaDDL == "" {
		return dbsyncerr.New(dbsyncerr.Config, "no schema description available to create %s", s.table)
	}
	qualified := ident.Quote(ident.MySQL, s.table)
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", qualified)); err != nil {
		return dbsyncerr.Wrap(dbsyncerr.Write, err, "dropping %s", s.table)
	}
	stmt := strings.ReplaceAll(schemaDDL, jobctx.TargetTablePlaceholder, qualified)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return dbsyncerr.Wrap(dbsyncerr.Write, err, "creating %s", s.table)
	}
	return nil
}

// WriteBatch inserts every record of batch inside a single transaction.
// An empty batch is a no-op.
func (s *Sink) WriteBatch(ctx context.Context, batch types.Batch) error {
	if len(batch) == 0 {
		return nil
	}

	names := batch[0].Names()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dbsyncerr.Wrap(dbsyncerr.Write, err, "beginning transaction for %s", s.table)
	}

	stmt, err := tx.PrepareContext(ctx, insertStatement(s.table, names, s.saveMode))
	if err != nil {
		tx.Rollback()
		return dbsyncerr.Wrap(dbsyncerr.Write, err, "preparing insert for %s", s.table)
	}
	defer stmt.Close()

	var converter ValueConverter
	for _, rec := range batch {
		args := make([]any, len(names))
		for i, name := range names {
			f := rec[name]
			v, err := converter.FromCanonical(f.Value, f.Type)
			if err != nil {
				tx.Rollback()
				return err
			}
			args[i] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			tx.Rollback()
			return dbsyncerr.Wrap(dbsyncerr.Write, err, "inserting row into %s", s.table)
		}
	}

	if err := tx.Commit(); err != nil {
		return dbsyncerr.Wrap(dbsyncerr.Write, err, "committing batch to %s", s.table)
	}
	return nil
}

func insertStatement(table string, names []string, mode connector.SaveMode) string {
	quoted := make([]string, len(names))
	placeholders := make([]string, len(names))
	for i, n := range names {
		quoted[i] = ident.Quote(ident.MySQL, n)
		placeholders[i] = "?"
	}
	verb := "INSERT INTO"
	if mode == connector.Ignore {
		verb = "INSERT IGNORE INTO"
	}
	return fmt.Sprintf("%s %s (%s) VALUES (%s)",
		verb, ident.Quote(ident.MySQL, table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
}

// WriteBatchPooled writes batch like WriteBatch. connID is accepted for
// interface symmetry with connectors that expose per-connection
// handles; database/sql's pool is anonymous, so this implementation
// just serializes through the shared pool.
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
	if s.db == nil {
		return nil
	}
	db := s.db
	s.db = nil
	return errors.WithStack(db.Close())
}

// AsPooled returns the Sink itself, which implements PooledSink.
func (s *Sink) AsPooled() (connector.PooledSink, bool) {
	return s, true
}

// PoolStats reports the current MySQL connection pool usage.
func (s *Sink) PoolStats() connector.PoolStats {
	if s.db == nil {
		return connector.PoolStats{}
	}
	stats := s.db.Stats()
	return connector.PoolStats{
		MaxConnections:       stats.MaxOpenConnections,
		InUseConnections:     stats.InUse,
		AvailableConnections: stats.Idle,
	}
}

// ResizePool adjusts the live connection pool's maximum size.
func (s *Sink) ResizePool(ctx context.Context, n int) error {
	if s.db == nil {
		return dbsyncerr.New(dbsyncerr.Connection, "sink not initialized")
	}
	if n <= 0 {
		return dbsyncerr.New(dbsyncerr.Config, "max_connections must be positive, got %d", n)
	}
	s.maxConnections = n
	s.db.SetMaxOpenConns(n)
	s.db.SetMaxIdleConns(n)
	return nil
}

// AvailableConnections reports the number of idle connections currently
// available in the pool.
func (s *Sink) AvailableConnections() int {
	if s.db == nil {
		return 0
	}
	return s.db.Stats().Idle
}
