package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

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
	registry.RegisterSource("mysql", newSourceFactory)
}

func newSourceFactory(cfg config.ConnectorConfig) (connector.Source, error) {
	if err := cfg.RequireStrings("url", "table"); err != nil {
		return nil, err
	}
	return &Source{
		url:       cfg.String("url"),
		table:     cfg.String("table"),
		keyColumn: cfg.StringDefault("key_column", "id"),
		batchSize: cfg.IntDefault("batch_size", 1000),
	}, nil
}

// Source reads batches of rows from a MySQL table, optionally sharded
// by an integer primary-ordering column.
type Source struct {
	url       string
	table     string
	keyColumn string
	batchSize int

	db      *sql.DB
	columns []columnInfo

	// offset advances across successive ReadBatch calls on the
	// unsharded path.
	offset int

	// rangeCursor and rangeDone track progress through the single shard
	// a cloned Source instance is assigned, since each worker owns its
	// own Source clone and therefore its own cursor.
	rangeInit   bool
	rangeCursor int64
	rangeDone   bool
}

type columnInfo struct {
	name       string
	nativeType string
	canonical  types.CanonicalType
}

var (
	_ connector.Source        = (*Source)(nil)
	_ connector.ShardedSource = (*Source)(nil)
)

// Clone returns a fresh, uninitialized Source sharing configuration
// but owning its own connection once Init is called.
func (s *Source) Clone() connector.Source {
	return &Source{
		url:       s.url,
		table:     s.table,
		keyColumn: s.keyColumn,
		batchSize: s.batchSize,
	}
}

// Init opens the connection pool, discovers the table's columns and
// types, and writes a schema description into jc.
func (s *Source) Init(ctx context.Context, jc *jobctx.Context) error {
	db, err := sql.Open("mysql", dsn(s.url))
	if err != nil {
		return dbsyncerr.Wrap(dbsyncerr.Connection, err, "opening mysql source %s", redact.URL(s.url))
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return dbsyncerr.Wrap(dbsyncerr.Connection, err, "pinging mysql source %s", redact.URL(s.url))
	}
	s.db = db
	log.WithField("table", s.table).Info("mysql source connected")

	cols, err := s.discoverColumns(ctx)
	if err != nil {
		return err
	}
	s.columns = cols

	schema, err := s.DescribeSchema(ctx)
	if err != nil {
		return err
	}
	jc.SetSchema(schema)
	return nil
}

func (s *Source) discoverColumns(ctx context.Context) ([]columnInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT COLUMN_NAME, COLUMN_TYPE
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`, s.table)
	if err != nil {
		return nil, dbsyncerr.Wrap(dbsyncerr.Read, err, "discovering columns of %s", s.table)
	}
	defer rows.Close()

	var mapper TypeMapper
	var cols []columnInfo
	for rows.Next() {
		var name, nativeType string
		if err := rows.Scan(&name, &nativeType); err != nil {
			return nil, dbsyncerr.Wrap(dbsyncerr.Read, err, "scanning column metadata")
		}
		canonical, err := mapper.ToCanonical(nativeType)
		if err != nil {
			return nil, err
		}
		cols = append(cols, columnInfo{name: name, nativeType: nativeType, canonical: canonical})
	}
	if err := rows.Err(); err != nil {
		return nil, dbsyncerr.Wrap(dbsyncerr.Read, err, "iterating column metadata")
	}
	if len(cols) == 0 {
		return nil, dbsyncerr.New(dbsyncerr.Config, "table %q has no columns or does not exist", s.table)
	}
	return cols, nil
}

// DescribeSchema returns a CREATE TABLE statement for target_table,
// with every occurrence of the source's own table name already
// substituted with the placeholder a sink replaces at create time.
func (s *Source) DescribeSchema(ctx context.Context) (string, error) {
	mapper := TypeMapper{}
	defs := make([]string, 0, len(s.columns))
	for _, c := range s.columns {
		native, err := mapper.ToNative(c.canonical)
		if err != nil {
			return "", err
		}
		defs = append(defs, fmt.Sprintf("%s %s", ident.Quote(ident.MySQL, c.name), native))
	}
	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", jobctx.TargetTablePlaceholder, strings.Join(defs, ", "))
	return stmt, nil
}

// CountRecords returns the total row count in scope.
func (s *Source) CountRecords(ctx context.Context) (int64, error) {
	var n int64
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s", ident.Quote(ident.MySQL, s.table))
	if err := s.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, dbsyncerr.Wrap(dbsyncerr.Read, err, "counting rows of %s", s.table)
	}
	return n, nil
}

// KeyRange returns the inclusive-inclusive bounds of the key column.
func (s *Source) KeyRange(ctx context.Context) (min, max int64, err error) {
	q := fmt.Sprintf("SELECT MIN(%s), MAX(%s) FROM %s",
		ident.Quote(ident.MySQL, s.keyColumn), ident.Quote(ident.MySQL, s.keyColumn), ident.Quote(ident.MySQL, s.table))
	var minVal, maxVal sql.NullInt64
	if err := s.db.QueryRowContext(ctx, q).Scan(&minVal, &maxVal); err != nil {
		return 0, 0, dbsyncerr.Wrap(dbsyncerr.Read, err, "determining key range of %s", s.table)
	}
	if !minVal.Valid {
		// Empty table: report an empty range so planShards produces zero
		// shards.
		return 0, -1, nil
	}
	return minVal.Int64, maxVal.Int64, nil
}

// ReadBatch reads up to maxSize rows starting from the beginning of the
// table, for non-sharded use. It is stateful across calls via an
// internal row offset over rows ordered by the key column.
func (s *Source) ReadBatch(ctx context.Context, maxSize int) (types.Batch, bool, error) {
	query := fmt.Sprintf(
		"SELECT * FROM %s ORDER BY %s LIMIT ? OFFSET ?",
		ident.Quote(ident.MySQL, s.table), ident.Quote(ident.MySQL, s.keyColumn))
	rows, err := s.db.QueryContext(ctx, query, maxSize, s.offset)
	if err != nil {
		return nil, false, dbsyncerr.Wrap(dbsyncerr.Read, err, "reading batch from %s", s.table)
	}
	defer rows.Close()

	batch, _, err := s.scanRows(rows)
	if err != nil {
		return nil, false, err
	}
	if len(batch) == 0 {
		return nil, false, nil
	}
	s.offset += len(batch)
	return batch, true, nil
}

// ReadBatchRange reads all rows with key column in [start, end), in
// batches bounded by s.batchSize, returning one internal batch per
// call until the range is exhausted.
func (s *Source) ReadBatchRange(ctx context.Context, start, end int64) (types.Batch, bool, error) {
	if s.rangeDone {
		return nil, false, nil
	}
	if !s.rangeInit {
		s.rangeCursor = start
		s.rangeInit = true
	}
	if s.rangeCursor >= end {
		s.rangeDone = true
		return nil, false, nil
	}

	limit := s.batchSize
	if limit <= 0 {
		limit = 1000
	}
	q := fmt.Sprintf(
		"SELECT * FROM %s WHERE %s >= ? AND %s < ? ORDER BY %s LIMIT ?",
		ident.Quote(ident.MySQL, s.table),
		ident.Quote(ident.MySQL, s.keyColumn), ident.Quote(ident.MySQL, s.keyColumn),
		ident.Quote(ident.MySQL, s.keyColumn))
	rows, err := s.db.QueryContext(ctx, q, s.rangeCursor, end, limit)
	if err != nil {
		return nil, false, dbsyncerr.Wrap(dbsyncerr.Read, err, "reading shard [%d,%d) from %s", start, end, s.table)
	}
	defer rows.Close()

	batch, _, err := s.scanRows(rows)
	if err != nil {
		return nil, false, err
	}
	if len(batch) == 0 {
		s.rangeDone = true
		return nil, false, nil
	}
	lastKey, err := lastKeyOf(batch, s.keyColumn)
	if err != nil {
		return nil, false, err
	}
	s.rangeCursor = lastKey + 1
	if s.rangeCursor >= end {
		s.rangeDone = true
	}
	return batch, true, nil
}

func lastKeyOf(batch types.Batch, keyColumn string) (int64, error) {
	f, ok := batch[len(batch)-1][keyColumn]
	if !ok {
		return 0, dbsyncerr.New(dbsyncerr.Read, "key column %q missing from row", keyColumn)
	}
	return f.Value.Int64, nil
}

// Close releases the connection pool. It is idempotent.
func (s *Source) Close() error {
	if s.db == nil {
		return nil
	}
	db := s.db
	s.db = nil
	return errors.WithStack(db.Close())
}

// AsSharded returns the Source itself, which implements ShardedSource.
func (s *Source) AsSharded() (connector.ShardedSource, bool) {
	return s, true
}

func (s *Source) scanRows(rows *sql.Rows) (types.Batch, bool, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, false, dbsyncerr.Wrap(dbsyncerr.Read, err, "reading column list")
	}

	byName := make(map[string]columnInfo, len(s.columns))
	for _, c := range s.columns {
		byName[c.name] = c
	}

	var converter ValueConverter
	var batch types.Batch
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, false, dbsyncerr.Wrap(dbsyncerr.Read, err, "scanning row")
		}

		rec := make(types.Record, len(cols))
		for i, name := range cols {
			ci, ok := byName[name]
			if !ok {
				continue
			}
			v, err := converter.ToCanonical(raw[i], ci.canonical)
			if err != nil {
				return nil, false, err
			}
			rec[name] = types.Field{Name: name, Value: v, Type: ci.canonical}
		}
		batch = append(batch, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, false, dbsyncerr.Wrap(dbsyncerr.Read, err, "iterating rows")
	}
	return batch, len(batch) > 0, nil
}

func dsn(rawURL string) string {
	// Accept both a bare DSN and a mysql:// URL for operator convenience.
	return strings.TrimPrefix(rawURL, "mysql://")
}
