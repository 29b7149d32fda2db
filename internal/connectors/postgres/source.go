package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
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
	registry.RegisterSource("postgres", newSourceFactory)
}

func newSourceFactory(cfg config.ConnectorConfig) (connector.Source, error) {
	if err := cfg.RequireStrings("url", "table"); err != nil {
		return nil, err
	}
	return &Source{
		url:       cfg.String("url"),
		schema:    cfg.StringDefault("source_schema", "public"),
		table:     cfg.String("table"),
		keyColumn: cfg.StringDefault("key_column", "id"),
		batchSize: cfg.IntDefault("batch_size", 1000),
	}, nil
}

// Source reads batches of rows from a PostgreSQL table via pgxpool.
type Source struct {
	url       string
	schema    string
	table     string
	keyColumn string
	batchSize int

	pool    *pgxpool.Pool
	columns []columnInfo

	offset int

	rangeInit   bool
	rangeCursor int64
	rangeDone   bool
}

type columnInfo struct {
	name      string
	canonical types.CanonicalType
}

var (
	_ connector.Source        = (*Source)(nil)
	_ connector.ShardedSource = (*Source)(nil)
)

// Clone returns a fresh, uninitialized Source sharing configuration.
func (s *Source) Clone() connector.Source {
	return &Source{
		url:       s.url,
		schema:    s.schema,
		table:     s.table,
		keyColumn: s.keyColumn,
		batchSize: s.batchSize,
	}
}

// Init opens the pgxpool connection pool and discovers the table's
// columns.
func (s *Source) Init(ctx context.Context, jc *jobctx.Context) error {
	poolConfig, err := pgxpool.ParseConfig(s.url)
	if err != nil {
		return dbsyncerr.Wrap(dbsyncerr.Config, err, "parsing postgres source url %s", redact.URL(s.url))
	}
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return dbsyncerr.Wrap(dbsyncerr.Connection, err, "opening postgres source %s", redact.URL(s.url))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return dbsyncerr.Wrap(dbsyncerr.Connection, err, "pinging postgres source %s", redact.URL(s.url))
	}
	s.pool = pool
	log.WithFields(log.Fields{"schema": s.schema, "table": s.table}).Info("postgres source connected")

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
	rows, err := s.pool.Query(ctx, `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, s.schema, s.table)
	if err != nil {
		return nil, dbsyncerr.Wrap(dbsyncerr.Read, err, "discovering columns of %s.%s", s.schema, s.table)
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
		cols = append(cols, columnInfo{name: name, canonical: canonical})
	}
	if err := rows.Err(); err != nil {
		return nil, dbsyncerr.Wrap(dbsyncerr.Read, err, "iterating column metadata")
	}
	if len(cols) == 0 {
		return nil, dbsyncerr.New(dbsyncerr.Config, "table %q has no columns or does not exist", s.table)
	}
	return cols, nil
}

// DescribeSchema returns a CREATE TABLE statement for target_table.
func (s *Source) DescribeSchema(ctx context.Context) (string, error) {
	mapper := TypeMapper{}
	defs := make([]string, 0, len(s.columns))
	for _, c := range s.columns {
		native, err := mapper.ToNative(c.canonical)
		if err != nil {
			return "", err
		}
		defs = append(defs, fmt.Sprintf("%s %s", ident.Quote(ident.Postgres, c.name), native))
	}
	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", jobctx.TargetTablePlaceholder, strings.Join(defs, ", "))
	return stmt, nil
}

// CountRecords returns the total row count in scope.
func (s *Source) CountRecords(ctx context.Context) (int64, error) {
	var n int64
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.qualifiedTable())
	if err := s.pool.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, dbsyncerr.Wrap(dbsyncerr.Read, err, "counting rows of %s", s.table)
	}
	return n, nil
}

// KeyRange returns the inclusive-inclusive bounds of the key column.
func (s *Source) KeyRange(ctx context.Context) (min, max int64, err error) {
	q := fmt.Sprintf("SELECT MIN(%s), MAX(%s) FROM %s",
		ident.Quote(ident.Postgres, s.keyColumn), ident.Quote(ident.Postgres, s.keyColumn), s.qualifiedTable())
	var minVal, maxVal *int64
	if err := s.pool.QueryRow(ctx, q).Scan(&minVal, &maxVal); err != nil {
		return 0, 0, dbsyncerr.Wrap(dbsyncerr.Read, err, "determining key range of %s", s.table)
	}
	if minVal == nil {
		return 0, -1, nil
	}
	return *minVal, *maxVal, nil
}

// ReadBatch reads up to maxSize rows, advancing an internal offset
// cursor across calls.
func (s *Source) ReadBatch(ctx context.Context, maxSize int) (types.Batch, bool, error) {
	q := fmt.Sprintf("SELECT * FROM %s ORDER BY %s LIMIT $1 OFFSET $2",
		s.qualifiedTable(), ident.Quote(ident.Postgres, s.keyColumn))
	rows, err := s.pool.Query(ctx, q, maxSize, s.offset)
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
// batches bounded by s.batchSize.
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
	q := fmt.Sprintf("SELECT * FROM %s WHERE %s >= $1 AND %s < $2 ORDER BY %s LIMIT $3",
		s.qualifiedTable(),
		ident.Quote(ident.Postgres, s.keyColumn), ident.Quote(ident.Postgres, s.keyColumn),
		ident.Quote(ident.Postgres, s.keyColumn))
	rows, err := s.pool.Query(ctx, q, s.rangeCursor, end, limit)
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
	if s.pool == nil {
		return nil
	}
	s.pool.Close()
	s.pool = nil
	return nil
}

// AsSharded returns the Source itself, which implements ShardedSource.
func (s *Source) AsSharded() (connector.ShardedSource, bool) {
	return s, true
}

func (s *Source) qualifiedTable() string {
	return ident.QualifiedTable(ident.Postgres, s.schema, s.table)
}

func (s *Source) scanRows(rows pgx.Rows) (types.Batch, bool, error) {
	fieldDescs := rows.FieldDescriptions()
	byName := make(map[string]columnInfo, len(s.columns))
	for _, c := range s.columns {
		byName[c.name] = c
	}

	var converter ValueConverter
	var batch types.Batch
	for rows.Next() {
		raw, err := rows.Values()
		if err != nil {
			return nil, false, dbsyncerr.Wrap(dbsyncerr.Read, err, "scanning row")
		}

		rec := make(types.Record, len(fieldDescs))
		for i, fd := range fieldDescs {
			name := string(fd.Name)
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
