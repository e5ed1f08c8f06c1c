// Package sqlstore implements kvstore.Store on a SQL table with one row per
// (key, field). It runs on SQLite (modernc.org/sqlite) and PostgreSQL
// (lib/pq); queries are built with squirrel and scanned with sqlx.
package sqlstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/config"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/kvstore"
	"github.com/upekshaip/tg-ytdlp-bot-sub000/shared/observability/types"
)

const upsertSuffix = "ON CONFLICT (cache_key, field) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at"

// Store is a SQL-backed kvstore.Store.
type Store struct {
	db      *sqlx.DB
	dialect Dialect
	table   string
	qb      squirrel.StatementBuilderType
	logger  types.Logger
	metrics types.Metrics
	now     func() time.Time
}

type row struct {
	Field string `db:"field"`
	Value []byte `db:"value"`
}

// OpenSQLite opens (creating if needed) the database file at path.
func OpenSQLite(ctx context.Context, path, table string, logger types.Logger, metrics types.Metrics) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	return Open(ctx, SQLite, path, table, logger, metrics)
}

// OpenPostgres connects to PostgreSQL using cfg.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig, table string, logger types.Logger, metrics types.Metrics) (*Store, error) {
	s, err := Open(ctx, Postgres, PostgresDSN(cfg), table, logger, metrics)
	if err != nil {
		return nil, err
	}
	s.db.SetMaxOpenConns(cfg.MaxOpenConns)
	s.db.SetMaxIdleConns(cfg.MaxIdleConns)
	return s, nil
}

// Open connects with the given dialect and ensures the table exists.
func Open(ctx context.Context, dialect Dialect, dsn, table string, logger types.Logger, metrics types.Metrics) (*Store, error) {
	logger.Info(ctx, "Connecting to cache database", types.Fields{
		"dialect": dialect.Name,
		"table":   table,
	})

	db, err := sqlx.Open(dialect.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dialect.singleConn {
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		logger.Error(ctx, "Failed to ping database", err, types.Fields{"dialect": dialect.Name})
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := New(db, dialect, table, logger, metrics)
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info(ctx, "Cache database ready", types.Fields{"dialect": dialect.Name})
	return s, nil
}

// New wraps an open connection without running migrations.
func New(db *sqlx.DB, dialect Dialect, table string, logger types.Logger, metrics types.Metrics) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
		table:   table,
		qb:      squirrel.StatementBuilder.PlaceholderFormat(dialect.Placeholder),
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

func (s *Store) migrate(ctx context.Context) error {
	if s.dialect.pragmas != "" {
		if _, err := s.db.ExecContext(ctx, s.dialect.pragmas); err != nil {
			s.logger.Warn(ctx, "Failed to apply pragmas", types.Fields{"error": err.Error()})
		}
	}
	if _, err := s.db.ExecContext(ctx, s.dialect.schema(s.table)); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

func (s *Store) Read(ctx context.Context, key string) (kvstore.Record, error) {
	start := time.Now()

	query, args, err := s.qb.
		Select("field", "value").
		From(s.table).
		Where(squirrel.Eq{"cache_key": key}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []row
	err = s.db.SelectContext(ctx, &rows, query, args...)
	s.record(ctx, "read", start, err)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", key, err)
	}
	if len(rows) == 0 {
		return nil, kvstore.ErrKeyNotFound
	}

	rec := make(kvstore.Record, len(rows))
	for _, r := range rows {
		rec[r.Field] = r.Value
	}
	return rec, nil
}

func (s *Store) Merge(ctx context.Context, key string, rec kvstore.Record) error {
	if len(rec) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin merge: %w", err)
	}
	err = s.upsert(ctx, tx, key, rec)
	err = s.finish(tx, err)
	s.record(ctx, "merge", start, err)
	if err != nil {
		return fmt.Errorf("merge %q: %w", key, err)
	}
	return nil
}

func (s *Store) Replace(ctx context.Context, key string, rec kvstore.Record) error {
	start := time.Now()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	err = s.deleteKey(ctx, tx, key)
	if err == nil && len(rec) > 0 {
		err = s.upsert(ctx, tx, key, rec)
	}
	err = s.finish(tx, err)
	s.record(ctx, "replace", start, err)
	if err != nil {
		return fmt.Errorf("replace %q: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	start := time.Now()

	err := s.deleteKey(ctx, s.db, key)
	s.record(ctx, "delete", start, err)
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	s.logger.Info(context.Background(), "Closing cache database", nil)
	return s.db.Close()
}

func (s *Store) upsert(ctx context.Context, exec sqlx.ExecerContext, key string, rec kvstore.Record) error {
	now := s.now().UnixNano()
	insert := s.qb.
		Insert(s.table).
		Columns("cache_key", "field", "value", "updated_at")
	for field, value := range rec {
		insert = insert.Values(key, field, value, now)
	}

	query, args, err := insert.Suffix(upsertSuffix).ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	_, err = exec.ExecContext(ctx, query, args...)
	return err
}

func (s *Store) deleteKey(ctx context.Context, exec sqlx.ExecerContext, key string) error {
	query, args, err := s.qb.
		Delete(s.table).
		Where(squirrel.Eq{"cache_key": key}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	_, err = exec.ExecContext(ctx, query, args...)
	return err
}

func (s *Store) finish(tx *sqlx.Tx, err error) error {
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

func (s *Store) record(ctx context.Context, operation string, start time.Time, err error) {
	op := "kvstore." + operation
	s.metrics.RecordDuration(op, time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordError(op, s.dialect.Name)
		s.logger.Error(ctx, "Cache store operation failed", err, types.Fields{
			"operation": operation,
			"dialect":   s.dialect.Name,
		})
		return
	}
	s.metrics.RecordSuccess(op)
}
