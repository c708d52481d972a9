package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"surveyflow/internal/config"
	"surveyflow/internal/constants"
	"surveyflow/internal/enrichment"
	"surveyflow/internal/logger"
	"surveyflow/pkg/metrics"
)

type Writer interface {
	// Append adds every record as a new row and returns the table's row count afterwards.
	Append(ctx context.Context, table string, records []enrichment.EnrichedRecord) (int64, error)
	Count(ctx context.Context, table string) (int64, error)
	Reset(ctx context.Context, table string) error
	Ping(ctx context.Context) error
}

var sqlitePragmas = []string{
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
}

// SQLWriter opens a connection for each call and releases it before returning,
// so a failure never leaks into the next message.
type SQLWriter struct {
	dialect Dialect
	dsn     string
	path    string
	logger  logger.Logger
	metrics *metrics.Metrics
}

func NewSQLWriter(cfg config.StoreConfig, log logger.Logger, m *metrics.Metrics) (*SQLWriter, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	w := &SQLWriter{
		dialect: dialect,
		logger:  log,
		metrics: m,
	}
	switch dialect.Name() {
	case constants.DriverSQLite:
		if cfg.Path == "" {
			return nil, errors.New("sqlite store requires a path")
		}
		w.path = cfg.Path
		w.dsn = cfg.Path
	default:
		if cfg.DSN == "" {
			return nil, errors.New("postgres store requires a dsn")
		}
		w.dsn = cfg.DSN
	}

	return w, nil
}

func (w *SQLWriter) Dialect() Dialect {
	return w.dialect
}

func (w *SQLWriter) open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open(w.dialect.DriverName(), w.dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", w.dialect.Name(), err)
	}

	if w.dialect.Name() == constants.DriverSQLite {
		db.SetMaxOpenConns(1)
		for _, pragma := range sqlitePragmas {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("%s: exec %s: %w", w.dialect.Name(), pragma, err)
			}
		}
	}

	return db, nil
}

// absent reports whether the SQLite file does not exist yet. Count and Ping
// must not create it.
func (w *SQLWriter) absent() (bool, error) {
	if w.dialect.Name() != constants.DriverSQLite {
		return false, nil
	}
	_, err := os.Stat(w.path)
	if err == nil {
		return false, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	return false, err
}

func (w *SQLWriter) Append(ctx context.Context, table string, records []enrichment.EnrichedRecord) (count int64, err error) {
	start := time.Now()
	defer func() {
		w.metrics.ObserveStoreQuery(w.dialect.Name(), "append", time.Since(start), err)
	}()

	db, err := w.open(ctx)
	if err != nil {
		return 0, wrapErr("open", table, err)
	}
	defer db.Close()

	if len(records) > 0 {
		if err := w.insert(ctx, db, table, records); err != nil {
			return 0, wrapErr("append", table, err)
		}
	}

	count, err = w.count(ctx, db, table)
	if err != nil {
		return 0, wrapErr("count", table, err)
	}

	w.logger.Debugw("Appended records",
		"table", table,
		"records", len(records),
		"row_count", count,
	)
	return count, nil
}

func (w *SQLWriter) insert(ctx context.Context, db *sql.DB, table string, records []enrichment.EnrichedRecord) error {
	existing, err := w.columns(ctx, db, table)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if len(existing) == 0 {
		if _, err := tx.ExecContext(ctx, w.createTableSQL(table, records[0])); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
		existing = make(map[string]bool, len(records[0].Columns))
		for _, col := range records[0].Columns {
			existing[col] = true
		}
	}

	statements := make(map[string]*sql.Stmt)
	defer func() {
		for _, stmt := range statements {
			stmt.Close()
		}
	}()

	for _, rec := range records {
		for _, col := range rec.Columns {
			if !existing[col] {
				return fmt.Errorf("%w: column %q does not exist in table %q", ErrSchemaMismatch, col, table)
			}
		}

		query := w.insertSQL(table, rec.Columns)
		stmt, ok := statements[query]
		if !ok {
			stmt, err = tx.PrepareContext(ctx, query)
			if err != nil {
				return fmt.Errorf("prepare insert: %w", err)
			}
			statements[query] = stmt
		}

		args := make([]interface{}, len(rec.Columns))
		for i, col := range rec.Columns {
			args[i] = rec.Get(col).Interface()
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (w *SQLWriter) createTableSQL(table string, rec enrichment.EnrichedRecord) string {
	defs := make([]string, len(rec.Columns))
	for i, col := range rec.Columns {
		defs[i] = w.dialect.QuoteIdent(col) + " " + w.dialect.ColumnType(rec.Kind(col))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", w.dialect.QuoteIdent(table), strings.Join(defs, ", "))
}

func (w *SQLWriter) insertSQL(table string, columns []string) string {
	quoted := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = w.dialect.QuoteIdent(col)
		placeholders[i] = w.dialect.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		w.dialect.QuoteIdent(table), strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
}

func (w *SQLWriter) columns(ctx context.Context, db *sql.DB, table string) (map[string]bool, error) {
	query, args := w.dialect.ColumnsQuery(table)
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	return cols, nil
}

func (w *SQLWriter) count(ctx context.Context, db *sql.DB, table string) (int64, error) {
	cols, err := w.columns(ctx, db, table)
	if err != nil {
		return 0, err
	}
	if len(cols) == 0 {
		return 0, nil
	}

	var n int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", w.dialect.QuoteIdent(table))
	if err := db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}

// Count reports the table's row count; a table that does not exist yet counts as 0.
func (w *SQLWriter) Count(ctx context.Context, table string) (n int64, err error) {
	start := time.Now()
	defer func() {
		w.metrics.ObserveStoreQuery(w.dialect.Name(), "count", time.Since(start), err)
	}()

	absent, err := w.absent()
	if err != nil {
		return 0, wrapErr("count", table, err)
	}
	if absent {
		return 0, nil
	}

	db, err := w.open(ctx)
	if err != nil {
		return 0, wrapErr("open", table, err)
	}
	defer db.Close()

	n, err = w.count(ctx, db, table)
	if err != nil {
		return 0, wrapErr("count", table, err)
	}
	return n, nil
}

// Reset discards previously stored rows. For SQLite the database file and its
// journal siblings are removed; for PostgreSQL the table is dropped.
func (w *SQLWriter) Reset(ctx context.Context, table string) error {
	if w.dialect.Name() == constants.DriverSQLite {
		removed := false
		for _, p := range []string{w.path, w.path + "-wal", w.path + "-shm", w.path + "-journal"} {
			err := os.Remove(p)
			if err == nil {
				if p == w.path {
					removed = true
				}
				continue
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return wrapErr("reset", table, err)
			}
		}
		w.logger.Infow("Store reset", "path", w.path, "removed", removed)
		return nil
	}

	db, err := w.open(ctx)
	if err != nil {
		return wrapErr("open", table, err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+w.dialect.QuoteIdent(table)); err != nil {
		return wrapErr("reset", table, err)
	}
	w.logger.Infow("Store reset", "table", table)
	return nil
}

// Ping checks that the store can be reached. A SQLite file that does not exist
// yet is healthy as long as its directory exists.
func (w *SQLWriter) Ping(ctx context.Context) error {
	absent, err := w.absent()
	if err != nil {
		return wrapErr("ping", "", err)
	}
	if absent {
		dir := filepath.Dir(w.path)
		info, err := os.Stat(dir)
		if err != nil {
			return wrapErr("ping", "", err)
		}
		if !info.IsDir() {
			return wrapErr("ping", "", fmt.Errorf("%s is not a directory", dir))
		}
		return nil
	}

	db, err := w.open(ctx)
	if err != nil {
		return wrapErr("ping", "", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return wrapErr("ping", "", err)
	}
	return nil
}
