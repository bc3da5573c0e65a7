package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sells-group/reportsync/internal/db"
	"github.com/sells-group/reportsync/internal/resilience"
)

// MainFile is the database file holding shared tables such as the ingest log.
const MainFile = "reportsync.sqlite"

// SQLiteStore implements Store using modernc.org/sqlite. Every subsystem lives in
// its own file, attached to the main database under the subsystem name.
type SQLiteStore struct {
	db       *sql.DB
	conn     *sql.Conn
	dir      string
	attached map[string]bool
}

// NewSQLite opens dir/reportsync.sqlite, pins a single connection and attaches one file per schema.
func NewSQLite(ctx context.Context, dir string, schemas []string) (*SQLiteStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "sqlite: create data dir")
	}

	sqlDB, err := sql.Open("sqlite", filepath.Join(dir, MainFile))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	sqlDB.SetMaxOpenConns(1)

	// ATTACH and foreign_keys are per connection, so the store keeps one for its lifetime.
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		sqlDB.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "sqlite: acquire connection")
	}

	s := &SQLiteStore{db: sqlDB, conn: conn, dir: dir, attached: map[string]bool{}}
	for _, pragma := range []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			s.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}

	for _, name := range schemas {
		if err := s.attach(ctx, name); err != nil {
			s.Close() //nolint:errcheck
			return nil, err
		}
	}
	return s, nil
}

// attach makes dir/<name>.sqlite available as schema name.
func (s *SQLiteStore) attach(ctx context.Context, name string) error {
	if name == "" || name == "main" || s.attached[name] {
		return nil
	}
	path := filepath.Join(s.dir, name+".sqlite")
	if _, err := s.conn.ExecContext(ctx, "ATTACH DATABASE ? AS "+quote(name), path); err != nil {
		return eris.Wrapf(err, "sqlite: attach %s", name)
	}
	if _, err := s.conn.ExecContext(ctx, "PRAGMA "+quote(name)+".journal_mode=WAL"); err != nil {
		return eris.Wrapf(err, "sqlite: wal for %s", name)
	}
	s.attached[name] = true
	zap.L().With(zap.String("component", "store.sqlite")).Debug("attached database",
		zap.String("schema", name), zap.String("path", path))
	return nil
}

func (s *SQLiteStore) Dialect() Dialect { return SQLite }

func (s *SQLiteStore) Close() error {
	if s.conn != nil {
		s.conn.Close() //nolint:errcheck
	}
	return s.db.Close()
}

func (s *SQLiteStore) TableColumns(ctx context.Context, schema, table string) ([]string, error) {
	if err := s.attach(ctx, schema); err != nil {
		return nil, err
	}
	if schema == "" {
		schema = "main"
	}
	rows, err := s.Select(ctx, "PRAGMA "+quote(schema)+".table_info("+quote(table)+")")
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: table info %s.%s", schema, table)
	}
	cols := make([]string, 0, len(rows))
	for _, r := range rows {
		if name, ok := r[1].(string); ok {
			cols = append(cols, name)
		}
	}
	return cols, nil
}

func (s *SQLiteStore) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.conn.ExecContext(ctx, query, bindSQLite(args)...)
	if err != nil {
		return 0, eris.Wrap(transient(err), "sqlite: exec")
	}
	return rowsAffected(res)
}

func (s *SQLiteStore) Select(ctx context.Context, query string, args ...any) ([][]any, error) {
	rows, err := s.conn.QueryContext(ctx, query, bindSQLite(args)...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query")
	}
	defer rows.Close() //nolint:errcheck
	return scanAll(rows)
}

func (s *SQLiteStore) InTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(transient(err), "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(&sqliteTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		// A deferred constraint failure at COMMIT leaves the transaction open on the pinned connection.
		s.conn.ExecContext(ctx, "ROLLBACK") //nolint:errcheck
		return eris.Wrap(transient(err), "sqlite: commit tx")
	}
	return nil
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, bindSQLite(args)...)
	if err != nil {
		return 0, eris.Wrap(transient(err), "sqlite: exec")
	}
	return rowsAffected(res)
}

func (t *sqliteTx) Insert(ctx context.Context, schema, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	stmt, err := t.tx.PrepareContext(ctx, insertSQL(SQLite, schema, table, columns))
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: prepare insert into %s", table)
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, bindSQLite(row)...); err != nil {
			return n, eris.Wrapf(transient(err), "sqlite: insert row %d into %s", i, table)
		}
		n++
	}
	return n, nil
}

// transient marks busy and locked results, which clear once the other writer
// finishes, so the caller may run the whole transaction again.
func transient(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return resilience.NewTransientError(err)
		}
	}
	return err
}

// bindSQLite converts canonical values to what the driver stores losslessly.
func bindSQLite(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case decimal.Decimal:
			out[i] = v.String()
		case time.Time:
			out[i] = dateOrTimestamp(v)
		case bool:
			if v {
				out[i] = int64(1)
			} else {
				out[i] = int64(0)
			}
		default:
			out[i] = a
		}
	}
	return out
}

func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "rows affected")
	}
	return n, nil
}

func scanAll(rows *sql.Rows) ([][]any, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: columns")
	}
	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan row")
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}

func quote(ident string) string {
	return db.Identifier("", ident).Sanitize()
}
