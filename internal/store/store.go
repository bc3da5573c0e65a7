// Package store is the relational storage collaborator of the sync engine.
// It hides the differences between the embedded SQLite files and Postgres.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/reportsync/internal/db"
	"github.com/sells-group/reportsync/internal/resilience"
)

// Dialect names a SQL flavor.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// Placeholder returns the bind marker for the n-th (1-based) argument.
func (d Dialect) Placeholder(n int) string {
	if d == Postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Table quotes a table name, qualified by schema when one is given.
// On SQLite the schema is the name of an attached database file.
func (d Dialect) Table(schema, table string) string {
	return db.Identifier(schema, table).Sanitize()
}

// Store executes statements against one database.
type Store interface {
	Dialect() Dialect
	// TableColumns lists the live columns of a table; empty when the table does not exist.
	TableColumns(ctx context.Context, schema, table string) ([]string, error)
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	// Select returns every row as driver-native values.
	Select(ctx context.Context, query string, args ...any) ([][]any, error)
	// InTx runs fn in one transaction, committing when fn returns nil and rolling back otherwise.
	InTx(ctx context.Context, fn func(Tx) error) error
	Close() error
}

// Tx is the write surface available inside InTx.
type Tx interface {
	Exec(ctx context.Context, query string, args ...any) (int64, error)
	Insert(ctx context.Context, schema, table string, columns []string, rows [][]any) (int64, error)
}

// Config selects and locates a store.
type Config struct {
	Driver      string
	Dir         string
	DatabaseURL string
	Schemas     []string
	// MaxConns caps the Postgres pool; 0 keeps the pool default.
	MaxConns int32
	// ConnectAttempts bounds how often a transient open failure is retried.
	ConnectAttempts int
}

// Open returns the store described by cfg. Opening is retried while the
// failure looks transient, e.g. a locked file or a server still starting.
func Open(ctx context.Context, cfg Config) (Store, error) {
	var open func(ctx context.Context) (Store, error)
	switch Dialect(cfg.Driver) {
	case Postgres:
		open = func(ctx context.Context) (Store, error) {
			return NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns})
		}
	case SQLite, "":
		open = func(ctx context.Context) (Store, error) {
			return NewSQLite(ctx, cfg.Dir, cfg.Schemas)
		}
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.ConnectAttempts
	retry.OnRetry = resilience.RetryLogger("store", "open "+cfg.Driver)
	return resilience.DoVal(ctx, retry, open)
}

const timestampLayout = "2006-01-02 15:04:05.999999999"

// dateOrTimestamp renders a time for SQLite: midnight UTC values are dates.
func dateOrTimestamp(t time.Time) string {
	t = t.UTC()
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format(timestampLayout)
}

// insertSQL builds a single-row INSERT with dialect placeholders.
func insertSQL(d Dialect, schema, table string, columns []string) string {
	ph := make([]string, len(columns))
	for i := range columns {
		ph[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.Table(schema, table), db.QuoteAndJoin(columns), strings.Join(ph, ", "))
}
