package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/reportsync/internal/db"
	"github.com/sells-group/reportsync/internal/schema"
	"github.com/sells-group/reportsync/internal/store"
)

// LogTable is the ingest log, kept in the main database.
var LogTable = schema.TableDefinition{
	Name: "ingest_log",
	Columns: []schema.Column{
		schema.Text("id", 36),
		schema.Text("report", 64),
		schema.Text("file", 0),
		schema.Text("status", 16),
		schema.Timestamp("started_at"),
		schema.Timestamp("completed_at").OrNull(),
		schema.Integer("rows"),
		schema.Integer("rejects"),
		schema.Integer("skipped"),
		schema.Integer("deleted"),
		schema.Integer("inserted"),
		schema.Text("error", 0).OrNull(),
	},
	PrimaryKey: []string{"id"},
}

// Entry is one row of the ingest log.
type Entry struct {
	ID          string     `json:"id"`
	Report      string     `json:"report"`
	File        string     `json:"file"`
	Status      Status     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Rows        int64      `json:"rows"`
	Rejects     int64      `json:"rejects"`
	Skipped     int64      `json:"skipped"`
	Deleted     int64      `json:"deleted"`
	Inserted    int64      `json:"inserted"`
	Error       string     `json:"error,omitempty"`
}

// Log provides read/write access to the ingest_log table.
type Log struct {
	st  store.Store
	now func() time.Time
}

// NewLog creates a Log over st.
func NewLog(st store.Store) *Log {
	return &Log{st: st, now: func() time.Time { return time.Now().UTC() }}
}

// Ensure creates the ingest_log table when missing.
func (l *Log) Ensure(ctx context.Context) error {
	return schema.EnsureTable(ctx, l.st, LogTable)
}

// Start records the beginning of an ingestion and returns its ID.
func (l *Log) Start(ctx context.Context, report, file string) (string, error) {
	id := uuid.NewString()
	d := l.st.Dialect()
	cols := []string{"id", "report", "file", "status", "started_at", "rows", "rejects", "skipped", "deleted", "inserted"}
	_, err := l.st.Exec(ctx,
		fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", l.table(), db.QuoteAndJoin(cols), placeholders(d, 1, len(cols))),
		id, report, file, string(StatusRunning), l.now(), int64(0), int64(0), int64(0), int64(0), int64(0),
	)
	if err != nil {
		return "", eris.Wrapf(err, "ingest: start log for %s", report)
	}
	return id, nil
}

// Complete records the final counters and status of an ingestion that produced an outcome.
func (l *Log) Complete(ctx context.Context, id string, o *Outcome) error {
	d := l.st.Dialect()
	var errMsg any
	if err := o.Err(); err != nil {
		errMsg = err.Error()
	}
	_, err := l.st.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET "status" = %s, "completed_at" = %s, "rows" = %s, "rejects" = %s, "skipped" = %s, "deleted" = %s, "inserted" = %s, "error" = %s WHERE "id" = %s`,
			l.table(), d.Placeholder(1), d.Placeholder(2), d.Placeholder(3), d.Placeholder(4), d.Placeholder(5),
			d.Placeholder(6), d.Placeholder(7), d.Placeholder(8), d.Placeholder(9)),
		string(o.Status), l.now(), int64(o.Rows), int64(o.Rejects), int64(o.Skipped), o.Deleted, o.Inserted, errMsg, id,
	)
	if err != nil {
		return eris.Wrapf(err, "ingest: complete log %s", id)
	}
	return nil
}

// Fail marks an ingestion as failed with an error message.
func (l *Log) Fail(ctx context.Context, id, errMsg string) error {
	d := l.st.Dialect()
	_, err := l.st.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET "status" = %s, "completed_at" = %s, "error" = %s WHERE "id" = %s`,
			l.table(), d.Placeholder(1), d.Placeholder(2), d.Placeholder(3), d.Placeholder(4)),
		string(StatusFailed), l.now(), errMsg, id,
	)
	if err != nil {
		return eris.Wrapf(err, "ingest: fail log %s", id)
	}
	return nil
}

// LastSuccess returns when report was last synced, or nil if it never was.
func (l *Log) LastSuccess(ctx context.Context, report string) (*time.Time, error) {
	entries, err := l.list(ctx, fmt.Sprintf(`WHERE "report" = %s AND "status" = %s`,
		l.st.Dialect().Placeholder(1), l.st.Dialect().Placeholder(2)), 1, report, string(StatusSynced))
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: last success for %s", report)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0].StartedAt, nil
}

// ListAll returns all log entries, most recent first.
func (l *Log) ListAll(ctx context.Context) ([]Entry, error) {
	return l.list(ctx, "", 0)
}

func (l *Log) list(ctx context.Context, where string, limit int, args ...any) ([]Entry, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s %s ORDER BY "started_at" DESC`,
		db.QuoteAndJoin(LogTable.ColumnNames()), l.table(), where)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := l.st.Select(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: list log")
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		rec, err := schema.Decode(LogTable, row)
		if err != nil {
			return nil, eris.Wrap(err, "ingest: scan log entry")
		}
		e := Entry{
			ID:        rec["id"].(string),
			Report:    rec["report"].(string),
			File:      rec["file"].(string),
			Status:    Status(rec["status"].(string)),
			StartedAt: rec["started_at"].(time.Time),
			Rows:      rec["rows"].(int64),
			Rejects:   rec["rejects"].(int64),
			Skipped:   rec["skipped"].(int64),
			Deleted:   rec["deleted"].(int64),
			Inserted:  rec["inserted"].(int64),
		}
		if t, ok := rec["completed_at"].(time.Time); ok {
			e.CompletedAt = &t
		}
		if s, ok := rec["error"].(string); ok {
			e.Error = s
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (l *Log) table() string {
	return l.st.Dialect().Table(LogTable.Schema, LogTable.Name)
}

func placeholders(d store.Dialect, from, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = d.Placeholder(from + i)
	}
	return strings.Join(ph, ", ")
}
