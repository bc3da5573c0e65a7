package tablesync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/reportsync/internal/canon"
	"github.com/sells-group/reportsync/internal/db"
	"github.com/sells-group/reportsync/internal/schema"
	"github.com/sells-group/reportsync/internal/store"
)

// DefaultChunkSize is the number of key tuples matched by one DELETE statement.
const DefaultChunkSize = 200

// Result counts the rows touched by one sync.
type Result struct {
	Deleted  int64 `json:"deleted"`
	Inserted int64 `json:"inserted"`
}

// Engine synchronizes record sets into one store. It assumes exclusive write
// access to the target table for the duration of a Sync call.
type Engine struct {
	st        store.Store
	chunkSize int
}

// NewEngine creates a sync engine over st.
func NewEngine(st store.Store) *Engine {
	return &Engine{st: st, chunkSize: DefaultChunkSize}
}

// WithChunkSize overrides the number of key tuples per DELETE.
func (e *Engine) WithChunkSize(n int) *Engine {
	if n > 0 {
		e.chunkSize = n
	}
	return e
}

// Sync applies rs to the table def under policy p. Every check that can fail on the
// batch alone runs before storage is touched; the delete and the insert share one
// transaction, so a failure leaves the table as it was.
func (e *Engine) Sync(ctx context.Context, rs *canon.RecordSet, def schema.TableDefinition, p Policy) (*Result, error) {
	log := zap.L().With(
		zap.String("component", "tablesync"),
		zap.String("table", def.QualifiedName()),
		zap.String("policy", p.String()),
	)

	if err := check(rs, def, p); err != nil {
		return nil, err
	}

	if p.Mode == ModeReplaceByKey && rs.Len() == 0 {
		log.Debug("empty batch, nothing to replace")
		return &Result{}, nil
	}

	cols := def.ColumnNames()
	rows := make([][]any, len(rs.Records))
	for i, rec := range rs.Records {
		row := make([]any, len(cols))
		for j, c := range cols {
			row[j] = rec[c]
		}
		rows[i] = row
	}

	start := time.Now()
	res := &Result{}
	err := e.st.InTx(ctx, func(tx store.Tx) error {
		var err error
		switch p.Mode {
		case ModeFullReplace:
			res.Deleted, err = tx.Exec(ctx, "DELETE FROM "+e.st.Dialect().Table(def.Schema, def.Name))
			if err != nil {
				return eris.Wrapf(err, "tablesync: clear %s", def.QualifiedName())
			}
		case ModeReplaceByKey:
			res.Deleted, err = e.deleteByKey(ctx, tx, def, p.Key, rs.KeyTuples(p.Key))
			if err != nil {
				return err
			}
		}

		res.Inserted, err = tx.Insert(ctx, def.Schema, def.Name, cols, rows)
		if err != nil {
			return eris.Wrapf(err, "tablesync: insert into %s", def.QualifiedName())
		}
		return nil
	})
	if err != nil {
		log.Error("sync rolled back", zap.Error(err))
		return nil, err
	}

	log.Info("table synced",
		zap.Int64("deleted", res.Deleted),
		zap.Int64("inserted", res.Inserted),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// check rejects batches that could never be applied.
func check(rs *canon.RecordSet, def schema.TableDefinition, p Policy) error {
	if rs == nil {
		return eris.New("tablesync: nil record set")
	}
	switch p.Mode {
	case ModeFullReplace:
	case ModeReplaceByKey:
		if len(p.Key) == 0 {
			return eris.Errorf("tablesync: %s: replace by key without key columns", def.QualifiedName())
		}
		for _, c := range p.Key {
			if _, ok := def.Column(c); !ok {
				return eris.Errorf("tablesync: %s: policy key column %q not in table", def.QualifiedName(), c)
			}
		}
	default:
		return eris.Errorf("tablesync: %s: unknown policy mode %d", def.QualifiedName(), p.Mode)
	}

	if err := schema.Validate(def, rs); err != nil {
		return err
	}
	if err := rs.CheckUnique(def.PrimaryKey); err != nil {
		return eris.Wrapf(err, "tablesync: %s", def.QualifiedName())
	}
	return nil
}

// deleteByKey removes rows matching any of tuples, chunkSize tuples per statement.
func (e *Engine) deleteByKey(ctx context.Context, tx store.Tx, def schema.TableDefinition, key []string, tuples [][]any) (int64, error) {
	var total int64
	for lo := 0; lo < len(tuples); lo += e.chunkSize {
		hi := min(lo+e.chunkSize, len(tuples))
		query, args := deleteSQL(e.st.Dialect(), def, key, tuples[lo:hi])
		n, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return total, eris.Wrapf(err, "tablesync: delete %d key tuples from %s", hi-lo, def.QualifiedName())
		}
		total += n
	}
	return total, nil
}

// deleteSQL builds DELETE ... WHERE (k1 = ? AND k2 = ?) OR (...). Nil values match IS NULL.
func deleteSQL(d store.Dialect, def schema.TableDefinition, key []string, tuples [][]any) (string, []any) {
	var (
		args  []any
		terms = make([]string, 0, len(tuples))
	)
	for _, tuple := range tuples {
		conds := make([]string, len(key))
		for i, c := range key {
			col := db.Identifier("", c).Sanitize()
			if tuple[i] == nil {
				conds[i] = col + " IS NULL"
				continue
			}
			args = append(args, tuple[i])
			conds[i] = fmt.Sprintf("%s = %s", col, d.Placeholder(len(args)))
		}
		terms = append(terms, "("+strings.Join(conds, " AND ")+")")
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s",
		d.Table(def.Schema, def.Name), strings.Join(terms, " OR ")), args
}
