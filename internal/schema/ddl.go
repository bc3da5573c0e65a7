package schema

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/reportsync/internal/db"
	"github.com/sells-group/reportsync/internal/store"
)

// sqlType maps a column to its storage type.
func sqlType(c Column, d store.Dialect) string {
	switch c.Type {
	case TypeText:
		if c.Length > 0 {
			return fmt.Sprintf("VARCHAR(%d)", c.Length)
		}
		return "TEXT"
	case TypeInteger:
		if d == store.Postgres {
			return "BIGINT"
		}
		return "INTEGER"
	case TypeDecimal:
		// SQLite NUMERIC affinity turns long decimals into REAL; text keeps every digit.
		if d == store.SQLite {
			return "TEXT"
		}
		if c.Precision > 0 {
			return fmt.Sprintf("NUMERIC(%d,%d)", c.Precision, c.Scale)
		}
		return "NUMERIC"
	case TypeDate:
		return "DATE"
	case TypeBool:
		return "BOOLEAN"
	case TypeTimestamp:
		if d == store.Postgres {
			return "TIMESTAMPTZ"
		}
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// CreateStatements returns the DDL that creates def. Foreign keys are deferred to
// commit so a dimension can be replaced inside the transaction that also holds its facts.
// SQLite resolves references inside the attached file of the child table, so they stay unqualified.
func CreateStatements(def TableDefinition, d store.Dialect) []string {
	var stmts []string
	if d == store.Postgres && def.Schema != "" {
		stmts = append(stmts, "CREATE SCHEMA IF NOT EXISTS "+db.Identifier("", def.Schema).Sanitize())
	}

	var lines []string
	for _, c := range def.Columns {
		line := fmt.Sprintf("%s %s", db.Identifier("", c.Name).Sanitize(), sqlType(c, d))
		if !c.Nullable || slices.Contains(def.PrimaryKey, c.Name) {
			line += " NOT NULL"
		}
		lines = append(lines, line)
	}
	lines = append(lines, fmt.Sprintf("PRIMARY KEY (%s)", db.QuoteAndJoin(def.PrimaryKey)))
	for _, fk := range def.ForeignKeys {
		ref := db.Identifier("", fk.RefTable).Sanitize()
		if d == store.Postgres {
			ref = d.Table(def.Schema, fk.RefTable)
		}
		lines = append(lines, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s) DEFERRABLE INITIALLY DEFERRED",
			db.QuoteAndJoin(fk.Columns), ref, db.QuoteAndJoin(fk.RefColumns)))
	}

	stmts = append(stmts, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		d.Table(def.Schema, def.Name), strings.Join(lines, ",\n\t")))
	return stmts
}

// EnsureCreated creates the named table when it does not exist. An existing table
// is only compared against its definition; it is never altered.
func (r *Registry) EnsureCreated(ctx context.Context, st store.Store, name string) error {
	def, err := r.Get(name)
	if err != nil {
		return err
	}
	return EnsureTable(ctx, st, def)
}

// EnsureAll creates every registered table in dependency order.
func (r *Registry) EnsureAll(ctx context.Context, st store.Store) error {
	ordered, err := r.Ordered()
	if err != nil {
		return err
	}
	for _, def := range ordered {
		if err := EnsureTable(ctx, st, def); err != nil {
			return err
		}
	}
	return nil
}

// EnsureTable creates def when missing and reports ErrSchemaDrift when the live
// column set differs.
func EnsureTable(ctx context.Context, st store.Store, def TableDefinition) error {
	log := zap.L().With(zap.String("component", "schema"), zap.String("table", def.QualifiedName()))

	live, err := st.TableColumns(ctx, def.Schema, def.Name)
	if err != nil {
		return eris.Wrapf(err, "schema: inspect %s", def.QualifiedName())
	}

	if len(live) > 0 {
		missing, extra := diffColumns(def.ColumnNames(), live)
		if len(missing) > 0 || len(extra) > 0 {
			return eris.Wrapf(ErrSchemaDrift, "schema: %s: missing %v, unexpected %v",
				def.QualifiedName(), missing, extra)
		}
		log.Debug("table exists")
		return nil
	}

	for _, stmt := range CreateStatements(def, st.Dialect()) {
		if _, err := st.Exec(ctx, stmt); err != nil {
			return eris.Wrapf(err, "schema: create %s", def.QualifiedName())
		}
	}
	log.Info("table created")
	return nil
}

func diffColumns(want, have []string) (missing, extra []string) {
	for _, c := range want {
		if !slices.Contains(have, c) {
			missing = append(missing, c)
		}
	}
	for _, c := range have {
		if !slices.Contains(want, c) {
			extra = append(extra, c)
		}
	}
	return missing, extra
}
