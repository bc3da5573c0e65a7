package schema

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/reportsync/internal/canon"
	"github.com/sells-group/reportsync/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func icaroTables() []TableDefinition {
	return []TableDefinition{
		{
			Schema:     "icaro",
			Name:       "icaro_carga",
			Columns:    []Column{Text("id", 20), Text("actividad", 15), Decimal("importe", 18, 2)},
			PrimaryKey: []string{"id"},
			ForeignKeys: []ForeignKey{
				{Columns: []string{"actividad"}, RefTable: "icaro_actividades", RefColumns: []string{"actividad"}},
			},
		},
		{
			Schema:     "icaro",
			Name:       "icaro_actividades",
			Columns:    []Column{Text("actividad", 15), Text("proyecto", 10)},
			PrimaryKey: []string{"actividad"},
			ForeignKeys: []ForeignKey{
				{Columns: []string{"proyecto"}, RefTable: "icaro_proyectos", RefColumns: []string{"proyecto"}},
			},
		},
		{
			Schema:     "icaro",
			Name:       "icaro_proyectos",
			Columns:    []Column{Text("proyecto", 10), Text("desc_proyecto", 0).OrNull()},
			PrimaryKey: []string{"proyecto"},
		},
	}
}

func TestRegistry_OrderedPutsDimensionsFirst(t *testing.T) {
	r := NewRegistry()
	for _, def := range icaroTables() {
		require.NoError(t, r.Register(def))
	}

	ordered, err := r.Ordered()
	require.NoError(t, err)
	var names []string
	for _, d := range ordered {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"icaro_proyectos", "icaro_actividades", "icaro_carga"}, names)

	rank, err := r.Rank()
	require.NoError(t, err)
	assert.Less(t, rank["icaro_actividades"], rank["icaro_carga"])
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(icaroTables()[2]))

	def, err := r.Get("icaro_proyectos")
	require.NoError(t, err)
	assert.Equal(t, "icaro.icaro_proyectos", def.QualifiedName())

	_, err = r.Get("nope")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrUnknownTable))
}

func TestRegistry_RegisterTwice(t *testing.T) {
	r := NewRegistry()
	def := icaroTables()[2]
	require.NoError(t, r.Register(def))
	require.NoError(t, r.Register(def))
	assert.Len(t, r.All(), 1)

	def.Columns = append(def.Columns, Text("extra", 0))
	require.Error(t, r.Register(def))
}

func TestRegistry_RejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		def  TableDefinition
		want string
	}{
		{"no columns", TableDefinition{Name: "t", PrimaryKey: []string{"a"}}, "no columns"},
		{"no key", TableDefinition{Name: "t", Columns: []Column{Text("a", 0)}}, "no primary key"},
		{"unknown key", TableDefinition{Name: "t", Columns: []Column{Text("a", 0)}, PrimaryKey: []string{"b"}}, "not declared"},
		{"duplicate column", TableDefinition{Name: "t", Columns: []Column{Text("a", 0), Integer("a")}, PrimaryKey: []string{"a"}}, "twice"},
		{"bad fk", TableDefinition{Name: "t", Columns: []Column{Text("a", 0)}, PrimaryKey: []string{"a"},
			ForeignKeys: []ForeignKey{{Columns: []string{"a"}, RefTable: "p"}}}, "malformed foreign key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRegistry().Register(tt.def)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRegistry_OrderedUnregisteredReference(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(icaroTables()[0]))
	_, err := r.Ordered()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unregistered table")
}

func TestRegistry_OrderedCycle(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(TableDefinition{Name: "a", Columns: []Column{Text("id", 0), Text("b", 0)}, PrimaryKey: []string{"id"},
		ForeignKeys: []ForeignKey{{Columns: []string{"b"}, RefTable: "b", RefColumns: []string{"id"}}}}))
	require.NoError(t, r.Register(TableDefinition{Name: "b", Columns: []Column{Text("id", 0), Text("a", 0)}, PrimaryKey: []string{"id"},
		ForeignKeys: []ForeignKey{{Columns: []string{"a"}, RefTable: "a", RefColumns: []string{"id"}}}}))
	_, err := r.Ordered()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestCreateStatements_Postgres(t *testing.T) {
	stmts := CreateStatements(icaroTables()[1], store.Postgres)
	require.Len(t, stmts, 2)
	assert.Equal(t, `CREATE SCHEMA IF NOT EXISTS "icaro"`, stmts[0])
	assert.Equal(t, `CREATE TABLE IF NOT EXISTS "icaro"."icaro_actividades" (
	"actividad" VARCHAR(15) NOT NULL,
	"proyecto" VARCHAR(10) NOT NULL,
	PRIMARY KEY ("actividad"),
	FOREIGN KEY ("proyecto") REFERENCES "icaro"."icaro_proyectos" ("proyecto") DEFERRABLE INITIALLY DEFERRED
)`, stmts[1])
}

func TestCreateStatements_SQLite(t *testing.T) {
	def := TableDefinition{
		Schema: "sscc",
		Name:   "mov",
		Columns: []Column{
			Text("id", 0), Integer("n").OrNull(), Decimal("importe", 18, 2).OrNull(),
			Date("fecha").OrNull(), Bool("es_cheque"), Timestamp("cargado").OrNull(),
		},
		PrimaryKey: []string{"id"},
	}
	stmts := CreateStatements(def, store.SQLite)
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0], `CREATE TABLE IF NOT EXISTS "sscc"."mov"`)
	assert.Contains(t, stmts[0], `"n" INTEGER,`)
	assert.Contains(t, stmts[0], `"importe" TEXT,`)
	assert.Contains(t, stmts[0], `"fecha" DATE,`)
	assert.Contains(t, stmts[0], `"es_cheque" BOOLEAN NOT NULL`)
	assert.Contains(t, stmts[0], `"cargado" TIMESTAMP,`)
}

func newSQLite(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(context.Background(), t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	return st
}

func TestEnsureCreated_CreatesOnceAndDetectsDrift(t *testing.T) {
	st := newSQLite(t)
	ctx := context.Background()
	r := NewRegistry()
	for _, def := range icaroTables() {
		require.NoError(t, r.Register(def))
	}

	require.NoError(t, r.EnsureAll(ctx, st))
	require.NoError(t, r.EnsureCreated(ctx, st, "icaro_carga"))

	cols, err := st.TableColumns(ctx, "icaro", "icaro_carga")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "actividad", "importe"}, cols)

	drifted := icaroTables()[2]
	drifted.Columns = append(drifted.Columns, Text("nuevo", 0).OrNull())
	err = EnsureTable(ctx, st, drifted)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrSchemaDrift))
	assert.Contains(t, err.Error(), "nuevo")

	cols, err = st.TableColumns(ctx, "icaro", "icaro_proyectos")
	require.NoError(t, err)
	assert.Equal(t, []string{"proyecto", "desc_proyecto"}, cols, "existing table must not be altered")

	err = r.EnsureCreated(ctx, st, "nope")
	assert.True(t, eris.Is(err, ErrUnknownTable))
}

func movTable() TableDefinition {
	return TableDefinition{
		Schema: "sscc",
		Name:   "mov",
		Columns: []Column{
			Text("id", 5), Decimal("importe", 18, 2).OrNull(), Date("fecha").OrNull(),
			Bool("es_cheque"), Integer("n").OrNull(),
		},
		PrimaryKey: []string{"id"},
	}
}

func TestValidate(t *testing.T) {
	def := movTable()
	cols := def.ColumnNames()
	good := canon.Record{"id": "a", "importe": decimal.NewFromInt(1), "fecha": time.Now(), "es_cheque": true, "n": int64(1)}

	require.NoError(t, Validate(def, &canon.RecordSet{Columns: cols, Records: []canon.Record{good}}))

	widest := canon.Record{"id": "c", "importe": decimal.RequireFromString("-9999999999999999.99"), "es_cheque": true, "fecha": nil, "n": nil}
	require.NoError(t, Validate(def, &canon.RecordSet{Columns: cols, Records: []canon.Record{widest}}))
	trailing := canon.Record{"id": "d", "importe": decimal.RequireFromString("1.500"), "es_cheque": true, "fecha": nil, "n": nil}
	require.NoError(t, Validate(def, &canon.RecordSet{Columns: cols, Records: []canon.Record{trailing}}))

	nullable := canon.Record{"id": "b", "importe": nil, "fecha": nil, "es_cheque": false, "n": nil}
	require.NoError(t, Validate(def, &canon.RecordSet{Columns: cols, Records: []canon.Record{nullable}}))

	tests := []struct {
		name string
		rs   *canon.RecordSet
		want string
	}{
		{"missing column", &canon.RecordSet{Columns: cols[:4]}, "missing [n]"},
		{"extra column", &canon.RecordSet{Columns: append(cols, "x")}, "unexpected [x]"},
		{"null key", &canon.RecordSet{Columns: cols, Records: []canon.Record{{"id": nil, "es_cheque": true}}}, "null in non-nullable"},
		{"null required", &canon.RecordSet{Columns: cols, Records: []canon.Record{{"id": "a", "es_cheque": nil}}}, "null in non-nullable"},
		{"wrong type", &canon.RecordSet{Columns: cols, Records: []canon.Record{{"id": "a", "es_cheque": true, "importe": "12"}}}, "is not decimal"},
		{"too long", &canon.RecordSet{Columns: cols, Records: []canon.Record{{"id": "abcdef", "es_cheque": true}}}, "exceeds length 5"},
		{"too many decimals", &canon.RecordSet{Columns: cols, Records: []canon.Record{
			{"id": "a", "es_cheque": true, "importe": decimal.RequireFromString("1.234")},
		}}, "more than 2 decimal places"},
		{"too many digits", &canon.RecordSet{Columns: cols, Records: []canon.Record{
			{"id": "a", "es_cheque": true, "importe": decimal.RequireFromString("-10000000000000000")},
		}}, "exceeds 16 integer digits"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(def, tt.rs)
			require.Error(t, err)
			assert.True(t, eris.Is(err, ErrInvalidRecord))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecode_WidenedValues(t *testing.T) {
	def := movTable()
	rec, err := Decode(def, []any{[]byte("a"), 1234.56, "2023-03-15", int64(1), float64(7)})
	require.NoError(t, err)
	assert.Equal(t, "a", rec["id"])
	assert.True(t, decimal.RequireFromString("1234.56").Equal(rec["importe"].(decimal.Decimal)))
	assert.Equal(t, time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC), rec["fecha"])
	assert.Equal(t, true, rec["es_cheque"])
	assert.Equal(t, int64(7), rec["n"])

	rec, err = Decode(def, []any{"b", int64(100), time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC), false, nil})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(rec["importe"].(decimal.Decimal)))
	assert.Nil(t, rec["n"])

	_, err = Decode(def, []any{"a"})
	require.Error(t, err)

	_, err = Decode(def, []any{"a", "abc", nil, true, nil})
	require.Error(t, err)
}

func TestRead_RoundTrip(t *testing.T) {
	st := newSQLite(t)
	ctx := context.Background()
	def := movTable()
	require.NoError(t, EnsureTable(ctx, st, def))

	in := []canon.Record{
		{"id": "c", "importe": decimal.RequireFromString("9999999999999999.99"), "fecha": nil, "es_cheque": false, "n": nil},
		{"id": "b", "importe": decimal.RequireFromString("-10.25"), "fecha": time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC), "es_cheque": false, "n": int64(2)},
		{"id": "a", "importe": decimal.RequireFromString("1234.5"), "fecha": nil, "es_cheque": true, "n": nil},
	}
	rs := &canon.RecordSet{Columns: def.ColumnNames(), Records: in}
	require.NoError(t, Validate(def, rs))
	require.NoError(t, st.InTx(ctx, func(tx store.Tx) error {
		_, err := tx.Insert(ctx, def.Schema, def.Name, rs.Columns, rs.Rows())
		return err
	}))

	out, err := Read(ctx, st, def, 0)
	require.NoError(t, err)
	require.Equal(t, 3, out.Len())
	assert.Equal(t, "9999999999999999.99", out.Records[2]["importe"].(decimal.Decimal).String(), "no float rounding")
	assert.Equal(t, "a", out.Records[0]["id"])
	assert.True(t, decimal.RequireFromString("1234.5").Equal(out.Records[0]["importe"].(decimal.Decimal)))
	assert.Nil(t, out.Records[0]["fecha"])
	assert.Equal(t, true, out.Records[0]["es_cheque"])
	assert.Equal(t, in[1]["fecha"], out.Records[1]["fecha"])
	assert.True(t, decimal.RequireFromString("-10.25").Equal(out.Records[1]["importe"].(decimal.Decimal)))
	assert.Equal(t, int64(2), out.Records[1]["n"])

	limited, err := Read(ctx, st, def, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, limited.Len())
}
