package reports

import (
	"github.com/sells-group/reportsync/internal/canon"
	"github.com/sells-group/reportsync/internal/grid"
	"github.com/sells-group/reportsync/internal/report"
	"github.com/sells-group/reportsync/internal/schema"
	"github.com/sells-group/reportsync/internal/tablesync"
)

func siif() []report.Definition {
	return []report.Definition{rf602(), rf610(), rfpP605b(), rcg01UEJP(), rcocc31(), rdeu012()}
}

var xlsxRead = grid.Options{Format: grid.FormatXLSX}

// estructura joins the padded budget codes as PP-SS-YY-AA.
func estructura(parts ...string) canon.Expr {
	exprs := make([]canon.Expr, 0, 2*len(parts))
	for i, p := range parts {
		if i > 0 {
			exprs = append(exprs, canon.Lit("-"))
		}
		exprs = append(exprs, canon.Pad(canon.Field(p), 2))
	}
	return canon.Concat(exprs...)
}

func padded(cols ...string) []canon.Coercion {
	out := make([]canon.Coercion, len(cols))
	for i, c := range cols {
		out[i] = canon.Coercion{Column: c, Kind: canon.KindPad, Width: 2}
	}
	return out
}

func decimals(cols ...string) []canon.Coercion {
	out := make([]canon.Coercion, len(cols))
	for i, c := range cols {
		out[i] = canon.Coercion{Column: c, Kind: canon.KindDecimal}
	}
	return out
}

func amountColumns(cols ...string) []schema.Column {
	out := make([]schema.Column, len(cols))
	for i, c := range cols {
		out[i] = schema.Decimal(c, 18, 2).OrNull()
	}
	return out
}

// rf602 is budget execution by funding source.
func rf602() report.Definition {
	amounts := []string{"credito_original", "credito_vigente", "comprometido", "ordenado", "saldo", "pendiente"}
	coerce := append(padded("programa", "subprograma", "proyecto", "actividad"), decimals(amounts...)...)
	coerce = append(coerce, canon.Coercion{Column: fila, Kind: canon.KindInteger})

	return report.Definition{
		ID:          "siif_rf602",
		Subsystem:   report.SIIF,
		Description: "Ejecucion presupuestaria de gastos por fuente (rf602)",
		FilePattern: "rf602*.xlsx",
		Read:        xlsxRead,
		Signature: report.Signature{
			Probes:   []report.Probe{{Row: 5, Col: 2}},
			Expected: "DETALLE DE LA EJECUCION PRESUESTARIA",
			Mode:     report.Prefix,
		},
		Rule: canon.Rule{
			Skip: 16,
			Columns: []canon.Column{
				{Name: fila, Source: canon.RowNumber()},
				{Name: "ejercicio", Source: canon.CellSlice(5, 2, -4, 0)},
				{Name: "programa", Source: canon.Col(2)},
				{Name: "subprograma", Source: canon.Col(3)},
				{Name: "proyecto", Source: canon.Col(6)},
				{Name: "actividad", Source: canon.Col(7)},
				{Name: "partida", Source: canon.Col(8)},
				{Name: "fuente", Source: canon.Col(9)},
				{Name: "org", Source: canon.Col(10)},
				{Name: "credito_original", Source: canon.Col(13)},
				{Name: "credito_vigente", Source: canon.Col(14)},
				{Name: "comprometido", Source: canon.Col(15)},
				{Name: "ordenado", Source: canon.Col(16)},
				{Name: "saldo", Source: canon.Col(18)},
				{Name: "pendiente", Source: canon.Col(20)},
			},
			Keep: []canon.Keep{
				{Column: "programa", Test: canon.NotEmpty()},
				{Column: "programa", Test: canon.NotIn("0", "00")},
			},
			Derive: []canon.Derivation{
				{Target: "grupo", Expr: canon.Concat(canon.Slice(canon.Field("partida"), 0, 1), canon.Lit("00"))},
				{Target: "estructura", Expr: canon.Concat(
					estructura("programa", "subprograma", "proyecto", "actividad"),
					canon.Lit("-"), canon.Field("partida"),
				)},
			},
			Coerce: coerce,
			Output: []string{
				fila, "ejercicio", "estructura", "fuente", "programa", "subprograma", "proyecto",
				"actividad", "grupo", "partida", "org",
				"credito_original", "credito_vigente", "comprometido", "ordenado", "saldo", "pendiente",
			},
			Number: canon.PlainNumbers,
		},
		Table: schema.TableDefinition{
			Schema: schemaSIIF,
			Name:   "ppto_gtos_fte_rf602",
			Columns: append([]schema.Column{
				schema.Integer(fila),
				schema.Text("ejercicio", 4),
				schema.Text("estructura", 15),
				schema.Text("fuente", 2),
				schema.Text("programa", 2),
				schema.Text("subprograma", 2),
				schema.Text("proyecto", 2),
				schema.Text("actividad", 2),
				schema.Text("grupo", 3),
				schema.Text("partida", 3),
				schema.Text("org", 1),
			}, amountColumns(amounts...)...),
			PrimaryKey: []string{"ejercicio", fila},
		},
		Policy: tablesync.ReplaceByKey("ejercicio"),
	}
}

// rf610Rule is the canonicalization shared by rf610 and the ICARO budget
// structure tables derived from the same export: forward fill of the budget
// codes and a code/description split of each level.
func rf610Rule() canon.Rule {
	return canon.Rule{
		Skip: 30,
		Columns: []canon.Column{
			{Name: fila, Source: canon.RowNumber()},
			{Name: "ejercicio", Source: canon.CellSlice(9, 33, -4, 0)},
			{Name: "programa", Source: canon.Col(5)},
			{Name: "subprograma", Source: canon.Col(9)},
			{Name: "proyecto", Source: canon.Col(14)},
			{Name: "actividad", Source: canon.Col(17)},
			{Name: "grupo", Source: canon.Col(20)},
			{Name: "partida", Source: canon.Col(21)},
			{Name: "desc_part", Source: canon.Col(24)},
			{Name: "credito_original", Source: canon.Col(38)},
			{Name: "credito_vigente", Source: canon.Col(44)},
			{Name: "comprometido", Source: canon.Col(49)},
			{Name: "ordenado", Source: canon.Col(55)},
			{Name: "saldo", Source: canon.Col(60)},
		},
		FillDown: []string{"programa", "subprograma", "proyecto", "actividad", "grupo", "partida", "desc_part"},
		Keep:     []canon.Keep{{Column: "credito_original", Test: canon.NotEmpty()}},
		Splits: []canon.Split{
			{Source: "programa", Delim: " ", Into: []string{"programa", "desc_prog"}},
			{Source: "subprograma", Delim: " ", Into: []string{"subprograma", "desc_subprog"}},
			{Source: "proyecto", Delim: " ", Into: []string{"proyecto", "desc_proy"}},
			{Source: "actividad", Delim: " ", Into: []string{"actividad", "desc_act"}},
			{Source: "grupo", Delim: " ", Into: []string{"grupo", "desc_gpo"}},
		},
		Number: canon.PlainNumbers,
	}
}

// rf610 is budget execution with the description of every structure level.
func rf610() report.Definition {
	amounts := []string{"credito_original", "credito_vigente", "comprometido", "ordenado", "saldo"}
	rule := rf610Rule()
	rule.Derive = []canon.Derivation{
		{Target: "estructura", Expr: canon.Concat(
			estructura("programa", "subprograma", "proyecto", "actividad"),
			canon.Lit("-"), canon.Field("partida"),
		)},
	}
	rule.Coerce = append(padded("programa", "subprograma", "proyecto", "actividad"), decimals(amounts...)...)
	rule.Coerce = append(rule.Coerce, canon.Coercion{Column: fila, Kind: canon.KindInteger})
	rule.Output = []string{
		fila, "ejercicio", "estructura",
		"programa", "desc_prog", "subprograma", "desc_subprog", "proyecto", "desc_proy",
		"actividad", "desc_act", "grupo", "desc_gpo", "partida", "desc_part",
		"credito_original", "credito_vigente", "comprometido", "ordenado", "saldo",
	}

	return report.Definition{
		ID:          "siif_rf610",
		Subsystem:   report.SIIF,
		Description: "Ejecucion presupuestaria de gastos con descripcion (rf610)",
		FilePattern: "rf610*.xlsx",
		Read:        xlsxRead,
		Signature:   rf610Signature,
		Rule:        rule,
		Table: schema.TableDefinition{
			Schema: schemaSIIF,
			Name:   "ppto_gtos_desc_rf610",
			Columns: append([]schema.Column{
				schema.Integer(fila),
				schema.Text("ejercicio", 4),
				schema.Text("estructura", 15),
				schema.Text("programa", 2),
				schema.Text("desc_prog", 0),
				schema.Text("subprograma", 2),
				schema.Text("desc_subprog", 0),
				schema.Text("proyecto", 2),
				schema.Text("desc_proy", 0),
				schema.Text("actividad", 2),
				schema.Text("desc_act", 0),
				schema.Text("grupo", 3),
				schema.Text("desc_gpo", 0),
				schema.Text("partida", 3),
				schema.Text("desc_part", 0),
			}, amountColumns(amounts...)...),
			PrimaryKey: []string{"ejercicio", fila},
		},
		Policy: tablesync.ReplaceByKey("ejercicio"),
	}
}

// The rf610 title spans two banner cells.
var rf610Signature = report.Signature{
	Probes:   []report.Probe{{Row: 2, Col: 32}, {Row: 4, Col: 32}},
	Expected: "LISTADO DE EJECUCION DE GASTOS POR PARTIDA",
	Mode:     report.Exact,
}

// levelLabel reads a structure level from the rows that open it. The label is
// a fixed-width caption ending where the code starts.
func levelLabel(caption string, width int) canon.Source {
	return canon.Branch{When: canon.HasPrefix(3, caption), Then: canon.ColSlice(3, width, 0), Else: canon.Const("")}
}

// splitLevel splits a "cc description" level into its code and description.
// The description is derived first since the code overwrites the field.
func splitLevel(field, desc string) []canon.Derivation {
	return []canon.Derivation{
		{Target: desc, Expr: canon.Trim(canon.Slice(canon.Field(field), 3, 0))},
		{Target: field, Expr: canon.Trim(canon.Slice(canon.Field(field), 0, 2))},
	}
}

// rfpP605b is the budget formulation form: credits requested per structure and
// object of expenditure, by funding source 10 and 11. Only rows of a full
// three-digit object carry amounts.
func rfpP605b() report.Definition {
	levels := []string{"programa", "subprograma", "proyecto", "actividad"}
	descs := []string{"desc_prog", "desc_subprog", "desc_proy", "desc_act"}
	var derive []canon.Derivation
	for i, l := range levels {
		derive = append(derive, splitLevel(l, descs[i])...)
	}
	derive = append(derive, canon.Derivation{Target: "estructura", Expr: canon.Concat(
		estructura(levels...), canon.Lit("-"), canon.Field("partida"),
	)})
	amounts := []string{"fuente_10", "fuente_11"}
	coerce := append(padded(levels...), decimals(amounts...)...)
	coerce = append(coerce, canon.Coercion{Column: fila, Kind: canon.KindInteger})

	return report.Definition{
		ID:          "siif_rfp_p605b",
		Subsystem:   report.SIIF,
		Description: "Formulario de gastos del presupuesto (rfp_p605b)",
		FilePattern: "*rfp_p605b*.xlsx",
		Read:        xlsxRead,
		Signature:   report.At(8, 37, "rfp_p605b", report.Exact),
		Rule: canon.Rule{
			Skip: 22,
			Columns: []canon.Column{
				{Name: fila, Source: canon.RowNumber()},
				{Name: "ejercicio", Source: canon.CellSlice(13, 1, -4, 0)},
				{Name: "programa", Source: levelLabel("Programa", 22)},
				{Name: "subprograma", Source: levelLabel("SubPrograma", 19)},
				{Name: "proyecto", Source: levelLabel("Proyecto", 24)},
				{Name: "actividad", Source: levelLabel("Actividad", 20)},
				{Name: "grupo", Source: canon.Branch{When: canon.NonEmpty(10), Then: canon.ColSlice(10, 0, 3), Else: canon.Const("")}},
				{Name: "partida", Source: canon.Col(9)},
				{Name: "fuente_10", Source: canon.Col(19)},
				{Name: "fuente_11", Source: canon.Col(22)},
			},
			FillDown: []string{"programa", "subprograma", "proyecto", "actividad", "grupo"},
			Keep:     []canon.Keep{{Column: "partida", Test: canon.LenIs(3)}},
			Derive:   derive,
			Coerce:   coerce,
			Output: append([]string{
				fila, "ejercicio", "estructura", "programa", "desc_prog", "subprograma", "desc_subprog",
				"proyecto", "desc_proy", "actividad", "desc_act", "grupo", "partida",
			}, amounts...),
			Number: canon.PlainNumbers,
		},
		Table: schema.TableDefinition{
			Schema: schemaSIIF,
			Name:   "form_gto_rfp_p605b",
			Columns: append([]schema.Column{
				schema.Integer(fila),
				schema.Text("ejercicio", 4),
				schema.Text("estructura", 15),
				schema.Text("programa", 2),
				schema.Text("desc_prog", 0),
				schema.Text("subprograma", 2),
				schema.Text("desc_subprog", 0),
				schema.Text("proyecto", 2),
				schema.Text("desc_proy", 0),
				schema.Text("actividad", 2),
				schema.Text("desc_act", 0),
				schema.Text("grupo", 3),
				schema.Text("partida", 3),
			}, amountColumns(amounts...)...),
			PrimaryKey: []string{"ejercicio", fila},
		},
		Policy: tablesync.ReplaceByKey("ejercicio"),
	}
}

// rcg01UEJP lists expense vouchers entered per executing unit.
func rcg01UEJP() report.Definition {
	yes := []string{"S"}
	return report.Definition{
		ID:          "siif_rcg01_uejp",
		Subsystem:   report.SIIF,
		Description: "Comprobantes de gastos ingresados por unidad ejecutora (rcg01_uejp)",
		FilePattern: "rcg01*uejp*.xlsx",
		Read:        xlsxRead,
		Signature:   report.At(4, 1, "Resumen Diario de Comprobantes de Gastos Ingresados", report.Exact),
		Rule: canon.Rule{
			Skip: 16,
			Columns: []canon.Column{
				{Name: fila, Source: canon.RowNumber()},
				{Name: "ejercicio", Source: canon.CellSlice(2, 1, -4, 0)},
				{Name: "nro_entrada", Source: canon.Col(1)},
				{Name: "nro_origen", Source: canon.Col(2)},
				{Name: "fuente", Source: canon.Col(3)},
				{Name: "clase_reg", Source: canon.Col(4)},
				{Name: "clase_mod", Source: canon.Col(5)},
				{Name: "clase_gto", Source: canon.Col(6)},
				{Name: "fecha", Source: canon.Col(7)},
				{Name: "importe", Source: canon.Col(8)},
				{Name: "cuit", Source: canon.Col(9)},
				{Name: "beneficiario", Source: canon.Col(10)},
				{Name: "nro_expte", Source: canon.Col(11)},
				{Name: "cta_cte", Source: canon.Col(12)},
				{Name: "comprometido", Source: canon.Col(13)},
				{Name: "verificado", Source: canon.Col(14)},
				{Name: "aprobado", Source: canon.Col(15)},
				{Name: "pagado", Source: canon.Col(16)},
				{Name: "nro_fondo", Source: canon.Col(19)},
			},
			Keep: []canon.Keep{
				{Column: "cuit", Test: canon.NotEmpty()},
				{Column: "nro_entrada", Test: canon.NotEmpty()},
			},
			Derive: []canon.Derivation{
				{Target: "beneficiario", Expr: canon.Trim(canon.Replace(canon.Field("beneficiario"), "\t", ""))},
				{Target: "mes", Expr: mesFromISO("fecha")},
				{Target: "anio", Expr: canon.Slice(canon.Field("ejercicio"), -2, 0)},
			},
			Coerce: []canon.Coercion{
				{Column: fila, Kind: canon.KindInteger},
				{Column: "nro_entrada", Kind: canon.KindPad, Width: 5},
				{Column: "fecha", Kind: canon.KindDate, Layout: isoDate},
				{Column: "importe", Kind: canon.KindDecimal},
				{Column: "comprometido", Kind: canon.KindBool, TrueValues: yes},
				{Column: "verificado", Kind: canon.KindBool, TrueValues: yes},
				{Column: "aprobado", Kind: canon.KindBool, TrueValues: yes},
				{Column: "pagado", Kind: canon.KindBool, TrueValues: yes},
			},
			Keys: []canon.KeySpec{{Column: "nro_comprobante", Parts: []string{"nro_entrada", "anio"}, Sep: "/"}},
			Output: []string{
				fila, "ejercicio", "mes", "fecha", "nro_comprobante", "importe", "fuente", "cta_cte",
				"cuit", "nro_expte", "nro_fondo", "nro_entrada", "nro_origen",
				"clase_reg", "clase_mod", "clase_gto", "beneficiario",
				"comprometido", "verificado", "aprobado", "pagado",
			},
			Number: canon.PlainNumbers,
		},
		Table: schema.TableDefinition{
			Schema: schemaSIIF,
			Name:   "comprobantes_gtos_rcg01_uejp",
			Columns: []schema.Column{
				schema.Integer(fila),
				schema.Text("ejercicio", 4),
				schema.Text("mes", 7),
				schema.Date("fecha").OrNull(),
				schema.Text("nro_comprobante", 8),
				schema.Decimal("importe", 18, 2).OrNull(),
				schema.Text("fuente", 2),
				schema.Text("cta_cte", 20),
				schema.Text("cuit", 11),
				schema.Text("nro_expte", 12),
				schema.Text("nro_fondo", 5),
				schema.Text("nro_entrada", 5),
				schema.Text("nro_origen", 5),
				schema.Text("clase_reg", 3),
				schema.Text("clase_mod", 3),
				schema.Text("clase_gto", 3),
				schema.Text("beneficiario", 0),
				schema.Bool("comprometido"),
				schema.Bool("verificado"),
				schema.Bool("aprobado"),
				schema.Bool("pagado"),
			},
			PrimaryKey: []string{"ejercicio", fila},
		},
		Policy: tablesync.ReplaceByKey("ejercicio"),
	}
}
