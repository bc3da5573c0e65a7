package reports

import (
	"github.com/sells-group/reportsync/internal/canon"
	"github.com/sells-group/reportsync/internal/report"
	"github.com/sells-group/reportsync/internal/schema"
	"github.com/sells-group/reportsync/internal/tablesync"
)

// isoFromDayFirst rewrites a dd/mm/yyyy field as yyyy-mm-dd.
func isoFromDayFirst(field string) canon.Expr {
	f := canon.Field(field)
	return canon.Concat(canon.Slice(f, 6, 10), canon.Lit("-"), canon.Slice(f, 3, 5), canon.Lit("-"), canon.Slice(f, 0, 2))
}

// mesFromISO renders mm/yyyy from a yyyy-mm-dd field.
func mesFromISO(field string) canon.Expr {
	f := canon.Field(field)
	return canon.Concat(canon.Slice(f, 5, 7), canon.Lit("/"), canon.Slice(f, 0, 4))
}

// rcocc31 is the ledger of one account for one year. Entries approved after
// the year closed are booked on December 31.
func rcocc31() report.Definition {
	amounts := []string{"creditos", "debitos", "saldo"}
	return report.Definition{
		ID:          "siif_rcocc31",
		Subsystem:   report.SIIF,
		Description: "Mayor contable (rcocc31)",
		FilePattern: "*rcocc31*.xlsx",
		Read:        xlsxRead,
		Signature:   report.At(9, 2, "DETALLES DE MOVIMIENTOS CONTABLES", report.Prefix),
		Rule: canon.Rule{
			Skip: 20,
			Columns: []canon.Column{
				{Name: fila, Source: canon.RowNumber()},
				{Name: "ejercicio", Source: canon.CellSlice(3, 1, -4, 0)},
				{Name: "cta_mayor", Source: canon.Cell(10, 6)},
				{Name: "cta_sub", Source: canon.Cell(10, 11)},
				{Name: "cta_aux", Source: canon.Cell(10, 12)},
				{Name: "nro_entrada", Source: canon.Col(3)},
				{Name: "fecha_aprobado", Source: canon.Col(9)},
				{Name: "auxiliar_1", Source: canon.Col(14)},
				{Name: "auxiliar_2", Source: canon.Col(19)},
				{Name: "tipo_comprobante", Source: canon.Col(21)},
				{Name: "debitos", Source: canon.Col(24)},
				{Name: "creditos", Source: canon.Col(25)},
				{Name: "saldo", Source: canon.Col(27)},
			},
			Keep: []canon.Keep{{Column: "nro_entrada", Test: canon.NotEmpty()}},
			Derive: []canon.Derivation{
				{Target: "cta_contable", Expr: canon.Concat(
					canon.Field("cta_mayor"), canon.Lit("-"), canon.Field("cta_sub"), canon.Lit("-"), canon.Field("cta_aux"),
				)},
				{Target: "fecha", Expr: canon.IfSame(
					canon.Slice(canon.Field("fecha_aprobado"), 0, 4), canon.Field("ejercicio"),
					canon.Field("fecha_aprobado"),
					canon.Concat(canon.Field("ejercicio"), canon.Lit("-12-31")),
				)},
				{Target: "mes", Expr: canon.Concat(
					canon.Slice(canon.Field("fecha"), 5, 7), canon.Lit("/"), canon.Field("ejercicio"),
				)},
			},
			Coerce: append(decimals(amounts...),
				canon.Coercion{Column: fila, Kind: canon.KindInteger},
				canon.Coercion{Column: "fecha", Kind: canon.KindDate, Layout: isoDate},
				canon.Coercion{Column: "fecha_aprobado", Kind: canon.KindDate, Layout: isoDate},
			),
			Output: append([]string{
				fila, "ejercicio", "mes", "fecha", "fecha_aprobado", "cta_contable",
				"nro_entrada", "auxiliar_1", "auxiliar_2", "tipo_comprobante",
			}, amounts...),
			Number: canon.PlainNumbers,
		},
		Table: schema.TableDefinition{
			Schema: schemaSIIF,
			Name:   "mayor_contable_rcocc31",
			Columns: append([]schema.Column{
				schema.Integer(fila),
				schema.Text("ejercicio", 4),
				schema.Text("mes", 7),
				schema.Date("fecha"),
				schema.Date("fecha_aprobado").OrNull(),
				schema.Text("cta_contable", 20),
				schema.Text("nro_entrada", 6),
				schema.Text("auxiliar_1", 0),
				schema.Text("auxiliar_2", 0),
				schema.Text("tipo_comprobante", 3),
			}, amountColumns(amounts...)...),
			PrimaryKey: []string{"ejercicio", "cta_contable", fila},
		},
		Policy: tablesync.ReplaceByKey("ejercicio", "cta_contable"),
	}
}

// rdeu012 is the floating debt: vouchers ordered and still unpaid at the
// closing date of the export. A voucher approved after that date counts on it.
func rdeu012() report.Definition {
	// The period cell reads: Desde el: dd/mm/yyyy - Hasta el: dd/mm/yyyy
	periodo := []string{"periodo_0", "periodo_1", "fecha_desde", "periodo_3", "periodo_4", "periodo_5", "fecha_hasta"}
	return report.Definition{
		ID:          "siif_rdeu012",
		Subsystem:   report.SIIF,
		Description: "Deuda flotante (rdeu012)",
		FilePattern: "*rdeu012*.xlsx",
		Read:        xlsxRead,
		Signature: report.At(9, 2,
			"DETALLE DE COMPROBANTES DE GASTOS ORDENADOS Y NO PAGADOS (DEUDA FLOTANTE)", report.Exact),
		Rule: canon.Rule{
			Skip: 13,
			Columns: []canon.Column{
				{Name: fila, Source: canon.RowNumber()},
				{Name: "periodo", Source: canon.Cell(15, 2)},
				// Group headers carry the source; TODOS and 27 are not one.
				{Name: "fuente", Source: canon.Branch{
					When: canon.AnyOf(canon.Equals(6, "TODOS"), canon.Equals(6, "27")),
					Then: canon.Const(""),
					Else: canon.Col(6),
				}},
				{Name: "nro_entrada", Source: canon.Col(2)},
				{Name: "nro_origen", Source: canon.Col(4)},
				{Name: "fecha_aprobado", Source: canon.Col(7)},
				{Name: "org_fin", Source: canon.Col(9)},
				{Name: "importe", Source: canon.Col(10)},
				{Name: "saldo", Source: canon.Col(13)},
				{Name: "nro_expte", Source: canon.Col(14)},
				{Name: "cta_cte", Source: canon.Col(15)},
				{Name: "glosa", Source: canon.Col(17)},
				{Name: "cuit", Source: canon.Col(18)},
				{Name: "beneficiario", Source: canon.Col(19)},
			},
			FillDown: []string{"fuente"},
			Keep: []canon.Keep{
				{Column: "nro_entrada", Test: canon.NotEmpty()},
				{Column: "cuit", Test: canon.NotEmpty()},
			},
			Splits: []canon.Split{{Source: "periodo", Delim: " ", Into: periodo}},
			Derive: []canon.Derivation{
				{Target: "fecha_desde", Expr: isoFromDayFirst("fecha_desde")},
				{Target: "fecha_hasta", Expr: isoFromDayFirst("fecha_hasta")},
				{Target: "mes_hasta", Expr: mesFromISO("fecha_hasta")},
				{Target: "fecha", Expr: canon.Earliest(canon.Field("fecha_aprobado"), canon.Field("fecha_hasta"))},
				{Target: "ejercicio", Expr: canon.Slice(canon.Field("fecha"), 0, 4)},
				{Target: "mes", Expr: mesFromISO("fecha")},
				{Target: "anio", Expr: canon.Slice(canon.Field("fecha"), 2, 4)},
			},
			Coerce: []canon.Coercion{
				{Column: fila, Kind: canon.KindInteger},
				{Column: "nro_entrada", Kind: canon.KindPad, Width: 5},
				{Column: "fecha", Kind: canon.KindDate, Layout: isoDate},
				{Column: "fecha_aprobado", Kind: canon.KindDate, Layout: isoDate},
				{Column: "fecha_desde", Kind: canon.KindDate, Layout: isoDate},
				{Column: "fecha_hasta", Kind: canon.KindDate, Layout: isoDate},
				{Column: "importe", Kind: canon.KindDecimal},
				{Column: "saldo", Kind: canon.KindDecimal},
			},
			Keys: []canon.KeySpec{{Column: "nro_comprobante", Parts: []string{"nro_entrada", "anio"}, Sep: "/"}},
			Output: []string{
				fila, "ejercicio", "mes", "fecha", "mes_hasta", "fuente", "cta_cte", "nro_comprobante",
				"importe", "saldo", "cuit", "beneficiario", "glosa", "nro_expte",
				"nro_entrada", "nro_origen", "fecha_aprobado", "fecha_desde", "fecha_hasta", "org_fin",
			},
			Number: canon.PlainNumbers,
		},
		Table: schema.TableDefinition{
			Schema: schemaSIIF,
			Name:   "deuda_flotante_rdeu012",
			Columns: []schema.Column{
				schema.Integer(fila),
				schema.Text("ejercicio", 4),
				schema.Text("mes", 7),
				schema.Date("fecha"),
				schema.Text("mes_hasta", 7),
				schema.Text("fuente", 2),
				schema.Text("cta_cte", 20),
				schema.Text("nro_comprobante", 8),
				schema.Decimal("importe", 18, 2).OrNull(),
				schema.Decimal("saldo", 18, 2).OrNull(),
				schema.Text("cuit", 11),
				schema.Text("beneficiario", 0),
				schema.Text("glosa", 0),
				schema.Text("nro_expte", 12),
				schema.Text("nro_entrada", 5),
				schema.Text("nro_origen", 5),
				schema.Date("fecha_aprobado").OrNull(),
				schema.Date("fecha_desde"),
				schema.Date("fecha_hasta"),
				schema.Text("org_fin", 0),
			},
			PrimaryKey: []string{"mes_hasta", fila},
		},
		Policy: tablesync.ReplaceByKey("mes_hasta"),
	}
}
