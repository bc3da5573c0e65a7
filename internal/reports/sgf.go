package reports

import (
	"github.com/sells-group/reportsync/internal/canon"
	"github.com/sells-group/reportsync/internal/grid"
	"github.com/sells-group/reportsync/internal/report"
	"github.com/sells-group/reportsync/internal/schema"
	"github.com/sells-group/reportsync/internal/tablesync"
)

func sgf() []report.Definition {
	return []report.Definition{listadoProv(), certificadosObras(), resumenRendProv()}
}

// sgfCSV pins the width of the SGF exports, whose rows are ragged.
var sgfCSV = grid.Options{Format: grid.FormatDelimited, Encoding: grid.DefaultEncoding, Columns: 70}

// listadoProv is the provider registry. Payments reference providers by name.
func listadoProv() report.Definition {
	fields := []string{"codigo", "desc_prov", "domicilio", "localidad", "telefono", "cuit", "condicion_iva"}
	return report.Definition{
		ID:          "sgf_listado_prov",
		Subsystem:   report.SGF,
		Description: "Listado de proveedores",
		FilePattern: "listado_prov*.csv",
		Read:        sgfCSV,
		Signature:   report.At(0, 1, "Listado de Proveedores", report.Exact),
		Rule: canon.Rule{
			Columns: canon.Columns(fields, []int{9, 10, 11, 12, 13, 14, 15}),
			Keep: []canon.Keep{
				{Column: "cuit", Test: canon.NotEmpty()},
				{Column: "desc_prov", Test: canon.NotEmpty()},
			},
			Derive:   []canon.Derivation{{Target: "cuit", Expr: canon.Replace(canon.Field("cuit"), "-", "")}},
			Output:   []string{"codigo", "cuit", "desc_prov", "domicilio", "localidad", "telefono", "condicion_iva"},
			Dedupe:   true,
			DedupeOn: []string{"desc_prov"},
		},
		Table: schema.TableDefinition{
			Schema: schemaSGF,
			Name:   "listado_prov",
			Columns: []schema.Column{
				schema.Text("codigo", 5),
				schema.Text("cuit", 15),
				schema.Text("desc_prov", 0),
				schema.Text("domicilio", 0),
				schema.Text("localidad", 0),
				schema.Text("telefono", 0),
				schema.Text("condicion_iva", 0),
			},
			PrimaryKey: []string{"desc_prov"},
		},
		// Providers dropped from a later listing stay while old payments name them.
		Policy: tablesync.ReplaceByKey("desc_prov"),
	}
}

// totalesBranch selects the column set of certificate rows. The first
// certificate of each contractor shares its line with the contractor totals,
// which shifts the row one column to the right.
var totalesBranch = canon.OffsetBranch{
	When: canon.AnyOf(canon.Equals(37, "TOTALES"), canon.Equals(48, "TOTALES")),
	Targets: []string{
		"beneficiario", "obra", "nro_certificado", "monto_certificado", "fondo_reparo", "otros",
		"importe_bruto", "iibb", "lp", "suss", "gcias", "invico", "retenciones", "importe_neto",
	},
	Then: []int{21, 22, 23, 26, 27, 28, 29, 30, 31, 32, 33, 34, 35, 36},
	Else: []int{canon.NoColumn, 21, 22, 25, 26, 27, 28, 29, 30, 31, 32, 33, 34, 35},
}

// certificadosObras is the summary of construction certificates.
func certificadosObras() report.Definition {
	amounts := []string{
		"monto_certificado", "fondo_reparo", "otros", "importe_bruto", "iibb", "lp",
		"suss", "gcias", "invico", "retenciones", "importe_neto",
	}
	cols := append([]canon.Column{
		{Name: fila, Source: canon.RowNumber()},
		{Name: "ejercicio", Source: canon.CellSlice(0, 2, -4, 0)},
	}, totalesBranch.Columns()...)

	return report.Definition{
		ID:          "sgf_certificados_obras",
		Subsystem:   report.SGF,
		Description: "Resumen de certificaciones de obras",
		FilePattern: "certificados_obras*.csv",
		Read:        sgfCSV,
		Signature:   report.At(0, 1, "Resumen de Certificaciones:", report.Prefix),
		Rule: canon.Rule{
			Columns:  cols,
			FillDown: []string{"beneficiario"},
			Keep:     []canon.Keep{{Column: "obra", Test: canon.NotEmpty()}},
			Splits: []canon.Split{
				{Source: "obra", Delim: " ", Into: []string{"cod_obra", "obra_desc"}, Keep: true},
			},
			Coerce: append(decimals(amounts...), canon.Coercion{Column: fila, Kind: canon.KindInteger}),
			Output: append([]string{fila, "ejercicio", "beneficiario", "cod_obra", "obra", "nro_certificado"}, amounts...),
			Number: canon.CommaGrouped,
		},
		Table: schema.TableDefinition{
			Schema: schemaSGF,
			Name:   "certificados_obras",
			Columns: append([]schema.Column{
				schema.Integer(fila),
				schema.Text("ejercicio", 4),
				schema.Text("beneficiario", 0),
				schema.Text("cod_obra", 10),
				schema.Text("obra", 0),
				schema.Text("nro_certificado", 6),
			}, amountColumns(amounts...)...),
			PrimaryKey: []string{"ejercicio", fila},
		},
		Policy: tablesync.ReplaceByKey("ejercicio"),
	}
}

// origenBranch selects the column set of payment rows. Rendiciones of
// construction works (OBRAS) carry no destination and fewer withholdings.
var origenBranch = canon.OffsetBranch{
	When: canon.Contains(6, "OBRAS"),
	Targets: []string{
		"beneficiario", "destino", "libramiento_sgf", "fecha", "movimiento", "cta_cte",
		"importe_bruto", "gcias", "sellos", "iibb", "suss", "invico",
		"seguro", "salud", "mutual", "otras", "importe_neto",
	},
	Then: []int{
		23, canon.NoColumn, 25, 26, 27, 24,
		28, 29, 30, 31, 32, 33,
		canon.NoColumn, canon.NoColumn, canon.NoColumn, 34, 35,
	},
	Else: []int{
		26, 27, 29, 30, 31, 28,
		41, 33, 34, 35, 36, 37,
		38, 39, 40, canon.NoColumn, 32,
	},
}

// creditoEspecialCtaCte is the account of the special credit line, which the
// export leaves blank.
const creditoEspecialCtaCte = "130832-07"

// resumenRendProv is the detail of payments rendered per provider.
func resumenRendProv() report.Definition {
	amounts := []string{
		"importe_bruto", "gcias", "sellos", "iibb", "suss", "invico",
		"seguro", "salud", "mutual", "otras", "importe_neto",
	}
	cols := append([]canon.Column{
		{Name: fila, Source: canon.RowNumber()},
		{Name: "origen_src", Source: canon.Col(6)},
	}, origenBranch.Columns()...)

	return report.Definition{
		ID:          "sgf_resumen_rend_prov",
		Subsystem:   report.SGF,
		Description: "Resumen de rendiciones por proveedor",
		FilePattern: "resumen_rend_prov*.csv",
		Read:        sgfCSV,
		Signature:   report.At(0, 1, "Resumen de Rendiciones (Detalle)", report.Prefix),
		Rule: canon.Rule{
			Columns: cols,
			Keep:    []canon.Keep{{Column: "fecha", Test: canon.NotEmpty()}},
			// origen_src reads like: Origen = "OBRAS" - Ejercicio = 2023
			Splits: []canon.Split{
				{Source: "origen_src", Delim: "-", Into: []string{"origen_lbl", "origen_rest"}},
				{Source: "origen_lbl", Delim: "=", Into: []string{"origen_key", "origen"}},
			},
			Derive: []canon.Derivation{
				{Target: "origen", Expr: canon.Trim(canon.Replace(canon.Field("origen"), `"`, ""))},
				{Target: "ejercicio", Expr: canon.Slice(canon.Field("fecha"), -4, 0)},
				{Target: "mes", Expr: mesFromDayFirst("fecha")},
				{Target: "cta_cte", Expr: canon.IfEquals(
					canon.Field("beneficiario"), "CREDITO ESPECIAL", canon.Lit(creditoEspecialCtaCte), canon.Field("cta_cte"),
				)},
			},
			Coerce: append(decimals(amounts...),
				canon.Coercion{Column: fila, Kind: canon.KindInteger},
				canon.Coercion{Column: "fecha", Kind: canon.KindDate, Layout: dayFirst},
				canon.Coercion{Column: "beneficiario", Kind: canon.KindOptional},
			),
			Output: append([]string{
				fila, "origen", "ejercicio", "mes", "fecha", "beneficiario", "destino",
				"libramiento_sgf", "movimiento", "cta_cte",
			}, amounts...),
			Number: canon.CommaGrouped,
		},
		Table: schema.TableDefinition{
			Schema: schemaSGF,
			Name:   "resumen_rend_prov",
			Columns: append([]schema.Column{
				schema.Integer(fila),
				schema.Text("origen", 10),
				schema.Text("ejercicio", 4),
				schema.Text("mes", 7),
				schema.Date("fecha"),
				schema.Text("beneficiario", 0).OrNull(),
				schema.Text("destino", 0),
				schema.Text("libramiento_sgf", 20),
				schema.Text("movimiento", 20),
				schema.Text("cta_cte", 20),
			}, amountColumns(amounts...)...),
			PrimaryKey: []string{"origen", "mes", fila},
			ForeignKeys: []schema.ForeignKey{
				{Columns: []string{"beneficiario"}, RefTable: "listado_prov", RefColumns: []string{"desc_prov"}},
			},
		},
		Policy: tablesync.ReplaceByKey("origen", "mes"),
	}
}
