package reports

import (
	"github.com/sells-group/reportsync/internal/canon"
	"github.com/sells-group/reportsync/internal/grid"
	"github.com/sells-group/reportsync/internal/report"
	"github.com/sells-group/reportsync/internal/schema"
	"github.com/sells-group/reportsync/internal/tablesync"
)

func sscc() []report.Definition {
	return []report.Definition{bancoINVICO(), ctasCtes()}
}

// legacyCSV is how the SSCC and SGF systems export: comma separated, Latin-1, no header.
var legacyCSV = grid.Options{Format: grid.FormatDelimited, Encoding: grid.DefaultEncoding}

// dayFirst is the dd/mm/yyyy layout of the legacy exports.
const dayFirst = "02/01/2006"

// mesFromDayFirst renders mm/yyyy from a dd/mm/yyyy field.
func mesFromDayFirst(field string) canon.Expr {
	return canon.Concat(
		canon.Slice(canon.Field(field), 3, 5), canon.Lit("/"), canon.Slice(canon.Field(field), -4, 0),
	)
}

// bancoINVICO is the general query of bank movements.
func bancoINVICO() report.Definition {
	return report.Definition{
		ID:          "sscc_banco_invico",
		Subsystem:   report.SSCC,
		Description: "Consulta general de movimientos bancarios",
		FilePattern: "banco_invico*.csv",
		Read:        legacyCSV,
		Signature:   report.At(0, 1, "Consulta General de Movimientos", report.Exact),
		Rule: canon.Rule{
			Columns: []canon.Column{
				{Name: fila, Source: canon.RowNumber()},
				{Name: "fecha", Source: canon.Col(20)},
				{Name: "movimiento", Source: canon.Col(21)},
				{Name: "cta_cte", Source: canon.Col(22)},
				{Name: "concepto", Source: canon.Col(23)},
				{Name: "beneficiario", Source: canon.Col(24)},
				{Name: "moneda", Source: canon.Col(25)},
				{Name: "libramiento", Source: canon.Col(26)},
				{Name: "imputacion", Source: canon.Col(27)},
				{Name: "importe", Source: canon.Col(28)},
			},
			Keep: []canon.Keep{{Column: "fecha", Test: canon.NotEmpty()}},
			Splits: []canon.Split{
				{Source: "imputacion", Delim: "-", Into: []string{"cod_imputacion", "imputacion"}},
			},
			Derive: []canon.Derivation{
				{Target: "ejercicio", Expr: canon.Slice(canon.Field("fecha"), -4, 0)},
				{Target: "mes", Expr: mesFromDayFirst("fecha")},
				{Target: "es_cheque", Expr: canon.Map(
					canon.Field("movimiento"), map[string]string{"DEBITO": "N", "DEPOSITO": "N"}, "S",
				)},
			},
			Coerce: []canon.Coercion{
				{Column: fila, Kind: canon.KindInteger},
				{Column: "fecha", Kind: canon.KindDate, Layout: dayFirst},
				{Column: "importe", Kind: canon.KindDecimal},
				{Column: "es_cheque", Kind: canon.KindBool, TrueValues: []string{"S"}},
			},
			Output: []string{
				fila, "ejercicio", "mes", "fecha", "cta_cte", "movimiento", "es_cheque", "beneficiario",
				"importe", "concepto", "moneda", "libramiento", "cod_imputacion", "imputacion",
			},
			Number: canon.CommaGrouped,
		},
		Table: schema.TableDefinition{
			Schema: schemaSSCC,
			Name:   "banco_invico",
			Columns: []schema.Column{
				schema.Integer(fila),
				schema.Text("ejercicio", 4),
				schema.Text("mes", 7),
				schema.Date("fecha"),
				schema.Text("cta_cte", 20),
				schema.Text("movimiento", 10),
				schema.Bool("es_cheque"),
				schema.Text("beneficiario", 0),
				schema.Decimal("importe", 18, 2).OrNull(),
				schema.Text("concepto", 0),
				schema.Text("moneda", 15),
				schema.Text("libramiento", 10),
				schema.Text("cod_imputacion", 3),
				schema.Text("imputacion", 0),
			},
			PrimaryKey: []string{"mes", fila},
		},
		Policy: tablesync.ReplaceByKey("mes"),
	}
}

// ctasCtes maps the bank account codes used by SSCC to the canonical accounts.
// It is a maintained spreadsheet with a header row and is always loaded whole.
func ctasCtes() report.Definition {
	return report.Definition{
		ID:          "sscc_ctas_ctes",
		Subsystem:   report.SSCC,
		Description: "Mapeo de cuentas corrientes",
		FilePattern: "ctas_ctes*.xlsx",
		Read:        xlsxRead,
		Signature:   report.At(0, 0, "map_to", report.Exact),
		Rule: canon.Rule{
			Skip: 1,
			Columns: canon.Columns(
				[]string{"map_to", "sscc_cta_cte", "desc_cta_cte", "banco"},
				[]int{0, 1, 2, 3},
			),
			Keep: []canon.Keep{{Column: "sscc_cta_cte", Test: canon.NotEmpty()}},
		},
		Table: schema.TableDefinition{
			Schema: schemaSSCC,
			Name:   "ctas_ctes",
			Columns: []schema.Column{
				schema.Text("map_to", 30),
				schema.Text("sscc_cta_cte", 30),
				schema.Text("desc_cta_cte", 100),
				schema.Text("banco", 50),
			},
			PrimaryKey: []string{"sscc_cta_cte"},
		},
		Policy: tablesync.FullReplace(),
	}
}
