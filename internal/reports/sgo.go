package reports

import (
	"github.com/sells-group/reportsync/internal/canon"
	"github.com/sells-group/reportsync/internal/report"
	"github.com/sells-group/reportsync/internal/schema"
	"github.com/sells-group/reportsync/internal/tablesync"
)

func sgo() []report.Definition {
	return []report.Definition{listadoObras()}
}

// isoDate is how the workbook exports render date cells.
const isoDate = "2006-01-02"

// mesFromParts renders mm/yyyy from a month field and a year field, or nothing
// when the month is blank.
func mesFromParts(month, year string) canon.Expr {
	return canon.IfEquals(canon.Field(month), "",
		canon.Lit(""),
		canon.Concat(canon.Pad(canon.Field(month), 2), canon.Lit("/"), canon.Field(year)),
	)
}

// listadoObras is the full registry of public works kept by the works
// management system, one row per work.
func listadoObras() report.Definition {
	fields := []string{
		"cod_obra", "mes_basico_obra", "cod_contrato", "obra", "mes_basico_contrato",
		"tipo_obra", "localidad", "contratista", "activa", "monto",
		"monto_total", "representante", "operatoria", "q_rubros", "id_inspector",
		"iniciador", "estado", "fecha_inicio", "fecha_contrato", "borrar",
		"fecha_fin", "plazo_est_dias", "fecha_fin_est", "plazo_ampl_est_dias", "fecha_fin_ampl_est",
		"avance_fis_real", "avance_fciero_real", "avance_fis_est", "avance_fciero_est", "monto_certificado",
		"monto_certificado_obra", "monto_pagado", "borrar2", "nro_ultimo_certif", "nro_ultimo_certif_bc",
		"mes_obra_certif", "anio_obra_certif", "fecha_ultimo_certif", "anticipo_acum", "cant_anticipo",
		"porc_anticipo", "cant_certif_anticipo", "fdo_reparo_acum", "desc_fdo_reparo_acum", "monto_redeterminado",
		"nro_ultima_redeterminacion", "mes_ultimo_basico", "anio_ultimo_basico", "nro_ultima_medicion", "mes_ultima_medicion",
		"anio_ultima_medicion",
	}
	positions := make([]int, len(fields))
	for i := range positions {
		positions[i] = i
	}
	amounts := []string{
		"monto", "monto_total", "monto_certificado", "monto_certificado_obra", "monto_pagado",
		"anticipo_acum", "fdo_reparo_acum", "desc_fdo_reparo_acum", "monto_redeterminado",
	}
	ratios := []string{"avance_fis_real", "avance_fciero_real", "avance_fis_est", "avance_fciero_est", "porc_anticipo"}
	dates := []string{"fecha_inicio", "fecha_contrato", "fecha_fin", "fecha_fin_est", "fecha_fin_ampl_est", "fecha_ultimo_certif"}

	coerce := decimals(amounts...)
	for _, r := range ratios {
		coerce = append(coerce, canon.Coercion{Column: r, Kind: canon.KindDecimal, Round: 4})
	}
	for _, d := range dates {
		coerce = append(coerce, canon.Coercion{Column: d, Kind: canon.KindDate, Layout: isoDate})
	}

	cols := []schema.Column{
		schema.Text("cod_obra", 9),
		schema.Text("mes_basico_obra", 7),
		schema.Text("cod_contrato", 9),
		schema.Text("obra", 0),
		schema.Text("mes_basico_contrato", 7),
		schema.Text("tipo_obra", 0),
		schema.Text("localidad", 0),
		schema.Text("contratista", 0),
		schema.Text("representante", 0),
		schema.Text("operatoria", 0),
		schema.Text("q_rubros", 3),
		schema.Text("id_inspector", 3),
		schema.Text("iniciador", 0),
		schema.Text("estado", 0),
		schema.Text("plazo_est_dias", 4),
		schema.Text("plazo_ampl_est_dias", 4),
		schema.Text("nro_ultimo_certif", 3),
		schema.Text("nro_ultimo_certif_bc", 3),
		schema.Text("mes_obra_certif", 7),
		schema.Text("cant_anticipo", 3),
		schema.Text("cant_certif_anticipo", 3),
		schema.Text("nro_ultima_redeterminacion", 3),
		schema.Text("mes_ultimo_basico", 7),
		schema.Text("nro_ultima_medicion", 3),
		schema.Text("mes_ultima_medicion", 7),
	}
	cols = append(cols, amountColumns(amounts...)...)
	for _, r := range ratios {
		cols = append(cols, schema.Decimal(r, 18, 4).OrNull())
	}
	for _, d := range dates {
		cols = append(cols, schema.Date(d).OrNull())
	}
	table := schema.TableDefinition{
		Schema:     schemaSGO,
		Name:       "listado_obras",
		Columns:    cols,
		PrimaryKey: []string{"cod_obra"},
	}

	return report.Definition{
		ID:          "sgo_listado_obras",
		Subsystem:   report.SGO,
		Description: "Listado completo de obras",
		FilePattern: "listado_obras*.xlsx",
		Read:        xlsxRead,
		Signature:   report.At(3, 0, "Codigo Obra", report.Exact),
		Rule: canon.Rule{
			Skip:    4,
			Columns: canon.Columns(fields, positions),
			Keep:    []canon.Keep{{Column: "cod_obra", Test: canon.NotEmpty()}},
			// Basic months arrive as m/yyyy.
			Splits: []canon.Split{
				{Source: "mes_basico_obra", Delim: "/", Into: []string{"mes_basico_obra", "anio_basico_obra"}},
				{Source: "mes_basico_contrato", Delim: "/", Into: []string{"mes_basico_contrato", "anio_basico_contrato"}},
			},
			Derive: []canon.Derivation{
				{Target: "mes_basico_obra", Expr: mesFromParts("mes_basico_obra", "anio_basico_obra")},
				{Target: "mes_basico_contrato", Expr: mesFromParts("mes_basico_contrato", "anio_basico_contrato")},
				{Target: "mes_obra_certif", Expr: mesFromParts("mes_obra_certif", "anio_obra_certif")},
				{Target: "mes_ultimo_basico", Expr: mesFromParts("mes_ultimo_basico", "anio_ultimo_basico")},
				{Target: "mes_ultima_medicion", Expr: mesFromParts("mes_ultima_medicion", "anio_ultima_medicion")},
			},
			Coerce: coerce,
			Output: table.ColumnNames(),
			Number: canon.PlainNumbers,
		},
		Table:  table,
		Policy: tablesync.FullReplace(),
	}
}
