package reports

import (
	"github.com/sells-group/reportsync/internal/canon"
	"github.com/sells-group/reportsync/internal/report"
	"github.com/sells-group/reportsync/internal/schema"
	"github.com/sells-group/reportsync/internal/tablesync"
)

// The ICARO budget structure is a four level chain. Every level is read from
// the rf610 export, so one file feeds all four tables and the dependency order
// of the catalog loads them parent first.
func icaro() []report.Definition {
	return []report.Definition{
		icaroLevel("icaro_programas", "programas", "programa", 2, "desc_prog", "", 0, "programa"),
		icaroLevel("icaro_subprogramas", "subprogramas", "subprograma", 5, "desc_subprog", "programas", 2,
			"programa", "subprograma"),
		icaroLevel("icaro_proyectos", "proyectos", "proyecto", 8, "desc_proy", "subprogramas", 5,
			"programa", "subprograma", "proyecto"),
		icaroLevel("icaro_actividades", "actividades", "actividad", 11, "desc_act", "proyectos", 8,
			"programa", "subprograma", "proyecto", "actividad"),
		icaroObras(),
		icaroCarga(),
	}
}

// parentColumn maps a structure table to its key column.
var parentColumn = map[string]string{
	"programas":    "programa",
	"subprogramas": "subprograma",
	"proyectos":    "proyecto",
	"actividades":  "actividad",
}

// icaroLevel declares one structure level. Its key joins the padded codes of
// path and the parent key joins all but the last. The level key is derived
// first: it only overwrites its own raw code, which the parent key never reads.
func icaroLevel(id, table, key string, keyLen int, desc, parent string, parentLen int, path ...string) report.Definition {
	rule := rf610Rule()
	rule.Derive = []canon.Derivation{{Target: key, Expr: estructura(path...)}}
	output := []string{key, desc}
	cols := []schema.Column{schema.Text(key, keyLen), schema.Text(desc, 0)}

	var fks []schema.ForeignKey
	if parent != "" {
		pk := parentColumn[parent]
		rule.Derive = append(rule.Derive, canon.Derivation{Target: pk, Expr: estructura(path[:len(path)-1]...)})
		output = append(output, pk)
		cols = append(cols, schema.Text(pk, parentLen))
		fks = []schema.ForeignKey{{Columns: []string{pk}, RefTable: parent, RefColumns: []string{pk}}}
	}
	rule.Output = output
	rule.Dedupe = true

	return report.Definition{
		ID:          id,
		Subsystem:   report.ICARO,
		Description: "Estructura presupuestaria ICARO: " + table,
		FilePattern: "rf610*.xlsx",
		Read:        xlsxRead,
		Signature:   rf610Signature,
		Rule:        rule,
		Table: schema.TableDefinition{
			Schema:      schemaICARO,
			Name:        table,
			Columns:     cols,
			PrimaryKey:  []string{key},
			ForeignKeys: fks,
		},
		Policy: tablesync.ReplaceByKey(key),
	}
}

// icaroObras is the ICARO works table. Vouchers of a work name it, and the work
// charges one budget activity.
func icaroObras() report.Definition {
	header := []string{
		"Localidad", "CUIT", "Imputacion", "Partida", "Fuente", "MontoDeContrato",
		"Adicional", "Cuenta", "NormaLegal", "Descripcion", "InformacionAdicional",
	}
	fields := []string{
		"localidad", "cuit", "actividad", "partida", "fuente", "monto_contrato",
		"adicional", "cta_cte", "norma_legal", "obra", "info_adicional",
	}
	positions := make([]int, len(fields))
	for i := range positions {
		positions[i] = i
	}

	return report.Definition{
		ID:          "icaro_obras",
		Subsystem:   report.ICARO,
		Description: "Obras ICARO",
		FilePattern: "icaro_obras*.csv",
		Read:        legacyCSV,
		Signature: report.Signature{
			Probes:   []report.Probe{{Row: 0, Col: 0}, {Row: 0, Col: 9}},
			Expected: header[0] + " " + header[9],
			Mode:     report.Exact,
		},
		Rule: canon.Rule{
			Skip:    1,
			Columns: canon.Columns(fields, positions),
			Keep:    []canon.Keep{{Column: "obra", Test: canon.NotEmpty()}},
			Coerce: []canon.Coercion{
				{Column: "actividad", Kind: canon.KindOptional},
				{Column: "fuente", Kind: canon.KindPad, Width: 2},
				{Column: "monto_contrato", Kind: canon.KindDecimal},
				{Column: "adicional", Kind: canon.KindDecimal},
			},
			Output: []string{
				"obra", "cuit", "actividad", "partida", "fuente", "cta_cte",
				"localidad", "norma_legal", "info_adicional", "monto_contrato", "adicional",
			},
			Dedupe:   true,
			DedupeOn: []string{"obra"},
			Number:   canon.PlainNumbers,
		},
		Table: schema.TableDefinition{
			Schema: schemaICARO,
			Name:   "obras",
			Columns: []schema.Column{
				schema.Text("obra", 0),
				schema.Text("cuit", 11),
				schema.Text("actividad", 11).OrNull(),
				schema.Text("partida", 3),
				schema.Text("fuente", 2),
				schema.Text("cta_cte", 30),
				schema.Text("localidad", 0),
				schema.Text("norma_legal", 0),
				schema.Text("info_adicional", 0),
				schema.Decimal("monto_contrato", 18, 2).OrNull(),
				schema.Decimal("adicional", 18, 2).OrNull(),
			},
			PrimaryKey: []string{"obra"},
			ForeignKeys: []schema.ForeignKey{
				{Columns: []string{"actividad"}, RefTable: "actividades", RefColumns: []string{"actividad"}},
			},
		},
		// Works of closed years stay while their vouchers do.
		Policy: tablesync.ReplaceByKey("obra"),
	}
}

// icaroCarga is the voucher load exported from ICARO. Budget and works vouchers
// share numbers, so the id carries a suffix: F for PA6 vouchers, C for the rest.
func icaroCarga() report.Definition {
	header := []string{
		"Fecha", "Fuente", "CUIT", "Importe", "FondoDeReparo", "Cuenta", "Avance",
		"Certificado", "Comprobante", "Obra", "Origen", "Tipo", "Imputacion", "Partida",
	}
	fields := []string{
		"fecha", "fuente", "cuit", "importe", "fondo_reparo", "cta_cte", "avance",
		"certificado", "nro_comprobante", "obra", "origen", "tipo", "actividad", "partida",
	}
	positions := make([]int, len(fields))
	for i := range positions {
		positions[i] = i
	}

	return report.Definition{
		ID:          "icaro_carga",
		Subsystem:   report.ICARO,
		Description: "Carga de comprobantes ICARO",
		FilePattern: "icaro_carga*.csv",
		Read:        legacyCSV,
		Signature: report.Signature{
			Probes:   []report.Probe{{Row: 0, Col: 0}, {Row: 0, Col: 8}},
			Expected: header[0] + " " + header[8],
			Mode:     report.Exact,
		},
		Rule: canon.Rule{
			Skip:    1,
			Columns: canon.Columns(fields, positions),
			Keep:    []canon.Keep{{Column: "nro_comprobante", Test: canon.NotEmpty()}},
			Derive: []canon.Derivation{
				{Target: "ejercicio", Expr: canon.Slice(canon.Field("fecha"), -4, 0)},
				{Target: "mes", Expr: mesFromDayFirst("fecha")},
			},
			Coerce: []canon.Coercion{
				{Column: "fecha", Kind: canon.KindDate, Layout: dayFirst},
				{Column: "importe", Kind: canon.KindDecimal},
				{Column: "fondo_reparo", Kind: canon.KindDecimal},
				{Column: "avance", Kind: canon.KindDecimal},
				{Column: "fuente", Kind: canon.KindPad, Width: 2},
				{Column: "obra", Kind: canon.KindOptional},
			},
			Keys: []canon.KeySpec{{
				Column: "id",
				Parts:  []string{"nro_comprobante"},
				Suffix: &canon.SuffixRule{From: "tipo", Cases: map[string]string{"PA6": "F"}, Default: "C"},
			}},
			Output: []string{
				"id", "nro_comprobante", "ejercicio", "mes", "fecha", "cuit", "obra", "fuente",
				"cta_cte", "actividad", "partida", "importe", "fondo_reparo", "certificado",
				"avance", "origen", "tipo",
			},
			Number: canon.PlainNumbers,
		},
		Table: schema.TableDefinition{
			Schema: schemaICARO,
			Name:   "carga",
			Columns: []schema.Column{
				schema.Text("id", 9),
				schema.Text("nro_comprobante", 8),
				schema.Text("ejercicio", 4),
				schema.Text("mes", 7),
				schema.Date("fecha").OrNull(),
				schema.Text("cuit", 11),
				schema.Text("obra", 0).OrNull(),
				schema.Text("fuente", 2),
				schema.Text("cta_cte", 30),
				schema.Text("actividad", 11),
				schema.Text("partida", 3),
				schema.Decimal("importe", 18, 2).OrNull(),
				schema.Decimal("fondo_reparo", 18, 2).OrNull(),
				schema.Text("certificado", 10),
				schema.Decimal("avance", 18, 4).OrNull(),
				schema.Text("origen", 5),
				schema.Text("tipo", 3),
			},
			PrimaryKey: []string{"id"},
			ForeignKeys: []schema.ForeignKey{
				{Columns: []string{"actividad"}, RefTable: "actividades", RefColumns: []string{"actividad"}},
				{Columns: []string{"obra"}, RefTable: "obras", RefColumns: []string{"obra"}},
			},
		},
		Policy: tablesync.FullReplace(),
	}
}
