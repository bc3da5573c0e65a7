// Package reports declares every report type the pipeline knows: how to
// recognize the export, how to canonicalize it and where it lands.
package reports

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/reportsync/internal/report"
)

// Definitions returns every report declaration, grouped by subsystem.
func Definitions() []report.Definition {
	var defs []report.Definition
	defs = append(defs, siif()...)
	defs = append(defs, sscc()...)
	defs = append(defs, sgf()...)
	defs = append(defs, icaro()...)
	defs = append(defs, sgo()...)
	return defs
}

// NewCatalog builds the catalog of all known reports.
func NewCatalog() (*report.Catalog, error) {
	c := report.NewCatalog()
	for _, d := range Definitions() {
		if err := c.Register(d); err != nil {
			return nil, eris.Wrapf(err, "reports: register %s", d.ID)
		}
	}
	if _, err := c.Tables().Ordered(); err != nil {
		return nil, eris.Wrap(err, "reports: table order")
	}
	return c, nil
}

// Schema names, one per source subsystem.
const (
	schemaSIIF  = "siif"
	schemaSSCC  = "sscc"
	schemaSGF   = "sgf"
	schemaICARO = "icaro"
	schemaSGO   = "sgo"
)

// fila is the row-order identity used by reports without a natural key.
const fila = "fila"
