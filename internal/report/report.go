package report

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/reportsync/internal/canon"
	"github.com/sells-group/reportsync/internal/grid"
	"github.com/sells-group/reportsync/internal/schema"
	"github.com/sells-group/reportsync/internal/tablesync"
)

// Subsystem is the legacy system that exports a report. Each one owns a storage schema.
type Subsystem int

const (
	SIIF  Subsystem = iota + 1 // budget execution
	SSCC                       // treasury and bank movements
	SGF                        // works certification and provider payments
	ICARO                      // works ledger
	SGO                        // works registry
)

// String returns the subsystem name, which is also its schema name.
func (s Subsystem) String() string {
	switch s {
	case SIIF:
		return "siif"
	case SSCC:
		return "sscc"
	case SGF:
		return "sgf"
	case ICARO:
		return "icaro"
	case SGO:
		return "sgo"
	default:
		return "unknown"
	}
}

// MarshalYAML renders the subsystem by name.
func (s Subsystem) MarshalYAML() (any, error) {
	return s.String(), nil
}

// ParseSubsystem converts a subsystem name such as "siif" into a Subsystem.
func ParseSubsystem(s string) (Subsystem, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, sub := range Subsystems() {
		if sub.String() == name {
			return sub, nil
		}
	}
	return 0, eris.Errorf("unknown subsystem: %q (valid: %s)", s, SubsystemNames())
}

// Subsystems lists every subsystem in declaration order.
func Subsystems() []Subsystem {
	return []Subsystem{SIIF, SSCC, SGF, ICARO, SGO}
}

// SubsystemNames joins the subsystem names for help and error text.
func SubsystemNames() string {
	names := make([]string, 0, len(Subsystems()))
	for _, s := range Subsystems() {
		names = append(names, s.String())
	}
	return strings.Join(names, ", ")
}

// Definition is one report type.
type Definition struct {
	ID          string
	Subsystem   Subsystem
	Description string
	// FilePattern is a filepath.Match pattern for the export file name, matched case-insensitively.
	FilePattern string
	Read        grid.Options
	Signature   Signature
	Rule        canon.Rule
	Table       schema.TableDefinition
	Policy      tablesync.Policy
}

// Fields returns the columns the rule produces, in output order.
func (d Definition) Fields() []string {
	if len(d.Rule.Output) > 0 {
		return d.Rule.Output
	}
	return d.Rule.Fields()
}

// Validate checks that the parts of a definition fit together.
func (d Definition) Validate() error {
	if d.ID == "" {
		return eris.New("report: definition without id")
	}
	if d.Subsystem.String() == "unknown" {
		return eris.Errorf("report: %s: unknown subsystem", d.ID)
	}
	if len(d.Signature.Probes) == 0 {
		return eris.Errorf("report: %s: signature without cells", d.ID)
	}
	if err := d.Signature.validate(); err != nil {
		return eris.Wrapf(err, "report: %s: signature", d.ID)
	}
	if err := d.Rule.Validate(); err != nil {
		return eris.Wrapf(err, "report: %s", d.ID)
	}

	fields := d.Fields()
	cols := d.Table.ColumnNames()
	for _, c := range cols {
		if !slices.Contains(fields, c) {
			return eris.Errorf("report: %s: table column %q is not produced by the rule", d.ID, c)
		}
	}
	for _, f := range fields {
		if !slices.Contains(cols, f) {
			return eris.Errorf("report: %s: rule field %q has no table column", d.ID, f)
		}
	}

	for _, k := range d.Policy.Key {
		if !slices.Contains(cols, k) {
			return eris.Errorf("report: %s: policy key %q is not a table column", d.ID, k)
		}
	}
	if d.Policy.Mode == 0 {
		return eris.Errorf("report: %s: no sync policy", d.ID)
	}
	return nil
}
