package schema

import (
	"reflect"
	"slices"

	"github.com/rotisserie/eris"
)

var (
	// ErrUnknownTable is returned by Get for names that were never registered.
	ErrUnknownTable = eris.New("schema: unknown table")
	// ErrSchemaDrift is returned when a live table does not match its definition.
	ErrSchemaDrift = eris.New("schema: live table differs from definition")
)

// Registry maps table names to their definitions.
type Registry struct {
	tables map[string]TableDefinition
	order  []string // insertion order for deterministic iteration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tables: make(map[string]TableDefinition)}
}

// Register adds a table definition. Registering an identical definition twice is a no-op.
func (r *Registry) Register(def TableDefinition) error {
	if err := check(def); err != nil {
		return err
	}
	if prev, ok := r.tables[def.Name]; ok {
		if reflect.DeepEqual(prev, def) {
			return nil
		}
		return eris.Errorf("schema: table %q registered twice with different definitions", def.Name)
	}
	r.tables[def.Name] = def
	r.order = append(r.order, def.Name)
	return nil
}

// Get returns a table definition by name.
func (r *Registry) Get(name string) (TableDefinition, error) {
	def, ok := r.tables[name]
	if !ok {
		return TableDefinition{}, eris.Wrapf(ErrUnknownTable, "schema: table %q", name)
	}
	return def, nil
}

// All returns all definitions in registration order.
func (r *Registry) All() []TableDefinition {
	out := make([]TableDefinition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tables[name])
	}
	return out
}

// Ordered returns all definitions with every referenced table before the tables
// that reference it. Ties keep registration order.
func (r *Registry) Ordered() ([]TableDefinition, error) {
	deps := make(map[string][]string, len(r.order))
	for _, name := range r.order {
		for _, fk := range r.tables[name].ForeignKeys {
			if _, ok := r.tables[fk.RefTable]; !ok {
				return nil, eris.Errorf("schema: %s references unregistered table %q", name, fk.RefTable)
			}
			if fk.RefTable != name {
				deps[name] = append(deps[name], fk.RefTable)
			}
		}
	}

	done := make(map[string]bool, len(r.order))
	out := make([]TableDefinition, 0, len(r.order))
	for len(out) < len(r.order) {
		progressed := false
		for _, name := range r.order {
			if done[name] {
				continue
			}
			ready := true
			for _, d := range deps[name] {
				if !done[d] {
					ready = false
					break
				}
			}
			if ready {
				done[name] = true
				out = append(out, r.tables[name])
				progressed = true
			}
		}
		if !progressed {
			return nil, eris.New("schema: foreign key cycle between tables")
		}
	}
	return out, nil
}

// Rank maps each table name to its position in Ordered.
func (r *Registry) Rank() (map[string]int, error) {
	ordered, err := r.Ordered()
	if err != nil {
		return nil, err
	}
	rank := make(map[string]int, len(ordered))
	for i, def := range ordered {
		rank[def.Name] = i
	}
	return rank, nil
}

// check validates a definition on its own.
func check(def TableDefinition) error {
	if def.Name == "" {
		return eris.New("schema: table without name")
	}
	if len(def.Columns) == 0 {
		return eris.Errorf("schema: table %q has no columns", def.Name)
	}
	names := def.ColumnNames()
	for i, n := range names {
		if n == "" {
			return eris.Errorf("schema: table %q has an unnamed column", def.Name)
		}
		if slices.Index(names, n) != i {
			return eris.Errorf("schema: table %q declares column %q twice", def.Name, n)
		}
	}
	if len(def.PrimaryKey) == 0 {
		return eris.Errorf("schema: table %q has no primary key", def.Name)
	}
	for _, k := range def.PrimaryKey {
		if !slices.Contains(names, k) {
			return eris.Errorf("schema: table %q primary key column %q not declared", def.Name, k)
		}
	}
	for _, fk := range def.ForeignKeys {
		if len(fk.Columns) == 0 || len(fk.Columns) != len(fk.RefColumns) {
			return eris.Errorf("schema: table %q has a malformed foreign key to %q", def.Name, fk.RefTable)
		}
		for _, c := range fk.Columns {
			if !slices.Contains(names, c) {
				return eris.Errorf("schema: table %q foreign key column %q not declared", def.Name, c)
			}
		}
	}
	return nil
}
