package report

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/reportsync/internal/schema"
	"github.com/sells-group/reportsync/internal/tablesync"
)

// ErrUnknownReport is returned by Get for ids that were never registered.
var ErrUnknownReport = eris.New("report: unknown report")

// Catalog maps report ids to their definitions and keeps the registry of their tables.
type Catalog struct {
	defs   map[string]Definition
	order  []string // insertion order for deterministic iteration
	tables *schema.Registry
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		defs:   make(map[string]Definition),
		tables: schema.NewRegistry(),
	}
}

// Register validates d and adds it with its table. Several reports may share one
// table only when they declare it identically.
func (c *Catalog) Register(d Definition) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if _, ok := c.defs[d.ID]; ok {
		return eris.Errorf("report: %s registered twice", d.ID)
	}
	if err := c.tables.Register(d.Table); err != nil {
		return eris.Wrapf(err, "report: %s", d.ID)
	}
	c.defs[d.ID] = d
	c.order = append(c.order, d.ID)
	return nil
}

// SetPolicy replaces the sync policy of a registered report, e.g. from an operator
// override. The definition is validated again with the new policy.
func (c *Catalog) SetPolicy(id string, p tablesync.Policy) error {
	d, err := c.Get(id)
	if err != nil {
		return err
	}
	d.Policy = p
	if err := d.Validate(); err != nil {
		return err
	}
	c.defs[id] = d
	return nil
}

// Get returns a definition by id.
func (c *Catalog) Get(id string) (Definition, error) {
	d, ok := c.defs[id]
	if !ok {
		return Definition{}, eris.Wrapf(ErrUnknownReport, "report: %q", id)
	}
	return d, nil
}

// Select returns definitions matching the given criteria.
// If sub is non-nil, only reports of that subsystem are returned.
// If ids is non-empty, only those reports are returned.
func (c *Catalog) Select(sub *Subsystem, ids []string) ([]Definition, error) {
	if len(ids) > 0 {
		var result []Definition
		for _, id := range ids {
			d, err := c.Get(id)
			if err != nil {
				return nil, err
			}
			if sub != nil && d.Subsystem != *sub {
				continue
			}
			result = append(result, d)
		}
		return result, nil
	}

	if sub != nil {
		return c.BySubsystem(*sub), nil
	}
	return c.All(), nil
}

// BySubsystem returns the reports of one subsystem, in registration order.
func (c *Catalog) BySubsystem(sub Subsystem) []Definition {
	var result []Definition
	for _, id := range c.order {
		if c.defs[id].Subsystem == sub {
			result = append(result, c.defs[id])
		}
	}
	return result
}

// All returns all definitions in registration order.
func (c *Catalog) All() []Definition {
	result := make([]Definition, 0, len(c.order))
	for _, id := range c.order {
		result = append(result, c.defs[id])
	}
	return result
}

// AllNames returns all report ids in registration order.
func (c *Catalog) AllNames() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Match returns every report whose file pattern matches the base name of path.
// One export can feed several reports.
func (c *Catalog) Match(path string) []Definition {
	name := strings.ToLower(filepath.Base(path))
	var result []Definition
	for _, id := range c.order {
		d := c.defs[id]
		if d.FilePattern == "" {
			continue
		}
		if matchName(strings.ToLower(d.FilePattern), name) {
			result = append(result, d)
		}
	}
	return result
}

// matchName matches name against pattern. A .zip name also matches the pattern with
// its extension replaced by .zip, since exports are often shipped compressed.
func matchName(pattern, name string) bool {
	if ok, err := filepath.Match(pattern, name); err == nil && ok {
		return true
	}
	if filepath.Ext(name) != ".zip" {
		return false
	}
	zipped := strings.TrimSuffix(pattern, filepath.Ext(pattern)) + ".zip"
	ok, err := filepath.Match(zipped, name)
	return err == nil && ok
}

// Tables is the registry of every destination table in the catalog.
func (c *Catalog) Tables() *schema.Registry {
	return c.tables
}

// Ordered sorts defs so that reports loading referenced tables come before the
// reports loading the tables that reference them. Ties keep their input order.
func (c *Catalog) Ordered(defs []Definition) ([]Definition, error) {
	rank, err := c.tables.Rank()
	if err != nil {
		return nil, err
	}
	out := slices.Clone(defs)
	slices.SortStableFunc(out, func(a, b Definition) int {
		return rank[a.Table.Name] - rank[b.Table.Name]
	})
	return out, nil
}
