package canon

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/reportsync/internal/grid"
)

// rowContext is what a Source sees while projecting one data row.
type rowContext struct {
	grid grid.Grid // untrimmed, for banner cells
	row  []string
	num  int // 1-based ordinal among data rows
}

func (rc rowContext) col(i int) string {
	if i < 0 || i >= len(rc.row) {
		return ""
	}
	return rc.row[i]
}

// Source yields the raw text of one target field for one row.
type Source interface {
	value(rc rowContext) string
	String() string
}

// Column binds a target field name to the source of its text.
type Column struct {
	Name   string
	Source Source
}

// Columns builds a plan of plain positional columns.
func Columns(names []string, positions []int) []Column {
	out := make([]Column, len(names))
	for i, name := range names {
		out[i] = Column{Name: name, Source: Col(positions[i])}
	}
	return out
}

type colSource int

// Col reads column i of the current row.
func Col(i int) Source { return colSource(i) }

func (c colSource) value(rc rowContext) string { return strings.TrimSpace(rc.col(int(c))) }
func (c colSource) String() string             { return fmt.Sprintf("col(%d)", int(c)) }

type colSlice struct {
	col, from, to int
}

// ColSlice reads runes [from, to) of column i, e.g. the text after a fixed-width label.
// Negative bounds count from the end; to == 0 means the end of the text.
func ColSlice(i, from, to int) Source { return colSlice{col: i, from: from, to: to} }

func (c colSlice) value(rc rowContext) string {
	return strings.TrimSpace(sliceRunes(strings.TrimSpace(rc.col(c.col)), c.from, c.to))
}
func (c colSlice) String() string { return fmt.Sprintf("col(%d)[%d:%d]", c.col, c.from, c.to) }

type constSource string

// Const yields the same text for every row.
func Const(s string) Source { return constSource(s) }

func (c constSource) value(rowContext) string { return string(c) }
func (c constSource) String() string          { return fmt.Sprintf("const(%q)", string(c)) }

type cellSource struct {
	row, col int
	from, to int
}

// Cell reads a fixed banner cell of the untrimmed grid, e.g. the fiscal year in a report title.
func Cell(row, col int) Source { return cellSource{row: row, col: col} }

// CellSlice reads runes [from, to) of a banner cell. Negative bounds count from the end;
// to == 0 means the end of the text.
func CellSlice(row, col, from, to int) Source {
	return cellSource{row: row, col: col, from: from, to: to}
}

func (c cellSource) value(rc rowContext) string {
	return sliceRunes(strings.TrimSpace(rc.grid.Cell(c.row, c.col)), c.from, c.to)
}

func (c cellSource) String() string {
	if c.from == 0 && c.to == 0 {
		return fmt.Sprintf("cell(%d,%d)", c.row, c.col)
	}
	return fmt.Sprintf("cell(%d,%d)[%d:%d]", c.row, c.col, c.from, c.to)
}

type rowNumber struct{}

// RowNumber yields the 1-based position of the row among the data rows.
// It is an explicit identity for reports that have no natural key.
func RowNumber() Source { return rowNumber{} }

func (rowNumber) value(rc rowContext) string { return fmt.Sprint(rc.num) }
func (rowNumber) String() string             { return "row_number()" }

// Branch chooses between two sources with a row predicate.
type Branch struct {
	When Predicate
	Then Source
	Else Source
}

func (b Branch) value(rc rowContext) string {
	if b.When.Match(rc.row) {
		return b.Then.value(rc)
	}
	return b.Else.value(rc)
}

func (b Branch) String() string {
	return fmt.Sprintf("if %s then %s else %s", b.When, b.Then, b.Else)
}

// NoColumn marks an offset that projects the empty string.
const NoColumn = -1

// OffsetBranch selects one of two offset sets for a group of target fields.
// Reports whose total lines shift every column by one position declare the
// shift once here instead of repeating a conditional per field.
type OffsetBranch struct {
	When    Predicate
	Targets []string
	Then    []int
	Else    []int
}

// Validate checks that both offset sets cover every target.
func (b OffsetBranch) Validate() error {
	if b.When == nil {
		return eris.New("canon: offset branch without predicate")
	}
	if len(b.Then) != len(b.Targets) || len(b.Else) != len(b.Targets) {
		return eris.Errorf("canon: offset branch has %d targets but %d/%d offsets",
			len(b.Targets), len(b.Then), len(b.Else))
	}
	return nil
}

// Columns expands the branch into one Branch column per target.
func (b OffsetBranch) Columns() []Column {
	out := make([]Column, len(b.Targets))
	for i, name := range b.Targets {
		out[i] = Column{Name: name, Source: Branch{When: b.When, Then: offset(b.Then[i]), Else: offset(b.Else[i])}}
	}
	return out
}

// Project applies the branch to a single row.
func (b OffsetBranch) Project(row []string) map[string]string {
	rc := rowContext{row: row}
	out := make(map[string]string, len(b.Targets))
	for _, c := range b.Columns() {
		out[c.Name] = c.Source.value(rc)
	}
	return out
}

func offset(i int) Source {
	if i == NoColumn {
		return Const("")
	}
	return Col(i)
}

// Predicate tests a raw row.
type Predicate interface {
	Match(row []string) bool
	String() string
}

type nonEmpty int

// NonEmpty holds when column i has non-blank text.
func NonEmpty(i int) Predicate { return nonEmpty(i) }

func (p nonEmpty) Match(row []string) bool {
	return strings.TrimSpace(rowContext{row: row}.col(int(p))) != ""
}
func (p nonEmpty) String() string { return fmt.Sprintf("nonempty(%d)", int(p)) }

type equals struct {
	col  int
	text string
}

// Equals holds when the trimmed text of column i equals text.
func Equals(i int, text string) Predicate { return equals{col: i, text: text} }

func (p equals) Match(row []string) bool {
	return strings.TrimSpace(rowContext{row: row}.col(p.col)) == p.text
}
func (p equals) String() string { return fmt.Sprintf("col(%d) == %q", p.col, p.text) }

type hasPrefix struct {
	col    int
	prefix string
}

// HasPrefix holds when the trimmed text of column i starts with prefix.
func HasPrefix(i int, prefix string) Predicate { return hasPrefix{col: i, prefix: prefix} }

func (p hasPrefix) Match(row []string) bool {
	return strings.HasPrefix(strings.TrimSpace(rowContext{row: row}.col(p.col)), p.prefix)
}
func (p hasPrefix) String() string { return fmt.Sprintf("col(%d) starts with %q", p.col, p.prefix) }

type contains struct {
	col int
	sub string
}

// Contains holds when column i contains sub.
func Contains(i int, sub string) Predicate { return contains{col: i, sub: sub} }

func (p contains) Match(row []string) bool {
	return strings.Contains(rowContext{row: row}.col(p.col), p.sub)
}
func (p contains) String() string { return fmt.Sprintf("col(%d) contains %q", p.col, p.sub) }

type anyOf []Predicate

// AnyOf holds when at least one of preds holds.
func AnyOf(preds ...Predicate) Predicate { return anyOf(preds) }

func (p anyOf) Match(row []string) bool {
	for _, q := range p {
		if q.Match(row) {
			return true
		}
	}
	return false
}

func (p anyOf) String() string {
	parts := make([]string, len(p))
	for i, q := range p {
		parts[i] = q.String()
	}
	return "(" + strings.Join(parts, " or ") + ")"
}

// sliceRunes returns runes [from, to) of s with Python-style negative bounds.
func sliceRunes(s string, from, to int) string {
	r := []rune(s)
	n := len(r)
	if from < 0 {
		from += n
	}
	if to <= 0 {
		to += n
	}
	from = max(0, min(from, n))
	to = max(from, min(to, n))
	return string(r[from:to])
}
