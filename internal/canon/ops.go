package canon

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"
)

// ValueTest is a predicate on the text of a single field.
type ValueTest interface {
	Test(v string) bool
	String() string
}

// Keep retains rows whose field passes Test.
type Keep struct {
	Column string
	Test   ValueTest
}

type notEmpty struct{}

// NotEmpty rejects blank values.
func NotEmpty() ValueTest { return notEmpty{} }

func (notEmpty) Test(v string) bool { return strings.TrimSpace(v) != "" }
func (notEmpty) String() string     { return "not empty" }

type notIn []string

// NotIn rejects the listed values.
func NotIn(values ...string) ValueTest { return notIn(values) }

func (n notIn) Test(v string) bool { return !slices.Contains(n, strings.TrimSpace(v)) }
func (n notIn) String() string     { return fmt.Sprintf("not in %q", []string(n)) }

type lenIs int

// LenIs keeps values of exactly n characters.
func LenIs(n int) ValueTest { return lenIs(n) }

func (l lenIs) Test(v string) bool { return utf8.RuneCountInString(strings.TrimSpace(v)) == int(l) }
func (l lenIs) String() string     { return fmt.Sprintf("length == %d", int(l)) }

// Split breaks Source on the first Delim occurrences into the Into fields.
// The last target receives the trimmed remainder. A value without the delimiter
// lands whole in the first target. Source is dropped unless Keep is set.
type Split struct {
	Source string
	Delim  string
	Into   []string
	Keep   bool
}

func (s Split) apply(vals map[string]string) {
	parts := strings.SplitN(vals[s.Source], s.Delim, len(s.Into))
	for i, target := range s.Into {
		v := ""
		if i < len(parts) {
			v = strings.TrimSpace(parts[i])
		}
		vals[target] = v
	}
	if !s.Keep && !slices.Contains(s.Into, s.Source) {
		delete(vals, s.Source)
	}
}

// Expr computes text from the fields of a row.
type Expr interface {
	eval(vals map[string]string) string
	String() string
}

// Derivation assigns the result of Expr to Target.
type Derivation struct {
	Target string
	Expr   Expr
}

type field string

// Field reads a field of the row being canonicalized.
func Field(name string) Expr { return field(name) }

func (f field) eval(vals map[string]string) string { return vals[string(f)] }
func (f field) String() string                     { return string(f) }

type lit string

// Lit is a literal.
func Lit(s string) Expr { return lit(s) }

func (l lit) eval(map[string]string) string { return string(l) }
func (l lit) String() string                { return fmt.Sprintf("%q", string(l)) }

type concat []Expr

// Concat joins the results of parts.
func Concat(parts ...Expr) Expr { return concat(parts) }

func (c concat) eval(vals map[string]string) string {
	var b strings.Builder
	for _, p := range c {
		b.WriteString(p.eval(vals))
	}
	return b.String()
}

func (c concat) String() string {
	parts := make([]string, len(c))
	for i, p := range c {
		parts[i] = p.String()
	}
	return strings.Join(parts, " + ")
}

type slice struct {
	of       Expr
	from, to int
}

// Slice takes runes [from, to) of of. Negative bounds count from the end; to == 0 means the end.
func Slice(of Expr, from, to int) Expr { return slice{of: of, from: from, to: to} }

func (s slice) eval(vals map[string]string) string { return sliceRunes(s.of.eval(vals), s.from, s.to) }
func (s slice) String() string                     { return fmt.Sprintf("%s[%d:%d]", s.of, s.from, s.to) }

type mapping struct {
	of       Expr
	cases    map[string]string
	fallback string
}

// Map translates the value of of through cases. Values not listed map to fallback,
// so the mapping is total.
func Map(of Expr, cases map[string]string, fallback string) Expr {
	return mapping{of: of, cases: cases, fallback: fallback}
}

func (m mapping) eval(vals map[string]string) string {
	if v, ok := m.cases[strings.TrimSpace(m.of.eval(vals))]; ok {
		return v
	}
	return m.fallback
}

func (m mapping) String() string {
	keys := make([]string, 0, len(m.cases))
	for k := range m.cases {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%q->%q", k, m.cases[k])
	}
	return fmt.Sprintf("map(%s; %s; else %q)", m.of, strings.Join(parts, ", "), m.fallback)
}

type trim struct{ of Expr }

// Trim strips surrounding whitespace.
func Trim(of Expr) Expr { return trim{of: of} }

func (t trim) eval(vals map[string]string) string { return strings.TrimSpace(t.of.eval(vals)) }
func (t trim) String() string                     { return fmt.Sprintf("trim(%s)", t.of) }

type replace struct {
	of        Expr
	old, repl string
}

// Replace substitutes every occurrence of old with repl.
func Replace(of Expr, old, repl string) Expr { return replace{of: of, old: old, repl: repl} }

func (r replace) eval(vals map[string]string) string {
	return strings.ReplaceAll(r.of.eval(vals), r.old, r.repl)
}
func (r replace) String() string { return fmt.Sprintf("replace(%s, %q, %q)", r.of, r.old, r.repl) }

type ifEquals struct {
	of        Expr
	value     string
	then      Expr
	otherwise Expr
}

// IfEquals evaluates then when the trimmed value of of equals value, otherwise otherwise.
func IfEquals(of Expr, value string, then, otherwise Expr) Expr {
	return ifEquals{of: of, value: value, then: then, otherwise: otherwise}
}

func (c ifEquals) eval(vals map[string]string) string {
	if strings.TrimSpace(c.of.eval(vals)) == c.value {
		return c.then.eval(vals)
	}
	return c.otherwise.eval(vals)
}

func (c ifEquals) String() string {
	return fmt.Sprintf("if %s == %q then %s else %s", c.of, c.value, c.then, c.otherwise)
}

type ifSame struct {
	a, b      Expr
	then      Expr
	otherwise Expr
}

// IfSame evaluates then when the trimmed values of a and b are equal, otherwise otherwise.
func IfSame(a, b, then, otherwise Expr) Expr {
	return ifSame{a: a, b: b, then: then, otherwise: otherwise}
}

func (c ifSame) eval(vals map[string]string) string {
	if strings.TrimSpace(c.a.eval(vals)) == strings.TrimSpace(c.b.eval(vals)) {
		return c.then.eval(vals)
	}
	return c.otherwise.eval(vals)
}

func (c ifSame) String() string {
	return fmt.Sprintf("if %s == %s then %s else %s", c.a, c.b, c.then, c.otherwise)
}

type earliest []Expr

// Earliest yields the smallest non-blank value of dates, which must share the
// yyyy-mm-dd layout so that text order is date order.
func Earliest(dates ...Expr) Expr { return earliest(dates) }

func (e earliest) eval(vals map[string]string) string {
	out := ""
	for _, d := range e {
		v := strings.TrimSpace(d.eval(vals))
		if v != "" && (out == "" || v < out) {
			out = v
		}
	}
	return out
}

func (e earliest) String() string {
	parts := make([]string, len(e))
	for i, d := range e {
		parts[i] = d.String()
	}
	return "earliest(" + strings.Join(parts, ", ") + ")"
}

type pad struct {
	of    Expr
	width int
}

// Pad left-pads with zeros to width.
func Pad(of Expr, width int) Expr { return pad{of: of, width: width} }

func (p pad) eval(vals map[string]string) string { return PadLeft(p.of.eval(vals), p.width) }
func (p pad) String() string                     { return fmt.Sprintf("pad(%s, %d)", p.of, p.width) }

// Kind is the target type of a coercion.
type Kind string

const (
	KindText    Kind = "text"
	KindDecimal Kind = "decimal"
	KindInteger Kind = "integer"
	KindDate    Kind = "date"
	KindBool    Kind = "bool"
	KindPad     Kind = "pad"
	// KindOptional is trimmed text that becomes null when blank, for references
	// that may be absent.
	KindOptional Kind = "optional"
)

// Coercion converts one field from text to a typed value.
type Coercion struct {
	Column     string
	Kind       Kind
	Layout     string        // date layout, Go reference time
	Width      int           // pad width
	Number     *NumberFormat // decimal/integer format; Rule.Number when nil
	TrueValues []string      // bool: values mapping to true, everything else is false
	Round      int           // decimal: places to round half away from zero; 0 keeps every digit
}

// KeySpec synthesizes Column by joining Parts with Sep and appending an optional suffix.
type KeySpec struct {
	Column string
	Parts  []string
	Sep    string
	Suffix *SuffixRule
}

// SuffixRule picks a suffix from the value of From. Default is mandatory.
type SuffixRule struct {
	From    string
	Cases   map[string]string
	Default string
}

func (s *SuffixRule) pick(v string) string {
	if out, ok := s.Cases[strings.TrimSpace(v)]; ok {
		return out
	}
	return s.Default
}

func (k KeySpec) build(rec Record) string {
	parts := make([]string, len(k.Parts))
	for i, p := range k.Parts {
		parts[i] = FormatValue(rec[p])
	}
	out := strings.Join(parts, k.Sep)
	if k.Suffix != nil {
		out += k.Suffix.pick(FormatValue(rec[k.Suffix.From]))
	}
	return out
}
