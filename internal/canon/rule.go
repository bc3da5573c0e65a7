package canon

import (
	"slices"

	"github.com/rotisserie/eris"
)

// Rule is the declarative canonicalization of one report type. Stages run in
// field order: trim, project, fill, keep, split, derive, coerce, keys, dedupe.
type Rule struct {
	Skip       int // leading rows dropped
	SkipFooter int // trailing rows dropped

	Columns  []Column
	FillDown []string
	Keep     []Keep
	Splits   []Split
	Derive   []Derivation
	Coerce   []Coercion
	Keys     []KeySpec
	Dedupe   bool
	// DedupeOn names the fields that identify a duplicate. Empty compares the
	// whole output record. The first occurrence wins.
	DedupeOn []string

	// Output fixes the field order of the record set. Empty keeps every field in declaration order.
	Output []string
	// Number is the default format for decimal and integer coercions.
	Number NumberFormat
}

// Fields returns the fields a rule produces, in declaration order.
func (r Rule) Fields() []string {
	var names []string
	add := func(n string) {
		if !slices.Contains(names, n) {
			names = append(names, n)
		}
	}
	for _, c := range r.Columns {
		add(c.Name)
	}
	for _, s := range r.Splits {
		if !s.Keep && !slices.Contains(s.Into, s.Source) {
			names = slices.DeleteFunc(names, func(n string) bool { return n == s.Source })
		}
		for _, t := range s.Into {
			add(t)
		}
	}
	for _, d := range r.Derive {
		add(d.Target)
	}
	for _, k := range r.Keys {
		add(k.Column)
	}
	return names
}

func (r Rule) outputFields() []string {
	if len(r.Output) > 0 {
		return r.Output
	}
	return r.Fields()
}

// Validate reports declaration errors: unknown fields, incomplete branches,
// coercions without a layout or width, and suffix rules without a default.
func (r Rule) Validate() error {
	if r.Skip < 0 || r.SkipFooter < 0 {
		return eris.New("canon: negative trim count")
	}

	have := map[string]bool{}
	for _, c := range r.Columns {
		if c.Name == "" || c.Source == nil {
			return eris.New("canon: column without name or source")
		}
		if have[c.Name] {
			return eris.Errorf("canon: duplicate column %q", c.Name)
		}
		have[c.Name] = true
	}

	need := func(stage, name string) error {
		if !have[name] {
			return eris.Errorf("canon: %s references unknown field %q", stage, name)
		}
		return nil
	}

	for _, f := range r.FillDown {
		if err := need("fill", f); err != nil {
			return err
		}
	}
	for _, k := range r.Keep {
		if err := need("keep", k.Column); err != nil {
			return err
		}
		if k.Test == nil {
			return eris.Errorf("canon: keep on %q without test", k.Column)
		}
	}
	for _, s := range r.Splits {
		if err := need("split", s.Source); err != nil {
			return err
		}
		if s.Delim == "" || len(s.Into) < 2 {
			return eris.Errorf("canon: split of %q needs a delimiter and at least two targets", s.Source)
		}
		if !s.Keep {
			delete(have, s.Source)
		}
		for _, t := range s.Into {
			have[t] = true
		}
	}
	for _, d := range r.Derive {
		if d.Target == "" || d.Expr == nil {
			return eris.New("canon: derivation without target or expression")
		}
		have[d.Target] = true
	}
	for _, c := range r.Coerce {
		if err := need("coerce", c.Column); err != nil {
			return err
		}
		switch c.Kind {
		case KindText, KindInteger, KindBool, KindOptional:
		case KindDecimal:
			if c.Round < 0 {
				return eris.Errorf("canon: decimal coercion of %q rounds to %d places", c.Column, c.Round)
			}
		case KindDate:
			if c.Layout == "" {
				return eris.Errorf("canon: date coercion of %q without layout", c.Column)
			}
		case KindPad:
			if c.Width <= 0 {
				return eris.Errorf("canon: pad coercion of %q without width", c.Column)
			}
		default:
			return eris.Errorf("canon: unknown coercion kind %q", c.Kind)
		}
	}
	for _, k := range r.Keys {
		if k.Column == "" || len(k.Parts) == 0 {
			return eris.New("canon: key spec without column or parts")
		}
		for _, p := range k.Parts {
			if err := need("key", p); err != nil {
				return err
			}
		}
		if k.Suffix != nil {
			if err := need("key suffix", k.Suffix.From); err != nil {
				return err
			}
			if k.Suffix.Default == "" {
				return eris.Errorf("canon: suffix rule for %q has no default", k.Column)
			}
		}
		have[k.Column] = true
	}
	for _, o := range r.Output {
		if err := need("output", o); err != nil {
			return err
		}
	}
	out := r.outputFields()
	for _, f := range r.DedupeOn {
		if !r.Dedupe {
			return eris.New("canon: dedupe fields without dedupe")
		}
		if !slices.Contains(out, f) {
			return eris.Errorf("canon: dedupe field %q is not an output field", f)
		}
	}
	return nil
}
