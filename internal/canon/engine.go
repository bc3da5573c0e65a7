package canon

import (
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/reportsync/internal/grid"
)

// Options controls one Apply call.
type Options struct {
	Report string
	// Strict fails the whole file when any row is rejected.
	Strict bool
}

type working struct {
	src  int
	vals map[string]string
}

// Apply canonicalizes a grid. Coercion failures exclude the row and are listed
// in RecordSet.Rejects; in strict mode they fail the call with ErrStrictRejects.
func Apply(g grid.Grid, rule Rule, opts Options) (*RecordSet, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	rows := project(g, rule)
	fillDown(rows, rule.FillDown)

	total := len(rows)
	rows = keep(rows, rule.Keep)
	filtered := total - len(rows)

	for _, w := range rows {
		for _, s := range rule.Splits {
			s.apply(w.vals)
		}
		for _, d := range rule.Derive {
			w.vals[d.Target] = d.Expr.eval(w.vals)
		}
	}

	fields := rule.Fields()
	out := rule.outputFields()
	rs := &RecordSet{Report: opts.Report, Columns: slices.Clone(out), Filtered: filtered}

	identity := out
	if len(rule.DedupeOn) > 0 {
		identity = rule.DedupeOn
	}
	seen := map[string]bool{}
	for _, w := range rows {
		rec, rejects := coerce(w, fields, rule)
		if len(rejects) > 0 {
			rs.Rejects = append(rs.Rejects, rejects...)
			continue
		}
		for _, k := range rule.Keys {
			rec[k.Column] = k.build(rec)
		}
		final := make(Record, len(out))
		for _, c := range out {
			final[c] = rec[c]
		}
		if rule.Dedupe {
			k := recordKey(final, identity)
			if seen[k] {
				rs.Filtered++
				continue
			}
			seen[k] = true
		}
		rs.Records = append(rs.Records, final)
	}

	if len(rs.Rejects) > 0 {
		zap.L().With(zap.String("component", "canon")).Warn("rows rejected",
			zap.String("report", opts.Report),
			zap.Int("rejects", len(rs.Rejects)),
			zap.Int("first_row", rs.Rejects[0].Row),
			zap.String("reason", rs.Rejects[0].Reason),
		)
		if opts.Strict {
			return nil, eris.Wrapf(ErrStrictRejects, "canon: %s: %d rows rejected", opts.Report, len(rs.Rejects))
		}
	}
	return rs, nil
}

// project trims header and footer rows and evaluates the column plan.
// Banner cells read the untrimmed grid.
func project(g grid.Grid, rule Rule) []*working {
	first, last := rule.Skip, g.Rows()-rule.SkipFooter
	if first >= last {
		return nil
	}
	rows := make([]*working, 0, last-first)
	for i := first; i < last; i++ {
		rc := rowContext{grid: g, row: g[i], num: i - first + 1}
		vals := make(map[string]string, len(rule.Columns))
		for _, c := range rule.Columns {
			vals[c.Name] = c.Source.value(rc)
		}
		rows = append(rows, &working{src: i, vals: vals})
	}
	return rows
}

// fillDown carries the last non-blank value of each field into the blank rows below it.
func fillDown(rows []*working, cols []string) {
	for _, c := range cols {
		last := ""
		for _, w := range rows {
			if strings.TrimSpace(w.vals[c]) == "" {
				w.vals[c] = last
				continue
			}
			last = w.vals[c]
		}
	}
}

func keep(rows []*working, filters []Keep) []*working {
	if len(filters) == 0 {
		return rows
	}
	out := rows[:0]
	for _, w := range rows {
		ok := true
		for _, f := range filters {
			if !f.Test.Test(w.vals[f.Column]) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, w)
		}
	}
	return out
}

func coerce(w *working, fields []string, rule Rule) (Record, []Reject) {
	rec := make(Record, len(fields))
	for _, f := range fields {
		rec[f] = w.vals[f]
	}

	var rejects []Reject
	for _, c := range rule.Coerce {
		raw := w.vals[c.Column]
		v, err := coerceValue(raw, c, rule.Number)
		if err != nil {
			rejects = append(rejects, Reject{Row: w.src, Column: c.Column, Value: raw, Reason: err.Error()})
			continue
		}
		rec[c.Column] = v
	}
	return rec, rejects
}

func coerceValue(raw string, c Coercion, def NumberFormat) (any, error) {
	nf := def
	if c.Number != nil {
		nf = *c.Number
	}
	switch c.Kind {
	case KindDecimal:
		d, ok, err := ParseDecimal(raw, nf)
		if err != nil || !ok {
			return nil, err
		}
		if c.Round > 0 {
			d = d.Round(int32(c.Round))
		}
		return d, nil
	case KindInteger:
		n, ok, err := ParseInteger(raw, nf)
		if err != nil || !ok {
			return nil, err
		}
		return n, nil
	case KindDate:
		t, ok, err := ParseDate(raw, c.Layout)
		if err != nil || !ok {
			return nil, err
		}
		return t, nil
	case KindBool:
		return slices.Contains(c.TrueValues, strings.TrimSpace(raw)), nil
	case KindPad:
		return PadLeft(raw, c.Width), nil
	case KindOptional:
		if v := strings.TrimSpace(raw); v != "" {
			return v, nil
		}
		return nil, nil
	default:
		return strings.TrimSpace(raw), nil
	}
}

func recordKey(rec Record, cols []string) string {
	tuple := make([]any, len(cols))
	for i, c := range cols {
		tuple[i] = rec[c]
	}
	return tupleKey(tuple)
}
