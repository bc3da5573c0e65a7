package canon

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

var (
	// ErrStrictRejects is returned by Apply in strict mode when any row failed coercion.
	ErrStrictRejects = eris.New("canon: rows rejected in strict mode")
	// ErrKeyCollision matches every *KeyCollisionError.
	ErrKeyCollision = eris.New("canon: natural key collision")
)

// Record is one canonical row. Values are string, decimal.Decimal, time.Time, bool, int64 or nil.
type Record map[string]any

// Reject describes a row excluded because a field could not be coerced.
type Reject struct {
	Row    int // 0-based row of the source grid
	Column string
	Value  string
	Reason string
}

// RecordSet is the canonical output of one report file.
type RecordSet struct {
	Report   string
	Columns  []string
	Records  []Record
	Rejects  []Reject
	Skipped  int // unparseable source rows
	Filtered int // rows dropped by keep filters or dedupe
}

// Len is the number of records.
func (rs *RecordSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Records)
}

// Rows returns the record values in column order.
func (rs *RecordSet) Rows() [][]any {
	out := make([][]any, len(rs.Records))
	for i, rec := range rs.Records {
		row := make([]any, len(rs.Columns))
		for j, c := range rs.Columns {
			row[j] = rec[c]
		}
		out[i] = row
	}
	return out
}

// KeyTuples returns the distinct value tuples of cols, in first-seen order.
func (rs *RecordSet) KeyTuples(cols []string) [][]any {
	seen := make(map[string]bool)
	var out [][]any
	for _, rec := range rs.Records {
		tuple := make([]any, len(cols))
		for i, c := range cols {
			tuple[i] = rec[c]
		}
		k := tupleKey(tuple)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, tuple)
	}
	return out
}

// KeyCollisionError reports two records sharing a natural key.
type KeyCollisionError struct {
	Columns []string
	Key     []string
	First   int
	Second  int
}

func (e *KeyCollisionError) Error() string {
	return fmt.Sprintf("canon: natural key collision on (%s) = (%s) at records %d and %d",
		strings.Join(e.Columns, ", "), strings.Join(e.Key, ", "), e.First, e.Second)
}

// Is matches ErrKeyCollision.
func (e *KeyCollisionError) Is(target error) bool { return target == ErrKeyCollision }

// CheckUnique returns a *KeyCollisionError when two records share the values of key.
func (rs *RecordSet) CheckUnique(key []string) error {
	if len(key) == 0 {
		return nil
	}
	seen := make(map[string]int, len(rs.Records))
	for i, rec := range rs.Records {
		tuple := make([]any, len(key))
		for j, c := range key {
			tuple[j] = rec[c]
		}
		k := tupleKey(tuple)
		if first, ok := seen[k]; ok {
			vals := make([]string, len(tuple))
			for j, v := range tuple {
				vals[j] = FormatValue(v)
			}
			return &KeyCollisionError{Columns: key, Key: vals, First: first, Second: i}
		}
		seen[k] = i
	}
	return nil
}

// tupleKey renders a tuple as a map key. Nil and "" are kept apart.
func tupleKey(tuple []any) string {
	var b strings.Builder
	for _, v := range tuple {
		if v == nil {
			b.WriteString("\x00")
		} else {
			b.WriteString(FormatValue(v))
		}
		b.WriteByte(0x1f)
	}
	return b.String()
}
