// Package tablesync applies canonical record sets to storage tables under a
// replace-by-key or full-replace policy, one transaction per sync.
package tablesync

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Mode selects how existing rows are cleared before a batch is inserted.
type Mode int

const (
	ModeReplaceByKey Mode = iota + 1 // delete rows whose key appears in the batch
	ModeFullReplace                  // delete every row
)

// String returns the policy mode name.
func (m Mode) String() string {
	switch m {
	case ModeReplaceByKey:
		return "replace_by_key"
	case ModeFullReplace:
		return "full_replace"
	default:
		return "unknown"
	}
}

// Policy is the sync policy of one report type.
type Policy struct {
	Mode Mode
	Key  []string // scope columns for ModeReplaceByKey
}

// ReplaceByKey deletes the existing rows whose values in cols match any tuple of the
// incoming batch, then inserts the batch. Matching is conjunctive across cols.
func ReplaceByKey(cols ...string) Policy {
	return Policy{Mode: ModeReplaceByKey, Key: cols}
}

// FullReplace empties the table, then inserts the batch.
func FullReplace() Policy {
	return Policy{Mode: ModeFullReplace}
}

func (p Policy) String() string {
	if p.Mode == ModeReplaceByKey {
		return p.Mode.String() + "(" + strings.Join(p.Key, ", ") + ")"
	}
	return p.Mode.String()
}

// MarshalYAML renders the policy in its String form.
func (p Policy) MarshalYAML() (any, error) {
	return p.String(), nil
}

// ParsePolicy parses "full_replace" or "replace_by_key(a, b)".
func ParsePolicy(s string) (Policy, error) {
	s = strings.TrimSpace(s)
	if s == ModeFullReplace.String() {
		return FullReplace(), nil
	}
	name, args, ok := strings.Cut(s, "(")
	if !ok || name != ModeReplaceByKey.String() || !strings.HasSuffix(args, ")") {
		return Policy{}, eris.Errorf("tablesync: unknown policy %q (valid: full_replace, replace_by_key(cols))", s)
	}
	var cols []string
	for _, c := range strings.Split(strings.TrimSuffix(args, ")"), ",") {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return Policy{}, eris.Errorf("tablesync: policy %q names no key columns", s)
	}
	return ReplaceByKey(cols...), nil
}
