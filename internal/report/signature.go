// Package report declares report types: the signature that identifies a file,
// the rule that canonicalizes it, its destination table and sync policy.
package report

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/sells-group/reportsync/internal/grid"
)

// ErrSignatureMismatch reports a file that is not the expected report.
var ErrSignatureMismatch = eris.New("report: file does not match report signature")

// MatchMode is the tolerance of a signature comparison.
type MatchMode string

const (
	Exact    MatchMode = "exact"
	Prefix   MatchMode = "prefix"
	Contains MatchMode = "contains"
)

// Probe is a zero-based cell location.
type Probe struct {
	Row int `yaml:"row"`
	Col int `yaml:"col"`
}

// Signature identifies a report by the title text found at known cells.
type Signature struct {
	Probes   []Probe   `yaml:"probes"`
	Expected string    `yaml:"expected"`
	Mode     MatchMode `yaml:"mode"`
	// PrefixLen limits Prefix comparisons to the first n runes; 0 uses len(Expected).
	PrefixLen int `yaml:"prefix_len,omitempty"`
}

// At is a signature read from one cell.
func At(row, col int, expected string, mode MatchMode) Signature {
	return Signature{Probes: []Probe{{Row: row, Col: col}}, Expected: expected, Mode: mode}
}

// Text joins the signature cells with a single space. Cells outside the grid read as "".
func (s Signature) Text(g grid.Grid) string {
	parts := make([]string, 0, len(s.Probes))
	for _, p := range s.Probes {
		parts = append(parts, strings.TrimSpace(g.Cell(p.Row, p.Col)))
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// Verify reports whether g carries the signature. It never fails: a grid that is
// too small simply does not match.
func Verify(g grid.Grid, s Signature) bool {
	if len(s.Probes) == 0 {
		return false
	}
	text := s.Text(g)
	want := strings.TrimSpace(s.Expected)

	switch s.Mode {
	case Exact, "":
		return text == want
	case Prefix:
		n := s.PrefixLen
		if n <= 0 {
			n = utf8.RuneCountInString(want)
		}
		return firstRunes(text, n) == firstRunes(want, n)
	case Contains:
		return strings.Contains(text, want)
	default:
		return false
	}
}

// validate rejects a mode Verify does not know and a prefix longer than the
// expected text, which no title could ever match.
func (s Signature) validate() error {
	switch s.Mode {
	case Exact, Prefix, Contains, "":
	default:
		return eris.Errorf("unknown match mode %q", s.Mode)
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(s.Expected)); s.PrefixLen < 0 || s.PrefixLen > n {
		return eris.Errorf("prefix length %d outside expected text of %d characters", s.PrefixLen, n)
	}
	return nil
}

// Check is Verify returning ErrSignatureMismatch with the text that was found.
func Check(g grid.Grid, s Signature) error {
	if Verify(g, s) {
		return nil
	}
	return eris.Wrapf(ErrSignatureMismatch, "report: expected %s, found %q", s, s.Text(g))
}

func (s Signature) String() string {
	return fmt.Sprintf("%s %q at %v", s.Mode, s.Expected, s.Probes)
}

func firstRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
