package canon

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// DateLayout is the canonical text rendering of date values.
const DateLayout = "2006-01-02"

// NumberFormat describes how a source system writes numbers.
type NumberFormat struct {
	Thousands string `yaml:"thousands,omitempty"`
	Decimal   string `yaml:"decimal"`
}

var (
	// PlainNumbers is the format of spreadsheet cells: no grouping, '.' decimal point.
	PlainNumbers = NumberFormat{Decimal: "."}
	// CommaGrouped is "1,234.56".
	CommaGrouped = NumberFormat{Thousands: ",", Decimal: "."}
	// DotGrouped is "1.234,56".
	DotGrouped = NumberFormat{Thousands: ".", Decimal: ","}
)

// normalize strips grouping separators and rewrites the decimal separator as '.'.
func (n NumberFormat) normalize(s string) string {
	s = strings.TrimSpace(s)
	if n.Thousands != "" {
		s = strings.ReplaceAll(s, n.Thousands, "")
	}
	if n.Decimal != "" && n.Decimal != "." {
		s = strings.ReplaceAll(s, n.Decimal, ".")
	}
	return strings.ReplaceAll(s, " ", "")
}

// ParseDecimal parses s with the given number format. Empty input yields ok == false and no error.
func ParseDecimal(s string, nf NumberFormat) (decimal.Decimal, bool, error) {
	norm := nf.normalize(s)
	if norm == "" {
		return decimal.Decimal{}, false, nil
	}
	d, err := decimal.NewFromString(norm)
	if err != nil {
		return decimal.Decimal{}, false, eris.Errorf("invalid number %q", s)
	}
	return d, true, nil
}

// ParseInteger parses s as a base-10 integer after stripping grouping separators.
func ParseInteger(s string, nf NumberFormat) (int64, bool, error) {
	norm := nf.normalize(s)
	if norm == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseInt(norm, 10, 64)
	if err != nil {
		return 0, false, eris.Errorf("invalid integer %q", s)
	}
	return v, true, nil
}

// ParseDate parses s with an explicit layout. Layouts are never inferred.
func ParseDate(s, layout string) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, false, eris.Errorf("invalid date %q (layout %s)", s, layout)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true, nil
}

// PadLeft zero-pads s on the left to width. Like str.zfill, the empty string pads to all zeros.
func PadLeft(s string, width int) string {
	s = strings.TrimSpace(s)
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

// FormatValue renders a canonical value as text. It is used for key synthesis and key matching.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case decimal.Decimal:
		return x.String()
	case time.Time:
		return x.Format(DateLayout)
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	default:
		return fmt.Sprint(x)
	}
}
