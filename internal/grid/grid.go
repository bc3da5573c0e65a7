// Package grid reads delimited and spreadsheet report exports into untyped cell grids.
package grid

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Format identifies the physical layout of a report file.
type Format string

const (
	FormatAuto      Format = ""
	FormatDelimited Format = "delimited"
	FormatXLSX      Format = "xlsx"
	FormatZIP       Format = "zip"
)

// DefaultEncoding is the legacy 8-bit encoding used by the delimited exports.
const DefaultEncoding = "ISO-8859-1"

// Grid is an ordered sequence of rows of string cells. Missing data is "".
type Grid [][]string

// Rows returns the number of rows.
func (g Grid) Rows() int { return len(g) }

// Width returns the number of columns of the widest row.
func (g Grid) Width() int {
	w := 0
	for _, row := range g {
		if len(row) > w {
			w = len(row)
		}
	}
	return w
}

// Cell returns the cell at (row, col), or "" when the location is outside the grid.
func (g Grid) Cell(row, col int) string {
	if row < 0 || row >= len(g) || col < 0 || col >= len(g[row]) {
		return ""
	}
	return g[row][col]
}

// Options configures how a report file is read.
type Options struct {
	Format    Format // FormatAuto picks by extension
	Columns   int    // fixed column count; 0 pads to the widest row
	Delimiter rune   // default ','
	Encoding  string // delimited only; default DefaultEncoding
	Sheet     int    // xlsx sheet index
	SheetName string // xlsx sheet name, overrides Sheet
	TempDir   string // zip extraction directory, created when missing; default os.TempDir()
}

// Result is the outcome of reading one file.
type Result struct {
	Grid    Grid
	Skipped int // malformed rows dropped by the reader
}

// ReadFile reads the file at path into a rectangular grid.
func ReadFile(ctx context.Context, path string, opts Options) (*Result, error) {
	// Archives are unwrapped whatever the declared format; the declared format then
	// applies to the extracted entry.
	format := opts.Format
	if format == FormatAuto || DetectFormat(path) == FormatZIP {
		format = DetectFormat(path)
	}

	var (
		res *Result
		err error
	)
	switch format {
	case FormatXLSX:
		res, err = readXLSX(path, opts)
	case FormatZIP:
		res, err = readZIP(ctx, path, opts)
	case FormatDelimited:
		res, err = readDelimitedFile(ctx, path, opts)
	default:
		return nil, eris.Errorf("grid: unsupported format %q", format)
	}
	if err != nil {
		return nil, err
	}

	res.Grid = normalizeWidth(res.Grid, opts.Columns)

	zap.L().Debug("grid read",
		zap.String("component", "grid"),
		zap.String("path", path),
		zap.Int("rows", res.Grid.Rows()),
		zap.Int("width", res.Grid.Width()),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

// DetectFormat maps a file extension to a Format. Unknown extensions are read as delimited text.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".zip":
		return FormatZIP
	default:
		return FormatDelimited
	}
}

// normalizeWidth pads or truncates every row to cols. With cols == 0 rows are padded to the widest row.
func normalizeWidth(g Grid, cols int) Grid {
	width := cols
	if width <= 0 {
		width = g.Width()
	}
	out := make(Grid, len(g))
	for i, row := range g {
		fixed := make([]string, width)
		copy(fixed, row)
		out[i] = fixed
	}
	return out
}

func openFileForRead(path string) (*os.File, error) {
	f, err := os.Open(path) //nolint:gosec
	if err != nil {
		return nil, eris.Wrapf(err, "grid: open %s", path)
	}
	return f, nil
}
