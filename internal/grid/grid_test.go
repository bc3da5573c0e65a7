package grid

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func createTestXLSX(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func writeTestFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestGridCell_OutOfRange(t *testing.T) {
	g := Grid{{"a", "b"}, {"c"}}
	assert.Equal(t, "b", g.Cell(0, 1))
	assert.Equal(t, "", g.Cell(1, 1))
	assert.Equal(t, "", g.Cell(5, 0))
	assert.Equal(t, "", g.Cell(0, -1))
	assert.Equal(t, 2, g.Width())
	assert.Equal(t, 2, g.Rows())
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"rf602.xlsx", FormatXLSX},
		{"RF602.XLSX", FormatXLSX},
		{"movimientos.csv", FormatDelimited},
		{"export.txt", FormatDelimited},
		{"bundle.zip", FormatZIP},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFormat(tt.path))
		})
	}
}

func TestReadDelimited_Latin1(t *testing.T) {
	input := []byte("1,Jos\xe9,Corrientes\n2,Pe\xf1a,Goya\n")
	res, err := ReadDelimited(context.Background(), bytes.NewReader(input), Options{})
	require.NoError(t, err)
	require.Len(t, res.Grid, 2)
	assert.Equal(t, "José", res.Grid[0][1])
	assert.Equal(t, "Peña", res.Grid[1][1])
	assert.Zero(t, res.Skipped)
}

func TestReadDelimited_SkipsMalformedRows(t *testing.T) {
	input := "a,b\n1,\"x\"y\n3,4\n"
	res, err := ReadDelimited(context.Background(), strings.NewReader(input), Options{Encoding: "utf-8"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, Grid{{"a", "b"}, {"3", "4"}}, res.Grid)
}

func TestReadDelimited_UnterminatedQuoteSkipsOnlyItsLine(t *testing.T) {
	input := "a,b\n1,\"x\n3,4\n5,6\n7,8\n"
	res, err := ReadDelimited(context.Background(), strings.NewReader(input), Options{Encoding: "utf-8"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, Grid{{"a", "b"}, {"3", "4"}, {"5", "6"}, {"7", "8"}}, res.Grid)
}

func TestReadDelimited_QuotedCellSpanningLines(t *testing.T) {
	input := "1,\"PAGO\r\nPARCIAL\r\nOBRA\",10\r\n2,\"x\"y\r\n3,SIMPLE,30\r\n\r\n"
	res, err := ReadDelimited(context.Background(), strings.NewReader(input), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, Grid{{"1", "PAGOPARCIALOBRA", "10"}, {"3", "SIMPLE", "30"}}, res.Grid)
}

func TestReadDelimited_OpenQuoteIsBoundedByMaxRecordLines(t *testing.T) {
	var b strings.Builder
	b.WriteString("\"open\n")
	for i := 0; i < maxRecordLines+5; i++ {
		b.WriteString("r,\"q\"\n")
	}
	b.WriteString("z\"\n")
	res, err := ReadDelimited(context.Background(), strings.NewReader(b.String()), Options{Encoding: "utf-8"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Skipped, "the open line and the stray closing quote")
	require.Len(t, res.Grid, maxRecordLines+5)
	assert.Equal(t, []string{"r", "q"}, res.Grid[0])
}

func TestReadDelimited_StripsEmbeddedLineBreaks(t *testing.T) {
	input := "\"BANCO\r\nNACION\",10\n"
	res, err := ReadDelimited(context.Background(), strings.NewReader(input), Options{})
	require.NoError(t, err)
	require.Len(t, res.Grid, 1)
	assert.Equal(t, "BANCONACION", res.Grid[0][0])
}

func TestReadDelimited_UnknownEncoding(t *testing.T) {
	_, err := ReadDelimited(context.Background(), strings.NewReader("a\n"), Options{Encoding: "klingon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported encoding")
}

func TestReadDelimited_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ReadDelimited(ctx, strings.NewReader("a,b\n"), Options{})
	require.Error(t, err)
}

func TestReadFile_PadsAndTruncatesToDeclaredColumns(t *testing.T) {
	path := writeTestFile(t, "report.csv", []byte("a,b,c,d\ne\nf,g\n"))

	res, err := ReadFile(context.Background(), path, Options{Columns: 3})
	require.NoError(t, err)
	assert.Equal(t, Grid{
		{"a", "b", "c"},
		{"e", "", ""},
		{"f", "g", ""},
	}, res.Grid)
}

func TestReadFile_PadsToWidestRow(t *testing.T) {
	path := writeTestFile(t, "report.csv", []byte("a\nb,c,d\n"))

	res, err := ReadFile(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Equal(t, Grid{{"a", "", ""}, {"b", "c", "d"}}, res.Grid)
}

func TestReadFile_Semicolon(t *testing.T) {
	path := writeTestFile(t, "report.txt", []byte("1;2\n"))

	res, err := ReadFile(context.Background(), path, Options{Delimiter: ';'})
	require.NoError(t, err)
	assert.Equal(t, Grid{{"1", "2"}}, res.Grid)
}

func TestReadFile_XLSX(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"Sheet1": {
			{"", "", "DETALLE DE LA EJECUCION PRESUESTARIA 2023"},
			{"01", "02"},
		},
	})

	res, err := ReadFile(context.Background(), path, Options{})
	require.NoError(t, err)
	require.Len(t, res.Grid, 2)
	assert.Equal(t, "DETALLE DE LA EJECUCION PRESUESTARIA 2023", res.Grid.Cell(0, 2))
	assert.Equal(t, []string{"01", "02", ""}, res.Grid[1])
}

func TestReadFile_XLSXSheetByName(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{
		"First":  {{"a"}},
		"Second": {{"x", "y"}},
	})

	res, err := ReadFile(context.Background(), path, Options{SheetName: "Second"})
	require.NoError(t, err)
	assert.Equal(t, Grid{{"x", "y"}}, res.Grid)

	_, err = ReadFile(context.Background(), path, Options{SheetName: "Missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestReadFile_XLSXSheetIndexOutOfRange(t *testing.T) {
	path := createTestXLSX(t, map[string][][]string{"Sheet1": {{"a"}}})

	_, err := ReadFile(context.Background(), path, Options{Sheet: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestReadFile_ZIPSingleEntry(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("movimientos.csv")
	require.NoError(t, err)
	_, err = w.Write([]byte("x,y\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	path := writeTestFile(t, "export.zip", buf.Bytes())
	res, err := ReadFile(context.Background(), path, Options{TempDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, Grid{{"x", "y"}}, res.Grid)
}

func TestReadFile_ZIPCreatesMissingTempDir(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("ctas_ctes.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("a;b;c\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	tempRoot := filepath.Join(t.TempDir(), "missing", "reportsync")
	path := writeTestFile(t, "ctas_ctes.zip", buf.Bytes())
	res, err := ReadFile(context.Background(), path, Options{
		Format:    FormatDelimited,
		Delimiter: ';',
		Columns:   2,
		TempDir:   tempRoot,
	})
	require.NoError(t, err)
	assert.Equal(t, Grid{{"a", "b"}}, res.Grid)

	entries, err := os.ReadDir(tempRoot)
	require.NoError(t, err)
	assert.Empty(t, entries, "extraction dir is removed after the read")
}

func TestReadFile_ZIPMultipleEntries(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"a.csv", "b.csv"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte("1\n"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	path := writeTestFile(t, "export.zip", buf.Bytes())
	_, err := ReadFile(context.Background(), path, Options{TempDir: t.TempDir()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected exactly 1 file")
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), Options{})
	require.Error(t, err)
}
