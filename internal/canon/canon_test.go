package canon

import (
	"errors"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/reportsync/internal/grid"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestApply_ForwardFill(t *testing.T) {
	g := make(grid.Grid, 10)
	for i := range g {
		g[i] = []string{"", "x"}
	}
	g[0][0], g[3][0], g[7][0] = "A", "B", "C"

	rs, err := Apply(g, Rule{
		Columns:  []Column{{Name: "group", Source: Col(0)}},
		FillDown: []string{"group"},
	}, Options{})
	require.NoError(t, err)
	require.Equal(t, 10, rs.Len())

	var got []string
	for _, rec := range rs.Records {
		got = append(got, rec["group"].(string))
	}
	assert.Equal(t, []string{"A", "A", "A", "B", "B", "B", "B", "C", "C", "C"}, got)
}

func TestApply_FillThenFilter(t *testing.T) {
	g := grid.Grid{
		{"01", "Programa uno", ""},
		{"", "", "10"},
		{"", "", "20"},
		{"02", "Programa dos", ""},
		{"", "", "30"},
	}
	rs, err := Apply(g, Rule{
		Columns:  []Column{{Name: "prog", Source: Col(0)}, {Name: "monto", Source: Col(2)}},
		FillDown: []string{"prog"},
		Keep:     []Keep{{Column: "monto", Test: NotEmpty()}},
	}, Options{})
	require.NoError(t, err)
	require.Equal(t, 3, rs.Len())
	assert.Equal(t, 2, rs.Filtered)
	assert.Equal(t, "01", rs.Records[1]["prog"])
	assert.Equal(t, "02", rs.Records[2]["prog"])
}

func TestApply_KeepByLength(t *testing.T) {
	g := grid.Grid{
		{"Programa: 11 - Obras", "", ""},
		{"", "4", ""},
		{"", "421", "1500"},
		{"", "422", "300"},
		{"Programa: 12 - Vivienda", "", ""},
		{"", "4", ""},
		{"", "421", "80"},
	}
	rs, err := Apply(g, Rule{
		Columns: []Column{
			{Name: "programa", Source: Branch{When: HasPrefix(0, "Programa"), Then: ColSlice(0, 10, 0), Else: Const("")}},
			{Name: "partida", Source: Col(1)},
			{Name: "credito", Source: Col(2)},
		},
		FillDown: []string{"programa"},
		Keep:     []Keep{{Column: "partida", Test: LenIs(3)}},
	}, Options{})
	require.NoError(t, err)
	require.Equal(t, 3, rs.Len())
	assert.Equal(t, 4, rs.Filtered)
	assert.Equal(t, "11 - Obras", rs.Records[0]["programa"])
	assert.Equal(t, "422", rs.Records[1]["partida"])
	assert.Equal(t, "12 - Vivienda", rs.Records[2]["programa"])

	assert.True(t, LenIs(3).Test(" 421 "))
	assert.False(t, LenIs(3).Test("4"))
	assert.Equal(t, "length == 3", LenIs(3).String())
}

func TestApply_RoundDecimal(t *testing.T) {
	rs, err := Apply(grid.Grid{{"0.123456"}, {"0.99995"}}, Rule{
		Columns: []Column{{Name: "avance", Source: Col(0)}},
		Coerce:  []Coercion{{Column: "avance", Kind: KindDecimal, Round: 4}},
		Number:  PlainNumbers,
	}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "0.1235", rs.Records[0]["avance"].(decimal.Decimal).String())
	assert.Equal(t, "1", rs.Records[1]["avance"].(decimal.Decimal).String())
}

func TestApply_OptionalReference(t *testing.T) {
	rs, err := Apply(grid.Grid{{"  O-1 Escuela "}, {"  "}}, Rule{
		Columns: []Column{{Name: "obra", Source: Col(0)}},
		Coerce:  []Coercion{{Column: "obra", Kind: KindOptional}},
	}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "O-1 Escuela", rs.Records[0]["obra"])
	assert.Nil(t, rs.Records[1]["obra"])
	assert.Empty(t, rs.Rejects)
}

func TestApply_TrimAndBannerCell(t *testing.T) {
	g := grid.Grid{
		{"", "", "EJERCICIO 2023"},
		{"cod", "monto", ""},
		{"1", "10.5", ""},
		{"2", "20", ""},
		{"TOTAL", "30.5", ""},
	}
	rs, err := Apply(g, Rule{
		Skip:       2,
		SkipFooter: 1,
		Columns: []Column{
			{Name: "ejercicio", Source: CellSlice(0, 2, -4, 0)},
			{Name: "cod", Source: Col(0)},
			{Name: "monto", Source: Col(1)},
			{Name: "orden", Source: RowNumber()},
		},
		Coerce: []Coercion{{Column: "monto", Kind: KindDecimal}, {Column: "ejercicio", Kind: KindInteger}},
		Number: PlainNumbers,
	}, Options{})
	require.NoError(t, err)
	require.Equal(t, 2, rs.Len())
	assert.Equal(t, int64(2023), rs.Records[0]["ejercicio"])
	assert.True(t, decimal.RequireFromString("10.5").Equal(rs.Records[0]["monto"].(decimal.Decimal)))
	assert.Equal(t, "1", rs.Records[0]["orden"])
	assert.Equal(t, "2", rs.Records[1]["orden"])
}

func TestApply_SkipBeyondGrid(t *testing.T) {
	rs, err := Apply(grid.Grid{{"a"}}, Rule{Skip: 3, Columns: []Column{{Name: "a", Source: Col(0)}}}, Options{})
	require.NoError(t, err)
	assert.Zero(t, rs.Len())
}

func TestOffsetBranch_SelectsAlternateOffsets(t *testing.T) {
	b := OffsetBranch{
		When:    AnyOf(Equals(3, "TOTALES"), Equals(4, "TOTALES")),
		Targets: []string{"obra", "monto", "beneficiario"},
		Then:    []int{1, 2, 0},
		Else:    []int{0, 1, NoColumn},
	}
	require.NoError(t, b.Validate())

	total := []string{"ACME SA", "Obra X", "100", "TOTALES", ""}
	detail := []string{"Obra X", "40", "", "", ""}

	assert.Equal(t, map[string]string{"obra": "Obra X", "monto": "100", "beneficiario": "ACME SA"}, b.Project(total))
	assert.Equal(t, map[string]string{"obra": "Obra X", "monto": "40", "beneficiario": ""}, b.Project(detail))
}

func TestOffsetBranch_ValidateLengths(t *testing.T) {
	b := OffsetBranch{When: NonEmpty(0), Targets: []string{"a", "b"}, Then: []int{1}, Else: []int{0, 1}}
	require.Error(t, b.Validate())
}

func TestPredicates(t *testing.T) {
	row := []string{" 11 - Obras ", "", "TOTALES"}
	assert.True(t, NonEmpty(0).Match(row))
	assert.False(t, NonEmpty(1).Match(row))
	assert.False(t, NonEmpty(9).Match(row))
	assert.True(t, HasPrefix(0, "11").Match(row))
	assert.True(t, Equals(2, "TOTALES").Match(row))
	assert.False(t, AnyOf(Equals(1, "x"), NonEmpty(1)).Match(row))
	assert.True(t, Contains(0, "Obras").Match(row))
	assert.False(t, Contains(1, "Obras").Match(row))
}

func TestApply_SplitCodeAndText(t *testing.T) {
	g := grid.Grid{
		{"11 - Obras Publicas - Viviendas"},
		{"22"},
	}
	rs, err := Apply(g, Rule{
		Columns: []Column{{Name: "imputacion", Source: Col(0)}},
		Splits:  []Split{{Source: "imputacion", Delim: "-", Into: []string{"cta_contable", "desc_imputacion"}}},
	}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"cta_contable", "desc_imputacion"}, rs.Columns)
	assert.Equal(t, Record{"cta_contable": "11", "desc_imputacion": "Obras Publicas - Viviendas"}, rs.Records[0])
	assert.Equal(t, Record{"cta_contable": "22", "desc_imputacion": ""}, rs.Records[1])
}

func TestApply_DeriveExpressions(t *testing.T) {
	g := grid.Grid{{"11", "1", "2023-03-15", "DEBITO"}}
	rs, err := Apply(g, Rule{
		Columns: []Column{
			{Name: "prog", Source: Col(0)},
			{Name: "sub", Source: Col(1)},
			{Name: "fecha", Source: Col(2)},
			{Name: "tipo", Source: Col(3)},
		},
		Derive: []Derivation{
			{Target: "estructura", Expr: Concat(Field("prog"), Lit("-"), Pad(Field("sub"), 2))},
			{Target: "mes", Expr: Concat(Slice(Field("fecha"), 5, 7), Lit("/"), Slice(Field("fecha"), 0, 4))},
			{Target: "es_cheque", Expr: Map(Field("tipo"), map[string]string{"DEBITO": "N", "DEPOSITO": "N"}, "S")},
			{Target: "clean", Expr: Trim(Replace(Field("fecha"), "-", ""))},
			{Target: "cuenta", Expr: IfEquals(Field("tipo"), "DEBITO", Lit("130832-07"), Field("prog"))},
			{Target: "otra", Expr: IfEquals(Field("tipo"), "CREDITO", Lit("x"), Field("prog"))},
			{Target: "mismo", Expr: IfSame(Field("prog"), Lit(" 11"), Lit("si"), Lit("no"))},
			{Target: "distinto", Expr: IfSame(Field("prog"), Field("sub"), Lit("si"), Lit("no"))},
			{Target: "tope", Expr: Earliest(Field("fecha"), Lit("2023-01-31"), Lit(""))},
			{Target: "sin_fecha", Expr: Earliest(Lit(""), Lit(" "))},
		},
	}, Options{})
	require.NoError(t, err)
	rec := rs.Records[0]
	assert.Equal(t, "11-01", rec["estructura"])
	assert.Equal(t, "03/2023", rec["mes"])
	assert.Equal(t, "N", rec["es_cheque"])
	assert.Equal(t, "20230315", rec["clean"])
	assert.Equal(t, "130832-07", rec["cuenta"])
	assert.Equal(t, "11", rec["otra"])
	assert.Equal(t, "si", rec["mismo"])
	assert.Equal(t, "no", rec["distinto"])
	assert.Equal(t, "2023-01-31", rec["tope"])
	assert.Equal(t, "", rec["sin_fecha"])
}

func TestApply_CoercionRejects(t *testing.T) {
	g := grid.Grid{
		{"1", "1.234,50", "15/03/2023"},
		{"2", "abc", "15/03/2023"},
		{"3", "", "31/02/2023"},
		{"4", "", ""},
	}
	rule := Rule{
		Columns: []Column{
			{Name: "id", Source: Col(0)},
			{Name: "importe", Source: Col(1)},
			{Name: "fecha", Source: Col(2)},
		},
		Coerce: []Coercion{
			{Column: "importe", Kind: KindDecimal, Number: &DotGrouped},
			{Column: "fecha", Kind: KindDate, Layout: "02/01/2006"},
		},
	}

	rs, err := Apply(g, rule, Options{Report: "test"})
	require.NoError(t, err)
	require.Equal(t, 2, rs.Len())
	assert.True(t, decimal.RequireFromString("1234.5").Equal(rs.Records[0]["importe"].(decimal.Decimal)))
	assert.Equal(t, time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC), rs.Records[0]["fecha"])
	assert.Nil(t, rs.Records[1]["importe"])
	assert.Nil(t, rs.Records[1]["fecha"])

	require.Len(t, rs.Rejects, 2)
	assert.Equal(t, Reject{Row: 1, Column: "importe", Value: "abc", Reason: rs.Rejects[0].Reason}, rs.Rejects[0])
	assert.Contains(t, rs.Rejects[0].Reason, "invalid number")
	assert.Equal(t, 2, rs.Rejects[1].Row)
	assert.Equal(t, "fecha", rs.Rejects[1].Column)

	_, err = Apply(g, rule, Options{Report: "test", Strict: true})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrStrictRejects))
}

func TestApply_BoolAndPad(t *testing.T) {
	g := grid.Grid{{"S", "7"}, {"N", ""}}
	rs, err := Apply(g, Rule{
		Columns: []Column{{Name: "comprometido", Source: Col(0)}, {Name: "programa", Source: Col(1)}},
		Coerce: []Coercion{
			{Column: "comprometido", Kind: KindBool, TrueValues: []string{"S"}},
			{Column: "programa", Kind: KindPad, Width: 2},
		},
	}, Options{})
	require.NoError(t, err)
	assert.Equal(t, true, rs.Records[0]["comprometido"])
	assert.Equal(t, "07", rs.Records[0]["programa"])
	assert.Equal(t, false, rs.Records[1]["comprometido"])
	assert.Equal(t, "00", rs.Records[1]["programa"])
}

func TestApply_KeySuffixIsTotal(t *testing.T) {
	g := grid.Grid{
		{"00012/2023", "PA6"},
		{"00012/2023", "CYO"},
		{"00013/2023", ""},
	}
	rs, err := Apply(g, Rule{
		Columns: []Column{{Name: "nro_comprobante", Source: Col(0)}, {Name: "tipo", Source: Col(1)}},
		Keys: []KeySpec{{
			Column: "id",
			Parts:  []string{"nro_comprobante"},
			Suffix: &SuffixRule{From: "tipo", Cases: map[string]string{"PA6": "F"}, Default: "C"},
		}},
	}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "00012/2023F", rs.Records[0]["id"])
	assert.Equal(t, "00012/2023C", rs.Records[1]["id"])
	assert.Equal(t, "00013/2023C", rs.Records[2]["id"])
	assert.NoError(t, rs.CheckUnique([]string{"id"}))
}

func TestApply_Dedupe(t *testing.T) {
	g := grid.Grid{{"01", "A"}, {"01", "A"}, {"02", "B"}, {"01", "A"}}
	rs, err := Apply(g, Rule{
		Columns: []Column{{Name: "cod", Source: Col(0)}, {Name: "desc", Source: Col(1)}},
		Dedupe:  true,
	}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, rs.Len())
	assert.Equal(t, 2, rs.Filtered)
}

func TestApply_DedupeOnKeepsFirst(t *testing.T) {
	g := grid.Grid{{"ACME SA", "20-1"}, {"OTRA SA", "20-2"}, {"ACME SA", "20-3"}}
	rs, err := Apply(g, Rule{
		Columns:  []Column{{Name: "desc", Source: Col(0)}, {Name: "cuit", Source: Col(1)}},
		Dedupe:   true,
		DedupeOn: []string{"desc"},
	}, Options{})
	require.NoError(t, err)
	require.Equal(t, 2, rs.Len())
	assert.Equal(t, "20-1", rs.Records[0]["cuit"])
	assert.Equal(t, 1, rs.Filtered)
	assert.NoError(t, rs.CheckUnique([]string{"desc"}))
}

func TestApply_OutputOrder(t *testing.T) {
	rs, err := Apply(grid.Grid{{"a", "b"}}, Rule{
		Columns: []Column{{Name: "x", Source: Col(0)}, {Name: "y", Source: Col(1)}},
		Output:  []string{"y", "x"},
	}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "x"}, rs.Columns)
	assert.Equal(t, [][]any{{"b", "a"}}, rs.Rows())
}

func TestRuleValidate(t *testing.T) {
	base := []Column{{Name: "a", Source: Col(0)}, {Name: "b", Source: Col(1)}}
	tests := []struct {
		name string
		rule Rule
		want string
	}{
		{"duplicate column", Rule{Columns: []Column{{Name: "a", Source: Col(0)}, {Name: "a", Source: Col(1)}}}, "duplicate column"},
		{"unknown fill", Rule{Columns: base, FillDown: []string{"z"}}, "unknown field"},
		{"split without targets", Rule{Columns: base, Splits: []Split{{Source: "a", Delim: "-", Into: []string{"x"}}}}, "at least two targets"},
		{"date without layout", Rule{Columns: base, Coerce: []Coercion{{Column: "a", Kind: KindDate}}}, "without layout"},
		{"pad without width", Rule{Columns: base, Coerce: []Coercion{{Column: "a", Kind: KindPad}}}, "without width"},
		{"negative rounding", Rule{Columns: base, Coerce: []Coercion{{Column: "a", Kind: KindDecimal, Round: -1}}}, "rounds to -1"},
		{"dedupe on unknown field", Rule{Columns: base, Dedupe: true, DedupeOn: []string{"z"}}, "dedupe field"},
		{"dedupe fields without dedupe", Rule{Columns: base, DedupeOn: []string{"a"}}, "without dedupe"},
		{"unknown kind", Rule{Columns: base, Coerce: []Coercion{{Column: "a", Kind: "money"}}}, "unknown coercion kind"},
		{"suffix without default", Rule{Columns: base, Keys: []KeySpec{{Column: "id", Parts: []string{"a"}, Suffix: &SuffixRule{From: "b", Cases: map[string]string{"x": "1"}}}}}, "has no default"},
		{"unknown output", Rule{Columns: base, Output: []string{"c"}}, "unknown field"},
		{"split source gone", Rule{Columns: base, Splits: []Split{{Source: "a", Delim: "-", Into: []string{"x", "y"}}}, Output: []string{"a"}}, "unknown field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCheckUnique(t *testing.T) {
	rs := &RecordSet{Records: []Record{
		{"ejercicio": int64(2023), "cod": "1"},
		{"ejercicio": int64(2023), "cod": "2"},
		{"ejercicio": int64(2023), "cod": "1"},
	}}
	require.NoError(t, rs.CheckUnique(nil))

	err := rs.CheckUnique([]string{"ejercicio", "cod"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrKeyCollision))

	var kc *KeyCollisionError
	require.True(t, errors.As(eris.Wrap(err, "tablesync: pre-check"), &kc))
	assert.Equal(t, 0, kc.First)
	assert.Equal(t, 2, kc.Second)
	assert.Equal(t, []string{"2023", "1"}, kc.Key)
}

func TestKeyTuples_DistinctInOrder(t *testing.T) {
	rs := &RecordSet{Records: []Record{
		{"mes": "03/2023"}, {"mes": "01/2023"}, {"mes": "03/2023"}, {"mes": nil}, {"mes": ""},
	}}
	assert.Equal(t, [][]any{{"03/2023"}, {"01/2023"}, {nil}, {""}}, rs.KeyTuples([]string{"mes"}))
}

func TestParseHelpers(t *testing.T) {
	d, ok, err := ParseDecimal("1,234,567.89", CommaGrouped)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1234567.89", d.String())

	_, ok, err = ParseDecimal("  ", CommaGrouped)
	require.NoError(t, err)
	assert.False(t, ok)

	n, _, err := ParseInteger("2.023", DotGrouped)
	require.NoError(t, err)
	assert.Equal(t, int64(2023), n)

	assert.Equal(t, "00042", PadLeft("42", 5))
	assert.Equal(t, "123456", PadLeft("123456", 5))
	assert.Equal(t, "2023-03-15", FormatValue(time.Date(2023, 3, 15, 0, 0, 0, 0, time.UTC)))
}
