package schema

import (
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/reportsync/internal/canon"
)

// ErrInvalidRecord is wrapped by every Validate failure.
var ErrInvalidRecord = eris.New("schema: record does not match table")

// Validate checks a record set against def: identical column set, Go value type
// per column type, no nulls in non-nullable or key columns, text within its length
// and decimals within their precision and scale.
func Validate(def TableDefinition, rs *canon.RecordSet) error {
	missing, extra := diffColumns(def.ColumnNames(), rs.Columns)
	if len(missing) > 0 || len(extra) > 0 {
		return eris.Wrapf(ErrInvalidRecord, "schema: %s: record set missing %v, unexpected %v",
			def.QualifiedName(), missing, extra)
	}

	for i, rec := range rs.Records {
		for _, c := range def.Columns {
			if err := checkValue(c, def.IsKey(c.Name), rec[c.Name]); err != nil {
				return eris.Wrapf(ErrInvalidRecord, "schema: %s: record %d column %q: %s",
					def.QualifiedName(), i, c.Name, err.Error())
			}
		}
	}
	return nil
}

func checkValue(c Column, key bool, v any) error {
	if v == nil {
		if !c.Nullable || key {
			return eris.New("null in non-nullable column")
		}
		return nil
	}

	ok := false
	switch c.Type {
	case TypeText:
		var s string
		s, ok = v.(string)
		if ok && c.Length > 0 && utf8.RuneCountInString(s) > c.Length {
			return eris.Errorf("text of %d characters exceeds length %d", utf8.RuneCountInString(s), c.Length)
		}
	case TypeInteger:
		_, ok = v.(int64)
	case TypeDecimal:
		var d decimal.Decimal
		d, ok = v.(decimal.Decimal)
		if ok && c.Precision > 0 {
			if err := checkDigits(c, d); err != nil {
				return err
			}
		}
	case TypeDate, TypeTimestamp:
		_, ok = v.(time.Time)
	case TypeBool:
		_, ok = v.(bool)
	}
	if !ok {
		return eris.Errorf("value of type %T is not %s", v, c.Type)
	}
	return nil
}

// checkDigits rejects a decimal the column would have to round or could not hold.
func checkDigits(c Column, d decimal.Decimal) error {
	if !d.Equal(d.Round(int32(c.Scale))) {
		return eris.Errorf("%s has more than %d decimal places", d, c.Scale)
	}
	if d.Abs().Cmp(decimal.New(1, int32(c.Precision-c.Scale))) >= 0 {
		return eris.Errorf("%s exceeds %d integer digits", d, c.Precision-c.Scale)
	}
	return nil
}
