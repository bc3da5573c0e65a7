package schema

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/reportsync/internal/canon"
	"github.com/sells-group/reportsync/internal/db"
	"github.com/sells-group/reportsync/internal/store"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	canon.DateLayout,
}

// Decode converts one stored row, aligned with def.Columns, back to canonical values.
// It absorbs storage type widening: REAL or INTEGER decimals, text or time dates, integer booleans.
func Decode(def TableDefinition, row []any) (canon.Record, error) {
	if len(row) != len(def.Columns) {
		return nil, eris.Errorf("schema: %s: row has %d values, table has %d columns",
			def.QualifiedName(), len(row), len(def.Columns))
	}
	rec := make(canon.Record, len(row))
	for i, c := range def.Columns {
		v, err := decodeValue(c, row[i])
		if err != nil {
			return nil, eris.Wrapf(err, "schema: %s: decode %q", def.QualifiedName(), c.Name)
		}
		rec[c.Name] = v
	}
	return rec, nil
}

func decodeValue(c Column, v any) (any, error) {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if v == nil {
		return nil, nil
	}

	switch c.Type {
	case TypeText:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return canon.FormatValue(v), nil

	case TypeInteger:
		switch x := v.(type) {
		case int64:
			return x, nil
		case int32:
			return int64(x), nil
		case float64:
			return int64(x), nil
		case string:
			return strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		}

	case TypeDecimal:
		switch x := v.(type) {
		case decimal.Decimal:
			return x, nil
		case float64:
			return decimal.NewFromFloat(x), nil
		case int64:
			return decimal.NewFromInt(x), nil
		case string:
			return decimal.NewFromString(strings.TrimSpace(x))
		}

	case TypeDate:
		switch x := v.(type) {
		case time.Time:
			return time.Date(x.Year(), x.Month(), x.Day(), 0, 0, 0, 0, time.UTC), nil
		case string:
			if len(x) >= len(canon.DateLayout) {
				x = x[:len(canon.DateLayout)]
			}
			return time.Parse(canon.DateLayout, x)
		}

	case TypeTimestamp:
		switch x := v.(type) {
		case time.Time:
			return x.UTC(), nil
		case string:
			for _, layout := range timestampLayouts {
				if t, err := time.Parse(layout, x); err == nil {
					return t.UTC(), nil
				}
			}
			return nil, eris.Errorf("unparseable timestamp %q", x)
		}

	case TypeBool:
		switch x := v.(type) {
		case bool:
			return x, nil
		case int64:
			return x != 0, nil
		case string:
			return strconv.ParseBool(x)
		}
	}
	return nil, eris.Errorf("cannot decode %T as %s", v, c.Type)
}

// Read loads a table back as a record set, ordered by its primary key. limit <= 0 reads everything.
func Read(ctx context.Context, st store.Store, def TableDefinition, limit int) (*canon.RecordSet, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s",
		db.QuoteAndJoin(def.ColumnNames()), st.Dialect().Table(def.Schema, def.Name), db.QuoteAndJoin(def.PrimaryKey))
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := st.Select(ctx, query)
	if err != nil {
		return nil, eris.Wrapf(err, "schema: read %s", def.QualifiedName())
	}

	rs := &canon.RecordSet{Report: def.Name, Columns: def.ColumnNames()}
	for _, row := range rows {
		rec, err := Decode(def, row)
		if err != nil {
			return nil, err
		}
		rs.Records = append(rs.Records, rec)
	}
	return rs, nil
}
