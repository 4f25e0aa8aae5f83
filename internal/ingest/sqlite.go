package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/paulmach/orb"

	"github.com/banshee-data/trajectory.report/internal/trajectory"
)

// quoteIdent quotes an SQLite identifier.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// affinity maps a declared SQLite column type onto a field type following
// SQLite's type affinity rules, with BOOLEAN singled out.
func affinity(declared string) trajectory.FieldType {
	t := strings.ToUpper(declared)
	switch {
	case strings.Contains(t, "BOOL"):
		return trajectory.FieldBool
	case strings.Contains(t, "INT"):
		return trajectory.FieldInteger
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return trajectory.FieldString
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"),
		strings.Contains(t, "NUMERIC"), strings.Contains(t, "DECIMAL"):
		return trajectory.FieldDouble
	default:
		return trajectory.FieldUnknown
	}
}

// ReadSQLiteTable loads a table of point observations whose coordinates are
// stored in the xCol and yCol columns. Column types come from the declared
// schema; rows with NULL coordinates are rejected.
func ReadSQLiteTable(ctx context.Context, db *sql.DB, table, xCol, yCol string) (*Table, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+quoteIdent(table)+")")
	if err != nil {
		return nil, fmt.Errorf("table_info %s: %w", table, err)
	}
	var fields []trajectory.Field
	for rows.Next() {
		var (
			cid       int
			name      string
			declared  sql.NullString
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &declared, &notNull, &dfltValue, &pk); err != nil {
			rows.Close()
			return nil, fmt.Errorf("table_info %s: %w", table, err)
		}
		fields = append(fields, trajectory.Field{Name: name, Type: affinity(declared.String)})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("table_info %s: %w", table, err)
	}
	rows.Close()

	if len(fields) == 0 {
		return nil, fmt.Errorf("sqlite table %q not found", table)
	}
	xi, yi := trajectory.FieldIndexOf(fields, xCol), trajectory.FieldIndexOf(fields, yCol)
	if xi < 0 || yi < 0 {
		return nil, fmt.Errorf("sqlite table %q: coordinate columns %q/%q not found", table, xCol, yCol)
	}

	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = quoteIdent(f.Name)
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), quoteIdent(table))
	data, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	defer data.Close()

	out := NewTable(table, "", trajectory.GeometryPoint, fields)
	raw := make([]any, len(fields))
	ptrs := make([]any, len(fields))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	n := 0
	for data.Next() {
		n++
		if err := data.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("read %s row %d: %w", table, n, err)
		}
		values := make([]any, len(fields))
		for i, f := range fields {
			values[i] = sqliteValue(raw[i], f.Type)
		}
		x, errX := toFloat(values[xi])
		y, errY := toFloat(values[yi])
		if errX != nil || errY != nil {
			return nil, fmt.Errorf("read %s row %d: invalid coordinates (%v, %v)", table, n, raw[xi], raw[yi])
		}
		if err := out.Append(orb.Point{x, y}, values...); err != nil {
			return nil, err
		}
	}
	if err := data.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	diagf("sqlite %q: %d rows, %d columns", table, out.Len(), len(fields))
	return out, nil
}

// sqliteValue normalises a scanned cell to the Record value conventions.
func sqliteValue(v any, t trajectory.FieldType) any {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(x)
	case int64:
		switch t {
		case trajectory.FieldBool:
			return x != 0
		case trajectory.FieldDouble:
			return float64(x)
		}
		return x
	default:
		return x
	}
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case int64:
		return float64(x), nil
	case float64:
		return x, nil
	default:
		return 0, fmt.Errorf("not numeric: %v", v)
	}
}
