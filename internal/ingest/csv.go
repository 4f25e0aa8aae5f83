package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"github.com/banshee-data/trajectory.report/internal/trajectory"
)

// CSVOptions describes a delimited point file.
type CSVOptions struct {
	Name   string
	CRS    string
	XField string
	YField string
	// Comma overrides the ',' delimiter.
	Comma rune
}

// ReadCSV reads a header-first CSV into a point table. Each column is typed
// as integer, double, bool or string from its non-empty cells; empty cells
// become nil. The coordinate columns stay in the schema as doubles.
func ReadCSV(r io.Reader, opts CSVOptions) (*Table, error) {
	cr := csv.NewReader(r)
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("csv %q: missing header row", opts.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("csv %q: read header: %w", opts.Name, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	xi, yi := indexOf(header, opts.XField), indexOf(header, opts.YField)
	if xi < 0 || yi < 0 {
		return nil, fmt.Errorf("csv %q: coordinate columns %q/%q not found in header %v", opts.Name, opts.XField, opts.YField, header)
	}

	var rows [][]string
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv %q: %w", opts.Name, err)
		}
		rows = append(rows, row)
	}

	fields := make([]trajectory.Field, len(header))
	for c, name := range header {
		fields[c] = trajectory.Field{Name: name, Type: columnType(rows, c)}
	}

	table := NewTable(opts.Name, opts.CRS, trajectory.GeometryPoint, fields)
	for n, row := range rows {
		x, errX := strconv.ParseFloat(strings.TrimSpace(row[xi]), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(row[yi]), 64)
		if errX != nil || errY != nil {
			return nil, fmt.Errorf("csv %q: line %d: invalid coordinates (%q, %q)", opts.Name, n+2, row[xi], row[yi])
		}
		values := make([]any, len(fields))
		for c, f := range fields {
			values[c] = parseCell(strings.TrimSpace(row[c]), f.Type)
		}
		if err := table.Append(orb.Point{x, y}, values...); err != nil {
			return nil, err
		}
	}
	diagf("csv %q: %d rows, %d columns", opts.Name, table.Len(), len(fields))
	return table, nil
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

// columnType picks the narrowest type every non-empty cell of column c
// parses as.
func columnType(rows [][]string, c int) trajectory.FieldType {
	isInt, isFloat, isBool, seen := true, true, true, false
	for _, row := range rows {
		v := strings.TrimSpace(row[c])
		if v == "" {
			continue
		}
		seen = true
		if _, err := strconv.ParseInt(v, 10, 64); err != nil {
			isInt = false
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			isFloat = false
		}
		if _, err := strconv.ParseBool(v); err != nil || isNumericLiteral(v) {
			isBool = false
		}
	}
	switch {
	case !seen:
		return trajectory.FieldString
	case isInt:
		return trajectory.FieldInteger
	case isFloat:
		return trajectory.FieldDouble
	case isBool:
		return trajectory.FieldBool
	default:
		return trajectory.FieldString
	}
}

// isNumericLiteral keeps "0"/"1" columns numeric rather than bool.
func isNumericLiteral(v string) bool {
	_, err := strconv.ParseFloat(v, 64)
	return err == nil
}

func parseCell(v string, t trajectory.FieldType) any {
	if v == "" {
		return nil
	}
	switch t {
	case trajectory.FieldInteger:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case trajectory.FieldDouble:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case trajectory.FieldBool:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return v
	}
}
