package etl

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrAmbiguousSchema is returned when two input columns collapse to the same
// normalized name, so the cleaned dataset would lose a column.
var ErrAmbiguousSchema = errors.New("ambiguous schema: column names collide after normalization")

// NormalizeColumnName applies the canonical column-name transform: trim,
// lowercase, spaces and hyphens to underscores.
func NormalizeColumnName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.ReplaceAll(n, " ", "_")
	n = strings.ReplaceAll(n, "-", "_")
	return n
}

// Normalize cleans a raw dataset into the canonical shape:
//
//   - column names normalized (collisions -> ErrAmbiguousSchema)
//   - rows outer-unioned onto one column set, absent cells missing
//   - rows and columns that are entirely empty dropped
//   - exact duplicate rows removed
//   - numeric columns: missing values -> column median (0 if none present)
//   - date/time-named text columns: parsed, forward-filled, leading gaps -> now
//   - other text columns: trimmed strings, missing -> "Unknown"
//
// now is the processing timestamp used for unfillable leading date gaps;
// passing it in keeps the function deterministic for a fixed input.
func Normalize(ds *Dataset, now time.Time) (*Dataset, error) {
	if ds == nil {
		return nil, errors.New("nil dataset")
	}

	columns, err := unionColumns(ds)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]any, 0, len(ds.Rows))
	for _, raw := range ds.Rows {
		row := make(map[string]any, len(columns))
		for _, c := range columns {
			row[c] = nil
		}
		for k, v := range raw {
			nk := NormalizeColumnName(k)
			if isMissing(v) {
				continue
			}
			row[nk] = v
		}
		rows = append(rows, row)
	}

	rows = dropEmptyRows(rows, columns)
	columns = dropEmptyColumns(rows, columns)
	rows = dedupRows(rows, columns)

	for _, col := range columns {
		switch classifyColumn(rows, col) {
		case kindNumeric:
			fillNumeric(rows, col)
		case kindDate:
			fillDates(rows, col, now)
		default:
			fillText(rows, col)
		}
	}

	return &Dataset{Columns: columns, Rows: rows}, nil
}

// unionColumns produces the normalized outer-union column set, preserving the
// declared order first and then first-seen order of any row-only extras.
func unionColumns(ds *Dataset) ([]string, error) {
	var out []string
	seen := map[string]string{} // normalized -> original
	add := func(name string) error {
		nk := NormalizeColumnName(name)
		if orig, ok := seen[nk]; ok {
			if orig != name {
				return fmt.Errorf("%w: %q and %q both map to %q", ErrAmbiguousSchema, orig, name, nk)
			}
			return nil
		}
		seen[nk] = name
		out = append(out, nk)
		return nil
	}

	for _, c := range ds.Columns {
		if err := add(c); err != nil {
			return nil, err
		}
	}
	for _, row := range ds.Rows {
		keys := make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}
		sort.Strings(keys) // map order is random; keep the union deterministic
		for _, k := range keys {
			if err := add(k); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func dropEmptyRows(rows []map[string]any, columns []string) []map[string]any {
	out := rows[:0]
	for _, row := range rows {
		empty := true
		for _, c := range columns {
			if !isMissing(row[c]) {
				empty = false
				break
			}
		}
		if !empty {
			out = append(out, row)
		}
	}
	return out
}

func dropEmptyColumns(rows []map[string]any, columns []string) []string {
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		empty := true
		for _, row := range rows {
			if !isMissing(row[c]) {
				empty = false
				break
			}
		}
		if !empty {
			out = append(out, c)
		} else {
			for _, row := range rows {
				delete(row, c)
			}
		}
	}
	return out
}

// dedupRows removes structural duplicates, keeping the first occurrence.
func dedupRows(rows []map[string]any, columns []string) []map[string]any {
	seen := make(map[string]bool, len(rows))
	out := rows[:0]
	for _, row := range rows {
		var b strings.Builder
		for _, c := range columns {
			fmt.Fprintf(&b, "%v\x1f", row[c])
		}
		key := b.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	return out
}

type columnKind int

const (
	kindText columnKind = iota
	kindNumeric
	kindDate
)

// classifyColumn decides the fill policy for a column. A column is numeric
// when every present value reads as a plain number; a textual column whose
// name mentions date/time is a date column.
func classifyColumn(rows []map[string]any, col string) columnKind {
	present := 0
	numeric := true
	for _, row := range rows {
		v := row[col]
		if isMissing(v) {
			continue
		}
		present++
		if _, ok := asFloat(v); !ok {
			numeric = false
		}
	}
	if present > 0 && numeric {
		return kindNumeric
	}
	if strings.Contains(col, "date") || strings.Contains(col, "time") {
		return kindDate
	}
	return kindText
}

func fillNumeric(rows []map[string]any, col string) {
	var present []float64
	for _, row := range rows {
		if v, ok := asFloat(row[col]); ok && !isMissing(row[col]) {
			present = append(present, v)
		}
	}
	med := median(present)
	for _, row := range rows {
		if v, ok := asFloat(row[col]); ok && !isMissing(row[col]) {
			row[col] = v
		} else {
			row[col] = med
		}
	}
}

func median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// fillDates parses every cell, forward-fills parse failures from the prior
// row, and stamps leading gaps with the processing timestamp.
func fillDates(rows []map[string]any, col string, now time.Time) {
	var last time.Time
	var haveLast bool
	for _, row := range rows {
		if t, ok := ParseDate(row[col]); ok {
			row[col] = t
			last, haveLast = t, true
			continue
		}
		if haveLast {
			row[col] = last
		} else {
			row[col] = now
		}
	}
}

func fillText(rows []map[string]any, col string) {
	for _, row := range rows {
		if isMissing(row[col]) {
			row[col] = "Unknown"
		} else {
			row[col] = asString(row[col])
		}
	}
}
