package etl

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Dataset is the tabular unit flowing through the cleaning pipeline: an
// ordered column list plus rows keyed by column name. Cell values are
// float64, string, time.Time or nil (missing). After Normalize every row
// carries the full column set.
type Dataset struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// isMissing reports whether a cell should be treated as absent.
func isMissing(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "nan", "null", "none":
		return true
	}
	return false
}

// asFloat attempts a plain numeric read of a cell (no currency stripping;
// that is CoerceCurrency's job).
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case time.Time:
		return s.Format("2006-01-02")
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
