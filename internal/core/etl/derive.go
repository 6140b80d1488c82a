package etl

import (
	"strconv"
	"strings"
)

// CoerceCurrency turns a money-ish cell into a float64. Every character that
// is not a digit or decimal point is stripped ("$1,234.50" -> 1234.50);
// anything left unparseable ("N/A", "-") becomes 0.
func CoerceCurrency(v any) float64 {
	if f, ok := asFloat(v); ok {
		return f
	}
	s, ok := v.(string)
	if !ok {
		return 0
	}
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return 0
	}
	return f
}

// CoerceMetrics rewrites every resolved revenue/expense/profit column to
// float64 values. Runs before derivation and before aggregation so textual
// currency values ("$1,200") take part in the math.
func CoerceMetrics(ds *Dataset, roles RoleMap) {
	for _, role := range []Role{RoleRevenue, RoleExpense, RoleProfit} {
		col, ok := roles[role]
		if !ok {
			continue
		}
		for _, row := range ds.Rows {
			row[col] = CoerceCurrency(row[col])
		}
	}
}

// DeriveProfit synthesizes a profit column as revenue - expense when both
// source roles resolved and no profit column exists. Returns the role map
// with the new assignment; the input map is not modified.
func DeriveProfit(ds *Dataset, roles RoleMap) RoleMap {
	revCol, hasRev := roles[RoleRevenue]
	expCol, hasExp := roles[RoleExpense]
	if _, hasProfit := roles[RoleProfit]; hasProfit || !hasRev || !hasExp {
		return roles
	}

	const derived = "profit"
	for _, row := range ds.Rows {
		rev, _ := asFloat(row[revCol])
		exp, _ := asFloat(row[expCol])
		row[derived] = rev - exp
	}
	ds.Columns = append(ds.Columns, derived)

	out := make(RoleMap, len(roles)+1)
	for r, c := range roles {
		out[r] = c
	}
	out[RoleProfit] = derived
	return out
}
