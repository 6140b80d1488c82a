package etl

import "strings"

// Role is the semantic meaning inferred for a column.
type Role string

const (
	RoleDate    Role = "date"
	RoleRevenue Role = "revenue"
	RoleExpense Role = "expense"
	RoleProfit  Role = "profit"
)

// RoleMap records which normalized column was picked for each role. Roles
// with no matching column are simply absent.
type RoleMap map[Role]string

// rolePatterns drive resolution. Roles are resolved in this order and
// keywords are tried in their declared order, so "cost" claims a column for
// expense before "total" could suggest revenue.
var rolePatterns = []struct {
	role     Role
	keywords []string
}{
	{RoleDate, []string{"date", "time", "period", "day"}},
	{RoleRevenue, []string{"revenue", "sales", "income", "total"}},
	{RoleExpense, []string{"expense", "cost", "spend", "payout", "charges"}},
	{RoleProfit, []string{"profit", "margin", "net"}},
}

// ResolveRoles assigns at most one column per role by case-insensitive
// substring match. A column is consumed by the first role that claims it and
// is excluded from later roles. Zero matches is not an error; callers handle
// missing roles.
func ResolveRoles(columns []string) RoleMap {
	taken := make(map[string]bool, len(columns))
	roles := make(RoleMap, len(rolePatterns))

	for _, p := range rolePatterns {
	scan:
		for _, kw := range p.keywords {
			for _, col := range columns {
				if taken[col] {
					continue
				}
				if strings.Contains(strings.ToLower(col), kw) {
					roles[p.role] = col
					taken[col] = true
					break scan
				}
			}
		}
	}
	return roles
}

// MergeRoles combines role maps from several datasets; the first dataset to
// resolve a role wins, and the merged map is what KPI computation reports.
func MergeRoles(maps ...RoleMap) RoleMap {
	merged := RoleMap{}
	for _, m := range maps {
		for role, col := range m {
			if _, ok := merged[role]; !ok {
				merged[role] = col
			}
		}
	}
	return merged
}

// Strings converts a RoleMap to the plain string mapping persisted with a
// report and returned to API callers.
func (m RoleMap) Strings() map[string]string {
	out := make(map[string]string, len(m))
	for role, col := range m {
		out[string(role)] = col
	}
	return out
}

// RolesFromStrings rebuilds a RoleMap from its persisted form.
func RolesFromStrings(m map[string]string) RoleMap {
	out := make(RoleMap, len(m))
	for role, col := range m {
		out[Role(role)] = col
	}
	return out
}
