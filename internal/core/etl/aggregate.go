package etl

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Frequency selects the calendar bucket for resampling.
type Frequency string

const (
	FreqWeek  Frequency = "W"
	FreqMonth Frequency = "M"
	FreqYear  Frequency = "Y"
)

// ParseFrequency accepts the wire tokens W/M/Y and their long forms.
func ParseFrequency(tok string) (Frequency, error) {
	switch strings.ToUpper(strings.TrimSpace(tok)) {
	case "W", "WEEK", "WEEKLY":
		return FreqWeek, nil
	case "M", "MONTH", "MONTHLY", "":
		return FreqMonth, nil
	case "Y", "YEAR", "YEARLY", "ANNUAL":
		return FreqYear, nil
	}
	return "", fmt.Errorf("unknown frequency %q (want W, M or Y)", tok)
}

// SourceDataset is one cleaned, role-resolved dataset entering aggregation.
// CreatedAt is the upload time; rows whose date cell cannot be parsed fall
// back to it, and that fallback is scoped to this dataset alone.
type SourceDataset struct {
	Dataset   *Dataset
	Roles     RoleMap
	CreatedAt time.Time
}

// PeriodBucket is one resampled period: the period start plus summed metrics.
type PeriodBucket struct {
	Period  time.Time `json:"period"`
	Revenue float64   `json:"revenue"`
	Expense float64   `json:"expense"`
	Profit  float64   `json:"profit"`
}

// Metrics are the scalar KPIs for the most recent bucket.
type Metrics struct {
	Revenue    float64 `json:"revenue"`
	Expense    float64 `json:"expense"`
	Profit     float64 `json:"profit"`
	Growth     float64 `json:"growth"`
	Efficiency float64 `json:"efficiency"`
	Projection float64 `json:"projection"`
}

// Result is the ephemeral output of one aggregation request. Roles reports
// the column actually used per role so callers can audit the resolution.
type Result struct {
	Empty   bool              `json:"empty"`
	Series  []PeriodBucket    `json:"series"`
	Metrics Metrics           `json:"metrics"`
	Roles   map[string]string `json:"resolved_roles"`
}

type stampedRow struct {
	ts  time.Time
	row map[string]any
}

// Aggregate merges one or more datasets belonging to a user into a single
// resampled series and computes the latest-period KPIs. start and end are
// inclusive; nil means unbounded. No deduplication happens across datasets:
// supplying the same dataset twice doubles the totals.
func Aggregate(sources []SourceDataset, freq Frequency, start, end *time.Time) *Result {
	merged := make([]RoleMap, 0, len(sources))
	var rows []stampedRow

	for _, src := range sources {
		if src.Dataset == nil {
			continue
		}
		merged = append(merged, src.Roles)
		dateCol, hasDate := src.Roles[RoleDate]
		for _, row := range src.Dataset.Rows {
			ts := src.CreatedAt
			if hasDate {
				if t, ok := ParseDate(row[dateCol]); ok {
					ts = t
				}
			}
			rows = append(rows, stampedRow{ts: ts, row: row})
		}
	}

	roles := MergeRoles(merged...)

	filtered := rows[:0]
	for _, r := range rows {
		if start != nil && r.ts.Before(*start) {
			continue
		}
		if end != nil && r.ts.After(*end) {
			continue
		}
		filtered = append(filtered, r)
	}

	if len(filtered) == 0 {
		return &Result{Empty: true, Series: []PeriodBucket{}, Roles: roles.Strings()}
	}

	buckets := map[time.Time]*PeriodBucket{}
	for _, r := range filtered {
		key := bucketStart(r.ts, freq)
		b, ok := buckets[key]
		if !ok {
			b = &PeriodBucket{Period: key}
			buckets[key] = b
		}
		b.Revenue += metricValue(r.row, roles, RoleRevenue)
		b.Expense += metricValue(r.row, roles, RoleExpense)
		b.Profit += metricValue(r.row, roles, RoleProfit)
	}

	series := make([]PeriodBucket, 0, len(buckets))
	for _, b := range buckets {
		b.Revenue = round2(b.Revenue)
		b.Expense = round2(b.Expense)
		b.Profit = round2(b.Profit)
		series = append(series, *b)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Period.Before(series[j].Period) })

	return &Result{
		Series:  series,
		Metrics: computeKPIs(series),
		Roles:   roles.Strings(),
	}
}

// bucketStart maps a timestamp to its calendar period start: ISO week Monday,
// first of the month, or January 1st, all at UTC midnight.
func bucketStart(t time.Time, freq Frequency) time.Time {
	t = t.UTC()
	switch freq {
	case FreqWeek:
		back := (int(t.Weekday()) + 6) % 7
		d := t.AddDate(0, 0, -back)
		return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	case FreqYear:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
}

func metricValue(row map[string]any, roles RoleMap, role Role) float64 {
	col, ok := roles[role]
	if !ok {
		return 0
	}
	return CoerceCurrency(row[col])
}

// computeKPIs derives the latest-period scalars. Growth is 0 when there is
// no prior bucket or the prior profit is exactly 0; projection assumes a
// flat 5% uplift when no positive trend is observed.
func computeKPIs(series []PeriodBucket) Metrics {
	latest := series[len(series)-1]

	growth := 0.0
	if len(series) >= 2 {
		prior := series[len(series)-2].Profit
		if prior != 0 {
			growth = (latest.Profit - prior) / math.Abs(prior) * 100
		}
	}

	efficiency := 0.0
	if latest.Revenue > 0 {
		efficiency = latest.Profit / latest.Revenue * 100
	}

	projection := latest.Profit * 1.05
	if growth > 0 {
		projection = latest.Profit * (1 + growth/100)
	}

	return Metrics{
		Revenue:    round2(latest.Revenue),
		Expense:    round2(latest.Expense),
		Profit:     round2(latest.Profit),
		Growth:     round1(growth),
		Efficiency: round1(efficiency),
		Projection: round2(projection),
	}
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
func round1(f float64) float64 { return math.Round(f*10) / 10 }
